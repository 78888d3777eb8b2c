package compdb

import (
	"encoding/json"

	"github.com/dshills/ppbridge/internal/fsys"
)

// Args renders the entry as a clang-style argument vector. Paths are plain
// absolute paths; remote entries carry their lookup prefix separately.
func (e *Entry) Args() []string {
	args := []string{"-x", e.kind.String()}
	if std := e.dialect.Std(); std != "" {
		args = append(args, "-std="+std)
	}
	if e.skipBuiltins {
		args = append(args, "-nostdinc", "-undef")
	}
	for _, d := range e.userIncludes {
		if d.IsFramework {
			args = append(args, "-F", e.Path(d.URL))
			continue
		}
		args = append(args, "-I", e.Path(d.URL))
	}
	for _, d := range e.systemIncludes {
		if d.IsFramework {
			args = append(args, "-iframework", e.Path(d.URL))
			continue
		}
		args = append(args, "-isystem", e.Path(d.URL))
	}
	for _, f := range e.forcedIncludes {
		args = append(args, "-include", e.Path(f))
	}
	for _, m := range e.systemMacros {
		args = append(args, "-D", m)
	}
	for _, m := range e.userMacros {
		args = append(args, "-D", m)
	}
	return append(args, e.Path(e.file))
}

// CompileCommand is one compile_commands.json record
type CompileCommand struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Arguments []string `json:"arguments"`
}

// CompileCommand renders the entry as a compile_commands.json record
func (e *Entry) CompileCommand() CompileCommand {
	file := e.Path(e.file)
	return CompileCommand{
		Directory: fsys.Dir(file),
		File:      file,
		Arguments: append([]string{"clang"}, e.Args()...),
	}
}

// MarshalCompileCommands renders a compile_commands.json document
func MarshalCompileCommands(entries []*Entry) ([]byte, error) {
	cmds := make([]CompileCommand, 0, len(entries))
	for _, e := range entries {
		cmds = append(cmds, e.CompileCommand())
	}
	return json.MarshalIndent(cmds, "", "  ")
}
