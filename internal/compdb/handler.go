package compdb

import (
	"github.com/dshills/ppbridge/internal/macros"
)

// IncludePath is one configured include directory as the handler knows it
type IncludePath struct {
	Path          string // local path or remote URL
	IsFramework   bool
	IgnoreSysRoot bool
}

// Handler is the legacy preprocessor handler a compilation entry is built from
type Handler interface {
	// StartFile is the main file as a local path or remote URL
	StartFile() string
	// Language is the declared language name ("C", "C++", "Fortran")
	Language() string
	// Flavor is the declared language flavor name; may be empty
	Flavor() string
	UserIncludePaths() []IncludePath
	SystemIncludePaths() []IncludePath
	ForcedIncludes() []string
	Macros() *macros.FileTable
}

// ProjectHandler is a Handler assembled from project configuration
type ProjectHandler struct {
	File           string
	Lang           string
	LangFlavor     string
	UserIncludes   []IncludePath
	SystemIncludes []IncludePath
	Forced         []string
	MacroTable     *macros.FileTable
}

func (p *ProjectHandler) StartFile() string                 { return p.File }
func (p *ProjectHandler) Language() string                  { return p.Lang }
func (p *ProjectHandler) Flavor() string                    { return p.LangFlavor }
func (p *ProjectHandler) UserIncludePaths() []IncludePath   { return p.UserIncludes }
func (p *ProjectHandler) SystemIncludePaths() []IncludePath { return p.SystemIncludes }
func (p *ProjectHandler) ForcedIncludes() []string          { return p.Forced }

func (p *ProjectHandler) Macros() *macros.FileTable {
	if p.MacroTable == nil {
		p.MacroTable = macros.NewFileTable(nil, nil)
	}
	return p.MacroTable
}

// Paths wraps plain directories as include paths
func Paths(dirs ...string) []IncludePath {
	out := make([]IncludePath, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, IncludePath{Path: d})
	}
	return out
}
