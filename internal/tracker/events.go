package tracker

import (
	"github.com/dshills/ppbridge/internal/fsys"
	"github.com/dshills/ppbridge/internal/tokens"
	"github.com/dshills/ppbridge/pkg/types"
)

// Pseudo-buffer names used by the front end
const (
	BuiltinBuffer     = types.BuiltinFile
	CommandLineBuffer = "<command line>"
)

// Buffer is a file or pseudo-buffer the front end enters or leaves
type Buffer struct {
	ID      tokens.FileID
	Name    string // URL for real files, pseudo-buffer name otherwise
	Builtin bool
	Content []byte
}

// IsZero reports whether b names no buffer
func (b Buffer) IsZero() bool { return b.ID == 0 && b.Name == "" }

// NodeID identifies a directive node of the front end
type NodeID uint64

// MacroID identifies one macro definition of the front end
type MacroID int

// MacroDef is the front end's record of one macro definition
type MacroDef struct {
	ID     MacroID
	Name   string
	Params []string // nil for object-like macros
	// Start and End delimit the #define line, NameLoc is the macro name
	Start, End tokens.Loc
	NameLoc    tokens.Loc
	Body       string
}

// FoundFile is the outcome of an include lookup
type FoundFile struct {
	FS   fsys.FileSystem
	Path string // plain absolute path in FS
	// SearchRoot is the search directory the file was found in; empty when
	// no search-path lookup took place
	SearchRoot  string
	DefaultRoot bool // found in the includer's directory
	SearchIndex int
}

// InclusionEvent is one #include seen by the front end
type InclusionEvent struct {
	Node       NodeID
	Spelling   string
	Angled     bool
	Start, End tokens.Loc
	File       *FoundFile // nil when the lookup failed
}

// DiagnosticKind distinguishes #error from #warning
type DiagnosticKind int

const (
	DiagError DiagnosticKind = iota
	DiagWarning
)
