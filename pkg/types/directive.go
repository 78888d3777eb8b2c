package types

import "sync/atomic"

// BuiltinFile is the owning file name of macros that come from the predefines buffer
const BuiltinFile = "<built-in>"

// VariadicMarker is the trailing parameter name of a variadic macro
const VariadicMarker = "..."

// Range is a half-open byte range [Start, End) within one file
type Range struct {
	Start int
	End   int
}

// Len returns the length of the range
func (r Range) Len() int {
	return r.End - r.Start
}

// Validate checks that the range is well ordered
func (r Range) Validate() error {
	if r.End < r.Start {
		return ErrInvalidRange
	}
	return nil
}

// FileGuard describes the macro of a classic #ifndef/#define header guard
type FileGuard struct {
	Name   string
	Offset int // offset of the guard name in the #ifndef line
	Length int
}

// InclusionDirective is the resolved representation of one #include or -include.
// Only the recursive flag changes after creation.
type InclusionDirective struct {
	Range
	Spelling      string
	Angled        bool
	Index         int           // sequence index among the directives of the containing file
	Resolved      *ResolvedPath // nil when the include could not be resolved
	ForcedInclude bool          // synthesized for a -include file

	recursive atomic.Bool
}

// IsRecursive reports whether the directive was found to take part in recursive inclusion
func (d *InclusionDirective) IsRecursive() bool {
	return d.recursive.Load()
}

// MarkRecursive flags the directive as recursive
func (d *InclusionDirective) MarkRecursive() {
	d.recursive.Store(true)
}

// IsResolved reports whether the include target was found
func (d *InclusionDirective) IsResolved() bool {
	return d.Resolved != nil
}

// MacroDirective is one #define or #undef. Immutable once constructed.
type MacroDirective struct {
	Name       string
	Params     []string // nil for object-like macros
	Defined    bool     // false for #undef
	File       string   // owning file path or BuiltinFile
	Range               // directive text
	NameOffset int
}

// IsFunctionLike reports whether the macro takes a parameter list
func (m *MacroDirective) IsFunctionLike() bool {
	return m.Params != nil
}

// IsVariadic reports whether the last parameter is the variadic marker
func (m *MacroDirective) IsVariadic() bool {
	return len(m.Params) > 0 && m.Params[len(m.Params)-1] == VariadicMarker
}

// IsBuiltin reports whether the macro came from the predefines buffer
func (m *MacroDirective) IsBuiltin() bool {
	return m.File == BuiltinFile
}

// Validate checks the directive invariants
func (m *MacroDirective) Validate() error {
	if m.Name == "" {
		return ErrEmptyMacroName
	}
	return m.Range.Validate()
}

// ReferenceKind distinguishes macro usages from macro expansions
type ReferenceKind string

const (
	// RefUsage is a reference that does not expand the macro (#ifdef, defined(), #undef)
	RefUsage ReferenceKind = "usage"
	// RefExpansion is an expansion of the macro in code
	RefExpansion ReferenceKind = "expansion"
)

// MacroReference is a usage or expansion of a macro inside a file
type MacroReference struct {
	Kind ReferenceKind
	Name string
	Range
	Directive *MacroDirective // deduplicated per file; nil when the macro is unknown
}

// ErrorDirective is a retained #error with the handler state at that point
type ErrorDirective struct {
	Range
	Message string
	State   any // opaque resumable handler state
}
