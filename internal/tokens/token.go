package tokens

import (
	"fmt"

	"github.com/dshills/ppbridge/pkg/types"
)

// Line and column sentinels used when line/column tracking is disabled
const (
	NoLine   = -1
	NoColumn = -1
)

// Token is a converted token. Tokens are immutable and may be shared: every
// mutator fails with types.ErrUnsupportedOperation.
type Token interface {
	Kind() Kind
	Text() string
	Offset() int
	EndOffset() int
	Line() int
	Column() int
	EndLine() int
	EndColumn() int

	SetKind(Kind) error
	SetText(string) error
	SetOffset(int) error
	SetEndOffset(int) error
}

// span is the position part shared by every token implementation
type span struct {
	offset, end     int
	line, column    int
	endLine, endCol int
}

func (s *span) Offset() int    { return s.offset }
func (s *span) EndOffset() int { return s.end }
func (s *span) Line() int      { return s.line }
func (s *span) Column() int    { return s.column }
func (s *span) EndLine() int   { return s.endLine }
func (s *span) EndColumn() int { return s.endCol }

type immutable struct{}

func (immutable) SetKind(Kind) error     { return unsupported("SetKind") }
func (immutable) SetText(string) error   { return unsupported("SetText") }
func (immutable) SetOffset(int) error    { return unsupported("SetOffset") }
func (immutable) SetEndOffset(int) error { return unsupported("SetEndOffset") }

func unsupported(op string) error {
	return fmt.Errorf("%w: %s on converted token", types.ErrUnsupportedOperation, op)
}

// liteToken carries an interned canonical spelling and allocates no text
type liteToken struct {
	immutable
	span
	kind Kind
	text string
}

func (t *liteToken) Kind() Kind     { return t.kind }
func (t *liteToken) Text() string   { return t.text }
func (t *liteToken) String() string { return fmt.Sprintf("%s %q @%d", t.kind, t.text, t.offset) }

// textToken owns its spelling
type textToken struct {
	immutable
	span
	kind Kind
	text string
}

func (t *textToken) Kind() Kind     { return t.kind }
func (t *textToken) Text() string   { return t.text }
func (t *textToken) String() string { return fmt.Sprintf("%s %q @%d", t.kind, t.text, t.offset) }

// markerToken is the zero-width comment-like token closing a macro expansion
type markerToken struct {
	immutable
	span
}

func (t *markerToken) Kind() Kind   { return KindExpansionEnd }
func (t *markerToken) Text() string { return "" }

type eofToken struct {
	immutable
}

func (*eofToken) Kind() Kind     { return KindEOF }
func (*eofToken) Text() string   { return "" }
func (*eofToken) Offset() int    { return -1 }
func (*eofToken) EndOffset() int { return -1 }
func (*eofToken) Line() int      { return NoLine }
func (*eofToken) Column() int    { return NoColumn }
func (*eofToken) EndLine() int   { return NoLine }
func (*eofToken) EndColumn() int { return NoColumn }

// EOF is the shared end-of-file token
var EOF Token = &eofToken{}

// MacroExpanded wraps a token produced by a macro expansion. It reports the
// wrapped token's start and the end of the whole expansion.
type MacroExpanded struct {
	immutable
	inner Token
	end   Token
	index int
}

// Inner returns the wrapped token
func (m *MacroExpanded) Inner() Token { return m.inner }

// ExpansionEnd returns the end marker of the expansion
func (m *MacroExpanded) ExpansionEnd() Token { return m.end }

// Index is the zero-based position of the token within its expansion, or -1
// for tokens standing for a whole expansion
func (m *MacroExpanded) Index() int { return m.index }

func (m *MacroExpanded) Kind() Kind     { return m.inner.Kind() }
func (m *MacroExpanded) Text() string   { return m.inner.Text() }
func (m *MacroExpanded) Offset() int    { return m.inner.Offset() }
func (m *MacroExpanded) Line() int      { return m.inner.Line() }
func (m *MacroExpanded) Column() int    { return m.inner.Column() }
func (m *MacroExpanded) EndOffset() int { return m.end.EndOffset() }
func (m *MacroExpanded) EndLine() int   { return m.end.EndLine() }
func (m *MacroExpanded) EndColumn() int { return m.end.EndColumn() }

func (m *MacroExpanded) String() string {
	return fmt.Sprintf("%s %q @%d-%d #%d", m.Kind(), m.Text(), m.Offset(), m.EndOffset(), m.index)
}

// IsLite reports whether t is backed by an interned spelling
func IsLite(t Token) bool {
	if m, ok := t.(*MacroExpanded); ok {
		t = m.inner
	}
	_, ok := t.(*liteToken)
	return ok
}

// IsMacroExpanded reports whether t came out of a macro expansion
func IsMacroExpanded(t Token) bool {
	_, ok := t.(*MacroExpanded)
	return ok
}
