package tokens

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ppbridge/pkg/types"
)

type tokenView struct {
	Kind       Kind
	Text       string
	Offset     int
	EndOffset  int
	Line, Col  int
	Index      int
	IsExpanded bool
}

func view(ts []Token) []tokenView {
	out := make([]tokenView, len(ts))
	for i, t := range ts {
		v := tokenView{Kind: t.Kind(), Text: t.Text(), Offset: t.Offset(), EndOffset: t.EndOffset(), Line: t.Line(), Col: t.Column(), Index: -2}
		if m, ok := t.(*MacroExpanded); ok {
			v.Index = m.Index()
			v.IsExpanded = true
		}
		out[i] = v
	}
	return out
}

// rawAt builds a plain raw token located at offset in file id
func rawAt(sm *SourceManager, id FileID, kind Kind, offset int, text string) RawToken {
	return RawToken{Kind: kind, Loc: sm.FileLoc(id, offset), Length: len(text), Text: text}
}

func TestConvert_PlainTokens(t *testing.T) {
	src := []byte("int x = 010;\nvirtual f() = 0;\n")
	sm := NewSourceManager()
	id := sm.AddFile("/src/a.cc", src, false)

	raw := []RawToken{
		rawAt(sm, id, KindKeyword, 0, "int"),
		rawAt(sm, id, KindIdent, 4, "x"),
		rawAt(sm, id, KindPunctuator, 6, "="),
		rawAt(sm, id, KindIntLiteral, 8, "010"),
		rawAt(sm, id, KindPunctuator, 11, ";"),
		rawAt(sm, id, KindKeyword, 13, "virtual"),
		rawAt(sm, id, KindIntLiteral, 27, "0"),
		{Kind: KindEOF},
	}
	got := view(Convert(sm, raw, true))

	want := []tokenView{
		{Kind: KindIdent, Text: "int", Offset: 0, EndOffset: 3, Line: 1, Col: 1, Index: -2},
		{Kind: KindIdent, Text: "x", Offset: 4, EndOffset: 5, Line: 1, Col: 5, Index: -2},
		{Kind: KindPunctuator, Text: "=", Offset: 6, EndOffset: 7, Line: 1, Col: 7, Index: -2},
		{Kind: KindOctalLiteral, Text: "010", Offset: 8, EndOffset: 11, Line: 1, Col: 9, Index: -2},
		{Kind: KindPunctuator, Text: ";", Offset: 11, EndOffset: 12, Line: 1, Col: 12, Index: -2},
		{Kind: KindIdent, Text: "virtual", Offset: 13, EndOffset: 20, Line: 2, Col: 1, Index: -2},
		{Kind: KindOctalLiteral, Text: "0", Offset: 27, EndOffset: 28, Line: 2, Col: 15, Index: -2},
		{Kind: KindEOF, Offset: -1, EndOffset: -1, Line: NoLine, Col: NoColumn, Index: -2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Convert() mismatch (-want +got):\n%s", diff)
	}
}

func TestConvert_EOFIsShared(t *testing.T) {
	sm := NewSourceManager()
	out := Convert(sm, []RawToken{{Kind: KindEOF}, {Kind: KindEOF}}, true)
	assert.Same(t, EOF, out[0])
	assert.Same(t, EOF, out[1])
}

func TestConvert_NoLineColumns(t *testing.T) {
	sm := NewSourceManager()
	id := sm.AddFile("/a.c", []byte("a\nb\n"), false)
	out := Convert(sm, []RawToken{rawAt(sm, id, KindIdent, 2, "b")}, false)

	require.Len(t, out, 1)
	assert.Equal(t, 2, out[0].Offset())
	assert.Equal(t, NoLine, out[0].Line())
	assert.Equal(t, NoColumn, out[0].Column())
	assert.Equal(t, NoLine, out[0].EndLine())
}

func TestConvert_Digraph(t *testing.T) {
	sm := NewSourceManager()
	id := sm.AddFile("/a.c", []byte("a<:1:>"), false)
	out := Convert(sm, []RawToken{rawAt(sm, id, KindPunctuator, 1, "<:")}, true)

	assert.Equal(t, "[", out[0].Text())
	assert.True(t, IsLite(out[0]))
	assert.Equal(t, 3, out[0].EndOffset())
}

// expand registers an expansion of name at [start, end) in file id whose
// replacement list has the given token texts, and returns one raw token per
// replacement token
func expand(t *testing.T, sm *SourceManager, id FileID, name string, start, end int, texts ...string) []RawToken {
	t.Helper()
	length := 0
	for _, s := range texts {
		length += len(s) + 1
	}
	base, err := sm.AddExpansion(name, NoLoc, length, sm.FileLoc(id, start), sm.FileLoc(id, end))
	require.NoError(t, err)

	var raw []RawToken
	off := 0
	for _, s := range texts {
		raw = append(raw, RawToken{Kind: KindIdent, Loc: base + Loc(off), Length: len(s), Text: s})
		off += len(s) + 1
	}
	return raw
}

func TestConvert_MacroExpansionIndexReset(t *testing.T) {
	src := []byte("A; B;\n")
	sm := NewSourceManager()
	id := sm.AddFile("/m.c", src, false)

	var raw []RawToken
	raw = append(raw, expand(t, sm, id, "A", 0, 1, "x", "y", "z")...)
	raw = append(raw, rawAt(sm, id, KindPunctuator, 1, ";"))
	raw = append(raw, expand(t, sm, id, "B", 3, 4, "p", "q")...)

	out := Convert(sm, raw, true)
	require.Len(t, out, 6)

	var indexes []int
	for _, tok := range out {
		if m, ok := tok.(*MacroExpanded); ok {
			indexes = append(indexes, m.Index())
		}
	}
	assert.Equal(t, []int{0, 1, 2, 0, 1}, indexes)

	first := out[0].(*MacroExpanded)
	assert.Equal(t, 0, first.Offset())
	assert.Equal(t, 1, first.EndOffset())
	assert.Equal(t, KindExpansionEnd, first.ExpansionEnd().Kind())
	assert.Same(t, first.ExpansionEnd(), out[2].(*MacroExpanded).ExpansionEnd())

	second := out[4].(*MacroExpanded)
	assert.Equal(t, 3, second.Offset())
	assert.Equal(t, 4, second.EndOffset())
}

func TestConvert_AdjacentExpansionsOfSameMacro(t *testing.T) {
	sm := NewSourceManager()
	id := sm.AddFile("/m.c", []byte("A A\n"), false)

	raw := expand(t, sm, id, "A", 0, 1, "x", "y")
	raw = append(raw, expand(t, sm, id, "A", 2, 3, "x", "y")...)

	var indexes []int
	for _, tok := range Convert(sm, raw, true) {
		indexes = append(indexes, tok.(*MacroExpanded).Index())
	}
	assert.Equal(t, []int{0, 1, 0, 1}, indexes)
}

func TestConvert_AnnotatedExpansion(t *testing.T) {
	sm := NewSourceManager()
	id := sm.AddFile("/m.c", []byte("int v = MAX(a, b);\n"), false)

	raw := []RawToken{
		rawAt(sm, id, KindKeyword, 0, "int"),
		{Kind: KindIdent, Loc: sm.FileLoc(id, 8), Length: 3, Text: "MAX", Annotated: true, AnnotationEnd: sm.FileLoc(id, 17)},
		rawAt(sm, id, KindPunctuator, 17, ";"),
	}
	out := Convert(sm, raw, true)

	m, ok := out[1].(*MacroExpanded)
	require.True(t, ok)
	assert.Equal(t, -1, m.Index())
	assert.Equal(t, KindExpansionEnd, m.Kind())
	assert.Equal(t, 8, m.Offset())
	assert.Equal(t, 17, m.EndOffset())
	assert.Empty(t, m.Text())
}

func TestConvert_OffsetInvariants(t *testing.T) {
	src := []byte("#define M a b\nint M;\nlong z = 0x10;\n")
	sm := NewSourceManager()
	id := sm.AddFile("/inv.c", src, false)

	raw := []RawToken{rawAt(sm, id, KindKeyword, 14, "int")}
	raw = append(raw, expand(t, sm, id, "M", 18, 19, "a", "b")...)
	raw = append(raw,
		rawAt(sm, id, KindPunctuator, 19, ";"),
		rawAt(sm, id, KindKeyword, 21, "long"),
		rawAt(sm, id, KindIdent, 26, "z"),
		rawAt(sm, id, KindPunctuator, 28, "="),
		rawAt(sm, id, KindIntLiteral, 30, "0x10"),
		RawToken{Kind: KindEOF},
	)
	out := Convert(sm, raw, true)
	require.Len(t, out, len(raw))

	last := -1
	for i, tok := range out {
		if tok.Kind() == KindEOF {
			continue
		}
		assert.GreaterOrEqual(t, tok.EndOffset(), tok.Offset(), "token %d", i)
		assert.LessOrEqual(t, len(tok.Text()), raw[i].Length, "token %d", i)
		if !IsMacroExpanded(tok) {
			assert.GreaterOrEqual(t, tok.Offset(), last, "token %d", i)
			last = tok.Offset()
		}
	}
	assert.Equal(t, KindHexLiteral, out[len(out)-2].Kind())
}

func TestToken_Immutable(t *testing.T) {
	sm := NewSourceManager()
	id := sm.AddFile("/a.c", []byte("x"), false)
	out := Convert(sm, []RawToken{rawAt(sm, id, KindIdent, 0, "x")}, true)
	tok := out[0]

	for _, err := range []error{
		tok.SetKind(KindKeyword),
		tok.SetText("y"),
		tok.SetOffset(1),
		tok.SetEndOffset(2),
		EOF.SetText("z"),
	} {
		assert.True(t, errors.Is(err, types.ErrUnsupportedOperation))
	}
	assert.Equal(t, "x", tok.Text())
}

func TestCleanSpelling(t *testing.T) {
	assert.Equal(t, "ab", cleanSpelling("a\\\nb", 4))
	assert.Equal(t, "abc", cleanSpelling("abcdef", 3))
}
