package tokens

import (
	"strings"
)

// RawToken is a token as the preprocessing front end produces it
type RawToken struct {
	Kind Kind
	Loc  Loc
	// Length is the number of source bytes the token occupies at its
	// spelling location, line continuations included
	Length int
	Text   string
	// Annotated marks a synthetic token standing for a whole macro
	// expansion; AnnotationEnd is the location of the expansion's end
	Annotated     bool
	AnnotationEnd Loc
}

// Converter maps a raw token stream into converted tokens. A Converter is
// single-use per stream; it caches the current expansion range across
// consecutive macro tokens.
type Converter struct {
	sm              *SourceManager
	needLineColumns bool

	expStart, expEnd Loc
	expMarker        Token
	index            int
}

// NewConverter creates a converter over sm
func NewConverter(sm *SourceManager, needLineColumns bool) *Converter {
	return &Converter{sm: sm, needLineColumns: needLineColumns, index: -1}
}

// Convert maps raw to exactly one converted token per input token
func Convert(sm *SourceManager, raw []RawToken, needLineColumns bool) []Token {
	c := NewConverter(sm, needLineColumns)
	out := make([]Token, len(raw))
	for i := range raw {
		out[i] = c.Next(raw[i])
	}
	return out
}

// Next converts one token
func (c *Converter) Next(rt RawToken) Token {
	if rt.Kind == KindEOF {
		return EOF
	}
	if rt.Annotated {
		return c.annotated(rt)
	}
	if !rt.Loc.IsMacro() {
		c.resetExpansion()
		start := c.offset(rt.Loc)
		return c.plain(rt, start, start+rt.Length)
	}

	start, end := c.sm.ExpansionRange(rt.Loc)
	if c.expMarker == nil || start != c.expStart || end != c.expEnd {
		c.expStart, c.expEnd = start, end
		c.expMarker = c.marker(end)
		c.index = -1
	}
	c.index++

	// a macro token is reported at the start of its use site
	off := c.offset(start)
	inner := c.plain(rt, off, off)
	return &MacroExpanded{inner: inner, end: c.expMarker, index: c.index}
}

func (c *Converter) annotated(rt RawToken) Token {
	c.resetExpansion()
	start := c.sm.FileLocOf(rt.Loc)
	end := rt.AnnotationEnd
	if !end.IsValid() {
		end = start
	}
	if end.IsMacro() {
		_, end = c.sm.ExpansionRange(end)
	}
	inner := c.marker(start)
	return &MacroExpanded{inner: inner, end: c.marker(end), index: -1}
}

func (c *Converter) resetExpansion() {
	c.expStart, c.expEnd = NoLoc, NoLoc
	c.expMarker = nil
	c.index = -1
}

func (c *Converter) marker(l Loc) Token {
	off := c.offset(l)
	m := &markerToken{span: span{offset: off, end: off}}
	c.setLines(&m.span, l, l)
	return m
}

func (c *Converter) offset(l Loc) int {
	_, off := c.sm.Decompose(l)
	return off
}

// plain builds the token for rt covering [start, end)
func (c *Converter) plain(rt RawToken, start, end int) Token {
	kind, text, lite := classify(rt)
	if end < start {
		end = start
	}
	s := span{offset: start, end: end}
	if rt.Loc.IsMacro() {
		l := c.sm.FileLocOf(rt.Loc)
		c.setLines(&s, l, l)
	} else {
		c.setLines(&s, rt.Loc, rt.Loc+Loc(rt.Length))
	}
	if lite {
		return &liteToken{span: s, kind: kind, text: text}
	}
	return &textToken{span: s, kind: kind, text: text}
}

func (c *Converter) setLines(s *span, start, end Loc) {
	if !c.needLineColumns {
		s.line, s.column, s.endLine, s.endCol = NoLine, NoColumn, NoLine, NoColumn
		return
	}
	s.line, s.column = c.sm.Position(start)
	s.endLine, s.endCol = c.sm.Position(end)
}

// classify maps a raw kind to the converted kind and text. Keywords become
// identifiers, digraphs become their canonical punctuator and a decimal
// integer starting with 0 is octal. lite is true when text is interned.
func classify(rt RawToken) (kind Kind, text string, lite bool) {
	text = cleanSpelling(rt.Text, rt.Length)
	switch rt.Kind {
	case KindKeyword:
		if k, ok := allKeywords[text]; ok {
			return KindIdent, k, true
		}
		return KindIdent, text, false
	case KindIdent:
		if k, ok := allKeywords[text]; ok {
			return KindIdent, k, true
		}
		return KindIdent, text, false
	case KindPunctuator:
		if p, ok := canonicalPunctuator(text); ok {
			return KindPunctuator, p, true
		}
		return KindPunctuator, text, false
	case KindIntLiteral:
		if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
			return KindHexLiteral, text, false
		}
		if strings.HasPrefix(text, "0") {
			if text == "0" {
				return KindOctalLiteral, "0", true
			}
			return KindOctalLiteral, text, false
		}
		return KindIntLiteral, text, false
	default:
		return rt.Kind, text, false
	}
}

// cleanSpelling removes line continuations and never returns more than
// length bytes
func cleanSpelling(text string, length int) string {
	if strings.Contains(text, "\\\n") || strings.Contains(text, "\\\r\n") {
		text = strings.ReplaceAll(text, "\\\r\n", "")
		text = strings.ReplaceAll(text, "\\\n", "")
	}
	if length >= 0 && len(text) > length {
		text = text[:length]
	}
	return text
}
