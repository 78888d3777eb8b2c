package frontend

import (
	"strings"

	"github.com/dshills/ppbridge/internal/tokens"
)

// lexToken is one preprocessing token. off and end are byte offsets in the
// buffer the text was lexed from; they are -1 for synthesized tokens.
type lexToken struct {
	kind     tokens.Kind
	text     string
	off, end int
	// hide blocks re-expansion of a macro name produced by its own expansion
	hide bool
}

var punctByLen = [][]string{
	{"%:%:"},
	{"...", "<<=", ">>=", "->*"},
	{"->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||", "*=", "/=", "%=", "+=", "-=", "&=", "^=", "|=", "##", "::", ".*", "<:", ":>", "<%", "%>", "%:"},
	{"[", "]", "(", ")", "{", "}", ".", "&", "*", "+", "-", "~", "!", "/", "%", "<", ">", "^", "|", "?", ":", ";", "=", ",", "#"},
}

// lexer tokenizes C and C++ source. Comments and line continuations are
// skipped; keywords are reported as KindKeyword.
type lexer struct {
	src      []byte
	base     int
	keywords *tokens.KeywordFilter
}

func newLexer(cplusplus bool) *lexer {
	return &lexer{keywords: tokens.NewKeywordFilter(cplusplus)}
}

// lex tokenizes src whose first byte sits at offset base of its buffer
func (l *lexer) lex(src []byte, base int) []lexToken {
	l.src, l.base = src, base
	var out []lexToken
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\\' && i+1 < len(src) && src[i+1] == '\n':
			i += 2
		case c == '\\' && i+2 < len(src) && src[i+1] == '\r' && src[i+2] == '\n':
			i += 3
		case isSpace(c):
			i++
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			i += 2
			for i+1 < len(src) && !(src[i] == '*' && src[i+1] == '/') {
				i++
			}
			i += 2
			if i > len(src) {
				i = len(src)
			}
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			out = append(out, l.number(i))
			i = out[len(out)-1].end - base
		case c == '"' || c == '\'':
			out = append(out, l.quoted(i, i))
			i = out[len(out)-1].end - base
		case isIdentStart(c):
			j := i
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			if j < len(src) && (src[j] == '"' || src[j] == '\'') && isLiteralPrefix(string(src[i:j])) {
				if src[j-1] == 'R' {
					out = append(out, l.raw(i, j))
				} else {
					out = append(out, l.quoted(i, j))
				}
				i = out[len(out)-1].end - base
				continue
			}
			text := string(src[i:j])
			kind := tokens.KindIdent
			if l.keywords.IsKeyword(text) {
				kind = tokens.KindKeyword
			}
			out = append(out, lexToken{kind: kind, text: text, off: base + i, end: base + j})
			i = j
		default:
			out = append(out, l.punct(i))
			i = out[len(out)-1].end - base
		}
	}
	return out
}

func (l *lexer) number(i int) lexToken {
	src := l.src
	j := i
	float := false
	hex := j+1 < len(src) && src[j] == '0' && (src[j+1] == 'x' || src[j+1] == 'X')
loop:
	for j < len(src) {
		c := src[j]
		switch {
		case (c == '+' || c == '-') && j > i && isExponent(src[j-1], hex):
			float = true
			j++
		case c == '.':
			float = true
			j++
		case isIdentPart(c) || c == '\'':
			j++
		default:
			break loop
		}
	}
	text := string(src[i:j])
	if hex {
		float = float || strings.ContainsAny(text[2:], "pP")
	} else {
		float = float || strings.ContainsAny(text, "eE")
	}
	kind := tokens.KindIntLiteral
	if float {
		kind = tokens.KindFloatLiteral
	}
	return lexToken{kind: kind, text: text, off: l.base + i, end: l.base + j}
}

// quoted lexes a character or string literal whose quote is at q
func (l *lexer) quoted(start, q int) lexToken {
	src := l.src
	quote := src[q]
	j := q + 1
	for j < len(src) && src[j] != quote && src[j] != '\n' {
		if src[j] == '\\' && j+1 < len(src) {
			j++
		}
		j++
	}
	if j < len(src) && src[j] == quote {
		j++
	}
	kind := tokens.KindStringLiteral
	if quote == '\'' {
		kind = tokens.KindCharLiteral
	}
	return lexToken{kind: kind, text: string(src[start:j]), off: l.base + start, end: l.base + j}
}

// raw lexes a C++ raw string literal R"delim(...)delim" whose quote is at q
func (l *lexer) raw(start, q int) lexToken {
	src := l.src
	j := q + 1
	for j < len(src) && src[j] != '(' && src[j] != '\n' {
		j++
	}
	closing := ")" + string(src[q+1:j]) + "\""
	end := len(src)
	for k := j; k+len(closing) <= len(src); k++ {
		if string(src[k:k+len(closing)]) == closing {
			end = k + len(closing)
			break
		}
	}
	return lexToken{kind: tokens.KindStringLiteral, text: string(src[start:end]), off: l.base + start, end: l.base + end}
}

func (l *lexer) punct(i int) lexToken {
	src := l.src
	for n, group := range punctByLen {
		width := len(punctByLen) - n
		if i+width > len(src) {
			continue
		}
		s := string(src[i : i+width])
		for _, p := range group {
			if p == s {
				return lexToken{kind: tokens.KindPunctuator, text: s, off: l.base + i, end: l.base + i + width}
			}
		}
	}
	return lexToken{kind: tokens.KindOther, text: string(src[i : i+1]), off: l.base + i, end: l.base + i + 1}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isExponent(c byte, hex bool) bool {
	if hex {
		return c == 'p' || c == 'P'
	}
	return c == 'e' || c == 'E'
}

func isLiteralPrefix(s string) bool {
	switch s {
	case "L", "u", "U", "u8", "R", "LR", "uR", "UR", "u8R":
		return true
	}
	return false
}
