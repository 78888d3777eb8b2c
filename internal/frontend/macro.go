package frontend

import (
	"strings"

	"github.com/dshills/ppbridge/internal/tokens"
	"github.com/dshills/ppbridge/internal/tracker"
	"github.com/dshills/ppbridge/pkg/types"
)

const maxExpansionDepth = 64

type macro struct {
	def     *tracker.MacroDef
	body    []lexToken
	params  []string // nil for object-like macros
	bodyLoc tokens.Loc
}

func (m *macro) variadic() bool {
	return len(m.params) > 0 && m.params[len(m.params)-1] == types.VariadicMarker
}

func (m *macro) param(name string) int {
	for i, p := range m.params {
		if p == name || (p == types.VariadicMarker && name == "__VA_ARGS__") {
			return i
		}
	}
	return -1
}

// expander performs macro replacement over token lists
type expander struct {
	macros map[string]*macro
	lx     *lexer
}

// lookup returns the macro t would expand, nil when t is not expandable
func (e *expander) lookup(t lexToken, hide map[string]bool) *macro {
	if t.hide || (t.kind != tokens.KindIdent && t.kind != tokens.KindKeyword) || hide[t.text] {
		return nil
	}
	return e.macros[t.text]
}

// expand replaces one invocation of m and rescans the result
func (e *expander) expand(m *macro, args [][]lexToken) []lexToken {
	return e.rescan(e.substitute(m, args, nil, 0), map[string]bool{m.def.Name: true}, 1)
}

// rescan expands every macro invocation in toks
func (e *expander) rescan(toks []lexToken, hide map[string]bool, depth int) []lexToken {
	if depth > maxExpansionDepth {
		return toks
	}
	var out []lexToken
	for i := 0; i < len(toks); {
		t := toks[i]
		if hide[t.text] && (t.kind == tokens.KindIdent || t.kind == tokens.KindKeyword) {
			t.hide = true
		}
		m := e.lookup(t, hide)
		if m == nil {
			out = append(out, t)
			i++
			continue
		}
		end := i + 1
		var args [][]lexToken
		if m.params != nil {
			var ok bool
			if args, end, ok = collectArgs(toks, i+1); !ok {
				out = append(out, t)
				i++
				continue
			}
		}
		inner := make(map[string]bool, len(hide)+1)
		for k := range hide {
			inner[k] = true
		}
		inner[m.def.Name] = true
		out = append(out, e.rescan(e.substitute(m, args, hide, depth), inner, depth+1)...)
		i = end
	}
	return out
}

// substitute replaces parameters in the body of m with args
func (e *expander) substitute(m *macro, args [][]lexToken, hide map[string]bool, depth int) []lexToken {
	if m.params == nil {
		return synthesize(m.body)
	}
	argFor := func(idx int) []lexToken {
		if m.variadic() && idx == len(m.params)-1 {
			var va []lexToken
			for j := idx; j < len(args); j++ {
				if j > idx {
					va = append(va, lexToken{kind: tokens.KindPunctuator, text: ",", off: -1, end: -1})
				}
				va = append(va, args[j]...)
			}
			return va
		}
		if idx < len(args) {
			return args[idx]
		}
		return nil
	}

	body := m.body
	var out []lexToken
	for k := 0; k < len(body); k++ {
		t := body[k]
		switch {
		case t.text == "#" && k+1 < len(body) && m.param(body[k+1].text) >= 0:
			out = append(out, stringify(argFor(m.param(body[k+1].text))))
			k++
		case t.text == "##" && len(out) > 0 && k+1 < len(body):
			next := body[k+1]
			var rest []lexToken
			if idx := m.param(next.text); idx >= 0 {
				arg := argFor(idx)
				if len(arg) == 0 {
					k++
					continue
				}
				next, rest = arg[0], arg[1:]
			}
			out[len(out)-1] = e.paste(out[len(out)-1], next)
			out = append(out, synthesize(rest)...)
			k++
		case t.kind == tokens.KindIdent || t.kind == tokens.KindKeyword:
			idx := m.param(t.text)
			if idx < 0 {
				out = append(out, synth(t))
				continue
			}
			arg := argFor(idx)
			if k+1 < len(body) && body[k+1].text == "##" {
				out = append(out, synthesize(arg)...)
				continue
			}
			out = append(out, synthesize(e.rescan(arg, hide, depth+1))...)
		default:
			out = append(out, synth(t))
		}
	}
	return out
}

// paste concatenates two tokens and re-lexes the result
func (e *expander) paste(a, b lexToken) lexToken {
	text := a.text + b.text
	lexed := e.lx.lex([]byte(text), 0)
	if len(lexed) == 1 {
		return synth(lexed[0])
	}
	return lexToken{kind: tokens.KindOther, text: text, off: -1, end: -1}
}

// collectArgs parses a parenthesized argument list starting at toks[i].
// It returns the arguments and the index just past the closing parenthesis.
func collectArgs(toks []lexToken, i int) ([][]lexToken, int, bool) {
	if i >= len(toks) || toks[i].text != "(" {
		return nil, 0, false
	}
	var args [][]lexToken
	var cur []lexToken
	depth := 0
	for j := i + 1; j < len(toks); j++ {
		t := toks[j]
		switch t.text {
		case "(":
			depth++
		case ")":
			if depth == 0 {
				if len(cur) > 0 || len(args) > 0 {
					args = append(args, cur)
				}
				return args, j + 1, true
			}
			depth--
		case ",":
			if depth == 0 {
				args = append(args, cur)
				cur = nil
				continue
			}
		}
		cur = append(cur, t)
	}
	return nil, 0, false
}

func stringify(arg []lexToken) lexToken {
	var b strings.Builder
	for i, t := range arg {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t.text)
	}
	s := strings.ReplaceAll(b.String(), `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return lexToken{kind: tokens.KindStringLiteral, text: `"` + s + `"`, off: -1, end: -1}
}

func synth(t lexToken) lexToken {
	t.off, t.end = -1, -1
	return t
}

func synthesize(ts []lexToken) []lexToken {
	out := make([]lexToken, len(ts))
	for i, t := range ts {
		out[i] = synth(t)
	}
	return out
}
