package frontend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/ppbridge/internal/tokens"
	"github.com/dshills/ppbridge/internal/tracker"
)

// newExpander defines each "NAME(params) body" or "NAME body" entry
func newExpander(defs ...string) *expander {
	lx := newLexer(false)
	e := &expander{macros: make(map[string]*macro), lx: lx}
	for _, d := range defs {
		head, body, _ := strings.Cut(d, " ")
		name, params := head, []string(nil)
		if i := strings.IndexByte(head, '('); i >= 0 {
			name = head[:i]
			params = []string{}
			for _, p := range strings.Split(strings.TrimSuffix(head[i+1:], ")"), ",") {
				if p != "" {
					params = append(params, p)
				}
			}
		}
		e.macros[name] = &macro{
			def:     &tracker.MacroDef{Name: name, Params: params},
			body:    lx.lex([]byte(body), 0),
			params:  params,
			bodyLoc: tokens.NoLoc,
		}
	}
	return e
}

func expandText(e *expander, src string) string {
	toks := e.rescan(e.lx.lex([]byte(src), 0), nil, 0)
	parts := make([]string, len(toks))
	for i, t := range toks {
		parts[i] = t.text
	}
	return strings.Join(parts, " ")
}

func TestExpander(t *testing.T) {
	tests := []struct {
		name string
		defs []string
		src  string
		want string
	}{
		{"object", []string{"N 42"}, "x = N;", "x = 42 ;"},
		{"nested", []string{"A B+1", "B 2"}, "A", "2 + 1"},
		{"self reference stops", []string{"X X+1"}, "X", "X + 1"},
		{"mutual recursion stops", []string{"P Q", "Q P"}, "P", "P"},
		{"function", []string{"ADD(a,b) a+b"}, "ADD(1,(2,3))", "1 + ( 2 , 3 )"},
		{"function without call", []string{"F(x) x"}, "F + 1", "F + 1"},
		{"empty arguments", []string{"E() 7"}, "E()", "7"},
		{"stringify", []string{"S(x) #x"}, `S(a "b")`, `"a \"b\""`},
		{"paste", []string{"CAT(a,b) a##b"}, "CAT(foo,bar)", "foobar"},
		{"paste empty", []string{"CAT(a,b) a##b"}, "CAT(foo,)", "foo"},
		{"variadic", []string{"V(f,...) f(__VA_ARGS__)"}, "V(g,1,2)", "g ( 1 , 2 )"},
		{"argument pre-expansion", []string{"ID(x) x", "K 5"}, "ID(K)", "5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandText(newExpander(tt.defs...), tt.src))
		})
	}
}

func TestCollectArgs(t *testing.T) {
	lx := newLexer(false)
	toks := lx.lex([]byte("f(a, (b, c), d) rest"), 0)

	args, end, ok := collectArgs(toks, 1)
	assert.True(t, ok)
	assert.Len(t, args, 3)
	assert.Equal(t, "rest", toks[end].text)

	_, _, ok = collectArgs(lx.lex([]byte("f(a, b"), 0), 1)
	assert.False(t, ok)
}

func TestExpandedTokensAreSynthesized(t *testing.T) {
	e := newExpander("N 42")
	toks := e.expand(e.macros["N"], nil)
	assert.Len(t, toks, 1)
	assert.Equal(t, -1, toks[0].off)
	assert.Equal(t, -1, toks[0].end)
}
