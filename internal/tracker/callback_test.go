package tracker

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ppbridge/internal/macros"
	"github.com/dshills/ppbridge/internal/tokens"
	"github.com/dshills/ppbridge/pkg/types"
)

const (
	mainSrc = "#include \"a.h\"\nint x = X;\n"
	aSrc    = "#define X 1\n"
)

func TestCallback_EndToEnd(t *testing.T) {
	h := newHarness(t, "/proj/main.c", map[string]string{
		"/proj/main.c": mainSrc,
		"/proj/a.h":    aSrc,
	})
	stack := NewIncludeStack()
	cb := New(h.entry, h.sm, Options{IncludeHandler: stack, NeedLineColumns: true})

	h.enter(cb, "", "/proj/main.c")
	require.Equal(t, 1, cb.Depth())
	assert.Equal(t, 0, cb.Current().FileIndex())
	assert.Nil(t, cb.Current().InclusionDirective())

	h.include(cb, "/proj/main.c", 0, "a.h", "/proj/a.h", "", 0)
	inc := cb.Current().includes[0]
	require.NotNil(t, inc.Resolved)
	assert.True(t, strings.HasSuffix(inc.Resolved.Path, "a.h"))
	assert.True(t, types.IsAbsolute(inc.Resolved.Path))
	assert.Empty(t, inc.Resolved.SearchRoot)
	assert.Equal(t, types.NoSearchIndex, inc.Resolved.SearchIndex)
	assert.True(t, inc.Resolved.DefaultSearchRoot)

	h.enter(cb, "/proj/main.c", "/proj/a.h")
	require.Equal(t, 2, cb.Depth())
	assert.Equal(t, 1, stack.Depth())
	def := &MacroDef{ID: 1, Name: "X", Start: h.loc("/proj/a.h", 0), End: h.loc("/proj/a.h", 11), NameLoc: h.loc("/proj/a.h", 8)}
	cb.OnMacroDefined(def)
	h.exit(cb, "/proj/a.h", "/proj/main.c")
	require.Equal(t, 1, cb.Depth())
	assert.Equal(t, 0, stack.Depth())
	assert.Nil(t, cb.Result())

	cb.OnMacroExpansion("X", def, h.loc("/proj/main.c", 23), h.loc("/proj/main.c", 24))
	h.exit(cb, "/proj/main.c", "")
	assert.Equal(t, 0, cb.Depth())

	main := cb.Result()
	require.NotNil(t, main)
	files := cb.Files()
	require.Len(t, files, 2)
	a := files[1]
	assert.Equal(t, 1, a.FileIndex())
	assert.Same(t, inc, a.InclusionDirective())

	aMacros := a.PreprocessorDirectives().Macros
	require.Len(t, aMacros, 1)
	assert.Equal(t, "X", aMacros[0].Name)
	assert.Equal(t, "/proj/a.h", aMacros[0].File)
	assert.Equal(t, types.Range{Start: 0, End: 11}, aMacros[0].Range)
	assert.Equal(t, 8, aMacros[0].NameOffset)
	assert.Empty(t, main.PreprocessorDirectives().Macros)

	exp := main.MacroExpansions()
	require.Len(t, exp, 1)
	assert.Equal(t, types.Range{Start: 23, End: 24}, exp[0].Range)
	require.NotNil(t, exp[0].Directive)
	assert.Equal(t, "/proj/a.h", exp[0].Directive.File)

	cached := stack.Cached()
	require.Len(t, cached, 2)
	assert.Equal(t, "/proj/a.h", cached[0].FilePath())
	assert.Equal(t, "/proj/main.c", cached[1].FilePath())
}

func TestCallback_SearchPathInclude(t *testing.T) {
	h := newHarness(t, "/proj/main.c", map[string]string{
		"/proj/main.c":      mainSrc,
		"/proj/include/a.h": aSrc,
	})
	cb := New(h.entry, h.sm, Options{})
	h.enter(cb, "", "/proj/main.c")
	h.include(cb, "/proj/main.c", 0, "a.h", "/proj/include/a.h", "/proj/include", 0)

	d, ok := cb.Annotations().Get(h.node)
	require.True(t, ok)
	require.NoError(t, d.Resolved.Validate())
	assert.Equal(t, "/proj/include", d.Resolved.SearchRoot)
	assert.Equal(t, 0, d.Resolved.SearchIndex)
	assert.False(t, d.Resolved.DefaultSearchRoot)
}

func TestCallback_UnresolvedInclude(t *testing.T) {
	h := newHarness(t, "/proj/main.c", map[string]string{"/proj/main.c": mainSrc})
	cb := New(h.entry, h.sm, Options{})
	h.enter(cb, "", "/proj/main.c")
	h.include(cb, "/proj/main.c", 0, "a.h", "", "", 0)
	h.exit(cb, "/proj/main.c", "")

	incs := cb.Result().PreprocessorDirectives().Includes
	require.Len(t, incs, 1)
	assert.Nil(t, incs[0].Resolved)
	assert.False(t, incs[0].IsResolved())
	assert.Equal(t, "a.h", incs[0].Spelling)
}

func TestCallback_RemoteSpellingIsAngled(t *testing.T) {
	h := newHarness(t, "/proj/main.c", map[string]string{"/proj/main.c": "#include \"rfs:host:/x.h\"\n"})
	cb := New(h.entry, h.sm, Options{})
	h.enter(cb, "", "/proj/main.c")
	d := cb.OnInclusionDirective(InclusionEvent{Node: 7, Spelling: "rfs:host:/x.h", Start: h.loc("/proj/main.c", 0), End: h.loc("/proj/main.c", 24)})
	require.NotNil(t, d)
	assert.True(t, d.Angled)
}

func TestCallback_DirectiveIndexes(t *testing.T) {
	src := "#include \"a.h\"\n#include \"b.h\"\n#include \"c.h\"\n"
	h := newHarness(t, "/proj/main.c", map[string]string{"/proj/main.c": src})
	cb := New(h.entry, h.sm, Options{})
	h.enter(cb, "", "/proj/main.c")
	for i, name := range []string{"a.h", "b.h", "c.h"} {
		h.include(cb, "/proj/main.c", i*15, name, "", "", 0)
	}
	h.exit(cb, "/proj/main.c", "")

	incs := cb.Result().PreprocessorDirectives().Includes
	require.Len(t, incs, 3)
	for i, d := range incs {
		assert.Equal(t, i, d.Index)
		assert.Equal(t, i*15, d.Start)
	}
	assert.Equal(t, 3, cb.Annotations().Len())
}

func TestAnnotations_InsertOnce(t *testing.T) {
	a := NewAnnotations()
	d1 := &types.InclusionDirective{Spelling: "a.h"}
	require.NoError(t, a.Insert(1, d1))
	err := a.Insert(1, &types.InclusionDirective{Spelling: "b.h"})
	assert.ErrorIs(t, err, types.ErrAlreadyAnnotated)

	got, ok := a.Get(1)
	require.True(t, ok)
	assert.Same(t, d1, got)
	_, ok = a.Get(2)
	assert.False(t, ok)
}

func TestCallback_BuiltinBuffers(t *testing.T) {
	h := newHarness(t, "/proj/main.c", map[string]string{
		"/proj/main.c":  "#include \"a.h\"\nint v = PLATFORM;\n",
		"/proj/a.h":     "\n",
		"/proj/force.h": "\n",
	})
	predefs := h.builtin(BuiltinBuffer, "#define PLATFORM 1\n#include \"/proj/force.h\"\n")
	cb := New(h.entry, h.sm, Options{})

	h.enter(cb, "", "/proj/main.c")
	cb.OnEnter(h.buf("/proj/main.c"), predefs)
	assert.True(t, cb.InBuiltin())
	assert.Equal(t, 1, cb.Depth())

	platform := &MacroDef{ID: 1, Name: "PLATFORM", Start: h.loc(BuiltinBuffer, 0), End: h.loc(BuiltinBuffer, 18), NameLoc: h.loc(BuiltinBuffer, 8)}
	cb.OnMacroDefined(platform)
	h.include(cb, BuiltinBuffer, 19, "/proj/force.h", "/proj/force.h", "", 0)
	h.enter(cb, BuiltinBuffer, "/proj/force.h")
	assert.Equal(t, 2, cb.Depth())
	h.exit(cb, "/proj/force.h", BuiltinBuffer)
	cb.OnExit(predefs, h.buf("/proj/main.c"))
	assert.False(t, cb.InBuiltin())

	h.include(cb, "/proj/main.c", 0, "a.h", "/proj/a.h", "", 0)
	h.enter(cb, "/proj/main.c", "/proj/a.h")
	h.exit(cb, "/proj/a.h", "/proj/main.c")
	cb.OnMacroExpansion("PLATFORM", platform, h.loc("/proj/main.c", 23), h.loc("/proj/main.c", 31))
	h.exit(cb, "/proj/main.c", "")

	main := cb.Result()
	dirs := main.PreprocessorDirectives()
	require.Len(t, dirs.Includes, 2)

	forced := dirs.Includes[0]
	assert.True(t, forced.ForcedInclude)
	assert.Equal(t, -1, forced.Start)
	assert.Equal(t, 0, forced.Index)
	require.NotNil(t, forced.Resolved)
	assert.Equal(t, "/proj/force.h", forced.Resolved.Path)

	real := dirs.Includes[1]
	assert.False(t, real.ForcedInclude)
	assert.Equal(t, 0, real.Start)
	assert.Equal(t, 1, real.Index)
	assert.Less(t, forced.Start, real.Start)

	assert.Empty(t, dirs.Macros)
	exp := main.MacroExpansions()
	require.Len(t, exp, 1)
	assert.True(t, exp[0].Directive.IsBuiltin())
}

func TestCallback_ForcedHeaderKeepsItsDirectives(t *testing.T) {
	pre := "#ifndef PRE_H\n#define PRE_H\n#include \"b.h\"\n#define Q 3\n#endif\n"
	h := newHarness(t, "/proj/main.c", map[string]string{
		"/proj/main.c": "int x = Q;\n",
		"/proj/pre.h":  pre,
		"/proj/b.h":    "#define B 1\n",
	})
	cmdline := h.builtin(CommandLineBuffer, "#include \"/proj/pre.h\"\n")
	cb := New(h.entry, h.sm, Options{})

	h.enter(cb, "", "/proj/main.c")
	cb.OnEnter(h.buf("/proj/main.c"), cmdline)
	h.include(cb, CommandLineBuffer, 0, "/proj/pre.h", "/proj/pre.h", "", types.NoSearchIndex)
	h.enter(cb, CommandLineBuffer, "/proj/pre.h")
	assert.True(t, cb.InBuiltin())

	cb.OnFileGuard("PRE_H", h.loc("/proj/pre.h", 8))
	cb.OnMacroDefined(&MacroDef{ID: 1, Name: "PRE_H", Start: h.loc("/proj/pre.h", 14), End: h.loc("/proj/pre.h", 27), NameLoc: h.loc("/proj/pre.h", 22)})
	h.include(cb, "/proj/pre.h", 28, "b.h", "/proj/b.h", "", types.NoSearchIndex)
	h.enter(cb, "/proj/pre.h", "/proj/b.h")
	cb.OnMacroDefined(&MacroDef{ID: 2, Name: "B", Start: h.loc("/proj/b.h", 0), End: h.loc("/proj/b.h", 11), NameLoc: h.loc("/proj/b.h", 8)})
	h.exit(cb, "/proj/b.h", "/proj/pre.h")
	q := &MacroDef{ID: 3, Name: "Q", Start: h.loc("/proj/pre.h", 43), End: h.loc("/proj/pre.h", 54), NameLoc: h.loc("/proj/pre.h", 51)}
	cb.OnMacroDefined(q)
	cb.OnTokens([]tokens.RawToken{{Kind: tokens.KindEOF}})
	h.exit(cb, "/proj/pre.h", CommandLineBuffer)
	cb.OnExit(cmdline, h.buf("/proj/main.c"))

	cb.OnMacroExpansion("Q", q, h.loc("/proj/main.c", 8), h.loc("/proj/main.c", 9))
	h.exit(cb, "/proj/main.c", "")

	files := cb.Files()
	require.Len(t, files, 3)
	main, header, nested := files[0], files[1], files[2]

	incs := main.PreprocessorDirectives().Includes
	require.Len(t, incs, 1)
	assert.True(t, incs[0].ForcedInclude)
	assert.Equal(t, types.Range{Start: -1, End: -1}, incs[0].Range)
	assert.Equal(t, "/proj/pre.h", incs[0].Spelling)
	assert.Empty(t, main.PreprocessorDirectives().Macros)
	exp := main.MacroExpansions()
	require.Len(t, exp, 1)
	assert.Equal(t, "/proj/pre.h", exp[0].Directive.File)

	assert.Equal(t, "/proj/pre.h", header.FilePath())
	require.NotNil(t, header.FileGuard())
	assert.Equal(t, "PRE_H", header.FileGuard().Name)
	assert.Equal(t, 8, header.FileGuard().Offset)
	assert.True(t, header.HasTokenStream())
	dirs := header.PreprocessorDirectives()
	require.Len(t, dirs.Macros, 2)
	assert.Equal(t, "PRE_H", dirs.Macros[0].Name)
	assert.Equal(t, "Q", dirs.Macros[1].Name)
	assert.Equal(t, 51, dirs.Macros[1].NameOffset)
	require.Len(t, dirs.Includes, 1)
	assert.False(t, dirs.Includes[0].ForcedInclude)
	assert.Equal(t, "b.h", dirs.Includes[0].Spelling)
	assert.Equal(t, 28, dirs.Includes[0].Start)

	assert.Equal(t, "/proj/b.h", nested.FilePath())
	nestedMacros := nested.PreprocessorDirectives().Macros
	require.Len(t, nestedMacros, 1)
	assert.Equal(t, "B", nestedMacros[0].Name)
}

func TestCallback_DelegateCancels(t *testing.T) {
	h := newHarness(t, "/proj/main.c", map[string]string{
		"/proj/main.c": mainSrc,
		"/proj/a.h":    aSrc,
	})
	dl := &recordingDelegate{stopAt: "/proj/a.h"}
	stack := NewIncludeStack()
	cb := New(h.entry, h.sm, Options{Delegate: dl, IncludeHandler: stack})

	h.enter(cb, "", "/proj/main.c")
	h.include(cb, "/proj/main.c", 0, "a.h", "/proj/a.h", "", 0)
	h.enter(cb, "/proj/main.c", "/proj/a.h")
	assert.True(t, cb.Cancelled())
	h.exit(cb, "/proj/a.h", "/proj/main.c")
	h.exit(cb, "/proj/main.c", "")

	assert.Equal(t, []string{"enter /proj/main.c", "include a.h", "enter /proj/a.h"}, dl.calls)
	assert.Equal(t, 0, cb.Depth())
	assert.Equal(t, 0, stack.Depth())
	require.NotNil(t, cb.Result())
	assert.Len(t, cb.Result().PreprocessorDirectives().Includes, 1)
}

func TestCallback_ExternalCancellation(t *testing.T) {
	h := newHarness(t, "/proj/main.c", map[string]string{"/proj/main.c": mainSrc})
	var stop bool
	dl := &recordingDelegate{}
	cb := New(h.entry, h.sm, Options{Delegate: dl, Interrupter: NewInterrupter(func() bool { return stop })})

	h.enter(cb, "", "/proj/main.c")
	stop = true
	h.exit(cb, "/proj/main.c", "")
	assert.Equal(t, []string{"enter /proj/main.c"}, dl.calls)
	assert.True(t, cb.Cancelled())
	assert.NotNil(t, cb.Result())
}

type fixedSearcher struct{ path string }

func (s fixedSearcher) Search(spelling string, angled bool, includer string) (*types.ResolvedPath, bool) {
	if s.path == "" {
		return nil, false
	}
	return &types.ResolvedPath{Path: s.path, SearchIndex: types.NoSearchIndex}, true
}

func TestCallback_NotFoundRecovery(t *testing.T) {
	h := newHarness(t, "/proj/main.c", map[string]string{"/proj/main.c": mainSrc})

	cb := New(h.entry, h.sm, Options{RecoverNotFound: true, Searcher: fixedSearcher{path: "/usr/local/include/sys/x.h"}})
	h.enter(cb, "", "/proj/main.c")
	dir, ok := cb.OnNotFoundInclusionDirective("sys/x.h", true)
	require.True(t, ok)
	assert.Equal(t, "/usr/local/include", dir)

	_, ok = cb.OnNotFoundInclusionDirective("other/x.h", true)
	assert.False(t, ok)

	disabled := New(h.entry, h.sm, Options{Searcher: fixedSearcher{path: "/usr/local/include/sys/x.h"}})
	_, ok = disabled.OnNotFoundInclusionDirective("sys/x.h", true)
	assert.False(t, ok)
}

func TestCallback_ErrorDirective(t *testing.T) {
	h := newHarness(t, "/proj/main.c", map[string]string{
		"/proj/main.c": mainSrc,
		"/proj/a.h":    "#error broken\n#warning meh\n",
	})
	table := macros.NewFileTable(nil, []string{"A=1"})
	cb := New(h.entry, h.sm, Options{Macros: table})

	h.enter(cb, "", "/proj/main.c")
	h.include(cb, "/proj/main.c", 0, "a.h", "/proj/a.h", "", 0)
	h.enter(cb, "/proj/main.c", "/proj/a.h")
	ed := cb.OnUserDiagnosticDirective(DiagError, h.loc("/proj/a.h", 0), h.loc("/proj/a.h", 13), "broken")
	require.NotNil(t, ed)
	assert.True(t, cb.RecoverFromErrorDirective())
	assert.Nil(t, cb.OnUserDiagnosticDirective(DiagWarning, h.loc("/proj/a.h", 14), h.loc("/proj/a.h", 26), "meh"))
	h.exit(cb, "/proj/a.h", "/proj/main.c")
	h.exit(cb, "/proj/main.c", "")

	a := cb.Files()[1]
	assert.True(t, a.Aborted())
	assert.False(t, cb.Result().Aborted())

	errs := a.PreprocessorDirectives().Errors
	require.Len(t, errs, 1)
	assert.Equal(t, "broken", errs[0].Message)
	assert.Equal(t, types.Range{Start: 0, End: 13}, errs[0].Range)
	state, ok := errs[0].State.(*macros.State)
	require.True(t, ok)
	assert.True(t, state.Cleaned())
	assert.Equal(t, table.Snapshot().Checksum(), state.Checksum())
}

func TestFileInfo_GuardSkippedAndTokens(t *testing.T) {
	src := "#ifndef OUTER\n#ifndef A_H\n#define A_H\n#if 0\nx\n#endif\nint y;\n#endif\n#endif\n"
	h := newHarness(t, "/proj/a.h", map[string]string{"/proj/a.h": src})
	cb := New(h.entry, h.sm, Options{NeedLineColumns: true})

	h.enter(cb, "", "/proj/a.h")
	cb.OnFileGuard("OUTER", h.loc("/proj/a.h", 8))
	cb.OnFileGuard("A_H", h.loc("/proj/a.h", 22))
	cb.OnMacroUsage("A_H", nil, h.loc("/proj/a.h", 22), h.loc("/proj/a.h", 25))
	cb.OnSkippedRange(h.loc("/proj/a.h", 38), h.loc("/proj/a.h", 52))
	id := h.buf("/proj/a.h").ID
	cb.OnTokens([]tokens.RawToken{
		{Kind: tokens.KindKeyword, Loc: h.sm.FileLoc(id, 53), Length: 3, Text: "int"},
		{Kind: tokens.KindIdent, Loc: h.sm.FileLoc(id, 57), Length: 1, Text: "y"},
		{Kind: tokens.KindPunctuator, Loc: h.sm.FileLoc(id, 58), Length: 1, Text: ";"},
		{Kind: tokens.KindEOF},
	})
	h.exit(cb, "/proj/a.h", "")

	fi := cb.Result()
	require.NotNil(t, fi.FileGuard())
	assert.Equal(t, types.FileGuard{Name: "A_H", Offset: 22, Length: 3}, *fi.FileGuard())
	assert.Equal(t, []types.Range{{Start: 38, End: 52}}, fi.SkippedRanges())

	usages := fi.MacroUsages()
	require.Len(t, usages, 1)
	assert.Nil(t, usages[0].Directive)

	require.True(t, fi.HasTokenStream())
	ts := fi.TokenStream()
	require.Len(t, ts, 4)
	assert.Equal(t, "int", ts[0].Text())
	assert.Equal(t, 7, ts[0].Line())
	assert.Same(t, tokens.EOF, ts[3])
}

func TestFileInfo_MaterializeOnceConcurrently(t *testing.T) {
	h := newHarness(t, "/proj/main.c", map[string]string{"/proj/main.c": mainSrc, "/proj/a.h": aSrc})
	cb := New(h.entry, h.sm, Options{})
	h.enter(cb, "", "/proj/main.c")
	def := &MacroDef{ID: 9, Name: "X", Start: h.loc("/proj/a.h", 0), End: h.loc("/proj/a.h", 11), NameLoc: h.loc("/proj/a.h", 8)}
	cb.OnMacroExpansion("X", def, h.loc("/proj/main.c", 23), h.loc("/proj/main.c", 24))
	cb.OnMacroUsage("X", def, h.loc("/proj/main.c", 23), h.loc("/proj/main.c", 24))
	h.exit(cb, "/proj/main.c", "")
	fi := cb.Result()

	var wg sync.WaitGroup
	got := make([]*types.MacroDirective, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = fi.MacroExpansions()[0].Directive
		}(i)
	}
	wg.Wait()
	for _, d := range got {
		assert.Same(t, got[0], d)
	}
	// usages and expansions of one definition share the directive
	assert.Same(t, got[0], fi.MacroUsages()[0].Directive)
}

func TestInterrupter(t *testing.T) {
	i := NewInterrupter(nil)
	assert.False(t, i.Cancelled())
	i.Cancel()
	assert.True(t, i.Cancelled())
}
