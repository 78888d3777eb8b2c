package frontend

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ppbridge/internal/compdb"
	"github.com/dshills/ppbridge/internal/fsys"
	"github.com/dshills/ppbridge/internal/macros"
	"github.com/dshills/ppbridge/internal/tokens"
	"github.com/dshills/ppbridge/internal/tracker"
	"github.com/dshills/ppbridge/pkg/types"
)

type result struct {
	cb    *tracker.Callback
	stack *tracker.IncludeStack
	err   error
}

func (r result) file(t *testing.T, path string) *tracker.FileInfo {
	t.Helper()
	for _, fi := range r.cb.Files() {
		if fi.FilePath() == path {
			return fi
		}
	}
	t.Fatalf("no file info for %s", path)
	return nil
}

func preprocess(t *testing.T, h *compdb.ProjectHandler, files map[string]string, opts Options) result {
	t.Helper()
	mem := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(mem, name, []byte(content), 0644))
	}
	reg := fsys.NewRegistry(fsys.Options{AlwaysUseVFS: true, VFS: fsys.NewVirtual("ide", mem, false)})
	if h.Lang == "" {
		h.Lang = "C"
	}
	entry := compdb.NewBuilder(reg, compdb.Options{}).Build(h)

	d := NewDriver(entry, reg, opts)
	stack := tracker.NewIncludeStack()
	cb := tracker.New(entry, d.SourceManager(), tracker.Options{
		IncludeHandler:  stack,
		Macros:          h.Macros(),
		NeedLineColumns: true,
	})
	err := d.Run(context.Background(), cb)
	return result{cb: cb, stack: stack, err: err}
}

func texts(ts []tokens.Token) []string {
	var out []string
	for _, t := range ts {
		if t == tokens.EOF {
			continue
		}
		out = append(out, t.Text())
	}
	return out
}

func TestDriver_IncludeAndExpansion(t *testing.T) {
	r := preprocess(t, &compdb.ProjectHandler{File: "/proj/main.c"}, map[string]string{
		"/proj/main.c": "#include \"a.h\"\nint x = X;\n",
		"/proj/a.h":    "#define X 1\n",
	}, Options{})
	require.NoError(t, r.err)

	main := r.cb.Result()
	require.NotNil(t, main)
	require.Len(t, r.cb.Files(), 2)

	incs := main.PreprocessorDirectives().Includes
	require.Len(t, incs, 1)
	assert.Equal(t, "a.h", incs[0].Spelling)
	assert.False(t, incs[0].Angled)
	assert.Equal(t, types.Range{Start: 0, End: 14}, incs[0].Range)
	require.NotNil(t, incs[0].Resolved)
	assert.Equal(t, "/proj/a.h", incs[0].Resolved.Path)
	assert.Empty(t, incs[0].Resolved.SearchRoot)
	assert.True(t, incs[0].Resolved.DefaultSearchRoot)

	a := r.file(t, "/proj/a.h")
	defs := a.PreprocessorDirectives().Macros
	require.Len(t, defs, 1)
	assert.Equal(t, "X", defs[0].Name)
	assert.Equal(t, types.Range{Start: 0, End: 11}, defs[0].Range)
	assert.Equal(t, 8, defs[0].NameOffset)

	toks := main.TokenStream()
	require.True(t, main.HasTokenStream())
	assert.Equal(t, []string{"int", "x", "=", "1", ";"}, texts(toks))
	assert.Same(t, tokens.EOF, toks[len(toks)-1])

	m, ok := toks[3].(*tokens.MacroExpanded)
	require.True(t, ok)
	assert.Equal(t, 0, m.Index())
	assert.Equal(t, 23, m.Offset())
	assert.Equal(t, tokens.KindIntLiteral, m.Kind())

	exp := main.MacroExpansions()
	require.Len(t, exp, 1)
	assert.Equal(t, types.Range{Start: 23, End: 24}, exp[0].Range)
	require.NotNil(t, exp[0].Directive)
	assert.Equal(t, "/proj/a.h", exp[0].Directive.File)
}

func TestDriver_FunctionLikeExpansion(t *testing.T) {
	src := "#define ADD(a,b) a+b\nint s = ADD(1,2);\n"

	t.Run("tokens", func(t *testing.T) {
		r := preprocess(t, &compdb.ProjectHandler{File: "/p/m.c"}, map[string]string{"/p/m.c": src}, Options{})
		require.NoError(t, r.err)
		toks := r.cb.Result().TokenStream()
		assert.Equal(t, []string{"int", "s", "=", "1", "+", "2", ";"}, texts(toks))
		for i, tok := range toks[3:6] {
			m, ok := tok.(*tokens.MacroExpanded)
			require.True(t, ok)
			assert.Equal(t, i, m.Index())
			assert.Equal(t, 29, m.Offset())
		}
		assert.False(t, tokens.IsMacroExpanded(toks[6]))

		defs := r.cb.Result().PreprocessorDirectives().Macros
		require.Len(t, defs, 1)
		assert.Equal(t, []string{"a", "b"}, defs[0].Params)
		assert.True(t, defs[0].IsFunctionLike())
	})

	t.Run("atomic", func(t *testing.T) {
		r := preprocess(t, &compdb.ProjectHandler{File: "/p/m.c"}, map[string]string{"/p/m.c": src}, Options{AtomicMacroExpansions: true})
		require.NoError(t, r.err)
		toks := r.cb.Result().TokenStream()
		require.Len(t, toks, 6)
		m, ok := toks[3].(*tokens.MacroExpanded)
		require.True(t, ok)
		assert.Equal(t, -1, m.Index())
		assert.Equal(t, 29, m.Offset())
		assert.Equal(t, 37, m.ExpansionEnd().Offset())
	})
}

func TestDriver_SearchDirectories(t *testing.T) {
	h := &compdb.ProjectHandler{
		File:           "/proj/main.c",
		UserIncludes:   compdb.Paths("/proj/inc"),
		SystemIncludes: compdb.Paths("/sys"),
	}
	r := preprocess(t, h, map[string]string{
		"/proj/main.c":    "#include <lib.h>\n#include \"sys.h\"\n#include <missing.h>\n",
		"/proj/inc/lib.h": "int lib;\n",
		"/sys/sys.h":      "int sys;\n",
	}, Options{})
	require.NoError(t, r.err)

	incs := r.cb.Result().PreprocessorDirectives().Includes
	require.Len(t, incs, 3)

	require.NotNil(t, incs[0].Resolved)
	assert.True(t, incs[0].Angled)
	assert.Equal(t, "/proj/inc/lib.h", incs[0].Resolved.Path)
	assert.Equal(t, 0, incs[0].Resolved.SearchIndex)
	assert.False(t, incs[0].Resolved.DefaultSearchRoot)

	require.NotNil(t, incs[1].Resolved)
	assert.Equal(t, "/sys/sys.h", incs[1].Resolved.Path)
	assert.Equal(t, 1, incs[1].Resolved.SearchIndex)

	assert.Nil(t, incs[2].Resolved)
	assert.Len(t, r.cb.Files(), 3)
}

func TestDriver_SkippedRanges(t *testing.T) {
	r := preprocess(t, &compdb.ProjectHandler{File: "/p/m.c"}, map[string]string{
		"/p/m.c": "#if 0\nint y;\n#endif\nint z;\n",
	}, Options{})
	require.NoError(t, r.err)
	main := r.cb.Result()
	assert.Equal(t, []types.Range{{Start: 5, End: 13}}, main.SkippedRanges())
	assert.Equal(t, []string{"int", "z", ";"}, texts(main.TokenStream()))
}

func TestDriver_Conditionals(t *testing.T) {
	src := "#define ON 1\n" +
		"#if defined(ON) && ON > 0\nint a;\n#else\nint b;\n#endif\n" +
		"#ifdef OFF\nint c;\n#elif ON\nint d;\n#endif\n" +
		"#ifndef OFF\nint e;\n#endif\n"
	r := preprocess(t, &compdb.ProjectHandler{File: "/p/m.c"}, map[string]string{"/p/m.c": src}, Options{})
	require.NoError(t, r.err)
	main := r.cb.Result()
	assert.Equal(t, []string{"int", "a", ";", "int", "d", ";", "int", "e", ";"}, texts(main.TokenStream()))
	assert.Len(t, main.SkippedRanges(), 2)

	var usages []string
	for _, u := range main.MacroUsages() {
		usages = append(usages, u.Name)
	}
	assert.Equal(t, []string{"ON", "OFF", "OFF"}, usages)
}

func TestDriver_HeaderGuard(t *testing.T) {
	r := preprocess(t, &compdb.ProjectHandler{File: "/p/m.c"}, map[string]string{
		"/p/m.c": "#include \"g.h\"\n#include \"g.h\"\n",
		"/p/g.h": "// guard\n#ifndef G_H\n#define G_H\nint g;\n#endif\n",
	}, Options{})
	require.NoError(t, r.err)

	assert.Len(t, r.cb.Result().PreprocessorDirectives().Includes, 2)
	require.Len(t, r.cb.Files(), 2)
	g := r.file(t, "/p/g.h")
	require.NotNil(t, g.FileGuard())
	assert.Equal(t, "G_H", g.FileGuard().Name)
	assert.Equal(t, 17, g.FileGuard().Offset)
	assert.Equal(t, 3, g.FileGuard().Length)
}

func TestDriver_PragmaOnce(t *testing.T) {
	r := preprocess(t, &compdb.ProjectHandler{File: "/p/m.c"}, map[string]string{
		"/p/m.c": "#include \"o.h\"\n#include \"o.h\"\n",
		"/p/o.h": "#pragma once\nint o;\n",
	}, Options{})
	require.NoError(t, r.err)
	assert.Len(t, r.cb.Files(), 2)
	assert.Nil(t, r.file(t, "/p/o.h").FileGuard())
}

func TestDriver_ErrorDirectiveAbortsFile(t *testing.T) {
	table := macros.NewFileTable(nil, []string{"USER=1"})
	r := preprocess(t, &compdb.ProjectHandler{File: "/p/m.c", MacroTable: table}, map[string]string{
		"/p/m.c": "#include \"e.h\"\nint tail;\n",
		"/p/e.h": "#error boom\nint after;\n",
	}, Options{})
	require.NoError(t, r.err)

	e := r.file(t, "/p/e.h")
	assert.True(t, e.Aborted())
	errs := e.PreprocessorDirectives().Errors
	require.Len(t, errs, 1)
	assert.Equal(t, "boom", errs[0].Message)
	state, ok := errs[0].State.(*macros.State)
	require.True(t, ok, "state is %T", errs[0].State)
	assert.True(t, state.Cleaned())
	assert.Equal(t, table.User().Checksum(), state.Checksum())
	assert.Empty(t, texts(e.TokenStream()))

	main := r.cb.Result()
	assert.False(t, main.Aborted())
	assert.Equal(t, []string{"int", "tail", ";"}, texts(main.TokenStream()))
}

func TestDriver_UndefAndWarning(t *testing.T) {
	r := preprocess(t, &compdb.ProjectHandler{File: "/p/m.c"}, map[string]string{
		"/p/m.c": "#define V 2\n#undef V\n#warning careful\nint v = V;\n",
	}, Options{})
	require.NoError(t, r.err)
	main := r.cb.Result()

	defs := main.PreprocessorDirectives().Macros
	require.Len(t, defs, 2)
	assert.True(t, defs[0].Defined)
	assert.False(t, defs[1].Defined)
	assert.Equal(t, "V", defs[1].Name)
	assert.Empty(t, main.PreprocessorDirectives().Errors)
	assert.Equal(t, []string{"int", "v", "=", "V", ";"}, texts(main.TokenStream()))
}

func TestDriver_ForcedIncludesAndCommandLine(t *testing.T) {
	table := macros.NewFileTable(nil, []string{"P=2"})
	h := &compdb.ProjectHandler{File: "/p/m.c", Forced: []string{"/p/pre.h"}, MacroTable: table}
	r := preprocess(t, h, map[string]string{
		"/p/m.c":   "#include \"a.h\"\nint p = P + Q;\n",
		"/p/a.h":   "",
		"/p/pre.h": "#define Q 3\n",
	}, Options{})
	require.NoError(t, r.err)

	main := r.cb.Result()
	incs := main.PreprocessorDirectives().Includes
	require.Len(t, incs, 2)
	assert.True(t, incs[0].ForcedInclude)
	assert.Equal(t, types.Range{Start: -1, End: -1}, incs[0].Range)
	assert.Equal(t, "/p/pre.h", incs[0].Spelling)
	assert.False(t, incs[1].ForcedInclude)
	assert.Equal(t, "a.h", incs[1].Spelling)

	assert.Equal(t, []string{"int", "p", "=", "2", "+", "3", ";"}, texts(main.TokenStream()))
	pre := r.file(t, "/p/pre.h")
	require.NotNil(t, pre.InclusionDirective())
	assert.Equal(t, "/p/pre.h", pre.InclusionDirective().Spelling)
	require.Len(t, pre.PreprocessorDirectives().Macros, 1)
	assert.Empty(t, main.PreprocessorDirectives().Macros)
}

func TestDriver_ForcedHeaderWithGuardAndNestedInclude(t *testing.T) {
	h := &compdb.ProjectHandler{File: "/p/m.c", Forced: []string{"/p/pre.h"}}
	r := preprocess(t, h, map[string]string{
		"/p/m.c":   "int v = Q + B;\n",
		"/p/pre.h": "#ifndef PRE_H\n#define PRE_H\n#include \"b.h\"\n#define Q 3\n#endif\n",
		"/p/b.h":   "#define B 4\n",
	}, Options{})
	require.NoError(t, r.err)

	main := r.cb.Result()
	incs := main.PreprocessorDirectives().Includes
	require.Len(t, incs, 1)
	assert.True(t, incs[0].ForcedInclude)
	assert.Equal(t, "/p/pre.h", incs[0].Spelling)
	assert.Equal(t, types.Range{Start: -1, End: -1}, incs[0].Range)
	assert.Empty(t, main.PreprocessorDirectives().Macros)
	assert.Equal(t, []string{"int", "v", "=", "3", "+", "4", ";"}, texts(main.TokenStream()))

	pre := r.file(t, "/p/pre.h")
	require.NotNil(t, pre.FileGuard())
	assert.Equal(t, "PRE_H", pre.FileGuard().Name)
	assert.True(t, pre.HasTokenStream())
	dirs := pre.PreprocessorDirectives()
	names := make([]string, 0, len(dirs.Macros))
	for _, m := range dirs.Macros {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"PRE_H", "Q"}, names)
	require.Len(t, dirs.Includes, 1)
	assert.False(t, dirs.Includes[0].ForcedInclude)
	assert.Equal(t, "b.h", dirs.Includes[0].Spelling)
	assert.Equal(t, 28, dirs.Includes[0].Start)

	b := r.file(t, "/p/b.h")
	require.Len(t, b.PreprocessorDirectives().Macros, 1)
	assert.Equal(t, "B", b.PreprocessorDirectives().Macros[0].Name)
}

func TestDriver_UndefNameOffset(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		want    string
		wantOff int
	}{
		{"single letter inside the keyword", "#define e 1\n#undef e\n", "e", 19},
		{"prefix of the keyword", "#define de 1\n#undef de\n", "de", 20},
		{"extra spaces", "#define f 1\n#undef   f\n", "f", 21},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := preprocess(t, &compdb.ProjectHandler{File: "/p/m.c"}, map[string]string{"/p/m.c": tt.src}, Options{})
			require.NoError(t, r.err)
			defs := r.cb.Result().PreprocessorDirectives().Macros
			require.Len(t, defs, 2)
			assert.False(t, defs[1].Defined)
			assert.Equal(t, tt.want, defs[1].Name)
			assert.Equal(t, tt.wantOff, defs[1].NameOffset)
		})
	}
}

func TestDriver_DeepInclusionMarksRecursion(t *testing.T) {
	r := preprocess(t, &compdb.ProjectHandler{File: "/p/m.c"}, map[string]string{
		"/p/m.c": "#include \"r.h\"\n",
		"/p/r.h": "#include \"r.h\"\n",
	}, Options{MaxIncludeDepth: 5})
	require.NoError(t, r.err)

	files := r.cb.Files()
	require.Len(t, files, 5)
	assert.Equal(t, 4, r.stack.MaxDepth())
	// every include of r.h sits at offset 0, so the include from the main
	// file matches the cycle as well
	for _, fi := range files[1:] {
		assert.True(t, fi.InclusionDirective().IsRecursive(), "file %d", fi.FileIndex())
	}
}

func TestDriver_CancelledContext(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/p/m.c", []byte("int x;\n"), 0644))
	reg := fsys.NewRegistry(fsys.Options{AlwaysUseVFS: true, VFS: fsys.NewVirtual("ide", mem, false)})
	entry := compdb.NewBuilder(reg, compdb.Options{}).Build(&compdb.ProjectHandler{File: "/p/m.c", Lang: "C"})
	d := NewDriver(entry, reg, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cb := tracker.New(entry, d.SourceManager(), tracker.Options{Interrupter: tracker.ContextInterrupter(ctx)})
	assert.Error(t, d.Run(ctx, cb))
	assert.Equal(t, 0, cb.Depth())
}

func TestDriver_MissingMainFile(t *testing.T) {
	reg := fsys.NewRegistry(fsys.Options{AlwaysUseVFS: true, VFS: fsys.NewVirtual("ide", afero.NewMemMapFs(), false)})
	entry := compdb.NewBuilder(reg, compdb.Options{}).Build(&compdb.ProjectHandler{File: "/nope.c", Lang: "C"})
	d := NewDriver(entry, reg, Options{})
	cb := tracker.New(entry, d.SourceManager(), tracker.Options{})
	assert.Error(t, d.Run(context.Background(), cb))
}
