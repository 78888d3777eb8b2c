package frontend

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/dshills/ppbridge/internal/fsys"
	"github.com/dshills/ppbridge/internal/tokens"
	"github.com/dshills/ppbridge/internal/tracker"
	"github.com/dshills/ppbridge/pkg/types"
)

// fileWalker walks the syntax tree of one buffer in source order
type fileWalker struct {
	r       *run
	buf     tracker.Buffer
	fs      fsys.FileSystem
	path    string
	dir     string
	content []byte

	pending []lexToken
	out     []tokens.RawToken
	aborted bool
}

func (w *fileWalker) run() {
	tree, err := w.r.parse(w.content)
	if err != nil {
		if w.r.err == nil {
			w.r.err = err
		}
		return
	}
	defer tree.Close()
	root := tree.RootNode()
	if !w.buf.Builtin {
		w.detectGuard(root)
	}
	w.walkChildren(root)
	w.flush()
}

func (w *fileWalker) loc(off int) tokens.Loc {
	return w.r.d.sm.FileLoc(w.buf.ID, off)
}

func (w *fileWalker) text(n *sitter.Node) string {
	return n.Content(w.content)
}

// lineEnd is the end of a directive node without its trailing newline
func (w *fileWalker) lineEnd(n *sitter.Node) int {
	start, end := int(n.StartByte()), int(n.EndByte())
	for end > start && (w.content[end-1] == '\n' || w.content[end-1] == '\r') {
		end--
	}
	return end
}

func (w *fileWalker) walkChildren(n *sitter.Node) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if w.walk(n.Child(i)) {
			return true
		}
	}
	return false
}

// walk processes n and reports whether the walk of the buffer must stop
func (w *fileWalker) walk(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	if w.aborted || w.r.stopped() {
		return true
	}
	switch n.Type() {
	case "preproc_include":
		w.flush()
		w.include(n)
	case "preproc_def", "preproc_function_def":
		w.flush()
		w.define(n)
	case "preproc_call":
		w.flush()
		w.call(n)
	case "preproc_if", "preproc_ifdef":
		w.flush()
		w.conditional(n)
	case "comment":
	default:
		if n.ChildCount() == 0 || !hasDirective(n) {
			start := int(n.StartByte())
			w.pending = append(w.pending, w.r.lx.lex(w.content[start:n.EndByte()], start)...)
			return false
		}
		return w.walkChildren(n)
	}
	return w.aborted || w.r.stopped()
}

func hasDirective(n *sitter.Node) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		ch := n.Child(i)
		if strings.HasPrefix(ch.Type(), "preproc_") || hasDirective(ch) {
			return true
		}
	}
	return false
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// flush macro-expands the pending code tokens into the output stream
func (w *fileWalker) flush() {
	toks := w.pending
	w.pending = nil
	for i := 0; i < len(toks); {
		t := toks[i]
		m := w.r.exp.lookup(t, nil)
		if m == nil {
			w.emit(t)
			i++
			continue
		}
		end := i + 1
		var args [][]lexToken
		if m.params != nil {
			var ok bool
			if args, end, ok = collectArgs(toks, i+1); !ok {
				w.emit(t)
				i++
				continue
			}
		}
		start, stop := w.loc(t.off), w.loc(toks[end-1].end)
		w.r.cb.OnMacroExpansion(t.text, m.def, start, stop)
		if w.r.d.opts.AtomicMacroExpansions {
			w.out = append(w.out, tokens.RawToken{
				Kind:          tokens.KindIdent,
				Loc:           start,
				Length:        len(t.text),
				Text:          t.text,
				Annotated:     true,
				AnnotationEnd: stop,
			})
		} else {
			w.expansion(m, t.text, w.r.exp.expand(m, args), start, stop)
		}
		i = end
	}
}

func (w *fileWalker) emit(t lexToken) {
	w.out = append(w.out, tokens.RawToken{Kind: t.kind, Loc: w.loc(t.off), Length: t.end - t.off, Text: t.text})
}

// expansion lays the replacement tokens out in the macro address space
func (w *fileWalker) expansion(m *macro, name string, repl []lexToken, start, stop tokens.Loc) {
	if len(repl) == 0 {
		return
	}
	var b strings.Builder
	offsets := make([]int, len(repl))
	for i, t := range repl {
		if i > 0 {
			b.WriteByte(' ')
		}
		offsets[i] = b.Len()
		b.WriteString(t.text)
	}
	spelling := tokens.NoLoc
	if m.params == nil {
		spelling = m.bodyLoc
	}
	base, err := w.r.d.sm.AddExpansion(name, spelling, b.Len(), start, stop)
	if err != nil {
		w.r.d.log.Warn("frontend.expansion", "macro", name, "err", err)
		return
	}
	for i, t := range repl {
		w.out = append(w.out, tokens.RawToken{Kind: t.kind, Loc: base + tokens.Loc(offsets[i]), Length: len(t.text), Text: t.text})
	}
}

func (w *fileWalker) include(n *sitter.Node) {
	pathNode := n.ChildByFieldName("path")
	if pathNode == nil {
		return
	}
	spelling, angled, ok := w.includeSpelling(pathNode)
	if !ok {
		w.r.d.log.Warn("include.malformed", "file", w.buf.Name, "text", w.text(n))
		return
	}

	r := w.r
	found := r.lookup(spelling, angled, w)
	if found == nil {
		if dir, ok := r.cb.OnNotFoundInclusionDirective(spelling, angled); ok {
			if p := fsys.Join(dir, spelling); w.fs.IsFile(p) {
				found = &tracker.FoundFile{FS: w.fs, Path: p, SearchRoot: dir, SearchIndex: len(r.dirs)}
			}
		}
	}

	r.cb.OnInclusionDirective(tracker.InclusionEvent{
		Node:     r.newNodeID(),
		Spelling: spelling,
		Angled:   angled,
		Start:    w.loc(int(n.StartByte())),
		End:      w.loc(w.lineEnd(n)),
		File:     found,
	})
	if found == nil || r.stopped() {
		return
	}

	url := found.FS.URL(found.Path)
	if r.once[url] {
		return
	}
	if g, ok := r.guards[url]; ok && r.macros[g] != nil {
		return
	}
	if r.depth >= r.d.opts.MaxIncludeDepth {
		r.cb.OnDeepInclusion(spelling)
		return
	}

	content, err := r.read(found.FS, found.Path)
	if err != nil {
		r.d.log.Warn("include.read", "file", url, "err", err)
		return
	}
	buf := tracker.Buffer{ID: r.d.sm.AddFile(url, content, false), Name: url, Content: content}
	r.cb.OnEnter(w.buf, buf)
	r.depth++
	r.walkFile(buf, found.FS, found.Path, content)
	r.depth--
	r.cb.OnExit(buf, w.buf)
}

// includeSpelling extracts the file name of an include; computed includes
// are macro-expanded first
func (w *fileWalker) includeSpelling(n *sitter.Node) (string, bool, bool) {
	text := strings.TrimSpace(w.text(n))
	switch n.Type() {
	case "string_literal":
		return strings.Trim(text, `"`), false, true
	case "system_lib_string":
		return strings.TrimSuffix(strings.TrimPrefix(text, "<"), ">"), true, true
	}
	start := int(n.StartByte())
	toks := w.r.exp.rescan(w.r.lx.lex(w.content[start:n.EndByte()], start), nil, 0)
	if len(toks) == 1 && toks[0].kind == tokens.KindStringLiteral {
		return strings.Trim(toks[0].text, `"`), false, true
	}
	if len(toks) >= 2 && toks[0].text == "<" && toks[len(toks)-1].text == ">" {
		var b strings.Builder
		for _, t := range toks[1 : len(toks)-1] {
			b.WriteString(t.text)
		}
		return b.String(), true, true
	}
	return "", false, false
}

func (w *fileWalker) define(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	def := &tracker.MacroDef{
		ID:      w.r.newMacroID(),
		Name:    w.text(nameNode),
		Start:   w.loc(int(n.StartByte())),
		End:     w.loc(w.lineEnd(n)),
		NameLoc: w.loc(int(nameNode.StartByte())),
	}
	if n.Type() == "preproc_function_def" {
		def.Params = []string{}
		if params := n.ChildByFieldName("parameters"); params != nil {
			for i := 0; i < int(params.ChildCount()); i++ {
				ch := params.Child(i)
				switch {
				case ch.Type() == "identifier":
					def.Params = append(def.Params, w.text(ch))
				case ch.Type() == types.VariadicMarker:
					def.Params = append(def.Params, types.VariadicMarker)
				}
			}
		}
	}

	var body []lexToken
	bodyLoc := tokens.NoLoc
	if value := n.ChildByFieldName("value"); value != nil {
		start := int(value.StartByte())
		body = w.r.lx.lex(w.content[start:value.EndByte()], start)
		def.Body = strings.TrimSpace(w.text(value))
		if len(body) > 0 {
			bodyLoc = w.loc(body[0].off)
		}
	}
	w.r.define(def, body, def.Params, bodyLoc)
	w.r.cb.OnMacroDefined(def)
}

func (w *fileWalker) call(n *sitter.Node) {
	dirNode := n.ChildByFieldName("directive")
	if dirNode == nil {
		return
	}
	arg, argStart := "", int(n.StartByte())
	if a := n.ChildByFieldName("argument"); a != nil {
		raw := w.text(a)
		arg = strings.TrimSpace(raw)
		argStart = int(a.StartByte()) + len(raw) - len(strings.TrimLeft(raw, " \t"))
	}
	start, end := w.loc(int(n.StartByte())), w.loc(w.lineEnd(n))
	r := w.r

	switch strings.Join(strings.Fields(w.text(dirNode)), "") {
	case "#undef":
		fields := strings.Fields(arg)
		if len(fields) == 0 {
			return
		}
		name := fields[0]
		var def *tracker.MacroDef
		if m := r.macros[name]; m != nil {
			def = m.def
		}
		delete(r.macros, name)
		// the name leads the argument
		r.cb.OnMacroUndefined(name, def, start, end, w.loc(argStart))
	case "#error":
		r.cb.OnUserDiagnosticDirective(tracker.DiagError, start, end, arg)
		if r.cb.RecoverFromErrorDirective() {
			w.aborted = true
		}
	case "#warning":
		r.cb.OnUserDiagnosticDirective(tracker.DiagWarning, start, end, arg)
	case "#pragma":
		if arg == "once" && !w.buf.Builtin {
			r.once[w.buf.Name] = true
		}
	}
}

// conditional evaluates an #if/#ifdef chain, walks the taken branch and
// reports the others as skipped
func (w *fileWalker) conditional(n *sitter.Node) {
	var header *sitter.Node
	taken := false

	switch n.Type() {
	case "preproc_else":
		taken = true
	case "preproc_ifdef", "preproc_elifdef":
		header = n.ChildByFieldName("name")
		if header == nil {
			return
		}
		name := w.text(header)
		negate := n.ChildCount() > 0 && strings.HasSuffix(n.Child(0).Type(), "ndef")
		m := w.r.macros[name]
		var def *tracker.MacroDef
		if m != nil {
			def = m.def
		}
		w.r.cb.OnMacroUsage(name, def, w.loc(int(header.StartByte())), w.loc(int(header.EndByte())))
		taken = (m != nil) != negate
	case "preproc_if", "preproc_elif":
		header = n.ChildByFieldName("condition")
		if header == nil {
			return
		}
		taken = w.condition(header)
	}

	alt := n.ChildByFieldName("alternative")
	var body []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		ch := n.Child(i)
		if sameNode(ch, header) || sameNode(ch, alt) {
			continue
		}
		if !ch.IsNamed() && (strings.HasPrefix(ch.Type(), "#") || strings.TrimSpace(ch.Type()) == "") {
			continue
		}
		body = append(body, ch)
	}

	if taken {
		for _, ch := range body {
			if w.walk(ch) {
				return
			}
		}
		w.flush()
		if alt != nil {
			w.r.cb.OnSkippedRange(w.loc(int(alt.StartByte())), w.loc(int(alt.EndByte())))
		}
		return
	}

	skipStart := int(n.StartByte())
	if header != nil {
		skipStart = int(header.EndByte())
	}
	skipEnd := int(n.EndByte())
	if alt != nil {
		skipEnd = int(alt.StartByte())
	} else if last := n.Child(int(n.ChildCount()) - 1); last != nil && last.Type() == "#endif" {
		skipEnd = int(last.StartByte())
	}
	if skipEnd > skipStart {
		w.r.cb.OnSkippedRange(w.loc(skipStart), w.loc(skipEnd))
	}
	if alt != nil {
		w.conditional(alt)
	}
}

// condition evaluates an #if expression, reporting the macros it references
func (w *fileWalker) condition(n *sitter.Node) bool {
	start := int(n.StartByte())
	toks := w.r.lx.lex(w.content[start:n.EndByte()], start)

	var resolved []lexToken
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.text == "defined" {
			name, next := definedOperand(toks, i+1)
			if name.text == "" {
				continue
			}
			m := w.r.macros[name.text]
			var def *tracker.MacroDef
			if m != nil {
				def = m.def
			}
			w.r.cb.OnMacroUsage(name.text, def, w.loc(name.off), w.loc(name.end))
			resolved = append(resolved, lexToken{kind: tokens.KindIntLiteral, text: boolText(m != nil), off: -1, end: -1})
			i = next - 1
			continue
		}
		if m := w.r.exp.lookup(t, nil); m != nil {
			w.r.cb.OnMacroExpansion(t.text, m.def, w.loc(t.off), w.loc(t.end))
		}
		resolved = append(resolved, t)
	}

	v, err := evaluate(w.r.exp.rescan(resolved, nil, 0))
	if err != nil {
		w.r.d.log.Warn("frontend.condition", "file", w.buf.Name, "expr", w.text(n), "err", err)
		return false
	}
	return v != 0
}

// definedOperand parses the operand of defined X or defined(X)
func definedOperand(toks []lexToken, i int) (lexToken, int) {
	if i < len(toks) && toks[i].text == "(" {
		if i+2 < len(toks) && toks[i+2].text == ")" {
			return toks[i+1], i + 3
		}
		return lexToken{}, i
	}
	if i < len(toks) {
		return toks[i], i + 1
	}
	return lexToken{}, i
}

func boolText(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// detectGuard reports the classic #ifndef G / #define G guard wrapping the
// whole file
func (w *fileWalker) detectGuard(root *sitter.Node) {
	var top []*sitter.Node
	for i := 0; i < int(root.ChildCount()); i++ {
		if ch := root.Child(i); ch.Type() != "comment" {
			top = append(top, ch)
		}
	}
	if len(top) != 1 || top[0].Type() != "preproc_ifdef" || top[0].ChildByFieldName("alternative") != nil {
		return
	}
	ifndef := top[0]
	if ifndef.ChildCount() == 0 || ifndef.Child(0).Type() != "#ifndef" {
		return
	}
	name := ifndef.ChildByFieldName("name")
	if name == nil {
		return
	}
	for i := 0; i < int(ifndef.ChildCount()); i++ {
		ch := ifndef.Child(i)
		if !ch.IsNamed() || sameNode(ch, name) || ch.Type() == "comment" {
			continue
		}
		if ch.Type() == "preproc_def" {
			if dn := ch.ChildByFieldName("name"); dn != nil && w.text(dn) == w.text(name) {
				w.r.cb.OnFileGuard(w.text(name), w.loc(int(name.StartByte())))
				w.r.guards[w.buf.Name] = w.text(name)
			}
		}
		return
	}
}
