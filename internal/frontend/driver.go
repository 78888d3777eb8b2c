package frontend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/dshills/ppbridge/internal/compdb"
	"github.com/dshills/ppbridge/internal/fsys"
	"github.com/dshills/ppbridge/internal/macros"
	"github.com/dshills/ppbridge/internal/tokens"
	"github.com/dshills/ppbridge/internal/tracker"
	"github.com/dshills/ppbridge/pkg/types"
)

// DefaultMaxIncludeDepth is the include depth at which recursion is assumed
const DefaultMaxIncludeDepth = 200

// Options configures a Driver
type Options struct {
	MaxIncludeDepth int
	// AtomicMacroExpansions reports every expansion as one annotated token
	// instead of its replacement tokens
	AtomicMacroExpansions bool
	Logger                *slog.Logger
}

// Driver preprocesses one compilation database entry and drives a
// tracker.Callback with what it sees
type Driver struct {
	entry    *compdb.Entry
	registry *fsys.Registry
	sm       *tokens.SourceManager
	opts     Options
	log      *slog.Logger
}

// NewDriver creates a driver for entry. Paths are resolved through registry.
func NewDriver(entry *compdb.Entry, registry *fsys.Registry, opts Options) *Driver {
	if opts.MaxIncludeDepth <= 0 {
		opts.MaxIncludeDepth = DefaultMaxIncludeDepth
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		entry:    entry,
		registry: registry,
		sm:       tokens.NewSourceManager(),
		opts:     opts,
		log:      logger,
	}
}

// SourceManager returns the source manager locations are reported in
func (d *Driver) SourceManager() *tokens.SourceManager { return d.sm }

// Run preprocesses the entry. A run cancelled through the callback is not
// an error; a cancelled context is.
func (d *Driver) Run(ctx context.Context, cb *tracker.Callback) error {
	fs, mainPath, err := d.registry.Resolve(d.entry.File())
	if err != nil {
		return fmt.Errorf("resolve main file: %w", err)
	}
	content, err := fs.ReadFile(mainPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", d.entry.File(), err)
	}

	r := d.newRun(ctx, cb)
	defer r.parser.Close()
	r.contents[d.entry.File()] = content

	main := tracker.Buffer{
		ID:      d.sm.AddFile(d.entry.File(), content, false),
		Name:    d.entry.File(),
		Content: content,
	}
	d.log.Debug("frontend.run", "file", d.entry.File(), "kind", d.entry.Kind(), "dialect", d.entry.Dialect())

	cb.OnEnter(tracker.Buffer{}, main)
	r.depth = 1
	if src := predefines(d.entry); len(src) > 0 {
		r.builtin(tracker.BuiltinBuffer, src, main, fs, mainPath)
	}
	if src := commandLine(d.entry); len(src) > 0 {
		r.builtin(tracker.CommandLineBuffer, src, main, fs, mainPath)
	}
	if !r.stopped() {
		r.walkFile(main, fs, mainPath, content)
	}
	cb.OnExit(main, tracker.Buffer{})

	if r.err != nil {
		return r.err
	}
	return ctx.Err()
}

func (d *Driver) language() *sitter.Language {
	if d.entry.Kind() == compdb.KindC {
		return c.GetLanguage()
	}
	return cpp.GetLanguage()
}

// predefines renders the system macros as the predefines buffer
func predefines(e *compdb.Entry) []byte {
	var b strings.Builder
	for _, m := range e.SystemMacros() {
		b.WriteString(macros.DefineLine(m))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// commandLine renders user macros and forced includes as the command-line
// buffer
func commandLine(e *compdb.Entry) []byte {
	var b strings.Builder
	for _, m := range e.UserMacros() {
		b.WriteString(macros.DefineLine(m))
		b.WriteByte('\n')
	}
	for _, f := range e.ForcedIncludes() {
		fmt.Fprintf(&b, "#include %q\n", f)
	}
	return []byte(b.String())
}

type searchDir struct {
	fs        fsys.FileSystem
	path      string
	framework bool
}

// run is the state of one Driver.Run
type run struct {
	ctx    context.Context
	d      *Driver
	cb     *tracker.Callback
	parser *sitter.Parser
	lx     *lexer
	exp    *expander

	macros    map[string]*macro
	nextMacro tracker.MacroID
	nextNode  tracker.NodeID
	contents  map[string][]byte
	once      map[string]bool
	guards    map[string]string
	dirs      []searchDir
	depth     int
	err       error
}

func (d *Driver) newRun(ctx context.Context, cb *tracker.Callback) *run {
	parser := sitter.NewParser()
	parser.SetLanguage(d.language())
	lx := newLexer(d.entry.Kind() == compdb.KindCPP)
	table := make(map[string]*macro)
	r := &run{
		ctx:      ctx,
		d:        d,
		cb:       cb,
		parser:   parser,
		lx:       lx,
		exp:      &expander{macros: table, lx: newLexer(d.entry.Kind() == compdb.KindCPP)},
		macros:   table,
		contents: make(map[string][]byte),
		once:     make(map[string]bool),
		guards:   make(map[string]string),
	}
	for _, dir := range d.entry.SearchDirs() {
		fs, p, err := d.registry.Resolve(dir.URL)
		if err != nil {
			d.log.Warn("frontend.search_dir", "dir", dir.URL, "err", err)
			continue
		}
		r.dirs = append(r.dirs, searchDir{fs: fs, path: p, framework: dir.IsFramework})
	}
	return r
}

func (r *run) stopped() bool {
	if r.err != nil {
		return true
	}
	if err := r.ctx.Err(); err != nil {
		r.err = err
		return true
	}
	return r.cb.Cancelled()
}

func (r *run) builtin(name string, src []byte, main tracker.Buffer, fs fsys.FileSystem, mainPath string) {
	buf := tracker.Buffer{ID: r.d.sm.AddFile(name, src, true), Name: name, Builtin: true, Content: src}
	r.cb.OnEnter(main, buf)
	if !r.stopped() {
		w := r.walker(buf, fs, mainPath, src)
		w.run()
	}
	r.cb.OnExit(buf, main)
}

// walkFile preprocesses one real file that has already been entered
func (r *run) walkFile(buf tracker.Buffer, fs fsys.FileSystem, p string, content []byte) {
	w := r.walker(buf, fs, p, content)
	w.run()
	r.cb.OnTokens(append(w.out, tokens.RawToken{Kind: tokens.KindEOF}))
}

func (r *run) walker(buf tracker.Buffer, fs fsys.FileSystem, p string, content []byte) *fileWalker {
	return &fileWalker{r: r, buf: buf, fs: fs, path: p, dir: fsys.Dir(p), content: content}
}

func (r *run) parse(content []byte) (*sitter.Tree, error) {
	return r.parser.ParseCtx(r.ctx, nil, content)
}

func (r *run) read(fs fsys.FileSystem, p string) ([]byte, error) {
	url := fs.URL(p)
	if b, ok := r.contents[url]; ok {
		return b, nil
	}
	b, err := fs.ReadFile(p)
	if err != nil {
		return nil, err
	}
	r.contents[url] = b
	return b, nil
}

// lookup finds an include the way a C preprocessor does: quoted includes
// try the includer's directory first, then every search directory in order
func (r *run) lookup(spelling string, angled bool, w *fileWalker) *tracker.FoundFile {
	if fsys.IsRemote(spelling) {
		fs, p, err := r.d.registry.Resolve(spelling)
		if err != nil || !fs.IsFile(p) {
			return nil
		}
		return &tracker.FoundFile{FS: fs, Path: p}
	}
	if types.IsAbsolute(spelling) {
		if !w.fs.IsFile(spelling) {
			return nil
		}
		return &tracker.FoundFile{FS: w.fs, Path: w.fs.Abs(spelling)}
	}
	if !angled {
		if p := fsys.Join(w.dir, spelling); w.fs.IsFile(p) {
			return &tracker.FoundFile{FS: w.fs, Path: p, DefaultRoot: true}
		}
	}
	for i, dir := range r.dirs {
		if p, ok := dir.find(spelling); ok {
			return &tracker.FoundFile{FS: dir.fs, Path: p, SearchRoot: dir.path, SearchIndex: i}
		}
	}
	return nil
}

func (s searchDir) find(spelling string) (string, bool) {
	if s.framework {
		fw, rest, ok := strings.Cut(spelling, "/")
		if !ok {
			return "", false
		}
		p := fsys.Join(s.path, fw+".framework/Headers/"+rest)
		return p, s.fs.IsFile(p)
	}
	p := fsys.Join(s.path, spelling)
	return p, s.fs.IsFile(p)
}

func (r *run) define(def *tracker.MacroDef, body []lexToken, params []string, bodyLoc tokens.Loc) {
	r.macros[def.Name] = &macro{def: def, body: body, params: params, bodyLoc: bodyLoc}
}

func (r *run) newMacroID() tracker.MacroID {
	r.nextMacro++
	return r.nextMacro
}

func (r *run) newNodeID() tracker.NodeID {
	r.nextNode++
	return r.nextNode
}
