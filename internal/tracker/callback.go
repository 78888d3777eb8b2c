package tracker

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dshills/ppbridge/internal/compdb"
	"github.com/dshills/ppbridge/internal/debug"
	"github.com/dshills/ppbridge/internal/fsys"
	"github.com/dshills/ppbridge/internal/macros"
	"github.com/dshills/ppbridge/internal/tokens"
	"github.com/dshills/ppbridge/pkg/types"
)

// Options configures a Callback
type Options struct {
	Delegate       Delegate
	IncludeHandler IncludeHandler
	Searcher       IncludeSearcher
	Interrupter    *Interrupter
	Interner       *fsys.Interner
	// Macros is the handler state snapshotted at every #error
	Macros *macros.FileTable
	// RecoverNotFound enables the include-searcher fallback
	RecoverNotFound bool
	NeedLineColumns bool
	Logger          *slog.Logger
}

// Callback tracks the include stack of one compilation unit while the front
// end preprocesses it. It is driven from a single goroutine.
type Callback struct {
	entry *compdb.Entry
	sm    *tokens.SourceManager
	opts  Options
	log   *slog.Logger

	annotations *Annotations
	stack       []*FileInfo
	files       []*FileInfo
	builtin     *builtinBuffer
	pending     *types.InclusionDirective
	main        *FileInfo
	delegateOff bool
}

// New creates a callback for the unit described by entry
func New(entry *compdb.Entry, sm *tokens.SourceManager, opts Options) *Callback {
	if opts.Interrupter == nil {
		opts.Interrupter = NewInterrupter(nil)
	}
	if opts.Interner == nil {
		opts.Interner = fsys.NewInterner(1024)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Callback{
		entry:       entry,
		sm:          sm,
		opts:        opts,
		log:         logger,
		annotations: NewAnnotations(),
	}
}

// Annotations returns the node to directive side table
func (c *Callback) Annotations() *Annotations { return c.annotations }

// Cancelled reports whether the run was cancelled
func (c *Callback) Cancelled() bool { return c.opts.Interrupter.Cancelled() }

// Depth returns the number of files on the include stack
func (c *Callback) Depth() int { return len(c.stack) }

// Current returns the file on top of the stack, nil outside the main file
func (c *Callback) Current() *FileInfo {
	if len(c.stack) == 0 {
		return nil
	}
	return c.stack[len(c.stack)-1]
}

// InBuiltin reports whether a pseudo-buffer is being processed
func (c *Callback) InBuiltin() bool { return c.builtin != nil }

// inPseudo reports whether events come from the pseudo-buffer itself. A real
// file entered from it, such as a -include header, sits above the main file
// and keeps its own records.
func (c *Callback) inPseudo() bool {
	return c.builtin != nil && len(c.stack) == 1
}

// Result returns the main file once it has been left, nil before
func (c *Callback) Result() *FileInfo {
	if c.main == nil || !c.main.exited {
		return nil
	}
	return c.main
}

// Files returns every file entered so far in entry order
func (c *Callback) Files() []*FileInfo {
	return append([]*FileInfo(nil), c.files...)
}

// OnEnter is called when the front end starts reading buf
func (c *Callback) OnEnter(from, to Buffer) {
	if to.Builtin {
		c.enterBuiltin(to)
		return
	}

	var fi *FileInfo
	if len(c.stack) == 0 {
		debug.Assert(to.Name == c.entry.File(), "main file %q is not the start entry %q", to.Name, c.entry.File())
		debug.Assert(len(c.files) == 0, "main file entered twice")
		fi = newFileInfo(c, to, len(c.files), nil)
		c.main = fi
	} else {
		d := c.pending
		c.pending = nil
		if !debug.Assert(d != nil, "entering %q without an inclusion directive", to.Name) {
			d = &types.InclusionDirective{Spelling: to.Name}
		}
		if c.opts.IncludeHandler != nil {
			c.opts.IncludeHandler.PushInclude(d)
		}
		fi = newFileInfo(c, to, len(c.files), d)
	}
	c.stack = append(c.stack, fi)
	c.files = append(c.files, fi)

	c.notify(func(dl Delegate) (bool, error) { return dl.OnEnter(fi) })
}

// OnExit is called when the front end is done with from and returns to to
func (c *Callback) OnExit(from, to Buffer) {
	if from.Builtin {
		c.exitBuiltin(from)
		return
	}
	if !debug.Assert(len(c.stack) > 0, "exit from %q with an empty stack", from.Name) {
		return
	}
	fi := c.stack[len(c.stack)-1]
	debug.Assert(fi.path == from.Name, "exit from %q while %q is on top", from.Name, fi.path)
	c.stack = c.stack[:len(c.stack)-1]
	fi.exited = true
	c.pending = nil

	if c.opts.IncludeHandler != nil {
		c.opts.IncludeHandler.CacheFile(fi)
	}
	c.notify(func(dl Delegate) (bool, error) { return dl.OnExit(fi) })
	if len(c.stack) > 0 && c.opts.IncludeHandler != nil {
		c.opts.IncludeHandler.PopInclude()
	}
}

func (c *Callback) enterBuiltin(to Buffer) {
	if !debug.Assert(len(c.stack) == 1, "pseudo-buffer %q entered at depth %d", to.Name, len(c.stack)) {
		return
	}
	c.builtin = &builtinBuffer{name: to.Name}
}

func (c *Callback) exitBuiltin(from Buffer) {
	if !debug.Assert(len(c.stack) == 1 && c.builtin != nil, "pseudo-buffer %q left at depth %d", from.Name, len(c.stack)) {
		c.builtin = nil
		return
	}
	c.main.builtins = append(c.main.builtins, c.builtin)
	c.builtin = nil
}

// OnInclusionDirective records an #include and annotates its node
func (c *Callback) OnInclusionDirective(ev InclusionEvent) *types.InclusionDirective {
	fi := c.Current()
	if !debug.Assert(fi != nil, "#include %q outside the main file", ev.Spelling) {
		return nil
	}

	angled := ev.Angled
	// a remote spelling can only be found through the system lookup
	if fsys.IsRemote(ev.Spelling) {
		angled = true
	}

	start, end := c.offsets(ev.Start, ev.End)
	d := &types.InclusionDirective{
		Range:    types.Range{Start: start, End: end},
		Spelling: ev.Spelling,
		Angled:   angled,
		Index:    fi.includeSeq,
	}
	fi.includeSeq++

	if ev.File != nil {
		d.Resolved = c.opts.Interner.Identity(ev.File.FS, ev.File.Path, ev.File.SearchRoot, ev.File.DefaultRoot, ev.File.SearchIndex)
		debug.Check(d.Resolved.Validate())
	} else {
		c.log.Warn("include.unresolved", "file", fi.path, "spelling", ev.Spelling, "angled", angled)
	}

	if err := c.annotations.Insert(ev.Node, d); err != nil {
		debug.Fail("%v", err)
	}

	if c.inPseudo() {
		d.ForcedInclude = true
		c.builtin.includes = append(c.builtin.includes, d)
	} else {
		fi.includes = append(fi.includes, d)
	}
	c.pending = d

	c.notify(func(dl Delegate) (bool, error) { return dl.OnInclusionDirective(fi, d) })
	return d
}

// OnNotFoundInclusionDirective asks the include searcher for a fallback.
// It returns the directory the front end should retry the lookup in.
func (c *Callback) OnNotFoundInclusionDirective(spelling string, angled bool) (string, bool) {
	if !c.opts.RecoverNotFound || c.opts.Searcher == nil || c.Cancelled() {
		return "", false
	}
	includer := ""
	if fi := c.Current(); fi != nil {
		includer = fi.path
	}
	found, ok := c.opts.Searcher.Search(spelling, angled, includer)
	if !ok || found == nil {
		return "", false
	}
	p := fsys.Clean(found.Path)
	want := "/" + strings.TrimPrefix(fsys.Clean(spelling), "/")
	if !strings.HasSuffix(p, want) {
		c.log.Debug("include.recovery_mismatch", "spelling", spelling, "found", found.Path)
		return "", false
	}
	dir := strings.TrimSuffix(p, want)
	if dir == "" {
		dir = "/"
	}
	c.log.Info("include.recovered", "spelling", spelling, "dir", dir)
	return dir, true
}

// OnMacroDefined records a #define in the current file
func (c *Callback) OnMacroDefined(def *MacroDef) {
	if c.inPseudo() {
		return
	}
	fi := c.Current()
	if fi == nil || !debug.Assert(def != nil && def.Name != "", "macro definition without a name") {
		return
	}
	fi.macros = append(fi.macros, macroEvent{def: def, defined: true})
}

// OnMacroUndefined records an #undef; def is the definition being removed
// and may be nil
func (c *Callback) OnMacroUndefined(name string, def *MacroDef, start, end, nameLoc tokens.Loc) {
	if c.inPseudo() {
		return
	}
	fi := c.Current()
	if fi == nil {
		return
	}
	fi.macros = append(fi.macros, macroEvent{name: name, start: start, end: end, nameLoc: nameLoc})
	if def != nil {
		fi.refs = append(fi.refs, refEvent{kind: types.RefUsage, name: name, def: def, start: nameLoc, end: nameLoc + tokens.Loc(len(name))})
	}
}

// OnMacroUsage records a reference that does not expand the macro
func (c *Callback) OnMacroUsage(name string, def *MacroDef, start, end tokens.Loc) {
	c.reference(types.RefUsage, name, def, start, end)
}

// OnMacroExpansion records an expansion of a macro in code
func (c *Callback) OnMacroExpansion(name string, def *MacroDef, start, end tokens.Loc) {
	c.reference(types.RefExpansion, name, def, start, end)
}

func (c *Callback) reference(kind types.ReferenceKind, name string, def *MacroDef, start, end tokens.Loc) {
	if c.inPseudo() {
		return
	}
	if fi := c.Current(); fi != nil {
		fi.refs = append(fi.refs, refEvent{kind: kind, name: name, def: def, start: start, end: end})
	}
}

// OnFileGuard records a header-guard candidate for the current file
func (c *Callback) OnFileGuard(name string, loc tokens.Loc) {
	if fi := c.Current(); fi != nil && !c.inPseudo() {
		fi.guards = append(fi.guards, guardEvent{name: name, loc: loc})
	}
}

// OnSkippedRange records a range excluded by a conditional
func (c *Callback) OnSkippedRange(start, end tokens.Loc) {
	if fi := c.Current(); fi != nil && !c.inPseudo() {
		fi.skipped = append(fi.skipped, [2]tokens.Loc{start, end})
	}
}

// OnTokens hands over the token stream of the current file
func (c *Callback) OnTokens(raw []tokens.RawToken) {
	fi := c.Current()
	if fi == nil || c.inPseudo() {
		return
	}
	fi.raw = append(fi.raw, raw...)
	fi.hasTokens = true
}

// OnUserDiagnosticDirective retains #error directives with a clean snapshot
// of the handler state; #warning is dropped
func (c *Callback) OnUserDiagnosticDirective(kind DiagnosticKind, start, end tokens.Loc, message string) *types.ErrorDirective {
	if kind != DiagError {
		return nil
	}
	fi := c.Current()
	if fi == nil {
		return nil
	}
	s, e := c.offsets(start, end)
	ed := &types.ErrorDirective{Range: types.Range{Start: s, End: e}, Message: message}
	if c.opts.Macros != nil {
		ed.State = c.opts.Macros.Snapshot().Clean()
	}
	fi.errors = append(fi.errors, ed)
	c.log.Debug("directive.error", "file", fi.path, "message", message)
	return ed
}

// RecoverFromErrorDirective stops preprocessing of the current file only.
// The front end skips the rest of the file when it returns true.
func (c *Callback) RecoverFromErrorDirective() bool {
	fi := c.Current()
	if fi == nil {
		return false
	}
	fi.aborted = true
	return true
}

func (c *Callback) notify(call func(Delegate) (bool, error)) {
	if c.opts.Delegate == nil || c.delegateOff {
		return
	}
	if c.Cancelled() {
		c.delegateOff = true
		return
	}
	ok, err := call(c.opts.Delegate)
	if err != nil {
		c.log.Warn("delegate.error", "err", err)
	}
	if !ok || err != nil {
		c.opts.Interrupter.Cancel()
	}
	if c.Cancelled() {
		c.delegateOff = true
	}
}

func (c *Callback) offsets(start, end tokens.Loc) (int, int) {
	_, s := c.sm.Decompose(start)
	_, e := c.sm.Decompose(end)
	if e < s {
		e = s
	}
	return s, e
}

func (c *Callback) macroDirective(def *MacroDef) *types.MacroDirective {
	id, start := c.sm.Decompose(def.Start)
	_, end := c.sm.Decompose(def.End)
	_, nameOff := c.sm.Decompose(def.NameLoc)
	file := c.sm.FileName(id)
	if c.sm.IsBuiltin(id) {
		file = types.BuiltinFile
	}
	var params []string
	if def.Params != nil {
		params = append(make([]string, 0, len(def.Params)), def.Params...)
	}
	md := &types.MacroDirective{
		Name:       def.Name,
		Params:     params,
		Defined:    true,
		File:       file,
		Range:      types.Range{Start: start, End: max(end, start)},
		NameOffset: nameOff,
	}
	debug.Check(md.Validate())
	return md
}

func (c *Callback) String() string {
	names := make([]string, len(c.stack))
	for i, fi := range c.stack {
		names[i] = fi.path
	}
	return fmt.Sprintf("tracker[%s]", strings.Join(names, " > "))
}
