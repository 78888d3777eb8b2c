package tracker

import (
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/dshills/ppbridge/internal/tokens"
	"github.com/dshills/ppbridge/pkg/types"
)

// Directives are the preprocessor directives of one file in source order
type Directives struct {
	Includes []*types.InclusionDirective
	Macros   []*types.MacroDirective
	Errors   []*types.ErrorDirective
}

type macroEvent struct {
	def     *MacroDef
	defined bool
	// set for #undef
	name       string
	start, end tokens.Loc
	nameLoc    tokens.Loc
}

type refEvent struct {
	kind       types.ReferenceKind
	name       string
	def        *MacroDef
	start, end tokens.Loc
}

type guardEvent struct {
	name string
	loc  tokens.Loc
}

// fileData is the materialized form of a file's recorded events
type fileData struct {
	includes   []*types.InclusionDirective
	macros     []*types.MacroDirective
	expansions []types.MacroReference
	usages     []types.MacroReference
	guard      *types.FileGuard
	tokens     []tokens.Token
	skipped    []types.Range
}

// builtinBuffer collects what a pseudo-buffer contributed to the main file
type builtinBuffer struct {
	name     string
	includes []*types.InclusionDirective
}

// FileInfo is the per-file record of one run. It is only mutated by the
// owning Callback; the materialized view is built once on first access and
// may be read from any goroutine after the run.
type FileInfo struct {
	owner     *Callback // borrowed
	path      string
	id        tokens.FileID
	index     int
	directive *types.InclusionDirective
	hash      uint64

	includeSeq int
	includes   []*types.InclusionDirective
	errors     []*types.ErrorDirective
	macros     []macroEvent
	refs       []refEvent
	guards     []guardEvent
	skipped    [][2]tokens.Loc
	raw        []tokens.RawToken
	hasTokens  bool
	aborted    bool
	exited     bool
	builtins   []*builtinBuffer

	mu   sync.Mutex
	data *fileData
}

func newFileInfo(owner *Callback, buf Buffer, index int, d *types.InclusionDirective) *FileInfo {
	fi := &FileInfo{
		owner:     owner,
		path:      buf.Name,
		id:        buf.ID,
		index:     index,
		directive: d,
	}
	if buf.Content != nil {
		fi.hash = xxh3.Hash(buf.Content)
	}
	return fi
}

// FilePath returns the URL of the file
func (fi *FileInfo) FilePath() string { return fi.path }

// FileIndex is the position of the file in entry order within the unit
func (fi *FileInfo) FileIndex() int { return fi.index }

// InclusionDirective returns the directive the file was entered through,
// nil for the main file
func (fi *FileInfo) InclusionDirective() *types.InclusionDirective { return fi.directive }

// ContentHash is the xxh3 hash of the file contents
func (fi *FileInfo) ContentHash() uint64 { return fi.hash }

// HasTokenStream reports whether the front end produced tokens for the file
func (fi *FileInfo) HasTokenStream() bool { return fi.hasTokens }

// Aborted reports whether preprocessing of the file stopped at an #error
func (fi *FileInfo) Aborted() bool { return fi.aborted }

// PreprocessorDirectives returns the file's directives. For the main file,
// forced includes come first with negative offsets.
func (fi *FileInfo) PreprocessorDirectives() Directives {
	d := fi.materialize()
	return Directives{Includes: d.includes, Macros: d.macros, Errors: fi.errors}
}

// MacroExpansions returns the expansions in the file
func (fi *FileInfo) MacroExpansions() []types.MacroReference { return fi.materialize().expansions }

// MacroUsages returns the non-expanding references in the file
func (fi *FileInfo) MacroUsages() []types.MacroReference { return fi.materialize().usages }

// FileGuard returns the header guard of the file, nil when there is none
func (fi *FileInfo) FileGuard() *types.FileGuard { return fi.materialize().guard }

// TokenStream returns the converted tokens of the file
func (fi *FileInfo) TokenStream() []tokens.Token { return fi.materialize().tokens }

// SkippedRanges returns the ranges excluded by conditional directives
func (fi *FileInfo) SkippedRanges() []types.Range { return fi.materialize().skipped }

func (fi *FileInfo) materialize() *fileData {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	if fi.data == nil {
		fi.data = fi.build()
	}
	return fi.data
}

func (fi *FileInfo) build() *fileData {
	sm := fi.owner.sm
	d := &fileData{}

	d.includes = fi.forcedIncludes()
	d.includes = append(d.includes, fi.includes...)

	byID := make(map[MacroID]*types.MacroDirective)
	directive := func(def *MacroDef) *types.MacroDirective {
		if def == nil {
			return nil
		}
		if md, ok := byID[def.ID]; ok {
			return md
		}
		md := fi.owner.macroDirective(def)
		byID[def.ID] = md
		return md
	}

	for _, ev := range fi.macros {
		if ev.defined {
			d.macros = append(d.macros, directive(ev.def))
			continue
		}
		start, end := fi.offsets(ev.start, ev.end)
		d.macros = append(d.macros, &types.MacroDirective{
			Name:       ev.name,
			File:       fi.path,
			Range:      types.Range{Start: start, End: end},
			NameOffset: fi.offset(ev.nameLoc),
		})
	}

	for _, ev := range fi.refs {
		start, end := fi.offsets(ev.start, ev.end)
		ref := types.MacroReference{
			Kind:      ev.kind,
			Name:      ev.name,
			Range:     types.Range{Start: start, End: end},
			Directive: directive(ev.def),
		}
		if ev.kind == types.RefExpansion {
			d.expansions = append(d.expansions, ref)
		} else {
			d.usages = append(d.usages, ref)
		}
	}

	// the front end may report nested candidates; the last one wins
	if n := len(fi.guards); n > 0 {
		g := fi.guards[n-1]
		d.guard = &types.FileGuard{Name: g.name, Offset: fi.offset(g.loc), Length: len(g.name)}
	}

	for _, r := range fi.skipped {
		start, end := fi.offsets(r[0], r[1])
		d.skipped = append(d.skipped, types.Range{Start: start, End: end})
	}

	if fi.hasTokens {
		d.tokens = tokens.Convert(sm, fi.raw, fi.owner.opts.NeedLineColumns)
	}
	return d
}

// forcedIncludes re-attaches the includes of visited pseudo-buffers as
// forced includes sorting before every real directive
func (fi *FileInfo) forcedIncludes() []*types.InclusionDirective {
	var n int
	for _, b := range fi.builtins {
		n += len(b.includes)
	}
	if n == 0 {
		return nil
	}
	out := make([]*types.InclusionDirective, 0, n)
	off := -n
	for _, b := range fi.builtins {
		for _, inc := range b.includes {
			forced := &types.InclusionDirective{
				Range:         types.Range{Start: off, End: off},
				Spelling:      inc.Spelling,
				Angled:        inc.Angled,
				Index:         inc.Index,
				Resolved:      inc.Resolved,
				ForcedInclude: true,
			}
			if inc.IsRecursive() {
				forced.MarkRecursive()
			}
			out = append(out, forced)
			off++
		}
	}
	return out
}

func (fi *FileInfo) offset(l tokens.Loc) int {
	_, off := fi.owner.sm.Decompose(l)
	return off
}

func (fi *FileInfo) offsets(start, end tokens.Loc) (int, int) {
	s, e := fi.offset(start), fi.offset(end)
	if e < s {
		e = s
	}
	return s, e
}
