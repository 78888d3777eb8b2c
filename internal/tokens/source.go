package tokens

import (
	"fmt"
	"sort"
	"sync"

	"modernc.org/token"

	"github.com/dshills/ppbridge/pkg/types"
)

// Loc is an opaque source location. File locations and macro-expansion
// locations live in two disjoint address spaces; a Loc is only meaningful
// to the SourceManager that produced it.
type Loc uint32

// NoLoc is the invalid location
const NoLoc Loc = 0

const macroBit Loc = 1 << 31

// IsValid reports whether l was produced by a SourceManager
func (l Loc) IsValid() bool { return l != NoLoc && l != macroBit }

// IsMacro reports whether l lies inside a macro expansion
func (l Loc) IsMacro() bool { return l&macroBit != 0 }

// FileID identifies a buffer registered with a SourceManager
type FileID int

type fileEntry struct {
	base    int
	size    int
	file    *token.File
	builtin bool
}

type expansionEntry struct {
	base     int
	size     int
	name     string
	spelling Loc
	start    Loc
	end      Loc
}

// SourceManager owns the buffers and macro expansions of one compilation
// unit and decomposes opaque locations into offsets, lines and columns.
type SourceManager struct {
	mu         sync.RWMutex
	files      []*fileEntry
	expansions []*expansionEntry
	nextFile   int
	nextMacro  int
}

// NewSourceManager creates an empty source manager
func NewSourceManager() *SourceManager {
	return &SourceManager{nextFile: 1, nextMacro: 1}
}

// AddFile registers a buffer. Pseudo-buffers such as the predefines buffer
// are registered with builtin set.
func (sm *SourceManager) AddFile(name string, content []byte, builtin bool) FileID {
	f := token.NewFile(name, len(content))
	f.SetLinesForContent(content)

	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.files = append(sm.files, &fileEntry{base: sm.nextFile, size: len(content), file: f, builtin: builtin})
	sm.nextFile += len(content) + 1
	return FileID(len(sm.files))
}

// FileLoc returns the location of offset in file id
func (sm *SourceManager) FileLoc(id FileID, offset int) Loc {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	e := sm.fileEntry(id)
	if e == nil || offset < 0 || offset > e.size {
		return NoLoc
	}
	return Loc(e.base + offset)
}

// AddExpansion registers one macro expansion whose replacement text is
// length bytes long and is spelled at spelling. start and end delimit the
// expansion at the use site, from the macro name to just past the closing
// parenthesis.
// The returned location addresses byte 0 of the replacement text.
func (sm *SourceManager) AddExpansion(name string, spelling Loc, length int, start, end Loc) (Loc, error) {
	if !start.IsValid() || !end.IsValid() {
		return NoLoc, fmt.Errorf("%w: expansion of %s has no use-site range", types.ErrInvalidArgument, name)
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	base := sm.nextMacro
	if Loc(base+length+1)&macroBit != 0 {
		return NoLoc, fmt.Errorf("%w: macro address space exhausted", types.ErrInvalidArgument)
	}
	sm.expansions = append(sm.expansions, &expansionEntry{
		base:     base,
		size:     length,
		name:     name,
		spelling: spelling,
		start:    start,
		end:      end,
	})
	sm.nextMacro += length + 1
	return macroBit | Loc(base), nil
}

// Decompose returns the file and flat byte offset of a location. Macro
// locations decompose to the start of their outermost expansion.
func (sm *SourceManager) Decompose(l Loc) (FileID, int) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.decompose(sm.fileLoc(l))
}

// FileLocOf maps a macro location to the file location of its expansion start
func (sm *SourceManager) FileLocOf(l Loc) Loc {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.fileLoc(l)
}

// ExpansionRange returns the outermost use-site range of the expansion l
// belongs to, as file locations.
func (sm *SourceManager) ExpansionRange(l Loc) (Loc, Loc) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.expansionRange(l)
}

// ExpansionName returns the macro name of the expansion l belongs to
func (sm *SourceManager) ExpansionName(l Loc) string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if e := sm.expansion(l); e != nil {
		return e.name
	}
	return ""
}

// SpellingLoc returns where the text at a macro location was written
func (sm *SourceManager) SpellingLoc(l Loc) Loc {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	e := sm.expansion(l)
	if e == nil {
		return l
	}
	if !e.spelling.IsValid() {
		return NoLoc
	}
	return e.spelling + Loc(int(l&^macroBit)-e.base)
}

// Position returns the 1-based line and column of a location
func (sm *SourceManager) Position(l Loc) (line, column int) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	id, off := sm.decompose(sm.fileLoc(l))
	e := sm.fileEntry(id)
	if e == nil {
		return 0, 0
	}
	p := e.file.Position(e.file.Pos(off))
	return p.Line, p.Column
}

// FileName returns the name a buffer was registered with
func (sm *SourceManager) FileName(id FileID) string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if e := sm.fileEntry(id); e != nil {
		return e.file.Name()
	}
	return ""
}

// IsBuiltin reports whether id is a pseudo-buffer
func (sm *SourceManager) IsBuiltin(id FileID) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	e := sm.fileEntry(id)
	return e != nil && e.builtin
}

func (sm *SourceManager) fileEntry(id FileID) *fileEntry {
	if id < 1 || int(id) > len(sm.files) {
		return nil
	}
	return sm.files[id-1]
}

func (sm *SourceManager) expansion(l Loc) *expansionEntry {
	if !l.IsMacro() {
		return nil
	}
	off := int(l &^ macroBit)
	i := sort.Search(len(sm.expansions), func(i int) bool { return sm.expansions[i].base > off }) - 1
	if i < 0 || off > sm.expansions[i].base+sm.expansions[i].size {
		return nil
	}
	return sm.expansions[i]
}

func (sm *SourceManager) fileLoc(l Loc) Loc {
	for l.IsMacro() {
		e := sm.expansion(l)
		if e == nil {
			return NoLoc
		}
		l = e.start
	}
	return l
}

func (sm *SourceManager) expansionRange(l Loc) (Loc, Loc) {
	e := sm.expansion(l)
	if e == nil {
		return l, l
	}
	start, end := e.start, e.end
	if start.IsMacro() {
		start, _ = sm.expansionRange(start)
	}
	if end.IsMacro() {
		_, end = sm.expansionRange(end)
	}
	return start, end
}

func (sm *SourceManager) decompose(l Loc) (FileID, int) {
	if !l.IsValid() || l.IsMacro() {
		return 0, -1
	}
	off := int(l)
	i := sort.Search(len(sm.files), func(i int) bool { return sm.files[i].base > off }) - 1
	if i < 0 {
		return 0, -1
	}
	e := sm.files[i]
	if off > e.base+e.size {
		return 0, -1
	}
	return FileID(i + 1), off - e.base
}
