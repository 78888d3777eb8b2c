package macros

import (
	"slices"
	"strings"
	"sync"
)

// State is an immutable snapshot of a Table
type State struct {
	macros   []string
	checksum uint32
	cleaned  bool
}

// Checksum returns the fingerprint captured by the snapshot
func (s *State) Checksum() uint32 { return s.checksum }

// Cleaned reports whether the macro text was dropped
func (s *State) Cleaned() bool { return s.cleaned }

// Macros returns the captured list; nil for cleaned states. Callers must not modify it.
func (s *State) Macros() []string { return s.macros }

// Clean returns a copy of the state without macro text. Restoring a cleaned
// state only carries the checksum over.
func (s *State) Clean() *State {
	return &State{checksum: s.checksum, cleaned: true}
}

// CleanedState rebuilds a cleaned state from a persisted checksum
func CleanedState(checksum uint32) *State {
	return &State{checksum: checksum, cleaned: true}
}

// Table is one layer of macro definitions: an ordered list of raw NAME[=VALUE]
// strings plus its checksum. Published lists are never modified in place.
type Table struct {
	mu       sync.RWMutex
	macros   []string
	checksum uint32
}

// NewTable creates a table owning a copy of macros
func NewTable(macros []string) *Table {
	list := slices.Clone(macros)
	return &Table{macros: list, checksum: Checksum(list)}
}

// Macros returns the current list. Callers must not modify it.
func (t *Table) Macros() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.macros
}

// Checksum returns the fingerprint of this layer alone
func (t *Table) Checksum() uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.checksum
}

// Len returns the number of definitions
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.macros)
}

// Append publishes a new list with defs added at the end
func (t *Table) Append(defs ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := make([]string, 0, len(t.macros)+len(defs))
	list = append(list, t.macros...)
	list = append(list, defs...)
	t.macros = list
	t.checksum = Checksum(list)
}

// Snapshot captures the current list (by reference) and checksum
func (t *Table) Snapshot() *State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return &State{macros: t.macros, checksum: t.checksum}
}

// Restore replaces the list and checksum with the snapshot's. A cleaned
// snapshot leaves the live list untouched and restores only the checksum.
func (t *Table) Restore(s *State) {
	if s == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !s.cleaned {
		t.macros = s.macros
	}
	t.checksum = s.checksum
}

// FileTable is the per-compilation-unit layer. It borrows the shared system
// table and owns the user table.
type FileTable struct {
	system *Table
	user   *Table
}

// NewFileTable layers user definitions over a shared system table
func NewFileTable(system *Table, user []string) *FileTable {
	if system == nil {
		system = NewTable(nil)
	}
	return &FileTable{system: system, user: NewTable(user)}
}

// System returns the shared system layer
func (f *FileTable) System() *Table { return f.system }

// User returns the per-unit layer
func (f *FileTable) User() *Table { return f.user }

// SystemMacros returns the predefined/compiler built-in definitions
func (f *FileTable) SystemMacros() []string { return f.system.Macros() }

// UserMacros returns the project-supplied definitions
func (f *FileTable) UserMacros() []string { return f.user.Macros() }

// Checksum detects a change of either layer
func (f *FileTable) Checksum() uint32 {
	return f.user.Checksum() ^ f.system.Checksum()
}

// Snapshot captures the user layer
func (f *FileTable) Snapshot() *State { return f.user.Snapshot() }

// Restore restores the user layer
func (f *FileTable) Restore(s *State) { f.user.Restore(s) }

// Split parses a NAME[=VALUE] definition. A definition without '=' has the
// implicit value "1", matching -D semantics.
func Split(def string) (name, value string) {
	name, value, ok := strings.Cut(def, "=")
	if !ok {
		return strings.TrimSpace(def), "1"
	}
	return strings.TrimSpace(name), value
}

// DefineLine renders a definition as a #define directive line
func DefineLine(def string) string {
	name, value := Split(def)
	return "#define " + name + " " + value
}
