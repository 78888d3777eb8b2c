package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/ppbridge/internal/macros"
	"github.com/dshills/ppbridge/pkg/types"
)

// Storage persists preprocessing results per translation unit
type Storage interface {
	// Unit operations
	SaveUnit(ctx context.Context, unit *Unit, files []*File) error
	GetUnit(ctx context.Context, mainPath string) (*Unit, error)
	ListUnits(ctx context.Context) ([]*Unit, error)
	DeleteUnit(ctx context.Context, unitID int64) error

	// File operations
	GetFile(ctx context.Context, unitID int64, path string) (*File, error)
	ListFiles(ctx context.Context, unitID int64) ([]*File, error)

	// Directive operations
	ListInclusions(ctx context.Context, fileID int64) ([]*Inclusion, error)
	ListMacros(ctx context.Context, fileID int64) ([]*Macro, error)
	ListMacroRefs(ctx context.Context, fileID int64) ([]*MacroRef, error)
	ListSkippedRanges(ctx context.Context, fileID int64) ([]types.Range, error)
	ListErrorDirectives(ctx context.Context, fileID int64) ([]*ErrorDirective, error)
	SearchMacros(ctx context.Context, query string, limit int) ([]*Macro, error)

	// Macro state cache
	SaveMacroState(ctx context.Context, key string, state *macros.State) error
	LoadMacroState(ctx context.Context, key string) (*macros.State, error)

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage
}

// Unit is one preprocessed translation unit
type Unit struct {
	ID          int64
	MainPath    string
	Language    string
	Dialect     string
	Args        []string
	Fingerprint uint32 // macro checksum of the compilation entry
	ContentHash uint64 // xxh3 of the main file
	FileCount   int
	Duration    time.Duration
	IndexedAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// File is one file visited while preprocessing a unit. The directive slices
// are written by SaveUnit and loaded by the List operations.
type File struct {
	ID          int64
	UnitID      int64
	Path        string
	FileIndex   int
	ContentHash uint64
	IncludedBy  string // spelling of the including directive, empty for the main file
	Guard       *types.FileGuard
	Aborted     bool
	TokenCount  int

	Inclusions []*Inclusion
	Macros     []*Macro
	MacroRefs  []*MacroRef
	Skipped    []types.Range
	Errors     []*ErrorDirective
}

// Inclusion is a stored #include or forced include
type Inclusion struct {
	ID     int64
	FileID int64
	types.Range
	Index     int
	Spelling  string
	Angled    bool
	Forced    bool
	Recursive bool
	Resolved  *types.ResolvedPath
}

// Macro is a stored #define or #undef
type Macro struct {
	ID     int64
	FileID int64
	types.Range
	Name       string
	Params     []string
	Defined    bool
	NameOffset int
	File       string
}

// MacroRef is a stored macro usage or expansion
type MacroRef struct {
	ID     int64
	FileID int64
	types.Range
	Kind      types.ReferenceKind
	Name      string
	DefinedIn string // file of the referenced definition, empty when unknown
}

// ErrorDirective is a stored #error; the handler state is kept as its checksum
type ErrorDirective struct {
	ID     int64
	FileID int64
	types.Range
	Message       string
	StateChecksum uint32
}

// Status contains statistics about the stored units
type Status struct {
	UnitsCount      int
	FilesCount      int
	InclusionsCount int
	UnresolvedCount int
	RecursiveCount  int
	MacrosCount     int
	ErrorsCount     int
	IndexSizeMB     float64
	LastIndexedAt   time.Time
	Health          HealthStatus
}

// HealthStatus represents the health of the store
type HealthStatus struct {
	DatabaseAccessible bool
	FTSIndexesBuilt    bool
}

// FromInclusion converts a directive into its stored form
func FromInclusion(d *types.InclusionDirective) *Inclusion {
	return &Inclusion{
		Range:     d.Range,
		Index:     d.Index,
		Spelling:  d.Spelling,
		Angled:    d.Angled,
		Forced:    d.ForcedInclude,
		Recursive: d.IsRecursive(),
		Resolved:  d.Resolved,
	}
}

// FromMacro converts a directive into its stored form
func FromMacro(m *types.MacroDirective) *Macro {
	return &Macro{
		Range:      m.Range,
		Name:       m.Name,
		Params:     m.Params,
		Defined:    m.Defined,
		NameOffset: m.NameOffset,
		File:       m.File,
	}
}

// FromMacroRef converts a reference into its stored form
func FromMacroRef(r types.MacroReference) *MacroRef {
	ref := &MacroRef{Range: r.Range, Kind: r.Kind, Name: r.Name}
	if r.Directive != nil {
		ref.DefinedIn = r.Directive.File
	}
	return ref
}

// ToDirective converts a stored inclusion back to a directive
func (i *Inclusion) ToDirective() *types.InclusionDirective {
	d := &types.InclusionDirective{
		Range:         i.Range,
		Spelling:      i.Spelling,
		Angled:        i.Angled,
		Index:         i.Index,
		Resolved:      i.Resolved,
		ForcedInclude: i.Forced,
	}
	if i.Recursive {
		d.MarkRecursive()
	}
	return d
}

// ToDirective converts a stored macro back to a directive
func (m *Macro) ToDirective() *types.MacroDirective {
	return &types.MacroDirective{
		Name:       m.Name,
		Params:     m.Params,
		Defined:    m.Defined,
		File:       m.File,
		Range:      m.Range,
		NameOffset: m.NameOffset,
	}
}

// LoadDirectives fills the directive slices of f from s
func LoadDirectives(ctx context.Context, s Storage, f *File) error {
	var err error
	if f.Inclusions, err = s.ListInclusions(ctx, f.ID); err != nil {
		return fmt.Errorf("list inclusions: %w", err)
	}
	if f.Macros, err = s.ListMacros(ctx, f.ID); err != nil {
		return fmt.Errorf("list macros: %w", err)
	}
	if f.MacroRefs, err = s.ListMacroRefs(ctx, f.ID); err != nil {
		return fmt.Errorf("list macro refs: %w", err)
	}
	if f.Skipped, err = s.ListSkippedRanges(ctx, f.ID); err != nil {
		return fmt.Errorf("list skipped ranges: %w", err)
	}
	if f.Errors, err = s.ListErrorDirectives(ctx, f.ID); err != nil {
		return fmt.Errorf("list error directives: %w", err)
	}
	return nil
}
