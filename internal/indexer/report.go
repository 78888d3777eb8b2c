package indexer

import (
	"github.com/dshills/ppbridge/internal/storage"
	"github.com/dshills/ppbridge/pkg/types"
)

// UnitReport is the JSON summary of a preprocessed unit
type UnitReport struct {
	File        string       `json:"file"`
	Language    string       `json:"language"`
	Dialect     string       `json:"dialect"`
	Args        []string     `json:"args"`
	Fingerprint uint32       `json:"fingerprint"`
	Reused      bool         `json:"reused,omitempty"`
	DurationMS  int64        `json:"duration_ms"`
	Files       []FileReport `json:"files,omitempty"`
}

// FileReport is the JSON summary of one visited file
type FileReport struct {
	Path       string          `json:"path"`
	Index      int             `json:"index"`
	IncludedBy string          `json:"included_by,omitempty"`
	Guard      *GuardReport    `json:"guard,omitempty"`
	Aborted    bool            `json:"aborted,omitempty"`
	Tokens     int             `json:"tokens"`
	Includes   []IncludeReport `json:"includes,omitempty"`
	Macros     []MacroReport   `json:"macros,omitempty"`
	Expansions int             `json:"expansions"`
	Usages     int             `json:"usages"`
	Skipped    [][2]int        `json:"skipped,omitempty"`
	Errors     []ErrorReport   `json:"errors,omitempty"`
}

// GuardReport is a header guard macro
type GuardReport struct {
	Name   string `json:"name"`
	Offset int    `json:"offset"`
}

// IncludeReport is one include directive
type IncludeReport struct {
	Spelling    string `json:"spelling"`
	Angled      bool   `json:"angled,omitempty"`
	Forced      bool   `json:"forced,omitempty"`
	Recursive   bool   `json:"recursive,omitempty"`
	Range       [2]int `json:"range"`
	Resolved    string `json:"resolved,omitempty"`
	SearchRoot  string `json:"search_root,omitempty"`
	SearchIndex int    `json:"search_index"`
}

// MacroReport is one #define or #undef
type MacroReport struct {
	Name    string   `json:"name"`
	Params  []string `json:"params,omitempty"`
	Defined bool     `json:"defined"`
	Range   [2]int   `json:"range"`
}

// ErrorReport is one #error
type ErrorReport struct {
	Message       string `json:"message"`
	Range         [2]int `json:"range"`
	StateChecksum uint32 `json:"state_checksum"`
}

// NewUnitReport summarizes a result
func NewUnitReport(res *Result) *UnitReport {
	r := &UnitReport{
		File:        res.Unit.MainPath,
		Language:    res.Unit.Language,
		Dialect:     res.Unit.Dialect,
		Args:        res.Unit.Args,
		Fingerprint: res.Unit.Fingerprint,
		Reused:      res.Skipped,
		DurationMS:  res.Unit.Duration.Milliseconds(),
	}
	for _, f := range res.Files {
		r.Files = append(r.Files, NewFileReport(f))
	}
	return r
}

// NewFileReport summarizes a stored file. The directive slices must be
// loaded.
func NewFileReport(f *storage.File) FileReport {
	r := FileReport{
		Path:       f.Path,
		Index:      f.FileIndex,
		IncludedBy: f.IncludedBy,
		Aborted:    f.Aborted,
		Tokens:     f.TokenCount,
	}
	if f.Guard != nil {
		r.Guard = &GuardReport{Name: f.Guard.Name, Offset: f.Guard.Offset}
	}
	for _, inc := range f.Inclusions {
		ir := IncludeReport{
			Spelling:    inc.Spelling,
			Angled:      inc.Angled,
			Forced:      inc.Forced,
			Recursive:   inc.Recursive,
			Range:       [2]int{inc.Start, inc.End},
			SearchIndex: -1,
		}
		if inc.Resolved != nil {
			ir.Resolved = inc.Resolved.Path
			ir.SearchRoot = inc.Resolved.SearchRoot
			ir.SearchIndex = inc.Resolved.SearchIndex
		}
		r.Includes = append(r.Includes, ir)
	}
	for _, m := range f.Macros {
		r.Macros = append(r.Macros, MacroReport{
			Name:    m.Name,
			Params:  m.Params,
			Defined: m.Defined,
			Range:   [2]int{m.Start, m.End},
		})
	}
	for _, ref := range f.MacroRefs {
		if ref.Kind == types.RefExpansion {
			r.Expansions++
		} else {
			r.Usages++
		}
	}
	for _, s := range f.Skipped {
		r.Skipped = append(r.Skipped, [2]int{s.Start, s.End})
	}
	for _, e := range f.Errors {
		r.Errors = append(r.Errors, ErrorReport{
			Message:       e.Message,
			Range:         [2]int{e.Start, e.End},
			StateChecksum: e.StateChecksum,
		})
	}
	return r
}
