package fsys

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/ppbridge/pkg/types"
)

// DefaultInternSize bounds the shared path cache
const DefaultInternSize = 50000

// Interner is a bounded cache that deduplicates path strings
type Interner struct {
	cache *lru.Cache[string, string]
}

// NewInterner creates an interner holding at most size strings
func NewInterner(size int) *Interner {
	if size <= 0 {
		size = DefaultInternSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		cache, _ = lru.New[string, string](DefaultInternSize)
	}
	return &Interner{cache: cache}
}

// Intern returns the canonical instance of s
func (i *Interner) Intern(s string) string {
	if s == "" {
		return s
	}
	if v, ok := i.cache.Get(s); ok {
		return v
	}
	i.cache.Add(s, s)
	return s
}

// Len returns the number of cached strings
func (i *Interner) Len() int {
	return i.cache.Len()
}

// Identity builds an interned path identity. An empty searchRoot means no
// search-path lookup took place and forces the search index to
// types.NoSearchIndex; defaultRoot then tells an include found next to its
// includer from an absolute one.
func (i *Interner) Identity(fs FileSystem, path, searchRoot string, defaultRoot bool, searchIndex int) *types.ResolvedPath {
	if searchRoot == "" {
		searchIndex = types.NoSearchIndex
	}
	return &types.ResolvedPath{
		FileSystem:        i.Intern(fs.ID()),
		Path:              i.Intern(fs.Abs(path)),
		SearchRoot:        i.Intern(searchRoot),
		DefaultSearchRoot: defaultRoot,
		SearchIndex:       searchIndex,
	}
}
