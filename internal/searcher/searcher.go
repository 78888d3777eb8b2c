package searcher

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/xxh3"

	"github.com/dshills/ppbridge/internal/storage"
)

// Mode selects how the query is matched against macro names
type Mode string

const (
	ModePrefix Mode = "prefix" // names starting with the query
	ModeExact  Mode = "exact"  // names equal to the query
)

// Request contains parameters for a macro search
type Request struct {
	Query       string
	Limit       int
	Mode        Mode
	DefinedOnly bool // drop #undef records
	UseCache    bool
	CacheTTL    time.Duration
}

// Response contains search results and metadata
type Response struct {
	Results      []*storage.Macro
	TotalResults int
	Mode         Mode
	Duration     time.Duration
	CacheHit     bool
}

// cacheEntry is a cached response with its expiration time
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Searcher ranks macro definitions found by the store's full-text index
// and caches recent queries
type Searcher struct {
	storage storage.Storage
	cache   *lru.Cache[uint64, *cacheEntry]
	cacheMu sync.RWMutex
}

// New creates a Searcher with a cache of cacheSize queries
func New(store storage.Storage, cacheSize int) *Searcher {
	if cacheSize <= 0 {
		cacheSize = 1000
	}
	cache, err := lru.New[uint64, *cacheEntry](cacheSize)
	if err != nil {
		// only reachable with a non-positive size
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &Searcher{storage: store, cache: cache}
}

// Search finds macros by name
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()

	if err := validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	if req.UseCache {
		if cached := s.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	// the index matches tokens, so fetch more than needed before filtering
	found, err := s.storage.SearchMacros(ctx, req.Query, req.Limit*4)
	if err != nil {
		return nil, err
	}

	results := make([]*storage.Macro, 0, len(found))
	for _, m := range found {
		if req.DefinedOnly && !m.Defined {
			continue
		}
		if !matches(m.Name, req) {
			continue
		}
		results = append(results, m)
	}
	rank(results, req.Query)
	if len(results) > req.Limit {
		results = results[:req.Limit]
	}

	response := &Response{
		Results:      results,
		TotalResults: len(results),
		Mode:         req.Mode,
		Duration:     time.Since(startTime),
	}
	if req.UseCache && len(results) > 0 {
		s.storeInCache(req, response)
	}
	return response, nil
}

// InvalidateCache drops every cached query. Call it after new units are
// stored.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// CacheLen returns the number of cached queries
func (s *Searcher) CacheLen() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cache.Len()
}

func validateRequest(req *Request) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if req.Limit > 100 {
		req.Limit = 100
	}
	switch req.Mode {
	case "":
		req.Mode = ModePrefix
	case ModePrefix, ModeExact:
	default:
		return fmt.Errorf("unsupported search mode: %s", req.Mode)
	}
	if req.CacheTTL == 0 {
		req.CacheTTL = 10 * time.Minute
	}
	return nil
}

func matches(name string, req Request) bool {
	if req.Mode == ModeExact {
		return name == req.Query
	}
	return strings.HasPrefix(strings.ToLower(name), strings.ToLower(req.Query))
}

// rank orders exact matches first, then shorter names, then by file and
// position
func rank(results []*storage.Macro, query string) {
	slices.SortStableFunc(results, func(a, b *storage.Macro) int {
		ea, eb := a.Name == query, b.Name == query
		switch {
		case ea && !eb:
			return -1
		case eb && !ea:
			return 1
		}
		if d := len(a.Name) - len(b.Name); d != 0 {
			return d
		}
		if c := strings.Compare(a.File, b.File); c != 0 {
			return c
		}
		return a.Start - b.Start
	})
}

func (s *Searcher) checkCache(req Request) *Response {
	key := queryKey(req)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(key)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}
	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()
		s.cacheMu.Lock()
		s.cache.Remove(key)
		s.cacheMu.Unlock()
		return nil
	}
	response := copyResponse(entry.response)
	s.cacheMu.RUnlock()
	return response
}

func (s *Searcher) storeInCache(req Request, response *Response) {
	entry := &cacheEntry{
		response:  copyResponse(response),
		expiresAt: time.Now().Add(req.CacheTTL),
	}
	s.cacheMu.Lock()
	s.cache.Add(queryKey(req), entry)
	s.cacheMu.Unlock()
}

// copyResponse copies the response and its macros so cached entries
// cannot be modified through returned results
func copyResponse(src *Response) *Response {
	dst := *src
	dst.Results = make([]*storage.Macro, len(src.Results))
	for i, m := range src.Results {
		c := *m
		c.Params = slices.Clone(m.Params)
		dst.Results[i] = &c
	}
	return &dst
}

func queryKey(req Request) uint64 {
	var b strings.Builder
	b.WriteString(req.Query)
	b.WriteString("|")
	b.WriteString(string(req.Mode))
	b.WriteString("|")
	b.WriteString(strconv.Itoa(req.Limit))
	b.WriteString("|")
	b.WriteString(strconv.FormatBool(req.DefinedOnly))
	return xxh3.HashString(b.String())
}
