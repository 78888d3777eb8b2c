// Package searcher looks up macro directives by name across stored units.
//
// Candidates come from the storage full-text index over macro names. The
// index matches words, so a query for LEVEL also finds LOG_LEVEL; the
// searcher keeps only names that start with the query (or equal it in
// exact mode) and ranks them:
//
//  1. names equal to the query
//  2. shorter names before longer ones
//  3. file path, then directive offset
//
// # Basic Usage
//
//	s := searcher.New(store, 1000)
//
//	resp, err := s.Search(ctx, searcher.Request{
//	    Query:    "LOG",
//	    Limit:    10,
//	    UseCache: true,
//	})
//
//	for _, m := range resp.Results {
//	    fmt.Printf("%s %s:%d\n", m.Name, m.File, m.NameOffset)
//	}
//
// # Caching
//
// Responses are kept in an LRU cache keyed by an xxh3 hash of the query,
// mode, limit and filter. Entries expire after CacheTTL (10 minutes by
// default) and results are copied on the way in and out. Call
// InvalidateCache after storing new units.
package searcher
