// Package indexer runs the preprocessing pipeline over a set of compilation
// units and persists the results.
//
// For every unit the indexer builds a compilation database entry, hashes the
// main file with xxh3, and skips the unit when the stored result has the same
// content hash and macro fingerprint. Otherwise the reference frontend drives
// a tracker.Callback over the unit and the collected per-file records are
// saved in one transaction, together with the unit's macro state.
//
//	idx := indexer.New(store, settings, registry, logger)
//	stats, err := idx.PreprocessUnits(ctx, handlers, &indexer.Config{Workers: 8})
//
// Units run concurrently on an errgroup bounded by a semaphore. A unit that
// fails is counted in Statistics.UnitsFailed and does not stop the others;
// storage failures and context cancellation abort the run. Only one run may
// be active per Indexer: a second call returns ErrInProgress.
//
// When recover_not_found_includes is set, unresolved includes are retried
// through a ProjectSearcher that probes the includer's ancestors and their
// include directories.
package indexer
