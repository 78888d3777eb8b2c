// Package storage provides SQLite-based persistence for preprocessing results.
//
// The storage layer manages:
//   - Translation units (main file, language, argument vector, fingerprint)
//   - Files visited per unit, with header guards and content hashes
//   - Inclusion, macro and #error directives per file
//   - Macro references and skipped ranges
//   - A macro state cache keyed by compilation entry
//
// # Database Schema
//
// Tables:
//   - units: one row per main file
//   - files: files in entry order, keyed by (unit, file index)
//   - inclusions: #include and forced includes with their resolved path identity
//   - macros: #define and #undef directives
//   - macros_fts: FTS5 index over macro names
//   - macro_refs, skipped_ranges, error_directives
//   - macro_states: saved macro tables; cleaned states keep only the checksum
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.ppbridge/ppbridge.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	unit := &storage.Unit{MainPath: "/src/main.c", Language: "C", Fingerprint: entry.Fingerprint()}
//	if err := db.SaveUnit(ctx, unit, files); err != nil {
//	    return err
//	}
//
// SaveUnit replaces whatever was stored for the same main file. Rows of the
// previous run are removed through ON DELETE CASCADE.
//
// # Incremental Updates
//
// The indexer compares the stored fingerprint and content hash before
// preprocessing a unit again:
//
//	stored, err := db.GetUnit(ctx, mainPath)
//	if err == nil && stored.Fingerprint == entry.Fingerprint() && stored.ContentHash == hash {
//	    return nil
//	}
//
// # Build Tags
//
// Pure Go build (default):
//
//   - Uses modernc.org/sqlite
//
//     CGO_ENABLED=0 go build ./...
//
// CGO build (sqlite_cgo tag):
//
//   - Uses github.com/mattn/go-sqlite3, needs sqlite_fts5 for the macro index
//
//     CGO_ENABLED=1 go build -tags "sqlite_cgo,sqlite_fts5" ./...
package storage
