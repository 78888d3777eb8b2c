//go:build sqlite_cgo

package storage

// Built with CGO and the sqlite_cgo tag; uses the C SQLite amalgamation.
// mattn/go-sqlite3 needs the fts5 tag for the macro name index:
//
//	CGO_ENABLED=1 go build -tags "sqlite_cgo,sqlite_fts5" ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
