package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/ppbridge/internal/macros"
	"github.com/dshills/ppbridge/pkg/types"
)

// ErrNotFound is returned when a requested unit, file or state doesn't exist
var ErrNotFound = types.ErrNotFound

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	queries
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// single writer; also keeps :memory: databases on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

// NewSQLiteStorage opens (and migrates) the database at dbPath
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return &SQLiteStorage{queries: queries{q: db}, db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{queries: queries{q: tx}, tx: tx}, nil
}

// SaveUnit replaces everything stored for unit.MainPath in one transaction
func (s *SQLiteStorage) SaveUnit(ctx context.Context, unit *Unit, files []*File) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := (queries{q: tx}).SaveUnit(ctx, unit, files); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	queries
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error   { return t.tx.Commit() }
func (t *sqliteTx) Rollback() error { return t.tx.Rollback() }

// Close is a no-op; transactions don't own the connection
func (t *sqliteTx) Close() error { return nil }

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, errors.New("nested transactions not supported")
}

// queries implements every read and write on top of a querier
type queries struct {
	q querier
}

// Unit operations

func (s queries) SaveUnit(ctx context.Context, unit *Unit, files []*File) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM units WHERE main_path = ?", unit.MainPath); err != nil {
		return fmt.Errorf("failed to clear unit %s: %w", unit.MainPath, err)
	}

	args, err := encodeList(unit.Args)
	if err != nil {
		return err
	}
	now := time.Now()
	if unit.IndexedAt.IsZero() {
		unit.IndexedAt = now
	}
	unit.FileCount = len(files)
	result, err := s.q.ExecContext(ctx, `
		INSERT INTO units (main_path, language, dialect, args, fingerprint, content_hash,
		                   file_count, duration_ms, indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, unit.MainPath, unit.Language, unit.Dialect, args, int64(unit.Fingerprint), int64(unit.ContentHash),
		unit.FileCount, unit.Duration.Milliseconds(), unit.IndexedAt, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert unit: %w", err)
	}
	if unit.ID, err = result.LastInsertId(); err != nil {
		return err
	}
	unit.CreatedAt, unit.UpdatedAt = now, now

	for _, f := range files {
		f.UnitID = unit.ID
		if err := s.insertFile(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

func (s queries) insertFile(ctx context.Context, f *File) error {
	var guardName sql.NullString
	var guardOffset sql.NullInt64
	if f.Guard != nil {
		guardName = sql.NullString{String: f.Guard.Name, Valid: true}
		guardOffset = sql.NullInt64{Int64: int64(f.Guard.Offset), Valid: true}
	}
	result, err := s.q.ExecContext(ctx, `
		INSERT INTO files (unit_id, path, file_index, content_hash, included_by,
		                   guard_name, guard_offset, aborted, token_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.UnitID, f.Path, f.FileIndex, int64(f.ContentHash), f.IncludedBy,
		guardName, guardOffset, f.Aborted, f.TokenCount)
	if err != nil {
		return fmt.Errorf("failed to insert file %s: %w", f.Path, err)
	}
	if f.ID, err = result.LastInsertId(); err != nil {
		return err
	}

	for _, inc := range f.Inclusions {
		inc.FileID = f.ID
		if err := s.insertInclusion(ctx, inc); err != nil {
			return err
		}
	}
	for _, m := range f.Macros {
		m.FileID = f.ID
		if err := s.insertMacro(ctx, m); err != nil {
			return err
		}
	}
	for _, r := range f.MacroRefs {
		r.FileID = f.ID
		res, err := s.q.ExecContext(ctx, `
			INSERT INTO macro_refs (file_id, kind, name, start_offset, end_offset, defined_in)
			VALUES (?, ?, ?, ?, ?, ?)
		`, r.FileID, string(r.Kind), r.Name, r.Start, r.End, r.DefinedIn)
		if err != nil {
			return fmt.Errorf("failed to insert macro reference: %w", err)
		}
		r.ID, _ = res.LastInsertId()
	}
	for _, rg := range f.Skipped {
		if _, err := s.q.ExecContext(ctx,
			"INSERT INTO skipped_ranges (file_id, start_offset, end_offset) VALUES (?, ?, ?)",
			f.ID, rg.Start, rg.End); err != nil {
			return fmt.Errorf("failed to insert skipped range: %w", err)
		}
	}
	for _, e := range f.Errors {
		e.FileID = f.ID
		res, err := s.q.ExecContext(ctx, `
			INSERT INTO error_directives (file_id, message, start_offset, end_offset, state_checksum)
			VALUES (?, ?, ?, ?, ?)
		`, e.FileID, e.Message, e.Start, e.End, int64(e.StateChecksum))
		if err != nil {
			return fmt.Errorf("failed to insert error directive: %w", err)
		}
		e.ID, _ = res.LastInsertId()
	}
	return nil
}

func (s queries) insertInclusion(ctx context.Context, inc *Inclusion) error {
	var fs, path, root sql.NullString
	var index sql.NullInt64
	var defaultRoot bool
	if rp := inc.Resolved; rp != nil {
		fs = sql.NullString{String: rp.FileSystem, Valid: true}
		path = sql.NullString{String: rp.Path, Valid: true}
		root = sql.NullString{String: rp.SearchRoot, Valid: true}
		index = sql.NullInt64{Int64: int64(rp.SearchIndex), Valid: true}
		defaultRoot = rp.DefaultSearchRoot
	}
	result, err := s.q.ExecContext(ctx, `
		INSERT INTO inclusions (file_id, seq, spelling, angled, forced, recursive, start_offset, end_offset,
		                        resolved_fs, resolved_path, search_root, search_index, default_root)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, inc.FileID, inc.Index, inc.Spelling, inc.Angled, inc.Forced, inc.Recursive, inc.Start, inc.End,
		fs, path, root, index, defaultRoot)
	if err != nil {
		return fmt.Errorf("failed to insert inclusion %q: %w", inc.Spelling, err)
	}
	inc.ID, err = result.LastInsertId()
	return err
}

func (s queries) insertMacro(ctx context.Context, m *Macro) error {
	params, err := encodeList(m.Params)
	if err != nil {
		return err
	}
	result, err := s.q.ExecContext(ctx, `
		INSERT INTO macros (file_id, name, params, defined, start_offset, end_offset, name_offset, owner)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.FileID, m.Name, params, m.Defined, m.Start, m.End, m.NameOffset, m.File)
	if err != nil {
		return fmt.Errorf("failed to insert macro %s: %w", m.Name, err)
	}
	m.ID, err = result.LastInsertId()
	return err
}

const unitColumns = `id, main_path, language, dialect, args, fingerprint, content_hash,
	file_count, duration_ms, indexed_at, created_at, updated_at`

func scanUnit(row interface{ Scan(...any) error }) (*Unit, error) {
	var u Unit
	var dialect, args sql.NullString
	var fingerprint, hash, durationMS int64
	var indexedAt sql.NullTime
	err := row.Scan(&u.ID, &u.MainPath, &u.Language, &dialect, &args, &fingerprint, &hash,
		&u.FileCount, &durationMS, &indexedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Dialect = dialect.String
	u.Fingerprint = uint32(fingerprint)
	u.ContentHash = uint64(hash)
	u.Duration = time.Duration(durationMS) * time.Millisecond
	if indexedAt.Valid {
		u.IndexedAt = indexedAt.Time
	}
	if u.Args, err = decodeList(args); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s queries) GetUnit(ctx context.Context, mainPath string) (*Unit, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+unitColumns+" FROM units WHERE main_path = ?", mainPath)
	u, err := scanUnit(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return u, err
}

func (s queries) ListUnits(ctx context.Context) ([]*Unit, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT "+unitColumns+" FROM units ORDER BY main_path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []*Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func (s queries) DeleteUnit(ctx context.Context, unitID int64) error {
	result, err := s.q.ExecContext(ctx, "DELETE FROM units WHERE id = ?", unitID)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// File operations

const fileColumns = `id, unit_id, path, file_index, content_hash, included_by,
	guard_name, guard_offset, aborted, token_count`

func scanFile(row interface{ Scan(...any) error }) (*File, error) {
	var f File
	var hash int64
	var includedBy, guardName sql.NullString
	var guardOffset sql.NullInt64
	err := row.Scan(&f.ID, &f.UnitID, &f.Path, &f.FileIndex, &hash, &includedBy,
		&guardName, &guardOffset, &f.Aborted, &f.TokenCount)
	if err != nil {
		return nil, err
	}
	f.ContentHash = uint64(hash)
	f.IncludedBy = includedBy.String
	if guardName.Valid {
		f.Guard = &types.FileGuard{Name: guardName.String, Offset: int(guardOffset.Int64), Length: len(guardName.String)}
	}
	return &f, nil
}

// GetFile returns the first visit of path within a unit
func (s queries) GetFile(ctx context.Context, unitID int64, path string) (*File, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE unit_id = ? AND path = ? ORDER BY file_index LIMIT 1",
		unitID, path)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return f, err
}

func (s queries) ListFiles(ctx context.Context, unitID int64) ([]*File, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT "+fileColumns+" FROM files WHERE unit_id = ? ORDER BY file_index", unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// Directive operations

func (s queries) ListInclusions(ctx context.Context, fileID int64) ([]*Inclusion, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, file_id, seq, spelling, angled, forced, recursive, start_offset, end_offset,
		       resolved_fs, resolved_path, search_root, search_index, default_root
		FROM inclusions WHERE file_id = ? ORDER BY start_offset, id
	`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Inclusion
	for rows.Next() {
		var inc Inclusion
		var fs, path, root sql.NullString
		var index sql.NullInt64
		var defaultRoot bool
		if err := rows.Scan(&inc.ID, &inc.FileID, &inc.Index, &inc.Spelling, &inc.Angled, &inc.Forced,
			&inc.Recursive, &inc.Start, &inc.End, &fs, &path, &root, &index, &defaultRoot); err != nil {
			return nil, err
		}
		if path.Valid {
			inc.Resolved = &types.ResolvedPath{
				FileSystem:        fs.String,
				Path:              path.String,
				SearchRoot:        root.String,
				DefaultSearchRoot: defaultRoot,
				SearchIndex:       int(index.Int64),
			}
		}
		out = append(out, &inc)
	}
	return out, rows.Err()
}

const macroColumns = "m.id, m.file_id, m.name, m.params, m.defined, m.start_offset, m.end_offset, m.name_offset, m.owner"

func (s queries) scanMacros(rows *sql.Rows) ([]*Macro, error) {
	defer rows.Close()
	var out []*Macro
	for rows.Next() {
		var m Macro
		var params, owner sql.NullString
		if err := rows.Scan(&m.ID, &m.FileID, &m.Name, &params, &m.Defined, &m.Start, &m.End,
			&m.NameOffset, &owner); err != nil {
			return nil, err
		}
		m.File = owner.String
		var err error
		if m.Params, err = decodeList(params); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s queries) ListMacros(ctx context.Context, fileID int64) ([]*Macro, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT "+macroColumns+" FROM macros m WHERE m.file_id = ? ORDER BY m.id", fileID)
	if err != nil {
		return nil, err
	}
	return s.scanMacros(rows)
}

// SearchMacros finds macro directives whose name starts with query
func (s queries) SearchMacros(ctx context.Context, query string, limit int) ([]*Macro, error) {
	if limit <= 0 {
		limit = 20
	}
	term := `"` + strings.ReplaceAll(query, `"`, `""`) + `"*`
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+macroColumns+`
		FROM macros_fts
		JOIN macros m ON m.id = macros_fts.rowid
		WHERE macros_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, term, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search macros: %w", err)
	}
	return s.scanMacros(rows)
}

func (s queries) ListMacroRefs(ctx context.Context, fileID int64) ([]*MacroRef, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, file_id, kind, name, start_offset, end_offset, defined_in
		FROM macro_refs WHERE file_id = ? ORDER BY id
	`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*MacroRef
	for rows.Next() {
		var r MacroRef
		var kind string
		var definedIn sql.NullString
		if err := rows.Scan(&r.ID, &r.FileID, &kind, &r.Name, &r.Start, &r.End, &definedIn); err != nil {
			return nil, err
		}
		r.Kind = types.ReferenceKind(kind)
		r.DefinedIn = definedIn.String
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s queries) ListSkippedRanges(ctx context.Context, fileID int64) ([]types.Range, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT start_offset, end_offset FROM skipped_ranges WHERE file_id = ? ORDER BY id", fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Range
	for rows.Next() {
		var r types.Range
		if err := rows.Scan(&r.Start, &r.End); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s queries) ListErrorDirectives(ctx context.Context, fileID int64) ([]*ErrorDirective, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, file_id, message, start_offset, end_offset, state_checksum
		FROM error_directives WHERE file_id = ? ORDER BY id
	`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ErrorDirective
	for rows.Next() {
		var e ErrorDirective
		var message sql.NullString
		var checksum sql.NullInt64
		if err := rows.Scan(&e.ID, &e.FileID, &message, &e.Start, &e.End, &checksum); err != nil {
			return nil, err
		}
		e.Message = message.String
		e.StateChecksum = uint32(checksum.Int64)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Macro state cache

// SaveMacroState stores state under key. Cleaned states are stored without
// macro text.
func (s queries) SaveMacroState(ctx context.Context, key string, state *macros.State) error {
	if state == nil {
		return fmt.Errorf("macro state %q: %w", key, types.ErrInvalidArgument)
	}
	var list sql.NullString
	if !state.Cleaned() {
		raw, err := json.Marshal(state.Macros())
		if err != nil {
			return err
		}
		list = sql.NullString{String: string(raw), Valid: true}
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO macro_states (key, checksum, cleaned, macros, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			checksum = excluded.checksum,
			cleaned = excluded.cleaned,
			macros = excluded.macros,
			updated_at = excluded.updated_at
	`, key, int64(state.Checksum()), state.Cleaned(), list, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save macro state %q: %w", key, err)
	}
	return nil
}

// LoadMacroState restores a stored state. A cleaned state only carries its
// checksum.
func (s queries) LoadMacroState(ctx context.Context, key string) (*macros.State, error) {
	var checksum int64
	var cleaned bool
	var list sql.NullString
	err := s.q.QueryRowContext(ctx, "SELECT checksum, cleaned, macros FROM macro_states WHERE key = ?", key).
		Scan(&checksum, &cleaned, &list)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if cleaned {
		return macros.CleanedState(uint32(checksum)), nil
	}
	defs, err := decodeList(list)
	if err != nil {
		return nil, err
	}
	return macros.NewTable(defs).Snapshot(), nil
}

// Status operations

func (s queries) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{}
	counts := []struct {
		dst   *int
		query string
	}{
		{&status.UnitsCount, "SELECT COUNT(*) FROM units"},
		{&status.FilesCount, "SELECT COUNT(*) FROM files"},
		{&status.InclusionsCount, "SELECT COUNT(*) FROM inclusions"},
		{&status.UnresolvedCount, "SELECT COUNT(*) FROM inclusions WHERE resolved_path IS NULL"},
		{&status.RecursiveCount, "SELECT COUNT(*) FROM inclusions WHERE recursive = 1"},
		{&status.MacrosCount, "SELECT COUNT(*) FROM macros"},
		{&status.ErrorsCount, "SELECT COUNT(*) FROM error_directives"},
	}
	for _, c := range counts {
		if err := s.q.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, err
		}
	}
	status.Health.DatabaseAccessible = true

	var last sql.NullTime
	err := s.q.QueryRowContext(ctx, "SELECT indexed_at FROM units ORDER BY indexed_at DESC LIMIT 1").Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if last.Valid {
		status.LastIndexedAt = last.Time
	}

	var pageCount, pageSize int
	if err := s.q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := s.q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
		}
	}

	var name string
	err = s.q.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='macros_fts'").Scan(&name)
	status.Health.FTSIndexesBuilt = err == nil
	return status, nil
}

// encodeList stores nil as NULL so that an empty parameter list survives
func encodeList(list []string) (sql.NullString, error) {
	if list == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeList(raw sql.NullString) ([]string, error) {
	if !raw.Valid {
		return nil, nil
	}
	list := []string{}
	if err := json.Unmarshal([]byte(raw.String), &list); err != nil {
		return nil, fmt.Errorf("corrupt list %q: %w", raw.String, err)
	}
	return list, nil
}
