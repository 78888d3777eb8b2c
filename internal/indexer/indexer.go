package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/ppbridge/internal/compdb"
	"github.com/dshills/ppbridge/internal/config"
	"github.com/dshills/ppbridge/internal/frontend"
	"github.com/dshills/ppbridge/internal/fsys"
	"github.com/dshills/ppbridge/internal/macros"
	"github.com/dshills/ppbridge/internal/storage"
	"github.com/dshills/ppbridge/internal/tracker"
)

// ErrInProgress is returned when another run holds the index lock
var ErrInProgress = errors.New("preprocessing already in progress")

// Indexer coordinates the pipeline: build entry -> preprocess -> store
type Indexer struct {
	store    storage.Storage
	settings config.Settings
	registry *fsys.Registry
	builder  *compdb.Builder
	interner *fsys.Interner
	log      *slog.Logger
	lock     IndexLock
}

// Config contains per-run configuration
type Config struct {
	Workers int  // Number of concurrent units (default: settings.Workers)
	Force   bool // Preprocess units even when the stored result is current
}

// Statistics contains statistics about one run
type Statistics struct {
	UnitsProcessed int
	UnitsSkipped   int
	UnitsFailed    int
	FilesVisited   int
	Unresolved     int
	Duration       time.Duration
	ErrorMessages  []string
}

// Result is the outcome of preprocessing one unit
type Result struct {
	Entry   *compdb.Entry
	Unit    *storage.Unit
	Files   []*storage.File
	Skipped bool // the stored result was current and reused
}

// New creates an indexer. A nil registry serves the local file system.
func New(store storage.Storage, settings config.Settings, registry *fsys.Registry, logger *slog.Logger) *Indexer {
	if registry == nil {
		registry = fsys.NewRegistry(fsys.Options{AlwaysUseVFS: settings.AlwaysUseVFS})
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		store:    store,
		settings: settings,
		registry: registry,
		builder: compdb.NewBuilder(registry, compdb.Options{
			SkipCompilerBuiltins: settings.SkipCompilerBuiltins,
			Logger:               logger,
		}),
		interner: fsys.NewInterner(4096),
		log:      logger,
	}
}

// PreprocessUnits preprocesses every handler's unit concurrently. A failing
// unit is counted and reported in the statistics; only storage and context
// failures abort the run.
func (idx *Indexer) PreprocessUnits(ctx context.Context, handlers []compdb.Handler, cfg *Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrInProgress
	}
	defer idx.lock.Release()

	if cfg == nil {
		cfg = &Config{}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = idx.settings.Workers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	semaphore := make(chan struct{}, workers)
	var (
		processed  int32
		skipped    int32
		failed     int32
		files      int32
		unresolved int32
		mu         sync.Mutex // protects stats.ErrorMessages
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, h := range handlers {
		select {
		case <-gctx.Done():
		case semaphore <- struct{}{}:
		}
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			defer func() { <-semaphore }()

			res, err := idx.preprocess(gctx, h, cfg.Force)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errStore) {
					return err
				}
				atomic.AddInt32(&failed, 1)
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", h.StartFile(), err))
				mu.Unlock()
				idx.log.Warn("indexer.unit_failed", "file", h.StartFile(), "error", err)
				return nil
			}
			if res.Skipped {
				atomic.AddInt32(&skipped, 1)
				return nil
			}
			atomic.AddInt32(&processed, 1)
			atomic.AddInt32(&files, int32(len(res.Files)))
			atomic.AddInt32(&unresolved, int32(countUnresolved(res.Files)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats.UnitsProcessed = int(processed)
	stats.UnitsSkipped = int(skipped)
	stats.UnitsFailed = int(failed)
	stats.FilesVisited = int(files)
	stats.Unresolved = int(unresolved)
	stats.Duration = time.Since(startTime)
	idx.log.Info("indexer.done",
		"processed", stats.UnitsProcessed,
		"skipped", stats.UnitsSkipped,
		"failed", stats.UnitsFailed,
		"duration", stats.Duration)
	return stats, nil
}

// Preprocess runs a single unit under the index lock and always stores
// a fresh result
func (idx *Indexer) Preprocess(ctx context.Context, h compdb.Handler) (*Result, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrInProgress
	}
	defer idx.lock.Release()
	return idx.preprocess(ctx, h, true)
}

// errStore marks failures of the store, which abort a batch run
var errStore = errors.New("store failure")

func (idx *Indexer) preprocess(ctx context.Context, h compdb.Handler, force bool) (*Result, error) {
	entry := idx.builder.Build(h)

	fs, mainPath, err := idx.registry.Resolve(entry.File())
	if err != nil {
		return nil, err
	}
	content, err := fs.ReadFile(mainPath)
	if err != nil {
		return nil, fmt.Errorf("read main file: %w", err)
	}
	hash := xxh3.Hash(content)

	if !force {
		stored, err := idx.store.GetUnit(ctx, entry.File())
		switch {
		case err == nil && stored.Fingerprint == entry.Fingerprint() && stored.ContentHash == hash:
			idx.log.Debug("indexer.unit_current", "file", entry.File())
			return &Result{Entry: entry, Unit: stored, Skipped: true}, nil
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("%w: %w", errStore, err)
		}
	}

	start := time.Now()
	table := h.Macros()
	driver := frontend.NewDriver(entry, idx.registry, frontend.Options{
		MaxIncludeDepth:       idx.settings.MaxIncludeDepth,
		AtomicMacroExpansions: idx.settings.AtomicMacroExpansions,
		Logger:                idx.log,
	})
	cb := tracker.New(entry, driver.SourceManager(), tracker.Options{
		Searcher:        NewProjectSearcher(idx.registry),
		Interrupter:     tracker.ContextInterrupter(ctx),
		Interner:        idx.interner,
		Macros:          table,
		RecoverNotFound: idx.settings.RecoverNotFoundIncludes,
		NeedLineColumns: idx.settings.NeedLineColumns,
		Logger:          idx.log,
	})
	if err := driver.Run(ctx, cb); err != nil {
		return nil, err
	}

	infos := cb.Files()
	files := make([]*storage.File, 0, len(infos))
	for _, fi := range infos {
		files = append(files, fileRecord(fi))
	}

	unit := &storage.Unit{
		MainPath:    entry.File(),
		Language:    entry.Language().String(),
		Dialect:     entry.Dialect().String(),
		Args:        entry.Args(),
		Fingerprint: entry.Fingerprint(),
		ContentHash: hash,
		FileCount:   len(files),
		Duration:    time.Since(start),
		IndexedAt:   time.Now(),
	}

	tx, err := idx.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin transaction: %w", errStore, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.SaveUnit(ctx, unit, files); err != nil {
		return nil, fmt.Errorf("%w: save unit: %w", errStore, err)
	}
	if table != nil {
		if err := tx.SaveMacroState(ctx, entry.File(), table.Snapshot()); err != nil {
			return nil, fmt.Errorf("%w: save macro state: %w", errStore, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %w", errStore, err)
	}

	idx.log.Debug("indexer.unit_saved", "file", entry.File(), "files", len(files), "duration", unit.Duration)
	return &Result{Entry: entry, Unit: unit, Files: files}, nil
}

// fileRecord converts a tracked file into its stored form
func fileRecord(fi *tracker.FileInfo) *storage.File {
	f := &storage.File{
		Path:        fi.FilePath(),
		FileIndex:   fi.FileIndex(),
		ContentHash: fi.ContentHash(),
		Guard:       fi.FileGuard(),
		Aborted:     fi.Aborted(),
		Skipped:     fi.SkippedRanges(),
	}
	if d := fi.InclusionDirective(); d != nil {
		f.IncludedBy = d.Spelling
	}
	if fi.HasTokenStream() {
		// the stream ends with an EOF token
		f.TokenCount = max(len(fi.TokenStream())-1, 0)
	}

	dirs := fi.PreprocessorDirectives()
	for _, d := range dirs.Includes {
		f.Inclusions = append(f.Inclusions, storage.FromInclusion(d))
	}
	for _, m := range dirs.Macros {
		f.Macros = append(f.Macros, storage.FromMacro(m))
	}
	for _, e := range dirs.Errors {
		rec := &storage.ErrorDirective{Range: e.Range, Message: e.Message}
		if st, ok := e.State.(*macros.State); ok && st != nil {
			rec.StateChecksum = st.Checksum()
		}
		f.Errors = append(f.Errors, rec)
	}
	for _, r := range fi.MacroUsages() {
		f.MacroRefs = append(f.MacroRefs, storage.FromMacroRef(r))
	}
	for _, r := range fi.MacroExpansions() {
		f.MacroRefs = append(f.MacroRefs, storage.FromMacroRef(r))
	}
	return f
}

func countUnresolved(files []*storage.File) int {
	n := 0
	for _, f := range files {
		for _, inc := range f.Inclusions {
			if inc.Resolved == nil {
				n++
			}
		}
	}
	return n
}
