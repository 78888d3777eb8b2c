package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/ppbridge/internal/compdb"
	"github.com/dshills/ppbridge/internal/fsys"
	"github.com/dshills/ppbridge/internal/indexer"
	"github.com/dshills/ppbridge/internal/storage"
)

type preprocessOptions struct {
	userIncludes    []string
	systemIncludes  []string
	defines         []string
	forced          []string
	std             string
	language        string
	force           bool
	compileCommands bool
}

var ppOpts preprocessOptions

var preprocessCmd = &cobra.Command{
	Use:   "preprocess FILE...",
	Short: "Preprocess files and print a JSON report",
	Long: `Preprocess one or more C/C++ files and store the results.

With a single file the per-file report of the unit is printed. With several
files they are preprocessed concurrently and the run statistics are printed;
units whose main file and macros are unchanged are skipped unless --force is
given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPreprocess(cmd.Context(), cmd.OutOrStdout(), ppOpts, args)
	},
}

func init() {
	flags := preprocessCmd.Flags()
	flags.StringArrayVarP(&ppOpts.userIncludes, "include-dir", "I", nil, "User include directory")
	flags.StringArrayVar(&ppOpts.systemIncludes, "isystem", nil, "System include directory")
	flags.StringArrayVarP(&ppOpts.defines, "define", "D", nil, "Macro definition NAME or NAME=VALUE")
	flags.StringArrayVar(&ppOpts.forced, "include", nil, "File included before the main file")
	flags.StringVar(&ppOpts.std, "std", "", "Language standard, e.g. c11 or c++17")
	flags.StringVarP(&ppOpts.language, "language", "x", "", "Source language (C or C++); inferred from the extension when empty")
	flags.BoolVar(&ppOpts.force, "force", false, "Preprocess units even when the stored result is current")
	flags.BoolVar(&ppOpts.compileCommands, "compile-commands", false, "Print compile_commands.json records instead of preprocessing")
}

func (o preprocessOptions) handlers(files []string) ([]compdb.Handler, error) {
	hs := make([]compdb.Handler, 0, len(files))
	for _, f := range files {
		file, err := absPath(f)
		if err != nil {
			return nil, err
		}
		h, err := compdb.NewProjectHandler(compdb.UnitOptions{
			File:           file,
			Language:       o.language,
			Std:            o.std,
			UserIncludes:   absPaths(o.userIncludes),
			SystemIncludes: absPaths(o.systemIncludes),
			Forced:         absPaths(o.forced),
			Defines:        o.defines,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		hs = append(hs, h)
	}
	return hs, nil
}

func runPreprocess(ctx context.Context, out io.Writer, opts preprocessOptions, files []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	hs, err := opts.handlers(files)
	if err != nil {
		return err
	}
	registry := fsys.NewRegistry(fsys.Options{AlwaysUseVFS: settings.AlwaysUseVFS})

	if opts.compileCommands {
		builder := compdb.NewBuilder(registry, compdb.Options{SkipCompilerBuiltins: settings.SkipCompilerBuiltins, Logger: logger})
		entries := make([]*compdb.Entry, 0, len(hs))
		for _, h := range hs {
			entries = append(entries, builder.Build(h))
		}
		data, err := compdb.MarshalCompileCommands(entries)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	dbPath := settings.ExpandDBPath()
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	idx := indexer.New(store, settings, registry, logger)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if len(hs) == 1 && opts.force {
		res, err := idx.Preprocess(ctx, hs[0])
		if err != nil {
			return err
		}
		return enc.Encode(indexer.NewUnitReport(res))
	}

	stats, err := idx.PreprocessUnits(ctx, hs, &indexer.Config{Workers: settings.Workers, Force: opts.force})
	if err != nil {
		return err
	}
	if len(hs) == 1 && stats.UnitsFailed == 0 {
		return printStoredUnit(ctx, enc, store, hs[0].StartFile(), stats.UnitsSkipped == 1)
	}
	err = enc.Encode(map[string]interface{}{
		"units_processed": stats.UnitsProcessed,
		"units_skipped":   stats.UnitsSkipped,
		"units_failed":    stats.UnitsFailed,
		"files_visited":   stats.FilesVisited,
		"unresolved":      stats.Unresolved,
		"duration_ms":     stats.Duration.Milliseconds(),
		"errors":          stats.ErrorMessages,
	})
	if err != nil {
		return err
	}
	if stats.UnitsFailed > 0 {
		return fmt.Errorf("%d of %d units failed", stats.UnitsFailed, len(hs))
	}
	return nil
}

// printStoredUnit prints the report of a unit from the store, which also
// covers units skipped as current
func printStoredUnit(ctx context.Context, enc *json.Encoder, store storage.Storage, mainPath string, reused bool) error {
	unit, err := store.GetUnit(ctx, mainPath)
	if err != nil {
		return err
	}
	files, err := store.ListFiles(ctx, unit.ID)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := storage.LoadDirectives(ctx, store, f); err != nil {
			return err
		}
	}
	return enc.Encode(indexer.NewUnitReport(&indexer.Result{Unit: unit, Files: files, Skipped: reused}))
}

func absPath(p string) (string, error) {
	if fsys.IsRemote(p) || filepath.IsAbs(p) {
		return p, nil
	}
	return filepath.Abs(p)
}

func absPaths(ps []string) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		if a, err := absPath(p); err == nil {
			out = append(out, a)
		}
	}
	return out
}
