package compdb

import (
	"log/slog"

	"github.com/dshills/ppbridge/internal/debug"
	"github.com/dshills/ppbridge/internal/fsys"
	"github.com/dshills/ppbridge/pkg/types"
)

// Options configures a Builder
type Options struct {
	// SkipCompilerBuiltins suppresses harvesting of system include paths and
	// predefined macros
	SkipCompilerBuiltins bool
	Logger               *slog.Logger
}

// Builder translates a preprocessor handler's configuration into an Entry
type Builder struct {
	registry     *fsys.Registry
	skipBuiltins bool
	logger       *slog.Logger
}

// NewBuilder creates a builder resolving paths through registry
func NewBuilder(registry *fsys.Registry, opts Options) *Builder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		registry:     registry,
		skipBuiltins: opts.SkipCompilerBuiltins,
		logger:       logger,
	}
}

// Build never fails: stale or unresolvable configuration is dropped with a log
// line and the entry is built from whatever remains.
func (b *Builder) Build(h Handler) *Entry {
	e := &Entry{skipBuiltins: b.skipBuiltins}

	fs, mainPath, err := b.registry.Resolve(h.StartFile())
	if err != nil {
		b.logger.Warn("builder.start_file", "file", h.StartFile(), "err", err)
		fs = b.registry.Local()
		mainPath = h.StartFile()
	}
	e.fs = fs
	e.file = fs.URL(mainPath)
	if fs.IsRemote() {
		e.lookupPrefix = fsys.LookupPrefix(fs)
	}

	b.setLanguage(e, h, mainPath)

	e.userIncludes = b.includeDirs(h.UserIncludePaths(), "-I")
	if !b.skipBuiltins {
		e.systemIncludes = b.includeDirs(h.SystemIncludePaths(), "-isystem")
	}
	e.forcedIncludes = b.forcedIncludes(h.ForcedIncludes())

	table := h.Macros()
	if table != nil {
		if !b.skipBuiltins {
			e.systemMacros = table.SystemMacros()
		}
		e.userMacros = table.UserMacros()
		e.fingerprint = table.Checksum()
	}
	return e
}

func (b *Builder) setLanguage(e *Entry, h Handler, mainPath string) {
	lang, err := ParseLanguage(h.Language())
	if err != nil {
		debug.Fail("builder: %v", err)
		lang = LangCPP
	}
	e.language = lang

	flavor, err := ParseFlavor(h.Flavor())
	if err != nil {
		debug.Fail("builder: %v", err)
		flavor = FlavorUnknown
	}
	e.dialect = DialectFor(flavor)

	switch {
	case IsHeaderFile(mainPath):
		e.kind = KindCPP
	case lang == LangC:
		e.kind = KindC
	default:
		e.kind = KindCPP
	}

	// a header parsed as C++ cannot keep a C standard
	if e.kind == KindCPP && e.dialect.IsC() {
		e.dialect = DialectUnspecified
	}
}

func (b *Builder) includeDirs(paths []IncludePath, flag string) []IncludeDir {
	dirs := make([]IncludeDir, 0, len(paths))
	for _, ip := range paths {
		fs, p, err := b.registry.Resolve(ip.Path)
		if err != nil {
			b.logger.Warn("builder.include_dir", "flag", flag, "path", ip.Path, "err", err)
			continue
		}
		if !fs.IsDir(p) {
			b.logger.Debug("builder.skip_dir", "flag", flag, "path", ip.Path)
			continue
		}
		debug.Assert(types.IsAbsolute(p), "%s directory %q is not absolute", flag, p)
		dirs = append(dirs, IncludeDir{
			URL:           fs.URL(p),
			IsFramework:   ip.IsFramework,
			IgnoreSysRoot: ip.IgnoreSysRoot,
		})
	}
	return dirs
}

func (b *Builder) forcedIncludes(files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		fs, p, err := b.registry.Resolve(f)
		if err != nil {
			b.logger.Warn("builder.forced_include", "path", f, "err", err)
			continue
		}
		if !fs.IsFile(p) {
			b.logger.Debug("builder.skip_forced_include", "path", f)
			continue
		}
		debug.Assert(types.IsAbsolute(p), "-include file %q is not absolute", p)
		out = append(out, fs.URL(p))
	}
	return out
}
