package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load
const EnvPrefix = "PPBRIDGE"

// Settings holds the process-wide configuration
type Settings struct {
	// SkipCompilerBuiltins drops system include directories and built-in
	// macros from compilation entries
	SkipCompilerBuiltins bool `mapstructure:"skip_compiler_builtins"`
	// AlwaysUseVFS serves local paths from the IDE virtual file system
	AlwaysUseVFS            bool   `mapstructure:"always_use_vfs"`
	NeedLineColumns         bool   `mapstructure:"need_line_columns"`
	MaxIncludeDepth         int    `mapstructure:"max_include_depth"`
	RecoverNotFoundIncludes bool   `mapstructure:"recover_not_found_includes"`
	AtomicMacroExpansions   bool   `mapstructure:"atomic_macro_expansions"`
	DBPath                  string `mapstructure:"db_path"`
	Workers                 int    `mapstructure:"workers"`
	LogLevel                string `mapstructure:"log_level"`
}

// Default returns the built-in settings
func Default() Settings {
	return Settings{
		NeedLineColumns: true,
		MaxIncludeDepth: 200,
		DBPath:          defaultDBPath(),
		Workers:         runtime.NumCPU(),
		LogLevel:        "info",
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "ppbridge.db"
	}
	return filepath.Join(home, ".ppbridge", "ppbridge.db")
}

// Options controls where Load looks for settings
type Options struct {
	// File is an explicit config file; when empty ppbridge.{yaml,json} is
	// looked up in Dirs
	File  string
	Dirs  []string
	Flags *pflag.FlagSet
}

// Load resolves settings from defaults, an optional config file, PPBRIDGE_*
// environment variables and bound flags, in increasing precedence
func Load(opts Options) (Settings, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("skip_compiler_builtins", def.SkipCompilerBuiltins)
	v.SetDefault("always_use_vfs", def.AlwaysUseVFS)
	v.SetDefault("need_line_columns", def.NeedLineColumns)
	v.SetDefault("max_include_depth", def.MaxIncludeDepth)
	v.SetDefault("recover_not_found_includes", def.RecoverNotFoundIncludes)
	v.SetDefault("atomic_macro_expansions", def.AtomicMacroExpansions)
	v.SetDefault("db_path", def.DBPath)
	v.SetDefault("workers", def.Workers)
	v.SetDefault("log_level", def.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config %s: %w", opts.File, err)
		}
	} else {
		v.SetConfigName("ppbridge")
		for _, d := range opts.Dirs {
			v.AddConfigPath(d)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Settings{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if opts.Flags != nil {
		var bindErr error
		opts.Flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if known[key] {
				if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
					bindErr = err
				}
			}
		})
		if bindErr != nil {
			return Settings{}, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

var known = map[string]bool{
	"skip_compiler_builtins": true, "always_use_vfs": true, "need_line_columns": true,
	"max_include_depth": true, "recover_not_found_includes": true, "atomic_macro_expansions": true,
	"db_path": true, "workers": true, "log_level": true,
}

// Validate checks value ranges
func (s Settings) Validate() error {
	if s.MaxIncludeDepth <= 0 {
		return fmt.Errorf("max_include_depth must be positive, got %d", s.MaxIncludeDepth)
	}
	if s.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", s.Workers)
	}
	if _, err := ParseLevel(s.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a log_level value to a slog level
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", s, err)
	}
	return l, nil
}

// ExpandDBPath resolves a leading ~ in the database path
func (s Settings) ExpandDBPath() string {
	if s.DBPath == ":memory:" || !strings.HasPrefix(s.DBPath, "~") {
		return s.DBPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return s.DBPath
	}
	return filepath.Join(home, strings.TrimPrefix(s.DBPath, "~"))
}
