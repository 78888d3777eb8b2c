package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/ppbridge/internal/config"
	"github.com/dshills/ppbridge/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	rootCmd = &cobra.Command{
		Use:           "ppbridge",
		Short:         "C/C++ preprocessor bridge with an MCP interface",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ppbridge\n")
			fmt.Fprintf(out, "Version: %s\n", version)
			fmt.Fprintf(out, "Build Time: %s\n", buildTime)
			fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
		},
	}

	configFile string
	settings   config.Settings
	logger     *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	def := config.Default()
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Config file (default: ppbridge.yaml in . or ~/.ppbridge)")
	flags.String("db-path", def.DBPath, "Path of the SQLite results database")
	flags.String("log-level", def.LogLevel, "Log level: debug, info, warn or error")
	flags.Int("workers", def.Workers, "Units preprocessed concurrently")
	flags.Int("max-include-depth", def.MaxIncludeDepth, "Include depth at which recursion is assumed")
	flags.Bool("skip-compiler-builtins", def.SkipCompilerBuiltins, "Drop system include directories and built-in macros")
	flags.Bool("always-use-vfs", def.AlwaysUseVFS, "Serve local paths through the virtual file system")
	flags.Bool("recover-not-found-includes", def.RecoverNotFoundIncludes, "Search the project for includes that cannot be resolved")
	flags.Bool("atomic-macro-expansions", def.AtomicMacroExpansions, "Report each macro expansion as a single token")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(preprocessCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads settings and installs the logger. Logs go to stderr because
// stdout carries the MCP protocol and the JSON reports.
func setup(cmd *cobra.Command) error {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home+"/.ppbridge")
	}
	s, err := config.Load(config.Options{File: configFile, Dirs: dirs, Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	level, err := config.ParseLevel(s.LogLevel)
	if err != nil {
		return err
	}

	settings = s
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}
