// Package compdb builds compilation database entries from the legacy
// preprocessor handler's configuration.
//
// An Entry carries the main file, the front-end language and dialect, the
// user and system include directories, forced includes and the predefined
// and user macros. Builder drops directories and files that no longer exist
// and can suppress all compiler built-in settings when configured to.
// Entries render as clang-style argument vectors and compile_commands.json
// records.
package compdb
