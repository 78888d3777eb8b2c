// Package frontend is the preprocessing front end that drives a
// tracker.Callback.
//
// The Driver parses each buffer with tree-sitter to find preprocessor
// directives and conditional structure, lexes the code between them, expands
// macros and resolves includes through the search directories of a
// compdb.Entry. Macro replacement tokens are laid out in the macro address
// space of a tokens.SourceManager so the callback can map them back to their
// use site.
package frontend
