// Package tokens converts the preprocessing front end's token stream into
// immutable tokens for the code model.
//
// Locations are opaque Loc values owned by a SourceManager, which keeps
// real buffers and macro expansions in separate address spaces. Tokens
// produced by a macro expansion are wrapped in MacroExpanded, which reports
// the end of the whole expansion and the token's index within it.
package tokens
