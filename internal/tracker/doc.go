// Package tracker turns the one-pass preprocessing trace of a compilation
// unit into a replayable per-file model.
//
// A Callback is driven by the front end with file enter/exit events,
// directive events and token streams. It keeps the include stack, mirrors
// it into a legacy IncludeHandler, annotates directive nodes through an
// Annotations side table and forwards events to a Delegate. Each entered
// file gets a FileInfo whose directives, macro references, guard, skipped
// ranges and tokens are materialized once on first access.
//
// Pseudo-buffers (predefines and command-line includes) may only be entered
// while the main file is the sole stack entry. Includes they contribute are
// re-attached to the main file as forced includes with negative offsets.
//
// Cancellation is cooperative: once the Interrupter is raised the delegate
// is no longer called, but the stack bookkeeping continues so that every
// FileInfo produced so far stays valid.
package tracker
