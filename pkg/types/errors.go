package types

import "errors"

// Domain errors shared across the bridge
var (
	// ErrInvalidArgument is returned for malformed input that indicates a corrupted value
	// rather than an environment condition (e.g. a remote path without a port/path colon).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedOperation is returned by every mutator of a bridged token
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrInconsistency marks an internal invariant violation
	ErrInconsistency = errors.New("internal inconsistency")

	// ErrAlreadyAnnotated is returned when a frontend node already carries a directive record
	ErrAlreadyAnnotated = errors.New("node already annotated")

	// ErrUnknownLanguage is returned when a language name is outside the closed set
	ErrUnknownLanguage = errors.New("unknown language")

	// ErrUnknownFlavor is returned when a language flavor name is outside the closed set
	ErrUnknownFlavor = errors.New("unknown language flavor")

	// ErrNotFound is returned when a stored unit, file or macro state does not exist
	ErrNotFound = errors.New("not found")

	// ErrCancelled is returned when a preprocessing run was interrupted
	ErrCancelled = errors.New("preprocessing cancelled")

	// Validation errors
	ErrEmptyPath          = errors.New("resolved path cannot be empty")
	ErrRelativePath       = errors.New("resolved path must be absolute")
	ErrSearchRootMismatch = errors.New("search root and search index disagree")
	ErrInvalidRange       = errors.New("end offset must not precede start offset")
	ErrEmptyMacroName     = errors.New("macro name cannot be empty")
)
