package debug

import (
	"fmt"
	"log/slog"

	"github.com/dshills/ppbridge/pkg/types"
)

// InconsistencyError is raised by failed assertions in debug builds
type InconsistencyError struct {
	Message string
}

func (e *InconsistencyError) Error() string {
	return "internal inconsistency: " + e.Message
}

// Unwrap lets errors.Is match types.ErrInconsistency
func (e *InconsistencyError) Unwrap() error {
	return types.ErrInconsistency
}

// Assert checks an invariant. In debug builds a violation panics with an
// *InconsistencyError; in release builds it is logged and false is returned
// so the caller can fall back to best-effort output.
func Assert(cond bool, format string, args ...any) bool {
	if cond {
		return true
	}
	Fail(format, args...)
	return false
}

// Fail reports an invariant violation unconditionally
func Fail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if Enabled {
		panic(&InconsistencyError{Message: msg})
	}
	slog.Error("invariant.violated", "mode", BuildMode, "msg", msg)
}

// Check is Fail for an error value; nil errors are ignored
func Check(err error) bool {
	if err == nil {
		return true
	}
	Fail("%v", err)
	return false
}
