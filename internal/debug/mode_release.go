//go:build !ppdebug
// +build !ppdebug

package debug

// This file is compiled by default. Assertion failures are logged and
// execution continues with best-effort output.

const (
	// Enabled reports whether assertions are enforced
	Enabled = false

	// BuildMode describes the current assertion mode
	BuildMode = "release"
)
