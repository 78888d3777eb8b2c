//go:build ppdebug
// +build ppdebug

package debug

// This file is compiled when building with the ppdebug tag.
// Assertion failures panic with an *InconsistencyError.
//
// Build command:
//   go build -tags ppdebug ./...

const (
	// Enabled reports whether assertions are enforced
	Enabled = true

	// BuildMode describes the current assertion mode
	BuildMode = "debug"
)
