package types

import (
	"path"
	"strings"
)

// NoSearchIndex is the search index of a path resolved without a search-path lookup
const NoSearchIndex = -1

// ResolvedPath identifies the file an #include (or -include) resolved to.
// It is immutable once created.
type ResolvedPath struct {
	FileSystem string // file-system identity (see fsys.FileSystem.ID)
	Path       string // absolute, normalized

	// SearchRoot is the search-path directory the file was found in. It is
	// empty when no search-path lookup took place: the include was absolute
	// or the file sits next to its includer.
	SearchRoot string
	// DefaultSearchRoot is set when the file was found in the includer's
	// own directory
	DefaultSearchRoot bool
	SearchIndex       int // index into the search-path list, NoSearchIndex when SearchRoot is empty
}

// IsAbsolute reports whether p is syntactically absolute. Windows drive paths
// are accepted so that remote Windows hosts can be addressed too.
func IsAbsolute(p string) bool {
	if strings.HasPrefix(p, "/") {
		return true
	}
	return len(p) >= 3 && p[1] == ':' && (p[2] == '/' || p[2] == '\\')
}

// Validate checks the path identity invariants
func (r *ResolvedPath) Validate() error {
	if r.Path == "" {
		return ErrEmptyPath
	}
	if !IsAbsolute(r.Path) {
		return ErrRelativePath
	}
	if (r.SearchRoot == "") != (r.SearchIndex == NoSearchIndex) {
		return ErrSearchRootMismatch
	}
	return nil
}

// IsAbsoluteInclude reports whether the include named the file by absolute path
func (r *ResolvedPath) IsAbsoluteInclude() bool {
	return r.SearchRoot == "" && !r.DefaultSearchRoot
}

// Base returns the last element of the path
func (r *ResolvedPath) Base() string {
	return path.Base(strings.ReplaceAll(r.Path, "\\", "/"))
}

// SameFile reports whether both identities name the same file on the same file system
func (r *ResolvedPath) SameFile(other *ResolvedPath) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.FileSystem == other.FileSystem && r.Path == other.Path
}
