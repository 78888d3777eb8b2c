package fsys

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/ppbridge/pkg/types"
)

const (
	// RemoteScheme names the remote/virtual file-system addressing scheme
	RemoteScheme = "rfs"
	// RemotePrefix starts every remote path: rfs:[//][user@]host:[port]/abs/path
	RemotePrefix = RemoteScheme + ":"
)

// RemoteAddress is a parsed remote path
type RemoteAddress struct {
	User string
	Host string
	Port int // 0 when absent
	Path string
}

// Selector returns the file-system identity of the address ("rfs:user@host:22")
func (a RemoteAddress) Selector() string {
	var b strings.Builder
	b.WriteString(RemotePrefix)
	if a.User != "" {
		b.WriteString(a.User)
		b.WriteByte('@')
	}
	b.WriteString(a.Host)
	b.WriteByte(':')
	if a.Port != 0 {
		b.WriteString(strconv.Itoa(a.Port))
	}
	return b.String()
}

// String renders the address back into its canonical spelling
func (a RemoteAddress) String() string {
	return a.Selector() + a.Path
}

// IsRemote reports whether raw carries the remote prefix
func IsRemote(raw string) bool {
	return strings.HasPrefix(raw, RemotePrefix)
}

// ParseRemotePath splits a remote path into its authority and plain absolute path.
// After the prefix an optional user@host authority is skipped up to the separating
// colon, then a run of decimal digits (the port); the remainder is the path.
// A prefixed string with no colon after the prefix is corrupted and fails with
// types.ErrInvalidArgument.
func ParseRemotePath(raw string) (RemoteAddress, error) {
	var addr RemoteAddress
	if !IsRemote(raw) {
		return addr, fmt.Errorf("%w: %q has no %s prefix", types.ErrInvalidArgument, raw, RemotePrefix)
	}

	rest := strings.TrimPrefix(raw[len(RemotePrefix):], "//")
	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return addr, fmt.Errorf("%w: %q has no authority separator", types.ErrInvalidArgument, raw)
	}

	authority := rest[:colon]
	if at := strings.LastIndexByte(authority, '@'); at >= 0 {
		addr.User = authority[:at]
		authority = authority[at+1:]
	}
	addr.Host = authority

	rest = rest[colon+1:]
	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		port, err := strconv.Atoi(rest[:digits])
		if err != nil {
			return addr, fmt.Errorf("%w: bad port in %q: %v", types.ErrInvalidArgument, raw, err)
		}
		addr.Port = port
	}
	addr.Path = rest[digits:]
	if addr.Path == "" {
		addr.Path = "/"
	}
	return addr, nil
}

// SplitPath returns the file-system selector and plain path of raw.
// Local paths are returned unchanged with an empty selector.
func SplitPath(raw string) (selector, path string, err error) {
	if !IsRemote(raw) {
		return "", raw, nil
	}
	addr, err := ParseRemotePath(raw)
	if err != nil {
		return "", "", err
	}
	return addr.Selector(), addr.Path, nil
}

// StripRemotePrefix returns the plain absolute path of raw
func StripRemotePrefix(raw string) (string, error) {
	_, p, err := SplitPath(raw)
	return p, err
}
