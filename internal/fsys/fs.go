package fsys

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// LocalID is the identity of the native file system
const LocalID = "file"

// FileSystem is a file system include resolution can look into.
// Paths passed in are plain absolute paths (no remote prefix).
type FileSystem interface {
	ID() string
	IsRemote() bool
	Exists(p string) bool
	IsDir(p string) bool
	IsFile(p string) bool
	ReadFile(p string) ([]byte, error)
	URL(p string) string
	Abs(p string) string
}

// aferoFS implements FileSystem on top of an afero.Fs
type aferoFS struct {
	id     string
	remote bool
	fs     afero.Fs
}

// NewLocal returns the native file system
func NewLocal() FileSystem {
	return &aferoFS{id: LocalID, fs: afero.NewOsFs()}
}

// NewVirtual wraps an afero.Fs as an IDE virtual file system. Remote file systems
// should use a selector produced by RemoteAddress.Selector as their id.
func NewVirtual(id string, fs afero.Fs, remote bool) FileSystem {
	return &aferoFS{id: id, remote: remote, fs: fs}
}

func (a *aferoFS) ID() string     { return a.id }
func (a *aferoFS) IsRemote() bool { return a.remote }

func (a *aferoFS) Exists(p string) bool {
	ok, err := afero.Exists(a.fs, a.native(p))
	return err == nil && ok
}

func (a *aferoFS) IsDir(p string) bool {
	ok, err := afero.IsDir(a.fs, a.native(p))
	return err == nil && ok
}

func (a *aferoFS) IsFile(p string) bool {
	info, err := a.fs.Stat(a.native(p))
	return err == nil && info.Mode().IsRegular()
}

func (a *aferoFS) ReadFile(p string) ([]byte, error) {
	return afero.ReadFile(a.fs, a.native(p))
}

// URL returns the address of p that survives a round trip through SplitPath
func (a *aferoFS) URL(p string) string {
	if a.remote {
		return a.id + Clean(p)
	}
	return a.Abs(p)
}

func (a *aferoFS) Abs(p string) string {
	if a.id == LocalID && !filepath.IsAbs(p) {
		if abs, err := filepath.Abs(p); err == nil {
			return filepath.ToSlash(abs)
		}
	}
	return Clean(p)
}

func (a *aferoFS) native(p string) string {
	if a.id == LocalID {
		return filepath.FromSlash(p)
	}
	return p
}

// Clean normalizes a path to forward slashes without redundant elements
func Clean(p string) string {
	if p == "" {
		return ""
	}
	return path.Clean(strings.ReplaceAll(p, "\\", "/"))
}

// Join joins a directory and an include spelling into a clean path
func Join(dir, name string) string {
	return Clean(dir + "/" + name)
}

// Dir returns the directory of a clean path
func Dir(p string) string {
	return path.Dir(Clean(p))
}

// LookupPrefix returns the absolute-path lookup prefix the frontend needs to map
// bare absolute paths back to URLs of fs. It is empty for local file systems.
func LookupPrefix(fs FileSystem) string {
	if fs == nil || !fs.IsRemote() {
		return ""
	}
	return fs.ID()
}
