package compdb

import (
	"github.com/dshills/ppbridge/internal/fsys"
)

// IncludeDir is an include directory of an entry, as an absolute URL in the
// entry's file system
type IncludeDir struct {
	URL           string
	IsFramework   bool
	IgnoreSysRoot bool
}

// Entry is one source file's complete compiler invocation context.
// It is immutable once built.
type Entry struct {
	file           string
	kind           Kind
	language       Language
	dialect        Dialect
	userIncludes   []IncludeDir
	systemIncludes []IncludeDir
	forcedIncludes []string
	systemMacros   []string
	userMacros     []string
	fs             fsys.FileSystem
	lookupPrefix   string
	skipBuiltins   bool
	fingerprint    uint32
}

// File returns the URL of the primary file
func (e *Entry) File() string { return e.file }

// Kind returns the language the front end runs in
func (e *Entry) Kind() Kind { return e.kind }

// Language returns the handler's declared language
func (e *Entry) Language() Language { return e.language }

// Dialect returns the language standard
func (e *Entry) Dialect() Dialect { return e.dialect }

// UserIncludes returns the -I directories in order
func (e *Entry) UserIncludes() []IncludeDir { return e.userIncludes }

// SystemIncludes returns the -isystem directories in order
func (e *Entry) SystemIncludes() []IncludeDir { return e.systemIncludes }

// ForcedIncludes returns the -include files in order
func (e *Entry) ForcedIncludes() []string { return e.forcedIncludes }

// SystemMacros returns the predefined system macro definitions
func (e *Entry) SystemMacros() []string { return e.systemMacros }

// UserMacros returns the user macro definitions
func (e *Entry) UserMacros() []string { return e.userMacros }

// FileSystem returns the file system the primary file lives on
func (e *Entry) FileSystem() fsys.FileSystem { return e.fs }

// LookupPrefix returns the absolute-path lookup prefix, empty for local files
func (e *Entry) LookupPrefix() string { return e.lookupPrefix }

// SkipsBuiltins reports whether compiler built-in settings were suppressed
func (e *Entry) SkipsBuiltins() bool { return e.skipBuiltins }

// Fingerprint is the handler's macro checksum (user XOR system) at build time
func (e *Entry) Fingerprint() uint32 { return e.fingerprint }

// Path returns the plain absolute path of a URL produced for this entry
func (e *Entry) Path(url string) string {
	p, err := fsys.StripRemotePrefix(url)
	if err != nil {
		return url
	}
	return p
}

// SearchDirs returns all include directories in lookup order: user then system
func (e *Entry) SearchDirs() []IncludeDir {
	dirs := make([]IncludeDir, 0, len(e.userIncludes)+len(e.systemIncludes))
	dirs = append(dirs, e.userIncludes...)
	return append(dirs, e.systemIncludes...)
}
