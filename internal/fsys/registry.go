package fsys

import (
	"fmt"
	"sync"

	"github.com/dshills/ppbridge/pkg/types"
)

// Options configures a Registry
type Options struct {
	// AlwaysUseVFS routes local paths through VFS instead of the native file system
	AlwaysUseVFS bool
	// VFS is the IDE virtual file system; defaults to the native one
	VFS FileSystem
}

// Registry maps file-system selectors to file systems
type Registry struct {
	mu      sync.RWMutex
	local   FileSystem
	vfs     FileSystem
	remotes map[string]FileSystem
	always  bool
}

// NewRegistry creates a registry with the native file system pre-registered
func NewRegistry(opts Options) *Registry {
	local := NewLocal()
	vfs := opts.VFS
	if vfs == nil {
		vfs = local
	}
	return &Registry{
		local:   local,
		vfs:     vfs,
		remotes: make(map[string]FileSystem),
		always:  opts.AlwaysUseVFS,
	}
}

// Register adds a remote file system under its ID
func (r *Registry) Register(fs FileSystem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remotes[fs.ID()] = fs
}

// Local returns the file system that serves non-prefixed paths
func (r *Registry) Local() FileSystem {
	if r.always {
		return r.vfs
	}
	return r.local
}

// Lookup returns the file system registered for a selector
func (r *Registry) Lookup(selector string) (FileSystem, bool) {
	if selector == "" {
		return r.Local(), true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fs, ok := r.remotes[selector]
	return fs, ok
}

// Resolve splits raw into a file system and plain absolute path
func (r *Registry) Resolve(raw string) (FileSystem, string, error) {
	selector, p, err := SplitPath(raw)
	if err != nil {
		return nil, "", err
	}
	fs, ok := r.Lookup(selector)
	if !ok {
		return nil, "", fmt.Errorf("%w: no file system registered for %s", types.ErrInvalidArgument, selector)
	}
	return fs, fs.Abs(p), nil
}
