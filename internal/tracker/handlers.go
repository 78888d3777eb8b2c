package tracker

import (
	"sync"

	"github.com/dshills/ppbridge/internal/tokens"
	"github.com/dshills/ppbridge/pkg/types"
)

// FileResult is the read-only per-file view handed to consumers
type FileResult interface {
	FilePath() string
	FileIndex() int
	InclusionDirective() *types.InclusionDirective
	PreprocessorDirectives() Directives
	MacroExpansions() []types.MacroReference
	MacroUsages() []types.MacroReference
	FileGuard() *types.FileGuard
	TokenStream() []tokens.Token
	HasTokenStream() bool
	SkippedRanges() []types.Range
}

// Delegate observes a run. Returning false or an error cancels the run.
type Delegate interface {
	OnEnter(fi FileResult) (bool, error)
	OnExit(fi FileResult) (bool, error)
	OnInclusionDirective(fi FileResult, d *types.InclusionDirective) (bool, error)
}

// IncludeHandler is the legacy include handler whose include stack mirrors
// the tracker's
type IncludeHandler interface {
	PushInclude(d *types.InclusionDirective)
	PopInclude()
	// CacheFile receives a file's results when the file is left
	CacheFile(fi FileResult)
}

// IncludeSearcher finds a fallback location for an include the front end
// could not resolve
type IncludeSearcher interface {
	Search(spelling string, angled bool, includer string) (*types.ResolvedPath, bool)
}

// IncludeStack is an IncludeHandler keeping the stack and the cached files
// in memory
type IncludeStack struct {
	mu       sync.Mutex
	stack    []*types.InclusionDirective
	maxDepth int
	cached   []FileResult
}

// NewIncludeStack creates an empty include stack
func NewIncludeStack() *IncludeStack {
	return &IncludeStack{}
}

func (s *IncludeStack) PushInclude(d *types.InclusionDirective) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stack = append(s.stack, d)
	if len(s.stack) > s.maxDepth {
		s.maxDepth = len(s.stack)
	}
}

func (s *IncludeStack) PopInclude() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stack) > 0 {
		s.stack = s.stack[:len(s.stack)-1]
	}
}

func (s *IncludeStack) CacheFile(fi FileResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = append(s.cached, fi)
}

// Depth returns the current number of pushed includes
func (s *IncludeStack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack)
}

// MaxDepth returns the deepest the stack has been
func (s *IncludeStack) MaxDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxDepth
}

// Cached returns the files flushed so far, in exit order
func (s *IncludeStack) Cached() []FileResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FileResult(nil), s.cached...)
}
