package indexer

import (
	"github.com/dshills/ppbridge/internal/fsys"
	"github.com/dshills/ppbridge/pkg/types"
)

// searchSubdirs are the directories probed below every ancestor
var searchSubdirs = []string{"", "include", "inc"}

// maxSearchLevels bounds how far up from the includer the search climbs
const maxSearchLevels = 8

// ProjectSearcher recovers unresolved includes by probing the includer's
// ancestors and their include directories
type ProjectSearcher struct {
	registry *fsys.Registry
}

// NewProjectSearcher creates a searcher resolving paths through registry
func NewProjectSearcher(registry *fsys.Registry) *ProjectSearcher {
	return &ProjectSearcher{registry: registry}
}

// Search looks for spelling relative to the includer's directory and its
// ancestors
func (s *ProjectSearcher) Search(spelling string, angled bool, includer string) (*types.ResolvedPath, bool) {
	if includer == "" || spelling == "" {
		return nil, false
	}
	fs, p, err := s.registry.Resolve(includer)
	if err != nil {
		return nil, false
	}

	dir := fsys.Dir(p)
	for range maxSearchLevels {
		for _, sub := range searchSubdirs {
			root := dir
			if sub != "" {
				root = fsys.Join(dir, sub)
			}
			candidate := fsys.Join(root, spelling)
			if fs.IsFile(candidate) {
				return &types.ResolvedPath{
					FileSystem:  fs.ID(),
					Path:        candidate,
					SearchRoot:  root,
					SearchIndex: 0,
				}, true
			}
		}
		parent := fsys.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil, false
}
