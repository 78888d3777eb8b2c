package tracker

import (
	"fmt"
	"sync"

	"github.com/dshills/ppbridge/pkg/types"
)

// Annotations maps front-end directive nodes to the inclusion directives
// built for them. Each node is annotated at most once.
type Annotations struct {
	mu sync.RWMutex
	m  map[NodeID]*types.InclusionDirective
}

// NewAnnotations creates an empty side table
func NewAnnotations() *Annotations {
	return &Annotations{m: make(map[NodeID]*types.InclusionDirective)}
}

// Insert annotates node with d, failing with types.ErrAlreadyAnnotated when
// node already carries a directive
func (a *Annotations) Insert(node NodeID, d *types.InclusionDirective) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.m[node]; ok {
		return fmt.Errorf("%w: node %d", types.ErrAlreadyAnnotated, node)
	}
	a.m[node] = d
	return nil
}

// Get returns the directive of node
func (a *Annotations) Get(node NodeID) (*types.InclusionDirective, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	d, ok := a.m[node]
	return d, ok
}

// Len returns the number of annotated nodes
func (a *Annotations) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.m)
}
