package tracker

import (
	"context"
	"sync/atomic"
)

// Interrupter is the cooperative cancellation flag of a run
type Interrupter struct {
	cancelled atomic.Bool
	outer     func() bool
}

// NewInterrupter returns an interrupter that also reports cancelled once
// outer does. outer may be nil.
func NewInterrupter(outer func() bool) *Interrupter {
	return &Interrupter{outer: outer}
}

// ContextInterrupter wraps the cancellation of ctx
func ContextInterrupter(ctx context.Context) *Interrupter {
	return NewInterrupter(func() bool { return ctx.Err() != nil })
}

// Cancel raises the flag
func (i *Interrupter) Cancel() {
	i.cancelled.Store(true)
}

// Cancelled reports whether the run should stop making progress
func (i *Interrupter) Cancelled() bool {
	if i.cancelled.Load() {
		return true
	}
	if i.outer != nil && i.outer() {
		i.cancelled.Store(true)
		return true
	}
	return false
}
