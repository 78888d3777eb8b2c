package tracker

import (
	"github.com/dshills/ppbridge/pkg/types"
)

// OnDeepInclusion is called when the front end's include depth limit trips.
// It returns the directives it marked recursive.
func (c *Callback) OnDeepInclusion(spelling string) []*types.InclusionDirective {
	marked := markRecursive(c.stack)
	c.log.Warn("include.too_deep", "spelling", spelling, "depth", len(c.stack), "marked", len(marked))
	return marked
}

// markRecursive picks the path occurring most often on the stack (first seen
// wins ties) and marks the directive of every entry for that path whose
// directive matches the most recent one by resolved file and offset. Unrelated
// cycles that look alike are marked too.
func markRecursive(stack []*FileInfo) []*types.InclusionDirective {
	if len(stack) == 0 {
		return nil
	}
	counts := make(map[string]int, len(stack))
	for _, fi := range stack {
		counts[fi.path]++
	}
	chosen, best := "", 0
	for _, fi := range stack {
		if n := counts[fi.path]; n > best {
			chosen, best = fi.path, n
		}
	}

	var ref *types.InclusionDirective
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].path == chosen && stack[i].directive != nil {
			ref = stack[i].directive
			break
		}
	}
	if ref == nil {
		return nil
	}

	var marked []*types.InclusionDirective
	for _, fi := range stack {
		d := fi.directive
		if fi.path != chosen || d == nil {
			continue
		}
		if d.Start == ref.Start && d.Resolved.SameFile(ref.Resolved) {
			d.MarkRecursive()
			marked = append(marked, d)
		}
	}
	return marked
}
