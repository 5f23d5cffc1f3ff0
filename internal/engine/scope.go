package engine

import "github.com/roach88/sprig/internal/ir"

// depthCounters tracks how many times each rule group is active on the
// current path. Same-named alternatives share one counter.
//
// enter and leave must be paired; the counter is decremented whether or
// not the rule was built.
type depthCounters struct {
	active map[ir.GroupKey]int
	max    int
}

func newDepthCounters() *depthCounters {
	return &depthCounters{active: make(map[ir.GroupKey]int)}
}

// enter increments the group's counter and returns the new depth.
func (d *depthCounters) enter(key ir.GroupKey) int {
	d.active[key]++
	return d.active[key]
}

// admit records depth as reached by a built rule.
func (d *depthCounters) admit(depth int) {
	if depth > d.max {
		d.max = depth
	}
}

func (d *depthCounters) leave(key ir.GroupKey) {
	if d.active[key] <= 1 {
		delete(d.active, key)
		return
	}
	d.active[key]--
}

// deepest returns the largest depth any built rule reached.
func (d *depthCounters) deepest() int {
	return d.max
}
