package testutil

import (
	"sync"

	"github.com/roach88/sprig/internal/engine"
	"github.com/roach88/sprig/internal/ir"
)

// EventCollector records the objects a build emits.
//
// An optional limit makes the callback return Stop once that many events
// have been collected, which is how tests exercise early termination.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type EventCollector struct {
	mu     sync.Mutex
	events []ir.Event
	limit  int
}

// NewEventCollector creates a collector. A limit of 0 collects everything.
func NewEventCollector(limit int) *EventCollector {
	return &EventCollector{limit: limit}
}

// Callback returns the engine callback that feeds the collector.
func (c *EventCollector) Callback() engine.Callback {
	return func(st *engine.Status) engine.Control {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.events = append(c.events, st.Event())
		if c.limit > 0 && len(c.events) >= c.limit {
			return engine.Stop
		}
		return engine.Continue
	}
}

// Events returns a copy of the collected events.
func (c *EventCollector) Events() []ir.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ir.Event, len(c.events))
	copy(out, c.events)
	return out
}

// Len returns the number of events collected.
func (c *EventCollector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// Labels returns the labels of the collected events in order.
func (c *EventCollector) Labels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Label
	}
	return out
}

// Reset discards everything collected, so the collector can be reused.
func (c *EventCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}
