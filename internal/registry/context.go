package registry

import (
	"sync"

	"bulkd/internal/accumulator"
	"bulkd/internal/sink"
)

// Context owns one Accumulator bound to the sinks it was constructed with.
// Process serializes concurrent producer calls for the same handle into a
// single coherent stream, per §4.E; bytes belonging to different contexts
// never synchronize with each other.
type Context struct {
	mu   sync.Mutex
	acc  *accumulator.Accumulator
	done bool
}

func newContext(bulkSize int, sinks []sink.Sink) *Context {
	return &Context{acc: accumulator.New(bulkSize, sinks)}
}

// Process feeds data into the context's accumulator. It is a no-op once the
// context has been closed.
func (c *Context) Process(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	c.acc.Receive(data)
}

// Close performs the terminal flush exactly once. Subsequent calls and any
// Process calls racing with or following it are no-ops, matching the
// original's single ~Context() destructor semantics.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	c.acc.Close()
	c.done = true
}

// Stats returns the context's own accumulator statistics.
func (c *Context) Stats() accumulator.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acc.Stats()
}
