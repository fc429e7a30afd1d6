// Package registry implements the process-wide Context Registry of §4.F: a
// reader-writer-locked set of live Contexts keyed by opaque Handle, plus the
// long-lived sinks every new Context is bound to. Grounded on the original's
// ContextManager (a Meyers singleton over a std::set<shared_ptr<Context>>),
// adapted to Go's sync.RWMutex and a map keyed by a UUID handle instead of a
// raw pointer identity.
package registry

import (
	"fmt"
	"io"
	"os"
	"sync"

	"bulkd/internal/logger"
	"bulkd/internal/metrics"
	"bulkd/internal/sink"
	"bulkd/internal/sink/consolesink"
	"bulkd/internal/sink/filesink"
	"bulkd/internal/sink/kafkasink"
	"bulkd/internal/streamref"
)

// Registry holds every live Context plus the long-lived sinks new Contexts
// are bound to at construction time. The zero value is not usable; build one
// with New.
type Registry struct {
	mu       sync.RWMutex
	contexts map[Handle]*Context

	ref     *streamref.Ref
	console *consolesink.Sink
	file    *filesink.Sink
	kafka   *kafkasink.Sink // nil when no Kafka sink was configured
}

// Options configures the long-lived sinks a Registry constructs its Contexts
// with.
type Options struct {
	DefaultOutput  io.Writer // defaults to os.Stdout
	ConsoleWorkers int
	ConsoleRate    float64 // optional console rate limit, bulks/sec; 0 disables
	FileDir        string
	FileWorkers    int
	Kafka          *kafkasink.Config // nil disables the Kafka sink
}

// New constructs a Registry and its long-lived console/file (and optional
// Kafka) sinks. The sinks outlive any individual Context, per §4.E's "held
// elsewhere" requirement.
func New(opts Options) (*Registry, error) {
	out := opts.DefaultOutput
	if out == nil {
		out = os.Stdout
	}
	ref := streamref.New(out)

	var consoleOpts []consolesink.Option
	if opts.ConsoleRate > 0 {
		consoleOpts = append(consoleOpts, consolesink.WithRateLimit(opts.ConsoleRate))
	}
	console := consolesink.New(ref, opts.ConsoleWorkers, consoleOpts...)
	file := filesink.New(opts.FileDir, opts.FileWorkers)

	var ks *kafkasink.Sink
	if opts.Kafka != nil {
		var err error
		ks, err = kafkasink.New(*opts.Kafka)
		if err != nil {
			console.StopWorkers()
			file.StopWorkers()
			return nil, fmt.Errorf("registry: kafka sink: %w", err)
		}
	}

	return &Registry{
		contexts: make(map[Handle]*Context),
		ref:      ref,
		console:  console,
		file:     file,
		kafka:    ks,
	}, nil
}

func (r *Registry) sinks() []sink.Sink {
	s := []sink.Sink{r.console, r.file}
	if r.kafka != nil {
		s = append(s, r.kafka)
	}
	return s
}

// MakeContext allocates a new Context bound to the registry's current
// long-lived sinks, inserts it, and returns its handle.
func (r *Registry) MakeContext(bulkSize int) Handle {
	ctx := newContext(bulkSize, r.sinks())
	h := newHandle()

	r.mu.Lock()
	r.contexts[h] = ctx
	r.mu.Unlock()

	metrics.ContextsCreatedTotal.Inc()
	metrics.ContextsActive.Inc()
	return h
}

// Find returns the Context for h, or nil if no such handle is live. The
// returned pointer stays usable even if Erase(h) runs concurrently — Go's
// garbage collector, not reference counting, keeps it alive, but callers
// should still not call Find again expecting the same result once Erase has
// run.
func (r *Registry) Find(h Handle) *Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.contexts[h]
}

// Erase removes h from the set and closes its Context, flushing any
// buffered partial bulk. Idempotent: a second call on the same handle is a
// no-op.
func (r *Registry) Erase(h Handle) {
	r.mu.Lock()
	ctx, ok := r.contexts[h]
	if ok {
		delete(r.contexts, h)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	ctx.Close()
	metrics.ContextsActive.Dec()
}

// SetDefaultOstream installs a new default output target for future
// Contexts and, per the Supplemented Features resolution of §9's open
// question, immediately rebinds the shared long-lived console sink so
// already-live Contexts observe the change too.
func (r *Registry) SetDefaultOstream(w io.Writer) {
	r.ref.Set(w)
	r.console.SetDefaultOstream(w)
}

// Shutdown drains and stops every long-lived sink. It does not close
// individual Contexts first — callers are expected to have already erased
// whatever contexts they care about flushing cleanly.
func (r *Registry) Shutdown() {
	log := logger.WithComponent("registry")

	r.console.StopWorkers()
	r.file.StopWorkers()
	if r.kafka != nil {
		if err := r.kafka.Close(); err != nil {
			log.Error().Err(err).Msg("kafka sink close failed")
		}
	}
}
