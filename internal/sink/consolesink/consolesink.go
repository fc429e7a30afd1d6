// Package consolesink implements the console sink of §4.B: a single shared,
// swappable output stream written to by a small worker pool, with writes
// serialized by a mutex so concurrent emits from multiple workers never
// interleave within one bulk.
package consolesink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/time/rate"

	"bulkd/internal/bulk"
	"bulkd/internal/metrics"
	"bulkd/internal/streamref"
)

// Stats mirrors §3's per-worker statistics shape.
type Stats struct {
	Bulks    uint64
	Commands uint64
}

// Sink is the long-lived, process-wide console sink. Its output stream is
// swappable at any time via SetDefaultOstream without racing in-flight
// writes (see streamref.Ref and its entry in DESIGN.md).
type Sink struct {
	pool    *pool
	ref     *streamref.Ref
	writeMu *sync.Mutex
	limiter *rate.Limiter
}

// Option configures a Sink at construction time.
type Option func(*Sink)

// WithRateLimit caps console writes to ratePerSecond bulks/sec. A
// ratePerSecond <= 0 leaves the sink unlimited (the default).
func WithRateLimit(ratePerSecond float64) Option {
	return func(s *Sink) {
		if ratePerSecond > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
		}
	}
}

// New creates a console sink targeting ref's current writer, started with
// workers background goroutines (default 1 per spec.md §3 if workers <= 0).
func New(ref *streamref.Ref, workers int, opts ...Option) *Sink {
	if workers <= 0 {
		workers = 1
	}

	s := &Sink{ref: ref, writeMu: &sync.Mutex{}}
	for _, opt := range opts {
		opt(s)
	}

	s.pool = newPool(ref, s.writeMu, s.limiter)
	for i := 0; i < workers; i++ {
		if _, err := s.pool.p.AddWorker(); err != nil {
			panic(fmt.Sprintf("consolesink: add worker: %v", err))
		}
	}
	metrics.WorkerPoolSize.WithLabelValues("console").Set(float64(workers))
	return s
}

// Emit enqueues b for asynchronous rendering to the shared stream.
func (s *Sink) Emit(b bulk.Bulk) {
	s.pool.p.Submit(b)
}

// SetDefaultOstream rebinds this sink's output stream. Per DESIGN.md's
// resolution of spec.md's open question, this affects already-constructed
// contexts immediately: the swap is visible to the very next Emit.
func (s *Sink) SetDefaultOstream(w io.Writer) {
	s.ref.Set(w)
}

// StopWorkers drains and stops the underlying pool, returning the final
// per-worker statistics.
func (s *Sink) StopWorkers() []Stats {
	handlers := s.pool.p.StopWorkers()
	metrics.WorkerPoolSize.WithLabelValues("console").Set(0)
	stats := make([]Stats, len(handlers))
	for i, h := range handlers {
		stats[i] = h.(*handler).stats
	}
	return stats
}

// LastException returns the oldest unread write failure, if any.
func (s *Sink) LastException() error {
	return s.pool.p.LastException()
}

func snapshotAndWait(ref *streamref.Ref, limiter *rate.Limiter) (io.Writer, error) {
	// Snapshot the stream reference before doing any I/O, per §4.B: the
	// critical section only covers the read of the current reference, not
	// the write itself.
	w := ref.Get()
	if limiter != nil {
		if err := limiter.Wait(context.Background()); err != nil {
			return nil, err
		}
	}
	return w, nil
}
