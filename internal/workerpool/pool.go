// Package workerpool implements the unified worker-pool model behind every
// sink: an unbounded FIFO message queue consumed by a dynamic set of
// goroutine workers, each owning its own handler instance so per-worker
// state (statistics, processed-file lists, …) needs no cross-worker
// synchronization. Handler[M] is generic so every sink (console, file,
// Kafka) can share one implementation.
package workerpool

import (
	"fmt"
	"sync"

	"bulkd/internal/logger"
	"bulkd/internal/metrics"
)

// Handler processes messages of type M sequentially, one at a time, within a
// single worker. Implementations are free to accumulate state across calls —
// Handle is only ever invoked by the worker that owns this handler instance.
type Handler[M any] interface {
	Handle(msg M) error
}

// NewHandlerFunc constructs the per-worker handler for a freshly added
// worker. It is called synchronously from AddWorker, before the worker is
// observable as running.
type NewHandlerFunc[M any] func(workerID int) Handler[M]

type workerEntry[M any] struct {
	id      int
	handler Handler[M]
	done    chan struct{}
}

// Pool is a task/message queue plus the set of worker goroutines consuming
// it. The zero value is not usable; construct with New.
type Pool[M any] struct {
	// mu guards workers/nextID/generation — acquired only in AddWorker,
	// StopWorkers, and WorkersCount, per the spec's concurrency discipline.
	mu         sync.Mutex
	workers    []*workerEntry[M]
	nextID     int
	generation int

	name       string
	q          *unboundedQueue[M]
	newHandler NewHandlerFunc[M]

	excMu      sync.Mutex
	exceptions []error
}

// New creates an empty pool labeled name (used for the
// bulkd_worker_queue_depth metric and in worker-exception log lines).
// newHandler is invoked once per AddWorker call to build that worker's
// private handler.
func New[M any](name string, newHandler NewHandlerFunc[M]) *Pool[M] {
	q := newUnboundedQueue[M]()
	q.closed = true // no generation yet: the first AddWorker reopens it
	return &Pool[M]{
		name:       name,
		q:          q,
		newHandler: newHandler,
	}
}

// AddWorker blocks until the new worker is observable as running and returns
// its id. It either succeeds in full or, if handler construction panics,
// leaves the pool exactly as it was before the call.
func (p *Pool[M]) AddWorker() (id int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workerpool: add worker: %v", r)
		}
	}()

	p.mu.Lock()
	defer p.mu.Unlock()

	id = p.nextID
	handler := p.newHandler(id)
	p.nextID++

	if len(p.workers) == 0 {
		// First worker of a new generation reopens a queue that a prior
		// StopWorkers left closed.
		p.q.reopen()
		p.generation++
	}

	entry := &workerEntry[M]{id: id, handler: handler, done: make(chan struct{})}
	started := make(chan struct{})
	go p.run(entry, started)
	<-started // start-barrier: AddWorker returns only once the worker is live

	p.workers = append(p.workers, entry)
	return id, nil
}

func (p *Pool[M]) run(entry *workerEntry[M], started chan struct{}) {
	close(started)
	defer close(entry.done)
	for {
		msg, ok := p.q.pop()
		if !ok {
			return
		}
		metrics.WorkerQueueDepth.WithLabelValues(p.name).Set(float64(p.q.len()))
		p.dispatch(entry, msg)
	}
}

// dispatch invokes the handler, catching both returned errors and panics so
// a misbehaving handler never takes its worker down. Either is logged and
// queued for LastException, per spec.md §4.A/§7.
func (p *Pool[M]) dispatch(entry *workerEntry[M], msg M) {
	defer func() {
		if r := recover(); r != nil {
			p.recordException(fmt.Errorf("workerpool: worker %d panic: %v", entry.id, r))
		}
	}()
	if err := entry.handler.Handle(msg); err != nil {
		p.recordException(fmt.Errorf("workerpool: worker %d: %w", entry.id, err))
	}
}

func (p *Pool[M]) recordException(err error) {
	logger.WithComponent("workerpool").Error().Str("pool", p.name).Err(err).Msg("worker exception")
	p.excMu.Lock()
	p.exceptions = append(p.exceptions, err)
	p.excMu.Unlock()
}

// LastException pops and returns the oldest unread exception, or nil if none
// is queued. It is an inspection surface, not a control surface: workers
// keep running whether or not callers ever read from here.
func (p *Pool[M]) LastException() error {
	p.excMu.Lock()
	defer p.excMu.Unlock()
	if len(p.exceptions) == 0 {
		return nil
	}
	err := p.exceptions[0]
	p.exceptions = p.exceptions[1:]
	return err
}

// Submit enqueues a message for processing. It reports false if the pool has
// no active generation of workers (never started, or stopped and not yet
// restarted via AddWorker) — such messages are dropped, never silently
// handed to a later generation.
func (p *Pool[M]) Submit(msg M) bool {
	ok := p.q.push(msg)
	if ok {
		metrics.WorkerQueueDepth.WithLabelValues(p.name).Set(float64(p.q.len()))
	}
	return ok
}

// StopWorkers drains the queue — every already-enqueued message is handled
// by some worker before any worker exits — then joins all workers and
// returns their handlers, transferring ownership of whatever state (e.g.
// statistics) they accumulated to the caller. After StopWorkers returns,
// WorkersCount is 0.
func (p *Pool[M]) StopWorkers() []Handler[M] {
	p.mu.Lock()
	workers := p.workers
	p.workers = nil
	p.mu.Unlock()

	p.q.closeForDrain()

	handlers := make([]Handler[M], 0, len(workers))
	for _, w := range workers {
		<-w.done
		handlers = append(handlers, w.handler)
	}
	metrics.WorkerQueueDepth.WithLabelValues(p.name).Set(0)
	return handlers
}

// WorkersCount reports the number of currently live workers.
func (p *Pool[M]) WorkersCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}
