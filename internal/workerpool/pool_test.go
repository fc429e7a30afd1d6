package workerpool

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingHandler struct {
	id        int
	processed *atomic.Uint64
	failNext  bool
}

func (h *countingHandler) Handle(msg int) error {
	if h.failNext {
		h.failNext = false
		return errors.New("boom")
	}
	h.processed.Add(1)
	return nil
}

func TestPool_ProcessesAllSubmittedMessages(t *testing.T) {
	var processed atomic.Uint64
	p := New("test", func(id int) Handler[int] {
		return &countingHandler{id: id, processed: &processed}
	})

	for i := 0; i < 3; i++ {
		if _, err := p.AddWorker(); err != nil {
			t.Fatalf("AddWorker: %v", err)
		}
	}
	if got := p.WorkersCount(); got != 3 {
		t.Fatalf("WorkersCount = %d, want 3", got)
	}

	const n = 100
	for i := 0; i < n; i++ {
		if !p.Submit(i) {
			t.Fatalf("Submit(%d) rejected", i)
		}
	}

	p.StopWorkers()

	if got := processed.Load(); got != n {
		t.Fatalf("processed = %d, want %d", got, n)
	}
	if got := p.WorkersCount(); got != 0 {
		t.Fatalf("WorkersCount after stop = %d, want 0", got)
	}
}

func TestPool_DrainsQueueBeforeStopReturns(t *testing.T) {
	var processed atomic.Uint64
	p := New("test", func(id int) Handler[int] {
		return &countingHandler{id: id, processed: &processed}
	})
	if _, err := p.AddWorker(); err != nil {
		t.Fatalf("AddWorker: %v", err)
	}

	for i := 0; i < 50; i++ {
		p.Submit(i)
	}
	handlers := p.StopWorkers()

	if got := processed.Load(); got != 50 {
		t.Fatalf("processed = %d, want 50 (queue must fully drain before Stop returns)", got)
	}
	if len(handlers) != 1 {
		t.Fatalf("len(handlers) = %d, want 1", len(handlers))
	}
}

func TestPool_SubmitAfterStopIsRejectedUntilNewWorker(t *testing.T) {
	var processed atomic.Uint64
	p := New("test", func(id int) Handler[int] {
		return &countingHandler{id: id, processed: &processed}
	})
	if _, err := p.AddWorker(); err != nil {
		t.Fatalf("AddWorker: %v", err)
	}
	p.StopWorkers()

	if p.Submit(1) {
		t.Fatal("Submit after StopWorkers should be rejected")
	}

	if _, err := p.AddWorker(); err != nil {
		t.Fatalf("AddWorker (second generation): %v", err)
	}
	if !p.Submit(2) {
		t.Fatal("Submit should succeed once a new generation of workers exists")
	}
	p.StopWorkers()
	if got := processed.Load(); got != 1 {
		t.Fatalf("processed = %d, want 1", got)
	}
}

func TestPool_HandlerErrorSurfacesAsLastException(t *testing.T) {
	var processed atomic.Uint64
	p := New("test", func(id int) Handler[int] {
		return &countingHandler{id: id, processed: &processed, failNext: true}
	})
	if _, err := p.AddWorker(); err != nil {
		t.Fatalf("AddWorker: %v", err)
	}

	p.Submit(1)
	p.Submit(2) // the handler only fails once; the worker must survive and keep going

	deadline := time.Now().Add(time.Second)
	for processed.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	p.StopWorkers()

	if err := p.LastException(); err == nil {
		t.Fatal("expected a recorded exception")
	}
	if got := processed.Load(); got != 1 {
		t.Fatalf("processed = %d, want 1 (worker must survive the error)", got)
	}
}

func TestPool_AddWorkerBlocksUntilRunning(t *testing.T) {
	var processed atomic.Uint64
	p := New("test", func(id int) Handler[int] {
		return &countingHandler{id: id, processed: &processed}
	})
	if _, err := p.AddWorker(); err != nil {
		t.Fatalf("AddWorker: %v", err)
	}
	// Submitting immediately after AddWorker returns must be safe: the
	// worker is guaranteed observable as running by then.
	p.Submit(1)
	p.StopWorkers()
	if got := processed.Load(); got != 1 {
		t.Fatalf("processed = %d, want 1", got)
	}
}
