// Package filesink implements the file sink of §4.C: each bulk is written
// to its own uniquely named file, named from the bulk's timestamp, worker
// identity, and a per-worker monotonic counter.
package filesink

import (
	"fmt"
	"os"
	"path/filepath"

	"bulkd/internal/bulk"
	"bulkd/internal/logger"
	"bulkd/internal/metrics"
	"bulkd/internal/workerpool"
)

// Stats mirrors §3's per-worker statistics shape, extended with the
// processed-filename list the original's FileOutputThreadHandler keeps.
type Stats struct {
	Bulks          uint64
	Commands       uint64
	ProcessedFiles []string
}

// Sink writes each bulk to its own file under Dir.
type Sink struct {
	dir string
	p   *workerpool.Pool[bulk.Bulk]
}

// New creates a file sink rooted at dir with workers background workers
// (default runtime.NumCPU() is the caller's responsibility to pass in, per
// spec.md §3 — this package does not guess hardware concurrency itself).
func New(dir string, workers int) *Sink {
	if workers <= 0 {
		workers = 1
	}
	s := &Sink{dir: dir}
	s.p = workerpool.New("file", func(id int) workerpool.Handler[bulk.Bulk] {
		return &handler{id: id, dir: dir}
	})
	for i := 0; i < workers; i++ {
		if _, err := s.p.AddWorker(); err != nil {
			panic(fmt.Sprintf("filesink: add worker: %v", err))
		}
	}
	metrics.WorkerPoolSize.WithLabelValues("file").Set(float64(workers))
	return s
}

// Emit enqueues b for asynchronous writing to its own file.
func (s *Sink) Emit(b bulk.Bulk) {
	s.p.Submit(b)
}

// StopWorkers drains and stops the pool, returning each worker's final
// statistics and processed-file list.
func (s *Sink) StopWorkers() []Stats {
	handlers := s.p.StopWorkers()
	metrics.WorkerPoolSize.WithLabelValues("file").Set(0)
	stats := make([]Stats, len(handlers))
	for i, h := range handlers {
		stats[i] = h.(*handler).stats
	}
	return stats
}

// LastException returns the oldest unread I/O failure, if any. A bulk whose
// file write failed is not retried (§4.C).
func (s *Sink) LastException() error {
	return s.p.LastException()
}

type handler struct {
	id      int
	dir     string
	counter uint16
	stats   Stats
}

func (h *handler) Handle(b bulk.Bulk) error {
	name := filename(b, h.id, h.counter)
	h.counter++ // advances even on failure: the triple must stay unique (P8)

	path := filepath.Join(h.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		logger.WithComponent("filesink").Error().Int("worker", h.id).Str("file", name).Err(err).Msg("failed to open file")
		metrics.WorkerBulksFailedTotal.WithLabelValues("file").Inc()
		return fmt.Errorf("filesink: open %s: %w", name, err)
	}
	defer f.Close()

	if _, err := f.WriteString(b.Format()); err != nil {
		logger.WithComponent("filesink").Error().Int("worker", h.id).Str("file", name).Err(err).Msg("failed to write file")
		metrics.WorkerBulksFailedTotal.WithLabelValues("file").Inc()
		return fmt.Errorf("filesink: write %s: %w", name, err)
	}

	h.stats.Bulks++
	h.stats.Commands += uint64(b.Size())
	h.stats.ProcessedFiles = append(h.stats.ProcessedFiles, name)
	metrics.WorkerBulksProcessedTotal.WithLabelValues("file").Inc()
	metrics.WorkerCommandsProcessedTotal.WithLabelValues("file").Add(float64(b.Size()))
	return nil
}

// filename builds "bulk<unix_seconds>_<worker_id>_<counter>.log" per §6.
func filename(b bulk.Bulk, workerID int, counter uint16) string {
	return fmt.Sprintf("bulk%d_%d_%d.log", b.Timestamp.Unix(), workerID, counter)
}
