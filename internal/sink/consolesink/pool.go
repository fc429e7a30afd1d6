package consolesink

import (
	"fmt"
	"io"
	"sync"

	"golang.org/x/time/rate"

	"bulkd/internal/bulk"
	"bulkd/internal/logger"
	"bulkd/internal/metrics"
	"bulkd/internal/streamref"
	"bulkd/internal/workerpool"
)

type pool struct {
	p *workerpool.Pool[bulk.Bulk]
}

func newPool(ref *streamref.Ref, writeMu *sync.Mutex, limiter *rate.Limiter) *pool {
	return &pool{
		p: workerpool.New("console", func(id int) workerpool.Handler[bulk.Bulk] {
			return &handler{id: id, ref: ref, writeMu: writeMu, limiter: limiter}
		}),
	}
}

// handler is the per-worker state: it owns no synchronization of its own
// stats (only this worker ever touches them) but shares writeMu with every
// other console worker, since they all write to the same stream.
type handler struct {
	id      int
	ref     *streamref.Ref
	writeMu *sync.Mutex
	limiter *rate.Limiter
	stats   Stats
}

func (h *handler) Handle(b bulk.Bulk) error {
	w, err := snapshotAndWait(h.ref, h.limiter)
	if err != nil {
		logger.WithComponent("consolesink").Error().Int("worker", h.id).Err(err).Msg("failed to acquire console stream")
		metrics.WorkerBulksFailedTotal.WithLabelValues("console").Inc()
		return err
	}

	h.writeMu.Lock()
	_, err = io.WriteString(w, b.Format())
	h.writeMu.Unlock()

	if err != nil {
		logger.WithComponent("consolesink").Error().Int("worker", h.id).Err(err).Msg("failed to write bulk to console")
		metrics.WorkerBulksFailedTotal.WithLabelValues("console").Inc()
		return fmt.Errorf("consolesink: write: %w", err)
	}

	h.stats.Bulks++
	h.stats.Commands += uint64(b.Size())
	metrics.WorkerBulksProcessedTotal.WithLabelValues("console").Inc()
	metrics.WorkerCommandsProcessedTotal.WithLabelValues("console").Add(float64(b.Size()))
	return nil
}
