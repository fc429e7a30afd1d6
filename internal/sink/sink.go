// Package sink defines the subscriber capability that the accumulator
// publishes completed bulks to. Sinks hold no back-pointer to whatever
// produced a bulk — it is a one-way fan-out.
package sink

import "bulkd/internal/bulk"

// Sink is the single operation every bulk subscriber exposes. Emit must not
// block the caller for longer than it takes to enqueue the bulk onto the
// sink's own worker pool.
type Sink interface {
	Emit(b bulk.Bulk)
}
