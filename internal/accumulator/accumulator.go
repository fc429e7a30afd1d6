// Package accumulator turns a raw, arbitrarily fragmented byte stream into
// discrete commands and groups them into bulks, publishing each completed
// bulk to a set of sinks. It is the parser + bulk accumulator of §4.D: a
// two-state machine (flat batching vs. nested-block batching) that
// guarantees deterministic bulk boundaries regardless of how the input
// bytes were chunked across Receive calls.
package accumulator

import (
	"bytes"
	"sync/atomic"
	"time"

	"bulkd/internal/bulk"
	"bulkd/internal/metrics"
	"bulkd/internal/sink"
)

const (
	openBlock  = "{"
	closeBlock = "}"
)

type mode int

const (
	modeFlat mode = iota
	modeBlock
)

// Stats holds the parser's own running totals, independent of any sink's
// per-worker counters — useful for checking conservation (P9) against the
// sum of sink-side statistics.
type Stats struct {
	Bulks    uint64
	Commands uint64
}

// Accumulator is the per-context streaming parser and bulk buffer. It is not
// safe for concurrent use by multiple goroutines on its own — callers
// (normally a registry.Context) are expected to serialize Receive/Close
// calls for one accumulator, exactly as spec'd for Context.Process.
type Accumulator struct {
	bulkSize int
	sinks    []sink.Sink
	now      func() time.Time

	mode       mode
	blockDepth int
	buffer     []bulk.Command
	timestamp  time.Time
	pending    []byte // bytes received but not yet terminated by '\n'

	bulksPublished   atomic.Uint64
	commandsAccepted atomic.Uint64
}

// New creates an accumulator with a flat bulk size of bulkSize, publishing
// completed bulks to every sink in order. bulkSize must be >= 1.
func New(bulkSize int, sinks []sink.Sink) *Accumulator {
	return &Accumulator{
		bulkSize: bulkSize,
		sinks:    sinks,
		now:      time.Now,
	}
}

// withClock overrides the time source; used by tests that need
// deterministic or distinguishable timestamps.
func (a *Accumulator) withClock(now func() time.Time) *Accumulator {
	a.now = now
	return a
}

// Receive appends data to the stream and processes every complete
// newline-terminated command it contains. A trailing partial line (no '\n'
// seen yet) is buffered for the next call — feeding the same logical input
// as one Receive call or as many single-byte calls produces an identical
// sequence of published bulks (P2).
func (a *Accumulator) Receive(data []byte) {
	a.pending = append(a.pending, data...)
	for {
		idx := bytes.IndexByte(a.pending, '\n')
		if idx < 0 {
			break
		}
		line := string(a.pending[:idx])
		a.pending = a.pending[idx+1:]
		a.handleCommand(line)
	}
}

// Close performs the terminal flush: a buffered flat bulk is published, but
// a buffered (incomplete) block is discarded per I3/I4 — no bulk is ever
// published while still inside an open block.
func (a *Accumulator) Close() {
	if a.mode == modeFlat {
		a.flush()
		return
	}
	a.buffer = nil
	a.blockDepth = 0
}

// Stats returns the accumulator's own cumulative bulk/command counts.
func (a *Accumulator) Stats() Stats {
	return Stats{
		Bulks:    a.bulksPublished.Load(),
		Commands: a.commandsAccepted.Load(),
	}
}

func (a *Accumulator) handleCommand(cmd string) {
	switch cmd {
	case openBlock:
		a.openBlock()
	case closeBlock:
		a.closeBlock()
	default:
		a.append(bulk.Command(cmd))
	}
}

func (a *Accumulator) openBlock() {
	switch a.mode {
	case modeFlat:
		if len(a.buffer) > 0 {
			a.flush()
		}
		a.mode = modeBlock
		a.blockDepth = 1
	case modeBlock:
		a.blockDepth++
	}
}

func (a *Accumulator) closeBlock() {
	switch a.mode {
	case modeBlock:
		if a.blockDepth == 1 {
			a.flush()
			a.mode = modeFlat
			a.blockDepth = 0
		} else {
			a.blockDepth--
		}
	case modeFlat:
		// Undefined by the source grammar; spec.md §4.D.2 resolves this as
		// an ordinary command.
		a.append(bulk.Command(closeBlock))
	}
}

func (a *Accumulator) append(cmd bulk.Command) {
	if len(a.buffer) == 0 {
		a.timestamp = a.now()
	}
	a.buffer = append(a.buffer, cmd)
	a.commandsAccepted.Add(1)
	metrics.AccumulatorCommandsTotal.Inc()

	if a.mode == modeFlat && len(a.buffer) == a.bulkSize {
		a.flush()
	}
}

func (a *Accumulator) flush() {
	if len(a.buffer) == 0 {
		return
	}
	b := bulk.Bulk{Timestamp: a.timestamp, Commands: a.buffer}
	a.buffer = nil
	a.bulksPublished.Add(1)
	metrics.AccumulatorBulksTotal.Inc()

	for _, s := range a.sinks {
		s.Emit(b)
	}
}

