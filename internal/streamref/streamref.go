// Package streamref models the "default ostream" pattern from the original
// source as an atomically swappable handle instead of the source's
// spin-lock/atomic_flag contraption (see Design Notes, §9).
package streamref

import (
	"io"
	"sync/atomic"
)

// Ref holds an io.Writer that can be swapped out at any time. Readers
// snapshot the current writer with Get; the snapshot stays valid for the
// duration of a write even if a concurrent Set runs, because Ref never
// closes or mutates the writer it held — it only stops pointing at it.
type Ref struct {
	v atomic.Value // io.Writer
}

// New creates a Ref pointing at w.
func New(w io.Writer) *Ref {
	r := &Ref{}
	r.v.Store(&writerBox{w})
	return r
}

// writerBox exists because atomic.Value requires a consistent concrete type
// across Store calls, while io.Writer implementations vary.
type writerBox struct {
	w io.Writer
}

// Get snapshots the current writer. Call this once per emit, before
// entering any write critical section, and release the snapshot for the
// duration of the I/O — never re-read the Ref mid-write.
func (r *Ref) Get() io.Writer {
	return r.v.Load().(*writerBox).w
}

// Set installs a new writer, visible to every Get call from this instant on.
// It never blocks and never races with in-flight writes using a
// previously-snapshotted reference.
func (r *Ref) Set(w io.Writer) {
	r.v.Store(&writerBox{w})
}
