// Package facade implements the embedding API of §4.G/§6: exactly three
// entry points (Connect, Receive, Disconnect) plus the administration
// surface SetDefaultOstream, each wrapping the registry singleton behind a
// catch-all recover barrier so a panic anywhere downstream is logged and
// swallowed rather than propagated to the embedder. Grounded on the
// original's async.cpp, which wraps every C entry point identically.
package facade

import (
	"io"
	"sync"

	"bulkd/internal/logger"
	"bulkd/internal/metrics"
	"bulkd/internal/registry"
)

var (
	mu  sync.RWMutex
	reg *registry.Registry
)

// Init installs the process-wide registry every facade call forwards to. It
// must be called once before Connect/Receive/Disconnect are used; calling it
// again replaces the registry (the previous one is not shut down for the
// caller — use Shutdown first if that is wanted).
func Init(opts registry.Options) error {
	r, err := registry.New(opts)
	if err != nil {
		return err
	}
	mu.Lock()
	reg = r
	mu.Unlock()
	return nil
}

// Shutdown drains and stops the installed registry's long-lived sinks.
func Shutdown() {
	mu.Lock()
	r := reg
	reg = nil
	mu.Unlock()
	if r != nil {
		r.Shutdown()
	}
}

func current() *registry.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return reg
}

// Connect allocates a new context with the given bulk size and returns its
// handle, or registry.NilHandle on any failure (including an uninitialized
// facade or a recovered panic).
func Connect(bulkSize int) (handle registry.Handle) {
	log := logger.WithComponent("facade")
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("connect: recovered panic")
			metrics.PanicsRecovered.WithLabelValues("facade").Inc()
			metrics.FacadeConnectFailuresTotal.Inc()
			handle = registry.NilHandle
		}
	}()

	r := current()
	if r == nil {
		log.Error().Msg("connect: facade not initialized")
		metrics.FacadeConnectFailuresTotal.Inc()
		return registry.NilHandle
	}
	if bulkSize < 1 {
		log.Error().Int("bulk_size", bulkSize).Msg("connect: invalid bulk size")
		metrics.FacadeConnectFailuresTotal.Inc()
		return registry.NilHandle
	}
	return r.MakeContext(bulkSize)
}

// Receive feeds data into the context identified by handle. It is a no-op
// on an unknown handle, an uninitialized facade, or a recovered panic.
func Receive(handle registry.Handle, data []byte) {
	log := logger.WithComponent("facade")
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("receive: recovered panic")
			metrics.PanicsRecovered.WithLabelValues("facade").Inc()
		}
	}()

	r := current()
	if r == nil || !handle.Valid() {
		return
	}
	ctx := r.Find(handle)
	if ctx == nil {
		return
	}
	ctx.Process(data)
}

// Disconnect flushes and releases the context identified by handle.
// Idempotent and a no-op on an unknown handle.
func Disconnect(handle registry.Handle) {
	log := logger.WithComponent("facade")
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("disconnect: recovered panic")
			metrics.PanicsRecovered.WithLabelValues("facade").Inc()
		}
	}()

	r := current()
	if r == nil || !handle.Valid() {
		return
	}
	r.Erase(handle)
}

// SetDefaultOstream forwards to the installed registry's SetDefaultOstream,
// or is a no-op if the facade has not been initialized.
func SetDefaultOstream(w io.Writer) {
	log := logger.WithComponent("facade")
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("set default ostream: recovered panic")
			metrics.PanicsRecovered.WithLabelValues("facade").Inc()
		}
	}()

	if r := current(); r != nil {
		r.SetDefaultOstream(w)
	}
}
