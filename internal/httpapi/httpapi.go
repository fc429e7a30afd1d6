// Package httpapi exposes the embedding facade over HTTP: an additional
// ingestion surface alongside the stdin demo and the raw Connect/Receive/
// Disconnect calls, behind a logging/recovery middleware chain.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"bulkd/internal/facade"
	"bulkd/internal/logger"
	"bulkd/internal/middleware"
	"bulkd/internal/registry"
)

const maxReceiveBody = 10 * 1024 * 1024

// ConnectRequest is the body of POST /contexts.
type ConnectRequest struct {
	BulkSize int `json:"bulk_size"`
}

// ConnectResponse is the body returned by POST /contexts.
type ConnectResponse struct {
	Handle string `json:"handle"`
}

// NewHandler builds the ingestion HTTP surface: POST /contexts creates a
// context, POST /contexts/{handle}/receive feeds raw bytes into it, and
// DELETE /contexts/{handle} flushes and releases it. Every route is wrapped
// in recovery + request logging.
func NewHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /contexts", handleConnect)
	mux.HandleFunc("POST /contexts/{handle}/receive", handleReceive)
	mux.HandleFunc("DELETE /contexts/{handle}", handleDisconnect)
	return middleware.Chain(mux, middleware.Recovery, middleware.Logging)
}

func handleConnect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.BulkSize < 1 {
		writeError(w, http.StatusBadRequest, "bulk_size must be >= 1")
		return
	}

	handle := facade.Connect(req.BulkSize)
	if !handle.Valid() {
		writeError(w, http.StatusServiceUnavailable, "connect failed")
		return
	}

	writeJSON(w, http.StatusCreated, ConnectResponse{Handle: handle.String()})
}

func handleReceive(w http.ResponseWriter, r *http.Request) {
	handle, ok := parseHandle(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxReceiveBody)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	facade.Receive(handle, data)
	w.WriteHeader(http.StatusAccepted)
}

func handleDisconnect(w http.ResponseWriter, r *http.Request) {
	handle, ok := parseHandle(w, r)
	if !ok {
		return
	}
	facade.Disconnect(handle)
	w.WriteHeader(http.StatusNoContent)
}

func parseHandle(w http.ResponseWriter, r *http.Request) (registry.Handle, bool) {
	raw := r.PathValue("handle")
	h, err := registry.ParseHandle(raw)
	if err != nil {
		logger.WithComponent("httpapi").Warn().Str("handle", raw).Msg("malformed handle")
		writeError(w, http.StatusNotFound, "unknown handle")
		return registry.NilHandle, false
	}
	return h, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
