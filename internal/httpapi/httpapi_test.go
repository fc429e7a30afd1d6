package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bulkd/internal/facade"
	"bulkd/internal/registry"
)

func setup(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := facade.Init(registry.Options{
		DefaultOutput:  &buf,
		ConsoleWorkers: 1,
		FileDir:        t.TempDir(),
		FileWorkers:    1,
	}); err != nil {
		t.Fatalf("facade.Init: %v", err)
	}
	t.Cleanup(facade.Shutdown)
	return &buf
}

func TestConnectReceiveDisconnect_ViaHTTP(t *testing.T) {
	out := setup(t)
	h := NewHandler()

	connectBody, _ := json.Marshal(ConnectRequest{BulkSize: 2})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/contexts", bytes.NewReader(connectBody)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("connect status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var connResp ConnectResponse
	if err := json.NewDecoder(rec.Body).Decode(&connResp); err != nil {
		t.Fatalf("decode connect response: %v", err)
	}
	if connResp.Handle == "" {
		t.Fatal("expected a non-empty handle")
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/contexts/"+connResp.Handle+"/receive", bytes.NewReader([]byte("a\nb\n")))
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("receive status = %d, want %d", rec.Code, http.StatusAccepted)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/contexts/"+connResp.Handle, nil)
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("disconnect status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	facade.Shutdown()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && out.Len() == 0 {
		time.Sleep(time.Millisecond)
	}
	if got, want := out.String(), "bulk: a, b\n"; got != want {
		t.Fatalf("console output = %q, want %q", got, want)
	}
}

func TestReceive_MalformedHandleReturns404(t *testing.T) {
	setup(t)
	h := NewHandler()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/contexts/not-a-uuid/receive", bytes.NewReader([]byte("x\n")))
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestConnect_RejectsInvalidBulkSize(t *testing.T) {
	setup(t)
	h := NewHandler()

	body, _ := json.Marshal(ConnectRequest{BulkSize: 0})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/contexts", bytes.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
