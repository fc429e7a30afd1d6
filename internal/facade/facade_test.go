package facade

import (
	"bytes"
	"testing"

	"bulkd/internal/registry"
)

func TestConnectReceiveDisconnect_EndToEnd(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(registry.Options{
		DefaultOutput:  &buf,
		ConsoleWorkers: 1,
		FileDir:        t.TempDir(),
		FileWorkers:    1,
	}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer Shutdown()

	h := Connect(3)
	if !h.Valid() {
		t.Fatal("Connect returned an invalid handle")
	}

	Receive(h, []byte("cmd1\ncmd2\ncmd3\n"))
	Disconnect(h)
	Shutdown()

	if got, want := buf.String(), "bulk: cmd1, cmd2, cmd3\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestReceive_UnknownHandleIsNoop(t *testing.T) {
	if err := Init(registry.Options{ConsoleWorkers: 1, FileDir: t.TempDir(), FileWorkers: 1}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer Shutdown()

	Receive(registry.NilHandle, []byte("x\n")) // must not panic
	Disconnect(registry.NilHandle)              // must not panic
}

func TestConnect_BeforeInitReturnsNilHandle(t *testing.T) {
	mu.Lock()
	reg = nil
	mu.Unlock()

	h := Connect(3)
	if h.Valid() {
		t.Fatal("expected an invalid handle when the facade is uninitialized")
	}
}

func TestDisconnect_IsIdempotent(t *testing.T) {
	if err := Init(registry.Options{ConsoleWorkers: 1, FileDir: t.TempDir(), FileWorkers: 1}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer Shutdown()

	h := Connect(3)
	Disconnect(h)
	Disconnect(h) // must not panic or double-free
}
