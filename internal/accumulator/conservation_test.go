package accumulator

import (
	"bytes"
	"strings"
	"testing"

	"bulkd/internal/sink"
	"bulkd/internal/sink/consolesink"
	"bulkd/internal/sink/filesink"
	"bulkd/internal/streamref"
)

// P9: the sum of every sink worker's own Bulks/Commands counters must equal
// the accumulator's own cumulative Stats(), regardless of how many workers
// or sinks bulks are fanned out to.
func TestStats_ConservedAcrossSinkWorkers(t *testing.T) {
	var buf bytes.Buffer
	ref := streamref.New(&buf)
	console := consolesink.New(ref, 3)
	file := filesink.New(t.TempDir(), 2)

	a := New(4, []sink.Sink{console, file})

	var sb strings.Builder
	const commands = 97 // deliberately not a multiple of the bulk size
	for i := 0; i < commands; i++ {
		sb.WriteString("cmd\n")
	}
	a.Receive([]byte(sb.String()))
	a.Close()

	want := a.Stats()

	var consoleBulks, consoleCommands uint64
	for _, s := range console.StopWorkers() {
		consoleBulks += s.Bulks
		consoleCommands += s.Commands
	}
	if consoleBulks != want.Bulks || consoleCommands != want.Commands {
		t.Fatalf("console sink totals = %d bulks/%d commands, want %d/%d",
			consoleBulks, consoleCommands, want.Bulks, want.Commands)
	}

	var fileBulks, fileCommands uint64
	for _, s := range file.StopWorkers() {
		fileBulks += s.Bulks
		fileCommands += s.Commands
	}
	if fileBulks != want.Bulks || fileCommands != want.Commands {
		t.Fatalf("file sink totals = %d bulks/%d commands, want %d/%d",
			fileBulks, fileCommands, want.Bulks, want.Commands)
	}
}
