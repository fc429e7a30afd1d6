// Package bulk defines the data types shared by every stage of the batching
// pipeline: a Command is one newline-delimited input token, a Bulk is an
// ordered, timestamped batch of commands ready to be handed to a sink.
package bulk

import (
	"strings"
	"time"
)

// Command is a single opaque token extracted from the input stream.
// Content is preserved verbatim, including the empty command produced by a
// blank line.
type Command string

// Bulk is an immutable, non-empty, timestamped batch of commands. The
// timestamp is the instant the bulk's first command was accepted by the
// accumulator, not the instant the bulk was flushed.
type Bulk struct {
	Timestamp time.Time
	Commands  []Command
}

// Format renders a bulk the way every sink emits it:
// "bulk: c1, c2, …, cN\n" with no trailing comma and a single trailing
// newline.
func (b Bulk) Format() string {
	var sb strings.Builder
	sb.WriteString("bulk: ")
	for i, c := range b.Commands {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(string(c))
	}
	sb.WriteByte('\n')
	return sb.String()
}

// Size returns the number of commands in the bulk.
func (b Bulk) Size() int {
	return len(b.Commands)
}
