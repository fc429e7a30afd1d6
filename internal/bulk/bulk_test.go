package bulk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_JoinsCommandsWithNoTrailingComma(t *testing.T) {
	b := Bulk{Timestamp: time.Unix(1, 0), Commands: []Command{"cmd1", "cmd2", "cmd3"}}
	assert.Equal(t, "bulk: cmd1, cmd2, cmd3\n", b.Format())
}

func TestFormat_SingleCommandHasNoComma(t *testing.T) {
	b := Bulk{Timestamp: time.Unix(1, 0), Commands: []Command{"cmd1"}}
	assert.Equal(t, "bulk: cmd1\n", b.Format())
}

func TestFormat_EmptyCommandStillAppearsVerbatim(t *testing.T) {
	b := Bulk{Timestamp: time.Unix(1, 0), Commands: []Command{"", "cmd2"}}
	assert.Equal(t, "bulk: , cmd2\n", b.Format())
}

func TestSize_MatchesCommandCount(t *testing.T) {
	b := Bulk{Commands: []Command{"a", "b", "c"}}
	require.Equal(t, 3, b.Size())
}

func TestSize_ZeroForEmptyBulk(t *testing.T) {
	b := Bulk{}
	require.Equal(t, 0, b.Size())
}
