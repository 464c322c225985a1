package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogAppendOrdering(t *testing.T) {
	l := NewLog()

	id1 := l.AppendUser("first")
	id2 := l.AppendAssistant("second")
	id3 := l.AppendUser("third")

	turns := l.Snapshot()
	require.Len(t, turns, 3)
	assert.Equal(t, id1, turns[0].ID)
	assert.Equal(t, id2, turns[1].ID)
	assert.Equal(t, id3, turns[2].ID)

	// Timestamps never go backwards.
	assert.False(t, turns[1].CreatedAt.Before(turns[0].CreatedAt))
	assert.False(t, turns[2].CreatedAt.Before(turns[1].CreatedAt))
}

func TestLogPlaceholderReplacePreservesIdentity(t *testing.T) {
	l := NewLog()

	id := l.AppendAssistantPlaceholder()
	before, ok := l.Get(id)
	require.True(t, ok)
	assert.Equal(t, PlaceholderContent, before.Content)

	analysis := &ErrorAnalysis{ErrorType: "TypeError", Severity: SeverityHigh}
	l.ReplaceAt(id, "final answer", analysis)

	after, ok := l.Get(id)
	require.True(t, ok)
	assert.Equal(t, "final answer", after.Content)
	assert.Equal(t, analysis, after.Analysis)
	assert.Equal(t, RoleAssistant, after.Role)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	assert.Equal(t, 1, l.Len())
}

func TestLogReplaceMissingIDIsNoOp(t *testing.T) {
	l := NewLog()
	l.AppendUser("kept")

	l.ReplaceAt(TurnID("no-such-id"), "ignored", nil)

	turns := l.Snapshot()
	require.Len(t, turns, 1)
	assert.Equal(t, "kept", turns[0].Content)
}

func TestLogReplaceAfterClearIsNoOp(t *testing.T) {
	l := NewLog()
	id := l.AppendAssistantPlaceholder()

	l.Clear()
	l.ReplaceAt(id, "late arrival", nil)

	assert.Zero(t, l.Len())
}

func TestLogSnapshotIsACopy(t *testing.T) {
	l := NewLog()
	l.AppendUser("original")

	snap := l.Snapshot()
	snap[0].Content = "mutated"

	assert.Equal(t, "original", l.Snapshot()[0].Content)
}
