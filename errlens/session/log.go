package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TurnID is the stable identity of a log entry. Replacement always targets
// a specific ID, never "the last turn".
type TurnID string

// PlaceholderContent is the sentinel content of an assistant turn inserted
// before its final content is known.
const PlaceholderContent = "Analyzing error..."

// Turn is one entry in the conversation log. Identity, role, and creation
// time are immutable; assistant content and analysis may be replaced in
// place.
type Turn struct {
	ID        TurnID
	Role      Role
	Content   string
	Analysis  *ErrorAnalysis // assistant turns only
	CreatedAt time.Time
}

// Log is an append-only, time-ordered sequence of turns. Turns are never
// reordered or individually deleted; Clear empties the whole log.
type Log struct {
	mu    sync.RWMutex
	turns []Turn
	index map[TurnID]int
	last  time.Time
}

// NewLog creates an empty conversation log.
func NewLog() *Log {
	return &Log{index: make(map[TurnID]int)}
}

// now returns a creation timestamp clamped to be non-decreasing.
func (l *Log) now() time.Time {
	t := time.Now()
	if t.Before(l.last) {
		t = l.last
	}
	l.last = t
	return t
}

func (l *Log) append(role Role, content string) TurnID {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := TurnID(uuid.NewString())
	l.index[id] = len(l.turns)
	l.turns = append(l.turns, Turn{
		ID:        id,
		Role:      role,
		Content:   content,
		CreatedAt: l.now(),
	})
	return id
}

// AppendUser appends a new user turn and returns its identity.
func (l *Log) AppendUser(content string) TurnID {
	return l.append(RoleUser, content)
}

// AppendAssistant appends a new assistant turn with the given content.
func (l *Log) AppendAssistant(content string) TurnID {
	return l.append(RoleAssistant, content)
}

// AppendAssistantPlaceholder reserves an assistant turn's position so
// observers see immediate feedback instead of a gap while inference runs.
func (l *Log) AppendAssistantPlaceholder() TurnID {
	return l.append(RoleAssistant, PlaceholderContent)
}

// ReplaceAt overwrites a turn's content and analysis in place. Role and
// creation time are untouched. A missing ID (the log was cleared
// concurrently) is a silent no-op.
func (l *Log) ReplaceAt(id TurnID, content string, analysis *ErrorAnalysis) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.index[id]
	if !ok {
		return
	}
	l.turns[i].Content = content
	l.turns[i].Analysis = analysis
}

// Get returns a copy of the identified turn.
func (l *Log) Get(id TurnID) (Turn, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i, ok := l.index[id]
	if !ok {
		return Turn{}, false
	}
	return l.turns[i], true
}

// Clear empties the log unconditionally. Confirmation, if any, is the
// caller's concern.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.turns = nil
	l.index = make(map[TurnID]int)
}

// Len reports the number of turns.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Snapshot returns a copy of all turns in timestamp order.
func (l *Log) Snapshot() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}
