package sessionports

import (
	"context"
	"time"
)

// TurnRecord is the flattened form of a conversation turn handed to the
// optional transcript archive.
type TurnRecord struct {
	SessionID string
	TurnID    string
	Role      string
	Content   string
	Analysis  []byte // JSON-encoded analysis, nil when absent
	CreatedAt time.Time
}

// TranscriptStore archives conversation turns. Archiving is strictly
// best-effort: the controller traces failures and never surfaces them.
type TranscriptStore interface {
	SaveTurn(ctx context.Context, rec TurnRecord) error
}
