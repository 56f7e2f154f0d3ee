package notify

import (
	"context"
	"time"

	"lifelog-api/domain"
)

// Store is the persistence surface the dispatcher needs. All coordination
// runs through the persisted sent marker; the dispatcher holds no state.
type Store interface {
	GetLedgerEntry(ctx context.Context, id int64) (domain.LedgerEntry, error)
	EnabledTargets(ctx context.Context, userID string) ([]domain.NotificationTarget, error)
	MarkLedgerSent(ctx context.Context, id int64, at time.Time) (bool, error)
	UserLocation(ctx context.Context, userID string, fallback *time.Location) *time.Location
}

// Sender delivers one chat message.
type Sender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}
