package telegram

import (
	"context"

	"lifelog-api/domain"
	"lifelog-api/storage"
)

// Store is the persistence surface the webhook executor needs.
type Store interface {
	UserByChatID(ctx context.Context, chatID string) (domain.User, error)
	EnabledTargetByChatID(ctx context.Context, chatID string) (domain.NotificationTarget, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
	CreateTask(ctx context.Context, userID string, in storage.NewTask) (domain.Task, error)
	CreateNote(ctx context.Context, userID string, in storage.NewNote) (domain.Note, error)
	CreateCalendarEvent(ctx context.Context, userID string, in storage.NewCalendarEvent) (domain.CalendarEvent, error)
	AppendLedger(ctx context.Context, userID, eventType, entityType string, entityID int64, payload domain.Payload) (domain.LedgerEntry, error)
}

// Interpreter parses natural-language commands.
type Interpreter interface {
	ParseCommand(ctx context.Context, text string) (domain.CommandPlan, error)
}

// Sender delivers one chat message.
type Sender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// Deduper prevents reprocessing of redelivered webhook updates.
type Deduper interface {
	Add(ctx context.Context, scope, key string) (bool, error)
}
