package api

import (
	"context"
	"time"

	"lifelog-api/ai"
	"lifelog-api/domain"
	"lifelog-api/storage"
)

// Storage is the persistence surface the HTTP handlers use.
type Storage interface {
	EnsureUser(ctx context.Context, id string) (domain.User, error)
	UserLocation(ctx context.Context, userID string, fallback *time.Location) *time.Location

	CreateTask(ctx context.Context, userID string, in storage.NewTask) (domain.Task, error)
	ListTasks(ctx context.Context, userID string, limit int) ([]domain.Task, error)
	CreateNote(ctx context.Context, userID string, in storage.NewNote) (domain.Note, error)
	ListNotes(ctx context.Context, userID string, limit int) ([]domain.Note, error)
	CreateCalendarEvent(ctx context.Context, userID string, in storage.NewCalendarEvent) (domain.CalendarEvent, error)
	ListCalendarEvents(ctx context.Context, userID string, limit int) ([]domain.CalendarEvent, error)
	GetCalendarEvent(ctx context.Context, id int64) (domain.CalendarEvent, error)

	AppendLedger(ctx context.Context, userID, eventType, entityType string, entityID int64, payload domain.Payload) (domain.LedgerEntry, error)
	ListLedger(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error)

	UpsertTarget(ctx context.Context, userID, targetType, chatID string, enabled bool) (domain.NotificationTarget, bool, error)
	LinkUserChat(ctx context.Context, userID, chatID string) error
	ListTargets(ctx context.Context, userID string) ([]domain.NotificationTarget, error)
	SetTargetEnabled(ctx context.Context, userID string, id int64, enabled bool) error
	DeleteTarget(ctx context.Context, userID string, id int64) error
	EnabledTargets(ctx context.Context, userID string) ([]domain.NotificationTarget, error)

	WeeklyStats(ctx context.Context, userID string, now time.Time, timezone string) (map[string]any, error)
}

// Authenticator resolves the calling user from the Authorization header.
type Authenticator interface {
	UserIDFromAuthHeader(h string) (string, error)
}

// Interpreter is the language-model surface the AI endpoints use.
type Interpreter interface {
	ExtractTasks(ctx context.Context, text string) ([]ai.ExtractedTask, error)
	TitleAndTags(ctx context.Context, text string) (ai.TitleTags, error)
	ParseCommand(ctx context.Context, text string) (domain.CommandPlan, error)
	ClassifyTone(ctx context.Context, text string) (ai.ToneReport, error)
	WeeklyDigest(ctx context.Context, stats map[string]any) (map[string]any, error)
}

// Sender delivers one chat message.
type Sender interface {
	Configured() bool
	SendMessage(ctx context.Context, chatID, text string) error
}
