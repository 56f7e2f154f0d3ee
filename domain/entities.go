package domain

import "time"

// Payload is the structured payload attached to a ledger entry. Values are
// scalars, lists, or nested maps; rendering order is fixed by the notifier.
type Payload map[string]any

// OriginChatKey marks the chat that caused an event. The dispatcher never
// notifies the origin chat of its own event.
const OriginChatKey = "_origin_chat_id"

// LedgerEntry is an immutable record of a domain event. The only permitted
// mutation is the one-time transition of SentAt from nil to a timestamp.
type LedgerEntry struct {
	ID         int64      `json:"id"`
	UserID     string     `json:"user_id"`
	Type       string     `json:"type"`
	EntityType string     `json:"entity_type"`
	EntityID   int64      `json:"entity_id"`
	Payload    Payload    `json:"payload"`
	SentAt     *time.Time `json:"sent_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NotificationTarget is a chat destination owned by a user.
type NotificationTarget struct {
	ID      int64  `json:"id"`
	UserID  string `json:"user_id"`
	Type    string `json:"type"` // "channel" or "private"
	ChatID  string `json:"chat_id"`
	Enabled bool   `json:"enabled"`
}

type Task struct {
	ID        int64      `json:"id"`
	UserID    string     `json:"user_id"`
	Title     string     `json:"title"`
	Status    string     `json:"status"`
	DueAt     *time.Time `json:"due_at"`
	Source    string     `json:"source"`
	Link      string     `json:"link"`
	CreatedAt time.Time  `json:"created_at"`
}

type Note struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

type CalendarEvent struct {
	ID                 int64      `json:"id"`
	UserID             string     `json:"user_id"`
	Title              string     `json:"title"`
	StartAt            time.Time  `json:"start_at"`
	EndAt              *time.Time `json:"end_at"`
	RemindBeforeMinute int        `json:"remind_before_minute"`
	RelatedType        string     `json:"related_type"`
	RelatedID          *int64     `json:"related_id"`
	ReminderSentAt     *time.Time `json:"reminder_sent_at"`
	CreatedAt          time.Time  `json:"created_at"`
}

// User is the owner of all domain objects. ID is the auth subject.
type User struct {
	ID             string `json:"id"`
	TelegramChatID string `json:"telegram_chat_id"`
	Timezone       string `json:"timezone"`
}
