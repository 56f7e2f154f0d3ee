package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"lifelog-api/domain"
)

// EnsureUser creates the user row for an auth subject if it does not exist
// and returns it.
func (s *Storage) EnsureUser(ctx context.Context, id string) (domain.User, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, created_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		id, time.Now().UTC().Unix())
	if err != nil {
		return domain.User{}, err
	}
	return s.GetUser(ctx, id)
}

// GetUser loads one user by id.
func (s *Storage) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, telegram_chat_id, timezone FROM users WHERE id = ?`, id)
	var u domain.User
	err := row.Scan(&u.ID, &u.TelegramChatID, &u.Timezone)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	return u, err
}

// UserByChatID resolves a user directly linked to a telegram chat.
func (s *Storage) UserByChatID(ctx context.Context, chatID string) (domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, telegram_chat_id, timezone FROM users WHERE telegram_chat_id = ?`, chatID)
	var u domain.User
	err := row.Scan(&u.ID, &u.TelegramChatID, &u.Timezone)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	return u, err
}

// LinkUserChat stores the direct chat linkage for a user.
func (s *Storage) LinkUserChat(ctx context.Context, userID, chatID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET telegram_chat_id = ? WHERE id = ?`, chatID, userID)
	return err
}

// UserLocation returns the user's configured time zone, falling back to the
// provided default when unset or invalid.
func (s *Storage) UserLocation(ctx context.Context, userID string, fallback *time.Location) *time.Location {
	u, err := s.GetUser(ctx, userID)
	if err != nil || u.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}
