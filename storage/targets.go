package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"lifelog-api/domain"
)

// UpsertTarget creates a notification target or re-enables/disables an
// existing one matching (user, type, chat_id). Reports whether a new row was
// created. Existence is checked up front; last_insert_rowid is unreliable on
// the update arm of ON CONFLICT.
func (s *Storage) UpsertTarget(ctx context.Context, userID, targetType, chatID string, enabled bool) (domain.NotificationTarget, bool, error) {
	now := time.Now().UTC()

	var existingID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM telegram_targets WHERE user_id = ? AND type = ? AND chat_id = ?`,
		userID, targetType, chatID).Scan(&existingID)
	created := false
	if errors.Is(err, sql.ErrNoRows) {
		created = true
	} else if err != nil {
		return domain.NotificationTarget{}, false, err
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO telegram_targets (user_id, type, chat_id, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, type, chat_id) DO UPDATE SET enabled = excluded.enabled`,
		userID, targetType, chatID, boolInt(enabled), now.Unix()); err != nil {
		return domain.NotificationTarget{}, false, err
	}

	var (
		t  domain.NotificationTarget
		en int
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, type, chat_id, enabled FROM telegram_targets
		 WHERE user_id = ? AND type = ? AND chat_id = ?`, userID, targetType, chatID)
	if err := row.Scan(&t.ID, &t.UserID, &t.Type, &t.ChatID, &en); err != nil {
		return domain.NotificationTarget{}, false, err
	}
	t.Enabled = en != 0
	return t, created, nil
}

// SetTargetEnabled toggles a target owned by the user. ErrNotFound when the
// target does not exist or belongs to someone else.
func (s *Storage) SetTargetEnabled(ctx context.Context, userID string, id int64, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE telegram_targets SET enabled = ? WHERE id = ? AND user_id = ?`,
		boolInt(enabled), id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTarget removes a target owned by the user.
func (s *Storage) DeleteTarget(ctx context.Context, userID string, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM telegram_targets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTargets returns all targets for a user, newest first.
func (s *Storage) ListTargets(ctx context.Context, userID string) ([]domain.NotificationTarget, error) {
	return s.queryTargets(ctx,
		`SELECT id, user_id, type, chat_id, enabled FROM telegram_targets
		 WHERE user_id = ? ORDER BY id DESC`, userID)
}

// EnabledTargets returns the enabled targets for a user.
func (s *Storage) EnabledTargets(ctx context.Context, userID string) ([]domain.NotificationTarget, error) {
	return s.queryTargets(ctx,
		`SELECT id, user_id, type, chat_id, enabled FROM telegram_targets
		 WHERE user_id = ? AND enabled = 1 ORDER BY id`, userID)
}

// EnabledTargetByChatID finds an enabled target by its chat id, used as the
// fallback when resolving a webhook sender to an owner.
func (s *Storage) EnabledTargetByChatID(ctx context.Context, chatID string) (domain.NotificationTarget, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, type, chat_id, enabled FROM telegram_targets
		 WHERE chat_id = ? AND enabled = 1 ORDER BY id LIMIT 1`, chatID)
	var (
		t  domain.NotificationTarget
		en int
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Type, &t.ChatID, &en)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotificationTarget{}, ErrNotFound
	}
	if err != nil {
		return domain.NotificationTarget{}, err
	}
	t.Enabled = en != 0
	return t, nil
}

func (s *Storage) queryTargets(ctx context.Context, query string, args ...any) ([]domain.NotificationTarget, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	targets := []domain.NotificationTarget{}
	for rows.Next() {
		var (
			t  domain.NotificationTarget
			en int
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.ChatID, &en); err != nil {
			return nil, err
		}
		t.Enabled = en != 0
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
