package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lifelog-api/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// AppendLedger writes an immutable ledger entry and schedules exactly one
// asynchronous dispatch task carrying the new entry's id.
func (s *Storage) AppendLedger(ctx context.Context, userID, eventType, entityType string, entityID int64, payload domain.Payload) (domain.LedgerEntry, error) {
	return s.appendLedger(ctx, s.db, userID, eventType, entityType, entityID, payload)
}

func (s *Storage) appendLedger(ctx context.Context, ex execer, userID, eventType, entityType string, entityID int64, payload domain.Payload) (domain.LedgerEntry, error) {
	now := time.Now().UTC()
	var payloadJSON []byte
	if payload != nil {
		var err error
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return domain.LedgerEntry{}, fmt.Errorf("marshal payload: %w", err)
		}
	}

	res, err := ex.ExecContext(ctx,
		`INSERT INTO event_logs (user_id, type, entity_type, entity_id, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userID, eventType, entityType, entityID, nullString(payloadJSON), now.Unix())
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("insert event log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	msg, err := json.Marshal(NotifyMessage{EventLogID: id})
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	if err := s.queue.Enqueue(ctx, string(msg)); err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("enqueue notify task: %w", err)
	}

	return domain.LedgerEntry{
		ID:         id,
		UserID:     userID,
		Type:       eventType,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    payload,
		CreatedAt:  now,
	}, nil
}

// GetLedgerEntry loads one entry by id. Returns ErrNotFound when absent.
func (s *Storage) GetLedgerEntry(ctx context.Context, id int64) (domain.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, type, entity_type, entity_id, payload, sent_at, created_at
		 FROM event_logs WHERE id = ?`, id)
	return scanLedgerEntry(row)
}

// MarkLedgerSent records delivery time on an entry. The update only applies
// while sent_at is still null, so the transition happens at most once; the
// return value reports whether this call performed it.
func (s *Storage) MarkLedgerSent(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE event_logs SET sent_at = ? WHERE id = ? AND sent_at IS NULL`,
		at.Unix(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListLedger returns the newest entries for a user.
func (s *Storage) ListLedger(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, type, entity_type, entity_id, payload, sent_at, created_at
		 FROM event_logs WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.LedgerEntry{}
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLedgerEntry(row rowScanner) (domain.LedgerEntry, error) {
	var (
		e       domain.LedgerEntry
		payload sql.NullString
		sentAt  sql.NullInt64
		created int64
	)
	err := row.Scan(&e.ID, &e.UserID, &e.Type, &e.EntityType, &e.EntityID, &payload, &sentAt, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LedgerEntry{}, ErrNotFound
	}
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	if payload.Valid && payload.String != "" {
		if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
			return domain.LedgerEntry{}, fmt.Errorf("decode payload: %w", err)
		}
	}
	if sentAt.Valid {
		t := time.Unix(sentAt.Int64, 0).UTC()
		e.SentAt = &t
	}
	e.CreatedAt = time.Unix(created, 0).UTC()
	return e, nil
}

func nullString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func nullUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func unixPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
