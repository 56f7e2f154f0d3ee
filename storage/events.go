package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"lifelog-api/domain"
)

// NewCalendarEvent carries validated fields for calendar event creation.
type NewCalendarEvent struct {
	Title              string
	StartAt            time.Time
	EndAt              *time.Time
	RemindBeforeMinute int
	RelatedType        string
	RelatedID          *int64
}

// CreateCalendarEvent inserts a calendar event for the user.
func (s *Storage) CreateCalendarEvent(ctx context.Context, userID string, in NewCalendarEvent) (domain.CalendarEvent, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO calendar_events
		 (user_id, title, start_at, end_at, remind_before_minute, related_type, related_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, in.Title, in.StartAt.Unix(), nullUnix(in.EndAt), in.RemindBeforeMinute,
		in.RelatedType, nullInt(in.RelatedID), now.Unix())
	if err != nil {
		return domain.CalendarEvent{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.CalendarEvent{}, err
	}
	return domain.CalendarEvent{
		ID: id, UserID: userID, Title: in.Title,
		StartAt: in.StartAt.UTC(), EndAt: in.EndAt,
		RemindBeforeMinute: in.RemindBeforeMinute,
		RelatedType:        in.RelatedType, RelatedID: in.RelatedID,
		CreatedAt: now,
	}, nil
}

// ListCalendarEvents returns the user's events ordered by start time, newest first.
func (s *Storage) ListCalendarEvents(ctx context.Context, userID string, limit int) ([]domain.CalendarEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, start_at, end_at, remind_before_minute,
		        related_type, related_id, reminder_sent_at, created_at
		 FROM calendar_events WHERE user_id = ? ORDER BY start_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []domain.CalendarEvent{}
	for rows.Next() {
		ev, err := scanCalendarEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// GetCalendarEvent loads one event by id.
func (s *Storage) GetCalendarEvent(ctx context.Context, id int64) (domain.CalendarEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, start_at, end_at, remind_before_minute,
		        related_type, related_id, reminder_sent_at, created_at
		 FROM calendar_events WHERE id = ?`, id)
	ev, err := scanCalendarEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CalendarEvent{}, ErrNotFound
	}
	return ev, err
}

func scanCalendarEvent(row rowScanner) (domain.CalendarEvent, error) {
	var (
		ev        domain.CalendarEvent
		startAt   int64
		endAt     sql.NullInt64
		relatedID sql.NullInt64
		sentAt    sql.NullInt64
		created   int64
	)
	err := row.Scan(&ev.ID, &ev.UserID, &ev.Title, &startAt, &endAt, &ev.RemindBeforeMinute,
		&ev.RelatedType, &relatedID, &sentAt, &created)
	if err != nil {
		return domain.CalendarEvent{}, err
	}
	ev.StartAt = time.Unix(startAt, 0).UTC()
	ev.EndAt = unixPtr(endAt)
	if relatedID.Valid {
		v := relatedID.Int64
		ev.RelatedID = &v
	}
	ev.ReminderSentAt = unixPtr(sentAt)
	ev.CreatedAt = time.Unix(created, 0).UTC()
	return ev, nil
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
