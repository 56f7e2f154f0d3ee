package storage

import (
	"context"
	"time"

	"lifelog-api/domain"
)

// DueReminderPass selects calendar events whose reminder is due, appends a
// calendar_event.reminder ledger entry for each and sets reminder_sent_at, all
// inside one write transaction. Because the transaction holds the write lock
// for its whole duration, a concurrent pass blocks until commit and then
// re-evaluates the predicate, finding reminder_sent_at already set. That is
// the sole mechanism guaranteeing at most one reminder per event.
func (s *Storage) DueReminderPass(ctx context.Context, now time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, user_id, title, start_at, end_at, remind_before_minute,
		        related_type, related_id, reminder_sent_at, created_at
		 FROM calendar_events
		 WHERE reminder_sent_at IS NULL
		   AND start_at >= ?
		   AND start_at - remind_before_minute * 60 <= ?`,
		now.Unix(), now.Unix())
	if err != nil {
		return 0, err
	}

	due := []domain.CalendarEvent{}
	for rows.Next() {
		ev, err := scanCalendarEvent(rows)
		if err != nil {
			rows.Close()
			return 0, err
		}
		due = append(due, ev)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	count := 0
	for _, ev := range due {
		payload := domain.Payload{
			"title":                ev.Title,
			"start_at":             ev.StartAt.Format(time.RFC3339),
			"remind_before_minute": ev.RemindBeforeMinute,
		}
		if ev.EndAt != nil {
			payload["end_at"] = ev.EndAt.Format(time.RFC3339)
		}
		if ev.RelatedType != "" {
			payload["related_type"] = ev.RelatedType
		}
		if ev.RelatedID != nil {
			payload["related_id"] = *ev.RelatedID
		}

		if _, err := s.appendLedger(ctx, tx, ev.UserID, "calendar_event.reminder", "calendar_event", ev.ID, payload); err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE calendar_events SET reminder_sent_at = ? WHERE id = ?`,
			now.Unix(), ev.ID); err != nil {
			return 0, err
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}
