package storage

import (
	"context"
	"time"
)

// WeeklyStats aggregates the last seven days of activity for the weekly
// digest prompt.
func (s *Storage) WeeklyStats(ctx context.Context, userID string, now time.Time, timezone string) (map[string]any, error) {
	from := now.AddDate(0, 0, -7)
	to7d := now.AddDate(0, 0, 7)

	var tasksTotal, tasksLast7d, tasksOverdue, notesLast7d, eventsUpcoming int
	queries := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&tasksTotal, `SELECT COUNT(*) FROM tasks WHERE user_id = ?`, []any{userID}},
		{&tasksLast7d, `SELECT COUNT(*) FROM tasks WHERE user_id = ? AND created_at >= ?`, []any{userID, from.Unix()}},
		{&tasksOverdue, `SELECT COUNT(*) FROM tasks WHERE user_id = ? AND due_at IS NOT NULL AND due_at < ? AND status NOT IN ('done', 'completed')`, []any{userID, now.Unix()}},
		{&notesLast7d, `SELECT COUNT(*) FROM notes WHERE user_id = ? AND created_at >= ?`, []any{userID, from.Unix()}},
		{&eventsUpcoming, `SELECT COUNT(*) FROM calendar_events WHERE user_id = ? AND start_at >= ? AND start_at <= ?`, []any{userID, now.Unix(), to7d.Unix()}},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query, q.args...).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	byStatus := map[string]int{}
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM tasks WHERE user_id = ? GROUP BY status`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		byStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return map[string]any{
		"timezone": timezone,
		"range": map[string]any{
			"from": from.Format(time.RFC3339),
			"to":   now.Format(time.RFC3339),
		},
		"tasks": map[string]any{
			"total":           tasksTotal,
			"created_last_7d": tasksLast7d,
			"overdue_now":     tasksOverdue,
			"by_status":       byStatus,
		},
		"notes": map[string]any{
			"created_last_7d": notesLast7d,
		},
		"calendar": map[string]any{
			"upcoming_next_7d": eventsUpcoming,
		},
	}, nil
}
