package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"lifelog-api/domain"
)

// NewTask carries validated fields for task creation.
type NewTask struct {
	Title  string
	Status string
	DueAt  *time.Time
	Source string
	Link   string
}

// CreateTask inserts a task for the user.
func (s *Storage) CreateTask(ctx context.Context, userID string, in NewTask) (domain.Task, error) {
	now := time.Now().UTC()
	status := in.Status
	if status == "" {
		status = "open"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (user_id, title, status, due_at, source, link, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, in.Title, status, nullUnix(in.DueAt), in.Source, in.Link, now.Unix())
	if err != nil {
		return domain.Task{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Task{}, err
	}
	return domain.Task{
		ID: id, UserID: userID, Title: in.Title, Status: status,
		DueAt: in.DueAt, Source: in.Source, Link: in.Link, CreatedAt: now,
	}, nil
}

// ListTasks returns the newest tasks for a user.
func (s *Storage) ListTasks(ctx context.Context, userID string, limit int) ([]domain.Task, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, status, due_at, source, link, created_at
		 FROM tasks WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		var (
			t       domain.Task
			dueAt   sql.NullInt64
			created int64
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Status, &dueAt, &t.Source, &t.Link, &created); err != nil {
			return nil, err
		}
		t.DueAt = unixPtr(dueAt)
		t.CreatedAt = time.Unix(created, 0).UTC()
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// NewNote carries validated fields for note creation.
type NewNote struct {
	Title string
	Body  string
	Tags  []string
}

// CreateNote inserts a note for the user.
func (s *Storage) CreateNote(ctx context.Context, userID string, in NewNote) (domain.Note, error) {
	now := time.Now().UTC()
	var tagsJSON []byte
	if in.Tags != nil {
		var err error
		tagsJSON, err = json.Marshal(in.Tags)
		if err != nil {
			return domain.Note{}, err
		}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (user_id, title, body, tags, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, in.Title, in.Body, nullString(tagsJSON), now.Unix())
	if err != nil {
		return domain.Note{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Note{}, err
	}
	return domain.Note{ID: id, UserID: userID, Title: in.Title, Body: in.Body, Tags: in.Tags, CreatedAt: now}, nil
}

// ListNotes returns the newest notes for a user.
func (s *Storage) ListNotes(ctx context.Context, userID string, limit int) ([]domain.Note, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, body, tags, created_at
		 FROM notes WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []domain.Note{}
	for rows.Next() {
		var (
			n       domain.Note
			tags    sql.NullString
			created int64
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &tags, &created); err != nil {
			return nil, err
		}
		if tags.Valid && tags.String != "" {
			if err := json.Unmarshal([]byte(tags.String), &n.Tags); err != nil {
				return nil, err
			}
		}
		n.CreatedAt = time.Unix(created, 0).UTC()
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
