package storage

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"lifelog-api/domain"
)

type fakeQueue struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeQueue) Enqueue(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeQueue) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

func newTestStorage(t *testing.T) (*Storage, *fakeQueue) {
	t.Helper()
	queue := &fakeQueue{}
	store, err := Open(filepath.Join(t.TempDir(), "test.db"), queue)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, queue
}

func mustUser(t *testing.T, store *Storage, id string) domain.User {
	t.Helper()
	user, err := store.EnsureUser(context.Background(), id)
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	return user
}

func TestAppendLedgerEnqueuesOneTask(t *testing.T) {
	store, queue := newTestStorage(t)
	ctx := context.Background()
	mustUser(t, store, "u1")

	entry, err := store.AppendLedger(ctx, "u1", "task.created", "task", 5, domain.Payload{"title": "buy milk"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if entry.ID == 0 {
		t.Fatal("expected assigned id")
	}

	msgs := queue.all()
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one dispatch task, got %d", len(msgs))
	}
	var task NotifyMessage
	if err := json.Unmarshal([]byte(msgs[0]), &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if task.EventLogID != entry.ID {
		t.Fatalf("task carries id %d, entry id is %d", task.EventLogID, entry.ID)
	}

	loaded, err := store.GetLedgerEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if loaded.Payload["title"] != "buy milk" {
		t.Fatalf("unexpected payload: %v", loaded.Payload)
	}
	if loaded.SentAt != nil {
		t.Fatal("new entry must be unsent")
	}
}

func TestMarkLedgerSentHappensOnce(t *testing.T) {
	store, _ := newTestStorage(t)
	ctx := context.Background()
	mustUser(t, store, "u1")

	entry, err := store.AppendLedger(ctx, "u1", "task.created", "task", 1, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	now := time.Now().UTC()
	marked, err := store.MarkLedgerSent(ctx, entry.ID, now)
	if err != nil || !marked {
		t.Fatalf("first mark: marked=%v err=%v", marked, err)
	}
	marked, err = store.MarkLedgerSent(ctx, entry.ID, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second mark: %v", err)
	}
	if marked {
		t.Fatal("second mark must be a no-op")
	}

	loaded, err := store.GetLedgerEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if loaded.SentAt == nil || loaded.SentAt.Unix() != now.Unix() {
		t.Fatalf("sent_at must keep the first value, got %v", loaded.SentAt)
	}
}

func TestGetLedgerEntryNotFound(t *testing.T) {
	store, _ := newTestStorage(t)
	if _, err := store.GetLedgerEntry(context.Background(), 12345); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDueReminderPassMarksExactlyOnce(t *testing.T) {
	store, queue := newTestStorage(t)
	ctx := context.Background()
	mustUser(t, store, "u1")

	now := time.Now().UTC()
	event, err := store.CreateCalendarEvent(ctx, "u1", NewCalendarEvent{
		Title:              "standup",
		StartAt:            now.Add(5 * time.Minute),
		RemindBeforeMinute: 10,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	n, err := store.DueReminderPass(ctx, now)
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reminder, got %d", n)
	}

	n, err = store.DueReminderPass(ctx, now)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if n != 0 {
		t.Fatalf("second pass must schedule nothing, got %d", n)
	}

	entries, err := store.ListLedger(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	reminders := 0
	for _, e := range entries {
		if e.Type == "calendar_event.reminder" {
			reminders++
			if e.EntityID != event.ID {
				t.Fatalf("reminder references entity %d, want %d", e.EntityID, event.ID)
			}
		}
	}
	if reminders != 1 {
		t.Fatalf("expected exactly one reminder entry, got %d", reminders)
	}
	if len(queue.all()) != 1 {
		t.Fatalf("expected one dispatch task, got %d", len(queue.all()))
	}
}

func TestDueReminderPassConcurrent(t *testing.T) {
	store, _ := newTestStorage(t)
	ctx := context.Background()
	mustUser(t, store, "u1")

	now := time.Now().UTC()
	if _, err := store.CreateCalendarEvent(ctx, "u1", NewCalendarEvent{
		Title:              "review",
		StartAt:            now.Add(2 * time.Minute),
		RemindBeforeMinute: 30,
	}); err != nil {
		t.Fatalf("create event: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := store.DueReminderPass(ctx, now)
			if err != nil {
				t.Errorf("pass: %v", err)
				return
			}
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != 1 {
		t.Fatalf("overlapping passes scheduled %d reminders, want 1", total)
	}
}

func TestDueReminderPassIgnoresPastAndFarEvents(t *testing.T) {
	store, _ := newTestStorage(t)
	ctx := context.Background()
	mustUser(t, store, "u1")

	now := time.Now().UTC()
	// Already started.
	if _, err := store.CreateCalendarEvent(ctx, "u1", NewCalendarEvent{
		Title: "past", StartAt: now.Add(-time.Hour), RemindBeforeMinute: 10,
	}); err != nil {
		t.Fatalf("create event: %v", err)
	}
	// Reminder window not reached yet.
	if _, err := store.CreateCalendarEvent(ctx, "u1", NewCalendarEvent{
		Title: "far", StartAt: now.Add(2 * time.Hour), RemindBeforeMinute: 10,
	}); err != nil {
		t.Fatalf("create event: %v", err)
	}

	n, err := store.DueReminderPass(ctx, now)
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no reminders, got %d", n)
	}
}

func TestGetCalendarEvent(t *testing.T) {
	store, _ := newTestStorage(t)
	ctx := context.Background()
	mustUser(t, store, "u1")

	created, err := store.CreateCalendarEvent(ctx, "u1", NewCalendarEvent{
		Title:              "standup",
		StartAt:            time.Now().UTC().Add(time.Hour),
		RemindBeforeMinute: 15,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	loaded, err := store.GetCalendarEvent(ctx, created.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if loaded.Title != "standup" || loaded.UserID != "u1" || loaded.RemindBeforeMinute != 15 {
		t.Fatalf("unexpected event: %+v", loaded)
	}

	if _, err := store.GetCalendarEvent(ctx, created.ID+100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertTarget(t *testing.T) {
	store, _ := newTestStorage(t)
	ctx := context.Background()
	mustUser(t, store, "u1")

	target, created, err := store.UpsertTarget(ctx, "u1", "private", "100", true)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !created || !target.Enabled {
		t.Fatalf("expected created enabled target, got created=%v %+v", created, target)
	}

	// Re-upserting the row that was just inserted is the case where inferring
	// creation from last_insert_rowid goes wrong.
	same, created, err := store.UpsertTarget(ctx, "u1", "private", "100", true)
	if err != nil {
		t.Fatalf("identical upsert: %v", err)
	}
	if created {
		t.Fatal("re-upsert of a fresh row must not report created")
	}
	if same.ID != target.ID {
		t.Fatalf("expected same row, got id %d and %d", same.ID, target.ID)
	}

	again, created, err := store.UpsertTarget(ctx, "u1", "private", "100", false)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created {
		t.Fatal("second upsert must not create a new row")
	}
	if again.ID != target.ID || again.Enabled {
		t.Fatalf("expected same disabled row, got %+v", again)
	}

	enabled, err := store.EnabledTargets(ctx, "u1")
	if err != nil {
		t.Fatalf("enabled targets: %v", err)
	}
	if len(enabled) != 0 {
		t.Fatalf("disabled target must not be listed, got %v", enabled)
	}
}

func TestTargetOwnership(t *testing.T) {
	store, _ := newTestStorage(t)
	ctx := context.Background()
	mustUser(t, store, "u1")
	mustUser(t, store, "u2")

	target, _, err := store.UpsertTarget(ctx, "u1", "private", "100", true)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := store.SetTargetEnabled(ctx, "u2", target.ID, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign toggle must fail with ErrNotFound, got %v", err)
	}
	if err := store.DeleteTarget(ctx, "u2", target.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign delete must fail with ErrNotFound, got %v", err)
	}
	if err := store.DeleteTarget(ctx, "u1", target.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	store, _ := newTestStorage(t)
	ctx := context.Background()

	first := mustUser(t, store, "u1")
	second := mustUser(t, store, "u1")
	if first.ID != second.ID {
		t.Fatalf("expected stable user, got %q and %q", first.ID, second.ID)
	}

	if err := store.LinkUserChat(ctx, "u1", "555"); err != nil {
		t.Fatalf("link chat: %v", err)
	}
	byChat, err := store.UserByChatID(ctx, "555")
	if err != nil {
		t.Fatalf("user by chat: %v", err)
	}
	if byChat.ID != "u1" {
		t.Fatalf("unexpected user: %+v", byChat)
	}
}

func TestCreateTaskDefaults(t *testing.T) {
	store, _ := newTestStorage(t)
	ctx := context.Background()
	mustUser(t, store, "u1")

	task, err := store.CreateTask(ctx, "u1", NewTask{Title: "buy milk"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Status != "open" {
		t.Fatalf("expected default open status, got %q", task.Status)
	}

	tasks, err := store.ListTasks(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != task.ID {
		t.Fatalf("unexpected listing: %v", tasks)
	}
}

func TestNoteTagsRoundTrip(t *testing.T) {
	store, _ := newTestStorage(t)
	ctx := context.Background()
	mustUser(t, store, "u1")

	note, err := store.CreateNote(ctx, "u1", NewNote{Title: "journal", Tags: []string{"home", "health"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	notes, err := store.ListNotes(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("expected one note, got %d", len(notes))
	}
	if len(notes[0].Tags) != 2 || notes[0].Tags[0] != "home" {
		t.Fatalf("unexpected tags: %v", notes[0].Tags)
	}
	if notes[0].ID != note.ID {
		t.Fatalf("unexpected note id: %d", notes[0].ID)
	}
}
