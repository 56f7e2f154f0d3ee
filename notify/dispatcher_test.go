package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"lifelog-api/domain"
	"lifelog-api/storage"
)

type fakeStore struct {
	entries map[int64]domain.LedgerEntry
	targets []domain.NotificationTarget
	marked  map[int64]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entries: map[int64]domain.LedgerEntry{},
		marked:  map[int64]time.Time{},
	}
}

func (f *fakeStore) GetLedgerEntry(_ context.Context, id int64) (domain.LedgerEntry, error) {
	e, ok := f.entries[id]
	if !ok {
		return domain.LedgerEntry{}, storage.ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) EnabledTargets(_ context.Context, _ string) ([]domain.NotificationTarget, error) {
	return f.targets, nil
}

func (f *fakeStore) MarkLedgerSent(_ context.Context, id int64, at time.Time) (bool, error) {
	if _, done := f.marked[id]; done {
		return false, nil
	}
	f.marked[id] = at
	return true, nil
}

func (f *fakeStore) UserLocation(_ context.Context, _ string, fallback *time.Location) *time.Location {
	return fallback
}

type fakeSender struct {
	sent    []string
	failFor map[string]bool
}

func (f *fakeSender) SendMessage(_ context.Context, chatID, _ string) error {
	if f.failFor[chatID] {
		return errors.New("send failed")
	}
	f.sent = append(f.sent, chatID)
	return nil
}

func entryWithOrigin(id int64, origin string) domain.LedgerEntry {
	payload := domain.Payload{"title": "buy milk"}
	if origin != "" {
		payload[domain.OriginChatKey] = origin
	}
	return domain.LedgerEntry{ID: id, UserID: "u1", Type: "task.created", EntityType: "task", EntityID: 1, Payload: payload}
}

func target(chatID string) domain.NotificationTarget {
	return domain.NotificationTarget{UserID: "u1", ChatID: chatID, Type: "private", Enabled: true}
}

func TestDispatchFansOutAndMarks(t *testing.T) {
	store := newFakeStore()
	store.entries[1] = entryWithOrigin(1, "")
	store.targets = []domain.NotificationTarget{target("100"), target("200")}
	sender := &fakeSender{}

	d := NewDispatcher(store, sender, time.UTC, nil)
	if err := d.Dispatch(context.Background(), 1); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(sender.sent))
	}
	if _, ok := store.marked[1]; !ok {
		t.Fatal("entry not marked sent")
	}
}

func TestDispatchSkipsOriginChat(t *testing.T) {
	store := newFakeStore()
	store.entries[1] = entryWithOrigin(1, "100")
	store.targets = []domain.NotificationTarget{target("100"), target("200")}
	sender := &fakeSender{}

	d := NewDispatcher(store, sender, time.UTC, nil)
	if err := d.Dispatch(context.Background(), 1); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "200" {
		t.Fatalf("expected one send to 200, got %v", sender.sent)
	}
	if _, ok := store.marked[1]; !ok {
		t.Fatal("entry not marked sent")
	}
}

func TestDispatchMarksWhenOnlyTargetIsOrigin(t *testing.T) {
	store := newFakeStore()
	store.entries[1] = entryWithOrigin(1, "100")
	store.targets = []domain.NotificationTarget{target("100")}
	sender := &fakeSender{}

	d := NewDispatcher(store, sender, time.UTC, nil)
	if err := d.Dispatch(context.Background(), 1); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no sends, got %v", sender.sent)
	}
	if _, ok := store.marked[1]; !ok {
		t.Fatal("all-origin entry should still be marked sent")
	}
}

func TestDispatchAlreadySentIsNoop(t *testing.T) {
	store := newFakeStore()
	sentAt := time.Now()
	entry := entryWithOrigin(1, "")
	entry.SentAt = &sentAt
	store.entries[1] = entry
	store.targets = []domain.NotificationTarget{target("100")}
	sender := &fakeSender{}

	d := NewDispatcher(store, sender, time.UTC, nil)
	if err := d.Dispatch(context.Background(), 1); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no sends for already-sent entry, got %v", sender.sent)
	}
}

func TestDispatchMissingEntryIsNoop(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	d := NewDispatcher(store, sender, time.UTC, nil)
	if err := d.Dispatch(context.Background(), 99); err != nil {
		t.Fatalf("missing entry should not error: %v", err)
	}
}

func TestDispatchNoTargetsLeavesUnsent(t *testing.T) {
	store := newFakeStore()
	store.entries[1] = entryWithOrigin(1, "")
	sender := &fakeSender{}

	d := NewDispatcher(store, sender, time.UTC, nil)
	if err := d.Dispatch(context.Background(), 1); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, ok := store.marked[1]; ok {
		t.Fatal("entry with no targets must stay unsent")
	}
}

func TestDispatchAllSendsFailLeavesUnsent(t *testing.T) {
	store := newFakeStore()
	store.entries[1] = entryWithOrigin(1, "")
	store.targets = []domain.NotificationTarget{target("100"), target("200")}
	sender := &fakeSender{failFor: map[string]bool{"100": true, "200": true}}

	d := NewDispatcher(store, sender, time.UTC, nil)
	if err := d.Dispatch(context.Background(), 1); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, ok := store.marked[1]; ok {
		t.Fatal("entry must stay unsent when every send fails")
	}
}

func TestDispatchPartialFailureStillMarks(t *testing.T) {
	store := newFakeStore()
	store.entries[1] = entryWithOrigin(1, "")
	store.targets = []domain.NotificationTarget{target("100"), target("200")}
	sender := &fakeSender{failFor: map[string]bool{"100": true}}

	d := NewDispatcher(store, sender, time.UTC, nil)
	if err := d.Dispatch(context.Background(), 1); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "200" {
		t.Fatalf("expected one successful send, got %v", sender.sent)
	}
	if _, ok := store.marked[1]; !ok {
		t.Fatal("entry with one successful send must be marked")
	}
}
