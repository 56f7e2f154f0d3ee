package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeReminderStore struct {
	errs  []error
	calls int
	count int
}

func (f *fakeReminderStore) DueReminderPass(_ context.Context, _ time.Time) (int, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return 0, err
		}
	}
	return f.count, nil
}

func TestRunOnceRetriesOnBusy(t *testing.T) {
	store := &fakeReminderStore{
		errs:  []error{errors.New("database is locked"), errors.New("database is locked"), nil},
		count: 2,
	}
	s := New(store, time.Minute, nil)

	n, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 reminders, got %d", n)
	}
	if store.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", store.calls)
	}
}

func TestRunOnceGivesUpAfterRetries(t *testing.T) {
	busy := errors.New("database is locked")
	store := &fakeReminderStore{errs: []error{busy, busy, busy}}
	s := New(store, time.Minute, nil)

	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if store.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", store.calls)
	}
}

func TestRunOnceDoesNotRetryOtherErrors(t *testing.T) {
	store := &fakeReminderStore{errs: []error{errors.New("disk I/O error")}}
	s := New(store, time.Minute, nil)

	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if store.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", store.calls)
	}
}
