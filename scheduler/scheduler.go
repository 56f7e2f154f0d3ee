package scheduler

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// ReminderStore runs one transactional scan-and-mark pass over due reminders.
type ReminderStore interface {
	DueReminderPass(ctx context.Context, now time.Time) (int, error)
}

// Scheduler ticks the due-reminder pass. Exactly-once marking lives in the
// store's transaction; overlapping passes from several instances are safe.
type Scheduler struct {
	store    ReminderStore
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time
}

func New(store ReminderStore, interval time.Duration, logger *log.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Scheduler{store: store, interval: interval, logger: logger, now: time.Now}
}

// RunOnce executes one pass. Lock contention with a concurrent pass is
// expected and retried a few times before giving up until the next tick.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		n, err := s.store.DueReminderPass(ctx, s.now().UTC())
		if err == nil {
			return n, nil
		}
		lastErr = err
		if !isBusy(err) {
			return 0, err
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		}
	}
	return 0, lastErr
}

// Run ticks until ctx is cancelled. Errors are logged, never fatal.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		n, err := s.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.WithError(err).Error("reminder pass failed")
		} else if n > 0 {
			s.logger.WithField("reminders", n).Info("reminders scheduled")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
