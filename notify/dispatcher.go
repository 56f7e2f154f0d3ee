package notify

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"lifelog-api/domain"
	"lifelog-api/storage"
)

// Dispatcher fans a ledger entry out to the owner's enabled chat targets,
// at most once per entry. The persisted sent marker is the only coordination
// point; a redelivered dispatch task for an already-sent entry is a no-op.
type Dispatcher struct {
	store  Store
	sender Sender
	loc    *time.Location
	logger *log.Logger
}

// NewDispatcher wires a dispatcher. loc is the fallback timezone for users
// without one of their own.
func NewDispatcher(store Store, sender Sender, loc *time.Location, logger *log.Logger) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Dispatcher{store: store, sender: sender, loc: loc, logger: logger}
}

// Dispatch processes one dispatch task. The entry is reloaded by id so the
// decision runs against current state, not the state at enqueue time. A
// missing entry is not an error: the enqueuing transaction may have rolled
// back after the message left the process.
func (d *Dispatcher) Dispatch(ctx context.Context, entryID int64) error {
	entry, err := d.store.GetLedgerEntry(ctx, entryID)
	if errors.Is(err, storage.ErrNotFound) {
		d.logger.WithField("event_log_id", entryID).Info("entry gone, skipping dispatch")
		return nil
	}
	if err != nil {
		return err
	}
	if entry.SentAt != nil {
		return nil
	}

	targets, err := d.store.EnabledTargets(ctx, entry.UserID)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		// Nothing to deliver to. Leave the entry unsent so a target added
		// later can still receive it on redelivery.
		return nil
	}

	loc := d.store.UserLocation(ctx, entry.UserID, d.loc)
	text := renderMessage(entry, loc)
	origin, _ := entry.Payload[domain.OriginChatKey].(string)

	sent := 0
	skipped := 0
	for _, target := range targets {
		if origin != "" && target.ChatID == origin {
			skipped++
			continue
		}
		if err := d.sender.SendMessage(ctx, target.ChatID, text); err != nil {
			d.logger.WithError(err).WithFields(log.Fields{
				"event_log_id": entry.ID,
				"chat_id":      target.ChatID,
			}).Warn("notification send failed")
			continue
		}
		sent++
	}

	// Mark after at least one delivery, or when the only target was the
	// origin chat and there is nothing left to deliver.
	if sent > 0 || (skipped == len(targets) && len(targets) == 1) {
		marked, err := d.store.MarkLedgerSent(ctx, entry.ID, time.Now().UTC())
		if err != nil {
			return err
		}
		if marked {
			d.logger.WithFields(log.Fields{
				"event_log_id": entry.ID,
				"sent":         sent,
				"skipped":      skipped,
			}).Info("notification dispatched")
		}
	}
	return nil
}
