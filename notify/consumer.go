package notify

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"lifelog-api/storage"
)

// Consume runs the dispatch task loop until ctx is cancelled. Messages are
// deleted after a successful (or permanently skippable) dispatch; a failed
// dispatch leaves the message to reappear after the visibility timeout.
func Consume(ctx context.Context, queue *azqueue.QueueClient, d *Dispatcher, logger *log.Logger) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		resp, err := queue.DequeueMessage(ctx, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.WithError(err).Warn("dequeue failed")
			sleep(ctx, time.Second)
			continue
		}
		if len(resp.Messages) == 0 {
			sleep(ctx, time.Second)
			continue
		}
		msg := resp.Messages[0]

		var task storage.NotifyMessage
		if err := sonic.Unmarshal([]byte(*msg.MessageText), &task); err != nil {
			// Poison message, drop it.
			logger.WithError(err).Warn("undecodable dispatch task")
			queue.DeleteMessage(ctx, *msg.MessageID, *msg.PopReceipt, nil)
			continue
		}

		if err := d.Dispatch(ctx, task.EventLogID); err != nil {
			logger.WithError(err).WithField("event_log_id", task.EventLogID).Error("dispatch failed")
			continue
		}
		if _, err := queue.DeleteMessage(ctx, *msg.MessageID, *msg.PopReceipt, nil); err != nil {
			logger.WithError(err).Warn("delete dispatched message failed")
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
