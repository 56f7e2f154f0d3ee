package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

// NotifyMessage is the payload of one dispatch task. It carries only the
// ledger entry id; the dispatcher reloads current state before acting.
type NotifyMessage struct {
	EventLogID int64 `json:"event_log_id"`
}

// NotifyQueue wraps the azure queue client used for dispatch tasks.
type NotifyQueue struct {
	client *azqueue.QueueClient
}

// NewNotifyQueue creates a queue client from the given connection string.
func NewNotifyQueue(connStr, queueName string) (*NotifyQueue, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	client, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &opts)
	if err != nil {
		return nil, err
	}
	return &NotifyQueue{client: client}, nil
}

// EnsureCreated creates the queue if it does not exist yet.
func (q *NotifyQueue) EnsureCreated(ctx context.Context) error {
	_, err := q.client.Create(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == "QueueAlreadyExists" {
			return nil
		}
		return err
	}
	return nil
}

// Enqueue sends one message to the queue.
func (q *NotifyQueue) Enqueue(ctx context.Context, text string) error {
	_, err := q.client.EnqueueMessage(ctx, text, nil)
	return err
}

// Client exposes the underlying queue client for the consumer loop.
func (q *NotifyQueue) Client() *azqueue.QueueClient {
	return q.client
}
