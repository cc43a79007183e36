package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

// Client enqueues lead notifications onto a single named queue.
type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(redisOpt asynq.RedisConnOpt, queueName string) *Client {
	return &Client{
		client: asynq.NewClient(redisOpt),
		queue:  queueName,
	}
}

// EnqueueLeadNotification queues the notification for payload.LeadID. A lead
// that already has a task fails with asynq.ErrTaskIDConflict.
func (c *Client) EnqueueLeadNotification(ctx context.Context, payload LeadNotificationPayload) (*asynq.TaskInfo, error) {
	task, err := NewLeadNotifyTask(payload)
	if err != nil {
		return nil, err
	}
	info, err := c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict):
		return nil, fmt.Errorf("lead %s is already queued: %w", payload.LeadID, err)
	case err != nil:
		return nil, fmt.Errorf("enqueue lead notification: %w", err)
	}
	return info, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
