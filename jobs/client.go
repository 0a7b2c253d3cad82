package jobs

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/tradebook/internal/sales/conversion"
)

const defaultMaxRetry = 3

// Client enqueues tradebook tasks.
type Client struct {
	client *asynq.Client
}

// NewClient connects a client to the queue's Redis.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueTotalsRefresh refreshes one document, or every document of kind
// when documentID is empty.
func (c *Client) EnqueueTotalsRefresh(ctx context.Context, kind conversion.DocumentKind, documentID string) (*asynq.TaskInfo, error) {
	task, err := NewTotalsRefreshTask(string(kind), documentID)
	if err != nil {
		return nil, err
	}
	return c.enqueue(ctx, task)
}

// EnqueueSettlementSweep runs a settlement sweep now.
func (c *Client) EnqueueSettlementSweep(ctx context.Context) (*asynq.TaskInfo, error) {
	task, err := NewSettlementSweepTask(time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task) (*asynq.TaskInfo, error) {
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(defaultMaxRetry))
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
