package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/campaign-dispatcher/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the list newsletter messages are pushed onto.
const DefaultRedisKey = "mail:newsletter"

// ErrEmpty is returned by Dequeue when no message arrived before the timeout.
var ErrEmpty = errors.New("queue empty")

// RedisQueue is a FIFO mail queue on a Redis list: producers LPUSH,
// consumers BRPOP.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue creates a queue on the given list key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisQueue{client: client, key: key}
}

// Enqueue pushes one message.
func (q *RedisQueue) Enqueue(ctx context.Context, msg *domain.NewsletterMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("push to %s: %w", q.key, err)
	}
	return nil
}

// Dequeue blocks up to timeout for the oldest message.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*domain.NewsletterMessage, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("pop from %s: %w", q.key, err)
	}
	// BRPOP replies with [key, value]
	var msg domain.NewsletterMessage
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &msg, nil
}

// Len returns the number of queued messages.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("length of %s: %w", q.key, err)
	}
	return n, nil
}
