package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ignite/campaign-dispatcher/internal/domain"
	"github.com/streadway/amqp"
)

// DefaultAMQPQueue is the durable queue newsletter messages are published to.
const DefaultAMQPQueue = "newsletter_sends"

// amqpChannel is the subset of *amqp.Channel the queue uses.
type amqpChannel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	QueueInspect(name string) (amqp.Queue, error)
	Close() error
}

// AMQPQueue publishes newsletter messages to a durable queue through the
// default exchange.
type AMQPQueue struct {
	mu    sync.Mutex // amqp channels are not safe for concurrent publish
	conn  *amqp.Connection
	ch    amqpChannel
	queue string
}

// DialAMQP connects to the broker and declares the durable queue.
func DialAMQP(url, queue string) (*AMQPQueue, error) {
	if queue == "" {
		queue = DefaultAMQPQueue
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &AMQPQueue{conn: conn, ch: ch, queue: queue}, nil
}

func newAMQPQueue(ch amqpChannel, queue string) *AMQPQueue {
	return &AMQPQueue{ch: ch, queue: queue}
}

// Enqueue publishes one persistent message. The broker client has no
// context support, so ctx is only checked before publishing.
func (q *AMQPQueue) Enqueue(ctx context.Context, msg *domain.NewsletterMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	err = q.ch.Publish("", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.QueuedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", q.queue, err)
	}
	return nil
}

// Len returns the number of ready messages reported by the broker.
func (q *AMQPQueue) Len(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	info, err := q.ch.QueueInspect(q.queue)
	if err != nil {
		return 0, fmt.Errorf("inspect %s: %w", q.queue, err)
	}
	return int64(info.Messages), nil
}

// Close shuts the channel and the connection.
func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	err := q.ch.Close()
	if q.conn != nil {
		if cerr := q.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
