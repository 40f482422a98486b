// Package queue is the email Delivery Queue on RabbitMQ. Jobs go to a
// durable work queue; a job whose attempt n failed waits in retry queue n,
// whose queue-level TTL dead-letters it back into the work queue.
package queue

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/skyhub/auth-service/internal/config"
	"github.com/skyhub/auth-service/internal/model"
)

// Enqueuer accepts email jobs. A nil error means the broker accepted the
// job, not that the email was delivered.
type Enqueuer interface {
	Enqueue(ctx context.Context, job model.EmailJob) (jobID string, err error)
}

// attemptHeader carries the 1-based attempt number of a redelivered job.
// Only the consumer writes it; a missing header means attempt 1.
const attemptHeader = "x-attempt"

// Backoff returns the delay before the given retry attempt:
// base * 2^(attempt-1).
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		attempt = 30
	}
	return base * time.Duration(1<<(attempt-1))
}

// queueDeclarer is the part of *amqp.Channel that declares queues.
type queueDeclarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
}

// declareTopology declares the work queue and one retry queue per attempt
// that can still be followed by another. All are durable and declaring
// them is idempotent.
func declareTopology(ch queueDeclarer, cfg config.AMQPConfig) error {
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", cfg.Queue, err)
	}
	for attempt := 1; attempt < cfg.Attempts; attempt++ {
		name := cfg.RetryQueue(attempt)
		if _, err := ch.QueueDeclare(name, true, false, false, false, retryQueueArgs(cfg, attempt)); err != nil {
			return fmt.Errorf("declare %s: %w", name, err)
		}
	}
	return nil
}

// retryQueueArgs holds jobs for Backoff(base, attempt), then dead-letters
// them into the work queue.
func retryQueueArgs(cfg config.AMQPConfig, attempt int) amqp.Table {
	return amqp.Table{
		"x-message-ttl":             Backoff(cfg.BaseDelay, attempt).Milliseconds(),
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.Queue,
	}
}

func attemptOf(h amqp.Table) int {
	switch v := h[attemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	}
	return 1
}
