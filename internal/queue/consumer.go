package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/skyhub/auth-service/internal/config"
	"github.com/skyhub/auth-service/internal/mail"
	"github.com/skyhub/auth-service/internal/metrics"
	"github.com/skyhub/auth-service/internal/model"
)

const (
	maxDialBackoff = 30 * time.Second
	sendTimeout    = 30 * time.Second
)

// retryPublisher is the part of *amqp.Channel the consumer needs to park
// a job in the retry queue.
type retryPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Consumer drains the work queue and delivers each job through a
// mail.Sender. Failed jobs are retried with exponential backoff up to
// cfg.Attempts, then dropped.
type Consumer struct {
	cfg    config.AMQPConfig
	sender mail.Sender
	log    logrus.FieldLogger
	m      *metrics.Metrics
}

func NewConsumer(cfg config.AMQPConfig, sender mail.Sender, log logrus.FieldLogger) *Consumer {
	return &Consumer{cfg: cfg, sender: sender, log: log}
}

// WithMetrics records delivery outcomes on m.
func (c *Consumer) WithMetrics(m *metrics.Metrics) *Consumer {
	c.m = m
	return c
}

// Run connects and consumes until ctx is cancelled, redialing with a capped
// exponential backoff whenever the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.cfg.URL)
		if err != nil {
			c.log.WithError(err).WithField("retry_in", backoff.String()).Warn("email consumer: dial failed")
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < maxDialBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.log.WithError(err).Warn("email consumer: consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		c.log.WithError(err).Warn("email consumer: set QoS failed")
	}
	if err := declareTopology(ch, c.cfg); err != nil {
		return err
	}
	msgs, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.WithField("queue", c.cfg.Queue).Info("email consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handle(ctx, ch, d)
		}
	}
}

// handle processes one delivery. The original delivery is always settled:
// acked on success, retry or exhaustion, nacked without requeue when the
// body is unreadable, nacked with requeue only when parking it failed.
func (c *Consumer) handle(ctx context.Context, pub retryPublisher, d amqp.Delivery) {
	attempt := attemptOf(d.Headers)
	log := c.log.WithFields(logrus.Fields{"job_id": d.MessageId, "attempt": attempt})

	var job model.EmailJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		c.m.EmailJob("dropped")
		log.WithError(err).Error("email job unreadable, dropping")
		_ = d.Nack(false, false)
		return
	}
	if job.ID != "" {
		log = log.WithField("job_id", job.ID)
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	err := c.sender.Send(sendCtx, job)
	cancel()
	if err == nil {
		c.m.EmailJob("delivered")
		log.Info("email delivered")
		_ = d.Ack(false)
		return
	}

	if attempt >= c.cfg.Attempts {
		c.m.EmailJob("dropped")
		log.WithError(err).Error("email delivery failed, attempts exhausted, dropping job")
		_ = d.Ack(false)
		return
	}

	delay := Backoff(c.cfg.BaseDelay, attempt)
	retry := amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Timestamp:    time.Now().UTC(),
		Headers:      amqp.Table{attemptHeader: int32(attempt + 1)},
		Body:         d.Body,
	}
	if perr := pub.PublishWithContext(ctx, "", c.cfg.RetryQueue(attempt), false, false, retry); perr != nil {
		log.WithError(perr).Error("park email job for retry failed, requeueing")
		_ = d.Nack(false, true)
		return
	}
	c.m.EmailJob("retried")
	log.WithError(err).WithField("retry_in", delay.String()).Warn("email delivery failed, retry scheduled")
	_ = d.Ack(false)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
