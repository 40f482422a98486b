package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/skyhub/auth-service/internal/config"
	"github.com/skyhub/auth-service/internal/model"
)

// confirmChannel is the part of *amqp.Channel the publisher needs.
type confirmChannel interface {
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
	IsClosed() bool
	Close() error
}

// Publisher publishes email jobs as persistent JSON. It keeps one
// connection and channel and redials lazily after a failure.
type Publisher struct {
	cfg config.AMQPConfig
	log logrus.FieldLogger

	// mu guards the connection and serializes publishes on the channel.
	// Confirms are awaited outside it.
	mu   sync.Mutex
	conn *amqp.Connection
	ch   confirmChannel
}

func NewPublisher(cfg config.AMQPConfig, log logrus.FieldLogger) *Publisher {
	return &Publisher{cfg: cfg, log: log}
}

// Enqueue publishes job to the work queue and waits for the broker's
// confirm. The job gets a uuid when it has no ID.
func (p *Publisher) Enqueue(ctx context.Context, job model.EmailJob) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal email job: %w", err)
	}

	conf, err := p.publish(ctx, job.ID, body)
	if err != nil {
		return "", err
	}
	if conf != nil {
		ok, err := conf.WaitContext(ctx)
		if err != nil {
			return "", fmt.Errorf("await confirm: %w", err)
		}
		if !ok {
			return "", errors.New("broker rejected email job")
		}
	}
	return job.ID, nil
}

func (p *Publisher) publish(ctx context.Context, id string, body []byte) (*amqp.DeferredConfirmation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return nil, err
	}
	conf, err := ch.PublishWithDeferredConfirmWithContext(ctx,
		"",          // default exchange
		p.cfg.Queue, // routing key = queue name
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    id,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	if err != nil {
		p.reset()
		p.log.WithError(err).WithField("job_id", id).Error("publish email job failed")
		return nil, fmt.Errorf("publish email job: %w", err)
	}
	return conf, nil
}

// channel returns the live channel, dialing and declaring the topology
// when needed. Callers hold p.mu.
func (p *Publisher) channel() (confirmChannel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := amqp.Dial(p.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareTopology(ch, p.cfg); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
