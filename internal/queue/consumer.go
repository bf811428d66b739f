package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/submission"
)

// EventHandler applies one submission event.
type EventHandler func(ctx context.Context, e *submission.Event) error

// Consumer runs workers that feed submission events to a handler.
type Consumer struct {
	conn       *Connection
	handler    EventHandler
	workers    int
	prefetch   int
	timeout    time.Duration
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Workers  int           // concurrent workers
	Prefetch int           // unacked messages per channel
	Timeout  time.Duration // per event
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Workers:  2,
		Prefetch: 10,
		Timeout:  5 * time.Second,
	}
}

func NewConsumer(conn *Connection, handler EventHandler, cfg ConsumerConfig) *Consumer {
	def := DefaultConsumerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = def.Prefetch
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Consumer{
		conn:     conn,
		handler:  handler,
		workers:  cfg.Workers,
		prefetch: cfg.Prefetch,
		timeout:  cfg.Timeout,
	}
}

// Start begins consuming. Workers stop when ctx is done or Stop is called.
func (c *Consumer) Start(ctx context.Context) error {
	ch := c.conn.Channel()
	if ch == nil {
		return errors.New("consumer: no open channel")
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		SubmissionQueueName,
		"",    // consumer tag (auto-generated)
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	ctx, c.cancelFunc = context.WithCancel(ctx)
	slog.Info("starting submission consumer", "workers", c.workers, "prefetch", c.prefetch)

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, msgs)
	}
	return nil
}

func (c *Consumer) worker(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				slog.Info("message channel closed", "worker_id", id)
				return
			}
			c.processMessage(ctx, id, msg)
		}
	}
}

// processMessage acks on success, drops malformed messages and requeues a
// failed event once before giving up on it.
func (c *Consumer) processMessage(ctx context.Context, workerID int, msg amqp.Delivery) {
	var event submission.Event
	if err := json.Unmarshal(msg.Body, &event); err != nil || event.ExerciseID == "" {
		slog.Error("dropping malformed submission event",
			"worker_id", workerID,
			"error", err)
		_ = msg.Reject(false)
		return
	}

	evCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.handler(evCtx, &event); err != nil {
		requeue := !msg.Redelivered
		slog.Warn("submission event failed",
			"worker_id", workerID,
			"submission_id", event.SubmissionID,
			"requeue", requeue,
			"error", err)
		_ = msg.Nack(false, requeue)
		return
	}

	if err := msg.Ack(false); err != nil {
		slog.Error("failed to ack message",
			"worker_id", workerID,
			"submission_id", event.SubmissionID,
			"error", err)
	}
}

// Stop cancels the workers and waits for them.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
	slog.Info("consumer stopped")
}

// Run starts the consumer and blocks until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	c.Stop()
	return nil
}
