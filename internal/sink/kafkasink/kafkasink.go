// Package kafkasink implements an optional third sink (beyond console and
// file) that publishes each completed bulk to a Kafka topic, keyed by the
// bulk's timestamp, using a small pool of workers sharing one writer, with
// bounded retry and exponential backoff.
package kafkasink

import (
	"context"
	"errors"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"bulkd/internal/bulk"
	"bulkd/internal/logger"
	"bulkd/internal/metrics"
	"bulkd/internal/workerpool"
)

// ErrSinkClosed reports a closed sink. Emit returns no error: a bulk
// emitted after Close is dropped by the stopped pool.
var ErrSinkClosed = errors.New("kafkasink: sink is closed")

// Config configures the Kafka sink.
type Config struct {
	Brokers      []string
	Topic        string
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	WriteTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
}

// ContextKey is a context handle string. The sink does not use it: messages
// are keyed by the bulk's timestamp (see handler.Handle).
type ContextKey string

// Sink publishes bulks to Kafka using a single writer shared across worker
// goroutines.
type Sink struct {
	cfg    Config
	writer *kafka.Writer
	p      *workerpool.Pool[bulk.Bulk]
}

// New creates a Kafka sink. It does not dial brokers eagerly; the first
// publish attempt establishes the connection, matching kafka-go's Writer.
func New(cfg Config) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafkasink: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafkasink: topic is required")
	}
	cfg.setDefaults()

	s := &Sink{
		cfg: cfg,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			WriteTimeout: cfg.WriteTimeout,
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  cfg.MaxRetries + 1,
			Async:        false,
		},
	}

	s.p = workerpool.New("kafka", func(id int) workerpool.Handler[bulk.Bulk] {
		return &handler{id: id, writer: s.writer, cfg: cfg}
	})
	for i := 0; i < cfg.Workers; i++ {
		if _, err := s.p.AddWorker(); err != nil {
			return nil, fmt.Errorf("kafkasink: add worker: %w", err)
		}
	}
	metrics.WorkerPoolSize.WithLabelValues("kafka").Set(float64(cfg.Workers))
	return s, nil
}

// Emit enqueues b for asynchronous publication.
func (s *Sink) Emit(b bulk.Bulk) {
	s.p.Submit(b)
}

// StopWorkers drains and stops the publishing pool.
func (s *Sink) StopWorkers() {
	s.p.StopWorkers()
	metrics.WorkerPoolSize.WithLabelValues("kafka").Set(0)
}

// Close stops the pool and closes the underlying Kafka writer.
func (s *Sink) Close() error {
	s.StopWorkers()
	return s.writer.Close()
}

// LastException returns the oldest unread publish failure, if any.
func (s *Sink) LastException() error {
	return s.p.LastException()
}

type handler struct {
	id     int
	writer *kafka.Writer
	cfg    Config
}

func (h *handler) Handle(b bulk.Bulk) error {
	log := logger.WithComponent("kafkasink")
	start := time.Now()

	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("bulk-%d", b.Timestamp.UnixNano())),
		Value: []byte(b.Format()),
		Time:  b.Timestamp,
	}

	err := h.publishWithRetry(msg)
	duration := time.Since(start)
	metrics.KafkaPublishDuration.Observe(duration.Seconds())

	if err != nil {
		log.Error().Err(err).Int("worker", h.id).Dur("duration", duration).Msg("failed to publish bulk to kafka")
		metrics.KafkaPublishTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("kafkasink: publish: %w", err)
	}

	metrics.KafkaPublishTotal.WithLabelValues("success").Inc()
	return nil
}

func (h *handler) publishWithRetry(msg kafka.Message) error {
	var lastErr error
	backoff := h.cfg.RetryBackoff

	for attempt := 0; attempt <= h.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.KafkaPublishRetries.Inc()
			time.Sleep(backoff)
			backoff *= 2
		}

		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.WriteTimeout)
		err := h.writer.WriteMessages(ctx, msg)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed after %d attempts: %w", h.cfg.MaxRetries+1, lastErr)
}
