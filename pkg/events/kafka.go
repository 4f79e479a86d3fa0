package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-drive-api/pkg/config"
)

// ErrPublisherClosed is returned after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// MessageWriter is the subset of *kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes activity events keyed by drive id, retrying with
// linear backoff behind a circuit breaker.
type KafkaPublisher struct {
	writer     MessageWriter
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// New returns a Kafka publisher when events are enabled, a NopPublisher otherwise.
func New(cfg config.EventsConfig, logger *zap.Logger) Publisher {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		return NopPublisher{}
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.ActivityTopic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  1,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	return NewKafkaPublisher(writer, cfg.MaxRetries, logger)
}

// NewKafkaPublisher wraps an existing writer.
func NewKafkaPublisher(writer MessageWriter, maxRetries int, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &KafkaPublisher{
		writer:     writer,
		maxRetries: maxRetries,
		backoff:    time.Second,
		logger:     logger,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "kafka-activity",
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
	}
}

// PublishActivity marshals and writes the event.
func (p *KafkaPublisher) PublishActivity(ctx context.Context, event ActivityEvent) error {
	if p.isClosed() {
		return ErrPublisherClosed
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal activity event: %w", err)
	}
	msg := kafka.Message{Key: []byte(event.DriveID), Value: data, Time: event.OccurredAt}

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.writeWithRetry(ctx, msg)
	})
	return err
}

func (p *KafkaPublisher) writeWithRetry(ctx context.Context, msg kafka.Message) error {
	var lastErr error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		if p.isClosed() {
			return ErrPublisherClosed
		}
		err := p.writer.WriteMessages(ctx, msg)
		if err == nil {
			return nil
		}
		lastErr = err
		p.logger.Warn("publish activity event failed",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", p.maxRetries),
			zap.Error(lastErr),
		)
		if attempt < p.maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt+1) * p.backoff):
			}
		}
	}
	return fmt.Errorf("publish after %d attempts: %w", p.maxRetries, lastErr)
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	return p.writer.Close()
}

func (p *KafkaPublisher) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}
