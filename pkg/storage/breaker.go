package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerStore guards a remote ContentStore with a circuit breaker. Missing
// content is a caller error and does not count as a backend failure.
type BreakerStore struct {
	next    ContentStore
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps next with a breaker that trips once at least three
// requests were observed and 60% of them failed.
func NewBreakerStore(name string, next ContentStore) *BreakerStore {
	return &BreakerStore{
		next: next,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrContentNotFound) || errors.Is(err, context.Canceled)
			},
		}),
	}
}

func (b *BreakerStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.next.Put(ctx, key, r, size, contentType)
	})
	return err
}

func (b *BreakerStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.Open(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return result.(io.ReadCloser), nil
}

func (b *BreakerStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.next.Copy(ctx, srcKey, dstKey)
	})
	return err
}

func (b *BreakerStore) Delete(ctx context.Context, key string) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.next.Delete(ctx, key)
	})
	return err
}

// State reports the breaker state, used by readiness checks.
func (b *BreakerStore) State() gobreaker.State {
	return b.breaker.State()
}
