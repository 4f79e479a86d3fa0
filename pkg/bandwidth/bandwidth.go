// Package bandwidth meters how many bytes non-owners download from a drive owner.
package bandwidth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/sma-drive-api/pkg/config"
)

// Decision is the outcome of a CheckAndConsume call. ResetTime is set when
// the request was refused.
type Decision struct {
	Allowed   bool
	ResetTime time.Time
}

// Limiter charges downloads against an owner's bandwidth allowance.
type Limiter interface {
	CheckAndConsume(ctx context.Context, ownerID string, bytes int64) (Decision, error)
}

// Unlimited allows every request.
type Unlimited struct{}

// CheckAndConsume always allows.
func (Unlimited) CheckAndConsume(context.Context, string, int64) (Decision, error) {
	return Decision{Allowed: true}, nil
}

// New selects the limiter for the configuration: a shared Redis window when a
// client is available, a per-process token bucket otherwise.
func New(cfg config.BandwidthConfig, client *redis.Client) Limiter {
	if cfg.BytesPerWindow <= 0 || cfg.Window <= 0 {
		return Unlimited{}
	}
	if client != nil {
		return NewRedisLimiter(NewRedisWindowStore(client), cfg.BytesPerWindow, cfg.Window)
	}
	return NewMemoryLimiter(cfg.BytesPerWindow, cfg.Window)
}
