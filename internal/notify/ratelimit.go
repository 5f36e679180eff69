package notify

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/dwsmith1983/tripwire/internal/metrics"
	"github.com/dwsmith1983/tripwire/pkg/types"
)

// RateLimited drops sends that arrive faster than a minimum interval.
type RateLimited struct {
	inner   Notifier
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRateLimited wraps n. A non-positive interval disables limiting and
// returns n unchanged.
func NewRateLimited(n Notifier, minInterval time.Duration, logger *slog.Logger) Notifier {
	if minInterval <= 0 {
		return n
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimited{
		inner:   n,
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
		logger:  logger,
	}
}

// Name returns the wrapped notifier's name.
func (r *RateLimited) Name() string { return r.inner.Name() }

// Unwrap returns the wrapped notifier.
func (r *RateLimited) Unwrap() Notifier { return r.inner }

// Send forwards n unless the interval has not yet elapsed since the last send.
func (r *RateLimited) Send(ctx context.Context, n types.Notification) error {
	if !r.limiter.Allow() {
		metrics.NotificationsDropped.Add(1)
		r.logger.Warn("watchdog: notifier rate limit hit, dropping notification",
			"notifier", r.inner.Name(), "subject", n.Subject)
		return nil
	}
	return r.inner.Send(ctx, n)
}
