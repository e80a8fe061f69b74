package notification

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"
)

// Dispatcher fans a notification out to every configured channel.
// A shared limiter keeps bulk job runs from flooding the downstream providers.
type Dispatcher struct {
	channels    []Notifier
	limiter     *rate.Limiter
	concurrency int
	logger      *logger.Logger
}

// NewDispatcher creates a dispatcher. ratePerSecond <= 0 disables limiting.
func NewDispatcher(logger *logger.Logger, ratePerSecond float64, concurrency int, channels ...Notifier) *Dispatcher {
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	burst := max(int(ratePerSecond), 1)
	return &Dispatcher{
		channels:    channels,
		limiter:     rate.NewLimiter(limit, burst),
		concurrency: max(concurrency, 1),
		logger:      logger,
	}
}

// Notify delivers n on every channel and joins the channel errors
func (d *Dispatcher) Notify(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = types.GenerateUUID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	p := pool.New().WithErrors().WithMaxGoroutines(d.concurrency)
	for _, ch := range d.channels {
		p.Go(func() error {
			return ch.Notify(ctx, n)
		})
	}

	if err := p.Wait(); err != nil {
		d.logger.Warnw("notification delivery failed on some channels",
			"notification_id", n.ID,
			"kind", n.Kind,
			"user_id", n.UserID,
			"error", err,
		)
		return errors.Wrap(err, "notification delivery")
	}
	return nil
}
