package token

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	domain "github.com/gatherly/gatherly/internal/domain/token"
)

// Cleaner deletes revoked and expired refresh token rows on a timer.
// Best-effort: a failed sweep is logged and retried next interval.
type Cleaner struct {
	log      *zap.Logger
	repo     domain.Repo
	interval time.Duration

	mPurged prometheus.Counter
	mErrors prometheus.Counter
}

func NewCleaner(log *zap.Logger, repo domain.Repo, interval time.Duration, reg prometheus.Registerer) *Cleaner {
	f := promauto.With(reg)
	return &Cleaner{
		log:      log,
		repo:     repo,
		interval: interval,
		mPurged: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_refresh_tokens_purged_total", Help: "Refresh token rows deleted by cleanup",
		}),
		mErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_cleanup_errors_total", Help: "Errors in refresh token cleanup",
		}),
	}
}

func (c *Cleaner) tick(ctx context.Context) {
	n, err := c.repo.PurgeRevokedOrExpired(ctx)
	if err != nil {
		c.mErrors.Inc()
		c.log.Warn("refresh token cleanup failed", zap.Error(err))
		return
	}
	if n > 0 {
		c.mPurged.Add(float64(n))
		c.log.Info("purged refresh tokens", zap.Int64("rows", n))
	}
}

func (c *Cleaner) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}
