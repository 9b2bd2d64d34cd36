package keys

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Rotator swaps the active signing key on a timer. It does not coordinate
// with in-flight token operations; the store's atomic swap makes the race
// benign. A tick that finds the previous rotation still running is skipped,
// not queued.
type Rotator struct {
	log      *zap.Logger
	store    *Store
	interval time.Duration

	inFlight atomic.Bool

	mRotations prometheus.Counter
	mErrors    prometheus.Counter
	mDur       prometheus.Histogram
}

func NewRotator(log *zap.Logger, store *Store, interval time.Duration, reg prometheus.Registerer) *Rotator {
	f := promauto.With(reg)
	return &Rotator{
		log:      log,
		store:    store,
		interval: interval,
		mRotations: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_key_rotations_total", Help: "Completed signing key rotations",
		}),
		mErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "auth_key_rotation_errors_total", Help: "Failed signing key rotations",
		}),
		mDur: f.NewHistogram(prometheus.HistogramOpts{
			Name: "auth_key_rotation_duration_seconds", Help: "Signing key rotation duration",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (r *Rotator) tick() {
	if !r.inFlight.CompareAndSwap(false, true) {
		r.log.Warn("key rotation still in progress, skipping tick")
		return
	}
	defer r.inFlight.Store(false)

	start := time.Now()
	if err := r.store.Rotate(); err != nil {
		// Previous key stays active; retried on the next tick.
		r.mErrors.Inc()
		r.log.Warn("scheduled key rotation failed", zap.Error(err))
	} else {
		r.mRotations.Inc()
	}
	r.mDur.Observe(time.Since(start).Seconds())
}

// Run blocks until ctx is canceled. The key activated at startup is already
// fresh, so the first rotation happens one full interval in.
func (r *Rotator) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick()
		}
	}
}
