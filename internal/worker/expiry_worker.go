package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/talentshire/assessment-core/internal/config"
)

// OverdueExpirer expires assignments past their scheduled end.
type OverdueExpirer interface {
	ExpireOverdue(ctx context.Context, now time.Time, limit int) (int, error)
}

// ExpiryWorker periodically expires overdue assignments. With a Redis client
// the scan is guarded by a lock so only one replica runs it per interval.
type ExpiryWorker struct {
	assignments OverdueExpirer
	rdb         *redis.Client
	interval    time.Duration
	batchSize   int
	log         zerolog.Logger
	now         func() time.Time
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(assignments OverdueExpirer, rdb *redis.Client, interval time.Duration, batchSize int, log zerolog.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		assignments: assignments,
		rdb:         rdb,
		interval:    interval,
		batchSize:   batchSize,
		log:         log.With().Str("component", "expiry_worker").Logger(),
		now:         time.Now,
	}
}

// Start runs a scan every interval until ctx is cancelled. Call in a goroutine.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

// scan expires one batch. Returns the number of assignments expired.
func (w *ExpiryWorker) scan(ctx context.Context) int {
	if w.rdb != nil {
		// Held for the full interval and never released early.
		ok, err := w.rdb.SetNX(ctx, config.CacheKey.ExpiryScanLockKey(), "1", w.interval).Result()
		if err != nil {
			w.log.Error().Err(err).Msg("Failed to take expiry scan lock")
			return 0
		}
		if !ok {
			return 0
		}
	}

	n, err := w.assignments.ExpireOverdue(ctx, w.now(), w.batchSize)
	if err != nil {
		w.log.Error().Err(err).Int("expired", n).Msg("Expiry scan finished with errors")
		return n
	}
	if n > 0 {
		w.log.Info().Int("expired", n).Msg("Expired overdue assignments")
	}
	return n
}
