package worker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/talentshire/assessment-core/internal/metrics"
	"github.com/talentshire/assessment-core/internal/service"
)

const (
	pollTimeout  = time.Second
	retryBackoff = 5 * time.Second
)

type outcome string

const (
	outcomeDone    outcome = "done"
	outcomeDropped outcome = "dropped"
	outcomeRetry   outcome = "retry"
)

// classify decides what happens to a job whose handler returned err.
// Only persistence failures are worth another attempt.
func classify(err error) outcome {
	switch {
	case err == nil:
		return outcomeDone
	case errors.Is(err, service.ErrPersistence):
		return outcomeRetry
	default:
		return outcomeDropped
	}
}

// queueConsumer is the BLPop loop shared by the queue-driven workers.
type queueConsumer struct {
	rdb    *redis.Client
	queue  string
	handle func(ctx context.Context, raw string) outcome
	log    zerolog.Logger
}

func (q *queueConsumer) run(ctx context.Context) {
	q.log.Info().Str("queue", q.queue).Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			q.log.Info().Msg("Worker stopping...")
			q.drain(context.Background())
			q.log.Info().Msg("Worker stopped")
			return
		default:
			q.processNext(ctx)
		}
	}
}

func (q *queueConsumer) processNext(ctx context.Context) {
	result, err := q.rdb.BLPop(ctx, pollTimeout, q.queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			q.log.Error().Err(err).Msg("BLPop error")
			sleepCtx(ctx, time.Second)
		}
		return
	}
	if len(result) < 2 {
		return
	}

	if q.record(q.handle(ctx, result[1])) == outcomeRetry {
		q.rdb.RPush(context.WithoutCancel(ctx), q.queue, result[1])
		sleepCtx(ctx, retryBackoff)
	}
}

// drain processes what is left in the queue without blocking. The first job
// that needs a retry goes back and stops the drain.
func (q *queueConsumer) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := q.rdb.LPop(ctx, q.queue).Result()
		if err != nil {
			break
		}
		if q.record(q.handle(ctx, raw)) == outcomeRetry {
			q.rdb.RPush(ctx, q.queue, raw)
			break
		}
		drained++
	}

	if drained > 0 {
		q.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}

func (q *queueConsumer) record(o outcome) outcome {
	metrics.QueueJobs.WithLabelValues(q.queue, string(o)).Inc()
	return o
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
