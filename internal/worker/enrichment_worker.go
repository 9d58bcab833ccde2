package worker

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/talentshire/assessment-core/internal/config"
	"github.com/talentshire/assessment-core/internal/model"
	"github.com/talentshire/assessment-core/internal/service"
)

// AnswerEnricher applies AI review results to coding answers.
type AnswerEnricher interface {
	EnrichCodeAnswer(ctx context.Context, answerID uuid.UUID, review model.AIReview) (*model.Answer, error)
}

// EnrichmentWorker consumes ai_review_results_queue, fed by the external reviewer.
type EnrichmentWorker struct {
	answers AnswerEnricher
	log     zerolog.Logger
	queue   queueConsumer
}

// NewEnrichmentWorker creates a new EnrichmentWorker.
func NewEnrichmentWorker(answers AnswerEnricher, rdb *redis.Client, log zerolog.Logger) *EnrichmentWorker {
	w := &EnrichmentWorker{
		answers: answers,
		log:     log.With().Str("component", "enrichment_worker").Logger(),
	}
	w.queue = queueConsumer{
		rdb:    rdb,
		queue:  config.WorkerKey.AIReviewResultsQueue,
		handle: w.handle,
		log:    w.log,
	}
	return w
}

// Start begins the worker loop. Call in a goroutine.
func (w *EnrichmentWorker) Start(ctx context.Context) {
	w.queue.run(ctx)
}

func (w *EnrichmentWorker) handle(ctx context.Context, raw string) outcome {
	var job service.EnrichmentJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil || job.AnswerID == uuid.Nil {
		w.log.Error().Err(err).Str("payload", raw).Msg("Invalid enrichment job")
		return outcomeDropped
	}

	_, err := w.answers.EnrichCodeAnswer(ctx, job.AnswerID, job.Review())
	o := classify(err)
	switch o {
	case outcomeRetry:
		w.log.Error().Err(err).Str("answer_id", job.AnswerID.String()).Msg("Enrichment failed, requeueing")
	case outcomeDropped:
		w.log.Warn().Err(err).Str("answer_id", job.AnswerID.String()).Msg("Enrichment job dropped")
	}
	return o
}
