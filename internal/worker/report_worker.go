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

// ReportGenerator builds the report of a completed assignment.
type ReportGenerator interface {
	GenerateReport(ctx context.Context, assignmentID uuid.UUID) (*model.Report, error)
}

// ReportWorker consumes generate_reports_queue and builds reports.
type ReportWorker struct {
	reports ReportGenerator
	log     zerolog.Logger
	queue   queueConsumer
}

// NewReportWorker creates a new ReportWorker.
func NewReportWorker(reports ReportGenerator, rdb *redis.Client, log zerolog.Logger) *ReportWorker {
	w := &ReportWorker{
		reports: reports,
		log:     log.With().Str("component", "report_worker").Logger(),
	}
	w.queue = queueConsumer{
		rdb:    rdb,
		queue:  config.WorkerKey.GenerateReportsQueue,
		handle: w.handle,
		log:    w.log,
	}
	return w
}

// Start begins the worker loop. Call in a goroutine.
func (w *ReportWorker) Start(ctx context.Context) {
	w.queue.run(ctx)
}

func (w *ReportWorker) handle(ctx context.Context, raw string) outcome {
	var job service.ReportJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil || job.AssignmentID == uuid.Nil {
		w.log.Error().Err(err).Str("payload", raw).Msg("Invalid report job")
		return outcomeDropped
	}

	r, err := w.reports.GenerateReport(ctx, job.AssignmentID)
	o := classify(err)
	switch o {
	case outcomeRetry:
		w.log.Error().Err(err).Str("assignment_id", job.AssignmentID.String()).Msg("Report generation failed, requeueing")
	case outcomeDropped:
		w.log.Warn().Err(err).Str("assignment_id", job.AssignmentID.String()).Msg("Report job dropped")
	default:
		w.log.Debug().Str("assignment_id", job.AssignmentID.String()).Str("report_id", r.ID.String()).Msg("Report job done")
	}
	return o
}
