package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/talentshire/assessment-core/internal/config"
	"github.com/talentshire/assessment-core/internal/model"
)

// ReportJob is the payload of the report generation queue.
type ReportJob struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
}

// EnrichmentJob is the payload the external AI reviewer pushes to the results queue.
type EnrichmentJob struct {
	AnswerID    uuid.UUID  `json:"answer_id"`
	AIScore     float64    `json:"ai_score"`
	AINotes     string     `json:"ai_notes"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
}

// Review converts the job into the service input.
func (j EnrichmentJob) Review() model.AIReview {
	return model.AIReview{Score: j.AIScore, Notes: j.AINotes, SubmittedAt: j.SubmittedAt}
}

// ReportQueue is the CompletionHook that defers report generation to the
// report worker through a Redis list.
type ReportQueue struct {
	rdb *redis.Client
}

// NewReportQueue creates a new ReportQueue.
func NewReportQueue(rdb *redis.Client) *ReportQueue {
	return &ReportQueue{rdb: rdb}
}

// AssignmentCompleted enqueues a report job for the assignment.
func (q *ReportQueue) AssignmentCompleted(ctx context.Context, assignmentID uuid.UUID) error {
	payload, err := json.Marshal(ReportJob{AssignmentID: assignmentID})
	if err != nil {
		return err
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.GenerateReportsQueue, payload).Err(); err != nil {
		return fmt.Errorf("enqueue report job: %w", err)
	}
	return nil
}
