package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/talentshire/assessment-core/internal/model"
)

const reportColumns = `id, assignment_id, test_id, candidate_id, mcq_obtained, mcq_max,
	coding_obtained, coding_max, total_obtained, total_max, percentage, grade, duration_seconds,
	mcq_correct, mcq_wrong, mcq_skipped, coding_passed, coding_failed, coding_pending_review, generated_at`

// ReportRepository handles report data access.
type ReportRepository struct {
	pgStore
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pgStore{pool: pool}}
}

func scanReport(row pgx.Row) (*model.Report, error) {
	rp := &model.Report{}
	err := row.Scan(
		&rp.ID, &rp.AssignmentID, &rp.TestID, &rp.CandidateID, &rp.MCQ.Obtained, &rp.MCQ.Max,
		&rp.Coding.Obtained, &rp.Coding.Max, &rp.TotalObtained, &rp.TotalMax, &rp.Percentage, &rp.Grade,
		&rp.DurationSeconds, &rp.MCQCorrect, &rp.MCQWrong, &rp.MCQSkipped,
		&rp.CodingPassed, &rp.CodingFailed, &rp.CodingPendingReview, &rp.GeneratedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return rp, nil
}

// Upsert writes the report for its assignment. Regeneration keeps the original report id.
func (r *ReportRepository) Upsert(ctx context.Context, tx pgx.Tx, rp *model.Report) error {
	return mapErr(r.db(tx).QueryRow(ctx,
		`INSERT INTO reports (assignment_id, test_id, candidate_id, mcq_obtained, mcq_max,
		                      coding_obtained, coding_max, total_obtained, total_max, percentage, grade,
		                      duration_seconds, mcq_correct, mcq_wrong, mcq_skipped,
		                      coding_passed, coding_failed, coding_pending_review, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		 ON CONFLICT (assignment_id) DO UPDATE SET
		     mcq_obtained = EXCLUDED.mcq_obtained,
		     mcq_max = EXCLUDED.mcq_max,
		     coding_obtained = EXCLUDED.coding_obtained,
		     coding_max = EXCLUDED.coding_max,
		     total_obtained = EXCLUDED.total_obtained,
		     total_max = EXCLUDED.total_max,
		     percentage = EXCLUDED.percentage,
		     grade = EXCLUDED.grade,
		     duration_seconds = EXCLUDED.duration_seconds,
		     mcq_correct = EXCLUDED.mcq_correct,
		     mcq_wrong = EXCLUDED.mcq_wrong,
		     mcq_skipped = EXCLUDED.mcq_skipped,
		     coding_passed = EXCLUDED.coding_passed,
		     coding_failed = EXCLUDED.coding_failed,
		     coding_pending_review = EXCLUDED.coding_pending_review,
		     generated_at = EXCLUDED.generated_at
		 RETURNING id`,
		rp.AssignmentID, rp.TestID, rp.CandidateID, rp.MCQ.Obtained, rp.MCQ.Max,
		rp.Coding.Obtained, rp.Coding.Max, rp.TotalObtained, rp.TotalMax, rp.Percentage, rp.Grade,
		rp.DurationSeconds, rp.MCQCorrect, rp.MCQWrong, rp.MCQSkipped,
		rp.CodingPassed, rp.CodingFailed, rp.CodingPendingReview, rp.GeneratedAt,
	).Scan(&rp.ID))
}

// GetByID retrieves a report by ID.
func (r *ReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Report, error) {
	return scanReport(r.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id))
}

// GetByAssignment retrieves the report of an assignment.
func (r *ReportRepository) GetByAssignment(ctx context.Context, tx pgx.Tx, assignmentID uuid.UUID) (*model.Report, error) {
	return scanReport(r.db(tx).QueryRow(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE assignment_id = $1`, assignmentID))
}
