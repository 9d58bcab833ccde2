package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/talentshire/assessment-core/internal/model"
)

const assignmentColumns = `id, test_id, candidate_id, status, scheduled_start, scheduled_end,
	started_at, submitted_at, expired_at, score, archived_at, created_at, updated_at`

// AssignmentRepository handles assignment data access.
type AssignmentRepository struct {
	pgStore
}

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{pgStore{pool: pool}}
}

func scanAssignment(row pgx.Row) (*model.Assignment, error) {
	a := &model.Assignment{}
	err := row.Scan(
		&a.ID, &a.TestID, &a.CandidateID, &a.Status, &a.ScheduledStart, &a.ScheduledEnd,
		&a.StartedAt, &a.SubmittedAt, &a.ExpiredAt, &a.Score, &a.ArchivedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}

// Create inserts a new assignment in ASSIGNED state.
// Returns ErrDuplicate when the candidate already holds the test.
func (r *AssignmentRepository) Create(ctx context.Context, tx pgx.Tx, a *model.Assignment) error {
	err := r.db(tx).QueryRow(ctx,
		`INSERT INTO assignments (test_id, candidate_id, status, scheduled_start, scheduled_end)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		a.TestID, a.CandidateID, model.AssignmentStatusAssigned, a.ScheduledStart, a.ScheduledEnd,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	a.Status = model.AssignmentStatusAssigned
	return nil
}

// GetByID retrieves an assignment by ID.
func (r *AssignmentRepository) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Assignment, error) {
	return scanAssignment(r.db(tx).QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id))
}

// GetForUpdate reads and row-locks an assignment. Must be called inside a transaction.
func (r *AssignmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Assignment, error) {
	return scanAssignment(r.db(tx).QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id = $1 FOR UPDATE`, id))
}

// UpdateLifecycle persists the status and the lifecycle timestamps of a.
func (r *AssignmentRepository) UpdateLifecycle(ctx context.Context, tx pgx.Tx, a *model.Assignment) error {
	return mapErr(r.db(tx).QueryRow(ctx,
		`UPDATE assignments
		 SET status = $1, started_at = $2, submitted_at = $3, expired_at = $4, updated_at = NOW()
		 WHERE id = $5
		 RETURNING updated_at`,
		a.Status, a.StartedAt, a.SubmittedAt, a.ExpiredAt, a.ID,
	).Scan(&a.UpdatedAt))
}

// SetScore records the aggregated score produced by a report.
func (r *AssignmentRepository) SetScore(ctx context.Context, tx pgx.Tx, id uuid.UUID, score float64) error {
	tag, err := r.db(tx).Exec(ctx,
		`UPDATE assignments SET score = $1, updated_at = NOW() WHERE id = $2`, score, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Archive stamps archived_at once; repeated calls keep the first timestamp.
func (r *AssignmentRepository) Archive(ctx context.Context, tx pgx.Tx, a *model.Assignment, at time.Time) error {
	return mapErr(r.db(tx).QueryRow(ctx,
		`UPDATE assignments
		 SET archived_at = COALESCE(archived_at, $1), updated_at = NOW()
		 WHERE id = $2
		 RETURNING archived_at, updated_at`,
		at, a.ID,
	).Scan(&a.ArchivedAt, &a.UpdatedAt))
}

// ListByTest retrieves all assignments of a test, newest first.
func (r *AssignmentRepository) ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Assignment, error) {
	return r.list(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE test_id = $1 ORDER BY created_at DESC`, testID)
}

// ListByCandidate retrieves the non-archived assignments of a candidate.
func (r *AssignmentRepository) ListByCandidate(ctx context.Context, candidateID uuid.UUID) ([]model.Assignment, error) {
	return r.list(ctx,
		`SELECT `+assignmentColumns+` FROM assignments
		 WHERE candidate_id = $1 AND archived_at IS NULL
		 ORDER BY created_at DESC`, candidateID)
}

// ListOverdueIDs returns assignments still open after their scheduled end.
func (r *AssignmentRepository) ListOverdueIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM assignments
		 WHERE status IN ($1, $2) AND scheduled_end IS NOT NULL AND scheduled_end < $3
		 ORDER BY scheduled_end
		 LIMIT $4`,
		model.AssignmentStatusAssigned, model.AssignmentStatusStarted, now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *AssignmentRepository) list(ctx context.Context, query string, args ...any) ([]model.Assignment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
