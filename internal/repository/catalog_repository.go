package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/talentshire/assessment-core/internal/model"
)

// CatalogRepository reads the test and question catalog. The tables are owned
// by the authoring side; nothing here writes to them.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetTest retrieves test metadata by ID.
func (r *CatalogRepository) GetTest(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, duration_minutes, status FROM tests WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.DurationMinutes, &t.Status)
	if err != nil {
		return nil, mapErr(err)
	}
	return t, nil
}

// CandidateExists reports whether the candidate is known.
func (r *CatalogRepository) CandidateExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM candidates WHERE id = $1)`, id,
	).Scan(&exists)
	return exists, err
}

// ListTestQuestions resolves every question attached to a test in display order.
// Per-test marks override the bank marks when set.
func (r *CatalogRepository) ListTestQuestions(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT tq.question_id, tq.question_type, tq.test_id,
		        COALESCE(tq.marks, m.marks, c.marks, 0), tq.order_index,
		        COALESCE(m.correct_option, '')
		 FROM test_questions tq
		 LEFT JOIN mcq_questions m ON tq.question_type = 'MCQ' AND m.id = tq.question_id
		 LEFT JOIN coding_questions c ON tq.question_type = 'CODING' AND c.id = tq.question_id
		 WHERE tq.test_id = $1
		 ORDER BY tq.order_index, tq.question_id`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.Ref.ID, &q.Ref.Kind, &q.TestID, &q.MaxMarks, &q.OrderIndex, &q.CorrectOption); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
