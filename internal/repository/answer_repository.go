package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/talentshire/assessment-core/internal/model"
)

const answerColumns = `id, assignment_id, question_id, question_type, selected_option, code, language,
	execution, is_correct, score, max_score, time_spent_seconds, ai_score, ai_notes, enriched_at,
	submitted_at, updated_at`

// AnswerRepository handles answer data access.
type AnswerRepository struct {
	pgStore
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pgStore{pool: pool}}
}

func scanAnswer(row pgx.Row) (*model.Answer, error) {
	a := &model.Answer{}
	err := row.Scan(
		&a.ID, &a.AssignmentID, &a.QuestionID, &a.QuestionType, &a.SelectedOption, &a.Code, &a.Language,
		&a.Execution, &a.IsCorrect, &a.Score, &a.MaxScore, &a.TimeSpentSeconds, &a.AIScore, &a.AINotes, &a.EnrichedAt,
		&a.SubmittedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}

// Upsert stores the answer keyed by (assignment_id, question_id).
// A later submission replaces every payload column of the earlier one, AI review included.
func (r *AnswerRepository) Upsert(ctx context.Context, tx pgx.Tx, a *model.Answer) error {
	return mapErr(r.db(tx).QueryRow(ctx,
		`INSERT INTO answers (assignment_id, question_id, question_type, selected_option, code, language,
		                      execution, is_correct, score, max_score, time_spent_seconds,
		                      ai_score, ai_notes, enriched_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (assignment_id, question_id) DO UPDATE SET
		     question_type = EXCLUDED.question_type,
		     selected_option = EXCLUDED.selected_option,
		     code = EXCLUDED.code,
		     language = EXCLUDED.language,
		     execution = EXCLUDED.execution,
		     is_correct = EXCLUDED.is_correct,
		     score = EXCLUDED.score,
		     max_score = EXCLUDED.max_score,
		     time_spent_seconds = EXCLUDED.time_spent_seconds,
		     ai_score = EXCLUDED.ai_score,
		     ai_notes = EXCLUDED.ai_notes,
		     enriched_at = EXCLUDED.enriched_at,
		     submitted_at = NOW(),
		     updated_at = NOW()
		 RETURNING id, submitted_at, updated_at`,
		a.AssignmentID, a.QuestionID, a.QuestionType, a.SelectedOption, a.Code, a.Language,
		a.Execution, a.IsCorrect, a.Score, a.MaxScore, a.TimeSpentSeconds,
		a.AIScore, a.AINotes, a.EnrichedAt,
	).Scan(&a.ID, &a.SubmittedAt, &a.UpdatedAt))
}

// GetByID retrieves an answer by ID.
func (r *AnswerRepository) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Answer, error) {
	return scanAnswer(r.db(tx).QueryRow(ctx,
		`SELECT `+answerColumns+` FROM answers WHERE id = $1`, id))
}

// ListByAssignment retrieves every answer of an assignment in submission order.
func (r *AnswerRepository) ListByAssignment(ctx context.Context, tx pgx.Tx, assignmentID uuid.UUID) ([]model.Answer, error) {
	rows, err := r.db(tx).Query(ctx,
		`SELECT `+answerColumns+` FROM answers WHERE assignment_id = $1 ORDER BY submitted_at, id`,
		assignmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Enrich writes the AI review outcome onto a coding answer and returns the stored row.
func (r *AnswerRepository) Enrich(ctx context.Context, tx pgx.Tx, id uuid.UUID, aiScore float64, aiNotes string, at time.Time) (*model.Answer, error) {
	return scanAnswer(r.db(tx).QueryRow(ctx,
		`UPDATE answers
		 SET ai_score = $1, ai_notes = $2, score = $1,
		     enriched_at = COALESCE(enriched_at, $3), updated_at = NOW()
		 WHERE id = $4
		 RETURNING `+answerColumns,
		aiScore, aiNotes, at, id))
}
