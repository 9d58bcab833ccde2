package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/talentshire/assessment-core/internal/model"
)

// TxRunner runs fn in a single relational transaction. A nil tx handed to fn
// means the store runs without one (in-memory stores).
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// AssignmentStore is the persistence the lifecycle needs for assignments.
type AssignmentStore interface {
	Create(ctx context.Context, tx pgx.Tx, a *model.Assignment) error
	GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Assignment, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Assignment, error)
	UpdateLifecycle(ctx context.Context, tx pgx.Tx, a *model.Assignment) error
	SetScore(ctx context.Context, tx pgx.Tx, id uuid.UUID, score float64) error
	Archive(ctx context.Context, tx pgx.Tx, a *model.Assignment, at time.Time) error
	ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Assignment, error)
	ListByCandidate(ctx context.Context, candidateID uuid.UUID) ([]model.Assignment, error)
	ListOverdueIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// AnswerStore is the persistence the recorder and the aggregator need for answers.
type AnswerStore interface {
	Upsert(ctx context.Context, tx pgx.Tx, a *model.Answer) error
	GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Answer, error)
	ListByAssignment(ctx context.Context, tx pgx.Tx, assignmentID uuid.UUID) ([]model.Answer, error)
	Enrich(ctx context.Context, tx pgx.Tx, id uuid.UUID, aiScore float64, aiNotes string, at time.Time) (*model.Answer, error)
}

// ReportStore persists generated reports.
type ReportStore interface {
	Upsert(ctx context.Context, tx pgx.Tx, r *model.Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Report, error)
	GetByAssignment(ctx context.Context, tx pgx.Tx, assignmentID uuid.UUID) (*model.Report, error)
}

// SubmissionMirror stores extended execution detail outside the relational store.
type SubmissionMirror interface {
	Get(ctx context.Context, assignmentID, questionID string) (*model.CodeSubmissionDocument, error)
	GetByAnswer(ctx context.Context, answerID string) (*model.CodeSubmissionDocument, error)
	Save(ctx context.Context, doc *model.CodeSubmissionDocument) error
	Delete(ctx context.Context, assignmentID, questionID string) error
}

// Catalog resolves tests, candidates and questions.
type Catalog interface {
	GetTest(ctx context.Context, testID uuid.UUID) (*model.Test, error)
	CandidateExists(ctx context.Context, candidateID uuid.UUID) (bool, error)
	ResolveQuestion(ctx context.Context, testID uuid.UUID, ref model.QuestionRef) (*model.Question, error)
	CountQuestions(ctx context.Context, testID uuid.UUID, kind model.QuestionKind) (int, error)
}

// CompletionHook is told when an assignment's derived report should be (re)built.
type CompletionHook interface {
	AssignmentCompleted(ctx context.Context, assignmentID uuid.UUID) error
}
