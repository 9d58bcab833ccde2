package model

import (
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ExecutionStatus is the outcome reported by the execution gateway.
type ExecutionStatus string

const (
	ExecutionStatusPending          ExecutionStatus = "pending"
	ExecutionStatusSuccess          ExecutionStatus = "success"
	ExecutionStatusError            ExecutionStatus = "error"
	ExecutionStatusTimeout          ExecutionStatus = "timeout"
	ExecutionStatusCompilationError ExecutionStatus = "compilation_error"
	ExecutionStatusRuntimeError     ExecutionStatus = "runtime_error"
)

// ExecutionResult is what the execution gateway reports for a code run.
type ExecutionResult struct {
	Status          ExecutionStatus `json:"status" bson:"status" binding:"required,oneof=pending success error timeout compilation_error runtime_error"`
	Stdout          string          `json:"stdout" bson:"stdout"`
	Stderr          string          `json:"stderr" bson:"stderr"`
	Output          string          `json:"output" bson:"output"`
	Passed          bool            `json:"passed" bson:"passed"`
	PassedCases     int             `json:"passed_cases" bson:"passed_cases" binding:"min=0"`
	TotalCases      int             `json:"total_cases" bson:"total_cases" binding:"min=0"`
	ExecutionTimeMS *float64        `json:"execution_time_ms,omitempty" bson:"execution_time_ms,omitempty"`
}

// Answer is one candidate response to one question within one assignment.
type Answer struct {
	ID               uuid.UUID        `json:"id"`
	AssignmentID     uuid.UUID        `json:"assignment_id"`
	QuestionID       uuid.UUID        `json:"question_id"`
	QuestionType     QuestionKind     `json:"question_type"`
	SelectedOption   *string          `json:"selected_option,omitempty"`
	Code             *string          `json:"code,omitempty"`
	Language         *string          `json:"language,omitempty"`
	Execution        *ExecutionResult `json:"execution,omitempty"`
	IsCorrect        *bool            `json:"is_correct,omitempty"`
	Score            float64          `json:"score"`
	MaxScore         float64          `json:"max_score"`
	TimeSpentSeconds int              `json:"time_spent_seconds"`
	AIScore          *float64         `json:"ai_score,omitempty"`
	AINotes          *string          `json:"ai_notes,omitempty"`
	EnrichedAt       *time.Time       `json:"enriched_at,omitempty"`
	SubmittedAt      time.Time        `json:"submitted_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// SubmitMCQRequest is the payload for answering a multiple-choice question.
type SubmitMCQRequest struct {
	QuestionID       uuid.UUID `json:"question_id" binding:"required"`
	SelectedOption   string    `json:"selected_option" binding:"required,max=10"`
	TimeSpentSeconds int       `json:"time_spent_seconds" binding:"min=0"`
}

// SubmitCodeRequest is the payload for answering a coding question.
type SubmitCodeRequest struct {
	QuestionID       uuid.UUID       `json:"question_id" binding:"required"`
	Code             string          `json:"code" binding:"required,max=200000"`
	Language         string          `json:"language" binding:"required,max=32"`
	Execution        ExecutionResult `json:"execution" binding:"required"`
	TimeSpentSeconds int             `json:"time_spent_seconds" binding:"min=0"`
}

// EnrichAnswerRequest carries the external AI review outcome. SubmittedAt is
// the submitted_at of the answer the review was computed for.
type EnrichAnswerRequest struct {
	AIScore     *float64   `json:"ai_score" binding:"required"`
	AINotes     string     `json:"ai_notes" binding:"max=20000"`
	SubmittedAt *time.Time `json:"submitted_at"`
}

// Review converts the request into the service input.
func (r EnrichAnswerRequest) Review() AIReview {
	return AIReview{Score: *r.AIScore, Notes: r.AINotes, SubmittedAt: r.SubmittedAt}
}

// AIReview is the external review of one coding submission.
type AIReview struct {
	Score       float64
	Notes       string
	// SubmittedAt identifies the reviewed submission. Nil skips the staleness check.
	SubmittedAt *time.Time
}

// CodeSubmissionDocument is the extended execution detail kept in the
// code_submissions document collection.
type CodeSubmissionDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AnswerID     string             `bson:"answer_id" json:"answer_id"`
	AssignmentID string             `bson:"assignment_id" json:"assignment_id"`
	CandidateID  string             `bson:"candidate_id" json:"candidate_id"`
	QuestionID   string             `bson:"question_id" json:"question_id"`
	Code         string             `bson:"code" json:"code"`
	Language     string             `bson:"language" json:"language"`
	Execution    ExecutionResult    `bson:"execution_result" json:"execution_result"`
	SubmittedAt  time.Time          `bson:"submitted_at" json:"submitted_at"`
}
