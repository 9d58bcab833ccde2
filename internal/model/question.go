package model

import (
	"github.com/google/uuid"
)

// QuestionKind tags the polymorphic question reference.
type QuestionKind string

const (
	QuestionKindMCQ    QuestionKind = "MCQ"
	QuestionKindCoding QuestionKind = "CODING"
)

// Valid reports whether k is a known kind.
func (k QuestionKind) Valid() bool {
	return k == QuestionKindMCQ || k == QuestionKindCoding
}

// QuestionRef points at a question in either the MCQ or the coding bank.
type QuestionRef struct {
	Kind QuestionKind `json:"kind"`
	ID   uuid.UUID    `json:"id"`
}

// Question is a catalog entry resolved for one test.
type Question struct {
	Ref           QuestionRef `json:"ref"`
	TestID        uuid.UUID   `json:"test_id"`
	MaxMarks      float64     `json:"max_marks"`
	OrderIndex    int         `json:"order_index"`
	// CorrectOption is set for MCQ questions only.
	CorrectOption string      `json:"correct_option,omitempty"`
}

// Test is the subset of test metadata this service reads.
type Test struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
}
