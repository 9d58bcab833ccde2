package model

import (
	"time"

	"github.com/google/uuid"
)

// Grade is the letter grade derived from a report percentage.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// SectionScore is the obtained/max pair for one question type.
type SectionScore struct {
	Obtained float64 `json:"obtained"`
	Max      float64 `json:"max"`
}

// Report is the aggregated outcome of one completed assignment.
type Report struct {
	ID                  uuid.UUID    `json:"id"`
	AssignmentID        uuid.UUID    `json:"assignment_id"`
	TestID              uuid.UUID    `json:"test_id"`
	CandidateID         uuid.UUID    `json:"candidate_id"`
	MCQ                 SectionScore `json:"mcq"`
	Coding              SectionScore `json:"coding"`
	TotalObtained       float64      `json:"total_obtained"`
	TotalMax            float64      `json:"total_max"`
	Percentage          float64      `json:"percentage"`
	Grade               Grade        `json:"grade"`
	DurationSeconds     int64        `json:"duration_seconds"`
	MCQCorrect          int          `json:"mcq_correct"`
	MCQWrong            int          `json:"mcq_wrong"`
	MCQSkipped          int          `json:"mcq_skipped"`
	CodingPassed        int          `json:"coding_passed"`
	CodingFailed        int          `json:"coding_failed"`
	CodingPendingReview int          `json:"coding_pending_review"`
	GeneratedAt         time.Time    `json:"generated_at"`
}
