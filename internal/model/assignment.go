package model

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentStatus enumerates the assignment lifecycle states.
type AssignmentStatus string

const (
	AssignmentStatusAssigned  AssignmentStatus = "ASSIGNED"
	AssignmentStatusStarted   AssignmentStatus = "STARTED"
	AssignmentStatusCompleted AssignmentStatus = "COMPLETED"
	AssignmentStatusExpired   AssignmentStatus = "EXPIRED"
)

// IsTerminal reports whether no transition may leave the status.
func (s AssignmentStatus) IsTerminal() bool {
	return s == AssignmentStatusCompleted || s == AssignmentStatusExpired
}

// CanTransition reports whether from → to is a legal lifecycle step.
func (s AssignmentStatus) CanTransition(to AssignmentStatus) bool {
	switch s {
	case AssignmentStatusAssigned:
		return to == AssignmentStatusStarted || to == AssignmentStatusExpired
	case AssignmentStatusStarted:
		return to == AssignmentStatusCompleted || to == AssignmentStatusExpired
	default:
		return false
	}
}

// Assignment is one candidate's scheduled attempt at one test.
type Assignment struct {
	ID             uuid.UUID        `json:"id"`
	TestID         uuid.UUID        `json:"test_id"`
	CandidateID    uuid.UUID        `json:"candidate_id"`
	Status         AssignmentStatus `json:"status"`
	ScheduledStart *time.Time       `json:"scheduled_start,omitempty"`
	ScheduledEnd   *time.Time       `json:"scheduled_end,omitempty"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	SubmittedAt    *time.Time       `json:"submitted_at,omitempty"`
	ExpiredAt      *time.Time       `json:"expired_at,omitempty"`
	Score          *float64         `json:"score,omitempty"`
	ArchivedAt     *time.Time       `json:"archived_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// CreateAssignmentRequest is the payload for assigning a test to a candidate.
type CreateAssignmentRequest struct {
	TestID         uuid.UUID  `json:"test_id" binding:"required"`
	CandidateID    uuid.UUID  `json:"candidate_id" binding:"required"`
	ScheduledStart *time.Time `json:"scheduled_start"`
	ScheduledEnd   *time.Time `json:"scheduled_end"`
}

// ScheduleValid reports whether the window, when fully given, ends after it starts.
func (r CreateAssignmentRequest) ScheduleValid() bool {
	if r.ScheduledStart == nil || r.ScheduledEnd == nil {
		return true
	}
	return r.ScheduledEnd.After(*r.ScheduledStart)
}
