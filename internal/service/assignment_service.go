package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/talentshire/assessment-core/internal/metrics"
	"github.com/talentshire/assessment-core/internal/model"
)

// AssignmentService owns the assignment lifecycle.
type AssignmentService struct {
	tx          TxRunner
	assignments AssignmentStore
	catalog     Catalog
	hook        CompletionHook
	log         zerolog.Logger
	now         func() time.Time
}

// NewAssignmentService creates a new AssignmentService.
func NewAssignmentService(
	tx TxRunner,
	assignments AssignmentStore,
	catalog Catalog,
	hook CompletionHook,
	log zerolog.Logger,
) *AssignmentService {
	return &AssignmentService{
		tx:          tx,
		assignments: assignments,
		catalog:     catalog,
		hook:        hook,
		log:         log.With().Str("component", "assignment_service").Logger(),
		now:         time.Now,
	}
}

// CreateAssignment assigns a test to a candidate.
func (s *AssignmentService) CreateAssignment(ctx context.Context, req model.CreateAssignmentRequest) (*model.Assignment, error) {
	const op = "CreateAssignment"

	if _, err := s.catalog.GetTest(ctx, req.TestID); err != nil {
		return nil, storeErr(op, "test", err)
	}
	ok, err := s.catalog.CandidateExists(ctx, req.CandidateID)
	if err != nil {
		return nil, storeErr(op, "candidate", err)
	}
	if !ok {
		return nil, notFound(op, "candidate %s not found", req.CandidateID)
	}

	a := &model.Assignment{
		TestID:         req.TestID,
		CandidateID:    req.CandidateID,
		ScheduledStart: req.ScheduledStart,
		ScheduledEnd:   req.ScheduledEnd,
	}
	if err := s.assignments.Create(ctx, nil, a); err != nil {
		return nil, storeErr(op, "assignment for this test and candidate", err)
	}

	s.log.Info().
		Str("assignment_id", a.ID.String()).
		Str("test_id", a.TestID.String()).
		Str("candidate_id", a.CandidateID.String()).
		Msg("Assignment created")
	return a, nil
}

// GetAssignment retrieves an assignment.
func (s *AssignmentService) GetAssignment(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	a, err := s.assignments.GetByID(ctx, nil, id)
	if err != nil {
		return nil, storeErr("GetAssignment", "assignment", err)
	}
	return a, nil
}

// ListByTest lists every assignment of a test.
func (s *AssignmentService) ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Assignment, error) {
	out, err := s.assignments.ListByTest(ctx, testID)
	if err != nil {
		return nil, storeErr("ListByTest", "assignment", err)
	}
	return out, nil
}

// ListByCandidate lists the candidate's non-archived assignments.
func (s *AssignmentService) ListByCandidate(ctx context.Context, candidateID uuid.UUID) ([]model.Assignment, error) {
	out, err := s.assignments.ListByCandidate(ctx, candidateID)
	if err != nil {
		return nil, storeErr("ListByCandidate", "assignment", err)
	}
	return out, nil
}

// StartAssignment moves ASSIGNED → STARTED.
func (s *AssignmentService) StartAssignment(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	return s.transition(ctx, "StartAssignment", id, model.AssignmentStatusStarted,
		func(a *model.Assignment, now time.Time) { a.StartedAt = &now })
}

// EndAssignment moves STARTED → COMPLETED and hands the assignment to the
// report builder once the transition is committed.
func (s *AssignmentService) EndAssignment(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	a, err := s.transition(ctx, "EndAssignment", id, model.AssignmentStatusCompleted,
		func(a *model.Assignment, now time.Time) { a.SubmittedAt = &now })
	if err != nil {
		return nil, err
	}
	s.notifyCompleted(ctx, a.ID)
	return a, nil
}

// ExpireAssignment moves ASSIGNED or STARTED → EXPIRED.
func (s *AssignmentService) ExpireAssignment(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	return s.transition(ctx, "ExpireAssignment", id, model.AssignmentStatusExpired,
		func(a *model.Assignment, now time.Time) { a.ExpiredAt = &now })
}

// ArchiveAssignment hides a terminal assignment from candidate listings.
func (s *AssignmentService) ArchiveAssignment(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	const op = "ArchiveAssignment"

	var out *model.Assignment
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		a, err := s.assignments.GetForUpdate(ctx, tx, id)
		if err != nil {
			return storeErr(op, "assignment", err)
		}
		if !a.Status.IsTerminal() {
			return invalidState(op, a.Status, model.AssignmentStatusCompleted, model.AssignmentStatusExpired)
		}
		if err := s.assignments.Archive(ctx, tx, a, s.now()); err != nil {
			return storeErr(op, "assignment", err)
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, storeErr(op, "assignment", err)
	}
	return out, nil
}

// ExpireOverdue expires up to limit open assignments whose scheduled end is
// before now. Assignments that moved on concurrently are skipped.
func (s *AssignmentService) ExpireOverdue(ctx context.Context, now time.Time, limit int) (int, error) {
	ids, err := s.assignments.ListOverdueIDs(ctx, now, limit)
	if err != nil {
		return 0, storeErr("ExpireOverdue", "assignment", err)
	}

	expired := 0
	var errs []error
	for _, id := range ids {
		if _, err := s.ExpireAssignment(ctx, id); err != nil {
			if errors.Is(err, ErrInvalidState) || errors.Is(err, ErrNotFound) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		expired++
	}
	return expired, errors.Join(errs...)
}

func (s *AssignmentService) transition(
	ctx context.Context,
	op string,
	id uuid.UUID,
	to model.AssignmentStatus,
	stamp func(a *model.Assignment, now time.Time),
) (*model.Assignment, error) {
	var (
		out  *model.Assignment
		from model.AssignmentStatus
	)

	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		a, err := s.assignments.GetForUpdate(ctx, tx, id)
		if err != nil {
			return storeErr(op, "assignment", err)
		}
		if !a.Status.CanTransition(to) {
			return invalidState(op, a.Status, sourcesOf(to)...)
		}

		from = a.Status
		a.Status = to
		stamp(a, s.now())
		if err := s.assignments.UpdateLifecycle(ctx, tx, a); err != nil {
			return storeErr(op, "assignment", err)
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, storeErr(op, "assignment", err)
	}

	metrics.AssignmentTransitions.WithLabelValues(string(from), string(to)).Inc()
	s.log.Info().
		Str("assignment_id", id.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Assignment transitioned")
	return out, nil
}

func (s *AssignmentService) notifyCompleted(ctx context.Context, id uuid.UUID) {
	if s.hook == nil {
		return
	}
	if err := s.hook.AssignmentCompleted(ctx, id); err != nil {
		s.log.Error().Err(err).Str("assignment_id", id.String()).Msg("Failed to schedule report generation")
	}
}

// sourcesOf lists the states from which to is reachable.
func sourcesOf(to model.AssignmentStatus) []model.AssignmentStatus {
	var out []model.AssignmentStatus
	for _, from := range []model.AssignmentStatus{
		model.AssignmentStatusAssigned,
		model.AssignmentStatusStarted,
		model.AssignmentStatusCompleted,
		model.AssignmentStatusExpired,
	} {
		if from.CanTransition(to) {
			out = append(out, from)
		}
	}
	return out
}
