package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/talentshire/assessment-core/internal/metrics"
	"github.com/talentshire/assessment-core/internal/model"
	"github.com/talentshire/assessment-core/internal/repository"
)

const compensationTimeout = 5 * time.Second

// AnswerService records candidate answers and applies AI review results.
type AnswerService struct {
	tx          TxRunner
	assignments AssignmentStore
	answers     AnswerStore
	catalog     Catalog
	mirror      SubmissionMirror
	hook        CompletionHook
	log         zerolog.Logger
	now         func() time.Time
}

// NewAnswerService creates a new AnswerService. mirror may be nil, in which
// case execution detail lives only in the relational answer row.
func NewAnswerService(
	tx TxRunner,
	assignments AssignmentStore,
	answers AnswerStore,
	catalog Catalog,
	mirror SubmissionMirror,
	hook CompletionHook,
	log zerolog.Logger,
) *AnswerService {
	return &AnswerService{
		tx:          tx,
		assignments: assignments,
		answers:     answers,
		catalog:     catalog,
		mirror:      mirror,
		hook:        hook,
		log:         log.With().Str("component", "answer_service").Logger(),
		now:         time.Now,
	}
}

// SubmitMCQAnswer grades and stores a multiple-choice answer. Resubmitting
// the same question replaces the earlier answer.
func (s *AnswerService) SubmitMCQAnswer(ctx context.Context, assignmentID uuid.UUID, req model.SubmitMCQRequest) (*model.Answer, error) {
	const op = "SubmitMCQAnswer"

	q, lookupErr, err := s.lookupQuestion(ctx, op, assignmentID, model.QuestionRef{Kind: model.QuestionKindMCQ, ID: req.QuestionID})
	if err != nil {
		return nil, err
	}

	var out *model.Answer
	err = s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.lockStarted(ctx, tx, op, assignmentID); err != nil {
			return err
		}
		if lookupErr != nil {
			return lookupErr
		}

		selected := strings.TrimSpace(req.SelectedOption)
		correct := optionsMatch(selected, q.CorrectOption)
		ans := &model.Answer{
			AssignmentID:     assignmentID,
			QuestionID:       req.QuestionID,
			QuestionType:     model.QuestionKindMCQ,
			SelectedOption:   &selected,
			IsCorrect:        &correct,
			Score:            MCQScore(correct, q.MaxMarks),
			MaxScore:         q.MaxMarks,
			TimeSpentSeconds: req.TimeSpentSeconds,
		}
		if err := s.answers.Upsert(ctx, tx, ans); err != nil {
			return storeErr(op, "answer", err)
		}
		out = ans
		return nil
	})
	if err != nil {
		return nil, storeErr(op, "answer", err)
	}

	metrics.AnswersRecorded.WithLabelValues(string(model.QuestionKindMCQ)).Inc()
	s.log.Debug().
		Str("assignment_id", assignmentID.String()).
		Str("question_id", req.QuestionID.String()).
		Bool("correct", *out.IsCorrect).
		Msg("MCQ answer recorded")
	return out, nil
}

// SubmitCodeAnswer stores a coding answer with its execution result. The score
// stays 0 until the AI review enriches it, and any earlier review is cleared.
func (s *AnswerService) SubmitCodeAnswer(ctx context.Context, assignmentID uuid.UUID, req model.SubmitCodeRequest) (*model.Answer, error) {
	const op = "SubmitCodeAnswer"

	var (
		out      *model.Answer
		previous *model.CodeSubmissionDocument
		mirrored bool
	)

	q, lookupErr, err := s.lookupQuestion(ctx, op, assignmentID, model.QuestionRef{Kind: model.QuestionKindCoding, ID: req.QuestionID})
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		a, err := s.lockStarted(ctx, tx, op, assignmentID)
		if err != nil {
			return err
		}
		if lookupErr != nil {
			return lookupErr
		}

		code, language, execution := req.Code, req.Language, req.Execution
		ans := &model.Answer{
			AssignmentID:     assignmentID,
			QuestionID:       req.QuestionID,
			QuestionType:     model.QuestionKindCoding,
			Code:             &code,
			Language:         &language,
			Execution:        &execution,
			Score:            0,
			MaxScore:         q.MaxMarks,
			TimeSpentSeconds: req.TimeSpentSeconds,
		}
		if err := s.answers.Upsert(ctx, tx, ans); err != nil {
			return storeErr(op, "answer", err)
		}

		if s.mirror != nil {
			previous, err = s.mirror.Get(ctx, assignmentID.String(), req.QuestionID.String())
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return storeErr(op, "code submission document", err)
			}

			doc := &model.CodeSubmissionDocument{
				AnswerID:     ans.ID.String(),
				AssignmentID: assignmentID.String(),
				CandidateID:  a.CandidateID.String(),
				QuestionID:   req.QuestionID.String(),
				Code:         code,
				Language:     language,
				Execution:    execution,
				SubmittedAt:  ans.SubmittedAt,
			}
			if previous != nil {
				doc.ID = previous.ID
			}
			if err := s.mirror.Save(ctx, doc); err != nil {
				return storeErr(op, "code submission document", err)
			}
			// Nothing in fn runs after this point; a later error is the commit.
			mirrored = true
		}

		out = ans
		return nil
	})
	if err != nil {
		if mirrored {
			s.compensateMirror(ctx, assignmentID, req.QuestionID, previous)
		}
		return nil, storeErr(op, "answer", err)
	}

	metrics.AnswersRecorded.WithLabelValues(string(model.QuestionKindCoding)).Inc()
	s.log.Debug().
		Str("assignment_id", assignmentID.String()).
		Str("question_id", req.QuestionID.String()).
		Str("execution_status", string(req.Execution.Status)).
		Msg("Code answer recorded")
	return out, nil
}

// EnrichCodeAnswer applies the external AI review to a coding answer. The score
// is clamped into [0, max_score]. A review of an earlier submission of the same
// question is rejected with a Conflict. A completed assignment gets its report rebuilt.
func (s *AnswerService) EnrichCodeAnswer(ctx context.Context, answerID uuid.UUID, review model.AIReview) (*model.Answer, error) {
	const op = "EnrichCodeAnswer"

	var (
		out       *model.Answer
		completed bool
	)

	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		owner, err := s.answers.GetByID(ctx, tx, answerID)
		if err != nil {
			return storeErr(op, "answer", err)
		}

		// Lock order matches submission: assignment row first, then the answer update.
		a, err := s.assignments.GetForUpdate(ctx, tx, owner.AssignmentID)
		if err != nil {
			return storeErr(op, "assignment", err)
		}

		// Submissions rewrite the row under the assignment lock, so read it again.
		ans, err := s.answers.GetByID(ctx, tx, answerID)
		if err != nil {
			return storeErr(op, "answer", err)
		}
		if ans.QuestionType != model.QuestionKindCoding {
			return notFound(op, "coding answer %s not found", answerID)
		}
		if review.SubmittedAt != nil && ans.SubmittedAt.After(*review.SubmittedAt) {
			return conflict(op, "review of answer %s targets an earlier submission", answerID)
		}

		updated, err := s.answers.Enrich(ctx, tx, answerID, clamp(review.Score, 0, ans.MaxScore), review.Notes, s.now())
		if err != nil {
			return storeErr(op, "answer", err)
		}
		out = updated
		completed = a.Status == model.AssignmentStatusCompleted
		return nil
	})
	if err != nil {
		return nil, storeErr(op, "answer", err)
	}

	metrics.Enrichments.Inc()
	s.log.Info().
		Str("answer_id", answerID.String()).
		Str("assignment_id", out.AssignmentID.String()).
		Float64("score", out.Score).
		Msg("Code answer enriched")

	if completed && s.hook != nil {
		if err := s.hook.AssignmentCompleted(ctx, out.AssignmentID); err != nil {
			s.log.Error().Err(err).Str("assignment_id", out.AssignmentID.String()).Msg("Failed to schedule report regeneration")
		}
	}
	return out, nil
}

// ListAnswers returns every answer of an assignment.
func (s *AnswerService) ListAnswers(ctx context.Context, assignmentID uuid.UUID) ([]model.Answer, error) {
	const op = "ListAnswers"

	if _, err := s.assignments.GetByID(ctx, nil, assignmentID); err != nil {
		return nil, storeErr(op, "assignment", err)
	}
	out, err := s.answers.ListByAssignment(ctx, nil, assignmentID)
	if err != nil {
		return nil, storeErr(op, "answer", err)
	}
	return out, nil
}

// GetExecutionDetail returns the mirrored execution detail of a coding answer,
// rebuilt from the relational row when no document exists.
func (s *AnswerService) GetExecutionDetail(ctx context.Context, answerID uuid.UUID) (*model.CodeSubmissionDocument, error) {
	const op = "GetExecutionDetail"

	ans, err := s.answers.GetByID(ctx, nil, answerID)
	if err != nil {
		return nil, storeErr(op, "answer", err)
	}
	if ans.QuestionType != model.QuestionKindCoding {
		return nil, notFound(op, "coding answer %s not found", answerID)
	}

	if s.mirror != nil {
		doc, err := s.mirror.GetByAnswer(ctx, answerID.String())
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, storeErr(op, "code submission document", err)
		}
	}

	a, err := s.assignments.GetByID(ctx, nil, ans.AssignmentID)
	if err != nil {
		return nil, storeErr(op, "assignment", err)
	}
	doc := &model.CodeSubmissionDocument{
		AnswerID:     ans.ID.String(),
		AssignmentID: ans.AssignmentID.String(),
		CandidateID:  a.CandidateID.String(),
		QuestionID:   ans.QuestionID.String(),
		SubmittedAt:  ans.SubmittedAt,
	}
	if ans.Code != nil {
		doc.Code = *ans.Code
	}
	if ans.Language != nil {
		doc.Language = *ans.Language
	}
	if ans.Execution != nil {
		doc.Execution = *ans.Execution
	}
	return doc, nil
}

func (s *AnswerService) lockStarted(ctx context.Context, tx pgx.Tx, op string, assignmentID uuid.UUID) (*model.Assignment, error) {
	a, err := s.assignments.GetForUpdate(ctx, tx, assignmentID)
	if err != nil {
		return nil, storeErr(op, "assignment", err)
	}
	if a.Status != model.AssignmentStatusStarted {
		return nil, invalidState(op, a.Status, model.AssignmentStatusStarted)
	}
	return a, nil
}

// lookupQuestion resolves ref against the assignment's test outside any
// transaction. A failed assignment read is returned as err; a failed question
// lookup is returned as lookupErr so the caller can check state first.
func (s *AnswerService) lookupQuestion(ctx context.Context, op string, assignmentID uuid.UUID, ref model.QuestionRef) (q *model.Question, lookupErr, err error) {
	a, err := s.assignments.GetByID(ctx, nil, assignmentID)
	if err != nil {
		return nil, nil, storeErr(op, "assignment", err)
	}
	q, lookupErr = s.catalog.ResolveQuestion(ctx, a.TestID, ref)
	return q, storeErr(op, "question", lookupErr), nil
}

// compensateMirror undoes a document write whose relational transaction did not commit.
func (s *AnswerService) compensateMirror(ctx context.Context, assignmentID, questionID uuid.UUID, previous *model.CodeSubmissionDocument) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	log := s.log.With().
		Str("assignment_id", assignmentID.String()).
		Str("question_id", questionID.String()).
		Logger()

	result := "deleted"
	var err error
	if previous != nil {
		result = "restored"
		err = s.mirror.Save(ctx, previous)
	} else {
		err = s.mirror.Delete(ctx, assignmentID.String(), questionID.String())
	}
	if err != nil {
		metrics.MirrorCompensations.WithLabelValues("failed").Inc()
		log.Error().Err(err).Msg("Code submission document compensation failed")
		return
	}
	metrics.MirrorCompensations.WithLabelValues(result).Inc()
	log.Warn().Str("result", result).Msg("Code submission document compensated after failed commit")
}
