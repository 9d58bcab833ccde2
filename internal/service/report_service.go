package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/talentshire/assessment-core/internal/metrics"
	"github.com/talentshire/assessment-core/internal/model"
)

// ReportService aggregates the answers of completed assignments.
type ReportService struct {
	tx          TxRunner
	assignments AssignmentStore
	answers     AnswerStore
	reports     ReportStore
	catalog     Catalog
	log         zerolog.Logger
	now         func() time.Time
}

// NewReportService creates a new ReportService.
func NewReportService(
	tx TxRunner,
	assignments AssignmentStore,
	answers AnswerStore,
	reports ReportStore,
	catalog Catalog,
	log zerolog.Logger,
) *ReportService {
	return &ReportService{
		tx:          tx,
		assignments: assignments,
		answers:     answers,
		reports:     reports,
		catalog:     catalog,
		log:         log.With().Str("component", "report_service").Logger(),
		now:         time.Now,
	}
}

// GenerateReport builds (or rebuilds) the report of a completed assignment and
// records its total on the assignment. Regeneration keeps the report id.
func (s *ReportService) GenerateReport(ctx context.Context, assignmentID uuid.UUID) (*model.Report, error) {
	const op = "GenerateReport"

	// The catalog is read before the row lock; test_id never changes.
	current, err := s.assignments.GetByID(ctx, nil, assignmentID)
	if err != nil {
		return nil, storeErr(op, "assignment", err)
	}
	mcqTotal, countErr := s.catalog.CountQuestions(ctx, current.TestID, model.QuestionKindMCQ)

	var out *model.Report
	err = s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		a, err := s.assignments.GetForUpdate(ctx, tx, assignmentID)
		if err != nil {
			return storeErr(op, "assignment", err)
		}
		if a.Status != model.AssignmentStatusCompleted {
			return invalidState(op, a.Status, model.AssignmentStatusCompleted)
		}
		if countErr != nil {
			return storeErr(op, "test questions", countErr)
		}

		answers, err := s.answers.ListByAssignment(ctx, tx, assignmentID)
		if err != nil {
			return storeErr(op, "answer", err)
		}

		r := buildReport(a, answers, mcqTotal, s.now())
		if err := s.reports.Upsert(ctx, tx, r); err != nil {
			return storeErr(op, "report", err)
		}
		if err := s.assignments.SetScore(ctx, tx, assignmentID, r.TotalObtained); err != nil {
			return storeErr(op, "assignment", err)
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, storeErr(op, "report", err)
	}

	metrics.ReportsGenerated.Inc()
	s.log.Info().
		Str("assignment_id", assignmentID.String()).
		Str("report_id", out.ID.String()).
		Float64("percentage", out.Percentage).
		Str("grade", string(out.Grade)).
		Msg("Report generated")
	return out, nil
}

// GetReport retrieves a report by ID.
func (s *ReportService) GetReport(ctx context.Context, reportID uuid.UUID) (*model.Report, error) {
	r, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, storeErr("GetReport", "report", err)
	}
	return r, nil
}

// GetReportByAssignment retrieves the report of an assignment.
func (s *ReportService) GetReportByAssignment(ctx context.Context, assignmentID uuid.UUID) (*model.Report, error) {
	r, err := s.reports.GetByAssignment(ctx, nil, assignmentID)
	if err != nil {
		return nil, storeErr("GetReportByAssignment", "report", err)
	}
	return r, nil
}

func buildReport(a *model.Assignment, answers []model.Answer, mcqTotal int, now time.Time) *model.Report {
	r := &model.Report{
		AssignmentID: a.ID,
		TestID:       a.TestID,
		CandidateID:  a.CandidateID,
		GeneratedAt:  now,
	}

	answeredMCQ := 0
	for _, ans := range answers {
		switch ans.QuestionType {
		case model.QuestionKindMCQ:
			answeredMCQ++
			r.MCQ.Obtained += ans.Score
			r.MCQ.Max += ans.MaxScore
			if ans.IsCorrect != nil && *ans.IsCorrect {
				r.MCQCorrect++
			} else {
				r.MCQWrong++
			}
		case model.QuestionKindCoding:
			r.Coding.Obtained += ans.Score
			r.Coding.Max += ans.MaxScore
			if ans.Execution != nil && ans.Execution.Passed {
				r.CodingPassed++
			} else {
				r.CodingFailed++
			}
			if ans.AIScore == nil {
				r.CodingPendingReview++
			}
		}
	}

	r.MCQSkipped = max(mcqTotal-answeredMCQ, 0)
	r.TotalObtained = r.MCQ.Obtained + r.Coding.Obtained
	r.TotalMax = r.MCQ.Max + r.Coding.Max
	r.Percentage = Percentage(r.TotalObtained, r.TotalMax)
	r.Grade = GradeFor(r.Percentage)
	r.DurationSeconds = DurationSeconds(a.StartedAt, a.SubmittedAt)
	return r
}
