package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/talentshire/assessment-core/internal/model"
)

func TestSubmitMCQAnswer(t *testing.T) {
	ctx := context.Background()

	t.Run("correct option scores max marks", func(t *testing.T) {
		f := newFixture(t)
		a := f.started(t)

		ans, err := f.answers.SubmitMCQAnswer(ctx, a.ID, model.SubmitMCQRequest{QuestionID: f.mcq1, SelectedOption: "A", TimeSpentSeconds: 30})
		require.NoError(t, err)
		require.True(t, *ans.IsCorrect)
		require.Equal(t, 2.0, ans.Score)
		require.Equal(t, 2.0, ans.MaxScore)
		require.Equal(t, 30, ans.TimeSpentSeconds)
	})

	t.Run("wrong option scores zero", func(t *testing.T) {
		f := newFixture(t)
		a := f.started(t)

		ans, err := f.answers.SubmitMCQAnswer(ctx, a.ID, model.SubmitMCQRequest{QuestionID: f.mcq1, SelectedOption: "B"})
		require.NoError(t, err)
		require.False(t, *ans.IsCorrect)
		require.Zero(t, ans.Score)
	})

	t.Run("options compare case-insensitively after trimming", func(t *testing.T) {
		f := newFixture(t)
		a := f.started(t)

		ans, err := f.answers.SubmitMCQAnswer(ctx, a.ID, model.SubmitMCQRequest{QuestionID: f.mcq2, SelectedOption: " c "})
		require.NoError(t, err)
		require.True(t, *ans.IsCorrect)
		require.Equal(t, "c", *ans.SelectedOption)
	})

	t.Run("resubmission replaces the earlier answer", func(t *testing.T) {
		f := newFixture(t)
		a := f.started(t)

		first, err := f.answers.SubmitMCQAnswer(ctx, a.ID, model.SubmitMCQRequest{QuestionID: f.mcq1, SelectedOption: "A"})
		require.NoError(t, err)
		second, err := f.answers.SubmitMCQAnswer(ctx, a.ID, model.SubmitMCQRequest{QuestionID: f.mcq1, SelectedOption: "D"})
		require.NoError(t, err)

		require.Equal(t, first.ID, second.ID)
		listed, err := f.answers.ListAnswers(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		require.Equal(t, "D", *listed[0].SelectedOption)
		require.Zero(t, listed[0].Score)
	})

	t.Run("coding question is not an MCQ", func(t *testing.T) {
		f := newFixture(t)
		a := f.started(t)

		_, err := f.answers.SubmitMCQAnswer(ctx, a.ID, model.SubmitMCQRequest{QuestionID: f.coding, SelectedOption: "A"})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("question outside the test", func(t *testing.T) {
		f := newFixture(t)
		a := f.started(t)

		_, err := f.answers.SubmitMCQAnswer(ctx, a.ID, model.SubmitMCQRequest{QuestionID: uuid.New(), SelectedOption: "A"})
		require.ErrorIs(t, err, ErrNotFound)
		require.Zero(t, f.db.answerCount())
	})

	t.Run("unknown assignment", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.answers.SubmitMCQAnswer(ctx, uuid.New(), model.SubmitMCQRequest{QuestionID: f.mcq1, SelectedOption: "A"})
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSubmitRequiresStartedAssignment(t *testing.T) {
	ctx := context.Background()

	for _, status := range []model.AssignmentStatus{
		model.AssignmentStatusAssigned,
		model.AssignmentStatusCompleted,
		model.AssignmentStatusExpired,
	} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			a := f.create(t)
			f.db.setStatus(a.ID, status)

			// An invalid question must not mask the state error.
			_, err := f.answers.SubmitMCQAnswer(ctx, a.ID, model.SubmitMCQRequest{QuestionID: uuid.New(), SelectedOption: "A"})
			require.ErrorIs(t, err, ErrInvalidState)

			_, err = f.answers.SubmitMCQAnswer(ctx, a.ID, model.SubmitMCQRequest{QuestionID: f.mcq1, SelectedOption: "A"})
			require.ErrorIs(t, err, ErrInvalidState)

			_, err = f.answers.SubmitCodeAnswer(ctx, a.ID, model.SubmitCodeRequest{
				QuestionID: f.coding, Code: "print(1)", Language: "python", Execution: passedExecution(),
			})
			require.ErrorIs(t, err, ErrInvalidState)

			var se *Error
			require.ErrorAs(t, err, &se)
			require.Equal(t, status, se.Current)
			require.Equal(t, []model.AssignmentStatus{model.AssignmentStatusStarted}, se.Expected)
			require.Zero(t, f.db.answerCount())
		})
	}
}

func TestSubmitCodeAnswer(t *testing.T) {
	ctx := context.Background()

	t.Run("stores unscored answer and mirrors the execution detail", func(t *testing.T) {
		f := newFixture(t)
		a := f.started(t)

		ans, err := f.answers.SubmitCodeAnswer(ctx, a.ID, model.SubmitCodeRequest{
			QuestionID: f.coding, Code: "print(1)", Language: "python", Execution: passedExecution(), TimeSpentSeconds: 300,
		})
		require.NoError(t, err)
		require.Equal(t, model.QuestionKindCoding, ans.QuestionType)
		require.Nil(t, ans.IsCorrect)
		require.Zero(t, ans.Score)
		require.Equal(t, 10.0, ans.MaxScore)
		require.True(t, ans.Execution.Passed)

		doc, ok := f.mirror.doc(a.ID, f.coding)
		require.True(t, ok)
		require.Equal(t, ans.ID.String(), doc.AnswerID)
		require.Equal(t, f.candidateID.String(), doc.CandidateID)
		require.Equal(t, "print(1)", doc.Code)
		require.Equal(t, 5, doc.Execution.PassedCases)
	})

	t.Run("resubmission clears an earlier review", func(t *testing.T) {
		f := newFixture(t)
		a := f.started(t)

		first, err := f.answers.SubmitCodeAnswer(ctx, a.ID, model.SubmitCodeRequest{
			QuestionID: f.coding, Code: "v1", Language: "python", Execution: passedExecution(),
		})
		require.NoError(t, err)
		_, err = f.answers.EnrichCodeAnswer(ctx, first.ID, model.AIReview{Score: 7, Notes: "solid"})
		require.NoError(t, err)

		second, err := f.answers.SubmitCodeAnswer(ctx, a.ID, model.SubmitCodeRequest{
			QuestionID: f.coding, Code: "v2", Language: "go", Execution: passedExecution(),
		})
		require.NoError(t, err)
		require.Equal(t, first.ID, second.ID)
		require.Zero(t, second.Score)
		require.Nil(t, second.AIScore)
		require.Nil(t, second.AINotes)
		require.Nil(t, second.EnrichedAt)

		doc, ok := f.mirror.doc(a.ID, f.coding)
		require.True(t, ok)
		require.Equal(t, "v2", doc.Code)
	})

	t.Run("MCQ question is not a coding question", func(t *testing.T) {
		f := newFixture(t)
		a := f.started(t)

		_, err := f.answers.SubmitCodeAnswer(ctx, a.ID, model.SubmitCodeRequest{
			QuestionID: f.mcq1, Code: "x", Language: "python", Execution: passedExecution(),
		})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("mirror failure rolls the answer back", func(t *testing.T) {
		f := newFixture(t)
		a := f.started(t)
		f.mirror.saveErr = errors.New("mongo: no reachable servers")

		_, err := f.answers.SubmitCodeAnswer(ctx, a.ID, model.SubmitCodeRequest{
			QuestionID: f.coding, Code: "x", Language: "python", Execution: passedExecution(),
		})
		require.ErrorIs(t, err, ErrPersistence)
		require.Zero(t, f.db.answerCount())
	})

	t.Run("failed commit deletes a new document", func(t *testing.T) {
		f := newFixture(t)
		a := f.started(t)
		f.db.failNextCommit = true

		_, err := f.answers.SubmitCodeAnswer(ctx, a.ID, model.SubmitCodeRequest{
			QuestionID: f.coding, Code: "x", Language: "python", Execution: passedExecution(),
		})
		require.ErrorIs(t, err, ErrPersistence)
		require.Zero(t, f.db.answerCount())
		_, ok := f.mirror.doc(a.ID, f.coding)
		require.False(t, ok)
	})

	t.Run("failed commit restores the previous document", func(t *testing.T) {
		f := newFixture(t)
		a := f.started(t)

		_, err := f.answers.SubmitCodeAnswer(ctx, a.ID, model.SubmitCodeRequest{
			QuestionID: f.coding, Code: "v1", Language: "python", Execution: passedExecution(),
		})
		require.NoError(t, err)

		f.db.failNextCommit = true
		_, err = f.answers.SubmitCodeAnswer(ctx, a.ID, model.SubmitCodeRequest{
			QuestionID: f.coding, Code: "v2", Language: "python", Execution: passedExecution(),
		})
		require.ErrorIs(t, err, ErrPersistence)

		doc, ok := f.mirror.doc(a.ID, f.coding)
		require.True(t, ok)
		require.Equal(t, "v1", doc.Code)

		listed, err := f.answers.ListAnswers(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		require.Equal(t, "v1", *listed[0].Code)
	})

	t.Run("works without a document mirror", func(t *testing.T) {
		f := newFixture(t)
		f.answers.mirror = nil
		a := f.started(t)

		ans, err := f.answers.SubmitCodeAnswer(ctx, a.ID, model.SubmitCodeRequest{
			QuestionID: f.coding, Code: "x", Language: "python", Execution: passedExecution(),
		})
		require.NoError(t, err)

		detail, err := f.answers.GetExecutionDetail(ctx, ans.ID)
		require.NoError(t, err)
		require.Equal(t, "x", detail.Code)
		require.True(t, detail.Execution.Passed)
	})
}

func TestEnrichCodeAnswer(t *testing.T) {
	ctx := context.Background()

	submit := func(t *testing.T, f *fixture, assignmentID uuid.UUID) *model.Answer {
		t.Helper()
		ans, err := f.answers.SubmitCodeAnswer(ctx, assignmentID, model.SubmitCodeRequest{
			QuestionID: f.coding, Code: "x", Language: "python", Execution: passedExecution(),
		})
		require.NoError(t, err)
		return ans
	}

	t.Run("score is clamped into the question range", func(t *testing.T) {
		tests := []struct {
			name string
			in   float64
			want float64
		}{
			{"within", 6.5, 6.5},
			{"above max", 25, 10},
			{"negative", -3, 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t)
				a := f.started(t)
				ans := submit(t, f, a.ID)

				got, err := f.answers.EnrichCodeAnswer(ctx, ans.ID, model.AIReview{Score: tt.in, Notes: "review"})
				require.NoError(t, err)
				require.Equal(t, tt.want, got.Score)
				require.Equal(t, tt.want, *got.AIScore)
				require.Equal(t, "review", *got.AINotes)
				require.NotNil(t, got.EnrichedAt)
			})
		}
	})

	t.Run("MCQ answers cannot be enriched", func(t *testing.T) {
		f := newFixture(t)
		a := f.started(t)
		ans, err := f.answers.SubmitMCQAnswer(ctx, a.ID, model.SubmitMCQRequest{QuestionID: f.mcq1, SelectedOption: "A"})
		require.NoError(t, err)

		_, err = f.answers.EnrichCodeAnswer(ctx, ans.ID, model.AIReview{Score: 1})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown answer", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.answers.EnrichCodeAnswer(ctx, uuid.New(), model.AIReview{Score: 1})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("open assignment is not re-reported", func(t *testing.T) {
		f := newFixture(t)
		a := f.started(t)
		ans := submit(t, f, a.ID)

		_, err := f.answers.EnrichCodeAnswer(ctx, ans.ID, model.AIReview{Score: 5})
		require.NoError(t, err)
		require.Zero(t, f.hook.count())
	})

	t.Run("completed assignment is re-reported", func(t *testing.T) {
		f := newFixture(t)
		a := f.started(t)
		ans := submit(t, f, a.ID)
		_, err := f.assignments.EndAssignment(ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, 1, f.hook.count())

		_, err = f.answers.EnrichCodeAnswer(ctx, ans.ID, model.AIReview{Score: 5})
		require.NoError(t, err)
		require.Equal(t, 2, f.hook.count())
	})

	t.Run("review of an earlier submission is rejected", func(t *testing.T) {
		f := newFixture(t)
		a := f.started(t)
		first := submit(t, f, a.ID)
		second := submit(t, f, a.ID)
		require.Equal(t, first.ID, second.ID)
		require.True(t, second.SubmittedAt.After(first.SubmittedAt))

		_, err := f.answers.EnrichCodeAnswer(ctx, first.ID, model.AIReview{Score: 4, Notes: "old", SubmittedAt: &first.SubmittedAt})
		require.ErrorIs(t, err, ErrConflict)
		stored, err := f.answers.ListAnswers(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		require.Nil(t, stored[0].AIScore)

		got, err := f.answers.EnrichCodeAnswer(ctx, first.ID, model.AIReview{Score: 6, Notes: "current", SubmittedAt: &second.SubmittedAt})
		require.NoError(t, err)
		require.Equal(t, 6.0, *got.AIScore)

		got, err = f.answers.EnrichCodeAnswer(ctx, first.ID, model.AIReview{Score: 7})
		require.NoError(t, err)
		require.Equal(t, 7.0, *got.AIScore)
	})
}

func TestCatalogReadsStayOutsideTransactions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.started(t)

	_, err := f.answers.SubmitMCQAnswer(ctx, a.ID, model.SubmitMCQRequest{QuestionID: f.mcq1, SelectedOption: "A"})
	require.NoError(t, err)
	_, err = f.answers.SubmitCodeAnswer(ctx, a.ID, model.SubmitCodeRequest{
		QuestionID: f.coding, Code: "x", Language: "python", Execution: passedExecution(),
	})
	require.NoError(t, err)
	_, err = f.answers.SubmitMCQAnswer(ctx, a.ID, model.SubmitMCQRequest{QuestionID: uuid.New(), SelectedOption: "A"})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.assignments.EndAssignment(ctx, a.ID)
	require.NoError(t, err)
	_, err = f.reports.GenerateReport(ctx, a.ID)
	require.NoError(t, err)

	total, inTx := f.source.lookups()
	require.Equal(t, 4, total)
	require.Zero(t, inTx)
}

// Submits racing the end of the assignment either land before COMPLETED and
// show up in the report, or fail with InvalidState and leave nothing behind.
func TestSubmitRacesEndAssignment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.started(t)

	const submitters = 24
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		accepted   = map[uuid.UUID]bool{}
		unexpected []error
		start      = make(chan struct{})
		endErr     error
	)
	for i := range submitters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			var (
				questionID uuid.UUID
				err        error
			)
			switch i % 3 {
			case 0:
				questionID = f.mcq1
				_, err = f.answers.SubmitMCQAnswer(ctx, a.ID, model.SubmitMCQRequest{QuestionID: questionID, SelectedOption: "A"})
			case 1:
				questionID = f.mcq2
				_, err = f.answers.SubmitMCQAnswer(ctx, a.ID, model.SubmitMCQRequest{QuestionID: questionID, SelectedOption: "B"})
			default:
				questionID = f.coding
				_, err = f.answers.SubmitCodeAnswer(ctx, a.ID, model.SubmitCodeRequest{
					QuestionID: questionID, Code: "x", Language: "python", Execution: passedExecution(),
				})
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted[questionID] = true
			case !errors.Is(err, ErrInvalidState):
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		_, endErr = f.assignments.EndAssignment(ctx, a.ID)
	}()
	close(start)
	wg.Wait()

	require.NoError(t, endErr)
	require.Empty(t, unexpected)
	require.Zero(t, f.db.lateWriteCount())

	answers, err := f.answers.ListAnswers(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, answers, len(accepted))
	for _, ans := range answers {
		require.True(t, accepted[ans.QuestionID], "unexpected answer for %s", ans.QuestionID)
	}

	r, err := f.reports.GenerateReport(ctx, a.ID)
	require.NoError(t, err)
	mcqAccepted := 0
	for _, id := range []uuid.UUID{f.mcq1, f.mcq2} {
		if accepted[id] {
			mcqAccepted++
		}
	}
	require.Equal(t, mcqAccepted, r.MCQCorrect+r.MCQWrong)
	require.Equal(t, 2-mcqAccepted, r.MCQSkipped)

	_, err = f.answers.SubmitMCQAnswer(ctx, a.ID, model.SubmitMCQRequest{QuestionID: f.mcq1, SelectedOption: "A"})
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestGetExecutionDetail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.started(t)

	code, err := f.answers.SubmitCodeAnswer(ctx, a.ID, model.SubmitCodeRequest{
		QuestionID: f.coding, Code: "fmt.Println(1)", Language: "go", Execution: passedExecution(),
	})
	require.NoError(t, err)

	doc, err := f.answers.GetExecutionDetail(ctx, code.ID)
	require.NoError(t, err)
	require.Equal(t, "go", doc.Language)
	require.Equal(t, "ok\n", doc.Execution.Stdout)

	mcq, err := f.answers.SubmitMCQAnswer(ctx, a.ID, model.SubmitMCQRequest{QuestionID: f.mcq1, SelectedOption: "A"})
	require.NoError(t, err)
	_, err = f.answers.GetExecutionDetail(ctx, mcq.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
