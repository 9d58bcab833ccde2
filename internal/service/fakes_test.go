package service

import (
	"context"
	"errors"
	"io"
	"maps"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/talentshire/assessment-core/internal/model"
	"github.com/talentshire/assessment-core/internal/repository"
)

var errCommit = errors.New("commit failed")

// fakeDB stands in for PostgreSQL. txMu serializes transactions the way the
// assignment row lock does; mu guards the maps for single statements.
type fakeDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	assignments map[uuid.UUID]model.Assignment
	answers     map[uuid.UUID]model.Answer
	reports     map[uuid.UUID]model.Report // keyed by assignment id

	failNextCommit bool

	openTx     int
	lastStamp  time.Time
	lateWrites int // answer writes while the assignment was not STARTED
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		assignments: map[uuid.UUID]model.Assignment{},
		answers:     map[uuid.UUID]model.Answer{},
		reports:     map[uuid.UUID]model.Report{},
	}
}

// WithTx runs fn with a nil tx and restores the previous state on error.
func (db *fakeDB) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	db.openTx++
	assignments, answers, reports := maps.Clone(db.assignments), maps.Clone(db.answers), maps.Clone(db.reports)
	db.mu.Unlock()
	defer func() {
		db.mu.Lock()
		db.openTx--
		db.mu.Unlock()
	}()

	err := fn(nil)
	if err == nil && db.failNextCommit {
		db.failNextCommit = false
		err = errCommit
	}
	if err != nil {
		db.mu.Lock()
		db.assignments, db.answers, db.reports = assignments, answers, reports
		db.mu.Unlock()
		return err
	}
	return nil
}

func (db *fakeDB) inTx() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.openTx > 0
}

// stamp returns a strictly increasing time so resubmissions are ordered.
// Callers hold mu.
func (db *fakeDB) stamp() time.Time {
	now := time.Now()
	if !now.After(db.lastStamp) {
		now = db.lastStamp.Add(time.Microsecond)
	}
	db.lastStamp = now
	return now
}

func (db *fakeDB) lateWriteCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.lateWrites
}

func (db *fakeDB) answerCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.answers)
}

func (db *fakeDB) reportFor(assignmentID uuid.UUID) (model.Report, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	r, ok := db.reports[assignmentID]
	return r, ok
}

func (db *fakeDB) setStatus(id uuid.UUID, status model.AssignmentStatus) {
	db.mu.Lock()
	defer db.mu.Unlock()
	a := db.assignments[id]
	a.Status = status
	db.assignments[id] = a
}

type fakeAssignmentStore struct{ db *fakeDB }

func (s fakeAssignmentStore) Create(_ context.Context, _ pgx.Tx, a *model.Assignment) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.assignments {
		if existing.TestID == a.TestID && existing.CandidateID == a.CandidateID {
			return repository.ErrDuplicate
		}
	}
	a.ID = uuid.New()
	a.Status = model.AssignmentStatusAssigned
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	s.db.assignments[a.ID] = *a
	return nil
}

func (s fakeAssignmentStore) GetByID(_ context.Context, _ pgx.Tx, id uuid.UUID) (*model.Assignment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.assignments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (s fakeAssignmentStore) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Assignment, error) {
	return s.GetByID(ctx, tx, id)
}

func (s fakeAssignmentStore) UpdateLifecycle(_ context.Context, _ pgx.Tx, a *model.Assignment) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.assignments[a.ID]; !ok {
		return repository.ErrNotFound
	}
	a.UpdatedAt = time.Now()
	s.db.assignments[a.ID] = *a
	return nil
}

func (s fakeAssignmentStore) SetScore(_ context.Context, _ pgx.Tx, id uuid.UUID, score float64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.assignments[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Score = &score
	s.db.assignments[id] = a
	return nil
}

func (s fakeAssignmentStore) Archive(_ context.Context, _ pgx.Tx, a *model.Assignment, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	stored, ok := s.db.assignments[a.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.ArchivedAt == nil {
		stored.ArchivedAt = &at
	}
	s.db.assignments[a.ID] = stored
	*a = stored
	return nil
}

func (s fakeAssignmentStore) ListByTest(_ context.Context, testID uuid.UUID) ([]model.Assignment, error) {
	return s.filter(func(a model.Assignment) bool { return a.TestID == testID }), nil
}

func (s fakeAssignmentStore) ListByCandidate(_ context.Context, candidateID uuid.UUID) ([]model.Assignment, error) {
	return s.filter(func(a model.Assignment) bool { return a.CandidateID == candidateID && a.ArchivedAt == nil }), nil
}

func (s fakeAssignmentStore) ListOverdueIDs(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	overdue := s.filter(func(a model.Assignment) bool {
		open := a.Status == model.AssignmentStatusAssigned || a.Status == model.AssignmentStatusStarted
		return open && a.ScheduledEnd != nil && a.ScheduledEnd.Before(now)
	})
	var ids []uuid.UUID
	for i, a := range overdue {
		if i == limit {
			break
		}
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (s fakeAssignmentStore) filter(keep func(model.Assignment) bool) []model.Assignment {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.Assignment
	for _, a := range s.db.assignments {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type fakeAnswerStore struct{ db *fakeDB }

func (s fakeAnswerStore) Upsert(_ context.Context, _ pgx.Tx, a *model.Answer) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.assignments[a.AssignmentID].Status != model.AssignmentStatusStarted {
		s.db.lateWrites++
	}
	now := s.db.stamp()
	a.ID = uuid.New()
	for id, existing := range s.db.answers {
		if existing.AssignmentID == a.AssignmentID && existing.QuestionID == a.QuestionID {
			a.ID = id
			break
		}
	}
	a.SubmittedAt = now
	a.UpdatedAt = now
	s.db.answers[a.ID] = *a
	return nil
}

func (s fakeAnswerStore) GetByID(_ context.Context, _ pgx.Tx, id uuid.UUID) (*model.Answer, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.answers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (s fakeAnswerStore) ListByAssignment(_ context.Context, _ pgx.Tx, assignmentID uuid.UUID) ([]model.Answer, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.Answer
	for _, a := range s.db.answers {
		if a.AssignmentID == assignmentID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID.String() < out[j].QuestionID.String() })
	return out, nil
}

func (s fakeAnswerStore) Enrich(_ context.Context, _ pgx.Tx, id uuid.UUID, aiScore float64, aiNotes string, at time.Time) (*model.Answer, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.answers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a.AIScore = &aiScore
	a.AINotes = &aiNotes
	a.Score = aiScore
	if a.EnrichedAt == nil {
		a.EnrichedAt = &at
	}
	s.db.answers[id] = a
	return &a, nil
}

type fakeReportStore struct{ db *fakeDB }

func (s fakeReportStore) Upsert(_ context.Context, _ pgx.Tx, r *model.Report) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if existing, ok := s.db.reports[r.AssignmentID]; ok {
		r.ID = existing.ID
	} else {
		r.ID = uuid.New()
	}
	s.db.reports[r.AssignmentID] = *r
	return nil
}

func (s fakeReportStore) GetByID(_ context.Context, id uuid.UUID) (*model.Report, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, r := range s.db.reports {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s fakeReportStore) GetByAssignment(_ context.Context, _ pgx.Tx, assignmentID uuid.UUID) (*model.Report, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.reports[assignmentID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

// fakeCatalogSource is the authoritative catalog behind CatalogService.
type fakeCatalogSource struct {
	mu         sync.Mutex
	tests      map[uuid.UUID]model.Test
	candidates map[uuid.UUID]bool
	questions  map[uuid.UUID][]model.Question
	listCalls  int
	err        error

	db       *fakeDB // when set, listInTx counts lookups made inside a transaction
	listInTx int
}

func newFakeCatalogSource() *fakeCatalogSource {
	return &fakeCatalogSource{
		tests:      map[uuid.UUID]model.Test{},
		candidates: map[uuid.UUID]bool{},
		questions:  map[uuid.UUID][]model.Question{},
	}
}

func (c *fakeCatalogSource) GetTest(_ context.Context, id uuid.UUID) (*model.Test, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	t, ok := c.tests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (c *fakeCatalogSource) CandidateExists(_ context.Context, id uuid.UUID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	return c.candidates[id], nil
}

func (c *fakeCatalogSource) ListTestQuestions(_ context.Context, testID uuid.UUID) ([]model.Question, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listCalls++
	if c.db != nil && c.db.inTx() {
		c.listInTx++
	}
	if c.err != nil {
		return nil, c.err
	}
	return append([]model.Question(nil), c.questions[testID]...), nil
}

func (c *fakeCatalogSource) lookups() (total, inTx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listCalls, c.listInTx
}

func (c *fakeCatalogSource) addQuestion(testID uuid.UUID, kind model.QuestionKind, maxMarks float64, correct string) uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := uuid.New()
	c.questions[testID] = append(c.questions[testID], model.Question{
		Ref:           model.QuestionRef{Kind: kind, ID: id},
		TestID:        testID,
		MaxMarks:      maxMarks,
		OrderIndex:    len(c.questions[testID]),
		CorrectOption: correct,
	})
	return id
}

type fakeMirror struct {
	mu      sync.Mutex
	docs    map[string]model.CodeSubmissionDocument
	saveErr error
	saves   int
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{docs: map[string]model.CodeSubmissionDocument{}}
}

func mirrorKey(assignmentID, questionID string) string { return assignmentID + "/" + questionID }

func (m *fakeMirror) Get(_ context.Context, assignmentID, questionID string) (*model.CodeSubmissionDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[mirrorKey(assignmentID, questionID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &doc, nil
}

func (m *fakeMirror) GetByAnswer(_ context.Context, answerID string) (*model.CodeSubmissionDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.docs {
		if doc.AnswerID == answerID {
			return &doc, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *fakeMirror) Save(_ context.Context, doc *model.CodeSubmissionDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.docs[mirrorKey(doc.AssignmentID, doc.QuestionID)] = *doc
	return nil
}

func (m *fakeMirror) Delete(_ context.Context, assignmentID, questionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, mirrorKey(assignmentID, questionID))
	return nil
}

func (m *fakeMirror) doc(assignmentID, questionID uuid.UUID) (model.CodeSubmissionDocument, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[mirrorKey(assignmentID.String(), questionID.String())]
	return doc, ok
}

type recordingHook struct {
	mu    sync.Mutex
	calls []uuid.UUID
	err   error
}

func (h *recordingHook) AssignmentCompleted(_ context.Context, id uuid.UUID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, id)
	return h.err
}

func (h *recordingHook) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fixture wires the three lifecycle services over shared fakes with one
// test holding two MCQ questions (2 marks each, correct "A"/"C") and one
// coding question (10 marks).
type fixture struct {
	db      *fakeDB
	source  *fakeCatalogSource
	catalog *CatalogService
	mirror  *fakeMirror
	hook    *recordingHook
	clock   *fakeClock

	assignments *AssignmentService
	answers     *AnswerService
	reports     *ReportService

	testID      uuid.UUID
	candidateID uuid.UUID
	mcq1        uuid.UUID
	mcq2        uuid.UUID
	coding      uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := zerolog.New(io.Discard)
	f := &fixture{
		db:          newFakeDB(),
		source:      newFakeCatalogSource(),
		mirror:      newFakeMirror(),
		hook:        &recordingHook{},
		clock:       &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		testID:      uuid.New(),
		candidateID: uuid.New(),
	}
	f.source.tests[f.testID] = model.Test{ID: f.testID, Name: "Backend screening", DurationMinutes: 60, Status: "published"}
	f.source.candidates[f.candidateID] = true
	f.mcq1 = f.source.addQuestion(f.testID, model.QuestionKindMCQ, 2, "A")
	f.mcq2 = f.source.addQuestion(f.testID, model.QuestionKindMCQ, 2, "C")
	f.coding = f.source.addQuestion(f.testID, model.QuestionKindCoding, 10, "")

	f.source.db = f.db
	f.catalog = NewCatalogService(f.source, nil, 0, log)

	assignments := fakeAssignmentStore{db: f.db}
	answers := fakeAnswerStore{db: f.db}

	f.assignments = NewAssignmentService(f.db, assignments, f.catalog, f.hook, log)
	f.assignments.now = f.clock.Now
	f.answers = NewAnswerService(f.db, assignments, answers, f.catalog, f.mirror, f.hook, log)
	f.answers.now = f.clock.Now
	f.reports = NewReportService(f.db, assignments, answers, fakeReportStore{db: f.db}, f.catalog, log)
	f.reports.now = f.clock.Now
	return f
}

func (f *fixture) create(t *testing.T) *model.Assignment {
	t.Helper()
	a, err := f.assignments.CreateAssignment(context.Background(), model.CreateAssignmentRequest{
		TestID:      f.testID,
		CandidateID: f.candidateID,
	})
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	return a
}

func (f *fixture) started(t *testing.T) *model.Assignment {
	t.Helper()
	a := f.create(t)
	a, err := f.assignments.StartAssignment(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("start assignment: %v", err)
	}
	return a
}

func passedExecution() model.ExecutionResult {
	return model.ExecutionResult{
		Status:      model.ExecutionStatusSuccess,
		Stdout:      "ok\n",
		Output:      "ok",
		Passed:      true,
		PassedCases: 5,
		TotalCases:  5,
	}
}
