package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/talentshire/assessment-core/internal/model"
	"github.com/talentshire/assessment-core/internal/response"
	"github.com/talentshire/assessment-core/internal/validator"
)

// AssignmentManager is the lifecycle surface used by the HTTP and WebSocket handlers.
type AssignmentManager interface {
	CreateAssignment(ctx context.Context, req model.CreateAssignmentRequest) (*model.Assignment, error)
	GetAssignment(ctx context.Context, id uuid.UUID) (*model.Assignment, error)
	ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Assignment, error)
	ListByCandidate(ctx context.Context, candidateID uuid.UUID) ([]model.Assignment, error)
	StartAssignment(ctx context.Context, id uuid.UUID) (*model.Assignment, error)
	EndAssignment(ctx context.Context, id uuid.UUID) (*model.Assignment, error)
	ExpireAssignment(ctx context.Context, id uuid.UUID) (*model.Assignment, error)
	ArchiveAssignment(ctx context.Context, id uuid.UUID) (*model.Assignment, error)
}

// AnswerReader lists recorded answers.
type AnswerReader interface {
	ListAnswers(ctx context.Context, assignmentID uuid.UUID) ([]model.Answer, error)
	GetExecutionDetail(ctx context.Context, answerID uuid.UUID) (*model.CodeSubmissionDocument, error)
}

// AssignmentHandler handles the admin-facing assignment endpoints.
type AssignmentHandler struct {
	assignments AssignmentManager
	answers     AnswerReader
	log         zerolog.Logger
}

// NewAssignmentHandler creates a new AssignmentHandler.
func NewAssignmentHandler(assignments AssignmentManager, answers AnswerReader, log zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		assignments: assignments,
		answers:     answers,
		log:         log.With().Str("component", "assignment_handler").Logger(),
	}
}

// CreateAssignment godoc
// POST /api/v1/admin/assignments
// Assigns a test to a candidate. The assignment starts in ASSIGNED.
func (h *AssignmentHandler) CreateAssignment(c *gin.Context) {
	var req model.CreateAssignmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if !req.ScheduleValid() {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"scheduled_end": "scheduled_end must be after scheduled_start",
		})
		return
	}

	a, err := h.assignments.CreateAssignment(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"assignment": a})
}

// GetAssignment godoc
// GET /api/v1/admin/assignments/:id
func (h *AssignmentHandler) GetAssignment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	a, err := h.assignments.GetAssignment(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assignment": a})
}

// ListTestAssignments godoc
// GET /api/v1/admin/tests/:test_id/assignments
func (h *AssignmentHandler) ListTestAssignments(c *gin.Context) {
	testID, ok := parseID(c, "test_id")
	if !ok {
		return
	}

	list, err := h.assignments.ListByTest(c.Request.Context(), testID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assignments": list})
}

// ListAnswers godoc
// GET /api/v1/admin/assignments/:id/answers
func (h *AssignmentHandler) ListAnswers(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	answers, err := h.answers.ListAnswers(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"answers": answers})
}

// GetExecutionDetail godoc
// GET /api/v1/admin/answers/:answer_id/execution
// Returns the full execution result and source of a coding answer.
func (h *AssignmentHandler) GetExecutionDetail(c *gin.Context) {
	id, ok := parseID(c, "answer_id")
	if !ok {
		return
	}

	doc, err := h.answers.GetExecutionDetail(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"submission": doc})
}

// ExpireAssignment godoc
// POST /api/v1/admin/assignments/:id/expire
func (h *AssignmentHandler) ExpireAssignment(c *gin.Context) {
	h.apply(c, h.assignments.ExpireAssignment)
}

// ArchiveAssignment godoc
// POST /api/v1/admin/assignments/:id/archive
// Hides a finished assignment from the candidate listing.
func (h *AssignmentHandler) ArchiveAssignment(c *gin.Context) {
	h.apply(c, h.assignments.ArchiveAssignment)
}

func (h *AssignmentHandler) apply(c *gin.Context, fn func(context.Context, uuid.UUID) (*model.Assignment, error)) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	a, err := fn(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assignment": a})
}
