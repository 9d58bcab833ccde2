package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/talentshire/assessment-core/internal/middleware"
	"github.com/talentshire/assessment-core/internal/model"
	"github.com/talentshire/assessment-core/internal/response"
	"github.com/talentshire/assessment-core/internal/validator"
)

// AnswerRecorder records candidate answers.
type AnswerRecorder interface {
	SubmitMCQAnswer(ctx context.Context, assignmentID uuid.UUID, req model.SubmitMCQRequest) (*model.Answer, error)
	SubmitCodeAnswer(ctx context.Context, assignmentID uuid.UUID, req model.SubmitCodeRequest) (*model.Answer, error)
}

// CandidateHandler handles the candidate portal. Every route is scoped to
// assignments owned by the token subject.
type CandidateHandler struct {
	assignments AssignmentManager
	answers     AnswerRecorder
	log         zerolog.Logger
}

// NewCandidateHandler creates a new CandidateHandler.
func NewCandidateHandler(assignments AssignmentManager, answers AnswerRecorder, log zerolog.Logger) *CandidateHandler {
	return &CandidateHandler{
		assignments: assignments,
		answers:     answers,
		log:         log.With().Str("component", "candidate_handler").Logger(),
	}
}

// ListAssignments godoc
// GET /api/v1/candidate/assignments
// Lists the caller's assignments, archived ones excluded.
func (h *CandidateHandler) ListAssignments(c *gin.Context) {
	candidateID, ok := candidateFromClaims(c)
	if !ok {
		return
	}

	list, err := h.assignments.ListByCandidate(c.Request.Context(), candidateID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assignments": list})
}

// GetAssignment godoc
// GET /api/v1/candidate/assignments/:id
func (h *CandidateHandler) GetAssignment(c *gin.Context) {
	a, ok := h.ownedAssignment(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{"assignment": a})
}

// StartAssignment godoc
// POST /api/v1/candidate/assignments/:id/start
func (h *CandidateHandler) StartAssignment(c *gin.Context) {
	h.transition(c, h.assignments.StartAssignment)
}

// EndAssignment godoc
// POST /api/v1/candidate/assignments/:id/end
// Completes the assignment and queues report generation.
func (h *CandidateHandler) EndAssignment(c *gin.Context) {
	h.transition(c, h.assignments.EndAssignment)
}

// SubmitMCQAnswer godoc
// POST /api/v1/candidate/assignments/:id/answers/mcq
func (h *CandidateHandler) SubmitMCQAnswer(c *gin.Context) {
	a, ok := h.ownedAssignment(c)
	if !ok {
		return
	}

	var req model.SubmitMCQRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	answer, err := h.answers.SubmitMCQAnswer(c.Request.Context(), a.ID, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"answer": answer})
}

// SubmitCodeAnswer godoc
// POST /api/v1/candidate/assignments/:id/answers/code
// Stores code and its execution result. Scoring happens later through enrichment.
func (h *CandidateHandler) SubmitCodeAnswer(c *gin.Context) {
	a, ok := h.ownedAssignment(c)
	if !ok {
		return
	}

	var req model.SubmitCodeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	answer, err := h.answers.SubmitCodeAnswer(c.Request.Context(), a.ID, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"answer": answer})
}

func (h *CandidateHandler) transition(c *gin.Context, fn func(context.Context, uuid.UUID) (*model.Assignment, error)) {
	a, ok := h.ownedAssignment(c)
	if !ok {
		return
	}

	updated, err := fn(c.Request.Context(), a.ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assignment": updated})
}

// ownedAssignment loads the :id assignment and checks it belongs to the caller.
// Foreign assignments answer 404 so their existence is not disclosed.
func (h *CandidateHandler) ownedAssignment(c *gin.Context) (*model.Assignment, bool) {
	candidateID, ok := candidateFromClaims(c)
	if !ok {
		return nil, false
	}
	id, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}

	a, err := h.assignments.GetAssignment(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return nil, false
	}
	if a.CandidateID != candidateID {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return nil, false
	}
	return a, true
}

func candidateFromClaims(c *gin.Context) (uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return uuid.Nil, false
	}
	id, err := claims.SubjectID()
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return uuid.Nil, false
	}
	return id, true
}
