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

// AnswerEnricher applies an external review to a coding answer.
type AnswerEnricher interface {
	EnrichCodeAnswer(ctx context.Context, answerID uuid.UUID, review model.AIReview) (*model.Answer, error)
}

// InternalHandler serves service-to-service endpoints.
type InternalHandler struct {
	answers AnswerEnricher
	log     zerolog.Logger
}

// NewInternalHandler creates a new InternalHandler.
func NewInternalHandler(answers AnswerEnricher, log zerolog.Logger) *InternalHandler {
	return &InternalHandler{
		answers: answers,
		log:     log.With().Str("component", "internal_handler").Logger(),
	}
}

// EnrichAnswer godoc
// POST /api/v1/internal/answers/:answer_id/enrich
// Synchronous counterpart of ai_review_results_queue.
func (h *InternalHandler) EnrichAnswer(c *gin.Context) {
	id, ok := parseID(c, "answer_id")
	if !ok {
		return
	}

	var req model.EnrichAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	answer, err := h.answers.EnrichCodeAnswer(c.Request.Context(), id, req.Review())
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"answer": answer})
}
