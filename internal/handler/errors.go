package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/talentshire/assessment-core/internal/response"
	"github.com/talentshire/assessment-core/internal/service"
)

// respondError maps a lifecycle error to the HTTP envelope.
func respondError(c *gin.Context, log zerolog.Logger, err error) {
	var se *service.Error
	if !errors.As(err, &se) {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Unclassified error")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	switch se.Kind {
	case service.KindNotFound:
		response.FailWithMessage(c, http.StatusNotFound, response.ErrNotFound, se.Message, nil)
	case service.KindConflict:
		response.FailWithMessage(c, http.StatusConflict, response.ErrConflict, se.Message, nil)
	case service.KindInvalidState:
		response.FailWithMessage(c, http.StatusConflict, response.ErrInvalidState, se.Message, stateFields(se))
	case service.KindPersistence:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Backing store failure")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrPersistence)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

func stateFields(se *service.Error) map[string]string {
	expected := make([]string, len(se.Expected))
	for i, s := range se.Expected {
		expected[i] = string(s)
	}
	return map[string]string{
		"current_state":  string(se.Current),
		"expected_state": strings.Join(expected, ","),
	}
}

// parseID reads a uuid path parameter, writing 400 INVALID_ID when malformed.
func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidID, map[string]string{param: "must be a valid uuid"})
		return uuid.Nil, false
	}
	return id, true
}
