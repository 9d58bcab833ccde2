package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/talentshire/assessment-core/internal/middleware"
	"github.com/talentshire/assessment-core/internal/model"
	"github.com/talentshire/assessment-core/internal/response"
	"github.com/talentshire/assessment-core/internal/service"
	"github.com/talentshire/assessment-core/internal/validator"
	ws "github.com/talentshire/assessment-core/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams answer submissions for one assignment over a WebSocket.
type WSHandler struct {
	candidate *CandidateHandler
	limiter   *middleware.RateLimiter
	log       zerolog.Logger
	upgrader  websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. limiter may be nil to disable
// per-frame rate limiting.
func NewWSHandler(candidate *CandidateHandler, limiter *middleware.RateLimiter, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		candidate: candidate,
		limiter:   limiter,
		log:       log.With().Str("component", "ws_handler").Logger(),
		upgrader:  buildUpgrader(allowedOrigins),
	}
}

// AssignmentStream godoc
// WS /ws/v1/candidate/assignments/:id/stream
// Accepts mcq, code, end and ping frames for an assignment the caller owns.
func (h *WSHandler) AssignmentStream(c *gin.Context) {
	// Ownership is checked before the upgrade so failures are plain HTTP errors.
	a, ok := h.candidate.ownedAssignment(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(ws.MaxMessageSize)

	ctx := c.Request.Context()
	rateKey := "candidate:" + a.CandidateID.String()
	wsLog := h.log.With().
		Str("assignment_id", a.ID.String()).
		Str("candidate_id", a.CandidateID.String()).
		Logger()

	wsLog.Info().Msg("Candidate connected")

	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				ws.WriteError(conn, "", string(response.ErrInvalidPayload), "malformed frame", nil)
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		if h.limiter != nil && msg.Action != ws.ActionPing && !h.limiter.Allow(rateKey) {
			ws.WriteError(conn, msg.RequestID, string(response.ErrRateLimitExceeded), response.GetMessage(response.ErrRateLimitExceeded), nil)
			continue
		}

		switch msg.Action {
		case ws.ActionMCQ:
			var req model.SubmitMCQRequest
			if !decodeFrame(conn, &msg, &req) {
				continue
			}
			answer, err := h.candidate.answers.SubmitMCQAnswer(ctx, a.ID, req)
			h.writeSaved(conn, wsLog, msg.RequestID, answer, err)

		case ws.ActionCode:
			var req model.SubmitCodeRequest
			if !decodeFrame(conn, &msg, &req) {
				continue
			}
			answer, err := h.candidate.answers.SubmitCodeAnswer(ctx, a.ID, req)
			h.writeSaved(conn, wsLog, msg.RequestID, answer, err)

		case ws.ActionEnd:
			done, err := h.candidate.assignments.EndAssignment(ctx, a.ID)
			if err != nil {
				writeServiceError(conn, wsLog, msg.RequestID, err)
				continue
			}
			wsLog.Info().Msg("Assignment completed over stream")
			ws.WriteTyped(conn, ws.CompletedResponse{
				Event:        ws.EventCompleted,
				RequestID:    msg.RequestID,
				AssignmentID: done.ID,
				Status:       done.Status,
			})
			return

		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong, RequestID: msg.RequestID})

		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, msg.RequestID, string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action), nil)
		}
	}
}

func (h *WSHandler) writeSaved(conn *websocket.Conn, log zerolog.Logger, requestID string, answer *model.Answer, err error) {
	if err != nil {
		writeServiceError(conn, log, requestID, err)
		return
	}
	ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, RequestID: requestID, Answer: answer})
}

// decodeFrame unmarshals and validates the frame payload. On failure it
// answers with an error event and returns false.
func decodeFrame(conn *websocket.Conn, msg *ws.RequestEnvelope, dst interface{}) bool {
	if len(msg.Payload) == 0 {
		ws.WriteError(conn, msg.RequestID, string(response.ErrInvalidPayload), "payload is required", nil)
		return false
	}
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		ws.WriteError(conn, msg.RequestID, string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload), map[string]string{"detail": err.Error()})
		return false
	}
	if fields := validator.Struct(dst); fields != nil {
		ws.WriteError(conn, msg.RequestID, string(response.ErrValidation), response.GetMessage(response.ErrValidation), fields)
		return false
	}
	return true
}

func writeServiceError(conn *websocket.Conn, log zerolog.Logger, requestID string, err error) {
	var se *service.Error
	if !errors.As(err, &se) {
		log.Error().Err(err).Msg("Unclassified stream error")
		ws.WriteError(conn, requestID, string(response.ErrInternal), response.GetMessage(response.ErrInternal), nil)
		return
	}

	switch se.Kind {
	case service.KindNotFound:
		ws.WriteError(conn, requestID, string(response.ErrNotFound), se.Message, nil)
	case service.KindConflict:
		ws.WriteError(conn, requestID, string(response.ErrConflict), se.Message, nil)
	case service.KindInvalidState:
		ws.WriteError(conn, requestID, string(response.ErrInvalidState), se.Message, stateFields(se))
	default:
		log.Error().Err(err).Msg("Stream backing store failure")
		ws.WriteError(conn, requestID, string(response.ErrPersistence), response.GetMessage(response.ErrPersistence), nil)
	}
}
