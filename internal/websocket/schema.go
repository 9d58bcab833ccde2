package websocket

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/talentshire/assessment-core/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionMCQ  Action = "mcq"
	ActionCode Action = "code"
	ActionEnd  Action = "end"
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
// Payload holds the action body, decoded once the action is known.
type RequestEnvelope struct {
	Action    Action          `json:"action"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventSaved     Event = "saved"
	EventCompleted Event = "completed"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// SavedResponse acknowledges a recorded answer.
type SavedResponse struct {
	Event     Event         `json:"event"`
	RequestID string        `json:"request_id,omitempty"`
	Answer    *model.Answer `json:"answer"`
}

// CompletedResponse is sent once the candidate ends the assignment.
type CompletedResponse struct {
	Event        Event                  `json:"event"`
	RequestID    string                 `json:"request_id,omitempty"`
	AssignmentID uuid.UUID              `json:"assignment_id"`
	Status       model.AssignmentStatus `json:"status"`
}

type ErrorResponse struct {
	Event     Event             `json:"event"`
	RequestID string            `json:"request_id,omitempty"`
	Code      string            `json:"code"`
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
}

type PongResponse struct {
	Event     Event  `json:"event"`
	RequestID string `json:"request_id,omitempty"`
}
