package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/domain"
)

// Event types published by the training service.
const (
	SessionFinalized    = "session.finalized"
	SessionRestarted    = "session.restarted"
	StageCompleted      = "stage.completed"
	SessionInconsistent = "session.inconsistent"
	SelectionReplaced   = "selection.replaced"
)

// Event is a typed notification with a JSON payload.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the event type constants
	Type string `json:"type"`

	// Payload contains the event-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// SessionPayload identifies the session an event is about.
type SessionPayload struct {
	SessionID uuid.UUID    `json:"session_id"`
	UserID    uuid.UUID    `json:"user_id"`
	AxeID     string       `json:"axe_id"`
	Stage     domain.Stage `json:"stage"`
	// Reason is set on session.inconsistent events.
	Reason string `json:"reason,omitempty"`
}

// SelectionPayload names the axes a selection change touched: those dropped,
// added or kept.
type SelectionPayload struct {
	UserID uuid.UUID `json:"user_id"`
	AxeIDs []string  `json:"axe_ids"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// SessionPayload decodes the payload of a session event.
func (e *Event) SessionPayload() (SessionPayload, error) {
	var p SessionPayload
	err := e.UnmarshalPayload(&p)
	return p, err
}

// SelectionPayload decodes the payload of a selection.replaced event.
func (e *Event) SelectionPayload() (SelectionPayload, error) {
	var p SelectionPayload
	err := e.UnmarshalPayload(&p)
	return p, err
}

// NewEvent creates a new Event with the specified type and payload.
func NewEvent(eventType string, payload any, at time.Time) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: at,
	}, nil
}

// NewSessionEvent builds a session lifecycle event.
func NewSessionEvent(eventType string, session *domain.GameSession, reason string, at time.Time) (*Event, error) {
	return NewEvent(eventType, SessionPayload{
		SessionID: session.ID,
		UserID:    session.UserID,
		AxeID:     session.AxeID,
		Stage:     session.Stage,
		Reason:    reason,
	}, at)
}

// NewSelectionEvent builds a selection.replaced event.
func NewSelectionEvent(user uuid.UUID, axeIDs []string, at time.Time) (*Event, error) {
	return NewEvent(SelectionReplaced, SelectionPayload{UserID: user, AxeIDs: axeIDs}, at)
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *Event) error
}
