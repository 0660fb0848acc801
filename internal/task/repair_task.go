package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// SessionRepairer recomputes a session's counters from its attempt ledger.
type SessionRepairer interface {
	Repair(ctx context.Context, sessionID uuid.UUID) error
}

// RepairPayload is the persisted payload of a session repair task.
type RepairPayload struct {
	SessionID uuid.UUID `json:"session_id"`
	Reason    string    `json:"reason,omitempty"`
}

// RepairSessionTask repairs one session. The repair itself is idempotent, so
// a task that is recovered and executed twice is harmless.
type RepairSessionTask struct {
	id       uuid.UUID
	payload  RepairPayload
	raw      []byte
	status   TaskStatus
	repairer SessionRepairer
	logger   *slog.Logger
}

var _ Task = (*RepairSessionTask)(nil)

// NewRepairSessionTask creates a pending repair task for sessionID.
func NewRepairSessionTask(
	sessionID uuid.UUID,
	reason string,
	repairer SessionRepairer,
	logger *slog.Logger,
) (*RepairSessionTask, error) {
	payload := RepairPayload{SessionID: sessionID, Reason: reason}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode repair payload: %w", err)
	}
	return newRepairSessionTask(uuid.New(), payload, raw, TaskStatusPending, repairer, logger)
}

func newRepairSessionTask(
	id uuid.UUID,
	payload RepairPayload,
	raw []byte,
	status TaskStatus,
	repairer SessionRepairer,
	logger *slog.Logger,
) (*RepairSessionTask, error) {
	if repairer == nil {
		return nil, fmt.Errorf("repairer cannot be nil")
	}
	if payload.SessionID == uuid.Nil {
		return nil, fmt.Errorf("repair task requires a session ID")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RepairSessionTask{
		id:       id,
		payload:  payload,
		raw:      raw,
		status:   status,
		repairer: repairer,
		logger: logger.With(
			slog.String("task_id", id.String()),
			slog.String("session_id", payload.SessionID.String())),
	}, nil
}

// RepairFactory rebuilds repair tasks from stored records.
func RepairFactory(repairer SessionRepairer, logger *slog.Logger) Factory {
	return func(rec Record) (Task, error) {
		var payload RepairPayload
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode repair payload: %w", err)
		}
		return newRepairSessionTask(rec.ID, payload, rec.Payload, rec.Status, repairer, logger)
	}
}

// ID implements Task.
func (t *RepairSessionTask) ID() uuid.UUID { return t.id }

// Type implements Task.
func (t *RepairSessionTask) Type() string { return TaskTypeSessionRepair }

// Payload implements Task.
func (t *RepairSessionTask) Payload() []byte { return t.raw }

// Status implements Task.
func (t *RepairSessionTask) Status() TaskStatus { return t.status }

// SessionID returns the session this task repairs.
func (t *RepairSessionTask) SessionID() uuid.UUID { return t.payload.SessionID }

// Execute implements Task.
func (t *RepairSessionTask) Execute(ctx context.Context) error {
	t.status = TaskStatusProcessing
	t.logger.Info("repairing session", slog.String("reason", t.payload.Reason))

	if err := t.repairer.Repair(ctx, t.payload.SessionID); err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("session repair failed: %w", err)
	}

	t.status = TaskStatusCompleted
	return nil
}
