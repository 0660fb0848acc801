package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/renaissance/internal/events"
)

// RepairEventHandler turns session.inconsistent events into repair tasks.
type RepairEventHandler struct {
	runner   Submitter
	repairer SessionRepairer
	logger   *slog.Logger
}

var _ events.EventHandler = (*RepairEventHandler)(nil)

// NewRepairEventHandler creates a handler that submits repair tasks to runner.
func NewRepairEventHandler(runner Submitter, repairer SessionRepairer, logger *slog.Logger) *RepairEventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RepairEventHandler{
		runner:   runner,
		repairer: repairer,
		logger:   logger.With(slog.String("component", "repair_event_handler")),
	}
}

// HandleEvent implements events.EventHandler. Other event types are ignored.
func (h *RepairEventHandler) HandleEvent(ctx context.Context, event *events.Event) error {
	if event.Type != events.SessionInconsistent {
		return nil
	}

	payload, err := event.SessionPayload()
	if err != nil {
		h.logger.Error("failed to unmarshal payload",
			slog.String("event_id", event.ID.String()),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	t, err := NewRepairSessionTask(payload.SessionID, payload.Reason, h.repairer, h.logger)
	if err != nil {
		return fmt.Errorf("failed to create repair task: %w", err)
	}

	if err := h.runner.Submit(ctx, t); err != nil {
		h.logger.Error("failed to submit repair task",
			slog.String("task_id", t.ID().String()),
			slog.String("session_id", payload.SessionID.String()),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to submit repair task: %w", err)
	}

	h.logger.Info("repair task submitted",
		slog.String("task_id", t.ID().String()),
		slog.String("session_id", payload.SessionID.String()),
		slog.String("event_id", event.ID.String()))
	return nil
}
