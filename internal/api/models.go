package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/service/stats"
	"github.com/phrazzld/renaissance/internal/service/training"
)

// SubmitAttemptRequest is the payload of POST /api/sessions/{sessionID}/attempts.
type SubmitAttemptRequest struct {
	// AttemptOrdinal is the session index the client answered. Resending the
	// same ordinal replays the recorded result.
	AttemptOrdinal *int   `json:"attempt_ordinal" validate:"required,gte=0"`
	Recalled       string `json:"recalled"        validate:"required,max=1000"`
	ResponseTimeMs int64  `json:"response_time_ms" validate:"gte=0"`
}

// ReplaceSelectionRequest is the payload of PUT /api/selections.
type ReplaceSelectionRequest struct {
	Axes []training.Choice `json:"axes" validate:"required,min=3,max=6,dive"`
}

// SessionResponse describes a session and the phrase to flash next.
type SessionResponse struct {
	ID              uuid.UUID    `json:"id"`
	AxeID           string       `json:"axe_id"`
	AxeName         string       `json:"axe_name"`
	Stage           domain.Stage `json:"stage"`
	Phrase          string       `json:"phrase,omitempty"`
	PhraseOrdinal   int          `json:"phrase_ordinal"`
	FlashDurationMs int64        `json:"flash_duration_ms"`
	CurrentIndex    int          `json:"current_index"`
	PhraseCount     int          `json:"phrase_count"`
	CorrectCount    int          `json:"correct_count"`
	TotalAttempts   int          `json:"total_attempts"`
	Accuracy        int          `json:"accuracy"`
	Active          bool         `json:"active"`
	Completed       bool         `json:"completed"`
	Epoch           int64        `json:"epoch"`
	Resumed         bool         `json:"resumed"`
	StartedAt       time.Time    `json:"started_at"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
}

func sessionToResponse(v *training.SessionView) SessionResponse {
	s := v.Session
	return SessionResponse{
		ID:              s.ID,
		AxeID:           s.AxeID,
		AxeName:         v.AxeName,
		Stage:           s.Stage,
		Phrase:          v.Phrase,
		PhraseOrdinal:   v.PhraseOrdinal,
		FlashDurationMs: v.FlashDuration.Milliseconds(),
		CurrentIndex:    s.CurrentIndex,
		PhraseCount:     s.PhraseCount(),
		CorrectCount:    s.CorrectCount,
		TotalAttempts:   s.TotalAttempts,
		Accuracy:        s.Accuracy,
		Active:          s.Active,
		Completed:       s.Completed,
		Epoch:           s.Epoch,
		Resumed:         v.Resumed,
		StartedAt:       s.StartedAt,
		CompletedAt:     s.CompletedAt,
	}
}

// AttemptResponse reports the score of a submission and the updated session.
type AttemptResponse struct {
	IsCorrect      bool                `json:"is_correct"`
	Recalled       string              `json:"recalled"`
	Expected       string              `json:"expected"`
	Differences    []domain.Difference `json:"differences"`
	Replayed       bool                `json:"replayed"`
	Finalized      bool                `json:"finalized"`
	Passed         bool                `json:"passed"`
	StageCompleted bool                `json:"stage_completed"`
	Session        SessionResponse     `json:"session"`
}

func attemptToResponse(res *training.AdvanceResult) AttemptResponse {
	diffs := res.Result.Differences
	if diffs == nil {
		diffs = []domain.Difference{}
	}
	return AttemptResponse{
		IsCorrect:      res.Result.IsCorrect,
		Recalled:       res.Result.Recalled,
		Expected:       res.Result.Expected,
		Differences:    diffs,
		Replayed:       res.Replayed,
		Finalized:      res.Finalized,
		Passed:         res.Passed,
		StageCompleted: res.StageCompleted,
		Session:        sessionToResponse(res.Session),
	}
}

// UnlocksResponse lists which stages of an axe the learner may start.
type UnlocksResponse struct {
	AxeID   string                `json:"axe_id"`
	Unlocks map[domain.Stage]bool `json:"unlocks"`
}

// AxeResponse is one catalog entry.
type AxeResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Customizable bool     `json:"customizable"`
	Phrases      []string `json:"phrases"`
}

// SelectionResponse is one selected axe.
type SelectionResponse struct {
	AxeID         string     `json:"axe_id"`
	Order         int        `json:"order"`
	CustomName    string     `json:"custom_name,omitempty"`
	CustomPhrases []string   `json:"custom_phrases,omitempty"`
	Started       bool       `json:"started"`
	Completed     bool       `json:"completed"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func selectionsToResponse(sels []*domain.UserAxeSelection) []SelectionResponse {
	out := make([]SelectionResponse, 0, len(sels))
	for _, s := range sels {
		out = append(out, SelectionResponse{
			AxeID:         s.AxeID,
			Order:         s.Order,
			CustomName:    s.CustomName,
			CustomPhrases: s.CustomPhrases,
			Started:       s.Started,
			Completed:     s.Completed,
			StartedAt:     s.StartedAt,
			CompletedAt:   s.CompletedAt,
		})
	}
	return out
}

// AxeStatsResponse is the statistics of one axe.
type AxeStatsResponse struct {
	AxeID              string                `json:"axe_id"`
	OverallProgress    int                   `json:"overall_progress"`
	PerStageCompletion map[domain.Stage]bool `json:"per_stage_completion"`
	PerStageAccuracy   map[domain.Stage]int  `json:"per_stage_accuracy"`
	TotalAttempts      int                   `json:"total_attempts"`
	CorrectAttempts    int                   `json:"correct_attempts"`
	TimeSpentMs        int64                 `json:"time_spent_ms"`
	MasteryLevel       domain.Stage          `json:"mastery_level,omitempty"`
	Stale              bool                  `json:"stale"`
}

func axeStatsToResponse(s *stats.AxeStats) AxeStatsResponse {
	return AxeStatsResponse{
		AxeID:              s.AxeID,
		OverallProgress:    s.OverallProgress,
		PerStageCompletion: s.PerStageCompletion,
		PerStageAccuracy:   s.PerStageAccuracy,
		TotalAttempts:      s.TotalAttempts,
		CorrectAttempts:    s.CorrectAttempts,
		TimeSpentMs:        s.TimeSpent.Milliseconds(),
		MasteryLevel:       s.MasteryLevel,
		Stale:              s.Stale,
	}
}

// UserStatsResponse is the statistics of the learner across selected axes.
type UserStatsResponse struct {
	AxesSelected     int                `json:"axes_selected"`
	AxesCompleted    int                `json:"axes_completed"`
	AverageAccuracy  int                `json:"average_accuracy"`
	TotalAttempts    int                `json:"total_attempts"`
	TotalTimeSpentMs int64              `json:"total_time_spent_ms"`
	Axes             []AxeStatsResponse `json:"axes"`
	Stale            bool               `json:"stale"`
}

func userStatsToResponse(s *stats.UserStats) UserStatsResponse {
	axes := make([]AxeStatsResponse, 0, len(s.Axes))
	for _, a := range s.Axes {
		axes = append(axes, axeStatsToResponse(a))
	}
	return UserStatsResponse{
		AxesSelected:     s.AxesSelected,
		AxesCompleted:    s.AxesCompleted,
		AverageAccuracy:  s.AverageAccuracy,
		TotalAttempts:    s.TotalAttempts,
		TotalTimeSpentMs: s.TotalTimeSpent.Milliseconds(),
		Axes:             axes,
		Stale:            s.Stale,
	}
}
