package domain

import (
	"errors"
	"fmt"
	"time"
)

// Stage is one ordered step of mastery for an axe.
type Stage string

// The mastery stages, in unlock order. Level1 to Level3 are the "encrage"
// stages and require a perfect session to complete.
const (
	StageDiscovery Stage = "discovery"
	StageLevel1    Stage = "level1"
	StageLevel2    Stage = "level2"
	StageLevel3    Stage = "level3"
)

// ErrInvalidStage is returned when a stage name is not one of the known stages.
var ErrInvalidStage = errors.New("invalid stage")

// Stages lists every stage in unlock order.
var Stages = []Stage{StageDiscovery, StageLevel1, StageLevel2, StageLevel3}

// ParseStage converts a string into a Stage.
func ParseStage(s string) (Stage, error) {
	stage := Stage(s)
	if !stage.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStage, s)
	}
	return stage, nil
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	return s.Index() >= 0
}

// Index returns the zero-based position of the stage, or -1 if unknown.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// IsEncrage reports whether the stage is one of the accuracy-gated levels.
func (s Stage) IsEncrage() bool {
	return s == StageLevel1 || s == StageLevel2 || s == StageLevel3
}

// Previous returns the stage that must be completed before s unlocks.
// The second return value is false for discovery and unknown stages.
func (s Stage) Previous() (Stage, bool) {
	i := s.Index()
	if i <= 0 {
		return "", false
	}
	return Stages[i-1], true
}

// Next returns the stage unlocked by completing s.
// The second return value is false for level3 and unknown stages.
func (s Stage) Next() (Stage, bool) {
	i := s.Index()
	if i < 0 || i == len(Stages)-1 {
		return "", false
	}
	return Stages[i+1], true
}

// String implements fmt.Stringer.
func (s Stage) String() string {
	return string(s)
}

// Errors returned by FlashPolicy.Validate.
var (
	ErrFlashDurationNotPositive = errors.New("flash duration must be positive")
	ErrFlashDurationOrder       = errors.New("encrage flash durations must strictly decrease")
)

// FlashPolicy holds how long a phrase stays visible at each stage.
type FlashPolicy struct {
	Discovery time.Duration
	Level1    time.Duration
	Level2    time.Duration
	Level3    time.Duration
}

// DefaultFlashPolicy returns the reference durations: a short fixed flash for
// discovery and strictly shrinking flashes across the encrage levels.
func DefaultFlashPolicy() FlashPolicy {
	return FlashPolicy{
		Discovery: 3 * time.Second,
		Level1:    4 * time.Second,
		Level2:    2500 * time.Millisecond,
		Level3:    1500 * time.Millisecond,
	}
}

// For returns the flash duration for a stage.
func (p FlashPolicy) For(stage Stage) (time.Duration, error) {
	switch stage {
	case StageDiscovery:
		return p.Discovery, nil
	case StageLevel1:
		return p.Level1, nil
	case StageLevel2:
		return p.Level2, nil
	case StageLevel3:
		return p.Level3, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidStage, stage)
	}
}

// Validate checks that every duration is positive and that level1 > level2 > level3.
func (p FlashPolicy) Validate() error {
	for _, d := range []time.Duration{p.Discovery, p.Level1, p.Level2, p.Level3} {
		if d <= 0 {
			return ErrFlashDurationNotPositive
		}
	}
	if !(p.Level1 > p.Level2 && p.Level2 > p.Level3) {
		return ErrFlashDurationOrder
	}
	return nil
}
