package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseStage(t *testing.T) {
	t.Parallel()

	for _, s := range Stages {
		got, err := ParseStage(string(s))
		if err != nil {
			t.Fatalf("ParseStage(%q) returned error %v", s, err)
		}
		if got != s {
			t.Errorf("ParseStage(%q) = %q", s, got)
		}
	}

	if _, err := ParseStage("level4"); !errors.Is(err, ErrInvalidStage) {
		t.Errorf("Expected ErrInvalidStage, got %v", err)
	}
}

func TestStageOrdering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stage    Stage
		prev     Stage
		hasPrev  bool
		next     Stage
		hasNext  bool
		encrage  bool
		position int
	}{
		{StageDiscovery, "", false, StageLevel1, true, false, 0},
		{StageLevel1, StageDiscovery, true, StageLevel2, true, true, 1},
		{StageLevel2, StageLevel1, true, StageLevel3, true, true, 2},
		{StageLevel3, StageLevel2, true, "", false, true, 3},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			prev, ok := tt.stage.Previous()
			if prev != tt.prev || ok != tt.hasPrev {
				t.Errorf("Previous() = %q, %v; want %q, %v", prev, ok, tt.prev, tt.hasPrev)
			}
			next, ok := tt.stage.Next()
			if next != tt.next || ok != tt.hasNext {
				t.Errorf("Next() = %q, %v; want %q, %v", next, ok, tt.next, tt.hasNext)
			}
			if tt.stage.IsEncrage() != tt.encrage {
				t.Errorf("IsEncrage() = %v", tt.stage.IsEncrage())
			}
			if tt.stage.Index() != tt.position {
				t.Errorf("Index() = %d", tt.stage.Index())
			}
		})
	}
}

func TestFlashPolicy(t *testing.T) {
	t.Parallel()

	if err := DefaultFlashPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}

	p := DefaultFlashPolicy()
	d, err := p.For(StageLevel2)
	if err != nil || d != 2500*time.Millisecond {
		t.Errorf("For(level2) = %v, %v", d, err)
	}
	if _, err := p.For(Stage("bogus")); !errors.Is(err, ErrInvalidStage) {
		t.Errorf("Expected ErrInvalidStage, got %v", err)
	}

	equal := p
	equal.Level2 = equal.Level3
	if err := equal.Validate(); !errors.Is(err, ErrFlashDurationOrder) {
		t.Errorf("Expected ErrFlashDurationOrder, got %v", err)
	}

	zero := p
	zero.Discovery = 0
	if err := zero.Validate(); !errors.Is(err, ErrFlashDurationNotPositive) {
		t.Errorf("Expected ErrFlashDurationNotPositive, got %v", err)
	}
}
