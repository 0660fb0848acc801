package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestNewAxe(t *testing.T) {
	t.Parallel()

	axe, err := NewAxe(" confiance ", "Confiance en soi", true, []string{"Je suis capable", " J'ose "})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if axe.ID != "confiance" {
		t.Errorf("Expected trimmed ID, got %q", axe.ID)
	}
	if len(axe.Phrases) != 2 {
		t.Fatalf("Expected 2 phrases, got %d", len(axe.Phrases))
	}
	if axe.Phrases[1].Content != "J'ose" || axe.Phrases[1].Ordinal != 1 {
		t.Errorf("Unexpected phrase %+v", axe.Phrases[1])
	}
	if axe.Phrases[0].ID != PhraseID("confiance", 0) {
		t.Error("Expected deterministic phrase ID")
	}
	if axe.Phrases[0].ID == uuid.Nil || axe.Phrases[0].ID == axe.Phrases[1].ID {
		t.Error("Expected distinct non-nil phrase IDs")
	}

	if _, err := NewAxe("", "x", false, []string{"a"}); err != ErrAxeIDEmpty {
		t.Errorf("Expected ErrAxeIDEmpty, got %v", err)
	}
	if _, err := NewAxe("x", "", false, []string{"a"}); err != ErrAxeNameEmpty {
		t.Errorf("Expected ErrAxeNameEmpty, got %v", err)
	}
	if _, err := NewAxe("x", "X", false, nil); err != ErrAxeNoPhrases {
		t.Errorf("Expected ErrAxeNoPhrases, got %v", err)
	}
	if _, err := NewAxe("x", "X", false, []string{"a", "  "}); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("Expected ErrEmptyContent, got %v", err)
	}
}

func TestAxeValidateOrdinals(t *testing.T) {
	t.Parallel()

	axe, err := NewAxe("x", "X", false, []string{"a", "b"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	axe.Phrases[1].Ordinal = 5
	if err := axe.Validate(); err != ErrPhraseOrdinal {
		t.Errorf("Expected ErrPhraseOrdinal, got %v", err)
	}
}
