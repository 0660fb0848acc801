package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("some error"), false},
		{"ErrNotFound", ErrNotFound, true},
		{"wrapped ErrNotFound", fmt.Errorf("lookup: %w", ErrNotFound), true},
		{"ErrSessionNotFound", ErrSessionNotFound, true},
		{"ErrAxeNotFound", ErrAxeNotFound, true},
		{"ErrSelectionNotFound", ErrSelectionNotFound, true},
		{"ErrCompletionNotFound", ErrCompletionNotFound, true},
		{"store error around not found", NewStoreError("attempt", "get", "missing", ErrAttemptNotFound), true},
		{"duplicate", ErrAttemptExists, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, IsNotFoundError(tt.err))
		})
	}
}

func TestIsDuplicateError(t *testing.T) {
	t.Parallel()

	assert.True(t, IsDuplicateError(ErrDuplicate))
	assert.True(t, IsDuplicateError(ErrActiveSessionExists))
	assert.True(t, IsDuplicateError(fmt.Errorf("create: %w", ErrAttemptExists)))
	assert.False(t, IsDuplicateError(ErrNotFound))
	assert.False(t, IsDuplicateError(nil))
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	withoutCause := &StoreError{Entity: "game_session", Operation: "update", Message: "validation failed"}
	assert.Equal(t, "update operation on game_session failed: validation failed", withoutCause.Error())
	assert.Nil(t, errors.Unwrap(withoutCause))

	cause := errors.New("connection reset")
	withCause := NewStoreError("attempt", "create", "insert failed", cause)
	assert.Equal(t, "create operation on attempt failed: insert failed: connection reset", withCause.Error())
	assert.ErrorIs(t, withCause, cause)

	var storeErr *StoreError
	assert.True(t, errors.As(fmt.Errorf("outer: %w", withCause), &storeErr))
	assert.Equal(t, "attempt", storeErr.Entity)
}

func TestInvalidEntity(t *testing.T) {
	t.Parallel()

	err := InvalidEntity("game_session", domain.ErrPhraseOrderInvalid)
	assert.ErrorIs(t, err, ErrInvalidEntity)
	assert.ErrorIs(t, err, domain.ErrPhraseOrderInvalid)
}
