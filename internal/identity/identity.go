// Package identity resolves the learner behind a request. Accounts and
// sign-in are managed elsewhere; this package only exposes the current
// learner's ID to the training services.
package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUnauthenticated is returned when no learner is attached to the context.
var ErrUnauthenticated = errors.New("unauthenticated")

// Provider returns the ID of the learner making the current call.
type Provider interface {
	CurrentUserID(ctx context.Context) (uuid.UUID, error)
}

type contextKey int

const userIDKey contextKey = iota

// WithUserID returns a context carrying the authenticated learner's ID.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// ContextProvider reads the learner ID placed in the context by the
// authentication middleware.
type ContextProvider struct{}

var _ Provider = ContextProvider{}

// CurrentUserID implements Provider.
func (ContextProvider) CurrentUserID(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrUnauthenticated
	}
	return id, nil
}

// Static always returns the same learner. It backs the in-process drill
// driver, where there is no request to authenticate.
type Static uuid.UUID

// CurrentUserID implements Provider.
func (s Static) CurrentUserID(context.Context) (uuid.UUID, error) {
	id := uuid.UUID(s)
	if id == uuid.Nil {
		return uuid.Nil, ErrUnauthenticated
	}
	return id, nil
}
