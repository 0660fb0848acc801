package auth

import "errors"

// Token validation errors. The auth middleware maps all of them to 401.
var (
	ErrInvalidToken     = errors.New("invalid authentication token")
	ErrExpiredToken     = errors.New("authentication token has expired")
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")
	ErrMissingToken     = errors.New("authentication token is missing")
	// ErrWrongTokenType is returned for tokens issued for another purpose.
	ErrWrongTokenType = errors.New("wrong authentication token type")
)
