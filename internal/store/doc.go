// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the training engine, so that gating, recording and statistics stay
// independent of specific database technologies or persistence details.
//
// Implementations must return the typed errors declared here and must reject
// malformed rows with ErrInvalidEntity instead of defaulting them.
package store
