// Package testutils provides shared test doubles: an in-memory implementation
// of every store interface with transaction semantics and failure injection,
// plus fixture helpers for axes, selections and sessions.
package testutils
