// Package postgres provides PostgreSQL-specific implementations of the store
// interfaces defined in the internal/store package, together with the goose
// migrations that define their schema.
//
// Every store decodes rows into domain entities and validates them; a row
// that does not validate is reported as store.ErrInvalidEntity rather than
// returned half-populated.
package postgres
