// Package task runs durable background work. Tasks are persisted before they
// are queued so that a restart can recover pending and interrupted work;
// recovered records are rebuilt into runnable tasks through per-type
// factories registered on the runner.
package task
