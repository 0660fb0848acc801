// Package training implements the use cases of the recall trainer: opening
// and resuming stage sessions, recording attempts, finalizing and restarting
// sessions, and managing a learner's axe selection.
//
// Key components:
//
// 1. Manager:
//   - Gates every stage start on the completion ledger
//   - Runs each advance in one store transaction and retries transient
//     failures, relying on idempotent attempt keys
//   - Invalidates the progress cache synchronously after finalize and restart
//
// 2. Recorder:
//   - Appends attempts and folds them into session counters
//   - Seals exhausted sessions and writes stage completions
//   - Verifies counters against the ledger and repairs drifted sessions
//
// 3. Selector:
//   - Replaces a learner's selection of 3 to 6 axes
//
// All errors match one of the package sentinels (ErrLocked, ErrNotSelected,
// ErrNotFound, ErrInvalidInput, ErrStorageFailure, ErrInconsistentState).
package training
