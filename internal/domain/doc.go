// Package domain contains the core business entities, value objects, and
// domain rules of the flash-recall training engine: axes and their phrases,
// a learner's axe selection, the ordered mastery stages, game sessions, the
// attempts recorded within them and the per-stage completion ledger.
// It is independent of any storage or delivery mechanism.
package domain
