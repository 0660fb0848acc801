// Package progress caches per-axe unlock maps derived from the completion
// ledger. The cache is only an accelerator for reads: starting a stage always
// consults the ledger, and the training service invalidates entries
// synchronously after every finalize and restart.
package progress

import (
	"context"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/events"
)

// Default cache bounds.
const (
	DefaultSize = 4096
	DefaultTTL  = 5 * time.Minute
)

// Key identifies one learner's unlock map for one axe.
type Key struct {
	UserID uuid.UUID
	AxeID  string
}

// Cache is a bounded TTL cache of unlock maps. It is safe for concurrent use.
type Cache struct {
	lru *expirable.LRU[Key, map[domain.Stage]bool]
}

// NewCache creates a cache holding at most size entries for ttl each.
// Non-positive arguments fall back to the defaults.
func NewCache(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{lru: expirable.NewLRU[Key, map[domain.Stage]bool](size, nil, ttl)}
}

// Get returns a copy of the cached unlock map.
func (c *Cache) Get(userID uuid.UUID, axeID string) (map[domain.Stage]bool, bool) {
	v, ok := c.lru.Get(Key{UserID: userID, AxeID: axeID})
	if !ok {
		return nil, false
	}
	return maps.Clone(v), true
}

// Put stores a copy of unlocks.
func (c *Cache) Put(userID uuid.UUID, axeID string, unlocks map[domain.Stage]bool) {
	c.lru.Add(Key{UserID: userID, AxeID: axeID}, maps.Clone(unlocks))
}

// Invalidate drops the entry for (userID, axeID).
func (c *Cache) Invalidate(userID uuid.UUID, axeID string) {
	c.lru.Remove(Key{UserID: userID, AxeID: axeID})
}

// InvalidateUser drops every entry of userID.
func (c *Cache) InvalidateUser(userID uuid.UUID) {
	for _, k := range c.lru.Keys() {
		if k.UserID == userID {
			c.lru.Remove(k)
		}
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// HandleEvent implements events.EventHandler. Session lifecycle and selection
// events drop the affected learner's entries so finalizes committed outside
// the training manager, such as ledger repairs, are not served stale.
func (c *Cache) HandleEvent(_ context.Context, event *events.Event) error {
	switch event.Type {
	case events.SessionFinalized, events.SessionRestarted, events.StageCompleted:
		p, err := event.SessionPayload()
		if err != nil {
			return err
		}
		c.Invalidate(p.UserID, p.AxeID)
	case events.SelectionReplaced:
		p, err := event.SelectionPayload()
		if err != nil {
			return err
		}
		c.InvalidateUser(p.UserID)
	}
	return nil
}
