package progress

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetPutInvalidate(t *testing.T) {
	t.Parallel()

	c := NewCache(0, 0)
	user := uuid.New()
	unlocks := map[domain.Stage]bool{domain.StageDiscovery: true, domain.StageLevel1: false}

	_, ok := c.Get(user, "calm")
	assert.False(t, ok)

	c.Put(user, "calm", unlocks)
	unlocks[domain.StageLevel1] = true // caller mutation must not leak in

	got, ok := c.Get(user, "calm")
	require.True(t, ok)
	assert.False(t, got[domain.StageLevel1])

	got[domain.StageDiscovery] = false // nor out
	again, _ := c.Get(user, "calm")
	assert.True(t, again[domain.StageDiscovery])

	c.Invalidate(user, "calm")
	_, ok = c.Get(user, "calm")
	assert.False(t, ok)
}

func TestCache_InvalidateUser(t *testing.T) {
	t.Parallel()

	c := NewCache(16, time.Minute)
	alice, bob := uuid.New(), uuid.New()
	c.Put(alice, "a", map[domain.Stage]bool{})
	c.Put(alice, "b", map[domain.Stage]bool{})
	c.Put(bob, "a", map[domain.Stage]bool{})

	c.InvalidateUser(alice)
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(bob, "a")
	assert.True(t, ok)
}

func TestCache_HandleSelectionEvent(t *testing.T) {
	t.Parallel()

	c := NewCache(16, time.Minute)
	alice, bob := uuid.New(), uuid.New()
	c.Put(alice, "a", map[domain.Stage]bool{})
	c.Put(alice, "b", map[domain.Stage]bool{})
	c.Put(bob, "a", map[domain.Stage]bool{})

	ev, err := events.NewSelectionEvent(alice, []string{"a"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, c.HandleEvent(context.Background(), ev))

	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(bob, "a")
	assert.True(t, ok)
}

func TestCache_Expiry(t *testing.T) {
	t.Parallel()

	c := NewCache(4, 20*time.Millisecond)
	user := uuid.New()
	c.Put(user, "calm", map[domain.Stage]bool{domain.StageDiscovery: true})

	assert.Eventually(t, func() bool {
		_, ok := c.Get(user, "calm")
		return !ok
	}, time.Second, 5*time.Millisecond)
}
