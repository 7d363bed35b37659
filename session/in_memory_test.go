package session

import (
	"testing"

	"github.com/hupe1980/tracebench/core"
	"github.com/stretchr/testify/assert"
)

// Interface compliance (compile-time assertion)
var _ core.ContextStore = (*InMemoryStore)(nil)

func TestInMemoryStore_GetOrCreateReturnsSameInstance(t *testing.T) {
	store := NewInMemoryStore()

	a := store.GetOrCreate("cust-1")
	b := store.GetOrCreate("cust-1")
	assert.Same(t, a, b)

	// Writes through one reference are visible through the other.
	a.Authenticate(1)
	assert.True(t, b.IsAuthenticated())
}

func TestInMemoryStore_SessionsAreDisjoint(t *testing.T) {
	store := NewInMemoryStore()

	a := store.GetOrCreate("cust-1")
	b := store.GetOrCreate("cust-2")
	assert.NotSame(t, a, b)

	a.Authenticate(1)
	assert.False(t, b.IsAuthenticated())
	assert.Equal(t, 2, store.Len())
}

func TestInMemoryStore_ClearAll(t *testing.T) {
	store := NewInMemoryStore()
	store.GetOrCreate("cust-1").Authenticate(1)
	store.ClearAll()

	assert.Equal(t, 0, store.Len())
	assert.False(t, store.GetOrCreate("cust-1").IsAuthenticated(), "fresh context after reset")
}
