package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext_Authenticate(t *testing.T) {
	c := NewContext("s1")
	assert.False(t, c.IsAuthenticated())
	_, ok := c.Customer()
	assert.False(t, ok)

	c.Authenticate(42)
	assert.True(t, c.IsAuthenticated())
	id, ok := c.Customer()
	assert.True(t, ok)
	assert.Equal(t, 42, id)
}

func TestContext_TurnsDefensiveCopy(t *testing.T) {
	c := NewContext("s2")
	c.AppendTurn(TurnRecord{Index: 0, Input: "hi", Output: "hello"})

	turns := c.Turns()
	turns[0].Output = "mutated"
	assert.Equal(t, "hello", c.Turns()[0].Output)
}

func TestContext_SnapshotDiff(t *testing.T) {
	c := NewContext("s3")
	before := c.Snapshot()

	c.Authenticate(7)
	c.SetState("resolved_account", "1234567890")
	after := c.Snapshot()

	changes := DiffSnapshots(before, after)
	assert.Equal(t, true, changes["authenticated"])
	assert.Equal(t, 7, changes["customer_id"])
	assert.Equal(t, "1234567890", changes["resolved_account"])
	assert.Len(t, changes, 3)
}

func TestDiffSnapshots_NoChanges(t *testing.T) {
	c := NewContext("s4")
	c.SetState("stage", "greeting")
	snap := c.Snapshot()
	assert.Empty(t, DiffSnapshots(snap, c.Snapshot()))
}
