package core

import (
	"reflect"
	"sync"
	"time"
)

// TurnRecord is one completed exchange appended to a Context's history.
type TurnRecord struct {
	Index        int       `json:"index"`
	Input        string    `json:"input"`
	Output       string    `json:"output"`
	ToolsInvoked []string  `json:"tools_invoked,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Context is the mutable per-session state carried across the turns of a
// scenario. It tracks the authentication flag, the resolved customer
// reference, free-form state keys and an append-only turn history.
//
// Contract:
//   - Exclusively owned by one in-flight turn at a time; the internal mutex
//     only guards visibility for other holders of the same reference.
//   - Authenticated transitions false→true via Authenticate only and is never
//     reset automatically within a scenario.
//   - History is append-only; Turns returns a defensive copy.
type Context struct {
	ID            string         `json:"id"`
	Authenticated bool           `json:"authenticated"`
	CustomerID    *int           `json:"customer_id,omitempty"`
	State         map[string]any `json:"state"`
	History       []TurnRecord   `json:"history"`
	Created       time.Time      `json:"created"`
	Updated       time.Time      `json:"updated"`
	mu            sync.RWMutex
}

// NewContext creates an empty Context for the given session identifier.
func NewContext(sessionID string) *Context {
	now := time.Now().UTC()
	return &Context{ID: sessionID, State: map[string]any{}, History: []TurnRecord{}, Created: now, Updated: now}
}

// Authenticate marks the session authenticated and records the resolved
// customer. Called by authentication tool handlers on success.
func (c *Context) Authenticate(customerID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Authenticated = true
	c.CustomerID = &customerID
	c.Updated = time.Now().UTC()
}

// IsAuthenticated reports whether the session has been authenticated.
func (c *Context) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Authenticated
}

// Customer returns the resolved customer id and whether one is set.
func (c *Context) Customer() (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.CustomerID == nil {
		return 0, false
	}
	return *c.CustomerID, true
}

// SetState sets a free-form state key.
func (c *Context) SetState(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.State[key] = value
	c.Updated = time.Now().UTC()
}

// GetState returns the value and existence flag for a state key.
func (c *Context) GetState(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.State[key]
	return v, ok
}

// AppendTurn appends a completed exchange to the history.
func (c *Context) AppendTurn(rec TurnRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.History = append(c.History, rec)
	c.Updated = time.Now().UTC()
}

// Turns returns a defensive copy of the turn history.
func (c *Context) Turns() []TurnRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]TurnRecord, len(c.History))
	copy(out, c.History)
	return out
}

// Snapshot captures the observable fields of the context as a flat map.
// Used to diff state before and after a turn.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := map[string]any{"authenticated": c.Authenticated}
	if c.CustomerID != nil {
		snap["customer_id"] = *c.CustomerID
	}
	for k, v := range c.State {
		snap[k] = v
	}
	return snap
}

// DiffSnapshots returns the keys whose values were added or changed between
// two snapshots, mapped to their new values.
func DiffSnapshots(before, after map[string]any) map[string]any {
	changes := map[string]any{}
	for k, v := range after {
		if prev, ok := before[k]; !ok || !reflect.DeepEqual(prev, v) {
			changes[k] = v
		}
	}
	return changes
}
