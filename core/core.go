package core

import "context"

// ContextStore owns per-session mutable state keyed by session identifier.
// GetOrCreate returns the same Context instance for repeated calls with the
// same id, so every component holding the reference observes writes made by
// the others. The store performs no domain logic of its own.
type ContextStore interface {
	// GetOrCreate returns the Context for the session, creating it on first use.
	GetOrCreate(sessionID string) *Context

	// ClearAll drops every session. Must not be called while any session has
	// an in-flight turn.
	ClearAll()
}

// AgentResponse is the result of a single agent invocation.
type AgentResponse struct {
	// Output is the agent's final textual response for the turn.
	Output string

	// ToolsInvoked lists the names of tools the agent called, in call order.
	ToolsInvoked []string

	// Model identifies the backing model when the invocation involved a
	// generation. Empty for purely scripted or tool-only agents.
	Model string

	// Usage carries token counters when Model is set.
	Usage *Usage
}

// Agent is the collaborator driven by the harness. Run may take arbitrary
// wall-clock time and may mutate the Context as a side effect (authentication
// tools, entity resolution). Failures are reported as *ModelError or
// *NetworkError; the runner records them and never propagates.
type Agent interface {
	Name() string
	Run(ctx context.Context, input string, sc *Context) (*AgentResponse, error)
}

// Collector is the trace ingestion backend. Implementations buffer writes and
// make a trace durable on Flush. A backend that cannot be reached returns an
// error wrapping ErrCollectorUnavailable, which downgrades tracing to a no-op
// for the remainder of the run.
type Collector interface {
	StartTrace(t *Trace) error
	StartObservation(o *Observation) error
	EndObservation(o *Observation) error

	// Flush blocks until all outstanding writes belonging to the given trace
	// have been durably handed over. It must be safe to call repeatedly and
	// must not block unrelated concurrent traces.
	Flush(ctx context.Context, traceID string) error
}

// TraceReader provides read-only access to previously flushed traces.
// Implementations never mutate collector state.
type TraceReader interface {
	TraceByID(ctx context.Context, id string) (*Trace, error)
	LatestTrace(ctx context.Context) (*Trace, error)
}
