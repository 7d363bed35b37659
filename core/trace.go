package core

import (
	"maps"
	"slices"
	"time"
)

// ObservationType distinguishes plain timed spans from model generations.
type ObservationType string

const (
	// ObservationSpan is a generic timed unit of work.
	ObservationSpan ObservationType = "SPAN"
	// ObservationGeneration is a model call carrying model name and usage.
	ObservationGeneration ObservationType = "GENERATION"
)

// Status is the terminal state of an observation.
type Status string

const (
	// StatusOK marks an observation that completed normally.
	StatusOK Status = "OK"
	// StatusError marks an observation that failed or was interrupted.
	StatusError Status = "ERROR"
)

// Usage holds token counters for GENERATION observations.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Observation is a single timed unit of work recorded within a trace.
// Model and Usage are populated only for the GENERATION type.
type Observation struct {
	ID            string          `json:"id"`
	TraceID       string          `json:"trace_id"`
	ParentID      string          `json:"parent_id,omitempty"`
	Type          ObservationType `json:"type"`
	Name          string          `json:"name"`
	StartTime     time.Time       `json:"start_time"`
	EndTime       time.Time       `json:"end_time"`
	Input         any             `json:"input,omitempty"`
	Output        any             `json:"output,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	Status        Status          `json:"status"`
	StatusMessage string          `json:"status_message,omitempty"`
	Model         string          `json:"model,omitempty"`
	Usage         *Usage          `json:"usage,omitempty"`
}

// NewObservation creates an open observation with the start time set to now.
func NewObservation(traceID, parentID, name string, typ ObservationType) *Observation {
	return &Observation{
		ID:        NewID(),
		TraceID:   traceID,
		ParentID:  parentID,
		Type:      typ,
		Name:      name,
		StartTime: time.Now().UTC(),
	}
}

// End closes the observation. The end timestamp is clamped so it is never
// earlier than the start timestamp.
func (o *Observation) End(output any, status Status, statusMessage string) {
	end := time.Now().UTC()
	if end.Before(o.StartTime) {
		end = o.StartTime
	}
	o.EndTime = end
	o.Output = output
	o.Status = status
	o.StatusMessage = statusMessage
}

// Closed reports whether End has been called.
func (o *Observation) Closed() bool { return !o.EndTime.IsZero() }

// Clone returns a deep copy safe for handing to an ingestion buffer while the
// caller keeps mutating the original.
func (o *Observation) Clone() *Observation {
	clone := *o
	if o.Metadata != nil {
		clone.Metadata = maps.Clone(o.Metadata)
	}
	if o.Usage != nil {
		u := *o.Usage
		clone.Usage = &u
	}
	return &clone
}

// Trace is the root container aggregating all observations for one logical
// run. Observations is populated by TraceReader implementations; during
// recording the collector tracks observations separately.
type Trace struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	UserID       string         `json:"user_id"`
	SessionID    string         `json:"session_id"`
	Tags         []string       `json:"tags"`
	Metadata     map[string]any `json:"metadata"`
	Timestamp    time.Time      `json:"timestamp"`
	Observations []Observation  `json:"observations,omitempty"`
}

// NewTrace creates a trace with a fresh identifier and creation timestamp.
func NewTrace(name, userID, sessionID string, tags []string, metadata map[string]any) *Trace {
	t := &Trace{
		ID:        NewID(),
		Name:      name,
		UserID:    userID,
		SessionID: sessionID,
		Tags:      slices.Clone(tags),
		Metadata:  map[string]any{},
		Timestamp: time.Now().UTC(),
	}
	maps.Copy(t.Metadata, metadata)
	return t
}

// AddTags appends tags not already present, preserving order.
func (t *Trace) AddTags(tags ...string) {
	for _, tag := range tags {
		if !slices.Contains(t.Tags, tag) {
			t.Tags = append(t.Tags, tag)
		}
	}
}

// MergeMetadata merges key/value pairs into the trace metadata. Existing keys
// are kept unless overwrite is set.
func (t *Trace) MergeMetadata(md map[string]any, overwrite bool) {
	if t.Metadata == nil {
		t.Metadata = map[string]any{}
	}
	for k, v := range md {
		if _, exists := t.Metadata[k]; exists && !overwrite {
			continue
		}
		t.Metadata[k] = v
	}
}

// Root returns the unique root observation (empty ParentID), or nil when the
// observation list has not been populated.
func (t *Trace) Root() *Observation {
	for i := range t.Observations {
		if t.Observations[i].ParentID == "" {
			return &t.Observations[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the trace without its observation list.
func (t *Trace) Clone() *Trace {
	clone := *t
	clone.Tags = slices.Clone(t.Tags)
	clone.Metadata = maps.Clone(t.Metadata)
	clone.Observations = nil
	return &clone
}
