package tracing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/tracebench/core"
	"github.com/hupe1980/tracebench/logging"
)

// Options holds dependency overrides passed to NewRecorder.
type Options struct {
	// Logger receives recorder diagnostics (degradation, flush results).
	Logger logging.Logger
}

// Recorder records spans and generations into a single trace. It owns the
// trace lifecycle from StartTrace to Flush.
//
// Contract:
//   - Exactly one root observation per trace, created with the trace.
//   - An observation's end timestamp is never earlier than its start.
//   - Flush is a blocking barrier, idempotent, and safe on every exit path;
//     observations still open at flush time are closed with an error status.
//   - Collector unavailability degrades all further calls to no-ops.
//
// Public methods are safe for concurrent use, though turns within one
// scenario call them strictly sequentially.
type Recorder struct {
	collector core.Collector
	logger    logging.Logger

	mu       sync.Mutex
	trace    *core.Trace
	root     *core.Observation
	open     map[string]*core.Observation
	recorded int
	degraded bool
	flushed  bool
}

// NewRecorder constructs a recorder bound to a collector backend. A nil
// collector yields a recorder that records nothing, which keeps call sites
// free of conditionals when tracing is disabled.
func NewRecorder(collector core.Collector, optFns ...func(o *Options)) *Recorder {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Recorder{
		collector: collector,
		logger:    opts.Logger,
		open:      map[string]*core.Observation{},
		degraded:  collector == nil,
	}
}

// StartTrace opens the trace and its root observation. Calling it twice on
// the same recorder is a programming error; the second call is ignored.
func (r *Recorder) StartTrace(name, userID, sessionID string, tags []string, metadata map[string]any) *core.Trace {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.trace != nil {
		return r.trace
	}

	r.trace = core.NewTrace(name, userID, sessionID, tags, metadata)
	r.root = core.NewObservation(r.trace.ID, "", name, core.ObservationSpan)

	if !r.degraded {
		if err := r.collector.StartTrace(r.trace); err != nil {
			r.degrade(err)
		} else if err := r.collector.StartObservation(r.root); err != nil {
			r.degrade(err)
		}
	}
	if !r.degraded {
		r.open[r.root.ID] = r.root
		r.recorded++
	}
	return r.trace
}

// Trace returns the live trace, or nil before StartTrace.
func (r *Recorder) Trace() *core.Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trace
}

// TraceID returns the trace identifier, or empty before StartTrace.
func (r *Recorder) TraceID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.trace == nil {
		return ""
	}
	return r.trace.ID
}

// RootID returns the root observation identifier for use as a parent.
func (r *Recorder) RootID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.root == nil {
		return ""
	}
	return r.root.ID
}

// StartSpan opens a SPAN observation. An empty parentID nests under the root.
func (r *Recorder) StartSpan(parentID, name string, input any, metadata map[string]any) *core.Observation {
	return r.start(parentID, name, core.ObservationSpan, "", input, metadata)
}

// StartGeneration opens a GENERATION observation carrying the model name.
func (r *Recorder) StartGeneration(parentID, name, model string, input any, metadata map[string]any) *core.Observation {
	return r.start(parentID, name, core.ObservationGeneration, model, input, metadata)
}

func (r *Recorder) start(parentID, name string, typ core.ObservationType, model string, input any, metadata map[string]any) *core.Observation {
	r.mu.Lock()
	defer r.mu.Unlock()

	traceID := ""
	if r.trace != nil {
		traceID = r.trace.ID
	}
	if parentID == "" && r.root != nil {
		parentID = r.root.ID
	}

	obs := core.NewObservation(traceID, parentID, name, typ)
	obs.Model = model
	obs.Input = input
	obs.Metadata = metadata

	if r.degraded || r.trace == nil {
		return obs
	}
	if err := r.collector.StartObservation(obs); err != nil {
		r.degrade(err)
		return obs
	}
	r.open[obs.ID] = obs
	r.recorded++
	return obs
}

// EndSpan closes an observation with the given output and status and hands
// the closed state to the collector.
func (r *Recorder) EndSpan(obs *core.Observation, output any, status core.Status, statusMessage string) {
	if obs == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if !obs.Closed() {
		obs.End(output, status, statusMessage)
	}
	if r.degraded {
		return
	}
	if _, tracked := r.open[obs.ID]; !tracked {
		return
	}
	delete(r.open, obs.ID)
	if err := r.collector.EndObservation(obs); err != nil {
		r.degrade(err)
	}
}

// UpdateTrace appends tags and merges metadata into the trace. Existing
// metadata keys are preserved; pass overwrite for intentional replacement.
func (r *Recorder) UpdateTrace(tags []string, metadata map[string]any, overwrite bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.trace == nil {
		return
	}
	r.trace.AddTags(tags...)
	r.trace.MergeMetadata(metadata, overwrite)
}

// Flush closes any observation still open (error status: the unit never
// completed), re-registers the trace so late tag/metadata updates are
// delivered, and blocks until the collector has durably accepted everything
// belonging to this trace. Repeated calls after completion are no-ops.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	if r.trace == nil || r.degraded {
		r.mu.Unlock()
		return nil
	}
	if r.flushed && len(r.open) == 0 {
		r.mu.Unlock()
		return nil
	}

	start := time.Now()

	// Interrupt path: a unit of work that never closed is an error, and the
	// root closes last so its window spans every child.
	for id, obs := range r.open {
		if obs == r.root {
			continue
		}
		obs.End(nil, core.StatusError, "observation not closed before flush")
		delete(r.open, id)
		if err := r.collector.EndObservation(obs); err != nil {
			r.degrade(err)
			r.mu.Unlock()
			return nil
		}
	}
	if _, rootOpen := r.open[r.root.ID]; rootOpen {
		if !r.root.Closed() {
			r.root.End(nil, core.StatusOK, "")
		}
		delete(r.open, r.root.ID)
		if err := r.collector.EndObservation(r.root); err != nil {
			r.degrade(err)
			r.mu.Unlock()
			return nil
		}
	}

	if err := r.collector.StartTrace(r.trace); err != nil {
		r.degrade(err)
		r.mu.Unlock()
		return nil
	}

	traceID := r.trace.ID
	recorded := r.recorded
	r.flushed = true
	collector := r.collector
	logger := r.logger
	r.mu.Unlock()

	err := collector.Flush(ctx, traceID)
	if err != nil {
		logger.Warn("trace flush failed trace_id=%s observations=%d: %v", traceID, recorded, err)
	} else {
		logger.Debug("trace flushed trace_id=%s observations=%d duration=%s", traceID, recorded, time.Since(start))
	}
	if err != nil && errors.Is(err, core.ErrCollectorUnavailable) {
		r.mu.Lock()
		r.degrade(err)
		r.mu.Unlock()
		return nil
	}
	return err
}

// Degraded reports whether tracing has been downgraded to a no-op.
func (r *Recorder) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.degraded
}

// degrade switches the recorder to no-op mode. Caller holds the lock.
func (r *Recorder) degrade(err error) {
	if r.degraded {
		return
	}
	if errors.Is(err, core.ErrCollectorUnavailable) {
		r.logger.Warn("collector unavailable, tracing degraded to no-op: %v", err)
	} else {
		r.logger.Warn("collector error, tracing degraded to no-op: %v", err)
	}
	r.degraded = true
	r.open = map[string]*core.Observation{}
}
