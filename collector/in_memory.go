package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/tracebench/core"
)

// ErrTraceNotFound is returned by reader methods when no flushed trace
// matches the query. Unflushed traces are deliberately invisible: exporters
// only ever read previously flushed data.
var ErrTraceNotFound = errors.New("trace not found")

type opKind int

const (
	opStartTrace opKind = iota
	opStartObservation
	opEndObservation
	opBarrier
)

type op struct {
	kind    opKind
	trace   *core.Trace
	obs     *core.Observation
	traceID string
	done    chan struct{}
}

type traceRecord struct {
	trace   *core.Trace
	obs     map[string]*core.Observation
	order   []string
	flushed bool
}

// InMemory is a process-wide ingestion buffer. Writes from all traces are
// serialized through one FIFO worker; a flush enqueues a barrier and waits
// for it, so it awaits exactly the writes submitted before it without
// blocking unrelated traces from submitting more.
type InMemory struct {
	ingest chan op
	wg     sync.WaitGroup

	// closeMu guards the closed flag against writes racing Close; it is
	// never taken by the ingestion worker, so a blocked send cannot deadlock.
	closeMu sync.RWMutex
	closed  bool

	mu      sync.RWMutex
	records map[string]*traceRecord
}

// NewInMemory constructs the store and starts its ingestion worker.
func NewInMemory() *InMemory {
	s := &InMemory{
		ingest:  make(chan op, 256),
		records: make(map[string]*traceRecord),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *InMemory) run() {
	defer s.wg.Done()
	for o := range s.ingest {
		if o.kind == opBarrier {
			close(o.done)
			continue
		}
		s.apply(o)
	}
}

func (s *InMemory) apply(o op) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch o.kind {
	case opStartTrace:
		if rec, exists := s.records[o.trace.ID]; exists {
			// Re-registering refreshes trace attributes (tags, metadata)
			// without touching already ingested observations.
			rec.trace = o.trace
			return
		}
		s.records[o.trace.ID] = &traceRecord{trace: o.trace, obs: map[string]*core.Observation{}}
	case opStartObservation, opEndObservation:
		rec, ok := s.records[o.obs.TraceID]
		if !ok {
			return
		}
		if _, seen := rec.obs[o.obs.ID]; !seen {
			rec.order = append(rec.order, o.obs.ID)
		}
		// Re-ingesting the same observation id replaces, never duplicates.
		rec.obs[o.obs.ID] = o.obs
	}
}

func (s *InMemory) enqueue(o op) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return fmt.Errorf("in-memory collector closed: %w", core.ErrCollectorUnavailable)
	}
	s.ingest <- o
	return nil
}

// StartTrace registers a new trace with the buffer.
func (s *InMemory) StartTrace(t *core.Trace) error {
	return s.enqueue(op{kind: opStartTrace, trace: t.Clone()})
}

// StartObservation records an opened observation.
func (s *InMemory) StartObservation(o *core.Observation) error {
	return s.enqueue(op{kind: opStartObservation, obs: o.Clone()})
}

// EndObservation records the closed state of an observation.
func (s *InMemory) EndObservation(o *core.Observation) error {
	return s.enqueue(op{kind: opEndObservation, obs: o.Clone()})
}

// Flush blocks until every write submitted before it has been applied, then
// marks the trace visible to readers. Safe to call repeatedly.
func (s *InMemory) Flush(ctx context.Context, traceID string) error {
	done := make(chan struct{})
	if err := s.enqueue(op{kind: opBarrier, done: done}); err != nil {
		return err
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[traceID]; ok {
		rec.flushed = true
	}
	return nil
}

// Close stops the ingestion worker. Subsequent writes report the collector
// as unavailable.
func (s *InMemory) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ingest)
	s.closeMu.Unlock()

	s.wg.Wait()
	return nil
}

// TraceByID returns a flushed trace with its observations ordered by start
// timestamp.
func (s *InMemory) TraceByID(_ context.Context, id string) (*core.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok || !rec.flushed {
		return nil, fmt.Errorf("trace %s: %w", id, ErrTraceNotFound)
	}
	return assemble(rec), nil
}

// LatestTrace returns the most recently created flushed trace.
func (s *InMemory) LatestTrace(_ context.Context) (*core.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *traceRecord
	for _, rec := range s.records {
		if !rec.flushed {
			continue
		}
		if latest == nil || rec.trace.Timestamp.After(latest.trace.Timestamp) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, ErrTraceNotFound
	}
	return assemble(latest), nil
}

func assemble(rec *traceRecord) *core.Trace {
	t := rec.trace.Clone()
	t.Observations = make([]core.Observation, 0, len(rec.order))
	for _, id := range rec.order {
		t.Observations = append(t.Observations, *rec.obs[id].Clone())
	}
	sort.SliceStable(t.Observations, func(i, j int) bool {
		return t.Observations[i].StartTime.Before(t.Observations[j].StartTime)
	})
	return t
}
