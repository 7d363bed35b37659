package collector

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/tracebench/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertions)
var (
	_ core.Collector   = (*InMemory)(nil)
	_ core.TraceReader = (*InMemory)(nil)
)

func TestInMemory_FlushMakesTraceVisible(t *testing.T) {
	s := NewInMemory()
	defer s.Close()

	tr := core.NewTrace("run", "u1", "s1", []string{"banking"}, nil)
	require.NoError(t, s.StartTrace(tr))

	root := core.NewObservation(tr.ID, "", "run", core.ObservationSpan)
	require.NoError(t, s.StartObservation(root))

	// Not visible before flush.
	_, err := s.TraceByID(context.Background(), tr.ID)
	assert.ErrorIs(t, err, ErrTraceNotFound)

	root.End("done", core.StatusOK, "")
	require.NoError(t, s.EndObservation(root))
	require.NoError(t, s.Flush(context.Background(), tr.ID))

	got, err := s.TraceByID(context.Background(), tr.ID)
	require.NoError(t, err)
	require.Len(t, got.Observations, 1)
	assert.Equal(t, core.StatusOK, got.Observations[0].Status)
}

func TestInMemory_RepeatedFlushNoDuplicates(t *testing.T) {
	s := NewInMemory()
	defer s.Close()

	tr := core.NewTrace("run", "u1", "s1", nil, nil)
	require.NoError(t, s.StartTrace(tr))

	root := core.NewObservation(tr.ID, "", "run", core.ObservationSpan)
	require.NoError(t, s.StartObservation(root))
	root.End(nil, core.StatusOK, "")
	require.NoError(t, s.EndObservation(root))

	require.NoError(t, s.Flush(context.Background(), tr.ID))
	require.NoError(t, s.Flush(context.Background(), tr.ID))

	got, err := s.TraceByID(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.Len(t, got.Observations, 1)
}

func TestInMemory_ObservationsOrderedByStartTime(t *testing.T) {
	s := NewInMemory()
	defer s.Close()

	tr := core.NewTrace("run", "u1", "s1", nil, nil)
	require.NoError(t, s.StartTrace(tr))

	base := time.Now().UTC()
	late := core.NewObservation(tr.ID, "", "late", core.ObservationSpan)
	late.StartTime = base.Add(time.Second)
	early := core.NewObservation(tr.ID, "", "early", core.ObservationSpan)
	early.StartTime = base

	require.NoError(t, s.StartObservation(late))
	require.NoError(t, s.StartObservation(early))
	require.NoError(t, s.Flush(context.Background(), tr.ID))

	got, err := s.TraceByID(context.Background(), tr.ID)
	require.NoError(t, err)
	require.Len(t, got.Observations, 2)
	assert.Equal(t, "early", got.Observations[0].Name)
	assert.Equal(t, "late", got.Observations[1].Name)
}

func TestInMemory_LatestTrace(t *testing.T) {
	s := NewInMemory()
	defer s.Close()

	first := core.NewTrace("first", "u1", "s1", nil, nil)
	second := core.NewTrace("second", "u1", "s2", nil, nil)
	second.Timestamp = first.Timestamp.Add(time.Second)

	require.NoError(t, s.StartTrace(first))
	require.NoError(t, s.StartTrace(second))
	require.NoError(t, s.Flush(context.Background(), first.ID))
	require.NoError(t, s.Flush(context.Background(), second.ID))

	got, err := s.LatestTrace(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", got.Name)
}

func TestInMemory_ReRegisterUpdatesTraceAttributes(t *testing.T) {
	s := NewInMemory()
	defer s.Close()

	tr := core.NewTrace("run", "u1", "s1", nil, nil)
	require.NoError(t, s.StartTrace(tr))

	tr.AddTags("pass")
	tr.MergeMetadata(map[string]any{"turns": 2}, false)
	require.NoError(t, s.StartTrace(tr))
	require.NoError(t, s.Flush(context.Background(), tr.ID))

	got, err := s.TraceByID(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.Contains(t, got.Tags, "pass")
}

func TestInMemory_ClosedReportsUnavailable(t *testing.T) {
	s := NewInMemory()
	require.NoError(t, s.Close())

	err := s.StartTrace(core.NewTrace("run", "u1", "s1", nil, nil))
	assert.ErrorIs(t, err, core.ErrCollectorUnavailable)
}
