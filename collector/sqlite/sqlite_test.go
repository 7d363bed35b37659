package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hupe1980/tracebench/collector"
	"github.com/hupe1980/tracebench/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "traces.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_FlushAndReload(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	tr := core.NewTrace("run", "u1", "cust-1", []string{"banking"}, map[string]any{"scenario": "balance"})
	require.NoError(t, s.StartTrace(tr))

	root := core.NewObservation(tr.ID, "", "run", core.ObservationSpan)
	require.NoError(t, s.StartObservation(root))

	gen := core.NewObservation(tr.ID, root.ID, "generation", core.ObservationGeneration)
	gen.Model = "gpt-4o-mini"
	gen.Usage = &core.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}
	gen.StartTime = root.StartTime.Add(time.Millisecond)
	require.NoError(t, s.StartObservation(gen))

	gen.End("hello", core.StatusOK, "")
	require.NoError(t, s.EndObservation(gen))
	root.End(nil, core.StatusOK, "")
	require.NoError(t, s.EndObservation(root))

	require.NoError(t, s.Flush(ctx, tr.ID))

	got, err := s.TraceByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "run", got.Name)
	assert.Equal(t, []string{"banking"}, got.Tags)
	require.Len(t, got.Observations, 2)
	assert.Equal(t, "run", got.Observations[0].Name)
	assert.Equal(t, "generation", got.Observations[1].Name)
	require.NotNil(t, got.Observations[1].Usage)
	assert.Equal(t, 15, got.Observations[1].Usage.TotalTokens)
}

func TestStore_FlushIdempotent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	tr := core.NewTrace("run", "u1", "s1", nil, nil)
	require.NoError(t, s.StartTrace(tr))
	root := core.NewObservation(tr.ID, "", "run", core.ObservationSpan)
	require.NoError(t, s.StartObservation(root))
	root.End(nil, core.StatusOK, "")
	require.NoError(t, s.EndObservation(root))

	require.NoError(t, s.Flush(ctx, tr.ID))
	require.NoError(t, s.Flush(ctx, tr.ID))

	got, err := s.TraceByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Len(t, got.Observations, 1)
}

func TestStore_TraceNotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.TraceByID(context.Background(), "missing")
	assert.ErrorIs(t, err, collector.ErrTraceNotFound)
}

func TestStore_LatestTrace(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	first := core.NewTrace("first", "u1", "s1", nil, nil)
	second := core.NewTrace("second", "u1", "s2", nil, nil)
	second.Timestamp = first.Timestamp.Add(time.Second)
	require.NoError(t, s.StartTrace(first))
	require.NoError(t, s.StartTrace(second))
	require.NoError(t, s.Flush(ctx, first.ID))
	require.NoError(t, s.Flush(ctx, second.ID))

	got, err := s.LatestTrace(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Name)
}
