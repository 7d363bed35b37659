package tracing

import (
	"context"
	"testing"

	"github.com/hupe1980/tracebench/collector"
	"github.com/hupe1980/tracebench/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingCollector reports the backend as unreachable on every call.
type failingCollector struct{}

func (failingCollector) StartTrace(*core.Trace) error {
	return core.ErrCollectorUnavailable
}
func (failingCollector) StartObservation(*core.Observation) error {
	return core.ErrCollectorUnavailable
}
func (failingCollector) EndObservation(*core.Observation) error {
	return core.ErrCollectorUnavailable
}
func (failingCollector) Flush(context.Context, string) error {
	return core.ErrCollectorUnavailable
}

func TestRecorder_SingleRootObservation(t *testing.T) {
	store := collector.NewInMemory()
	defer store.Close()
	rec := NewRecorder(store)

	tr := rec.StartTrace("balance-inquiry", "u1", "cust-1", []string{"banking"}, nil)
	span := rec.StartSpan("", "turn 1", "show my balances", nil)
	rec.EndSpan(span, "your balance is $10", core.StatusOK, "")
	require.NoError(t, rec.Flush(context.Background()))

	got, err := store.TraceByID(context.Background(), tr.ID)
	require.NoError(t, err)

	roots := 0
	for _, obs := range got.Observations {
		if obs.ParentID == "" {
			roots++
		} else {
			assert.Equal(t, rec.RootID(), obs.ParentID)
		}
	}
	assert.Equal(t, 1, roots, "every trace has exactly one root observation")
}

func TestRecorder_FlushIdempotent(t *testing.T) {
	store := collector.NewInMemory()
	defer store.Close()
	rec := NewRecorder(store)

	tr := rec.StartTrace("run", "u1", "s1", nil, nil)
	span := rec.StartSpan("", "turn 1", nil, nil)
	rec.EndSpan(span, nil, core.StatusOK, "")

	require.NoError(t, rec.Flush(context.Background()))
	require.NoError(t, rec.Flush(context.Background()))

	got, err := store.TraceByID(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.Len(t, got.Observations, 2, "root + span, no duplicates")
}

func TestRecorder_FlushClosesOpenObservationsWithError(t *testing.T) {
	store := collector.NewInMemory()
	defer store.Close()
	rec := NewRecorder(store)

	tr := rec.StartTrace("run", "u1", "s1", nil, nil)
	rec.StartSpan("", "interrupted turn", nil, nil) // never ended
	require.NoError(t, rec.Flush(context.Background()))

	got, err := store.TraceByID(context.Background(), tr.ID)
	require.NoError(t, err)
	require.Len(t, got.Observations, 2)

	var interrupted *core.Observation
	for i := range got.Observations {
		if got.Observations[i].Name == "interrupted turn" {
			interrupted = &got.Observations[i]
		}
	}
	require.NotNil(t, interrupted)
	assert.Equal(t, core.StatusError, interrupted.Status)
	assert.False(t, interrupted.EndTime.Before(interrupted.StartTime))
}

func TestRecorder_DegradesOnCollectorUnavailable(t *testing.T) {
	rec := NewRecorder(failingCollector{})

	rec.StartTrace("run", "u1", "s1", nil, nil)
	assert.True(t, rec.Degraded())

	// Everything stays usable as a no-op.
	span := rec.StartSpan("", "turn 1", nil, nil)
	rec.EndSpan(span, nil, core.StatusOK, "")
	assert.NoError(t, rec.Flush(context.Background()))
}

func TestRecorder_NilCollectorIsNoOp(t *testing.T) {
	rec := NewRecorder(nil)
	rec.StartTrace("run", "u1", "s1", nil, nil)
	span := rec.StartSpan("", "turn 1", nil, nil)
	rec.EndSpan(span, nil, core.StatusOK, "")
	assert.NoError(t, rec.Flush(context.Background()))
	assert.True(t, rec.Degraded())
}

func TestRecorder_UpdateTraceMergesWithoutOverwrite(t *testing.T) {
	store := collector.NewInMemory()
	defer store.Close()
	rec := NewRecorder(store)

	tr := rec.StartTrace("run", "u1", "s1", []string{"banking"}, map[string]any{"scenario": "balance"})
	rec.UpdateTrace([]string{"pass"}, map[string]any{"scenario": "other", "turns": 2}, false)
	require.NoError(t, rec.Flush(context.Background()))

	got, err := store.TraceByID(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"banking", "pass"}, got.Tags)
	assert.Equal(t, "balance", got.Metadata["scenario"])
	assert.Equal(t, float64(2), toFloat(got.Metadata["turns"]))
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	default:
		return -1
	}
}
