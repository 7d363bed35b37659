package tracebench

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tracebench/config"
	"github.com/hupe1980/tracebench/core"
	"github.com/hupe1980/tracebench/internal/testutil"
	"github.com/hupe1980/tracebench/runner"
	"github.com/hupe1980/tracebench/scenario"
)

func TestHarness_EndToEnd(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	defer h.Close()

	agent := testutil.NewScriptedAgent(
		testutil.Step{Output: "welcome", Tools: []string{"authenticate_customer"}, Mutate: testutil.Authenticating(42)},
		testutil.Step{Output: "your balance is $99", Model: "stub-model"},
	)
	r := h.Runner(agent, func(o *runner.Options) { o.ReportsDir = "" })

	auth := true
	sc := testutil.SimpleScenario("facade-smoke",
		scenario.Turn{Input: "log me in", Expected: scenario.Expectation{Authenticated: &auth}},
		scenario.Turn{Input: "balance?", Expected: scenario.Expectation{MessageContains: []string{"balance"}}},
	)

	res, err := r.RunScenario(context.Background(), sc)
	require.NoError(t, err)
	assert.True(t, res.Pass)

	exp, err := h.Exporter()
	require.NoError(t, err)

	tr, err := exp.FetchByID(context.Background(), res.TraceID)
	require.NoError(t, err)

	doc := exp.Serialize(tr)
	assert.GreaterOrEqual(t, len(doc.Observations), len(sc.Turns))
	roots := 0
	for _, obs := range doc.Observations {
		if obs.ParentID == "" {
			roots++
		}
	}
	assert.Equal(t, 1, roots)
}

func TestHarness_InvalidConfigRejectedUpFront(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Collector.Backend = "cassandra"

	_, err = New(func(o *Options) { o.Config = cfg })
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))
}

func TestHarness_TracingDisabled(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Collector.Enabled = false

	h, err := New(func(o *Options) { o.Config = cfg })
	require.NoError(t, err)
	defer h.Close()

	assert.Nil(t, h.Collector())
	_, err = h.Exporter()
	assert.Error(t, err)

	// Scenarios still run without a collector.
	r := h.Runner(testutil.NewScriptedAgent(testutil.Step{Output: "ok"}), func(o *runner.Options) { o.ReportsDir = "" })
	res, err := r.RunScenario(context.Background(), testutil.SimpleScenario("untraced", scenario.Turn{Input: "hi"}))
	require.NoError(t, err)
	assert.True(t, res.Pass)
}
