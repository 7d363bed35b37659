package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/tracebench/core"
	"github.com/hupe1980/tracebench/scenario"
)

// Step is one canned agent exchange.
type Step struct {
	// Output is the response text returned for the turn.
	Output string

	// Tools lists tool names reported as invoked.
	Tools []string

	// Err, when set, is returned instead of a response.
	Err error

	// Mutate, when set, is applied to the session context before returning,
	// mimicking tool side effects such as authentication.
	Mutate func(sc *core.Context)

	// Model and Usage mark the step as a generation.
	Model string
	Usage *core.Usage
}

// ScriptedAgent replays a fixed sequence of steps. Calls beyond the script
// repeat the last step. Safe for concurrent use across sessions.
type ScriptedAgent struct {
	AgentName string
	Steps     []Step

	mu    sync.Mutex
	calls map[string]int
}

// NewScriptedAgent builds an agent that replays the given steps in order,
// tracked per session so parallel scenarios stay independent.
func NewScriptedAgent(steps ...Step) *ScriptedAgent {
	return &ScriptedAgent{AgentName: "scripted", Steps: steps, calls: map[string]int{}}
}

// Name implements core.Agent.
func (a *ScriptedAgent) Name() string {
	if a.AgentName == "" {
		return "scripted"
	}
	return a.AgentName
}

// Run implements core.Agent.
func (a *ScriptedAgent) Run(_ context.Context, _ string, sc *core.Context) (*core.AgentResponse, error) {
	a.mu.Lock()
	if a.calls == nil {
		a.calls = map[string]int{}
	}
	idx := a.calls[sc.ID]
	a.calls[sc.ID]++
	a.mu.Unlock()

	if len(a.Steps) == 0 {
		return &core.AgentResponse{}, nil
	}
	if idx >= len(a.Steps) {
		idx = len(a.Steps) - 1
	}
	step := a.Steps[idx]

	if step.Mutate != nil {
		step.Mutate(sc)
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return &core.AgentResponse{
		Output:       step.Output,
		ToolsInvoked: step.Tools,
		Model:        step.Model,
		Usage:        step.Usage,
	}, nil
}

// Authenticating returns a Mutate func that authenticates the session as the
// given customer.
func Authenticating(customerID int) func(sc *core.Context) {
	return func(sc *core.Context) { sc.Authenticate(customerID) }
}

// SimpleScenario builds an in-memory scenario document from turn inputs.
func SimpleScenario(name string, turns ...scenario.Turn) *scenario.Scenario {
	return &scenario.Scenario{
		Name:        name,
		Description: "test fixture",
		Turns:       turns,
	}
}
