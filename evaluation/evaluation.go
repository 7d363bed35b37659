// Package evaluation checks agent output against the expected-behavior
// assertions declared on a scenario turn. Assertions are evaluated only after
// the agent call has fully returned; each assertion yields one Result so a
// turn's outcome is always fully enumerable in the final report.
package evaluation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/tracebench/core"
	"github.com/hupe1980/tracebench/scenario"
)

// Kind identifies the assertion predicate.
type Kind string

const (
	KindMessageContains Kind = "message_contains"
	KindToolCalled      Kind = "tool_called"
	KindContextUpdates  Kind = "context_updates"
	KindAuthenticated   Kind = "authenticated"
	KindMaxToolCalls    Kind = "max_tool_calls"
)

// Outcome bundles everything a turn produced that assertions may inspect.
type Outcome struct {
	// Output is the agent's textual response. Empty when Err is set.
	Output string

	// ToolsInvoked lists the tools the agent called during the turn.
	ToolsInvoked []string

	// Err is the invocation error, if the agent call failed.
	Err error

	// Context is the session context after the turn.
	Context *core.Context

	// ContextChanges maps the context fields written during the turn to
	// their new values.
	ContextChanges map[string]any
}

// Result is the outcome of evaluating a single assertion.
type Result struct {
	Kind     Kind   `json:"kind"`
	Turn     int    `json:"turn"`
	Passed   bool   `json:"passed"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Message  string `json:"message,omitempty"`
}

// EvaluateTurn evaluates every assertion of the expectation against the
// outcome, in declaration order. The returned slice has one entry per
// declared assertion value (each expected substring and tool name counts
// individually, matching how failures are reported).
func EvaluateTurn(turnIndex int, exp scenario.Expectation, out Outcome) []Result {
	var results []Result

	for _, want := range exp.MessageContains {
		r := Result{Kind: KindMessageContains, Turn: turnIndex, Expected: fmt.Sprintf("output contains %q", want)}
		r.Passed = strings.Contains(strings.ToLower(out.Output), strings.ToLower(want))
		r.Actual = truncate(out.Output, 120)
		if !r.Passed {
			r.Message = fmt.Sprintf("response did not contain expected text %q%s", want, rootCause(out))
		}
		results = append(results, r)
	}

	for _, want := range exp.ToolCalled {
		r := Result{Kind: KindToolCalled, Turn: turnIndex, Expected: fmt.Sprintf("tool %q called", want)}
		r.Passed = slices.Contains(out.ToolsInvoked, want)
		r.Actual = fmt.Sprintf("invoked %v", out.ToolsInvoked)
		if !r.Passed {
			r.Message = fmt.Sprintf("expected tool %q was not called%s", want, rootCause(out))
		}
		results = append(results, r)
	}

	for _, field := range exp.ContextUpdates {
		r := Result{Kind: KindContextUpdates, Turn: turnIndex, Expected: fmt.Sprintf("context field %q updated", field)}
		_, r.Passed = out.ContextChanges[field]
		r.Actual = fmt.Sprintf("updated %v", keys(out.ContextChanges))
		if !r.Passed {
			r.Message = fmt.Sprintf("expected context field %q was not updated", field)
		}
		results = append(results, r)
	}

	if exp.Authenticated != nil {
		want := *exp.Authenticated
		got := out.Context != nil && out.Context.IsAuthenticated()
		r := Result{
			Kind:     KindAuthenticated,
			Turn:     turnIndex,
			Passed:   got == want,
			Expected: fmt.Sprintf("authenticated=%t", want),
			Actual:   fmt.Sprintf("authenticated=%t", got),
		}
		if !r.Passed {
			if want && !got {
				r.Message = "the context was never authenticated"
			} else {
				r.Message = fmt.Sprintf("expected authentication status %t, got %t", want, got)
			}
		}
		results = append(results, r)
	}

	if exp.MaxToolCalls != nil {
		limit := *exp.MaxToolCalls
		r := Result{
			Kind:     KindMaxToolCalls,
			Turn:     turnIndex,
			Passed:   len(out.ToolsInvoked) <= limit,
			Expected: fmt.Sprintf("at most %d tool calls", limit),
			Actual:   fmt.Sprintf("%d tool calls", len(out.ToolsInvoked)),
		}
		if !r.Passed {
			r.Message = fmt.Sprintf("expected at most %d tool calls, got %d", limit, len(out.ToolsInvoked))
		}
		results = append(results, r)
	}

	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// rootCause annotates a failure diagnostic with the most likely underlying
// cause: a failed invocation, or a session that never authenticated.
func rootCause(out Outcome) string {
	if out.Err != nil {
		return fmt.Sprintf(" (invocation error: %v)", out.Err)
	}
	if out.Context != nil && !out.Context.IsAuthenticated() {
		return " (the context was never authenticated)"
	}
	return ""
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
