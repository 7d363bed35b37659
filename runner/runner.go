package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/hupe1980/tracebench/core"
	"github.com/hupe1980/tracebench/evaluation"
	"github.com/hupe1980/tracebench/logging"
	"github.com/hupe1980/tracebench/scenario"
	"github.com/hupe1980/tracebench/session"
	"github.com/hupe1980/tracebench/tracing"
)

// Turn statuses reported per executed or skipped turn.
const (
	StatusPassed = "passed"
	StatusFailed = "failed"
	StatusNotRun = "not run"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// ContextStore resolves session contexts across turns.
	ContextStore core.ContextStore
	// Collector receives the recorded traces. Nil disables tracing.
	Collector core.Collector
	// Logger receives runner diagnostics.
	Logger logging.Logger
	// UserID is attached to every trace.
	UserID string
	// ReportsDir, when set, receives one JSON report file per scenario.
	ReportsDir string
	// MaxParallel bounds concurrent scenarios in RunAll and RunDir.
	MaxParallel int
}

// Runner drives scenario execution against a single agent. Turns within a
// scenario are strictly sequential; public methods are safe for concurrent
// use across scenarios.
type Runner struct {
	agent core.Agent

	contextStore core.ContextStore
	collector    core.Collector
	logger       logging.Logger
	userID       string
	reportsDir   string
	maxParallel  int
}

// New constructs a Runner with optional overrides.
func New(agent core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		ContextStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
		UserID:       "scenario-harness",
		MaxParallel:  4,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxParallel < 1 {
		opts.MaxParallel = 1
	}

	return &Runner{
		agent:        agent,
		contextStore: opts.ContextStore,
		collector:    opts.Collector,
		logger:       opts.Logger,
		userID:       opts.UserID,
		reportsDir:   opts.ReportsDir,
		maxParallel:  opts.MaxParallel,
	}
}

// ContextStore returns the store backing session resolution, so callers can
// reset state between independent runs.
func (r *Runner) ContextStore() core.ContextStore { return r.contextStore }

// TurnResult is the recorded outcome of one scenario turn.
type TurnResult struct {
	Index        int                 `json:"turn"`
	Input        string              `json:"input"`
	Status       string              `json:"status"`
	Output       string              `json:"output,omitempty"`
	ToolsInvoked []string            `json:"tools_invoked,omitempty"`
	Skipped      bool                `json:"skipped,omitempty"`
	Error        string              `json:"error,omitempty"`
	Assertions   []evaluation.Result `json:"assertions,omitempty"`
	DurationMS   float64             `json:"duration_ms"`
}

// Summary aggregates per-scenario execution statistics.
type Summary struct {
	TotalTurns    int     `json:"total_turns"`
	PassedTurns   int     `json:"passed_turns"`
	FailedTurns   int     `json:"failed_turns"`
	SkippedTurns  int     `json:"skipped_turns"`
	ToolsCalled   int     `json:"tools_called"`
	AvgTurnMS     float64 `json:"avg_turn_ms"`
	Authenticated bool    `json:"authenticated"`
}

// ScenarioResult is the full outcome of one scenario run. A scenario with N
// turns always yields exactly N turn results, in input order.
type ScenarioResult struct {
	Scenario    string       `json:"scenario"`
	Description string       `json:"description,omitempty"`
	SessionID   string       `json:"session_id"`
	TraceID     string       `json:"trace_id,omitempty"`
	Agent       string       `json:"agent"`
	StartedAt   time.Time    `json:"started_at"`
	DurationMS  float64      `json:"duration_ms"`
	Pass        bool         `json:"pass"`
	Turns       []TurnResult `json:"turns"`
	Summary     Summary      `json:"summary"`

	// ReportPath is the report file written for this run, if any.
	ReportPath string `json:"-"`
}

// RunScenario executes every turn of the scenario in order and returns the
// aggregated result. Agent invocation failures are recorded on the failing
// turn and never propagated; a returned error means the scenario itself could
// not be run (invalid document, report write failure).
func (r *Runner) RunScenario(ctx context.Context, sc *scenario.Scenario) (*ScenarioResult, error) {
	if sc == nil {
		return nil, fmt.Errorf("scenario is nil")
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	sessionID := sc.SessionID()
	sctx := r.contextStore.GetOrCreate(sessionID)

	rec := tracing.NewRecorder(r.collector, func(o *tracing.Options) { o.Logger = r.logger })
	rec.StartTrace(sc.Name, r.userID, sessionID, sc.Tags, traceMetadata(sc, r.agent.Name()))

	// The flush must survive caller cancellation so the trace is delivered on
	// every exit path.
	flushCtx := context.WithoutCancel(ctx)
	defer rec.Flush(flushCtx)

	log := r.scopedLogger(sessionID, rec.TraceID())
	log.Info("running scenario %q (%d turns)", sc.Name, len(sc.Turns))

	started := time.Now().UTC()
	result := &ScenarioResult{
		Scenario:    sc.Name,
		Description: sc.Description,
		SessionID:   sessionID,
		TraceID:     rec.TraceID(),
		Agent:       r.agent.Name(),
		StartedAt:   started,
		Pass:        true,
		Turns:       make([]TurnResult, 0, len(sc.Turns)),
	}

	abort := false
	for i, turn := range sc.Turns {
		if abort {
			result.Turns = append(result.Turns, TurnResult{
				Index:   i + 1,
				Input:   turn.Input,
				Status:  StatusNotRun,
				Skipped: true,
			})
			continue
		}

		tr := r.runTurn(ctx, rec, log, sctx, i+1, turn)
		result.Turns = append(result.Turns, tr)

		if tr.Status == StatusFailed {
			result.Pass = false
			if turn.Fatal {
				log.Warn("fatal turn %d failed, skipping remaining turns", i+1)
				abort = true
			}
		}
	}

	result.DurationMS = float64(time.Since(started)) / float64(time.Millisecond)
	result.Summary = summarize(result, sctx)

	rec.UpdateTrace(resultTags(result.Pass), map[string]any{
		"turns_executed": result.Summary.TotalTurns - result.Summary.SkippedTurns,
		"turns_failed":   result.Summary.FailedTurns,
		"tools_called":   result.Summary.ToolsCalled,
		"pass":           result.Pass,
	}, false)

	if err := rec.Flush(flushCtx); err != nil {
		log.Warn("trace delivery failed: %v", err)
	}

	if r.reportsDir != "" {
		path, err := writeReport(r.reportsDir, result)
		if err != nil {
			return result, fmt.Errorf("failed to write scenario report: %w", err)
		}
		result.ReportPath = path
		log.Debug("report written to %s", path)
	}

	return result, nil
}

// runTurn executes one turn: open the observation, invoke the agent, close
// the observation, evaluate assertions, and append the exchange to history.
func (r *Runner) runTurn(ctx context.Context, rec *tracing.Recorder, log logging.Logger, sctx *core.Context, index int, turn scenario.Turn) TurnResult {
	span := rec.StartSpan("", fmt.Sprintf("turn %d", index), turn.Input, map[string]any{"turn": index})
	before := sctx.Snapshot()
	start := time.Now()

	resp, err := r.agent.Run(ctx, turn.Input, sctx)

	dur := time.Since(start)
	changes := core.DiffSnapshots(before, sctx.Snapshot())

	tr := TurnResult{
		Index:      index,
		Input:      turn.Input,
		DurationMS: float64(dur) / float64(time.Millisecond),
	}

	out := evaluation.Outcome{Context: sctx, ContextChanges: changes}
	if err != nil {
		out.Err = err
		tr.Error = err.Error()
		rec.EndSpan(span, nil, core.StatusError, err.Error())
	} else {
		out.Output = resp.Output
		out.ToolsInvoked = resp.ToolsInvoked
		tr.Output = resp.Output
		tr.ToolsInvoked = resp.ToolsInvoked

		if resp.Model != "" {
			gen := rec.StartGeneration(span.ID, "generation", resp.Model, turn.Input, nil)
			gen.Usage = resp.Usage
			rec.EndSpan(gen, resp.Output, core.StatusOK, "")
		}
		rec.EndSpan(span, resp.Output, core.StatusOK, "")

		sctx.AppendTurn(core.TurnRecord{
			Index:        index,
			Input:        turn.Input,
			Output:       resp.Output,
			ToolsInvoked: resp.ToolsInvoked,
			Timestamp:    time.Now().UTC(),
		})
	}

	tr.Assertions = evaluation.EvaluateTurn(index, turn.Expected, out)
	if err == nil && evaluation.AllPassed(tr.Assertions) {
		tr.Status = StatusPassed
	} else {
		tr.Status = StatusFailed
	}

	logTurn(log, index, dur, len(tr.ToolsInvoked), err)
	return tr
}

// BatchResult aggregates the outcomes of a multi-scenario run.
type BatchResult struct {
	Results []*ScenarioResult `json:"results"`
	Passed  int               `json:"passed"`
	Failed  int               `json:"failed"`
}

// AllPassed reports whether every scenario in the batch passed.
func (b *BatchResult) AllPassed() bool { return b.Failed == 0 }

// RunAll executes the scenarios through a bounded worker pool. Scenario
// ordering in the result matches the input ordering regardless of scheduling.
func (r *Runner) RunAll(ctx context.Context, scenarios []*scenario.Scenario) (*BatchResult, error) {
	results := make([]*ScenarioResult, len(scenarios))
	errs := make([]error, len(scenarios))

	p := pool.New().WithMaxGoroutines(r.maxParallel)
	for i, sc := range scenarios {
		p.Go(func() {
			results[i], errs[i] = r.RunScenario(ctx, sc)
		})
	}
	p.Wait()

	batch := &BatchResult{Results: results}
	for i, res := range results {
		if errs[i] != nil {
			return batch, fmt.Errorf("scenario %q: %w", scenarios[i].Name, errs[i])
		}
		if res.Pass {
			batch.Passed++
		} else {
			batch.Failed++
		}
	}
	return batch, nil
}

// RunDir loads every scenario file in the directory and runs them all.
func (r *Runner) RunDir(ctx context.Context, dir string) (*BatchResult, error) {
	scenarios, err := scenario.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}
	return r.RunAll(ctx, scenarios)
}

func (r *Runner) scopedLogger(sessionID, traceID string) logging.Logger {
	if hl, ok := r.logger.(*logging.HarnessLogger); ok {
		return hl.WithComponent("runner").WithScenario(sessionID, traceID)
	}
	return r.logger
}

func logTurn(l logging.Logger, turn int, dur time.Duration, toolCalls int, err error) {
	if hl, ok := l.(*logging.HarnessLogger); ok {
		hl.LogTurn(turn, dur, toolCalls, err)
		return
	}
	if err != nil {
		l.Error("turn %d failed after %s: %v", turn, dur, err)
		return
	}
	l.Debug("turn %d completed in %s (%d tool calls)", turn, dur, toolCalls)
}

func traceMetadata(sc *scenario.Scenario, agentName string) map[string]any {
	promptChars := 0
	for _, t := range sc.Turns {
		promptChars += len(t.Input)
	}
	md := map[string]any{
		"scenario":     sc.Name,
		"agent":        agentName,
		"turns":        len(sc.Turns),
		"prompt_chars": promptChars,
	}
	if sc.Description != "" {
		md["description"] = sc.Description
	}
	for k, v := range sc.Metadata {
		md[k] = v
	}
	return md
}

func resultTags(pass bool) []string {
	if pass {
		return []string{"result:pass"}
	}
	return []string{"result:fail"}
}

func summarize(res *ScenarioResult, sctx *core.Context) Summary {
	s := Summary{
		TotalTurns:    len(res.Turns),
		Authenticated: sctx.IsAuthenticated(),
	}
	var execMS float64
	for _, t := range res.Turns {
		switch t.Status {
		case StatusPassed:
			s.PassedTurns++
		case StatusFailed:
			s.FailedTurns++
		default:
			s.SkippedTurns++
		}
		s.ToolsCalled += len(t.ToolsInvoked)
		execMS += t.DurationMS
	}
	if executed := s.TotalTurns - s.SkippedTurns; executed > 0 {
		s.AvgTurnMS = execMS / float64(executed)
	}
	return s
}
