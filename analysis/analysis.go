// Package analysis runs a fixed fetch, analyze, summarize pipeline over a
// target and records every stage as an observation under one trace, the same
// way the scenario runner wraps turns. Stage failures are captured into the
// result instead of propagating; only configuration problems abort before a
// trace is opened.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/tracebench/core"
	"github.com/hupe1980/tracebench/logging"
	"github.com/hupe1980/tracebench/tracing"
)

// Type selects the analysis performed over the fetched documents.
type Type string

const (
	TypeSecurity     Type = "security"
	TypeQuality      Type = "quality"
	TypeDependencies Type = "dependencies"
)

// Types lists the supported analysis types.
func Types() []Type {
	return []Type{TypeSecurity, TypeQuality, TypeDependencies}
}

// Severity ranks a reported issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Issue is one finding produced by an analyzer.
type Issue struct {
	Severity Severity `json:"severity"`
	Rule     string   `json:"rule"`
	Path     string   `json:"path"`
	Line     int      `json:"line,omitempty"`
	Message  string   `json:"message"`
}

// Document is one fetched source artifact.
type Document struct {
	Path    string
	Content string
}

// Fetcher retrieves the documents of a target.
type Fetcher interface {
	Fetch(ctx context.Context, target string) ([]Document, error)
}

// Analyzer inspects documents and reports issues.
type Analyzer interface {
	Analyze(ctx context.Context, typ Type, docs []Document) ([]Issue, error)
}

// Input parameterizes one pipeline run.
type Input struct {
	// Target is the path or identifier the fetcher resolves.
	Target string

	// Type selects the analyzer ruleset.
	Type Type

	// UserID and SessionID override the trace attribution.
	UserID    string
	SessionID string

	// Scenario, when set, labels the trace metadata with the scenario that
	// prompted the analysis.
	Scenario string
}

// Result is the structured pipeline outcome. Error is set instead of
// returning an error when a stage fails mid-pipeline; partial data gathered
// before the failure is preserved.
type Result struct {
	Type             Type             `json:"type"`
	Target           string           `json:"target"`
	TraceID          string           `json:"trace_id,omitempty"`
	DocumentsFetched int              `json:"documents_fetched"`
	Issues           []Issue          `json:"issues"`
	SeverityCounts   map[Severity]int `json:"severity_counts"`
	Summary          string           `json:"summary,omitempty"`
	StagesCompleted  []string         `json:"stages_completed"`
	Error            string           `json:"error,omitempty"`
	DurationMS       float64          `json:"duration_ms"`
}

// Options holds dependency overrides passed to NewManager().
type Options struct {
	// Collector receives the pipeline trace. Nil disables tracing.
	Collector core.Collector
	// Logger receives pipeline diagnostics.
	Logger logging.Logger
	// Fetcher resolves targets to documents.
	Fetcher Fetcher
	// Analyzer produces issues from documents.
	Analyzer Analyzer
	// UserID is the default trace attribution.
	UserID string
}

// Manager owns the analysis pipeline.
type Manager struct {
	collector core.Collector
	logger    logging.Logger
	fetcher   Fetcher
	analyzer  Analyzer
	userID    string
}

// NewManager constructs a Manager with optional overrides.
func NewManager(optFns ...func(o *Options)) *Manager {
	opts := Options{
		Logger:   logging.NoOpLogger{},
		Fetcher:  &FileFetcher{},
		Analyzer: &RuleAnalyzer{},
		UserID:   "analysis-harness",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{
		collector: opts.Collector,
		logger:    opts.Logger,
		fetcher:   opts.Fetcher,
		analyzer:  opts.Analyzer,
		userID:    opts.UserID,
	}
}

// Run validates the input, then executes fetch, analyze and summarize under
// one trace. Validation failures return a ConfigurationError before any trace
// is opened; stage failures are captured into the result and do not return an
// error.
func (m *Manager) Run(ctx context.Context, in Input) (*Result, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	userID := in.UserID
	if userID == "" {
		userID = m.userID
	}
	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("analysis-%s", in.Type)
	}

	md := map[string]any{"target": in.Target, "analysis_type": string(in.Type)}
	if in.Scenario != "" {
		md["scenario"] = in.Scenario
	}

	rec := tracing.NewRecorder(m.collector, func(o *tracing.Options) { o.Logger = m.logger })
	rec.StartTrace(fmt.Sprintf("analysis:%s", in.Type), userID, sessionID, []string{"analysis", string(in.Type)}, md)

	flushCtx := context.WithoutCancel(ctx)
	defer rec.Flush(flushCtx)

	started := time.Now()
	res := &Result{
		Type:           in.Type,
		Target:         in.Target,
		TraceID:        rec.TraceID(),
		Issues:         []Issue{},
		SeverityCounts: map[Severity]int{},
	}

	docs, ok := stage(rec, m.logger, res, "fetch", in.Target, func() ([]Document, error) {
		return m.fetcher.Fetch(ctx, in.Target)
	})
	if !ok {
		return finish(res, started), nil
	}
	res.DocumentsFetched = len(docs)

	issues, ok := stage(rec, m.logger, res, "analyze", len(docs), func() ([]Issue, error) {
		return m.analyzer.Analyze(ctx, in.Type, docs)
	})
	if !ok {
		return finish(res, started), nil
	}
	res.Issues = issues

	_, _ = stage(rec, m.logger, res, "summarize", len(issues), func() (struct{}, error) {
		res.SeverityCounts = countSeverities(issues)
		res.Summary = summarize(in, res)
		return struct{}{}, nil
	})

	rec.UpdateTrace(nil, map[string]any{
		"documents": res.DocumentsFetched,
		"issues":    len(res.Issues),
	}, false)

	return finish(res, started), nil
}

// stage wraps one pipeline step as an observation, logs its outcome and
// records a failure into the result.
func stage[T any](rec *tracing.Recorder, log logging.Logger, res *Result, name string, input any, fn func() (T, error)) (T, bool) {
	span := rec.StartSpan("", name, input, nil)
	start := time.Now()

	out, err := fn()

	logStage(log, name, time.Since(start), err)
	if err != nil {
		rec.EndSpan(span, nil, core.StatusError, err.Error())
		res.Error = fmt.Sprintf("%s stage failed: %v", name, err)
		return out, false
	}
	rec.EndSpan(span, nil, core.StatusOK, "")
	res.StagesCompleted = append(res.StagesCompleted, name)
	return out, true
}

func logStage(l logging.Logger, name string, dur time.Duration, err error) {
	if hl, ok := l.(*logging.HarnessLogger); ok {
		hl.LogStage(name, dur, err)
		return
	}
	if err != nil {
		l.Error("stage %s failed after %s: %v", name, dur, err)
		return
	}
	l.Debug("stage %s completed in %s", name, dur)
}

func finish(res *Result, started time.Time) *Result {
	res.DurationMS = float64(time.Since(started)) / float64(time.Millisecond)
	return res
}

func validate(in Input) error {
	if strings.TrimSpace(in.Target) == "" {
		return &core.ConfigurationError{Field: "target", Reason: "analysis target is required"}
	}
	switch in.Type {
	case TypeSecurity, TypeQuality, TypeDependencies:
		return nil
	default:
		return &core.ConfigurationError{Field: "type", Reason: fmt.Sprintf("unknown analysis type %q (valid: %v)", in.Type, Types())}
	}
}

func countSeverities(issues []Issue) map[Severity]int {
	counts := map[Severity]int{}
	for _, is := range issues {
		counts[is.Severity]++
	}
	return counts
}

func summarize(in Input, res *Result) string {
	if len(res.Issues) == 0 {
		return fmt.Sprintf("%s analysis of %s: no issues found in %d documents", in.Type, in.Target, res.DocumentsFetched)
	}

	sevs := make([]string, 0, len(res.SeverityCounts))
	for sev := range res.SeverityCounts {
		sevs = append(sevs, string(sev))
	}
	sort.Strings(sevs)

	parts := make([]string, 0, len(sevs))
	for _, sev := range sevs {
		parts = append(parts, fmt.Sprintf("%s=%d", sev, res.SeverityCounts[Severity(sev)]))
	}
	return fmt.Sprintf("%s analysis of %s: %d issues across %d documents (%s)",
		in.Type, in.Target, len(res.Issues), res.DocumentsFetched, strings.Join(parts, ", "))
}
