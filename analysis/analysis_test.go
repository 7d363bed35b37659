package analysis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tracebench/collector"
	"github.com/hupe1980/tracebench/core"
)

type stubFetcher struct {
	docs []Document
	err  error
}

func (s *stubFetcher) Fetch(context.Context, string) ([]Document, error) { return s.docs, s.err }

type stubAnalyzer struct {
	issues []Issue
	err    error
}

func (s *stubAnalyzer) Analyze(context.Context, Type, []Document) ([]Issue, error) {
	return s.issues, s.err
}

func TestRun_InvalidTypeIsConfigurationError(t *testing.T) {
	store := collector.NewInMemory()
	defer store.Close()

	m := NewManager(func(o *Options) { o.Collector = store })

	_, err := m.Run(context.Background(), Input{Target: ".", Type: "styling"})
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))

	// Validation failed before any trace was opened, so nothing was flushed.
	_, err = store.LatestTrace(context.Background())
	assert.Error(t, err)
}

func TestRun_MissingTargetIsConfigurationError(t *testing.T) {
	m := NewManager()
	_, err := m.Run(context.Background(), Input{Type: TypeSecurity})
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))
}

func TestRun_PipelineStagesAreTraced(t *testing.T) {
	store := collector.NewInMemory()
	defer store.Close()

	m := NewManager(func(o *Options) {
		o.Collector = store
		o.Fetcher = &stubFetcher{docs: []Document{{Path: "a.go"}, {Path: "b.go"}}}
		o.Analyzer = &stubAnalyzer{issues: []Issue{
			{Severity: SeverityCritical, Rule: "hardcoded-credential", Path: "a.go", Line: 3},
			{Severity: SeverityMedium, Rule: "plaintext-transport", Path: "b.go", Line: 9},
			{Severity: SeverityMedium, Rule: "plaintext-transport", Path: "b.go", Line: 12},
		}}
	})

	res, err := m.Run(context.Background(), Input{Target: "repo", Type: TypeSecurity, UserID: "sec-bot"})
	require.NoError(t, err)

	assert.Empty(t, res.Error)
	assert.Equal(t, 2, res.DocumentsFetched)
	assert.Len(t, res.Issues, 3)
	assert.Equal(t, 1, res.SeverityCounts[SeverityCritical])
	assert.Equal(t, 2, res.SeverityCounts[SeverityMedium])
	assert.Equal(t, []string{"fetch", "analyze", "summarize"}, res.StagesCompleted)
	assert.Contains(t, res.Summary, "3 issues")

	tr, err := store.TraceByID(context.Background(), res.TraceID)
	require.NoError(t, err)
	assert.Equal(t, "sec-bot", tr.UserID)
	require.Len(t, tr.Observations, 4, "root + one observation per stage")

	names := map[string]bool{}
	roots := 0
	for _, obs := range tr.Observations {
		names[obs.Name] = true
		if obs.ParentID == "" {
			roots++
		}
	}
	assert.Equal(t, 1, roots)
	for _, stage := range []string{"fetch", "analyze", "summarize"} {
		assert.True(t, names[stage], "missing stage observation %q", stage)
	}
}

func TestRun_StageFailureCapturesPartials(t *testing.T) {
	store := collector.NewInMemory()
	defer store.Close()

	m := NewManager(func(o *Options) {
		o.Collector = store
		o.Fetcher = &stubFetcher{docs: []Document{{Path: "a.go"}}}
		o.Analyzer = &stubAnalyzer{err: errors.New("ruleset corrupted")}
	})

	res, err := m.Run(context.Background(), Input{Target: "repo", Type: TypeQuality})
	require.NoError(t, err, "stage failures are captured, not propagated")

	assert.Contains(t, res.Error, "analyze stage failed")
	assert.Contains(t, res.Error, "ruleset corrupted")
	assert.Equal(t, []string{"fetch"}, res.StagesCompleted)
	assert.Equal(t, 1, res.DocumentsFetched, "partial fetch result preserved")

	// The trace is still flushed, with the failed stage marked.
	tr, terr := store.TraceByID(context.Background(), res.TraceID)
	require.NoError(t, terr)
	found := false
	for _, obs := range tr.Observations {
		if obs.Name == "analyze" {
			found = true
			assert.Equal(t, core.StatusError, obs.Status)
		}
	}
	assert.True(t, found)
}

func TestRuleAnalyzer_SecurityFindings(t *testing.T) {
	docs := []Document{{
		Path: "cfg.go",
		Content: "package cfg\n" +
			`var apiKey = "sk-123456789"` + "\n" +
			`const endpoint = "http://internal.example.com"` + "\n",
	}}

	issues, err := (&RuleAnalyzer{}).Analyze(context.Background(), TypeSecurity, docs)
	require.NoError(t, err)

	rules := map[string]bool{}
	for _, is := range issues {
		rules[is.Rule] = true
	}
	assert.True(t, rules["hardcoded-credential"])
	assert.True(t, rules["plaintext-transport"])
}

func TestRuleAnalyzer_DependencyFindingsOnlyInManifests(t *testing.T) {
	docs := []Document{
		{Path: "go.mod", Content: "module x\n\nreplace a.b/c => ../c\n"},
		{Path: "main.go", Content: "// replace this later\n"},
	}

	issues, err := (&RuleAnalyzer{}).Analyze(context.Background(), TypeDependencies, docs)
	require.NoError(t, err)

	require.Len(t, issues, 1)
	assert.Equal(t, "local-replace", issues[0].Rule)
	assert.Equal(t, "go.mod", issues[0].Path)
}

func TestFileFetcher_WalksDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.bin"), []byte{0x00, 0x01}, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vendor"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendor", "dep.go"), []byte("package dep\n"), 0o644))

	docs, err := (&FileFetcher{}).Fetch(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, docs, 1)
	assert.Equal(t, filepath.Join(dir, "a.go"), docs[0].Path)
}
