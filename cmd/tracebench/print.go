package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/tracebench/analysis"
	"github.com/hupe1980/tracebench/runner"
)

func printScenario(cmd *cobra.Command, res *runner.ScenarioResult) {
	status := "PASS"
	if !res.Pass {
		status = "FAIL"
	}
	cmd.Printf("%s  %s (%d turns, %.0fms)\n", status, res.Scenario, res.Summary.TotalTurns, res.DurationMS)

	for _, turn := range res.Turns {
		if turn.Skipped {
			cmd.Printf("  turn %d: not run\n", turn.Index)
			continue
		}
		cmd.Printf("  turn %d: %s\n", turn.Index, turn.Status)
		if turn.Error != "" {
			cmd.Printf("    error: %s\n", turn.Error)
		}
		for _, a := range turn.Assertions {
			if a.Passed {
				continue
			}
			cmd.Printf("    assertion %s failed\n", a.Kind)
			cmd.Printf("      input:    %s\n", turn.Input)
			cmd.Printf("      expected: %s\n", a.Expected)
			cmd.Printf("      actual:   %s\n", a.Actual)
			if a.Message != "" {
				cmd.Printf("      cause:    %s\n", a.Message)
			}
		}
	}
	if res.TraceID != "" {
		cmd.Printf("  trace: %s\n", res.TraceID)
	}
	if res.ReportPath != "" {
		cmd.Printf("  report: %s\n", res.ReportPath)
	}
}

func printBatch(cmd *cobra.Command, batch *runner.BatchResult) {
	for _, res := range batch.Results {
		printScenario(cmd, res)
	}
	cmd.Printf("\n%d passed, %d failed\n", batch.Passed, batch.Failed)
}

func printAnalysis(cmd *cobra.Command, res *analysis.Result) {
	cmd.Printf("%s analysis of %s\n", res.Type, res.Target)
	cmd.Printf("  documents: %d, issues: %d\n", res.DocumentsFetched, len(res.Issues))
	for _, is := range res.Issues {
		cmd.Printf("  [%s] %s %s:%d %s\n", is.Severity, is.Rule, is.Path, is.Line, is.Message)
	}
	if res.Summary != "" {
		cmd.Printf("  %s\n", res.Summary)
	}
	if res.TraceID != "" {
		cmd.Printf("  trace: %s\n", res.TraceID)
	}
}
