// Command tracebench runs trace-instrumented agent scenarios, analyzes
// targets through the staged pipeline, and exports recorded traces.
//
// Exit code 0 means full success; any failed scenario, pipeline error or
// configuration problem exits 1.
package main

import (
	"fmt"
	"os"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/hupe1980/tracebench"
	"github.com/hupe1980/tracebench/analysis"
	"github.com/hupe1980/tracebench/config"
	"github.com/hupe1980/tracebench/core"
	"github.com/hupe1980/tracebench/model/anthropic"
	"github.com/hupe1980/tracebench/model/openai"
	"github.com/hupe1980/tracebench/runner"
	"github.com/hupe1980/tracebench/scenario"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "tracebench",
		Short:         "Trace-instrumented scenario execution harness",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to a config file")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newAnalyzeCmd(flags))
	cmd.AddCommand(newTraceCmd(flags))

	return cmd
}

func newHarness(flags *rootFlags) (*tracebench.Harness, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.verbose {
		cfg.Logging.Level = "debug"
	}
	return tracebench.New(func(o *tracebench.Options) { o.Config = cfg })
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	var (
		userID     string
		sessionID  string
		reportsDir string
		parallel   int
	)

	cmd := &cobra.Command{
		Use:   "run <scenario-file-or-dir>",
		Short: "Run a scenario file or every scenario in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHarness(flags)
			if err != nil {
				return err
			}
			defer h.Close()

			agent, err := buildAgent(h.Config())
			if err != nil {
				return err
			}

			r := h.Runner(agent, func(o *runner.Options) {
				if userID != "" {
					o.UserID = userID
				}
				if reportsDir != "" {
					o.ReportsDir = reportsDir
				}
				if parallel > 0 {
					o.MaxParallel = parallel
				}
			})

			target := args[0]
			info, err := os.Stat(target)
			if err != nil {
				return fmt.Errorf("failed to resolve %s: %w", target, err)
			}

			if info.IsDir() {
				batch, err := r.RunDir(cmd.Context(), target)
				if err != nil {
					return err
				}
				printBatch(cmd, batch)
				if !batch.AllPassed() {
					return fmt.Errorf("%d of %d scenarios failed", batch.Failed, batch.Failed+batch.Passed)
				}
				return nil
			}

			sc, err := scenario.Load(target)
			if err != nil {
				return err
			}
			if sessionID != "" {
				sc.Session = sessionID
			}

			res, err := r.RunScenario(cmd.Context(), sc)
			if err != nil {
				return err
			}
			printScenario(cmd, res)
			if !res.Pass {
				return fmt.Errorf("scenario %q failed", res.Scenario)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id attached to traces")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id override (single file only)")
	cmd.Flags().StringVar(&reportsDir, "reports-dir", "", "directory for JSON reports")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "max scenarios running in parallel")

	return cmd
}

func newAnalyzeCmd(flags *rootFlags) *cobra.Command {
	var (
		typ          string
		quiet        bool
		userID       string
		sessionID    string
		scenarioName string
	)

	cmd := &cobra.Command{
		Use:   "analyze <target>",
		Short: "Run the staged analysis pipeline over a file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHarness(flags)
			if err != nil {
				return err
			}
			defer h.Close()

			m := h.Analysis()
			res, err := m.Run(cmd.Context(), analysis.Input{
				Target:    args[0],
				Type:      analysis.Type(typ),
				UserID:    userID,
				SessionID: sessionID,
				Scenario:  scenarioName,
			})
			if err != nil {
				return err
			}

			if !quiet {
				printAnalysis(cmd, res)
			}
			if res.Error != "" {
				return fmt.Errorf("analysis incomplete: %s", res.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&typ, "type", "t", string(analysis.TypeQuality), "analysis type (security|quality|dependencies)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress the findings listing")
	cmd.Flags().StringVar(&userID, "user-id", "", "user id attached to the trace")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "session id attached to the trace")
	cmd.Flags().StringVar(&scenarioName, "scenario", "", "scenario label recorded in trace metadata")

	return cmd
}

func newTraceCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded traces",
	}

	var output string
	exportCmd := &cobra.Command{
		Use:   "export [trace-id]",
		Short: "Export the latest (or a specific) flushed trace as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHarness(flags)
			if err != nil {
				return err
			}
			defer h.Close()

			exp, err := h.Exporter()
			if err != nil {
				return err
			}

			id := ""
			if len(args) == 1 {
				id = args[0]
			}

			info, err := exp.ExportFile(cmd.Context(), output, id)
			if err != nil {
				return err
			}

			cmd.Printf("Exported trace %s to %s\n", info.TraceID, info.Path)
			cmd.Printf("  observations: %d (%d spans, %d generations)\n", info.Total, info.Spans, info.Generations)
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&output, "output", "o", ".", "output directory")

	cmd.AddCommand(exportCmd)
	return cmd
}

// buildAgent constructs the provider-backed agent from configuration.
func buildAgent(cfg *config.Config) (core.Agent, error) {
	mc := cfg.Model
	switch mc.Provider {
	case config.ProviderAnthropic:
		return anthropic.New(func(o *anthropic.Options) {
			o.APIKey = mc.APIKey
			if mc.Model != "" {
				o.Model = anthropicsdk.Model(mc.Model)
			}
			if mc.MaxTokens > 0 {
				o.MaxTokens = int64(mc.MaxTokens)
			}
		}), nil
	case config.ProviderOpenAI:
		return openai.New(func(o *openai.Options) {
			o.APIKey = mc.APIKey
			if mc.Model != "" {
				o.Model = mc.Model
			}
			if mc.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(mc.MaxTokens)
			}
		}), nil
	default:
		return nil, &core.ConfigurationError{Field: "model.provider", Reason: "a model provider is required to run scenarios"}
	}
}
