// Package tracebench provides a high-level façade over the scenario harness:
// configuration, logging, the trace collector backend, session store, runner,
// exporter and analysis pipeline. Most applications interact with it by:
//  1. Creating a Harness via New() (optionally overriding the defaults)
//  2. Running scenario files or directories against an agent
//  3. Exporting or analyzing the recorded traces
//
// All defaults are safe for local development and testing; durable trace
// storage is enabled by configuring the sqlite collector backend.
package tracebench

import (
	"fmt"

	"github.com/hupe1980/tracebench/analysis"
	"github.com/hupe1980/tracebench/collector"
	"github.com/hupe1980/tracebench/collector/sqlite"
	"github.com/hupe1980/tracebench/config"
	"github.com/hupe1980/tracebench/core"
	"github.com/hupe1980/tracebench/exporter"
	"github.com/hupe1980/tracebench/logging"
	"github.com/hupe1980/tracebench/runner"
	"github.com/hupe1980/tracebench/session"
)

// Options configures the Harness instance.
type Options struct {
	// Config drives backend selection and defaults. Nil loads the default
	// configuration (environment variables over built-in defaults).
	Config *config.Config

	// Collector overrides the configured trace backend.
	Collector core.Collector

	// ContextStore overrides the in-memory session store.
	ContextStore core.ContextStore

	// Logger overrides the configured logger.
	Logger logging.Logger
}

// Harness is the high-level façade aggregating the harness services.
type Harness struct {
	cfg       *config.Config
	collector core.Collector
	store     core.ContextStore
	logger    logging.Logger

	closeFns []func() error
}

// New creates a Harness with optional overrides. Any unset service is built
// from the configuration; a configuration problem surfaces as a
// ConfigurationError before anything is recorded.
func New(optFns ...func(o *Options)) (*Harness, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load("")
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := &Harness{cfg: cfg, store: opts.ContextStore, logger: opts.Logger, collector: opts.Collector}

	if h.store == nil {
		h.store = session.NewInMemoryStore()
	}
	if h.logger == nil {
		h.logger = logging.NewLogger(&logging.LoggerConfig{
			Level:  cfg.LogLevel(),
			Format: cfg.Logging.Format,
			Output: logging.DefaultLoggerConfig().Output,
		})
	}

	if h.collector == nil && cfg.Collector.Enabled {
		switch cfg.Collector.Backend {
		case config.BackendSQLite:
			store, err := sqlite.New(cfg.Collector.Path)
			if err != nil {
				return nil, fmt.Errorf("failed to open sqlite collector: %w", err)
			}
			h.collector = store
			h.closeFns = append(h.closeFns, store.Close)
		default:
			store := collector.NewInMemory()
			h.collector = store
			h.closeFns = append(h.closeFns, store.Close)
		}
	}

	return h, nil
}

// Config returns the effective configuration.
func (h *Harness) Config() *config.Config { return h.cfg }

// Logger returns the harness logger.
func (h *Harness) Logger() logging.Logger { return h.logger }

// Collector returns the trace backend, or nil when tracing is disabled.
func (h *Harness) Collector() core.Collector { return h.collector }

// ContextStore returns the session store.
func (h *Harness) ContextStore() core.ContextStore { return h.store }

// Runner builds a scenario runner for the given agent, wired to the harness
// services.
func (h *Harness) Runner(agent core.Agent, optFns ...func(o *runner.Options)) *runner.Runner {
	base := func(o *runner.Options) {
		o.ContextStore = h.store
		o.Collector = h.collector
		o.Logger = h.logger
		o.UserID = h.cfg.UserID
		o.ReportsDir = h.cfg.Reports.Dir
	}
	return runner.New(agent, append([]func(o *runner.Options){base}, optFns...)...)
}

// Exporter builds a trace exporter over the collector backend. It fails when
// tracing is disabled or the backend cannot be read back.
func (h *Harness) Exporter() (*exporter.Exporter, error) {
	if h.collector == nil {
		return nil, fmt.Errorf("tracing is disabled, nothing to export")
	}
	reader, ok := h.collector.(core.TraceReader)
	if !ok {
		return nil, fmt.Errorf("collector backend %T does not support reading traces back", h.collector)
	}
	return exporter.New(reader, func(o *exporter.Options) { o.Logger = h.logger }), nil
}

// Analysis builds an analysis manager wired to the harness services.
func (h *Harness) Analysis(optFns ...func(o *analysis.Options)) *analysis.Manager {
	base := func(o *analysis.Options) {
		o.Collector = h.collector
		o.Logger = h.logger
		o.UserID = h.cfg.UserID
	}
	return analysis.NewManager(append([]func(o *analysis.Options){base}, optFns...)...)
}

// Close releases the backing services.
func (h *Harness) Close() error {
	var firstErr error
	for _, fn := range h.closeFns {
		if err := fn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
