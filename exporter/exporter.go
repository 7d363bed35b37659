// Package exporter reads completed traces from a collector backend and
// serializes them into a stable, portable JSON document for offline audit.
// It is strictly read-only: it never mutates collector state and only sees
// data that has already been flushed.
package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hupe1980/tracebench/core"
	"github.com/hupe1980/tracebench/internal/util"
	"github.com/hupe1980/tracebench/logging"
)

// Document is the exported trace format. Field layout is part of the public
// contract; downstream audit tooling parses it.
type Document struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	UserID       string         `json:"user_id"`
	SessionID    string         `json:"session_id"`
	Tags         []string       `json:"tags"`
	Metadata     map[string]any `json:"metadata"`
	Timestamp    time.Time      `json:"timestamp"`
	Observations []Observation  `json:"observations"`
}

// Observation is one serialized unit of work. Model and usage fields are
// emitted only for GENERATION observations.
type Observation struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Name      string         `json:"name"`
	ParentID  string         `json:"parent_id,omitempty"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	Input     any            `json:"input,omitempty"`
	Output    any            `json:"output,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Status    string         `json:"status"`
	Model     string         `json:"model,omitempty"`
	Usage     *core.Usage    `json:"usage,omitempty"`
}

// ExportInfo describes a written export file, including the observation type
// breakdown printed by the CLI.
type ExportInfo struct {
	Path        string
	TraceID     string
	Total       int
	Spans       int
	Generations int
}

// Options holds dependency overrides passed to New().
type Options struct {
	// Logger receives exporter diagnostics.
	Logger logging.Logger
}

// Exporter serializes flushed traces read from a TraceReader.
type Exporter struct {
	reader core.TraceReader
	logger logging.Logger
}

// New constructs an Exporter over a read-only trace source.
func New(reader core.TraceReader, optFns ...func(o *Options)) *Exporter {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Exporter{reader: reader, logger: opts.Logger}
}

// FetchLatest returns the most recently flushed trace.
func (e *Exporter) FetchLatest(ctx context.Context) (*core.Trace, error) {
	tr, err := e.reader.LatestTrace(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest trace: %w", err)
	}
	return tr, nil
}

// FetchByID returns the flushed trace with the given identifier.
func (e *Exporter) FetchByID(ctx context.Context, id string) (*core.Trace, error) {
	tr, err := e.reader.TraceByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trace %s: %w", id, err)
	}
	return tr, nil
}

// Serialize converts a trace into the portable document. Observations are
// ordered by start timestamp; model and usage are stripped from non-GENERATION
// entries.
func (e *Exporter) Serialize(tr *core.Trace) *Document {
	doc := &Document{
		ID:           tr.ID,
		Name:         tr.Name,
		UserID:       tr.UserID,
		SessionID:    tr.SessionID,
		Tags:         tr.Tags,
		Metadata:     tr.Metadata,
		Timestamp:    tr.Timestamp,
		Observations: make([]Observation, 0, len(tr.Observations)),
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]any{}
	}

	for _, obs := range tr.Observations {
		out := Observation{
			ID:        obs.ID,
			Type:      string(obs.Type),
			Name:      obs.Name,
			ParentID:  obs.ParentID,
			StartTime: obs.StartTime,
			EndTime:   obs.EndTime,
			Input:     obs.Input,
			Output:    obs.Output,
			Metadata:  obs.Metadata,
			Status:    string(obs.Status),
		}
		if obs.Type == core.ObservationGeneration {
			out.Model = obs.Model
			out.Usage = obs.Usage
		}
		doc.Observations = append(doc.Observations, out)
	}

	sort.SliceStable(doc.Observations, func(i, j int) bool {
		return doc.Observations[i].StartTime.Before(doc.Observations[j].StartTime)
	})

	return doc
}

// ExportFile serializes the trace (latest when id is empty) and writes it to
// dir as trace_export_<timestamp>.json.
func (e *Exporter) ExportFile(ctx context.Context, dir, id string) (*ExportInfo, error) {
	var (
		tr  *core.Trace
		err error
	)
	if id == "" {
		tr, err = e.FetchLatest(ctx)
	} else {
		tr, err = e.FetchByID(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	doc := e.Serialize(tr)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("trace_export_%s.json", util.Timestamp(time.Now())))

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode trace document: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write trace export: %w", err)
	}

	info := &ExportInfo{Path: path, TraceID: tr.ID, Total: len(doc.Observations)}
	for _, obs := range doc.Observations {
		switch obs.Type {
		case string(core.ObservationSpan):
			info.Spans++
		case string(core.ObservationGeneration):
			info.Generations++
		}
	}

	e.logger.Info("exported trace %s (%d observations: %d spans, %d generations) to %s",
		info.TraceID, info.Total, info.Spans, info.Generations, info.Path)

	return info, nil
}
