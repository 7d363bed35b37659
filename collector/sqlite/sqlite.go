// Package sqlite persists flushed traces in a local SQLite database so they
// survive the process and can be audited offline by the exporter.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hupe1980/tracebench/collector"
	"github.com/hupe1980/tracebench/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS traces (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	session_id TEXT NOT NULL,
	tags       TEXT NOT NULL,
	metadata   TEXT NOT NULL,
	timestamp  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS observations (
	id             TEXT PRIMARY KEY,
	trace_id       TEXT NOT NULL REFERENCES traces(id),
	parent_id      TEXT NOT NULL DEFAULT '',
	type           TEXT NOT NULL,
	name           TEXT NOT NULL,
	start_time     TIMESTAMP NOT NULL,
	end_time       TIMESTAMP,
	input          TEXT,
	output         TEXT,
	metadata       TEXT,
	status         TEXT NOT NULL DEFAULT '',
	status_message TEXT NOT NULL DEFAULT '',
	model          TEXT NOT NULL DEFAULT '',
	usage          TEXT
);

CREATE INDEX IF NOT EXISTS idx_observations_trace ON observations(trace_id, start_time);
`

// Store buffers trace writes in memory and persists them transactionally on
// Flush. INSERT OR REPLACE keyed by observation id makes repeated flushes
// idempotent: re-delivery replaces rows, never duplicates them.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	pending map[string]*buffer
}

type buffer struct {
	trace *core.Trace
	obs   map[string]*core.Observation
	order []string
}

// New opens (or creates) the database at path and prepares the schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open trace database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare trace schema: %w", err)
	}
	return &Store{db: db, pending: make(map[string]*buffer)}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// StartTrace buffers a new trace. Re-registering refreshes trace attributes.
func (s *Store) StartTrace(t *core.Trace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if buf, ok := s.pending[t.ID]; ok {
		buf.trace = t.Clone()
		return nil
	}
	s.pending[t.ID] = &buffer{trace: t.Clone(), obs: map[string]*core.Observation{}}
	return nil
}

// StartObservation buffers an opened observation.
func (s *Store) StartObservation(o *core.Observation) error { return s.putObservation(o) }

// EndObservation buffers the closed state of an observation.
func (s *Store) EndObservation(o *core.Observation) error { return s.putObservation(o) }

func (s *Store) putObservation(o *core.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, ok := s.pending[o.TraceID]
	if !ok {
		return fmt.Errorf("observation %s references unknown trace %s", o.ID, o.TraceID)
	}
	if _, seen := buf.obs[o.ID]; !seen {
		buf.order = append(buf.order, o.ID)
	}
	buf.obs[o.ID] = o.Clone()
	return nil
}

// Flush writes the buffered trace and its observations in one transaction.
// The buffer is retained so later re-flushes (or late observation closes)
// update the persisted rows in place.
func (s *Store) Flush(ctx context.Context, traceID string) error {
	s.mu.Lock()
	buf, ok := s.pending[traceID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("flush %s: %w", traceID, core.ErrCollectorUnavailable)
	}
	defer tx.Rollback()

	t := buf.trace
	tags, _ := json.Marshal(t.Tags)
	metadata, _ := json.Marshal(t.Metadata)
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO traces (id, name, user_id, session_id, tags, metadata, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.UserID, t.SessionID, string(tags), string(metadata), t.Timestamp,
	); err != nil {
		return fmt.Errorf("failed to persist trace: %w", err)
	}

	s.mu.Lock()
	observations := make([]*core.Observation, 0, len(buf.order))
	for _, id := range buf.order {
		observations = append(observations, buf.obs[id].Clone())
	}
	s.mu.Unlock()

	for _, o := range observations {
		input := marshalValue(o.Input)
		output := marshalValue(o.Output)
		md := marshalValue(o.Metadata)
		usage := marshalValue(o.Usage)
		var end any
		if o.Closed() {
			end = o.EndTime
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO observations
			 (id, trace_id, parent_id, type, name, start_time, end_time, input, output, metadata, status, status_message, model, usage)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ID, o.TraceID, o.ParentID, string(o.Type), o.Name, o.StartTime, end,
			input, output, md, string(o.Status), o.StatusMessage, o.Model, usage,
		); err != nil {
			return fmt.Errorf("failed to persist observation %s: %w", o.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trace %s: %w", traceID, err)
	}
	return nil
}

// TraceByID loads a persisted trace with observations ordered by start time.
func (s *Store) TraceByID(ctx context.Context, id string) (*core.Trace, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, user_id, session_id, tags, metadata, timestamp FROM traces WHERE id = ?`, id)
	t, err := scanTrace(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadObservations(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// LatestTrace loads the most recently created persisted trace.
func (s *Store) LatestTrace(ctx context.Context) (*core.Trace, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, user_id, session_id, tags, metadata, timestamp FROM traces ORDER BY timestamp DESC LIMIT 1`)
	t, err := scanTrace(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadObservations(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func scanTrace(row *sql.Row) (*core.Trace, error) {
	var t core.Trace
	var tags, metadata string
	if err := row.Scan(&t.ID, &t.Name, &t.UserID, &t.SessionID, &tags, &metadata, &t.Timestamp); err != nil {
		if err == sql.ErrNoRows {
			return nil, collector.ErrTraceNotFound
		}
		return nil, fmt.Errorf("failed to load trace: %w", err)
	}
	_ = json.Unmarshal([]byte(tags), &t.Tags)
	_ = json.Unmarshal([]byte(metadata), &t.Metadata)
	return &t, nil
}

func (s *Store) loadObservations(ctx context.Context, t *core.Trace) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, parent_id, type, name, start_time, end_time, input, output, metadata, status, status_message, model, usage
		 FROM observations WHERE trace_id = ?`, t.ID)
	if err != nil {
		return fmt.Errorf("failed to load observations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o core.Observation
		var typ, status string
		var end sql.NullTime
		var input, output, md, usage sql.NullString
		if err := rows.Scan(&o.ID, &o.ParentID, &typ, &o.Name, &o.StartTime, &end,
			&input, &output, &md, &status, &o.StatusMessage, &o.Model, &usage); err != nil {
			return fmt.Errorf("failed to scan observation: %w", err)
		}
		o.TraceID = t.ID
		o.Type = core.ObservationType(typ)
		o.Status = core.Status(status)
		if end.Valid {
			o.EndTime = end.Time
		}
		o.Input = unmarshalValue(input)
		o.Output = unmarshalValue(output)
		if v := unmarshalValue(md); v != nil {
			if m, ok := v.(map[string]any); ok {
				o.Metadata = m
			}
		}
		if usage.Valid && usage.String != "" && usage.String != "null" {
			var u core.Usage
			if err := json.Unmarshal([]byte(usage.String), &u); err == nil {
				o.Usage = &u
			}
		}
		t.Observations = append(t.Observations, o)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate observations: %w", err)
	}

	sort.SliceStable(t.Observations, func(i, j int) bool {
		return t.Observations[i].StartTime.Before(t.Observations[j].StartTime)
	})
	return nil
}

func marshalValue(v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func unmarshalValue(v sql.NullString) any {
	if !v.Valid || v.String == "" || v.String == "null" {
		return nil
	}
	var out any
	if err := json.Unmarshal([]byte(v.String), &out); err != nil {
		return v.String
	}
	return out
}

// Compile-time interface compliance.
var (
	_ core.Collector   = (*Store)(nil)
	_ core.TraceReader = (*Store)(nil)
)
