package scenario

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is an ordered script of turns exercising an agent end-to-end.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Session is the session identifier the scenario runs against. Defaults
	// to a sanitized form of the name when empty, so independent scenarios
	// own disjoint contexts.
	Session string `yaml:"session,omitempty"`

	// Tags categorize the resulting trace (e.g. "banking", "smoke").
	Tags []string `yaml:"tags,omitempty"`

	// Metadata is merged into the trace metadata.
	Metadata map[string]string `yaml:"metadata,omitempty"`

	// Turns is the ordered conversation script.
	Turns []Turn `yaml:"turns"`
}

// Turn is one user input paired with its expected-assertion set.
type Turn struct {
	// Input is the user message for this turn.
	Input string `yaml:"input"`

	// Fatal aborts the remaining turns when this turn fails; they are
	// reported as "not run". Default is continue-and-record.
	Fatal bool `yaml:"fatal,omitempty"`

	// Expected holds the assertions evaluated against the agent output.
	Expected Expectation `yaml:"expected,omitempty"`
}

// Expectation declares the assertions for a turn. Empty fields are skipped.
type Expectation struct {
	// MessageContains requires each substring to appear in the agent output
	// (case-insensitive).
	MessageContains []string `yaml:"message_contains,omitempty"`

	// ToolCalled requires each named tool to appear among the invoked tools.
	ToolCalled []string `yaml:"tool_called,omitempty"`

	// ContextUpdates requires each named context field to have been written
	// during the turn.
	ContextUpdates []string `yaml:"context_updates,omitempty"`

	// Authenticated asserts the context authentication flag after the turn.
	Authenticated *bool `yaml:"authenticated,omitempty"`

	// MaxToolCalls bounds the number of tool invocations in the turn.
	MaxToolCalls *int `yaml:"max_tool_calls,omitempty"`
}

// Empty reports whether the expectation declares no assertions.
func (e Expectation) Empty() bool {
	return len(e.MessageContains) == 0 && len(e.ToolCalled) == 0 &&
		len(e.ContextUpdates) == 0 && e.Authenticated == nil && e.MaxToolCalls == nil
}

// SessionID returns the effective session identifier for the scenario.
func (s *Scenario) SessionID() string {
	if s.Session != "" {
		return s.Session
	}
	return sanitize(s.Name)
}

// Load reads and parses a scenario YAML file. Unknown fields are rejected so
// that typos like "assertion:" for "expected:" surface immediately.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", filepath.Base(path), err)
	}

	return &sc, nil
}

// LoadDir loads every scenario file (*.yaml, *.yml) in a directory, sorted by
// file name for deterministic ordering.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		sc, err := Load(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

// Validate checks that required fields are present and expectations are sane.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Turns) == 0 {
		return fmt.Errorf("turns list is required and must be non-empty")
	}
	for i, turn := range s.Turns {
		if strings.TrimSpace(turn.Input) == "" {
			return fmt.Errorf("turns[%d]: input is required", i)
		}
		if turn.Expected.MaxToolCalls != nil && *turn.Expected.MaxToolCalls < 0 {
			return fmt.Errorf("turns[%d]: max_tool_calls must be non-negative", i)
		}
		if slices.Contains(turn.Expected.ToolCalled, "") {
			return fmt.Errorf("turns[%d]: tool_called entries must be non-empty", i)
		}
	}
	return nil
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
