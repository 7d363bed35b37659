package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hupe1980/tracebench/internal/util"
)

// writeReport persists the scenario result as a pretty-printed JSON file
// named after the scenario and the run start time.
func writeReport(dir string, res *ScenarioResult) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s.json", util.SafeFileName(res.Scenario), util.Timestamp(res.StartedAt))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}

// LoadReport reads back a report file written by writeReport.
func LoadReport(path string) (*ScenarioResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}
	var res ScenarioResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to parse report file: %w", err)
	}
	res.ReportPath = path
	return &res, nil
}
