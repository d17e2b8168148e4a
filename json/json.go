// Package json encodes benchmark reports and usage records as versioned
// JSON documents.
package json

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/bench"
)

// envelope is the v1 wire format for an exported report.
type envelope struct {
	Version     int             `json:"version"`
	Scenario    string          `json:"scenario"`
	Runs        []runDTO        `json:"runs"`
	Comparisons []comparisonDTO `json:"comparisons,omitempty"`
}

// MarshalReport serializes a Report in v1 envelope format.
func MarshalReport(r bench.Report) ([]byte, error) {
	env := envelope{
		Version:  1,
		Scenario: r.Scenario,
		Runs:     make([]runDTO, len(r.Runs)),
	}
	for i, run := range r.Runs {
		env.Runs[i] = marshalRun(run)
	}
	for _, c := range r.Comparisons {
		env.Comparisons = append(env.Comparisons, marshalComparison(c))
	}
	return json.MarshalIndent(env, "", "  ")
}

// UnmarshalReport deserializes a Report from v1 envelope format.
func UnmarshalReport(data []byte) (bench.Report, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return bench.Report{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Version != 1 {
		return bench.Report{}, fmt.Errorf("unsupported envelope version: %d", env.Version)
	}
	runs := make([]bench.Run, len(env.Runs))
	for i, dto := range env.Runs {
		runs[i] = unmarshalRun(dto)
	}
	var comparisons []bench.Comparison
	for _, dto := range env.Comparisons {
		comparisons = append(comparisons, unmarshalComparison(dto))
	}
	return bench.Report{
		Scenario:    env.Scenario,
		Runs:        runs,
		Comparisons: comparisons,
	}, nil
}

// MarshalRecords serializes per-call usage records as a JSON array.
func MarshalRecords(records []bench.UsageRecord) ([]byte, error) {
	dtos := make([]recordDTO, len(records))
	for i, r := range records {
		dtos[i] = marshalRecord(r)
	}
	return json.Marshal(dtos)
}

// UnmarshalRecords is the inverse of MarshalRecords. Empty input yields no
// records.
func UnmarshalRecords(data []byte) ([]bench.UsageRecord, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var dtos []recordDTO
	if err := json.Unmarshal(data, &dtos); err != nil {
		return nil, fmt.Errorf("unmarshal records: %w", err)
	}
	if len(dtos) == 0 {
		return nil, nil
	}
	records := make([]bench.UsageRecord, len(dtos))
	for i, dto := range dtos {
		records[i] = unmarshalRecord(dto)
	}
	return records, nil
}

// Save writes a Report to a JSON file, creating parent directories as needed.
func Save(path string, r bench.Report) error {
	data, err := MarshalReport(r)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Load reads a Report from a JSON file.
func Load(path string) (bench.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return bench.Report{}, fmt.Errorf("read file: %w", err)
	}
	return UnmarshalReport(data)
}

func micros(d time.Duration) int64 {
	return d.Microseconds()
}

func duration(us int64) time.Duration {
	return time.Duration(us) * time.Microsecond
}
