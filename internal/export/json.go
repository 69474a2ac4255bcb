// Package export renders merge reports to JSON and Markdown for CI
// artifacts and human review.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dusk-indust/intentmerge/internal/merge"
)

// ReportExport wraps a MergeReport with export metadata.
type ReportExport struct {
	ExportedAt string            `json:"exportedAt"`
	Report     merge.MergeReport `json:"report"`
}

// WriteJSON writes the report as indented JSON to path, creating parent
// directories as needed.
func WriteJSON(report *merge.MergeReport, path string) error {
	export := ReportExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Report:     *report,
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("export: encode report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: create report dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: write report: %w", err)
	}
	return nil
}

// ReadJSON loads a previously exported report.
func ReadJSON(path string) (*merge.MergeReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("export: read report: %w", err)
	}
	var export ReportExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("export: decode report: %w", err)
	}
	return &export.Report, nil
}
