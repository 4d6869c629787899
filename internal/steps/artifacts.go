package steps

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact file names written under each step directory.
const (
	PlanFile     = "plan.json"
	BackboneFile = "backbone.pdb"
	ReportFile   = "report.json"
)

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
