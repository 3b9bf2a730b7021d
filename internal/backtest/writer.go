package backtest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Writer persists run artifacts under <outputDir>/<yyyy-mm-dd>/.
type Writer struct {
	outputDir string
}

// NewWriter creates an artifact writer rooted at outputDir.
func NewWriter(outputDir string) *Writer {
	return &Writer{outputDir: filepath.Join(outputDir, time.Now().Format("2006-01-02"))}
}

// OutputDir returns the resolved artifact directory.
func (w *Writer) OutputDir() string {
	return w.outputDir
}

// Write persists metrics, the equity curve, and the data-quality summary.
func (w *Writer) Write(result *Result) error {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	if err := w.writeJSON("metrics.json", struct {
		RunID   string  `json:"run_id"`
		Metrics Metrics `json:"metrics"`
	}{result.RunID, result.Metrics}); err != nil {
		return err
	}
	if err := w.writeJSON("quality.json", result.Quality); err != nil {
		return err
	}
	return w.writeEquity(result.Equity)
}

func (w *Writer) writeJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	path := filepath.Join(w.outputDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// writeEquity writes the equity curve as JSONL, one point per line.
func (w *Writer) writeEquity(equity []EquityPoint) error {
	path := filepath.Join(w.outputDir, "equity.jsonl")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create equity file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, p := range equity {
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("write equity point: %w", err)
		}
	}
	return nil
}
