package storage

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"car-price-predictor/models"
)

// CSVWriter writes evaluation sample predictions to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)

	if err := w.Write([]string{
		"bundle", "actual_price", "predicted_price", "abs_error", "pct_error",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteEvaluation appends one row per sample prediction.
func (c *CSVWriter) WriteEvaluation(bundleName string, eval *models.Evaluation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range eval.Samples {
		diff := math.Abs(s.Actual - s.Predicted)
		row := []string{
			bundleName,
			formatFloat(s.Actual),
			formatFloat(s.Predicted),
			formatFloat(diff),
			formatFloat(diff / math.Max(s.Actual, 1) * 100),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
