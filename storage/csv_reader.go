package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"car-price-predictor/models"
	"car-price-predictor/utils"
)

// LoadStats summarises one CSV load.
type LoadStats struct {
	Rows      int
	Malformed int
}

// CSVReader loads listing records from a CSV file with a header row.
type CSVReader struct {
	logger *utils.Logger
}

// NewCSVReader creates a CSVReader with the given logger.
func NewCSVReader(logger *utils.Logger) *CSVReader {
	return &CSVReader{logger: logger}
}

// Load reads every well-formed row of the file at path. Columns are located
// by header name; extra columns are ignored and malformed rows are skipped.
func (c *CSVReader) Load(path string) ([]models.Record, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	records, stats, err := c.Read(f)
	if err != nil {
		return nil, stats, fmt.Errorf("csv: read %q: %w", path, err)
	}
	c.logger.Info("[csv] Loaded %d rows from %s (skipped %d malformed)", stats.Rows, path, stats.Malformed)
	return records, stats, nil
}

// Read parses records from r.
func (c *CSVReader) Read(r io.Reader) ([]models.Record, LoadStats, error) {
	var stats LoadStats
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, stats, fmt.Errorf("header: %w", err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, stats, err
	}

	var out []models.Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				stats.Malformed++
				c.logger.Debug("[csv] Skipping malformed row at line %d: %v", perr.Line, perr.Err)
				continue
			}
			return nil, stats, err
		}
		out = append(out, parseRow(row, idx))
	}
	stats.Rows = len(out)
	return out, stats, nil
}

type columns struct {
	price, year, odometer int
	attrs                 [models.NumCategorical]int
}

func columnIndex(header []string) (columns, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var missing []string
	for _, name := range models.RequiredColumns() {
		if _, ok := pos[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return columns{}, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	c := columns{
		price:    pos[models.ColumnPrice],
		year:     pos[models.ColumnYear],
		odometer: pos[models.ColumnOdometer],
	}
	for i, name := range models.CategoricalColumns {
		c.attrs[i] = pos[name]
	}
	return c, nil
}

func parseRow(row []string, c columns) models.Record {
	r := models.Record{
		Price:    parseFloat(row[c.price]),
		Year:     parseFloat(row[c.year]),
		Odometer: parseFloat(row[c.odometer]),
	}
	for i, col := range c.attrs {
		r.Attrs[i] = strings.TrimSpace(row[col])
	}
	return r
}

// parseFloat returns nil for empty, non-numeric or non-finite cells.
func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
