package storage

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"car-price-predictor/models"
)

const (
	sheetMetrics = "Metrics"
	sheetSamples = "Samples"
)

// XLSXReport collects evaluations into a workbook with a metrics sheet and a
// sample-predictions sheet; Close writes it to disk.
type XLSXReport struct {
	path       string
	f          *excelize.File
	metricsRow int
	samplesRow int
}

// NewXLSXReport prepares a workbook that will be saved at path.
func NewXLSXReport(path string) (*XLSXReport, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("xlsx: create output dir: %w", err)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetMetrics); err != nil {
		return nil, fmt.Errorf("xlsx: rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetSamples); err != nil {
		return nil, fmt.Errorf("xlsx: add sheet: %w", err)
	}
	idx, _ := f.GetSheetIndex(sheetMetrics)
	f.SetActiveSheet(idx)

	r := &XLSXReport{path: path, f: f, metricsRow: 2, samplesRow: 2}
	r.writeRow(sheetMetrics, 1, []any{
		"Bundle", "Variant", "Rows", "RMSE", "MAE", "MAPE %", "Accuracy ±30% %", "R²",
		"Train rows", "Train R²", "Log RMSE", "Log R²",
	})
	r.writeRow(sheetSamples, 1, []any{"Bundle", "Actual", "Predicted", "Abs error", "Error %"})

	_ = f.SetColWidth(sheetMetrics, "A", "B", 18)
	_ = f.SetColWidth(sheetMetrics, "C", "L", 14)
	_ = f.SetColWidth(sheetSamples, "A", "A", 18)
	_ = f.SetColWidth(sheetSamples, "B", "E", 14)
	return r, nil
}

func (r *XLSXReport) writeRow(sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = r.f.SetCellValue(sheet, cell, v)
	}
}

// WriteEvaluation adds one metrics row and the evaluation's sample predictions.
func (r *XLSXReport) WriteEvaluation(bundleName string, eval *models.Evaluation) error {
	m := eval.Test
	r.writeRow(sheetMetrics, r.metricsRow, []any{
		bundleName, eval.Variant, m.Count,
		round2(m.RMSE), round2(m.MAE), round2(m.MAPE), round2(m.ToleranceAccuracy), round4(m.R2),
		eval.TrainRows, round4(eval.TrainR2), round4(eval.LogRMSE), round4(eval.LogR2),
	})
	r.metricsRow++

	for _, s := range eval.Samples {
		diff := math.Abs(s.Actual - s.Predicted)
		r.writeRow(sheetSamples, r.samplesRow, []any{
			bundleName, round2(s.Actual), round2(s.Predicted), round2(diff),
			round2(diff / math.Max(s.Actual, 1) * 100),
		})
		r.samplesRow++
	}
	return nil
}

// Close saves the workbook.
func (r *XLSXReport) Close() error {
	defer r.f.Close()
	if err := r.f.SaveAs(r.path); err != nil {
		return fmt.Errorf("xlsx: save %q: %w", r.path, err)
	}
	return nil
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
func round4(f float64) float64 { return math.Round(f*10000) / 10000 }
