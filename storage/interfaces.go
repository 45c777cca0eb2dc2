package storage

import (
	"context"

	"car-price-predictor/models"
)

// RunWriter is the interface any training-run history backend must satisfy.
type RunWriter interface {
	WriteRun(ctx context.Context, run models.TrainingRun) error
	Close() error
}

// ReportWriter persists an evaluation for offline inspection.
type ReportWriter interface {
	WriteEvaluation(bundleName string, eval *models.Evaluation) error
	Close() error
}
