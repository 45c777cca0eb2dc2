package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BundleName builds the "<variant>_v<version>" stem used for artifacts.
func BundleName(variant string, version int) string {
	return fmt.Sprintf("%s_v%d", variant, version)
}

// Metrics holds the regression metrics computed over one set of predictions.
// MAPE and ToleranceAccuracy are percentages.
type Metrics struct {
	Count             int     `json:"count"`
	RMSE              float64 `json:"rmse"`
	MAE               float64 `json:"mae"`
	MAPE              float64 `json:"mape"`
	ToleranceAccuracy float64 `json:"tolerance_accuracy"`
	R2                float64 `json:"r2"`
}

// PredictionSample pairs a true price with the model's prediction.
type PredictionSample struct {
	Actual    float64 `json:"actual"`
	Predicted float64 `json:"predicted"`
}

// Evaluation summarises a model over its training and held-out data.
type Evaluation struct {
	Variant   string             `json:"variant"`
	TrainRows int                `json:"train_rows"`
	TrainR2   float64            `json:"train_r2"`
	Test      Metrics            `json:"test"`
	LogRMSE   float64            `json:"log_rmse,omitempty"`
	LogR2     float64            `json:"log_r2,omitempty"`
	Samples   []PredictionSample `json:"samples,omitempty"`
	Duration  time.Duration      `json:"duration"`
}

// RunKind distinguishes training runs from stand-alone evaluations.
type RunKind string

const (
	RunTrain    RunKind = "train"
	RunEvaluate RunKind = "evaluate"
)

// TrainingRun is one row of run history.
type TrainingRun struct {
	ID        uuid.UUID
	BundleID  uuid.UUID
	Kind      RunKind
	Variant   string
	Rows      int
	Metrics   Metrics
	Duration  time.Duration
	CreatedAt time.Time
}
