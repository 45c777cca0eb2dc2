package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"car-price-predictor/config"
	"car-price-predictor/models"
	"car-price-predictor/regressor"
	"car-price-predictor/utils"
)

// ErrEmptyDataset is returned when no rows are left to train or evaluate on.
var ErrEmptyDataset = errors.New("dataset is empty after cleaning")

// sampleCount is how many held-out predictions are kept on the evaluation.
const sampleCount = 20

// Trainer fits a variant's encoder and regressor and packages them as a bundle.
type Trainer struct {
	logger  *utils.Logger
	workers int
}

// NewTrainer creates a Trainer; workers bounds parallel tree building.
func NewTrainer(logger *utils.Logger, workers int) *Trainer {
	return &Trainer{logger: logger, workers: workers}
}

// Train fits variant v on cleaned vehicles. medians are the imputation values
// used while cleaning and are stored in the bundle for inference.
func (t *Trainer) Train(ctx context.Context, v config.Variant, vehicles []models.Vehicle, medians models.Medians, version int) (*models.Bundle, error) {
	if len(vehicles) == 0 {
		return nil, ErrEmptyDataset
	}
	start := time.Now()

	var table *models.EncoderTable
	if v.Encoding == models.EncodingOneHot {
		table = FitOneHotTable(vehicles, v.MaxOneHot)
	} else {
		table = FitLabelTable(vehicles)
	}

	schema := v.Schema()
	schema.Medians = medians
	fe := NewFeatureEncoder(schema, table)
	schema.Features = fe.FeatureNames()

	X := make([][]float64, len(vehicles))
	prices := make([]float64, len(vehicles))
	y := make([]float64, len(vehicles))
	for i, veh := range vehicles {
		X[i], _ = fe.Encode(veh)
		prices[i] = CapPrice(veh.Price, v.PriceCap)
		y[i] = TransformTarget(v.TargetTransform, prices[i])
	}

	trainIdx, testIdx := Split(len(vehicles), v.TestFraction, v.Regressor.Seed)
	t.logger.Info("[trainer] Variant %s: %d features, %d train / %d test rows",
		v.Name, fe.Width(), len(trainIdx), len(testIdx))

	params := v.Regressor
	if params.Workers == 0 {
		params.Workers = t.workers
	}
	model, err := regressor.New(params)
	if err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}

	trainX, trainY := gather(X, y, trainIdx)
	if err := model.Fit(ctx, trainX, trainY); err != nil {
		return nil, fmt.Errorf("trainer: fit %s: %w", v.Name, err)
	}
	t.logger.Info("[trainer] Fitted %s (%d estimators) in %s",
		params.Kind, params.NEstimators, time.Since(start).Round(time.Millisecond))

	eval := models.Evaluation{Variant: v.Name, TrainRows: len(trainIdx)}

	trainPred := make([]float64, len(trainIdx))
	trainActual := make([]float64, len(trainIdx))
	for i, r := range trainIdx {
		trainPred[i] = toPrice(v.TargetTransform, model.Predict(X[r]))
		trainActual[i] = prices[r]
	}
	eval.TrainR2 = ComputeMetrics(trainActual, trainPred).R2

	if len(testIdx) > 0 {
		actual := make([]float64, len(testIdx))
		pred := make([]float64, len(testIdx))
		logActual := make([]float64, len(testIdx))
		logPred := make([]float64, len(testIdx))
		for i, r := range testIdx {
			raw := model.Predict(X[r])
			actual[i] = prices[r]
			pred[i] = toPrice(v.TargetTransform, raw)
			logActual[i] = y[r]
			logPred[i] = raw
		}
		eval.Test = ComputeMetrics(actual, pred)
		if v.TargetTransform == models.TransformLog1p {
			lm := ComputeMetrics(logActual, logPred)
			eval.LogRMSE = lm.RMSE
			eval.LogR2 = lm.R2
		}
		eval.Samples = samples(actual, pred, sampleCount)
	}
	eval.Duration = time.Since(start)

	bundle := &models.Bundle{
		ID:        uuid.New(),
		Version:   version,
		CreatedAt: time.Now().UTC(),
		Schema:    schema,
		Encoder:   table,
		Model:     model,
		Eval:      eval,
	}

	t.logger.Info("[trainer] %s: test RMSE %.2f | MAE %.2f | R2 %.4f | accuracy(30%%) %.2f%%",
		bundle.Name(), eval.Test.RMSE, eval.Test.MAE, eval.Test.R2, eval.Test.ToleranceAccuracy)
	return bundle, nil
}

// Split shuffles 0..n-1 with seed and returns (train, test) index sets. The
// test set holds ceil(frac*n) rows but never every row when n > 1.
func Split(n int, frac float64, seed int64) (train, test []int) {
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := int(math.Ceil(frac * float64(n)))
	if nTest >= n {
		nTest = n - 1
	}
	if nTest < 0 {
		nTest = 0
	}
	return perm[nTest:], perm[:nTest]
}

func gather(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	outX := make([][]float64, len(idx))
	outY := make([]float64, len(idx))
	for i, r := range idx {
		outX[i] = X[r]
		outY[i] = y[r]
	}
	return outX, outY
}

// toPrice inverts the target transform and clamps at zero.
func toPrice(t models.TargetTransform, raw float64) float64 {
	return math.Max(InvertTarget(t, raw), 0)
}

func samples(actual, pred []float64, n int) []models.PredictionSample {
	if len(actual) < n {
		n = len(actual)
	}
	out := make([]models.PredictionSample, n)
	for i := range out {
		out[i] = models.PredictionSample{Actual: actual[i], Predicted: pred[i]}
	}
	return out
}
