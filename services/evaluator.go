package services

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"car-price-predictor/models"
	"car-price-predictor/utils"
)

// Tolerance is the relative error under which a prediction counts as accurate.
const Tolerance = 0.30

// DefaultEvalSeed seeds evaluation sampling.
const DefaultEvalSeed = 42

// ComputeMetrics scores predicted against actual prices. Relative errors use
// max(actual, 1) as the denominator; MAPE and ToleranceAccuracy are percents.
func ComputeMetrics(actual, predicted []float64) models.Metrics {
	n := len(actual)
	m := models.Metrics{Count: n}
	if n == 0 || len(predicted) != n {
		return m
	}

	sq := make([]float64, n)
	abs := make([]float64, n)
	rel := make([]float64, n)
	within := 0
	for i, y := range actual {
		d := y - predicted[i]
		sq[i] = d * d
		abs[i] = math.Abs(d)
		rel[i] = abs[i] / math.Max(y, 1)
		if rel[i] <= Tolerance {
			within++
		}
	}

	m.RMSE = math.Sqrt(floats.Sum(sq) / float64(n))
	m.MAE = stat.Mean(abs, nil)
	m.MAPE = stat.Mean(rel, nil) * 100
	m.ToleranceAccuracy = float64(within) / float64(n) * 100
	if r2 := stat.RSquaredFrom(predicted, actual, nil); !math.IsNaN(r2) && !math.IsInf(r2, 0) {
		m.R2 = r2
	}
	return m
}

// SampleRecords draws n records without replacement using seed. n <= 0 or
// n >= len(records) returns every record.
func SampleRecords(records []models.Record, n int, seed int64) []models.Record {
	if n <= 0 || n >= len(records) {
		return append([]models.Record(nil), records...)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(len(records))
	out := make([]models.Record, n)
	for i, idx := range perm[:n] {
		out[i] = records[idx]
	}
	return out
}

// EvalOptions controls an evaluation run.
type EvalOptions struct {
	SampleSize int
	Seed       int64
}

// Evaluator scores a trained bundle against labelled records.
type Evaluator struct {
	logger *utils.Logger
}

// NewEvaluator creates an Evaluator with the given logger.
func NewEvaluator(logger *utils.Logger) *Evaluator {
	return &Evaluator{logger: logger}
}

// Evaluate drops unpriced rows, samples, imputes the sample with its own
// medians, predicts through the bundle and compares against capped prices.
// Every sampled row is scored, duplicates included.
func (e *Evaluator) Evaluate(ctx context.Context, bundle *models.Bundle, records []models.Record, opts EvalOptions) (*models.Evaluation, error) {
	start := time.Now()

	priced := make([]models.Record, 0, len(records))
	for _, r := range records {
		if r.Price != nil {
			priced = append(priced, r)
		}
	}
	sample := SampleRecords(priced, opts.SampleSize, opts.Seed)
	if len(sample) == 0 {
		return nil, ErrEmptyDataset
	}
	medians := ComputeMedians(sample)
	vehicles := make([]models.Vehicle, len(sample))
	for i, r := range sample {
		vehicles[i], _, _ = Impute(r, medians)
	}

	limit := bundle.Schema.PriceCap
	if limit <= 0 {
		limit = DefaultPriceCap
	}

	p := NewPredictor(bundle, e.logger)
	actual := make([]float64, len(vehicles))
	pred := make([]float64, len(vehicles))
	var logActual, logPred []float64
	logTarget := bundle.Schema.TargetTransform == models.TransformLog1p
	unseen := 0

	for i, v := range vehicles {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		out := p.PredictVehicle(v)
		actual[i] = CapPrice(v.Price, limit)
		pred[i] = out.Price
		unseen += len(out.Unseen)
		if logTarget {
			logActual = append(logActual, TransformTarget(models.TransformLog1p, actual[i]))
			logPred = append(logPred, out.Raw)
		}
	}

	eval := &models.Evaluation{
		Variant: bundle.Schema.Variant,
		Test:    ComputeMetrics(actual, pred),
		Samples: samples(actual, pred, sampleCount),
	}
	if logTarget {
		lm := ComputeMetrics(logActual, logPred)
		eval.LogRMSE, eval.LogR2 = lm.RMSE, lm.R2
	}
	eval.Duration = time.Since(start)

	e.logger.Info("[evaluator] %s on %d rows: MAPE %.2f%% | accuracy(30%%) %.2f%% | %d unseen categories remapped",
		bundle.Name(), len(vehicles), eval.Test.MAPE, eval.Test.ToleranceAccuracy, unseen)
	return eval, nil
}

// Print writes a human-readable evaluation report.
func (e *Evaluator) Print(w io.Writer, ev *models.Evaluation) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 MODEL EVALUATION: %s\033[0m\n", ev.Variant)
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Held-out metrics (%d rows)\033[0m\n", ev.Test.Count)
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  RMSE                 : \033[1m$%.2f\033[0m\n", ev.Test.RMSE)
	fmt.Fprintf(w, "  MAE                  : \033[1m$%.2f\033[0m\n", ev.Test.MAE)
	fmt.Fprintf(w, "  MAPE                 : \033[1m%.2f%%\033[0m\n", ev.Test.MAPE)
	fmt.Fprintf(w, "  Accuracy (±30%%)      : \033[1;32m%.2f%%\033[0m\n", ev.Test.ToleranceAccuracy)
	fmt.Fprintf(w, "  R²                   : \033[1m%.4f\033[0m\n", ev.Test.R2)
	if ev.TrainRows > 0 {
		fmt.Fprintf(w, "  R² (train, %d rows) : \033[1m%.4f\033[0m\n", ev.TrainRows, ev.TrainR2)
	}
	if ev.LogRMSE > 0 {
		fmt.Fprintf(w, "  RMSE (log)           : %.4f\n", ev.LogRMSE)
		fmt.Fprintf(w, "  R² (log)             : %.4f\n", ev.LogR2)
	}
	fmt.Fprintln(w)

	if len(ev.Samples) > 0 {
		fmt.Fprintf(w, "\033[1;33m  Sample predictions\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %14s %14s %10s\n", "actual", "predicted", "error")
		for _, s := range ev.Samples {
			fmt.Fprintf(w, "  %14.2f %14.2f %9.1f%%\n",
				s.Actual, s.Predicted, math.Abs(s.Actual-s.Predicted)/math.Max(s.Actual, 1)*100)
		}
	}

	fmt.Fprintf(w, "\n  Took %s\n", ev.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)
}
