package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"car-price-predictor/config"
	"car-price-predictor/models"
)

func TestComputeMetrics(t *testing.T) {
	m := ComputeMetrics([]float64{100, 200, 0}, []float64{110, 100, 0.5})

	assert.Equal(t, 3, m.Count)
	assert.InDelta(t, (10+100+0.5)/3, m.MAE, 1e-9)
	// relative errors: 0.1, 0.5, 0.5 (denominator max(0,1)=1)
	assert.InDelta(t, (0.1+0.5+0.5)/3*100, m.MAPE, 1e-9)
	assert.InDelta(t, 100.0/3, m.ToleranceAccuracy, 1e-9)
}

func TestComputeMetrics_PerfectAndEmpty(t *testing.T) {
	m := ComputeMetrics([]float64{1, 2, 3}, []float64{1, 2, 3})
	assert.Zero(t, m.RMSE)
	assert.Equal(t, 100.0, m.ToleranceAccuracy)
	assert.InDelta(t, 1.0, m.R2, 1e-12)

	assert.Equal(t, models.Metrics{}, ComputeMetrics(nil, nil))

	// constant actuals leave R2 at zero instead of NaN
	assert.Zero(t, ComputeMetrics([]float64{5, 5}, []float64{4, 6}).R2)
}

func TestSampleRecords(t *testing.T) {
	records := syntheticRecords(50, 3)
	assert.Len(t, SampleRecords(records, 0, 42), 50)
	assert.Len(t, SampleRecords(records, 100, 42), 50)

	a := SampleRecords(records, 10, 42)
	b := SampleRecords(records, 10, 42)
	require.Len(t, a, 10)
	assert.Equal(t, a, b)
}

func TestEvaluate_ReproducibleAndBounded(t *testing.T) {
	b := trainVariant(t, config.VariantFinetuned, 300)
	records := syntheticRecords(500, 11)
	records[3].Price = nil

	ev := NewEvaluator(newTestLogger())
	opts := EvalOptions{SampleSize: 200, Seed: DefaultEvalSeed}

	first, err := ev.Evaluate(context.Background(), b, records, opts)
	require.NoError(t, err)
	second, err := ev.Evaluate(context.Background(), b, records, opts)
	require.NoError(t, err)

	assert.Equal(t, 200, first.Test.Count)
	assert.GreaterOrEqual(t, first.Test.ToleranceAccuracy, 0.0)
	assert.LessOrEqual(t, first.Test.ToleranceAccuracy, 100.0)
	assert.GreaterOrEqual(t, first.Test.MAPE, 0.0)
	assert.Equal(t, first.Test, second.Test)
	assert.Positive(t, first.LogRMSE)

	var buf bytes.Buffer
	ev.Print(&buf, first)
	assert.Contains(t, buf.String(), "MODEL EVALUATION: finetuned")
	assert.Contains(t, buf.String(), "MAPE")
}

func TestEvaluate_NoPricedRows(t *testing.T) {
	b := trainVariant(t, config.VariantLightGBM, 100)
	records := syntheticRecords(5, 1)
	for i := range records {
		records[i].Price = nil
	}
	_, err := NewEvaluator(newTestLogger()).Evaluate(context.Background(), b, records, EvalOptions{SampleSize: 10})
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestEvaluate_ScoresDuplicateRows(t *testing.T) {
	b := trainVariant(t, config.VariantLightGBM, 100)
	unique := syntheticRecords(50, 21)
	records := append(append([]models.Record(nil), unique...), unique...)

	ev, err := NewEvaluator(newTestLogger()).Evaluate(context.Background(), b, records, EvalOptions{})
	require.NoError(t, err)
	assert.Equal(t, 100, ev.Test.Count)
}
