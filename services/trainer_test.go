package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"car-price-predictor/config"
	"car-price-predictor/models"
)

func trainVariant(t *testing.T, name string, n int) *models.Bundle {
	t.Helper()
	v := quickVariant(name)
	vehicles, stats := NewCleaner(newTestLogger()).Clean(syntheticRecords(n, 7), CleanOptions{
		RequirePrice:         true,
		DropNonPositivePrice: v.DropNonPositivePrice,
	})
	b, err := NewTrainer(newTestLogger(), 2).Train(context.Background(), v, vehicles, stats.Medians, 1)
	require.NoError(t, err)
	return b
}

func TestSplit(t *testing.T) {
	train, test := Split(100, 0.2, 42)
	assert.Len(t, test, 20)
	assert.Len(t, train, 80)

	seen := map[int]bool{}
	for _, i := range append(append([]int{}, train...), test...) {
		assert.False(t, seen[i])
		seen[i] = true
	}
	assert.Len(t, seen, 100)

	train2, test2 := Split(100, 0.2, 42)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	_, test = Split(7, 0.15, 42)
	assert.Len(t, test, 2)

	train, test = Split(1, 0.2, 42)
	assert.Len(t, train, 1)
	assert.Empty(t, test)
}

func TestTrain_EmptyDataset(t *testing.T) {
	_, err := NewTrainer(newTestLogger(), 1).Train(context.Background(), quickVariant(config.VariantLightGBM), nil, models.Medians{}, 1)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestTrain_Variants(t *testing.T) {
	for _, name := range []string{config.VariantBaseline, config.VariantLightGBM, config.VariantFinetuned} {
		t.Run(name, func(t *testing.T) {
			b := trainVariant(t, name, 400)

			assert.NotEqual(t, [16]byte{}, [16]byte(b.ID))
			assert.Equal(t, name, b.Schema.Variant)
			assert.Equal(t, name+"_v1", b.Name())
			assert.NotEmpty(t, b.Schema.Features)
			assert.Equal(t, b.Schema.Features, NewFeatureEncoder(b.Schema, b.Encoder).FeatureNames())

			ev := b.Eval
			assert.Positive(t, ev.TrainRows)
			assert.Positive(t, ev.Test.Count)
			assert.GreaterOrEqual(t, ev.Test.ToleranceAccuracy, 0.0)
			assert.LessOrEqual(t, ev.Test.ToleranceAccuracy, 100.0)
			assert.GreaterOrEqual(t, ev.Test.MAPE, 0.0)
			assert.Greater(t, ev.Test.R2, 0.5, "synthetic prices should be learnable")
			assert.NotEmpty(t, ev.Samples)
			for _, s := range ev.Samples {
				assert.GreaterOrEqual(t, s.Predicted, 0.0)
				assert.LessOrEqual(t, s.Actual, float64(DefaultPriceCap))
			}

			if b.Schema.TargetTransform == models.TransformLog1p {
				assert.Positive(t, ev.LogRMSE)
			} else {
				assert.Zero(t, ev.LogRMSE)
			}
		})
	}
}

func TestTrain_Reproducible(t *testing.T) {
	a := trainVariant(t, config.VariantFinetuned, 300)
	b := trainVariant(t, config.VariantFinetuned, 300)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Eval.Test, b.Eval.Test)
	assert.Equal(t, a.Eval.Samples, b.Eval.Samples)
}

func TestTrain_Cancelled(t *testing.T) {
	v := quickVariant(config.VariantLightGBM)
	vehicles, stats := NewCleaner(newTestLogger()).Clean(syntheticRecords(50, 1), CleanOptions{RequirePrice: true})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTrainer(newTestLogger(), 1).Train(ctx, v, vehicles, stats.Medians, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
