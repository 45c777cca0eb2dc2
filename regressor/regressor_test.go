package regressor

import (
	"bytes"
	"context"
	"encoding/gob"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepData(n int) ([][]float64, []float64) {
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i % 10)
		X[i] = []float64{x, float64(i % 3)}
		if x > 5 {
			y[i] = 10
		}
	}
	return X, y
}

func noisyData(n int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := range X {
		a, b := rng.Float64()*10, rng.Float64()*5
		X[i] = []float64{a, b, float64(rng.Intn(4))}
		y[i] = 3*a - 2*b + rng.NormFloat64()*0.1
	}
	return X, y
}

func gbdtParams() Params {
	return Params{
		Kind:            KindGBDT,
		NEstimators:     100,
		LearningRate:    0.1,
		NumLeaves:       31,
		MaxDepth:        -1,
		MinChildSamples: 1,
		Subsample:       1,
		ColsampleByTree: 1,
		MaxBins:         255,
		Seed:            42,
	}
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(Params{Kind: "svm"})
	assert.Error(t, err)
}

func TestNew_KnownKinds(t *testing.T) {
	m, err := New(Params{Kind: KindGBDT})
	require.NoError(t, err)
	assert.Equal(t, KindGBDT, m.Kind())

	m, err = New(Params{Kind: KindRandomForest})
	require.NoError(t, err)
	assert.Equal(t, KindRandomForest, m.Kind())
}

func TestFit_ShapeErrors(t *testing.T) {
	g := NewGBDT(gbdtParams())
	assert.ErrorIs(t, g.Fit(context.Background(), nil, nil), ErrEmptyInput)
	assert.ErrorIs(t, g.Fit(context.Background(), [][]float64{{1}}, []float64{1, 2}), ErrShapeMismatch)
	assert.Error(t, g.Fit(context.Background(), [][]float64{{1, 2}, {1}}, []float64{1, 2}))
}

func TestBucketBounds_FewDistinctUsesMidpoints(t *testing.T) {
	bounds := bucketBounds([]float64{1, 1, 2, 4}, 255)
	require.Len(t, bounds, 3)
	assert.Equal(t, 1.5, bounds[0])
	assert.Equal(t, 3.0, bounds[1])
	assert.True(t, math.IsInf(bounds[2], 1))
}

func TestBucketBounds_ManyDistinctIsCapped(t *testing.T) {
	sorted := make([]float64, 10000)
	for i := range sorted {
		sorted[i] = float64(i)
	}
	bounds := bucketBounds(sorted, 16)
	assert.LessOrEqual(t, len(bounds), 16)
	for i := 1; i < len(bounds); i++ {
		assert.Greater(t, bounds[i], bounds[i-1])
	}
}

func TestBinner_ConstantColumnHasOneBin(t *testing.T) {
	b := newBinner([][]float64{{7, 1}, {7, 2}, {7, 3}}, 255)
	assert.Equal(t, 1, b.numBins(0))
	assert.Equal(t, 3, b.numBins(1))
}

func TestGBDT_LearnsStep(t *testing.T) {
	X, y := stepData(200)
	g := NewGBDT(gbdtParams())
	require.NoError(t, g.Fit(context.Background(), X, y))

	assert.Len(t, g.Trees, 100)
	assert.InDelta(t, 0, g.Predict([]float64{2, 0}), 0.01)
	assert.InDelta(t, 10, g.Predict([]float64{8, 1}), 0.01)
}

func TestGBDT_RespectsLeafAndDepthLimits(t *testing.T) {
	X, y := noisyData(500, 1)
	p := gbdtParams()
	p.NumLeaves = 4
	p.NEstimators = 5
	g := NewGBDT(p)
	require.NoError(t, g.Fit(context.Background(), X, y))
	for _, tr := range g.Trees {
		assert.LessOrEqual(t, countLeaves(tr), 4)
	}

	p.NumLeaves = 0
	p.MaxDepth = 1
	g = NewGBDT(p)
	require.NoError(t, g.Fit(context.Background(), X, y))
	for _, tr := range g.Trees {
		assert.LessOrEqual(t, countLeaves(tr), 2)
	}
}

func TestGBDT_ReproducibleWithSeed(t *testing.T) {
	X, y := noisyData(400, 2)
	p := gbdtParams()
	p.Subsample = 0.8
	p.ColsampleByTree = 0.67

	a := NewGBDT(p)
	b := NewGBDT(p)
	require.NoError(t, a.Fit(context.Background(), X, y))
	require.NoError(t, b.Fit(context.Background(), X, y))

	for _, row := range X[:50] {
		assert.Equal(t, a.Predict(row), b.Predict(row))
	}
}

func TestGBDT_CancelledContext(t *testing.T) {
	X, y := stepData(50)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewGBDT(gbdtParams()).Fit(ctx, X, y), context.Canceled)
}

func TestForest_FitsAndIsIndependentOfWorkers(t *testing.T) {
	X, y := noisyData(300, 3)
	p := Params{
		Kind:            KindRandomForest,
		NEstimators:     20,
		MinChildSamples: 1,
		ColsampleByTree: 1,
		MaxBins:         255,
		Seed:            42,
	}

	p.Workers = 1
	serial := NewForest(p)
	require.NoError(t, serial.Fit(context.Background(), X, y))

	p.Workers = 4
	parallel := NewForest(p)
	require.NoError(t, parallel.Fit(context.Background(), X, y))

	require.Len(t, parallel.Trees, 20)
	var sse float64
	for i, row := range X {
		assert.Equal(t, serial.Predict(row), parallel.Predict(row))
		d := parallel.Predict(row) - y[i]
		sse += d * d
	}
	assert.Less(t, math.Sqrt(sse/float64(len(X))), 2.0)
}

func TestForest_EmptyPredictsZero(t *testing.T) {
	assert.Equal(t, 0.0, NewForest(Params{}).Predict([]float64{1}))
}

func TestModel_GobRoundTrip(t *testing.T) {
	X, y := stepData(100)
	g := NewGBDT(gbdtParams())
	require.NoError(t, g.Fit(context.Background(), X, y))

	var buf bytes.Buffer
	var m Model = g
	require.NoError(t, gob.NewEncoder(&buf).Encode(&m))

	var out Model
	require.NoError(t, gob.NewDecoder(&buf).Decode(&out))
	assert.Equal(t, KindGBDT, out.Kind())
	assert.Equal(t, g.Predict([]float64{7, 2}), out.Predict([]float64{7, 2}))
}

func countLeaves(t Tree) int {
	n := 0
	for _, node := range t.Nodes {
		if node.Left < 0 {
			n++
		}
	}
	return n
}
