package regressor

import (
	"context"
	"math/rand"
	"runtime"
	"sync"

	"car-price-predictor/utils"
)

// Forest is a bagged ensemble of fully-grown regression trees; the prediction
// is the mean over trees.
type Forest struct {
	Params Params
	Trees  []Tree
}

// NewForest returns an untrained random forest.
func NewForest(p Params) *Forest {
	p.Kind = KindRandomForest
	return &Forest{Params: p}
}

func (m *Forest) Kind() string { return KindRandomForest }

// Fit grows NEstimators trees concurrently. Each tree draws its bootstrap
// sample and feature subset from its own RNG seeded from Params.Seed and the
// tree index, so the result does not depend on scheduling.
func (m *Forest) Fit(ctx context.Context, X [][]float64, y []float64) error {
	if err := checkShape(X, y); err != nil {
		return err
	}
	p := m.Params
	b := newBinner(X, p.MaxBins)
	bins := b.bin(X)
	n, nf := len(X), len(X[0])

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pool := utils.NewWorkerPool(workers)

	trees := make([]Tree, p.NEstimators)
	var (
		mu       sync.Mutex
		firstErr error
	)
	opts := growOptions{MaxLeaves: p.NumLeaves, MaxDepth: p.MaxDepth, MinLeaf: p.MinChildSamples}

	for t := 0; t < p.NEstimators; t++ {
		if err := ctx.Err(); err != nil {
			pool.Wait()
			return err
		}
		t := t
		pool.Submit(func() {
			if ctx.Err() != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = ctx.Err()
				}
				mu.Unlock()
				return
			}
			rng := rand.New(rand.NewSource(p.Seed + int64(t)*7919))
			g := &treeGrower{
				bins:     bins,
				binner:   b,
				target:   y,
				features: sampleFeatures(rng, nf, p.ColsampleByTree),
				opts:     opts,
			}
			trees[t] = g.grow(bootstrapRows(rng, n))
		})
	}
	pool.Wait()

	if firstErr != nil {
		return firstErr
	}
	m.Trees = trees
	return nil
}

// Predict averages the trees' predictions for one feature row.
func (m *Forest) Predict(x []float64) float64 {
	if len(m.Trees) == 0 {
		return 0
	}
	sum := 0.0
	for i := range m.Trees {
		sum += m.Trees[i].Predict(x)
	}
	return sum / float64(len(m.Trees))
}
