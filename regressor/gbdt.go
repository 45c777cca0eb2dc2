package regressor

import (
	"context"
	"math/rand"
)

// GBDT is a gradient-boosted ensemble of regression trees fitted to squared
// error. Trees are grown leaf-wise and their leaf values are already scaled by
// the learning rate.
type GBDT struct {
	Params Params
	Init   float64
	Trees  []Tree
}

// NewGBDT returns an untrained booster.
func NewGBDT(p Params) *GBDT {
	p.Kind = KindGBDT
	return &GBDT{Params: p}
}

func (m *GBDT) Kind() string { return KindGBDT }

// Fit trains the booster from scratch, discarding any earlier trees.
func (m *GBDT) Fit(ctx context.Context, X [][]float64, y []float64) error {
	if err := checkShape(X, y); err != nil {
		return err
	}
	p := m.Params
	rng := rand.New(rand.NewSource(p.Seed))

	b := newBinner(X, p.MaxBins)
	bins := b.bin(X)
	n, nf := len(X), len(X[0])

	init := 0.0
	for _, v := range y {
		init += v
	}
	init /= float64(n)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = init
	}
	residual := make([]float64, n)

	m.Init = init
	m.Trees = make([]Tree, 0, p.NEstimators)
	opts := growOptions{MaxLeaves: p.NumLeaves, MaxDepth: p.MaxDepth, MinLeaf: p.MinChildSamples}

	for t := 0; t < p.NEstimators; t++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range residual {
			residual[i] = y[i] - pred[i]
		}

		g := &treeGrower{
			bins:     bins,
			binner:   b,
			target:   residual,
			features: sampleFeatures(rng, nf, p.ColsampleByTree),
			opts:     opts,
		}
		tree := g.grow(sampleRows(rng, n, p.Subsample))
		tree.scale(p.LearningRate)

		for i := range pred {
			pred[i] += tree.predictBinned(bins, i)
		}
		m.Trees = append(m.Trees, tree)
	}
	return nil
}

// Predict returns the boosted prediction for one feature row.
func (m *GBDT) Predict(x []float64) float64 {
	out := m.Init
	for i := range m.Trees {
		out += m.Trees[i].Predict(x)
	}
	return out
}

// sampleRows draws round(frac*n) distinct rows without replacement, in
// ascending order. frac >= 1 returns every row.
func sampleRows(rng *rand.Rand, n int, frac float64) []int {
	if frac <= 0 || frac >= 1 {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	k := int(frac*float64(n) + 0.5)
	if k < 1 {
		k = 1
	}
	keep := make([]bool, n)
	for _, r := range rng.Perm(n)[:k] {
		keep[r] = true
	}
	rows := make([]int, 0, k)
	for i, ok := range keep {
		if ok {
			rows = append(rows, i)
		}
	}
	return rows
}

// sampleFeatures picks round(frac*nf) features (at least one), sorted.
func sampleFeatures(rng *rand.Rand, nf int, frac float64) []int {
	return sampleRows(rng, nf, frac)
}

// bootstrapRows draws n rows with replacement.
func bootstrapRows(rng *rand.Rand, n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = rng.Intn(n)
	}
	return rows
}
