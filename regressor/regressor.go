// Package regressor provides the tree-ensemble regressors used for price
// prediction: gradient-boosted trees and a random forest, both built on
// histogram-binned regression trees.
package regressor

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
)

// Kinds accepted by New.
const (
	KindGBDT         = "gbdt"
	KindRandomForest = "random_forest"
)

var (
	ErrEmptyInput    = errors.New("regressor: empty training set")
	ErrShapeMismatch = errors.New("regressor: features and targets differ in length")
)

// Model is a fitted regressor.
type Model interface {
	Kind() string
	Predict(x []float64) float64
}

// Fitter is a regressor that can be trained.
type Fitter interface {
	Model
	Fit(ctx context.Context, X [][]float64, y []float64) error
}

// Params holds the hyper-parameters of every supported regressor; each kind
// reads the subset it understands.
type Params struct {
	Kind            string  `koanf:"kind" validate:"oneof=gbdt random_forest"`
	NEstimators     int     `koanf:"n_estimators" validate:"min=1"`
	LearningRate    float64 `koanf:"learning_rate" validate:"gte=0,lte=1"`
	NumLeaves       int     `koanf:"num_leaves" validate:"min=0"`
	MaxDepth        int     `koanf:"max_depth"`
	MinChildSamples int     `koanf:"min_child_samples" validate:"min=1"`
	Subsample       float64 `koanf:"subsample" validate:"gt=0,lte=1"`
	ColsampleByTree float64 `koanf:"colsample_bytree" validate:"gt=0,lte=1"`
	MaxBins         int     `koanf:"max_bins" validate:"min=2,max=256"`
	Seed            int64   `koanf:"seed"`
	Workers         int     `koanf:"workers" validate:"min=0"`
}

// Maker builds an untrained regressor from Params.
type Maker func(p Params) Fitter

// Makers is the registry of regressor constructors keyed by kind.
var Makers = map[string]Maker{
	KindGBDT:         func(p Params) Fitter { return NewGBDT(p) },
	KindRandomForest: func(p Params) Fitter { return NewForest(p) },
}

// New returns an untrained regressor of the kind named in p.
func New(p Params) (Fitter, error) {
	mk, ok := Makers[p.Kind]
	if !ok {
		return nil, fmt.Errorf("regressor: unknown kind %q", p.Kind)
	}
	return mk(p), nil
}

func init() {
	gob.Register(&GBDT{})
	gob.Register(&Forest{})
}

func checkShape(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return ErrEmptyInput
	}
	if len(X) != len(y) {
		return ErrShapeMismatch
	}
	width := len(X[0])
	if width == 0 {
		return fmt.Errorf("regressor: rows have no features")
	}
	for i, row := range X {
		if len(row) != width {
			return fmt.Errorf("regressor: row %d has %d features, want %d", i, len(row), width)
		}
	}
	return nil
}
