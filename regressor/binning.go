package regressor

import (
	"math"
	"sort"
)

// binner maps raw feature values to at most maxBins ordered buckets.
// Bucket b of feature f holds values in (uppers[f][b-1], uppers[f][b]];
// the last upper bound is +Inf.
type binner struct {
	uppers [][]float64
}

func newBinner(X [][]float64, maxBins int) *binner {
	if maxBins < 2 || maxBins > 256 {
		maxBins = 255
	}
	nf := len(X[0])
	b := &binner{uppers: make([][]float64, nf)}
	col := make([]float64, len(X))
	for f := 0; f < nf; f++ {
		for i, row := range X {
			col[i] = row[f]
		}
		sort.Float64s(col)
		b.uppers[f] = bucketBounds(col, maxBins)
	}
	return b
}

// bucketBounds returns split thresholds for sorted values: midpoints between
// distinct values when few enough, quantile cut points otherwise.
func bucketBounds(sorted []float64, maxBins int) []float64 {
	distinct := make([]float64, 0, maxBins+1)
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			distinct = append(distinct, v)
			if len(distinct) > maxBins {
				break
			}
		}
	}

	var bounds []float64
	if len(distinct) <= maxBins {
		bounds = make([]float64, 0, len(distinct))
		for i := 0; i+1 < len(distinct); i++ {
			bounds = append(bounds, (distinct[i]+distinct[i+1])/2)
		}
	} else {
		n := len(sorted)
		for j := 1; j < maxBins; j++ {
			cut := sorted[j*n/maxBins]
			if len(bounds) == 0 || cut > bounds[len(bounds)-1] {
				bounds = append(bounds, cut)
			}
		}
		// The top cut must leave something above it.
		if len(bounds) > 0 && bounds[len(bounds)-1] >= sorted[n-1] {
			bounds = bounds[:len(bounds)-1]
		}
	}
	return append(bounds, math.Inf(1))
}

// bin returns column-major bucket indexes: out[f][row].
func (b *binner) bin(X [][]float64) [][]uint8 {
	out := make([][]uint8, len(b.uppers))
	for f, ups := range b.uppers {
		col := make([]uint8, len(X))
		last := len(ups) - 1
		for i, row := range X {
			idx := sort.SearchFloat64s(ups, row[f])
			if idx > last {
				idx = last
			}
			col[i] = uint8(idx)
		}
		out[f] = col
	}
	return out
}

func (b *binner) numBins(f int) int {
	return len(b.uppers[f])
}
