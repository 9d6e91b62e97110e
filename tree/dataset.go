// Package tree implements CART regression trees with variance impurity over
// pre-binned features. The random forest and gradient boosting estimators in
// package ensemble grow their trees through Grow on a shared Dataset.
package tree

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxitip/pkg/errors"
)

// Dataset holds the training matrix column-wise together with the candidate
// split thresholds of every feature and the bin index of every value.
//
// For feature f, Bins[f][i] is the number of thresholds strictly below the
// value of row i, so "x <= Thresholds[f][k]" is equivalent to "bin <= k".
type Dataset struct {
	NRows      int
	NFeatures  int
	Cols       [][]float64
	Thresholds [][]float64
	Bins       [][]int32
}

// NewDataset bins X with at most maxBins bins per feature.
func NewDataset(X mat.Matrix, maxBins int) (*Dataset, error) {
	if maxBins < 2 {
		return nil, errors.NewValidationError("max_bins", "must be at least 2", maxBins)
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError("tree.NewDataset", "empty data", errors.ErrEmptyData)
	}

	ds := &Dataset{
		NRows:      r,
		NFeatures:  c,
		Cols:       make([][]float64, c),
		Thresholds: make([][]float64, c),
		Bins:       make([][]int32, c),
	}
	for f := 0; f < c; f++ {
		col := mat.Col(nil, f, X)
		if err := errors.CheckFinite("tree.NewDataset", col); err != nil {
			return nil, err
		}
		th := findThresholds(col, maxBins)
		bins := make([]int32, r)
		for i, v := range col {
			bins[i] = int32(sort.SearchFloat64s(th, v))
		}
		ds.Cols[f] = col
		ds.Thresholds[f] = th
		ds.Bins[f] = bins
	}
	return ds, nil
}

// findThresholds returns sorted candidate thresholds for one feature. With
// few distinct values every midpoint is a candidate, otherwise the values at
// maxBins-1 evenly spaced quantiles are.
func findThresholds(values []float64, maxBins int) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	unique := []float64{sorted[0]}
	for _, v := range sorted[1:] {
		if v != unique[len(unique)-1] {
			unique = append(unique, v)
		}
	}
	if len(unique) == 1 {
		return nil
	}

	if len(unique) <= maxBins {
		th := make([]float64, len(unique)-1)
		for i := range th {
			th[i] = (unique[i] + unique[i+1]) / 2
		}
		return th
	}

	maxValue := sorted[len(sorted)-1]
	th := make([]float64, 0, maxBins-1)
	for i := 1; i < maxBins; i++ {
		q := sorted[(len(sorted)-1)*i/maxBins]
		if q >= maxValue {
			break
		}
		if len(th) == 0 || q > th[len(th)-1] {
			th = append(th, q)
		}
	}
	return th
}

// Row copies row i of the dataset into dst.
func (ds *Dataset) Row(dst []float64, i int) []float64 {
	if dst == nil {
		dst = make([]float64, ds.NFeatures)
	}
	for f := 0; f < ds.NFeatures; f++ {
		dst[f] = ds.Cols[f][i]
	}
	return dst
}
