package tree

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxitip/core/model"
	"github.com/YuminosukeSato/taxitip/pkg/errors"
)

func stepData() (*mat.Dense, *mat.Dense) {
	// y depends only on feature 0: 1 below 5, 10 above
	X := mat.NewDense(10, 2, nil)
	y := mat.NewDense(10, 1, nil)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64((i*7)%10))
		v := 1.0
		if i >= 5 {
			v = 10
		}
		y.Set(i, 0, v)
	}
	return X, y
}

func TestFindThresholds(t *testing.T) {
	tests := []struct {
		name    string
		values  []float64
		maxBins int
		want    []float64
	}{
		{"constant", []float64{3, 3, 3}, 4, nil},
		{"midpoints", []float64{1, 3, 2, 3}, 4, []float64{1.5, 2.5}},
		{"quantiles", []float64{1, 2, 3, 4, 5, 6, 7, 8}, 4, []float64{2, 4, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, findThresholds(tt.values, tt.maxBins))
		})
	}
}

func TestNewDatasetBins(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	ds, err := NewDataset(X, 32)
	require.NoError(t, err)

	assert.Equal(t, []float64{1.5, 2.5, 3.5}, ds.Thresholds[0])
	assert.Equal(t, []int32{0, 1, 2, 3}, ds.Bins[0])
	assert.Equal(t, []float64{3}, ds.Row(nil, 2))

	_, err = NewDataset(X, 1)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestDecisionTreeRegressor_StepFunction(t *testing.T) {
	X, y := stepData()

	dt := NewDecisionTreeRegressor(WithMaxDepth(3))
	require.NoError(t, dt.Fit(X, y))

	root := dt.Tree.Nodes[0]
	assert.Equal(t, 0, root.Feature)
	assert.Equal(t, 4.5, root.Threshold)
	assert.Equal(t, 1, dt.Tree.Depth())
	assert.Equal(t, 2, dt.Tree.NumLeaves())

	pred, err := dt.Predict(mat.NewDense(3, 2, []float64{0, 0, 4.5, 0, 9, 0}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, pred.At(0, 0))
	assert.Equal(t, 1.0, pred.At(1, 0))
	assert.Equal(t, 10.0, pred.At(2, 0))

	imp, err := dt.FeatureImportances()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, imp)
}

func TestDecisionTreeRegressor_DepthZeroIsMean(t *testing.T) {
	X, y := stepData()

	dt := NewDecisionTreeRegressor(WithMaxDepth(0))
	require.NoError(t, dt.Fit(X, y))

	require.Len(t, dt.Tree.Nodes, 1)
	assert.InDelta(t, 5.5, dt.Tree.Nodes[0].Value, 1e-12)

	imp, err := dt.FeatureImportances()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, imp)
}

func TestDecisionTreeRegressor_MinInstancesPerNode(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 0, 0, 100})

	dt := NewDecisionTreeRegressor(WithMaxDepth(2), WithMinInstancesPerNode(2))
	require.NoError(t, dt.Fit(X, y))

	for _, n := range dt.Tree.Nodes {
		assert.GreaterOrEqual(t, n.Samples, 2)
	}
}

func TestDecisionTreeRegressor_MinInfoGainStopsSplitting(t *testing.T) {
	X, y := stepData()

	dt := NewDecisionTreeRegressor(WithMinInfoGain(1e6))
	require.NoError(t, dt.Fit(X, y))
	assert.Len(t, dt.Tree.Nodes, 1)
}

func TestDecisionTreeRegressor_Errors(t *testing.T) {
	dt := NewDecisionTreeRegressor()
	_, err := dt.Predict(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	tests := []struct {
		name string
		opt  Option
	}{
		{"negative depth", WithMaxDepth(-1)},
		{"one bin", WithMaxBins(1)},
		{"zero instances", WithMinInstancesPerNode(0)},
		{"negative gain", WithMinInfoGain(-1)},
	}
	X, y := stepData()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *errors.ValidationError
			assert.True(t, errors.As(NewDecisionTreeRegressor(tt.opt).Fit(X, y), &ve))
		})
	}

	require.NoError(t, dt.Fit(X, y))
	_, err = dt.Predict(mat.NewDense(1, 3, nil))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}

func TestGrowFeatureSubsetIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	X := mat.NewDense(200, 5, nil)
	y := make([]float64, 200)
	for i := 0; i < 200; i++ {
		for j := 0; j < 5; j++ {
			X.Set(i, j, rng.Float64())
		}
		y[i] = 3*X.At(i, 1) + X.At(i, 3)
	}
	ds, err := NewDataset(X, 16)
	require.NoError(t, err)

	rows := make([]int, 200)
	for i := range rows {
		rows[i] = i
	}
	cfg := GrowConfig{MaxDepth: 4, MinInstancesPerNode: 1, FeatureSubset: 2}

	t1, imp1 := Grow(ds, y, rows, cfg, rand.New(rand.NewPCG(7, 7)))
	t2, imp2 := Grow(ds, y, rows, cfg, rand.New(rand.NewPCG(7, 7)))
	assert.Equal(t, t1.Nodes, t2.Nodes)
	assert.Equal(t, imp1, imp2)
}

func TestGrowParallelMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	n := parallelRowThreshold + 100
	X := mat.NewDense(n, 4, nil)
	y := make([]float64, n)
	rows := make([]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < 4; j++ {
			X.Set(i, j, rng.NormFloat64())
		}
		y[i] = X.At(i, 0) - 2*X.At(i, 2)
		rows[i] = i
	}
	ds, err := NewDataset(X, 32)
	require.NoError(t, err)

	seq, _ := Grow(ds, y, rows, GrowConfig{MaxDepth: 3, MinInstancesPerNode: 1}, nil)
	par, _ := Grow(ds, y, rows, GrowConfig{MaxDepth: 3, MinInstancesPerNode: 1, ParallelSplits: true}, nil)
	assert.Equal(t, seq.Nodes, par.Nodes)
}

func TestAggregateImportances(t *testing.T) {
	got := AggregateImportances([][]float64{{2, 2}, {0, 5}, {0, 0}}, 2)
	assert.InDeltaSlice(t, []float64{0.25, 0.75}, got, 1e-12)
}

func TestDecisionTreeRegressor_GobRoundTrip(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeRegressor(WithMaxDepth(2))
	require.NoError(t, dt.Fit(X, y))

	path := t.TempDir() + "/tree.gob"
	require.NoError(t, model.SaveModel(dt, path))

	var loaded DecisionTreeRegressor
	require.NoError(t, model.LoadModel(&loaded, path))

	want, err := dt.Predict(X)
	require.NoError(t, err)
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}
