package ensemble

import (
	"bytes"
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxitip/core/model"
	"github.com/YuminosukeSato/taxitip/pkg/errors"
)

func stepData() (*mat.Dense, *mat.Dense) {
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

func noisyLinear(n int, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a, b, c := rng.Float64()*10, rng.Float64()*5, rng.Float64()
		X.Set(i, 0, a)
		X.Set(i, 1, b)
		X.Set(i, 2, c)
		y.Set(i, 0, 2*a+b+0.1*rng.NormFloat64())
	}
	return X, y
}

func TestResolveFeatureSubset(t *testing.T) {
	tests := []struct {
		strategy string
		features int
		trees    int
		want     int
	}{
		{"auto", 6, 20, 2},
		{"auto", 6, 1, 6},
		{"all", 6, 20, 6},
		{"onethird", 7, 20, 3},
		{"sqrt", 6, 20, 3},
		{"log2", 6, 20, 3},
		{"log2", 1, 20, 1},
		{"0.5", 6, 20, 3},
		{"4", 6, 20, 4},
		{"10", 6, 20, 6},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			got, err := resolveFeatureSubset(tt.strategy, tt.features, tt.trees)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"half", "0", "1.5", "-2"} {
		_, err := resolveFeatureSubset(bad, 6, 20)
		var ve *errors.ValidationError
		assert.True(t, errors.As(err, &ve), bad)
	}
}

func TestSampleRows(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))

	rows := sampleRows(rng, 100, 0.5, true)
	assert.Len(t, rows, 50)
	for _, r := range rows {
		assert.True(t, r >= 0 && r < 100)
	}

	rows = sampleRows(rng, 100, 0.3, false)
	assert.Len(t, rows, 30)
	seen := map[int]bool{}
	for _, r := range rows {
		assert.False(t, seen[r], "row %d drawn twice", r)
		seen[r] = true
	}

	assert.Equal(t, []int{0, 1, 2, 3}, sampleRows(rng, 4, 1.0, false))
	assert.Len(t, sampleRows(rng, 4, 0.01, true), 1)
}

func TestStallDetector(t *testing.T) {
	disabled := NewStallDetector(0, 0)
	for i := 0; i < 10; i++ {
		assert.False(t, disabled.Update(i, 1))
	}

	s := NewStallDetector(2, 0.01)
	assert.False(t, s.Update(0, 1.0))
	assert.False(t, s.Update(1, 0.5))
	assert.False(t, s.Update(2, 0.495)) // within tol
	assert.True(t, s.Update(3, 0.5))
	assert.Equal(t, 1, s.BestIteration)
	assert.Equal(t, 0.5, s.BestLoss)
}

func TestRandomForestSingleTreeFitsStep(t *testing.T) {
	X, y := stepData()
	rf := NewRandomForestRegressor(WithNumTrees(1), WithForestMaxDepth(3))
	require.NoError(t, rf.Fit(X, y))

	assert.Equal(t, 2, rf.FeatureSubsetSize)
	pred, err := rf.Predict(mat.NewDense(2, 2, []float64{2, 0, 8, 0}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, pred.At(0, 0), 1e-12)
	assert.InDelta(t, 10.0, pred.At(1, 0), 1e-12)

	imp, err := rf.FeatureImportances()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, imp)
}

func TestRandomForestDeterministicAcrossWorkers(t *testing.T) {
	X, y := noisyLinear(200, 7)

	a := NewRandomForestRegressor(WithNumTrees(8), WithForestSeed(42), WithWorkers(1))
	b := NewRandomForestRegressor(WithNumTrees(8), WithForestSeed(42), WithWorkers(4))
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))

	pa, err := a.Predict(X)
	require.NoError(t, err)
	pb, err := b.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(pa, pb))
	assert.Equal(t, a.Importances, b.Importances)

	total := 0.0
	for _, v := range a.Importances {
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.Len(t, a.Trees, 8)
	assert.Equal(t, 1, a.FeatureSubsetSize)
}

func TestRandomForestErrors(t *testing.T) {
	X, y := stepData()

	_, err := NewRandomForestRegressor().Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	cases := map[string]*RandomForestRegressor{
		"num_trees":               NewRandomForestRegressor(WithNumTrees(0)),
		"subsampling_rate":        NewRandomForestRegressor(WithForestSubsamplingRate(0)),
		"max_bins":                NewRandomForestRegressor(WithForestMaxBins(1)),
		"feature_subset_strategy": NewRandomForestRegressor(WithFeatureSubsetStrategy("most")),
	}
	for param, rf := range cases {
		t.Run(param, func(t *testing.T) {
			err := rf.Fit(X, y)
			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, param, ve.ParamName)
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewRandomForestRegressor().FitContext(ctx, X, y)
	assert.True(t, errors.Is(err, context.Canceled))

	rf := NewRandomForestRegressor(WithNumTrees(2))
	require.NoError(t, rf.Fit(X, y))
	_, err = rf.Predict(mat.NewDense(1, 3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

func TestGBTFitsStepAndStalls(t *testing.T) {
	X, y := stepData()
	g := NewGBTRegressor(WithMaxIter(10), WithGBTMaxDepth(2), WithStallStop(2, 0))
	require.NoError(t, g.Fit(X, y))

	// the first tree is exact, so the loss never improves afterwards
	assert.Len(t, g.Trees, 3)
	assert.Equal(t, []float64{1, 0.1, 0.1}, g.TreeWeights)
	assert.InDelta(t, 0, g.TrainLoss[0], 1e-12)

	pred, err := g.Predict(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, mat.Col(nil, 0, y), mat.Col(nil, 0, pred), 1e-9)
}

func TestGBTTrainingLossDecreases(t *testing.T) {
	X, y := noisyLinear(300, 3)
	g := NewGBTRegressor(WithMaxIter(15), WithGBTMaxDepth(2), WithStepSize(0.3), WithGBTSeed(5))
	require.NoError(t, g.Fit(X, y))

	require.Len(t, g.TrainLoss, 15)
	for i := 1; i < len(g.TrainLoss); i++ {
		assert.LessOrEqual(t, g.TrainLoss[i], g.TrainLoss[i-1]+1e-12, "iteration %d", i)
	}

	imp, err := g.FeatureImportances()
	require.NoError(t, err)
	assert.Greater(t, imp[0], imp[2])

	s := g.Summary()
	assert.True(t, s.IsFitted)
	assert.Equal(t, 15, s.Metadata["trees"])
	assert.Equal(t, g.TrainLoss[14], s.Metadata["final_train_mse"])
}

func TestGBTSubsamplingIsSeeded(t *testing.T) {
	X, y := noisyLinear(150, 11)
	fit := func() mat.Matrix {
		g := NewGBTRegressor(WithMaxIter(5), WithGBTSubsamplingRate(0.5), WithGBTSeed(9))
		require.NoError(t, g.Fit(X, y))
		p, err := g.Predict(X)
		require.NoError(t, err)
		return p
	}
	assert.True(t, mat.Equal(fit(), fit()))
}

func TestGBTErrors(t *testing.T) {
	X, y := stepData()

	for param, g := range map[string]*GBTRegressor{
		"max_iter":  NewGBTRegressor(WithMaxIter(0)),
		"step_size": NewGBTRegressor(WithStepSize(0)),
		"max_depth": NewGBTRegressor(WithGBTMaxDepth(-1)),
	} {
		err := g.Fit(X, y)
		var ve *errors.ValidationError
		require.True(t, errors.As(err, &ve), param)
		assert.Equal(t, param, ve.ParamName)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := model.FitWithContext(ctx, NewGBTRegressor(), X, y)
	assert.True(t, errors.Is(err, context.Canceled))

	_, err = NewGBTRegressor().FeatureImportances()
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestGBTGobRoundTrip(t *testing.T) {
	X, y := noisyLinear(80, 2)
	g := NewGBTRegressor(WithMaxIter(4))
	require.NoError(t, g.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(g, &buf))

	var loaded GBTRegressor
	require.NoError(t, model.LoadModelFromReader(&loaded, &buf))

	want, err := g.Predict(X)
	require.NoError(t, err)
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}
