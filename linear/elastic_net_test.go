package linear

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxitip/pkg/errors"
)

func singleFeature() (*mat.Dense, *mat.Dense) {
	// y = 2x + 1, x mean 2.5, population std sqrt(1.25)
	return mat.NewDense(4, 1, []float64{1, 2, 3, 4}),
		mat.NewDense(4, 1, []float64{3, 5, 7, 9})
}

func TestElasticNet_ClosedForms(t *testing.T) {
	tests := []struct {
		name          string
		lambda, alpha float64
		wantCoef      float64
	}{
		// lasso: β = 2 - λ/std
		{"lasso", 0.5, 1, 2 - 0.5/math.Sqrt(1.25)},
		// ridge: β = 2 / (1 + λ)
		{"ridge", 0.5, 0, 2 / 1.5},
		{"mixed", 0.5, 0.5, (2*math.Sqrt(1.25) - 0.25) / 1.25 / math.Sqrt(1.25)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			X, y := singleFeature()
			en := NewElasticNet(WithRegParam(tt.lambda), WithElasticNetParam(tt.alpha))
			require.NoError(t, en.Fit(X, y))

			assert.Equal(t, "coordinate_descent", en.UsedSolver)
			assert.True(t, en.Converged)
			assert.InDelta(t, tt.wantCoef, en.Coefficients()[0], 1e-9)
			assert.InDelta(t, 6-tt.wantCoef*2.5, en.Intercept(), 1e-9)
		})
	}
}

func TestElasticNet_ZeroRegUsesNormalEquations(t *testing.T) {
	X := mat.NewDense(5, 2, []float64{
		1, 1,
		2, 1,
		3, 2,
		4, 2,
		5, 3,
	})
	y := mat.NewDense(5, 1, []float64{6, 8, 13, 15, 20})

	en := NewElasticNet()
	require.NoError(t, en.Fit(X, y))
	assert.Equal(t, "normal", en.UsedSolver)
	assert.InDeltaSlice(t, []float64{2, 3}, en.Coefficients(), 1e-9)
	assert.InDelta(t, 1, en.Intercept(), 1e-9)
}

func TestElasticNet_SingularFallsBackToCoordinateDescent(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{1, 1, 2, 2, 3, 3, 4, 4})
	y := mat.NewDense(4, 1, []float64{3, 5, 7, 9})

	en := NewElasticNet()
	require.NoError(t, en.Fit(X, y))
	assert.Equal(t, "coordinate_descent", en.UsedSolver)

	pred, err := en.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.InDelta(t, y.At(i, 0), pred.At(i, 0), 1e-6)
	}
}

func TestElasticNet_StrongLassoZeroesCoefficients(t *testing.T) {
	X := mat.NewDense(5, 2, []float64{
		1, 5,
		2, 3,
		3, 4,
		4, 1,
		5, 2,
	})
	y := mat.NewDense(5, 1, []float64{2, 4, 5, 4, 5})

	en := NewElasticNet(WithRegParam(100), WithElasticNetParam(1))
	require.NoError(t, en.Fit(X, y))

	assert.Equal(t, []float64{0, 0}, en.Coefficients())
	assert.InDelta(t, 4.0, en.Intercept(), 1e-12)
}

func TestElasticNet_ConvergenceWarning(t *testing.T) {
	var warnings []error
	errors.SetZerologWarnFunc(func(w error) { warnings = append(warnings, w) })
	defer errors.SetZerologWarnFunc(nil)

	X := mat.NewDense(6, 2, []float64{
		1, 1.1,
		2, 1.9,
		3, 3.2,
		4, 3.9,
		5, 5.1,
		6, 6.0,
	})
	y := mat.NewDense(6, 1, []float64{2, 4, 6, 8, 10, 12})

	en := NewElasticNet(WithRegParam(0.01), WithElasticNetParam(0.5), WithMaxIter(1), WithTol(1e-12))
	require.NoError(t, en.Fit(X, y))

	assert.False(t, en.Converged)
	assert.Equal(t, 1, en.NIter)
	require.Len(t, warnings, 1)
	var cw *errors.ConvergenceWarning
	require.True(t, errors.As(warnings[0], &cw))
	assert.Equal(t, "ElasticNet", cw.Algorithm)
}

func TestElasticNet_Validation(t *testing.T) {
	X, y := singleFeature()
	tests := []struct {
		name  string
		opt   Option
		param string
	}{
		{"negative lambda", WithRegParam(-1), "reg_param"},
		{"alpha above one", WithElasticNetParam(1.5), "elastic_net_param"},
		{"zero max iter", WithMaxIter(0), "max_iter"},
		{"zero tol", WithTol(0), "tol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewElasticNet(tt.opt).Fit(X, y)
			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.param, ve.ParamName)
		})
	}
}

func TestElasticNet_PredictErrors(t *testing.T) {
	en := NewElasticNet(WithRegParam(0.1))
	_, err := en.Predict(mat.NewDense(1, 1, []float64{1}))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	X, y := singleFeature()
	require.NoError(t, en.Fit(X, y))
	_, err = en.Predict(mat.NewDense(1, 2, []float64{1, 2}))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}

func TestElasticNet_NoIntercept(t *testing.T) {
	// y = 2x
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{2, 4, 6, 8})

	en := NewElasticNet(WithFitIntercept(false), WithStandardization(false), WithMaxIter(1000))
	require.NoError(t, en.Fit(X, y))
	assert.InDelta(t, 2.0, en.Coefficients()[0], 1e-6)
	assert.Equal(t, 0.0, en.Intercept())
}

func TestElasticNet_Summary(t *testing.T) {
	X, y := singleFeature()
	en := NewElasticNet(WithRegParam(0.5), WithElasticNetParam(1))
	require.NoError(t, en.Fit(X, y))

	s := en.Summary()
	require.NoError(t, s.WithFeatures([]string{"fare_amount"}).Validate())
	assert.Equal(t, "ElasticNet", s.ModelType)
	assert.Equal(t, 0.5, s.Hyperparameters["reg_param"])
	assert.Equal(t, true, s.Metadata["converged"])
}

func TestElasticNet_Score(t *testing.T) {
	X, y := singleFeature()
	en := NewElasticNet()
	require.NoError(t, en.Fit(X, y))

	score, err := en.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)
}
