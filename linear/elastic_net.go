package linear

import (
	"math"
	"strconv"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/taxitip/core/model"
	"github.com/YuminosukeSato/taxitip/metrics"
	"github.com/YuminosukeSato/taxitip/pkg/errors"
	"github.com/YuminosukeSato/taxitip/pkg/log"
	"github.com/YuminosukeSato/taxitip/preprocessing"
)

// ElasticNet は L1 と L2 を混合した正則化付き最小二乗回帰
//
// 目的関数:
//
//	1/(2n) * ||y - Xw - b||² + λ * (α*||w||₁ + (1-α)/2 * ||w||²)
//
// 標準化した特徴量上で座標降下法により解き、係数は元のスケールに戻して保持する。
type ElasticNet struct {
	State *model.StateManager

	RegParam        float64 // λ
	ElasticNetParam float64 // α
	MaxIter         int
	Tol             float64
	FitIntercept    bool
	Standardization bool

	Weights    []float64 // 元のスケールでの係数
	Bias       float64
	NIter      int
	Converged  bool
	UsedSolver string // "normal" または "coordinate_descent"
}

// NewElasticNet は新しい ElasticNet を作成する
//
// 使用例:
//
//	en := linear.NewElasticNet(linear.WithRegParam(0.01), linear.WithElasticNetParam(0.5))
//	err := en.Fit(X, y)
func NewElasticNet(opts ...Option) *ElasticNet {
	en := &ElasticNet{
		State:           model.NewStateManager(),
		RegParam:        0.0,
		ElasticNetParam: 0.0,
		MaxIter:         100,
		Tol:             1e-6,
		FitIntercept:    true,
		Standardization: true,
	}
	for _, opt := range opts {
		opt(en)
	}
	return en
}

// Name implements model.Regressor.
func (en *ElasticNet) Name() string { return "ElasticNet" }

func (en *ElasticNet) validate() error {
	if en.RegParam < 0 || math.IsNaN(en.RegParam) {
		return errors.NewValidationError("reg_param", "must be non-negative", en.RegParam)
	}
	if en.ElasticNetParam < 0 || en.ElasticNetParam > 1 || math.IsNaN(en.ElasticNetParam) {
		return errors.NewValidationError("elastic_net_param", "must be in [0, 1]", en.ElasticNetParam)
	}
	if en.MaxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", en.MaxIter)
	}
	if en.Tol <= 0 {
		return errors.NewValidationError("tol", "must be positive", en.Tol)
	}
	return nil
}

// Fit はモデルを訓練データで学習させる
func (en *ElasticNet) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "ElasticNet.Fit")

	if err := en.validate(); err != nil {
		return err
	}
	r, c, err := checkXY("ElasticNet.Fit", X, y)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("linear.elastic_net").With(log.ModelNameKey, en.Name())
	start := time.Now()
	logger.Debug("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, r,
		log.FeaturesKey, c,
		log.RegularizationKey, en.RegParam,
	)

	en.State.Reset()

	if en.RegParam == 0 && en.FitIntercept {
		ols := NewLinearRegression()
		switch olsErr := ols.Fit(X, y); {
		case olsErr == nil:
			en.Weights, en.Bias = ols.Weights, ols.Bias
			en.NIter, en.Converged, en.UsedSolver = 1, true, "normal"
			en.State.SetFitted(c, r)
			logger.Debug("Training completed", "solver", en.UsedSolver, log.DurationMsKey, time.Since(start).Milliseconds())
			return nil
		case errors.Is(olsErr, errors.ErrSingularMatrix):
			logger.Debug("Normal equations singular, using coordinate descent")
		default:
			return olsErr
		}
	}

	if err := en.coordinateDescent(X, y, r, c); err != nil {
		return err
	}
	en.UsedSolver = "coordinate_descent"
	en.State.SetFitted(c, r)

	logger.Debug("Training completed",
		"solver", en.UsedSolver,
		log.IterationKey, en.NIter,
		"converged", en.Converged,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (en *ElasticNet) coordinateDescent(X, y mat.Matrix, r, c int) error {
	scaler := preprocessing.NewStandardScaler(en.FitIntercept, en.Standardization)
	Z, err := scaler.FitTransform(X)
	if err != nil {
		return err
	}

	yCol := mat.Col(nil, 0, y)
	if err := errors.CheckFinite("ElasticNet.Fit", yCol); err != nil {
		return err
	}
	yMean := 0.0
	if en.FitIntercept {
		yMean = stat.Mean(yCol, nil)
	}

	cols := make([][]float64, c)
	norms := make([]float64, c)
	n := float64(r)
	for j := 0; j < c; j++ {
		cols[j] = mat.Col(nil, j, Z)
		if err := errors.CheckFinite("ElasticNet.Fit", cols[j]); err != nil {
			return err
		}
		norms[j] = floats.Dot(cols[j], cols[j]) / n
	}

	residual := make([]float64, r)
	for i, v := range yCol {
		residual[i] = v - yMean
	}

	l1 := en.RegParam * en.ElasticNetParam
	l2 := en.RegParam * (1 - en.ElasticNetParam)

	w := make([]float64, c)
	en.Converged = false
	iter := 0
	maxDelta := 0.0
	for iter = 1; iter <= en.MaxIter; iter++ {
		maxDelta = 0.0
		for j := 0; j < c; j++ {
			denom := norms[j] + l2
			if denom == 0 {
				continue
			}
			rho := floats.Dot(cols[j], residual)/n + norms[j]*w[j]
			updated := errors.SoftThreshold(rho, l1) / denom
			delta := updated - w[j]
			if delta != 0 {
				floats.AddScaled(residual, -delta, cols[j])
				w[j] = updated
			}
			maxDelta = math.Max(maxDelta, math.Abs(delta))
		}
		if err := errors.CheckScalar("coordinate_descent", maxDelta, iter); err != nil {
			return err
		}
		if maxDelta < en.Tol {
			en.Converged = true
			break
		}
	}
	if iter > en.MaxIter {
		iter = en.MaxIter
	}
	en.NIter = iter

	if !en.Converged {
		errors.Warn(errors.NewConvergenceWarning(en.Name(), en.MaxIter,
			"largest coefficient change "+strconv.FormatFloat(maxDelta, 'g', 4, 64)+" above tol"))
	}

	en.Weights = make([]float64, c)
	en.Bias = 0
	for j := 0; j < c; j++ {
		en.Weights[j] = w[j] / scaler.Scale[j]
	}
	if en.FitIntercept {
		en.Bias = yMean - floats.Dot(en.Weights, scaler.Mean)
	}
	return nil
}

// Predict は入力データに対する予測を行う
func (en *ElasticNet) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := en.State.RequireFitted(en.Name(), "Predict"); err != nil {
		return nil, err
	}
	return predictLinear("ElasticNet.Predict", en.State, X, en.Weights, en.Bias)
}

// Score はテストデータに対する決定係数（R²）を返す
func (en *ElasticNet) Score(X, y mat.Matrix) (float64, error) {
	pred, err := en.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.Column(y)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(yTrue, mat.Col(nil, 0, pred))
}

// Coefficients implements model.LinearModel.
func (en *ElasticNet) Coefficients() []float64 {
	return append([]float64(nil), en.Weights...)
}

// Intercept implements model.LinearModel.
func (en *ElasticNet) Intercept() float64 {
	return en.Bias
}

// Summary implements model.Regressor.
func (en *ElasticNet) Summary() *model.ModelSummary {
	return &model.ModelSummary{
		ModelType:    en.Name(),
		Coefficients: en.Coefficients(),
		Intercept:    en.Bias,
		Hyperparameters: map[string]interface{}{
			"reg_param":         en.RegParam,
			"elastic_net_param": en.ElasticNetParam,
			"max_iter":          en.MaxIter,
			"tol":               en.Tol,
			"fit_intercept":     en.FitIntercept,
			"standardization":   en.Standardization,
		},
		Metadata: map[string]interface{}{
			"iterations": en.NIter,
			"converged":  en.Converged,
			"solver":     en.UsedSolver,
		},
		IsFitted: en.State.IsFitted(),
	}
}
