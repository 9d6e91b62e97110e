// Package linear provides the linear regressors used for tip prediction:
// ordinary least squares and elastic net regularized least squares.
package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxitip/core/model"
	"github.com/YuminosukeSato/taxitip/core/parallel"
	"github.com/YuminosukeSato/taxitip/pkg/errors"
)

// LinearRegression は正規方程式で解く線形回帰モデル
type LinearRegression struct {
	State   *model.StateManager
	Weights []float64 // 重み（係数）
	Bias    float64   // 切片
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{State: model.NewStateManager()}
}

// Name implements model.Regressor.
func (lr *LinearRegression) Name() string { return "LinearRegression" }

// Fit はモデルを訓練データで学習させる
// 正規方程式 w = (X^T * X)^(-1) * X^T * y を使用
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	r, c, err := checkXY("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}

	// X_with_intercept = [1, X]
	XWithIntercept := mat.NewDense(r, c+1, nil)

	// この値以下の行数では逐次処理を使用
	const parallelThreshold = 1000

	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			XWithIntercept.Set(i, 0, 1.0)
			for j := 0; j < c; j++ {
				XWithIntercept.Set(i, j+1, X.At(i, j))
			}
		}
	})

	var XTX mat.Dense
	XTX.Mul(XWithIntercept.T(), XWithIntercept)

	var XTXInv mat.Dense
	if err := XTXInv.Inverse(&XTX); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "singular matrix", errors.ErrSingularMatrix)
	}

	yVec := mat.NewVecDense(r, mat.Col(nil, 0, y))

	var XTy mat.VecDense
	XTy.MulVec(XWithIntercept.T(), yVec)

	weights := mat.NewVecDense(c+1, nil)
	weights.MulVec(&XTXInv, &XTy)

	lr.Bias = weights.AtVec(0)
	lr.Weights = make([]float64, c)
	for j := 0; j < c; j++ {
		lr.Weights[j] = weights.AtVec(j + 1)
	}
	if err := errors.CheckNumericalStability("normal_equations", lr.Weights, 0); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "ill-conditioned design", err)
	}

	lr.State.SetFitted(c, r)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.State.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	return predictLinear("LinearRegression.Predict", lr.State, X, lr.Weights, lr.Bias)
}

// Coefficients implements model.LinearModel.
func (lr *LinearRegression) Coefficients() []float64 {
	return append([]float64(nil), lr.Weights...)
}

// Intercept implements model.LinearModel.
func (lr *LinearRegression) Intercept() float64 {
	if !lr.State.IsFitted() {
		return 0
	}
	return lr.Bias
}

// Summary implements model.Regressor.
func (lr *LinearRegression) Summary() *model.ModelSummary {
	return &model.ModelSummary{
		ModelType:       lr.Name(),
		Coefficients:    lr.Coefficients(),
		Intercept:       lr.Intercept(),
		Hyperparameters: map[string]interface{}{},
		IsFitted:        lr.State.IsFitted(),
	}
}

// checkXY validates the training matrices and returns their shape.
func checkXY(op string, X, y mat.Matrix) (rows, cols int, err error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}

	ry, cy := y.Dims()
	if ry != r {
		return 0, 0, errors.NewDimensionError(op, r, ry, 0)
	}
	if cy != 1 {
		return 0, 0, errors.NewValueError(op, "y must be a column vector")
	}
	return r, c, nil
}

// predictLinear computes X * weights + bias as an n×1 matrix.
func predictLinear(op string, state *model.StateManager, X mat.Matrix, weights []float64, bias float64) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := state.CheckFeatures(op, c); err != nil {
		return nil, err
	}

	var pred mat.VecDense
	pred.MulVec(X, mat.NewVecDense(c, weights))

	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, pred.AtVec(i)+bias)
	}
	return out, nil
}
