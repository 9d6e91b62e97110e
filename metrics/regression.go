// Package metrics provides the regression metrics reported for each fitted
// tip model.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/taxitip/pkg/errors"
)

func checkPair(op string, yTrue, yPred []float64) error {
	n := len(yTrue)
	if n == 0 {
		return errors.NewValueError(op, "empty vector")
	}
	if len(yPred) != n {
		return errors.NewDimensionError(op, n, len(yPred), 0)
	}
	return nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("MSE", yTrue, yPred); err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := range yTrue {
		diff := yTrue[i] - yPred[i]
		sum += diff * diff
	}
	return sum / float64(len(yTrue)), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred []float64) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("MAE", yTrue, yPred); err != nil {
		return 0, err
	}

	// MAE = (1/n) * Σ|yTrue - yPred|
	return floats.Distance(yTrue, yPred, 1) / float64(len(yTrue)), nil
}

// R2Score は決定係数 1 - RSS/TSS を計算する
func R2Score(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("R2Score", yTrue, yPred); err != nil {
		return 0, err
	}

	yMean := stat.Mean(yTrue, nil)
	var tss, rss float64
	for i := range yTrue {
		tss += (yTrue[i] - yMean) * (yTrue[i] - yMean)
		rss += (yTrue[i] - yPred[i]) * (yTrue[i] - yPred[i])
	}

	// すべてのyTrueが同じ値
	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}

// PearsonR2 はピアソン相関係数の二乗を計算する。
// 予測値と実測値の散布図に対して報告する R² はこちら
func PearsonR2(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("PearsonR2", yTrue, yPred); err != nil {
		return 0, err
	}
	if len(yTrue) < 2 {
		return 0, errors.NewValueError("PearsonR2", "at least two observations are required")
	}
	if floats.Max(yTrue) == floats.Min(yTrue) {
		return 0, errors.NewValueError("PearsonR2", "no variance in yTrue")
	}
	if floats.Max(yPred) == floats.Min(yPred) {
		return 0, errors.NewValueError("PearsonR2", "no variance in yPred")
	}

	r := stat.Correlation(yTrue, yPred, nil)
	if err := errors.CheckScalar("PearsonR2", r, 0); err != nil {
		return 0, err
	}
	return r * r, nil
}

// Column は n×1 行列を []float64 に変換する
func Column(m mat.Matrix) ([]float64, error) {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError("Column", "empty matrix")
	}
	if c != 1 {
		return nil, errors.NewValueError("Column", "must be a column vector (n×1 matrix)")
	}
	return mat.Col(nil, 0, m), nil
}

// Regression は一組の予測に対する指標のまとめ
type Regression struct {
	R2        float64 `json:"r2"`
	PearsonR2 float64 `json:"pearson_r2"`
	RMSE      float64 `json:"rmse"`
	MAE       float64 `json:"mae"`
	N         int     `json:"n"`
}

// Evaluate は R2Score, PearsonR2, RMSE, MAE をまとめて計算する
func Evaluate(yTrue, yPred []float64) (Regression, error) {
	var out Regression
	var err error

	if out.RMSE, err = RMSE(yTrue, yPred); err != nil {
		return Regression{}, err
	}
	if out.MAE, err = MAE(yTrue, yPred); err != nil {
		return Regression{}, err
	}
	if out.R2, err = R2Score(yTrue, yPred); err != nil {
		return Regression{}, err
	}
	if out.PearsonR2, err = PearsonR2(yTrue, yPred); err != nil {
		return Regression{}, err
	}
	out.N = len(yTrue)
	return out, nil
}
