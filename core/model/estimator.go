package model

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の列ベクトル
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を n×1 の列ベクトルで返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Regressor はパイプラインが扱う回帰モデル
type Regressor interface {
	Fitter
	Predictor
	// Name はログとレポートに使うモデル名を返す
	Name() string
	// Summary は学習済みパラメータの要約を返す
	Summary() *ModelSummary
}

// ContextFitter はキャンセル可能な学習をサポートするモデル
type ContextFitter interface {
	FitContext(ctx context.Context, X, y mat.Matrix) error
}

// FeatureImportancer は特徴量重要度を公開するモデル
type FeatureImportancer interface {
	// FeatureImportances は合計 1 に正規化された重要度を列順に返す
	FeatureImportances() ([]float64, error)
}

// LinearModel は線形モデルのインターフェース
type LinearModel interface {
	// Coefficients は学習された係数を返す
	Coefficients() []float64
	// Intercept は学習された切片を返す
	Intercept() float64
}

// FitWithContext は ContextFitter を実装するモデルなら ctx を渡し、
// それ以外は開始前にだけ ctx を確認して Fit を呼ぶ
func FitWithContext(ctx context.Context, f Fitter, X, y mat.Matrix) error {
	if cf, ok := f.(ContextFitter); ok {
		return cf.FitContext(ctx, X, y)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.Fit(X, y)
}
