package model

import (
	"encoding/json"
	"fmt"
)

// ModelSummary は学習済みモデルの要約（レポート出力用）
type ModelSummary struct {
	// ModelType はモデルの種類（ElasticNet, RandomForestRegressor等）
	ModelType string `json:"model_type"`

	// Features は特徴量の名前
	Features []string `json:"features,omitempty"`

	// Coefficients は線形モデルの係数。Features と同じ順序
	Coefficients []float64 `json:"coefficients,omitempty"`

	// Intercept は線形モデルの切片
	Intercept float64 `json:"intercept,omitempty"`

	// Importances は木モデルの特徴量重要度。Features と同じ順序
	Importances []float64 `json:"importances,omitempty"`

	// Hyperparameters はモデルのハイパーパラメータ
	Hyperparameters map[string]interface{} `json:"hyperparameters"`

	// Metadata は学習時の統計等（木の数、反復回数など）
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// IsFitted はモデルが学習済みかどうか
	IsFitted bool `json:"is_fitted"`
}

// ToJSON はModelSummaryをJSON形式にシリアライズ
func (ms *ModelSummary) ToJSON() ([]byte, error) {
	return json.MarshalIndent(ms, "", "  ")
}

// FromJSON はJSON形式からModelSummaryをデシリアライズ
func (ms *ModelSummary) FromJSON(data []byte) error {
	return json.Unmarshal(data, ms)
}

// Validate はModelSummaryの妥当性を検証
func (ms *ModelSummary) Validate() error {
	if ms.ModelType == "" {
		return fmt.Errorf("model_type is required")
	}

	if !ms.IsFitted && (len(ms.Coefficients) > 0 || len(ms.Importances) > 0) {
		return fmt.Errorf("unfitted model should not have learned parameters")
	}

	if len(ms.Features) > 0 {
		if len(ms.Coefficients) > 0 && len(ms.Coefficients) != len(ms.Features) {
			return fmt.Errorf("coefficients length %d does not match %d features", len(ms.Coefficients), len(ms.Features))
		}
		if len(ms.Importances) > 0 && len(ms.Importances) != len(ms.Features) {
			return fmt.Errorf("importances length %d does not match %d features", len(ms.Importances), len(ms.Features))
		}
	}

	return nil
}

// Clone はModelSummaryのディープコピーを作成
func (ms *ModelSummary) Clone() *ModelSummary {
	clone := &ModelSummary{
		ModelType:       ms.ModelType,
		Intercept:       ms.Intercept,
		IsFitted:        ms.IsFitted,
		Features:        append([]string(nil), ms.Features...),
		Coefficients:    append([]float64(nil), ms.Coefficients...),
		Importances:     append([]float64(nil), ms.Importances...),
		Hyperparameters: make(map[string]interface{}, len(ms.Hyperparameters)),
		Metadata:        make(map[string]interface{}, len(ms.Metadata)),
	}

	for k, v := range ms.Hyperparameters {
		clone.Hyperparameters[k] = v
	}

	for k, v := range ms.Metadata {
		clone.Metadata[k] = v
	}

	return clone
}

// WithFeatures は特徴量名を設定した自身を返す
func (ms *ModelSummary) WithFeatures(names []string) *ModelSummary {
	ms.Features = append([]string(nil), names...)
	return ms
}
