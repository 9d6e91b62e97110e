package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/taxitip/core/model"
	"github.com/YuminosukeSato/taxitip/pkg/errors"
)

// ReportFile is the name of the report written into the output directory.
const ReportFile = "report.json"

// ModelReport is the outcome of one model block.
type ModelReport struct {
	Stage           string                 `json:"stage"`
	Name            string                 `json:"name"`
	Hyperparameters map[string]interface{} `json:"hyperparameters"`

	// R2 is the squared Pearson correlation of actual and predicted tips on
	// the local sample. It is nil when either side of the sample is constant.
	R2 *float64 `json:"r2"`
	// TestR2 is 1 - RSS/TSS over the whole test partition.
	TestR2 float64 `json:"test_r2"`
	RMSE   float64 `json:"rmse"`
	MAE    float64 `json:"mae"`

	SampleSize int `json:"sample_size"`
	TestRows   int `json:"test_rows"`

	Features     []string  `json:"features"`
	Importances  []float64 `json:"importances,omitempty"`
	Coefficients []float64 `json:"coefficients,omitempty"`
	Intercept    *float64  `json:"intercept,omitempty"`

	Plots      []string            `json:"plots,omitempty"`
	ModelPath  string              `json:"model_path,omitempty"`
	Summary    *model.ModelSummary `json:"summary,omitempty"`
	DurationMs int64               `json:"duration_ms"`
	Error      string              `json:"error,omitempty"`
}

// Report is the outcome of a run.
type Report struct {
	StartedAt    time.Time     `json:"started_at"`
	Mode         string        `json:"mode"`
	Dataset      string        `json:"dataset"`
	Table        string        `json:"table"`
	Rows         int           `json:"rows"`
	TrainingRows int           `json:"training_rows"`
	TestRows     int           `json:"test_rows"`
	Formula      string        `json:"formula"`
	Features     []string      `json:"features"`
	Seed         uint64        `json:"seed"`
	Models       []ModelReport `json:"models"`
	DurationMs   int64         `json:"duration_ms"`
}

// Model returns the report of the model block run in stage.
func (r *Report) Model(stage string) (*ModelReport, bool) {
	for i := range r.Models {
		if r.Models[i].Stage == stage {
			return &r.Models[i], true
		}
	}
	return nil, false
}

// Write stores the report as indented JSON under dir.
func (r *Report) Write(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create output directory %s", dir)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encode report")
	}
	path := filepath.Join(dir, ReportFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	return path, nil
}

// ReadReport loads a report written by Write.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return &r, nil
}
