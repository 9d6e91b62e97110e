package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxitip/pkg/errors"
)

func TestMSE(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "perfect prediction",
			yTrue: []float64{1.0, 2.0, 3.0, 4.0, 5.0},
			yPred: []float64{1.0, 2.0, 3.0, 4.0, 5.0},
			want:  0.0,
		},
		{
			name:  "simple case",
			yTrue: []float64{1.0, 2.0, 3.0, 4.0},
			yPred: []float64{1.5, 2.5, 2.5, 3.5},
			want:  0.25, // (0.25 * 4) / 4
		},
		{
			name:  "larger errors",
			yTrue: []float64{10.0, 20.0, 30.0},
			yPred: []float64{12.0, 18.0, 33.0},
			want:  17.0 / 3.0, // (4 + 4 + 9) / 3
		},
		{
			name:    "dimension mismatch",
			yTrue:   []float64{1.0, 2.0, 3.0},
			yPred:   []float64{1.0, 2.0},
			wantErr: true,
		},
		{
			name:    "empty vectors",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MSE(tt.yTrue, tt.yPred)

			if (err != nil) != tt.wantErr {
				t.Errorf("MSE() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-10 {
				t.Errorf("MSE() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRMSEAndMAE(t *testing.T) {
	yTrue := []float64{10.0, 20.0, 30.0}
	yPred := []float64{12.0, 18.0, 33.0}

	rmse, err := RMSE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(17.0/3.0), rmse, 1e-10)

	mae, err := MAE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 7.0/3.0, mae, 1e-10)

	_, err = MAE(yTrue, yPred[:1])
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}

func TestR2Score(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "perfect prediction",
			yTrue: []float64{1.0, 2.0, 3.0, 4.0, 5.0},
			yPred: []float64{1.0, 2.0, 3.0, 4.0, 5.0},
			want:  1.0,
		},
		{
			name:    "no variance in yTrue",
			yTrue:   []float64{3.0, 3.0, 3.0, 3.0, 3.0},
			yPred:   []float64{2.0, 3.0, 4.0, 3.0, 3.0},
			wantErr: true,
		},
		{
			name:  "worse than mean baseline",
			yTrue: []float64{1.0, 2.0, 3.0, 4.0},
			yPred: []float64{4.0, 3.0, 2.0, 1.0},
			want:  -3.0,
		},
		{
			name:    "dimension mismatch",
			yTrue:   []float64{1.0, 2.0, 3.0},
			yPred:   []float64{1.0, 2.0},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := R2Score(tt.yTrue, tt.yPred)

			if (err != nil) != tt.wantErr {
				t.Errorf("R2Score() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-10 {
				t.Errorf("R2Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPearsonR2(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "perfect linear relation",
			yTrue: []float64{1, 2, 3, 4},
			yPred: []float64{3, 5, 7, 9},
			want:  1,
		},
		{
			// squared correlation ignores the sign
			name:  "perfect inverse relation",
			yTrue: []float64{1, 2, 3, 4},
			yPred: []float64{4, 3, 2, 1},
			want:  1,
		},
		{
			name:  "partial correlation",
			yTrue: []float64{1, 2, 3},
			yPred: []float64{1, 3, 2},
			want:  0.25,
		},
		{
			name:    "constant predictions",
			yTrue:   []float64{1, 2, 3},
			yPred:   []float64{2, 2, 2},
			wantErr: true,
		},
		{
			name:    "single observation",
			yTrue:   []float64{1},
			yPred:   []float64{1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PearsonR2(tt.yTrue, tt.yPred)
			if tt.wantErr {
				var ve *errors.ValueError
				assert.True(t, errors.As(err, &ve), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-10)
		})
	}
}

func TestEvaluate(t *testing.T) {
	yTrue := []float64{1.0, 2.0, 3.0, 4.0}
	yPred := []float64{1.5, 2.5, 2.5, 3.5}

	got, err := Evaluate(yTrue, yPred)
	require.NoError(t, err)
	assert.Equal(t, 4, got.N)
	assert.InDelta(t, 0.5, got.RMSE, 1e-10)
	assert.InDelta(t, 0.5, got.MAE, 1e-10)
	assert.InDelta(t, 0.8, got.R2, 1e-10)
	assert.InDelta(t, 0.9, got.PearsonR2, 1e-10)

	_, err = Evaluate(nil, nil)
	assert.Error(t, err)
}

func TestColumn(t *testing.T) {
	col, err := Column(mat.NewDense(3, 1, []float64{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, col)

	_, err = Column(mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
	assert.Error(t, err)
}

func BenchmarkMSE(b *testing.B) {
	size := 10000
	yTrue := make([]float64, size)
	yPred := make([]float64, size)
	for i := 0; i < size; i++ {
		yTrue[i] = float64(i)
		yPred[i] = float64(i) + 0.1*float64(i%10)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = MSE(yTrue, yPred)
	}
}
