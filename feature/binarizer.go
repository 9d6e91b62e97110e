package feature

import (
	"github.com/YuminosukeSato/taxitip/frame"
)

// Binarizer maps a numeric column to 1 where the value is above Threshold
// and 0 elsewhere, NaN included.
type Binarizer struct {
	InputCol  string
	OutputCol string
	Threshold float64
}

// Transform writes the binarized column.
func (b *Binarizer) Transform(t *frame.Table) (*frame.Table, error) {
	values, err := t.Float(b.InputCol)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	for i, v := range values {
		if v > b.Threshold {
			out[i] = 1
		}
	}
	return t.WithFloatColumn(b.OutputCol, out)
}
