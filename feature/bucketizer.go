package feature

import (
	"math"
	"sort"
	"strconv"

	"github.com/YuminosukeSato/taxitip/frame"
	"github.com/YuminosukeSato/taxitip/pkg/errors"
)

// Bucketizer maps a numeric column to bucket indices. Bucket i covers
// [Splits[i], Splits[i+1]) and the last bucket also includes its upper
// bound. Splits may start at -Inf and end at +Inf.
type Bucketizer struct {
	InputCol      string
	OutputCol     string
	Splits        []float64
	HandleInvalid string
}

// ValidateSplits checks that splits has at least three strictly increasing values.
func ValidateSplits(splits []float64) error {
	if len(splits) < 3 {
		return errors.NewValidationError("splits", "need at least three values", splits)
	}
	for i, s := range splits {
		if math.IsNaN(s) {
			return errors.NewValidationError("splits", "must not contain NaN", splits)
		}
		if i > 0 && !(s > splits[i-1]) {
			return errors.NewValidationError("splits", "must be strictly increasing", splits)
		}
	}
	return nil
}

// NumBuckets returns the number of regular buckets.
func (b *Bucketizer) NumBuckets() int { return len(b.Splits) - 1 }

// Bucket returns the bucket of v, or false when v is NaN or outside the splits.
func (b *Bucketizer) Bucket(v float64) (int, bool) {
	if math.IsNaN(v) {
		return 0, false
	}
	last := len(b.Splits) - 1
	if v < b.Splits[0] || v > b.Splits[last] {
		return 0, false
	}
	if v == b.Splits[last] {
		return last - 1, true
	}
	idx := sort.SearchFloat64s(b.Splits, v)
	if b.Splits[idx] == v {
		return idx, true
	}
	return idx - 1, true
}

// Transform writes the bucket index column. Invalid values fail with
// "error", drop the row with "skip" and go to an extra bucket NumBuckets()
// with "keep".
func (b *Bucketizer) Transform(t *frame.Table) (*frame.Table, error) {
	if err := ValidateSplits(b.Splits); err != nil {
		return nil, err
	}
	handle, err := checkHandleInvalid(b.HandleInvalid)
	if err != nil {
		return nil, err
	}
	values, err := t.Float(b.InputCol)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(values))
	keepRows := make([]int, 0, len(values))
	for i, v := range values {
		bucket, ok := b.Bucket(v)
		if !ok {
			switch handle {
			case HandleKeep:
				bucket = b.NumBuckets()
			case HandleSkip:
				continue
			default:
				return nil, errors.NewValueError("Bucketizer.Transform",
					"value "+strconv.FormatFloat(v, 'g', -1, 64)+" of column "+b.InputCol+" is outside the splits")
			}
		}
		out[i] = float64(bucket)
		keepRows = append(keepRows, i)
	}

	res, err := t.WithFloatColumn(b.OutputCol, out)
	if err != nil {
		return nil, err
	}
	if len(keepRows) < len(values) {
		res = res.Rows(keepRows)
	}
	return res, nil
}
