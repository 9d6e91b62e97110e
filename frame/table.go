// Package frame holds the in-memory tables the pipeline works on.
//
// A Table is a named gota DataFrame. Operations never modify a table in
// place; they return a new one, the way a Spark DataFrame behaves.
package frame

import (
	"math"
	"math/rand/v2"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxitip/pkg/errors"
)

// Table is a named columnar table.
type Table struct {
	Name string
	df   dataframe.DataFrame
}

// New wraps df. A DataFrame carrying an error is rejected.
func New(name string, df dataframe.DataFrame) (*Table, error) {
	if df.Err != nil {
		return nil, errors.Wrapf(df.Err, "table %s", name)
	}
	return &Table{Name: name, df: df}, nil
}

// FromColumns builds a table from series of equal length.
func FromColumns(name string, cols ...series.Series) (*Table, error) {
	for _, c := range cols {
		if c.Err != nil {
			return nil, errors.Wrapf(c.Err, "table %s column %s", name, c.Name)
		}
		if c.Len() != cols[0].Len() {
			return nil, errors.NewDimensionError("frame.FromColumns "+c.Name, cols[0].Len(), c.Len(), 0)
		}
	}
	return New(name, dataframe.New(cols...))
}

// DataFrame returns the underlying gota DataFrame.
func (t *Table) DataFrame() dataframe.DataFrame { return t.df }

// Nrow returns the number of rows.
func (t *Table) Nrow() int { return t.df.Nrow() }

// Names returns the column names in order.
func (t *Table) Names() []string { return t.df.Names() }

// Has reports whether the table has column col.
func (t *Table) Has(col string) bool {
	for _, n := range t.df.Names() {
		if n == col {
			return true
		}
	}
	return false
}

// Types returns the column name to gota type mapping.
func (t *Table) Types() map[string]series.Type {
	out := make(map[string]series.Type)
	types := t.df.Types()
	for i, n := range t.df.Names() {
		out[n] = types[i]
	}
	return out
}

// IsString reports whether col holds strings.
func (t *Table) IsString(col string) bool {
	return t.Has(col) && t.df.Col(col).Type() == series.String
}

func (t *Table) column(col string) (series.Series, error) {
	if !t.Has(col) {
		return series.Series{}, errors.NewColumnError(t.Name, col)
	}
	return t.df.Col(col), nil
}

// Float returns a numeric column. Missing values are NaN.
func (t *Table) Float(col string) ([]float64, error) {
	s, err := t.column(col)
	if err != nil {
		return nil, err
	}
	if s.Type() == series.String {
		return nil, errors.NewValueError("frame.Float", "column "+col+" of table "+t.Name+" is not numeric")
	}
	return s.Float(), nil
}

// Strings returns a column formatted as strings. Numeric columns are
// formatted the way gota prints them.
func (t *Table) Strings(col string) ([]string, error) {
	s, err := t.column(col)
	if err != nil {
		return nil, err
	}
	return s.Records(), nil
}

// WithFloatColumn returns a copy of t with col set to values, replacing an
// existing column of the same name.
func (t *Table) WithFloatColumn(col string, values []float64) (*Table, error) {
	return t.withColumn(series.New(values, series.Float, col))
}

// WithStringColumn is WithFloatColumn for strings.
func (t *Table) WithStringColumn(col string, values []string) (*Table, error) {
	return t.withColumn(series.New(values, series.String, col))
}

func (t *Table) withColumn(s series.Series) (*Table, error) {
	if s.Len() != t.Nrow() {
		return nil, errors.NewDimensionError("frame.WithColumn "+s.Name, t.Nrow(), s.Len(), 0)
	}
	return New(t.Name, t.df.Mutate(s))
}

// Select returns the named columns in the given order.
func (t *Table) Select(cols ...string) (*Table, error) {
	for _, c := range cols {
		if !t.Has(c) {
			return nil, errors.NewColumnError(t.Name, c)
		}
	}
	return New(t.Name, t.df.Select(cols))
}

// Rows returns the table restricted to the given row indices.
func (t *Table) Rows(idx []int) *Table {
	if len(idx) == 0 {
		return t.empty()
	}
	return &Table{Name: t.Name, df: t.df.Subset(idx)}
}

// empty returns a zero-row table with the same columns and types.
func (t *Table) empty() *Table {
	types := t.df.Types()
	cols := make([]series.Series, len(types))
	for i, n := range t.df.Names() {
		cols[i] = series.New([]string{}, types[i], n)
	}
	return &Table{Name: t.Name, df: dataframe.New(cols...)}
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	n = min(max(n, 0), t.Nrow())
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return t.Rows(idx)
}

// Concat appends the rows of others to t. Columns must match by name.
func (t *Table) Concat(others ...*Table) (*Table, error) {
	df := t.df
	for _, o := range others {
		df = df.RBind(o.df)
		if df.Err != nil {
			return nil, errors.Wrapf(df.Err, "concat %s and %s", t.Name, o.Name)
		}
	}
	return New(t.Name, df)
}

// RandomSplit partitions the rows by weight. Weights must be positive and are
// normalised to sum 1. Each row draws one uniform number from a generator
// seeded with seed, so the same seed and input give the same partitions.
func (t *Table) RandomSplit(weights []float64, seed uint64) ([]*Table, error) {
	if len(weights) < 2 {
		return nil, errors.NewValidationError("weights", "need at least two partitions", weights)
	}
	total := 0.0
	for _, w := range weights {
		if !(w > 0) || math.IsInf(w, 0) {
			return nil, errors.NewValidationError("weights", "must be positive and finite", weights)
		}
		total += w
	}
	bounds := make([]float64, len(weights))
	acc := 0.0
	for i, w := range weights {
		acc += w / total
		bounds[i] = acc
	}
	bounds[len(bounds)-1] = 1

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	parts := make([][]int, len(weights))
	for i := 0; i < t.Nrow(); i++ {
		u := rng.Float64()
		p := 0
		for u >= bounds[p] {
			p++
		}
		parts[p] = append(parts[p], i)
	}

	out := make([]*Table, len(parts))
	for i, idx := range parts {
		out[i] = t.Rows(idx)
	}
	return out, nil
}

// Sample keeps each row with probability fraction and returns at most maxRows
// of the kept rows in their original order. maxRows <= 0 means no cap.
func (t *Table) Sample(fraction float64, seed uint64, maxRows int) (*Table, error) {
	if !(fraction > 0 && fraction <= 1) {
		return nil, errors.NewValidationError("sample_fraction", "must be in (0, 1]", fraction)
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	var idx []int
	for i := 0; i < t.Nrow(); i++ {
		if fraction == 1 || rng.Float64() < fraction {
			idx = append(idx, i)
			if maxRows > 0 && len(idx) == maxRows {
				break
			}
		}
	}
	return t.Rows(idx), nil
}

// Matrix returns the named numeric columns as an n×len(cols) matrix.
func (t *Table) Matrix(cols ...string) (*mat.Dense, error) {
	if t.Nrow() == 0 {
		return nil, errors.NewModelError("frame.Matrix", "table "+t.Name+" has no rows", errors.ErrEmptyData)
	}
	if len(cols) == 0 {
		return nil, errors.NewValueError("frame.Matrix", "no columns requested")
	}
	m := mat.NewDense(t.Nrow(), len(cols), nil)
	for j, c := range cols {
		v, err := t.Float(c)
		if err != nil {
			return nil, err
		}
		m.SetCol(j, v)
	}
	return m, nil
}

// Vector returns a numeric column as an n×1 matrix.
func (t *Table) Vector(col string) (*mat.Dense, error) {
	return t.Matrix(col)
}

// DropNaN removes the rows where any of the named numeric columns is NaN.
func (t *Table) DropNaN(cols ...string) (*Table, error) {
	keep := make([]bool, t.Nrow())
	for i := range keep {
		keep[i] = true
	}
	for _, c := range cols {
		v, err := t.Float(c)
		if err != nil {
			return nil, err
		}
		for i, x := range v {
			if math.IsNaN(x) {
				keep[i] = false
			}
		}
	}
	idx := make([]int, 0, len(keep))
	for i, k := range keep {
		if k {
			idx = append(idx, i)
		}
	}
	if len(idx) == t.Nrow() {
		return t, nil
	}
	return t.Rows(idx), nil
}
