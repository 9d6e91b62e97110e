// Package feature holds the column transformers applied before training:
// string indexing, binarizing, bucketizing and formula-driven design
// matrices.
//
// Transformers take a frame.Table and return a new table with the output
// column added, so a pipeline can chain them.
package feature

import (
	"sort"

	"github.com/YuminosukeSato/taxitip/frame"
	"github.com/YuminosukeSato/taxitip/pkg/errors"
	"github.com/YuminosukeSato/taxitip/pkg/log"
)

// Invalid value handling.
const (
	HandleError = "error"
	HandleSkip  = "skip"
	HandleKeep  = "keep"
)

func checkHandleInvalid(v string) (string, error) {
	switch v {
	case "":
		return HandleError, nil
	case HandleError, HandleSkip, HandleKeep:
		return v, nil
	}
	return "", errors.NewValidationError("handle_invalid", "must be error, skip or keep", v)
}

// StringIndexer maps the labels of a string column to indices by descending
// frequency. Index 0 is the most frequent label. Ties are broken by label
// in ascending order.
type StringIndexer struct {
	InputCol      string
	OutputCol     string
	HandleInvalid string
}

// StringIndexerModel is a fitted StringIndexer.
type StringIndexerModel struct {
	InputCol      string
	OutputCol     string
	HandleInvalid string
	Labels        []string
	index         map[string]int
}

// Fit learns the label order from t.
func (si *StringIndexer) Fit(t *frame.Table) (*StringIndexerModel, error) {
	handle, err := checkHandleInvalid(si.HandleInvalid)
	if err != nil {
		return nil, err
	}
	values, err := t.Strings(si.InputCol)
	if err != nil {
		return nil, err
	}
	if !t.IsString(si.InputCol) {
		// spark can deliver payment codes as integers
		errors.Warn(errors.NewDataConversionWarning(si.InputCol, string(t.Types()[si.InputCol]), "string"))
	}
	if len(values) == 0 {
		return nil, errors.NewModelError("StringIndexer.Fit", "column "+si.InputCol+" is empty", errors.ErrEmptyData)
	}

	m := NewStringIndexerModel(si.InputCol, si.OutputCol, handle, frequencyOrder(values))
	log.GetLoggerWithName("feature").Debug("String indexer fitted",
		log.ColumnKey, si.InputCol,
		"labels", len(m.Labels),
	)
	return m, nil
}

// NewStringIndexerModel builds a model from a known label order.
func NewStringIndexerModel(inputCol, outputCol, handleInvalid string, labels []string) *StringIndexerModel {
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}
	return &StringIndexerModel{
		InputCol:      inputCol,
		OutputCol:     outputCol,
		HandleInvalid: handleInvalid,
		Labels:        labels,
		index:         index,
	}
}

// Index returns the index of label and whether it was seen during Fit.
func (m *StringIndexerModel) Index(label string) (int, bool) {
	i, ok := m.index[label]
	return i, ok
}

// Transform writes the label indices to OutputCol as floats. An unseen label
// fails with "error", drops the row with "skip" and maps to len(Labels) with
// "keep".
func (m *StringIndexerModel) Transform(t *frame.Table) (*frame.Table, error) {
	values, err := t.Strings(m.InputCol)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	var keepRows []int
	for i, v := range values {
		idx, ok := m.index[v]
		if !ok {
			switch m.HandleInvalid {
			case HandleKeep:
				idx = len(m.Labels)
			case HandleSkip:
				continue
			default:
				return nil, errors.NewValueError("StringIndexer.Transform",
					"unseen label "+v+" in column "+m.InputCol)
			}
		}
		out[i] = float64(idx)
		keepRows = append(keepRows, i)
	}

	res, err := t.WithFloatColumn(m.OutputCol, out)
	if err != nil {
		return nil, err
	}
	if len(keepRows) < len(values) {
		res = res.Rows(keepRows)
	}
	return res, nil
}

// frequencyOrder returns the distinct values by descending count, then
// ascending value.
func frequencyOrder(values []string) []string {
	counts := make(map[string]int)
	for _, v := range values {
		counts[v]++
	}
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	return labels
}
