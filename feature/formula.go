package feature

import (
	"strings"
	"unicode"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxitip/frame"
	"github.com/YuminosukeSato/taxitip/pkg/errors"
	"github.com/YuminosukeSato/taxitip/pkg/log"
)

// Formula is an R-style model formula such as "tip_amount ~ a + b" or
// "tip_amount ~ . - c".
type Formula struct {
	Response string
	Terms    []string // in order, "." for all remaining columns
	Removed  []string
	// HandleInvalid applies to categorical levels unseen during Fit:
	// "error" fails, "keep" encodes them as all zeros.
	HandleInvalid string
}

// ParseFormula parses s. Terms are column names joined by '+', and '-'
// removes a column, which is mostly useful after '.'.
func ParseFormula(s string) (*Formula, error) {
	lhs, rhs, ok := strings.Cut(s, "~")
	if !ok {
		return nil, errors.NewValueError("ParseFormula", "missing '~' in "+s)
	}
	f := &Formula{Response: strings.TrimSpace(lhs)}
	if !isIdent(f.Response) {
		return nil, errors.NewValueError("ParseFormula", "invalid response in "+s)
	}

	op := '+'
	for _, tok := range tokenize(rhs) {
		switch tok {
		case "+", "-":
			op = rune(tok[0])
			continue
		}
		if tok != "." && !isIdent(tok) {
			return nil, errors.NewValueError("ParseFormula", "invalid term "+tok+" in "+s)
		}
		if op == '-' {
			f.Removed = append(f.Removed, tok)
		} else {
			f.Terms = append(f.Terms, tok)
		}
		op = '+'
	}
	if len(f.Terms) == 0 {
		return nil, errors.NewValueError("ParseFormula", "no terms in "+s)
	}
	return f, nil
}

// String formats the formula back into its textual form.
func (f *Formula) String() string {
	var b strings.Builder
	b.WriteString(f.Response)
	b.WriteString(" ~ ")
	b.WriteString(strings.Join(f.Terms, " + "))
	for _, r := range f.Removed {
		b.WriteString(" - ")
		b.WriteString(r)
	}
	return b.String()
}

func tokenize(s string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			flush()
		case r == '+' || r == '-':
			flush()
			toks = append(toks, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

// Columns resolves the formula terms against the columns of t.
func (f *Formula) Columns(t *frame.Table) ([]string, error) {
	removed := make(map[string]bool, len(f.Removed))
	for _, r := range f.Removed {
		removed[r] = true
	}
	seen := map[string]bool{f.Response: true}

	var cols []string
	add := func(c string) {
		if !seen[c] && !removed[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	for _, term := range f.Terms {
		if term == "." {
			for _, c := range t.Names() {
				add(c)
			}
			continue
		}
		if !t.Has(term) {
			return nil, errors.NewColumnError(t.Name, term)
		}
		add(term)
	}
	if len(cols) == 0 {
		return nil, errors.NewValueError("Formula.Columns", "formula "+f.String()+" selects no columns")
	}
	return cols, nil
}

type termEncoder struct {
	Column string
	Levels []string // nil for numeric terms
}

// FormulaModel is a formula fitted to a table: string terms carry their
// level order so the same encoding applies to other tables.
type FormulaModel struct {
	Formula  *Formula
	Features []string
	terms    []termEncoder
}

// Fit resolves the terms and learns the levels of string columns.
// Levels are ordered by descending frequency and the last one is dropped
// from the one-hot encoding.
func (f *Formula) Fit(t *frame.Table) (*FormulaModel, error) {
	if _, err := checkHandleInvalid(f.HandleInvalid); err != nil {
		return nil, err
	}
	if f.HandleInvalid == HandleSkip {
		return nil, errors.NewValidationError("handle_invalid", "formula supports error or keep", f.HandleInvalid)
	}
	if !t.Has(f.Response) {
		return nil, errors.NewColumnError(t.Name, f.Response)
	}
	cols, err := f.Columns(t)
	if err != nil {
		return nil, err
	}

	m := &FormulaModel{Formula: f}
	for _, c := range cols {
		if !t.IsString(c) {
			m.terms = append(m.terms, termEncoder{Column: c})
			m.Features = append(m.Features, c)
			continue
		}
		values, err := t.Strings(c)
		if err != nil {
			return nil, err
		}
		levels := frequencyOrder(values)
		m.terms = append(m.terms, termEncoder{Column: c, Levels: levels})
		for _, l := range levels[:len(levels)-1] {
			m.Features = append(m.Features, c+"_"+l)
		}
	}
	if len(m.Features) == 0 {
		return nil, errors.NewValueError("Formula.Fit", "formula "+f.String()+" encodes to no features")
	}

	log.GetLoggerWithName("feature").Debug("Formula fitted",
		"formula", f.String(),
		log.FeaturesKey, len(m.Features),
	)
	return m, nil
}

// Design is a design matrix with its response and feature names.
type Design struct {
	X        *mat.Dense
	Y        *mat.Dense
	Features []string
}

// Design encodes t. Numeric terms are copied, string terms one-hot encoded
// with the fitted levels.
func (m *FormulaModel) Design(t *frame.Table) (*Design, error) {
	y, err := t.Vector(m.Formula.Response)
	if err != nil {
		return nil, err
	}
	n := t.Nrow()
	X := mat.NewDense(n, len(m.Features), nil)

	j := 0
	for _, term := range m.terms {
		if term.Levels == nil {
			v, err := t.Float(term.Column)
			if err != nil {
				return nil, err
			}
			X.SetCol(j, v)
			j++
			continue
		}

		values, err := t.Strings(term.Column)
		if err != nil {
			return nil, err
		}
		width := len(term.Levels) - 1
		pos := make(map[string]int, len(term.Levels))
		for i, l := range term.Levels {
			pos[l] = i
		}
		for i, v := range values {
			p, ok := pos[v]
			if !ok {
				if m.Formula.HandleInvalid == HandleKeep {
					continue
				}
				return nil, errors.NewValueError("FormulaModel.Design",
					"unseen level "+v+" in column "+term.Column)
			}
			if p < width {
				X.Set(i, j+p, 1)
			}
		}
		j += width
	}

	return &Design{X: X, Y: y, Features: append([]string(nil), m.Features...)}, nil
}
