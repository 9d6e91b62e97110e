package tree

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxitip/core/model"
	"github.com/YuminosukeSato/taxitip/pkg/errors"
	"github.com/YuminosukeSato/taxitip/pkg/log"
)

// DecisionTreeRegressor is a single CART regression tree.
type DecisionTreeRegressor struct {
	State *model.StateManager

	MaxDepth            int
	MaxBins             int
	MinInstancesPerNode int
	MinInfoGain         float64
	Seed                uint64

	Tree        *Tree
	Importances []float64
}

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithMaxDepth sets the maximum depth. Depth 0 is a single leaf.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeRegressor) { dt.MaxDepth = depth }
}

// WithMaxBins sets the maximum number of bins used to discretize each feature.
func WithMaxBins(bins int) Option {
	return func(dt *DecisionTreeRegressor) { dt.MaxBins = bins }
}

// WithMinInstancesPerNode sets the minimum number of samples each child must have.
func WithMinInstancesPerNode(n int) Option {
	return func(dt *DecisionTreeRegressor) { dt.MinInstancesPerNode = n }
}

// WithMinInfoGain sets the minimum impurity decrease for a split.
func WithMinInfoGain(gain float64) Option {
	return func(dt *DecisionTreeRegressor) { dt.MinInfoGain = gain }
}

// WithSeed sets the random seed.
func WithSeed(seed uint64) Option {
	return func(dt *DecisionTreeRegressor) { dt.Seed = seed }
}

// NewDecisionTreeRegressor creates a tree with depth 5, 32 bins and one
// instance per node unless overridden.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{
		State:               model.NewStateManager(),
		MaxDepth:            5,
		MaxBins:             32,
		MinInstancesPerNode: 1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// Name implements model.Regressor.
func (dt *DecisionTreeRegressor) Name() string { return "DecisionTreeRegressor" }

// Validate checks the hyperparameters shared by every tree-based estimator.
func Validate(maxDepth, maxBins, minInstances int, minInfoGain float64) error {
	if maxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be non-negative", maxDepth)
	}
	if maxBins < 2 {
		return errors.NewValidationError("max_bins", "must be at least 2", maxBins)
	}
	if minInstances < 1 {
		return errors.NewValidationError("min_instances_per_node", "must be positive", minInstances)
	}
	if minInfoGain < 0 {
		return errors.NewValidationError("min_info_gain", "must be non-negative", minInfoGain)
	}
	return nil
}

// Fit grows the tree on every row of X.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	if err := Validate(dt.MaxDepth, dt.MaxBins, dt.MinInstancesPerNode, dt.MinInfoGain); err != nil {
		return err
	}
	r, c, yCol, err := CheckXY("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}

	ds, err := NewDataset(X, dt.MaxBins)
	if err != nil {
		return err
	}

	rows := make([]int, r)
	for i := range rows {
		rows[i] = i
	}
	cfg := GrowConfig{
		MaxDepth:            dt.MaxDepth,
		MinInstancesPerNode: dt.MinInstancesPerNode,
		MinInfoGain:         dt.MinInfoGain,
		ParallelSplits:      true,
	}
	rng := rand.New(rand.NewPCG(dt.Seed, dt.Seed))
	t, imp := Grow(ds, yCol, rows, cfg, rng)

	dt.Tree = t
	dt.Importances = NormalizeImportances(imp)
	dt.State.SetFitted(c, r)

	log.GetLoggerWithName("tree").Debug("Tree grown",
		log.ModelNameKey, dt.Name(),
		log.SamplesKey, r,
		"depth", t.Depth(),
		"leaves", t.NumLeaves(),
	)
	return nil
}

// Predict returns one prediction per row of X.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.State.RequireFitted(dt.Name(), "Predict"); err != nil {
		return nil, err
	}
	return PredictWith(dt.Name()+".Predict", dt.State, X, dt.Tree.PredictRow)
}

// FeatureImportances implements model.FeatureImportancer.
func (dt *DecisionTreeRegressor) FeatureImportances() ([]float64, error) {
	if err := dt.State.RequireFitted(dt.Name(), "FeatureImportances"); err != nil {
		return nil, err
	}
	return append([]float64(nil), dt.Importances...), nil
}

// Summary implements model.Regressor.
func (dt *DecisionTreeRegressor) Summary() *model.ModelSummary {
	s := &model.ModelSummary{
		ModelType: dt.Name(),
		Hyperparameters: map[string]interface{}{
			"max_depth":              dt.MaxDepth,
			"max_bins":               dt.MaxBins,
			"min_instances_per_node": dt.MinInstancesPerNode,
			"min_info_gain":          dt.MinInfoGain,
		},
		IsFitted: dt.State.IsFitted(),
	}
	if dt.Tree != nil {
		s.Importances = append([]float64(nil), dt.Importances...)
		s.Metadata = map[string]interface{}{
			"depth":  dt.Tree.Depth(),
			"nodes":  len(dt.Tree.Nodes),
			"leaves": dt.Tree.NumLeaves(),
		}
	}
	return s
}

// CheckXY validates training matrices and returns their shape and y as a slice.
func CheckXY(op string, X, y mat.Matrix) (rows, cols int, yCol []float64, err error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return 0, 0, nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	ry, cy := y.Dims()
	if ry != r {
		return 0, 0, nil, errors.NewDimensionError(op, r, ry, 0)
	}
	if cy != 1 {
		return 0, 0, nil, errors.NewValueError(op, "y must be a column vector")
	}
	yCol = mat.Col(nil, 0, y)
	if err := errors.CheckFinite(op, yCol); err != nil {
		return 0, 0, nil, err
	}
	return r, c, yCol, nil
}

// PredictWith applies fn to each row of X after checking the feature count.
func PredictWith(op string, state *model.StateManager, X mat.Matrix, fn func(row []float64) float64) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := state.CheckFeatures(op, c); err != nil {
		return nil, err
	}
	out := mat.NewDense(r, 1, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out.Set(i, 0, fn(row))
	}
	return out, nil
}
