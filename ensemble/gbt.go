package ensemble

import (
	"context"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxitip/core/model"
	"github.com/YuminosukeSato/taxitip/pkg/errors"
	"github.com/YuminosukeSato/taxitip/pkg/log"
	"github.com/YuminosukeSato/taxitip/tree"
)

// GBTRegressor は二乗誤差の勾配ブースティング木
//
// 最初の木はラベルそのものに重み 1 で当てはめ、以降の木は残差 y - F(x) に
// 当てはめて StepSize を掛けて加算する。
type GBTRegressor struct {
	State *model.StateManager

	MaxIter               int
	MaxDepth              int
	MaxBins               int
	MinInstancesPerNode   int
	MinInfoGain           float64
	StepSize              float64
	SubsamplingRate       float64
	FeatureSubsetStrategy string
	Seed                  uint64
	StallRounds           int
	StallTol              float64

	Trees       []*tree.Tree
	TreeWeights []float64
	TrainLoss   []float64 // training MSE after each iteration
	Importances []float64
}

// NewGBTRegressor creates a booster with 20 iterations of depth 5 trees,
// 32 bins and step size 0.1.
func NewGBTRegressor(opts ...GBTOption) *GBTRegressor {
	g := &GBTRegressor{
		State:                 model.NewStateManager(),
		MaxIter:               20,
		MaxDepth:              5,
		MaxBins:               32,
		MinInstancesPerNode:   1,
		StepSize:              0.1,
		SubsamplingRate:       1.0,
		FeatureSubsetStrategy: "all",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name implements model.Regressor.
func (g *GBTRegressor) Name() string { return "GBTRegressor" }

func (g *GBTRegressor) validate() error {
	if g.MaxIter < 1 {
		return errors.NewValidationError("max_iter", "must be positive", g.MaxIter)
	}
	if !(g.StepSize > 0 && g.StepSize <= 1) {
		return errors.NewValidationError("step_size", "must be in (0, 1]", g.StepSize)
	}
	if g.StallRounds < 0 {
		return errors.NewValidationError("stall_rounds", "must be non-negative", g.StallRounds)
	}
	if err := tree.Validate(g.MaxDepth, g.MaxBins, g.MinInstancesPerNode, g.MinInfoGain); err != nil {
		return err
	}
	return validateRate("subsampling_rate", g.SubsamplingRate)
}

// Fit implements model.Fitter.
func (g *GBTRegressor) Fit(X, y mat.Matrix) error {
	return g.FitContext(context.Background(), X, y)
}

// FitContext implements model.ContextFitter. ctx is checked before every
// boosting iteration.
func (g *GBTRegressor) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GBTRegressor.Fit")

	if err := g.validate(); err != nil {
		return err
	}
	r, c, yCol, err := tree.CheckXY("GBTRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	subset, err := resolveFeatureSubset(g.FeatureSubsetStrategy, c, 1)
	if err != nil {
		return err
	}
	ds, err := tree.NewDataset(X, g.MaxBins)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("ensemble.gbt").With(log.ModelNameKey, g.Name())
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, r,
		log.FeaturesKey, c,
		"max_iter", g.MaxIter,
		"step_size", g.StepSize,
	)
	start := time.Now()

	cfg := tree.GrowConfig{
		MaxDepth:            g.MaxDepth,
		MinInstancesPerNode: g.MinInstancesPerNode,
		MinInfoGain:         g.MinInfoGain,
		FeatureSubset:       subset,
		ParallelSplits:      true,
	}
	rng := rand.New(rand.NewPCG(g.Seed, g.Seed))
	stall := NewStallDetector(g.StallRounds, g.StallTol)

	pred := make([]float64, r)
	target := make([]float64, r)
	row := make([]float64, c)
	copy(target, yCol)

	trees := make([]*tree.Tree, 0, g.MaxIter)
	weights := make([]float64, 0, g.MaxIter)
	losses := make([]float64, 0, g.MaxIter)
	perTree := make([][]float64, 0, g.MaxIter)

	for iter := 0; iter < g.MaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "GBTRegressor.Fit: iteration %d", iter)
		}

		weight := g.StepSize
		if iter == 0 {
			weight = 1.0
		} else {
			for i := range target {
				target[i] = yCol[i] - pred[i]
			}
		}

		rows := sampleRows(rng, r, g.SubsamplingRate, false)
		t, imp := tree.Grow(ds, target, rows, cfg, rng)

		loss := 0.0
		for i := 0; i < r; i++ {
			pred[i] += weight * t.PredictRow(ds.Row(row, i))
			d := yCol[i] - pred[i]
			loss += d * d
		}
		loss /= float64(r)

		trees = append(trees, t)
		weights = append(weights, weight)
		losses = append(losses, loss)
		perTree = append(perTree, imp)

		logger.Debug("Boosting iteration",
			log.IterationKey, iter,
			log.LossKey, loss,
			"leaves", t.NumLeaves(),
		)

		if stall.Update(iter, loss) {
			logger.Info("Training loss stalled",
				log.IterationKey, iter,
				"best_iteration", stall.BestIteration,
			)
			break
		}
	}
	if err := errors.CheckNumericalStability("GBTRegressor.Fit", losses, len(losses)); err != nil {
		return err
	}

	g.Trees = trees
	g.TreeWeights = weights
	g.TrainLoss = losses
	g.Importances = tree.AggregateImportances(perTree, c)
	g.State.SetFitted(c, r)

	logger.Info("Training completed",
		log.TreesKey, len(trees),
		log.LossKey, losses[len(losses)-1],
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict returns the weighted sum of the tree predictions.
func (g *GBTRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := g.State.RequireFitted(g.Name(), "Predict"); err != nil {
		return nil, err
	}
	return tree.PredictWith(g.Name()+".Predict", g.State, X, func(row []float64) float64 {
		sum := 0.0
		for m, t := range g.Trees {
			sum += g.TreeWeights[m] * t.PredictRow(row)
		}
		return sum
	})
}

// FeatureImportances implements model.FeatureImportancer.
func (g *GBTRegressor) FeatureImportances() ([]float64, error) {
	if err := g.State.RequireFitted(g.Name(), "FeatureImportances"); err != nil {
		return nil, err
	}
	return append([]float64(nil), g.Importances...), nil
}

// Summary implements model.Regressor.
func (g *GBTRegressor) Summary() *model.ModelSummary {
	s := &model.ModelSummary{
		ModelType: g.Name(),
		Hyperparameters: map[string]interface{}{
			"max_iter":               g.MaxIter,
			"max_depth":              g.MaxDepth,
			"max_bins":               g.MaxBins,
			"min_instances_per_node": g.MinInstancesPerNode,
			"step_size":              g.StepSize,
			"subsampling_rate":       g.SubsamplingRate,
			"seed":                   g.Seed,
		},
		IsFitted: g.State.IsFitted(),
	}
	if g.State.IsFitted() {
		s.Importances = append([]float64(nil), g.Importances...)
		s.Metadata = treeMetadata(g.Trees)
		s.Metadata["final_train_mse"] = g.TrainLoss[len(g.TrainLoss)-1]
	}
	return s
}
