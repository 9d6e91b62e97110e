// Package ensemble provides tree ensembles for regression: a bagged random
// forest and gradient-boosted trees on squared error. Both grow their trees
// with package tree on a shared binned dataset.
package ensemble

import (
	"context"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxitip/core/model"
	"github.com/YuminosukeSato/taxitip/core/parallel"
	"github.com/YuminosukeSato/taxitip/pkg/errors"
	"github.com/YuminosukeSato/taxitip/pkg/log"
	"github.com/YuminosukeSato/taxitip/tree"
)

// RandomForestRegressor はブートストラップ標本で学習した回帰木の平均で予測する
type RandomForestRegressor struct {
	State *model.StateManager

	NumTrees              int
	MaxDepth              int
	MaxBins               int
	MinInstancesPerNode   int
	MinInfoGain           float64
	SubsamplingRate       float64
	FeatureSubsetStrategy string
	Seed                  uint64
	Workers               int

	Trees             []*tree.Tree
	Importances       []float64
	FeatureSubsetSize int
}

// NewRandomForestRegressor creates a forest of 20 trees of depth 5 with 32
// bins, full-size bootstrap samples and the auto feature subset.
func NewRandomForestRegressor(opts ...ForestOption) *RandomForestRegressor {
	rf := &RandomForestRegressor{
		State:                 model.NewStateManager(),
		NumTrees:              20,
		MaxDepth:              5,
		MaxBins:               32,
		MinInstancesPerNode:   1,
		SubsamplingRate:       1.0,
		FeatureSubsetStrategy: "auto",
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// Name implements model.Regressor.
func (rf *RandomForestRegressor) Name() string { return "RandomForestRegressor" }

func (rf *RandomForestRegressor) validate() error {
	if rf.NumTrees < 1 {
		return errors.NewValidationError("num_trees", "must be positive", rf.NumTrees)
	}
	if err := tree.Validate(rf.MaxDepth, rf.MaxBins, rf.MinInstancesPerNode, rf.MinInfoGain); err != nil {
		return err
	}
	return validateRate("subsampling_rate", rf.SubsamplingRate)
}

// Fit implements model.Fitter.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	return rf.FitContext(context.Background(), X, y)
}

// FitContext implements model.ContextFitter. Trees not yet started when ctx
// is done are skipped and the context error is returned.
func (rf *RandomForestRegressor) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")
	return rf.fit(ctx, X, y)
}

func (rf *RandomForestRegressor) fit(ctx context.Context, X, y mat.Matrix) error {
	if err := rf.validate(); err != nil {
		return err
	}
	r, c, yCol, err := tree.CheckXY("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	subset, err := resolveFeatureSubset(rf.FeatureSubsetStrategy, c, rf.NumTrees)
	if err != nil {
		return err
	}
	ds, err := tree.NewDataset(X, rf.MaxBins)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("ensemble.random_forest").With(log.ModelNameKey, rf.Name())
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, r,
		log.FeaturesKey, c,
		log.TreesKey, rf.NumTrees,
		log.RandomSeedKey, rf.Seed,
	)
	start := time.Now()

	cfg := tree.GrowConfig{
		MaxDepth:            rf.MaxDepth,
		MinInstancesPerNode: rf.MinInstancesPerNode,
		MinInfoGain:         rf.MinInfoGain,
		FeatureSubset:       subset,
	}
	bootstrap := rf.NumTrees > 1

	trees := make([]*tree.Tree, rf.NumTrees)
	perTree := make([][]float64, rf.NumTrees)
	errs := make([]error, rf.NumTrees)

	parallel.ParallelizeWorkers(rf.NumTrees, rf.Workers, func(from, to int) {
		for i := from; i < to; i++ {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				continue
			}
			errs[i] = errors.SafeExecute("RandomForestRegressor.growTree", func() error {
				// 木ごとに独立した乱数列を使い、並列度に依存しない結果にする
				rng := rand.New(rand.NewPCG(rf.Seed, uint64(i)+1))
				rows := sampleRows(rng, r, rf.SubsamplingRate, bootstrap)
				trees[i], perTree[i] = tree.Grow(ds, yCol, rows, cfg, rng)
				return nil
			})
		}
	})
	for _, e := range errs {
		if e != nil {
			return errors.Wrap(e, "RandomForestRegressor.Fit")
		}
	}

	rf.Trees = trees
	rf.Importances = tree.AggregateImportances(perTree, c)
	rf.FeatureSubsetSize = subset
	rf.State.SetFitted(c, r)

	logger.Info("Training completed",
		log.TreesKey, len(trees),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict averages the predictions of every tree.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.State.RequireFitted(rf.Name(), "Predict"); err != nil {
		return nil, err
	}
	n := float64(len(rf.Trees))
	return tree.PredictWith(rf.Name()+".Predict", rf.State, X, func(row []float64) float64 {
		sum := 0.0
		for _, t := range rf.Trees {
			sum += t.PredictRow(row)
		}
		return sum / n
	})
}

// FeatureImportances implements model.FeatureImportancer.
func (rf *RandomForestRegressor) FeatureImportances() ([]float64, error) {
	if err := rf.State.RequireFitted(rf.Name(), "FeatureImportances"); err != nil {
		return nil, err
	}
	return append([]float64(nil), rf.Importances...), nil
}

// Summary implements model.Regressor.
func (rf *RandomForestRegressor) Summary() *model.ModelSummary {
	s := &model.ModelSummary{
		ModelType: rf.Name(),
		Hyperparameters: map[string]interface{}{
			"num_trees":               rf.NumTrees,
			"max_depth":               rf.MaxDepth,
			"max_bins":                rf.MaxBins,
			"min_instances_per_node":  rf.MinInstancesPerNode,
			"min_info_gain":           rf.MinInfoGain,
			"subsampling_rate":        rf.SubsamplingRate,
			"feature_subset_strategy": rf.FeatureSubsetStrategy,
			"seed":                    rf.Seed,
		},
		IsFitted: rf.State.IsFitted(),
	}
	if rf.State.IsFitted() {
		s.Importances = append([]float64(nil), rf.Importances...)
		s.Metadata = treeMetadata(rf.Trees)
		s.Metadata["feature_subset_size"] = rf.FeatureSubsetSize
	}
	return s
}

func treeMetadata(trees []*tree.Tree) map[string]interface{} {
	nodes, maxDepth := 0, 0
	for _, t := range trees {
		nodes += len(t.Nodes)
		maxDepth = max(maxDepth, t.Depth())
	}
	return map[string]interface{}{
		"trees":       len(trees),
		"total_nodes": nodes,
		"max_depth":   maxDepth,
	}
}
