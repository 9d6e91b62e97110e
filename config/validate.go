package config

import (
	"math"

	"github.com/YuminosukeSato/taxitip/feature"
	"github.com/YuminosukeSato/taxitip/pkg/errors"
)

// Validate checks every section. The first problem is returned as a
// ValidationError naming the offending key.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validateConnection,
		c.validateDataset,
		c.validateFeatures,
		c.validateSplit,
		c.validateModels,
		c.validateEvaluation,
		c.validateOutput,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func invalid(param, reason string, value interface{}) error {
	return errors.NewValidationError(param, reason, value)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func (c *Config) validateConnection() error {
	conn := c.Connection
	if !oneOf(conn.Mode, "local", "spark") {
		return invalid("connection.mode", "must be local or spark", conn.Mode)
	}
	if conn.Mode == "spark" && conn.Remote == "" {
		return invalid("connection.remote", "required in spark mode", conn.Remote)
	}
	return nil
}

func (c *Config) validateDataset() error {
	d := c.Dataset
	if d.Path == "" {
		return invalid("dataset.path", "required", d.Path)
	}
	if !oneOf(d.Format, "parquet", "csv") {
		return invalid("dataset.format", "must be parquet or csv", d.Format)
	}
	if d.Table == "" {
		return invalid("dataset.table", "required", d.Table)
	}
	return nil
}

func (c *Config) validateFeatures() error {
	f := c.Features
	if f.Indexer.Input == "" || f.Indexer.Output == "" {
		return invalid("features.indexer", "input and output are required", f.Indexer)
	}
	if !oneOf(f.Indexer.HandleInvalid, "", "error", "skip", "keep") {
		return invalid("features.indexer.handle_invalid", "must be error, skip or keep", f.Indexer.HandleInvalid)
	}
	if f.Binarizer.Output == "" {
		return invalid("features.binarizer.output", "required", f.Binarizer.Output)
	}
	if math.IsNaN(f.Binarizer.Threshold) {
		return invalid("features.binarizer.threshold", "must be a number", f.Binarizer.Threshold)
	}
	if f.Bucketizer.Input == "" || f.Bucketizer.Output == "" {
		return invalid("features.bucketizer", "input and output are required", f.Bucketizer)
	}
	if err := feature.ValidateSplits(f.Bucketizer.Splits); err != nil {
		return invalid("features.bucketizer.splits", "need at least three strictly increasing values", f.Bucketizer.Splits)
	}
	if !oneOf(f.Bucketizer.HandleInvalid, "", "error", "skip", "keep") {
		return invalid("features.bucketizer.handle_invalid", "must be error, skip or keep", f.Bucketizer.HandleInvalid)
	}
	if _, err := feature.ParseFormula(f.Formula); err != nil {
		return invalid("features.formula", err.Error(), f.Formula)
	}
	return nil
}

func (c *Config) validateSplit() error {
	s := c.Split
	if !(s.Training > 0) || math.IsInf(s.Training, 0) {
		return invalid("split.training", "must be positive", s.Training)
	}
	if !(s.Test > 0) || math.IsInf(s.Test, 0) {
		return invalid("split.test", "must be positive", s.Test)
	}
	return nil
}

func (c *Config) validateModels() error {
	en := c.Models.ElasticNet
	if !(en.Alpha >= 0 && en.Alpha <= 1) {
		return invalid("models.elastic_net.alpha", "must be in [0, 1]", en.Alpha)
	}
	if !(en.Lambda >= 0) {
		return invalid("models.elastic_net.lambda", "must be non-negative", en.Lambda)
	}
	if en.MaxIter < 1 {
		return invalid("models.elastic_net.max_iter", "must be positive", en.MaxIter)
	}
	if !(en.Tol > 0) {
		return invalid("models.elastic_net.tol", "must be positive", en.Tol)
	}

	rf := c.Models.RandomForest
	if rf.NumTrees < 1 {
		return invalid("models.random_forest.num_trees", "must be positive", rf.NumTrees)
	}
	if err := validateTree("models.random_forest", rf.MaxDepth, rf.MaxBins, rf.MinInstancesPerNode, rf.SubsamplingRate); err != nil {
		return err
	}

	g := c.Models.GBT
	if g.MaxIter < 1 {
		return invalid("models.gbt.max_iter", "must be positive", g.MaxIter)
	}
	if !(g.StepSize > 0 && g.StepSize <= 1) {
		return invalid("models.gbt.step_size", "must be in (0, 1]", g.StepSize)
	}
	if g.StallRounds < 0 {
		return invalid("models.gbt.stall_rounds", "must be non-negative", g.StallRounds)
	}
	return validateTree("models.gbt", g.MaxDepth, g.MaxBins, g.MinInstancesPerNode, g.SubsamplingRate)
}

func validateTree(prefix string, maxDepth, maxBins, minInstances int, rate float64) error {
	if maxDepth < 0 {
		return invalid(prefix+".max_depth", "must be non-negative", maxDepth)
	}
	if maxBins < 2 {
		return invalid(prefix+".max_bins", "must be at least 2", maxBins)
	}
	if minInstances < 1 {
		return invalid(prefix+".min_instances_per_node", "must be positive", minInstances)
	}
	if !(rate > 0 && rate <= 1) {
		return invalid(prefix+".subsampling_rate", "must be in (0, 1]", rate)
	}
	return nil
}

func (c *Config) validateEvaluation() error {
	e := c.Evaluation
	if !(e.SampleFraction > 0 && e.SampleFraction <= 1) {
		return invalid("evaluation.sample_fraction", "must be in (0, 1]", e.SampleFraction)
	}
	if e.MaxRows < 0 {
		return invalid("evaluation.max_rows", "must be non-negative", e.MaxRows)
	}
	return nil
}

func (c *Config) validateOutput() error {
	if c.Output.Dir == "" {
		return invalid("output.dir", "required", c.Output.Dir)
	}
	if !oneOf(c.Output.PlotFormat, "png", "svg", "pdf") {
		return invalid("output.plot_format", "must be png, svg or pdf", c.Output.PlotFormat)
	}
	return nil
}
