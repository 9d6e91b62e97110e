package ensemble

// ForestOption configures a RandomForestRegressor.
type ForestOption func(*RandomForestRegressor)

// WithNumTrees sets the number of trees.
func WithNumTrees(n int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.NumTrees = n }
}

// WithForestMaxDepth sets the maximum depth of each tree.
func WithForestMaxDepth(depth int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.MaxDepth = depth }
}

// WithForestMaxBins sets the maximum number of bins per feature.
func WithForestMaxBins(bins int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.MaxBins = bins }
}

// WithForestMinInstancesPerNode sets the minimum samples on each side of a split.
func WithForestMinInstancesPerNode(n int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.MinInstancesPerNode = n }
}

// WithForestSubsamplingRate sets the bootstrap sample size as a fraction of the rows.
func WithForestSubsamplingRate(rate float64) ForestOption {
	return func(rf *RandomForestRegressor) { rf.SubsamplingRate = rate }
}

// WithFeatureSubsetStrategy sets the per-node feature subset: auto, all,
// onethird, sqrt, log2, a fraction in (0, 1] or a count.
func WithFeatureSubsetStrategy(strategy string) ForestOption {
	return func(rf *RandomForestRegressor) { rf.FeatureSubsetStrategy = strategy }
}

// WithForestSeed sets the random seed.
func WithForestSeed(seed uint64) ForestOption {
	return func(rf *RandomForestRegressor) { rf.Seed = seed }
}

// WithWorkers sets how many trees are grown concurrently. 0 means one per CPU.
func WithWorkers(n int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.Workers = n }
}

// GBTOption configures a GBTRegressor.
type GBTOption func(*GBTRegressor)

// WithMaxIter sets the number of boosting iterations.
func WithMaxIter(n int) GBTOption {
	return func(g *GBTRegressor) { g.MaxIter = n }
}

// WithGBTMaxDepth sets the maximum depth of each tree.
func WithGBTMaxDepth(depth int) GBTOption {
	return func(g *GBTRegressor) { g.MaxDepth = depth }
}

// WithGBTMaxBins sets the maximum number of bins per feature.
func WithGBTMaxBins(bins int) GBTOption {
	return func(g *GBTRegressor) { g.MaxBins = bins }
}

// WithGBTMinInstancesPerNode sets the minimum samples on each side of a split.
func WithGBTMinInstancesPerNode(n int) GBTOption {
	return func(g *GBTRegressor) { g.MinInstancesPerNode = n }
}

// WithStepSize sets the learning rate applied to every tree after the first.
func WithStepSize(step float64) GBTOption {
	return func(g *GBTRegressor) { g.StepSize = step }
}

// WithGBTSubsamplingRate sets the fraction of rows drawn without replacement per iteration.
func WithGBTSubsamplingRate(rate float64) GBTOption {
	return func(g *GBTRegressor) { g.SubsamplingRate = rate }
}

// WithGBTSeed sets the random seed.
func WithGBTSeed(seed uint64) GBTOption {
	return func(g *GBTRegressor) { g.Seed = seed }
}

// WithStallStop stops boosting once the training loss has not improved by
// more than tol for rounds consecutive iterations. rounds 0 disables it.
func WithStallStop(rounds int, tol float64) GBTOption {
	return func(g *GBTRegressor) {
		g.StallRounds = rounds
		g.StallTol = tol
	}
}
