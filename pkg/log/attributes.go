// Standard attribute keys for pipeline and model logging.
//
// Keys follow a hierarchical naming convention ("model.name", "data.samples")
// so log analysis can filter by prefix.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of model.
	// Examples: "ElasticNet", "RandomForestRegressor", "GBTRegressor"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "transform"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the run.
	PhaseKey = "ml.phase"

	// StageKey names the pipeline stage ("load", "split", "random_forest", ...).
	StageKey = "pipeline.stage"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// TableKey names the cached table being operated on.
	TableKey = "data.table"

	// PathKey is the storage path a table was loaded from.
	PathKey = "data.path"

	// ColumnKey names a single column.
	ColumnKey = "data.column"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// LossKey records loss value during training or evaluation.
	LossKey = "metrics.loss"

	// R2ScoreKey records R² for regression.
	R2ScoreKey = "metrics.r2_score"

	// RMSEKey records root mean squared error.
	RMSEKey = "metrics.rmse"

	// IterationKey records the current iteration number during iterative processes.
	IterationKey = "training.iteration"

	// TreesKey records the number of trees in an ensemble.
	TreesKey = "training.trees"
)

// Error and Warning Context
const (
	// ErrorKey holds the error value itself.
	ErrorKey = "error"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RegularizationKey records regularization strength.
	RegularizationKey = "hyperparams.regularization"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// ModeKey records the session mode ("local" or "spark").
	ModeKey = "config.mode"
)

const (
	OperationFit       = "fit"
	OperationTransform = "transform"

	PhaseTraining      = "training"
	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"
	PhaseTeardown      = "teardown"
)
