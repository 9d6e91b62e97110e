// Package config loads the job configuration from YAML.
package config

// Config is the whole job configuration.
type Config struct {
	Connection Connection `yaml:"connection"`
	Dataset    Dataset    `yaml:"dataset"`
	Features   Features   `yaml:"features"`
	Split      Split      `yaml:"split"`
	Models     Models     `yaml:"models"`
	Evaluation Evaluation `yaml:"evaluation"`
	Output     Output     `yaml:"output"`
	LogLevel   string     `yaml:"log_level"`
}

// Connection selects the compute session.
type Connection struct {
	Mode     string `yaml:"mode"`     // local | spark
	Remote   string `yaml:"remote"`   // Spark Connect address
	Namenode string `yaml:"namenode"` // host:port for hdfs:// paths without a host
	User     string `yaml:"user"`     // HDFS user, defaults to HADOOP_USER_NAME
}

// Dataset is the joined trip and fare data.
type Dataset struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"` // parquet | csv
	Table  string `yaml:"table"`
}

type Indexer struct {
	Input         string `yaml:"input"`
	Output        string `yaml:"output"`
	HandleInvalid string `yaml:"handle_invalid"`
}

type Binarizer struct {
	Output    string  `yaml:"output"`
	Threshold float64 `yaml:"threshold"`
}

type Bucketizer struct {
	Input         string    `yaml:"input"`
	Output        string    `yaml:"output"`
	Splits        []float64 `yaml:"splits"`
	HandleInvalid string    `yaml:"handle_invalid"`
}

// Features configures the transforms. The binarizer reads the indexer output.
type Features struct {
	Indexer    Indexer    `yaml:"indexer"`
	Binarizer  Binarizer  `yaml:"binarizer"`
	Bucketizer Bucketizer `yaml:"bucketizer"`
	Formula    string     `yaml:"formula"`
}

// Split is the train/test split. Fractions are normalised.
type Split struct {
	Training float64 `yaml:"training"`
	Test     float64 `yaml:"test"`
	Seed     uint64  `yaml:"seed"`
}

type ElasticNet struct {
	Alpha       float64 `yaml:"alpha"`  // L1 ratio
	Lambda      float64 `yaml:"lambda"` // regularization strength
	MaxIter     int     `yaml:"max_iter"`
	Tol         float64 `yaml:"tol"`
	Standardize bool    `yaml:"standardize"`
}

type RandomForest struct {
	NumTrees              int     `yaml:"num_trees"`
	MaxDepth              int     `yaml:"max_depth"`
	MaxBins               int     `yaml:"max_bins"`
	MinInstancesPerNode   int     `yaml:"min_instances_per_node"`
	SubsamplingRate       float64 `yaml:"subsampling_rate"`
	FeatureSubsetStrategy string  `yaml:"feature_subset_strategy"`
	Seed                  uint64  `yaml:"seed"`
	Workers               int     `yaml:"workers"`
}

type GBT struct {
	MaxIter             int     `yaml:"max_iter"`
	MaxDepth            int     `yaml:"max_depth"`
	MaxBins             int     `yaml:"max_bins"`
	MinInstancesPerNode int     `yaml:"min_instances_per_node"`
	StepSize            float64 `yaml:"step_size"`
	SubsamplingRate     float64 `yaml:"subsampling_rate"`
	Seed                uint64  `yaml:"seed"`
	StallRounds         int     `yaml:"stall_rounds"`
	StallTol            float64 `yaml:"stall_tol"`
}

// Models holds the hyperparameters of the three regressors.
type Models struct {
	ElasticNet   ElasticNet   `yaml:"elastic_net"`
	RandomForest RandomForest `yaml:"random_forest"`
	GBT          GBT          `yaml:"gbt"`
}

// Evaluation controls the local prediction sample used for R² and plots.
type Evaluation struct {
	SampleFraction float64 `yaml:"sample_fraction"`
	MaxRows        int     `yaml:"max_rows"`
	Seed           uint64  `yaml:"seed"`
}

type Output struct {
	Dir        string `yaml:"dir"`
	SaveModels bool   `yaml:"save_models"`
	PlotFormat string `yaml:"plot_format"` // png | svg | pdf
}

// DefaultFormula predicts the tip from the engineered and raw trip columns.
const DefaultFormula = "tip_amount ~ pt_bin + pickup_hour_bucket + passenger_count + trip_distance + fare_amount + TrafficTimeBins"

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Connection: Connection{
			Mode:   "local",
			Remote: "sc://localhost:15002",
		},
		Dataset: Dataset{
			Path:   "data/taxi",
			Format: "parquet",
			Table:  "taxi",
		},
		Features: Features{
			Indexer: Indexer{
				Input:         "payment_type",
				Output:        "payment_type_index",
				HandleInvalid: "keep",
			},
			Binarizer: Binarizer{
				Output:    "pt_bin",
				Threshold: 0.5,
			},
			Bucketizer: Bucketizer{
				Input:         "pickup_hour",
				Output:        "pickup_hour_bucket",
				Splits:        []float64{0, 6, 11, 16, 20, 24},
				HandleInvalid: "keep",
			},
			Formula: DefaultFormula,
		},
		Split: Split{Training: 0.75, Test: 0.25, Seed: 1099},
		Models: Models{
			ElasticNet: ElasticNet{
				Alpha:       0.5,
				Lambda:      0.01,
				MaxIter:     100,
				Tol:         1e-6,
				Standardize: true,
			},
			RandomForest: RandomForest{
				NumTrees:              25,
				MaxDepth:              5,
				MaxBins:               100,
				MinInstancesPerNode:   1,
				SubsamplingRate:       1.0,
				FeatureSubsetStrategy: "auto",
				Seed:                  1099,
			},
			GBT: GBT{
				MaxIter:             10,
				MaxDepth:            5,
				MaxBins:             32,
				MinInstancesPerNode: 1,
				StepSize:            0.1,
				SubsamplingRate:     1.0,
				Seed:                1099,
			},
		},
		Evaluation: Evaluation{SampleFraction: 0.1, MaxRows: 2000, Seed: 1099},
		Output:     Output{Dir: "out", PlotFormat: "png"},
		LogLevel:   "info",
	}
}
