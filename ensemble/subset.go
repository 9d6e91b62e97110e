package ensemble

import (
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/YuminosukeSato/taxitip/pkg/errors"
)

// resolveFeatureSubset returns how many features each node considers.
// For regression "auto" means onethird with several trees and all with one.
func resolveFeatureSubset(strategy string, nFeatures, numTrees int) (int, error) {
	switch strategy {
	case "", "auto":
		if numTrees > 1 {
			return resolveFeatureSubset("onethird", nFeatures, numTrees)
		}
		return nFeatures, nil
	case "all":
		return nFeatures, nil
	case "onethird":
		return int(math.Ceil(float64(nFeatures) / 3)), nil
	case "sqrt":
		return int(math.Ceil(math.Sqrt(float64(nFeatures)))), nil
	case "log2":
		return max(1, int(math.Ceil(math.Log2(float64(nFeatures))))), nil
	}

	if k, err := strconv.Atoi(strategy); err == nil && k >= 1 {
		return min(k, nFeatures), nil
	}
	if f, err := strconv.ParseFloat(strategy, 64); err == nil && f > 0 && f <= 1 {
		return max(1, int(math.Ceil(f*float64(nFeatures)))), nil
	}
	return 0, errors.NewValidationError("feature_subset_strategy",
		"must be auto, all, onethird, sqrt, log2, a fraction in (0, 1] or a positive count", strategy)
}

// sampleRows draws round(rate*n) row indices, at least one.
func sampleRows(rng *rand.Rand, n int, rate float64, withReplacement bool) []int {
	size := max(1, int(math.Round(rate*float64(n))))
	if withReplacement {
		rows := make([]int, size)
		for i := range rows {
			rows[i] = rng.IntN(n)
		}
		return rows
	}
	if size >= n {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	return rng.Perm(n)[:size]
}

func validateRate(param string, rate float64) error {
	if !(rate > 0 && rate <= 1) {
		return errors.NewValidationError(param, "must be in (0, 1]", rate)
	}
	return nil
}
