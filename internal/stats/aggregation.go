package stats

import "math"

// Sum returns the sum of values
func Sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// WeightedMean calculates Σ(v·w)/Σw. Missing weights count as 1.
// Returns 0 when the weights sum to zero, so an all-zero-length route averages to 0.
func WeightedMean(values, weights []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sumWeighted, sumWeights float64
	for i, v := range values {
		w := 1.0
		if i < len(weights) {
			w = weights[i]
		}
		sumWeighted += v * w
		sumWeights += w
	}

	if sumWeights == 0 {
		return 0
	}
	return sumWeighted / sumWeights
}

// Share returns part/total as a percentage rounded to one decimal place
func Share(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return Round(float64(part)/float64(total)*100, 1)
}

// Round rounds v to the given number of decimal places
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
