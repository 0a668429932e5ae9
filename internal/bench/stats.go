package bench

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// SizeReport is one row of the output table.
type SizeReport struct {
	Size   int
	Min    float64
	Avg    float64
	Max    float64
	Sample TrialSample
}

// Summarize reduces a sample to min, mean and max with a single linear scan.
func Summarize(size int, sample TrialSample) SizeReport {
	lo, hi := math.Inf(1), math.Inf(-1)
	var sum float64
	for _, t := range sample {
		sum += t
		lo = math.Min(lo, t)
		hi = math.Max(hi, t)
	}
	avg := sum / float64(len(sample))
	// Rounding in the sum can push the mean of near-equal samples past an extreme.
	if len(sample) > 0 {
		avg = math.Max(lo, math.Min(hi, avg))
	}
	return SizeReport{
		Size:   size,
		Min:    lo,
		Avg:    avg,
		Max:    hi,
		Sample: sample,
	}
}

// Spread returns the sample standard deviation and median. Samples shorter
// than two entries have zero deviation.
func Spread(sample TrialSample) (stddev, median float64) {
	if len(sample) == 0 {
		return 0, math.NaN()
	}
	if len(sample) > 1 {
		stddev = stat.StdDev(sample, nil)
	}
	sorted := slices.Clone(sample)
	slices.Sort(sorted)
	// Empirical quantiles pick the lower middle entry of an even-length sample.
	median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	if n := len(sorted); n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return stddev, median
}
