package bench

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_Basic(t *testing.T) {
	r := Summarize(4, TrialSample{3e-6, 1e-6, 2e-6})

	assert.Equal(t, 4, r.Size)
	assert.Equal(t, 1e-6, r.Min)
	assert.Equal(t, 3e-6, r.Max)
	assert.InDelta(t, 2e-6, r.Avg, 1e-18)
	assert.Len(t, r.Sample, 3)
}

func TestSummarize_OrderingAndMeanProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 500; iter++ {
		n := 1 + rng.Intn(60)
		sample := make(TrialSample, n)
		for i := range sample {
			switch iter % 3 {
			case 0:
				sample[i] = rng.Float64() * 1e-3
			case 1:
				sample[i] = 0.1 // identical entries stress rounding in the sum
			default:
				sample[i] = float64(rng.Intn(5)) * 1e-7
			}
		}

		r := Summarize(1, sample)
		require.LessOrEqual(t, r.Min, r.Avg, "iteration %d", iter)
		require.LessOrEqual(t, r.Avg, r.Max, "iteration %d", iter)

		var sum float64
		for _, v := range sample {
			sum += v
		}
		assert.InDelta(t, sum/float64(n), r.Avg, 1e-15)
	}
}

func TestSummarize_Empty(t *testing.T) {
	r := Summarize(1, nil)
	assert.True(t, math.IsInf(r.Min, 1))
	assert.True(t, math.IsInf(r.Max, -1))
	assert.True(t, math.IsNaN(r.Avg))
}

func TestSpread(t *testing.T) {
	stddev, median := Spread(TrialSample{4, 1, 3, 2, 5})
	assert.InDelta(t, math.Sqrt(2.5), stddev, 1e-12)
	assert.Equal(t, 3.0, median)

	_, median = Spread(TrialSample{4, 1, 3, 2})
	assert.Equal(t, 2.5, median, "even length averages the two middle entries")

	stddev, median = Spread(TrialSample{7})
	assert.Zero(t, stddev)
	assert.Equal(t, 7.0, median)
}
