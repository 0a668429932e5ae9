package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sphere function: f(x) = sum(x_i^2), minimum at origin
func sphere(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func TestMayflyAdapterOnSphere(t *testing.T) {
	optimizer := NewMayfly(100, 20, 42)

	dim := 3
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := 0; i < dim; i++ {
		lower[i] = -10
		upper[i] = 10
	}

	best, cost, err := optimizer.Run(sphere, lower, upper, dim)
	require.NoError(t, err)
	require.Len(t, best, dim)
	assert.LessOrEqual(t, cost, 0.1, "should converge close to zero")
	for i, v := range best {
		assert.InDelta(t, 0, v, 1.0, "parameter %d", i)
	}
}

func TestMayflyAdapterDeterministic(t *testing.T) {
	dim := 2
	lower := []float64{-5, -5}
	upper := []float64{5, 5}

	_, cost1, err := NewMayfly(50, 20, 123).Run(sphere, lower, upper, dim)
	require.NoError(t, err)
	_, cost2, err := NewMayfly(50, 20, 123).Run(sphere, lower, upper, dim)
	require.NoError(t, err)

	assert.Equal(t, cost1, cost2, "same seed must give the same cost")
}

func TestMayflyAdapterRaisesPopulation(t *testing.T) {
	assert.Equal(t, MinPopulation, NewMayfly(10, 4, 1).popSize)
}

func TestMayflyAdapterRejectsBadBounds(t *testing.T) {
	m := NewMayfly(10, 20, 1)

	_, _, err := m.Run(sphere, []float64{0}, []float64{1, 1}, 2)
	assert.ErrorIs(t, err, ErrBounds)

	_, _, err = m.Run(sphere, []float64{0, 0}, []float64{1, 2}, 2)
	assert.Error(t, err, "differing per-dimension bounds")
}
