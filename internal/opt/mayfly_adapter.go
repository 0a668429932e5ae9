package opt

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MinPopulation is the smallest population mayfly accepts.
const MinPopulation = 20

var ErrBounds = errors.New("opt: lower and upper bounds must have dim entries")

// MayflyAdapter wraps the mayfly library to satisfy Optimizer.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a mayfly optimizer. popSize is raised to MinPopulation
// when smaller.
func NewMayfly(maxIters, popSize int, seed int64) *MayflyAdapter {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  max(popSize, MinPopulation),
		seed:     seed,
	}
}

// Run executes the optimization. mayfly takes scalar bounds, so every
// dimension must share the bounds of the first.
func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64, error) {
	if len(lower) != dim || len(upper) != dim || dim == 0 {
		return nil, 0, ErrBounds
	}
	for i := 1; i < dim; i++ {
		if lower[i] != lower[0] || upper[i] != upper[0] {
			return nil, 0, fmt.Errorf("opt: dimension %d bounds [%g, %g] differ from [%g, %g]",
				i, lower[i], upper[i], lower[0], upper[0])
		}
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = eval
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = lower[0]
	config.UpperBound = upper[0]
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		return nil, 0, fmt.Errorf("mayfly: %w", err)
	}
	return result.GlobalBest.Position, result.GlobalBest.Cost, nil
}
