package opt

// Optimizer minimizes an objective over a box-bounded parameter space.
type Optimizer interface {
	// Run minimizes eval within [lower, upper] over dim parameters and
	// returns the best parameters and their cost.
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64, error)
}
