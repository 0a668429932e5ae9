// Package tune searches for the local work-group size that minimizes the mean
// mul latency at a fixed problem size.
package tune

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/cwbudde/gridbench/internal/bench"
	"github.com/cwbudde/gridbench/internal/gpu"
	"github.com/cwbudde/gridbench/internal/opt"
)

// ErrNoCandidate is returned when every evaluated local size failed to run.
var ErrNoCandidate = errors.New("tune: no local size could be dispatched")

// Options configures a tuning run.
type Options struct {
	Precision bench.Precision
	GridSize  int
	Size      int
	Trials    int
}

// Result is the best local size found and what it cost.
type Result struct {
	Local     gpu.NDRange
	Avg       float64
	Evaluated int
	Scores    map[gpu.NDRange]float64
}

// Tuner scores local sizes drawn from the divisors of the grid dimension.
type Tuner struct {
	ctx       gpu.Context
	builder   *bench.SourceBuilder
	optimizer opt.Optimizer
	opts      Options

	divisors []int
	scores   map[gpu.NDRange]float64
}

// New creates a tuner. The program is compiled once per Run.
func New(ctx gpu.Context, builder *bench.SourceBuilder, optimizer opt.Optimizer, opts Options) *Tuner {
	return &Tuner{
		ctx:       ctx,
		builder:   builder,
		optimizer: optimizer,
		opts:      opts,
		divisors:  Divisors(opts.GridSize),
	}
}

// Divisors returns the positive divisors of n in ascending order.
func Divisors(n int) []int {
	var out []int
	for d := 1; d <= n; d++ {
		if n%d == 0 {
			out = append(out, d)
		}
	}
	return out
}

// Run compiles the kernel for the configured size and lets the optimizer
// explore [0,1)² where each coordinate indexes the divisor list. Repeated
// candidates are scored once.
func (t *Tuner) Run() (Result, error) {
	if t.opts.Size < 1 || t.opts.Trials < 1 {
		return Result{}, fmt.Errorf("tune: size and trials must be positive, got %d and %d", t.opts.Size, t.opts.Trials)
	}
	if len(t.divisors) == 0 {
		return Result{}, fmt.Errorf("tune: grid size must be at least 1, got %d", t.opts.GridSize)
	}

	p := bench.ProblemSize{Size: t.opts.Size, GridSize: t.opts.GridSize}
	prog, err := bench.NewCompiler(t.ctx).Compile(p, t.builder.Fragments(t.opts.Precision, p))
	if err != nil {
		return Result{}, err
	}
	defer prog.Release()

	t.scores = make(map[gpu.NDRange]float64)
	eval := func(pos []float64) float64 {
		return t.score(prog, p, t.candidate(pos))
	}

	slog.Info("Starting local size search",
		"size", t.opts.Size,
		"grid_size", t.opts.GridSize,
		"candidates", len(t.divisors)*len(t.divisors),
	)
	if _, _, err := t.optimizer.Run(eval, []float64{0, 0}, []float64{1, 1}, 2); err != nil {
		return Result{}, fmt.Errorf("tune: %w", err)
	}

	return t.best()
}

func (t *Tuner) candidate(pos []float64) gpu.NDRange {
	return gpu.NDRange{X: t.pick(pos[0]), Y: t.pick(pos[1])}
}

func (t *Tuner) pick(v float64) int {
	i := int(math.Floor(v * float64(len(t.divisors))))
	return t.divisors[min(max(i, 0), len(t.divisors)-1)]
}

func (t *Tuner) score(prog *bench.CompiledProgram, p bench.ProblemSize, local gpu.NDRange) float64 {
	if s, ok := t.scores[local]; ok {
		return s
	}

	runner := bench.NewRunner(t.ctx, t.opts.GridSize, local)
	sample, err := runner.Run(prog, p, t.opts.Precision, t.opts.Trials)
	s := math.Inf(1)
	if err != nil {
		slog.Debug("Local size rejected", "local_size", fmt.Sprintf("%dx%d", local.X, local.Y), "error", err)
	} else {
		s = bench.Summarize(p.Size, sample).Avg
		slog.Debug("Local size scored", "local_size", fmt.Sprintf("%dx%d", local.X, local.Y), "avg", s)
	}
	t.scores[local] = s
	return s
}

// best picks the lowest score; ties go to the smaller work-group, then X.
func (t *Tuner) best() (Result, error) {
	keys := make([]gpu.NDRange, 0, len(t.scores))
	for k := range t.scores {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b gpu.NDRange) int {
		if t.scores[a] != t.scores[b] {
			if t.scores[a] < t.scores[b] {
				return -1
			}
			return 1
		}
		if a.Count() != b.Count() {
			return a.Count() - b.Count()
		}
		return a.X - b.X
	})

	if len(keys) == 0 || math.IsInf(t.scores[keys[0]], 1) {
		return Result{}, ErrNoCandidate
	}
	return Result{
		Local:     keys[0],
		Avg:       t.scores[keys[0]],
		Evaluated: len(keys),
		Scores:    t.scores,
	}, nil
}
