package bench

import (
	"errors"
	"fmt"

	"github.com/cwbudde/gridbench/internal/gpu"
)

// TrialSample holds per-trial device time in seconds, in trial order.
type TrialSample []float64

var errClockOrder = errors.New("profiling end precedes start")

// Runner times the mul kernel of a compiled program.
type Runner struct {
	ctx    gpu.Context
	Global gpu.NDRange
	// Local is the work-group extent. It is a tuning value, not derived from
	// the device; a zero range leaves the choice to the runtime.
	Local gpu.NDRange
}

// NewRunner dispatches over a gridSize x gridSize domain with the given local extent.
func NewRunner(ctx gpu.Context, gridSize int, local gpu.NDRange) *Runner {
	return &Runner{
		ctx:    ctx,
		Global: gpu.NDRange{X: gridSize, Y: gridSize},
		Local:  local,
	}
}

// Run allocates fresh x, y and A buffers for p, runs init once untimed and
// then times trials dispatches of mul, one in flight at a time. Buffers are
// released before Run returns.
func (r *Runner) Run(prog *CompiledProgram, p ProblemSize, prec Precision, trials int) (TrialSample, error) {
	if trials <= 0 {
		return nil, fmt.Errorf("trial count must be positive, got %d", trials)
	}

	elem := prec.Size()
	x, err := r.ctx.NewBuffer(p.VectorLen() * elem)
	if err != nil {
		return nil, &DispatchError{Size: p.Size, Op: "allocate x", Err: err}
	}
	defer x.Release()

	y, err := r.ctx.NewBuffer(p.VectorLen() * elem)
	if err != nil {
		return nil, &DispatchError{Size: p.Size, Op: "allocate y", Err: err}
	}
	defer y.Release()

	a, err := r.ctx.NewBuffer(p.MatrixLen() * elem)
	if err != nil {
		return nil, &DispatchError{Size: p.Size, Op: "allocate A", Err: err}
	}
	defer a.Release()

	if err := prog.Init.SetArgs(y, a, x); err != nil {
		return nil, &DispatchError{Size: p.Size, Op: "bind init", Err: err}
	}
	if _, err := r.dispatch(prog.Init); err != nil {
		return nil, &DispatchError{Size: p.Size, Op: "dispatch init", Err: err}
	}

	if err := prog.Mul.SetArgs(y, a, x); err != nil {
		return nil, &DispatchError{Size: p.Size, Op: "bind mul", Err: err}
	}

	sample := make(TrialSample, trials)
	for i := range sample {
		elapsed, err := r.dispatch(prog.Mul)
		if err != nil {
			return nil, &DispatchError{Size: p.Size, Op: fmt.Sprintf("trial %d", i), Err: err}
		}
		sample[i] = elapsed
	}
	return sample, nil
}

// dispatch enqueues k, blocks until it completes and returns its device time in seconds.
func (r *Runner) dispatch(k gpu.Kernel) (float64, error) {
	ev, err := r.ctx.Enqueue(k, r.Global, r.Local)
	if err != nil {
		return 0, err
	}
	defer ev.Release()

	if err := ev.Wait(); err != nil {
		return 0, err
	}
	start, end, err := ev.Profile()
	if err != nil {
		return 0, err
	}
	if end < start {
		return 0, fmt.Errorf("%w (start=%d end=%d)", errClockOrder, start, end)
	}
	return float64(end-start) * 1e-9, nil
}
