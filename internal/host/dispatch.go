package host

import (
	"errors"
	"fmt"

	"github.com/cwbudde/gridbench/internal/gpu"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"
)

// ErrWorkGroupSize mirrors CL_INVALID_WORK_GROUP_SIZE.
var ErrWorkGroupSize = errors.New("invalid work-group size")

type event struct {
	start, end uint64
}

func (e *event) Wait() error { return nil }

func (e *event) Profile() (uint64, uint64, error) { return e.start, e.end, nil }

func (e *event) Release() {}

// Enqueue runs k to completion before returning. Work items outside the
// gridsize x gridsize domain do nothing, as in the OpenCL kernels.
func (r *Runtime) Enqueue(k gpu.Kernel, global, local gpu.NDRange) (gpu.Event, error) {
	hk, ok := k.(*kernel)
	if !ok {
		return nil, fmt.Errorf("kernel %T not created by the host runtime", k)
	}
	if hk.args == nil {
		return nil, fmt.Errorf("kernel %s: arguments not set", hk.name)
	}
	for _, b := range hk.args {
		if b.words == nil {
			return nil, fmt.Errorf("kernel %s: argument buffer released", hk.name)
		}
	}
	if global.X < 1 || global.Y < 1 {
		return nil, fmt.Errorf("invalid global size %dx%d", global.X, global.Y)
	}
	if local.X > 0 && local.Y > 0 && (global.X%local.X != 0 || global.Y%local.Y != 0) {
		return nil, fmt.Errorf("%w: local %dx%d does not divide global %dx%d",
			ErrWorkGroupSize, local.X, local.Y, global.X, global.Y)
	}

	start := r.now()
	if err := hk.run(global); err != nil {
		return nil, err
	}
	end := r.now()
	return &event{start: start, end: end}, nil
}

func (k *kernel) run(global gpu.NDRange) error {
	p := k.prog
	y, a, x := k.args[0], k.args[1], k.args[2]

	for j := 0; j < global.Y; j++ {
		for i := 0; i < global.X; i++ {
			if i >= p.gridSize || j >= p.gridSize {
				continue
			}
			cell := i + p.gridSize*j
			switch {
			case k.name == "init" && p.elemSize == 4:
				initCell(y.float32s(), a.float32s(), x.float32s(), cell, p.size)
			case k.name == "init":
				initCell(y.float64s(), a.float64s(), x.float64s(), cell, p.size)
			case k.name == "mul" && p.elemSize == 4:
				mulCell32(y.float32s(), a.float32s(), x.float32s(), cell, p.size)
			case k.name == "mul":
				mulCell64(y.float64s(), a.float64s(), x.float64s(), cell, p.size)
			default:
				return fmt.Errorf("kernel %s has no host implementation", k.name)
			}
		}
	}
	return nil
}

// initCell sets x to ones, y to zero and A to a diagonally dominant block.
func initCell[T float32 | float64](y, a, x []T, cell, size int) {
	xc := x[cell*size : (cell+1)*size]
	yc := y[cell*size : (cell+1)*size]
	ac := a[cell*size*size : (cell+1)*size*size]
	for r := 0; r < size; r++ {
		xc[r] = 1
		yc[r] = 0
		for c := 0; c < size; c++ {
			if r == c {
				ac[r*size+c] = 2
			} else {
				ac[r*size+c] = 1 / T(size)
			}
		}
	}
}

func mulCell32(y, a, x []float32, cell, size int) {
	blas32.Gemv(blas.NoTrans, 1,
		blas32.General{Rows: size, Cols: size, Stride: size, Data: a[cell*size*size : (cell+1)*size*size]},
		blas32.Vector{N: size, Inc: 1, Data: x[cell*size : (cell+1)*size]},
		0,
		blas32.Vector{N: size, Inc: 1, Data: y[cell*size : (cell+1)*size]},
	)
}

func mulCell64(y, a, x []float64, cell, size int) {
	blas64.Gemv(blas.NoTrans, 1,
		blas64.General{Rows: size, Cols: size, Stride: size, Data: a[cell*size*size : (cell+1)*size*size]},
		blas64.Vector{N: size, Inc: 1, Data: x[cell*size : (cell+1)*size]},
		0,
		blas64.Vector{N: size, Inc: 1, Data: y[cell*size : (cell+1)*size]},
	)
}
