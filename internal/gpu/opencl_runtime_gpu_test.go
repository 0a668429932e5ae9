//go:build gpu

package gpu_test

import (
	"testing"

	"github.com/cwbudde/gridbench/internal/bench"
	"github.com/cwbudde/gridbench/internal/gpu"
	"github.com/cwbudde/gridbench/res"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRuntime(t *testing.T, opts gpu.Options) *gpu.Runtime {
	t.Helper()
	rt, err := gpu.Open(opts)
	if err != nil {
		t.Skipf("OpenCL device unavailable: %v", err)
	}
	t.Cleanup(rt.Close)
	return rt
}

func gridMulFragments(t *testing.T, p bench.ProblemSize) []string {
	t.Helper()
	builder, err := bench.NewSourceBuilder(res.FS, res.GridMulPath)
	require.NoError(t, err)
	return builder.Fragments(bench.Single, p)
}

// bindGridMul builds the template for p and binds fresh y, A, x buffers to
// both kernels.
func bindGridMul(t *testing.T, rt *gpu.Runtime, p bench.ProblemSize) (initK, mulK gpu.Kernel) {
	t.Helper()
	prog, log, err := rt.Build(gridMulFragments(t, p))
	require.NoError(t, err, log)
	t.Cleanup(prog.Release)

	elem := bench.Single.Size()
	y, err := rt.NewBuffer(p.VectorLen() * elem)
	require.NoError(t, err)
	t.Cleanup(y.Release)
	a, err := rt.NewBuffer(p.MatrixLen() * elem)
	require.NoError(t, err)
	t.Cleanup(a.Release)
	x, err := rt.NewBuffer(p.VectorLen() * elem)
	require.NoError(t, err)
	t.Cleanup(x.Release)

	initK, err = prog.Kernel(bench.InitKernel)
	require.NoError(t, err)
	t.Cleanup(initK.Release)
	mulK, err = prog.Kernel(bench.MulKernel)
	require.NoError(t, err)
	t.Cleanup(mulK.Release)

	require.NoError(t, initK.SetArgs(y, a, x))
	require.NoError(t, mulK.SetArgs(y, a, x))
	return initK, mulK
}

func dispatch(t *testing.T, rt *gpu.Runtime, k gpu.Kernel, global, local gpu.NDRange) (start, end uint64) {
	t.Helper()
	ev, err := rt.Enqueue(k, global, local)
	require.NoError(t, err)
	defer ev.Release()

	require.NoError(t, ev.Wait())
	start, end, err = ev.Profile()
	require.NoError(t, err)
	return start, end
}

func TestRuntime_BuildFailureReturnsLog(t *testing.T) {
	rt := openRuntime(t, gpu.Options{})

	sources := append(gridMulFragments(t, bench.ProblemSize{Size: 1, GridSize: 4}),
		"__kernel void broken(__global real* y) { y[0] = undeclared_name; }\n")
	prog, log, err := rt.Build(sources)

	assert.Error(t, err)
	assert.Nil(t, prog)
	assert.NotEmpty(t, log, "build log must accompany a failed build")
}

func TestRuntime_ProfiledDispatch(t *testing.T) {
	rt := openRuntime(t, gpu.Options{})
	p := bench.ProblemSize{Size: 3, GridSize: 4}
	initK, mulK := bindGridMul(t, rt, p)

	global := gpu.NDRange{X: p.GridSize, Y: p.GridSize}
	local := gpu.NDRange{X: 2, Y: 2}
	dispatch(t, rt, initK, global, local)

	for i := 0; i < 3; i++ {
		start, end := dispatch(t, rt, mulK, global, local)
		assert.GreaterOrEqual(t, end, start, "trial %d", i)
	}
}

func TestRuntime_ZeroLocalRangeLetsRuntimeChoose(t *testing.T) {
	rt := openRuntime(t, gpu.Options{})
	p := bench.ProblemSize{Size: 2, GridSize: 4}
	initK, mulK := bindGridMul(t, rt, p)

	global := gpu.NDRange{X: p.GridSize, Y: p.GridSize}
	dispatch(t, rt, initK, global, gpu.NDRange{})
	start, end := dispatch(t, rt, mulK, global, gpu.NDRange{})
	assert.GreaterOrEqual(t, end, start)
}

func TestRuntime_DoubleCapableChooserBindsChosenDevice(t *testing.T) {
	var chosen gpu.DeviceInfo
	var anyFP64 bool
	rt := openRuntime(t, gpu.Options{
		Choose: func(devices []gpu.Device) (int, error) {
			idx, err := gpu.DoubleCapable(devices)
			if err != nil {
				return idx, err
			}
			for _, d := range devices {
				anyFP64 = anyFP64 || d.Info().SupportsDouble()
			}
			chosen = devices[idx].Info()
			return idx, nil
		},
	})

	assert.Equal(t, chosen, rt.Device)
	assert.Equal(t, anyFP64, rt.Device.SupportsDouble(), "fp64 device preferred when one exists")
}
