package bench

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cwbudde/gridbench/internal/gpu"
)

// fakeContext is an in-memory gpu.Context whose kernels take a scripted time.
type fakeContext struct {
	failBuildSize int
	buildLog      string
	missingKernel string
	failEnqueueAt int
	skewAt        int
	duration      func(n int) uint64

	builds   [][]string
	allocs   []int
	live     int
	dispatch []string
	clock    uint64
}

func newFakeContext() *fakeContext {
	return &fakeContext{
		failEnqueueAt: -1,
		skewAt:        -1,
		duration:      func(n int) uint64 { return uint64(1000 + n) },
	}
}

func (c *fakeContext) Build(sources []string) (gpu.Program, string, error) {
	c.builds = append(c.builds, sources)
	if c.failBuildSize > 0 && strings.Contains(strings.Join(sources, ""), fmt.Sprintf("#define size %d\n", c.failBuildSize)) {
		return nil, "error: expected ';' after expression", errors.New("clBuildProgram: CL_BUILD_PROGRAM_FAILURE (-11)")
	}
	return &fakeProgram{ctx: c}, c.buildLog, nil
}

func (c *fakeContext) NewBuffer(bytes int) (gpu.Buffer, error) {
	c.allocs = append(c.allocs, bytes)
	c.live++
	return &fakeBuffer{ctx: c, size: bytes}, nil
}

func (c *fakeContext) Enqueue(k gpu.Kernel, global, local gpu.NDRange) (gpu.Event, error) {
	n := len(c.dispatch)
	c.dispatch = append(c.dispatch, k.Name())
	if n == c.failEnqueueAt {
		return nil, errors.New("clEnqueueNDRangeKernel: CL_OUT_OF_RESOURCES (-5)")
	}
	start := c.clock
	end := start + c.duration(n)
	if n == c.skewAt {
		end = start - 1
	}
	c.clock = end + 10
	return &fakeEvent{start: start, end: end}, nil
}

type fakeProgram struct {
	ctx *fakeContext
}

func (p *fakeProgram) Kernel(name string) (gpu.Kernel, error) {
	if name == p.ctx.missingKernel {
		return nil, fmt.Errorf("clCreateKernel(%s): CL_INVALID_KERNEL_NAME (-46)", name)
	}
	return &fakeKernel{name: name}, nil
}

func (p *fakeProgram) Release() {}

type fakeKernel struct {
	name string
	args []gpu.Buffer
}

func (k *fakeKernel) Name() string { return k.name }

func (k *fakeKernel) SetArgs(args ...gpu.Buffer) error {
	k.args = args
	return nil
}

func (k *fakeKernel) Release() {}

type fakeBuffer struct {
	ctx  *fakeContext
	size int
}

func (b *fakeBuffer) Size() int { return b.size }

func (b *fakeBuffer) Release() { b.ctx.live-- }

type fakeEvent struct {
	start, end uint64
}

func (e *fakeEvent) Wait() error { return nil }

func (e *fakeEvent) Profile() (uint64, uint64, error) { return e.start, e.end, nil }

func (e *fakeEvent) Release() {}
