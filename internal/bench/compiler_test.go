package bench

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompiler_Success(t *testing.T) {
	ctx := newFakeContext()
	ctx.buildLog = "warning: kernel not vectorized"

	prog, err := NewCompiler(ctx).Compile(ProblemSize{Size: 3, GridSize: 4}, []string{"a", "b"})
	require.NoError(t, err)
	defer prog.Release()

	assert.Equal(t, 3, prog.Size)
	assert.Equal(t, InitKernel, prog.Init.Name())
	assert.Equal(t, MulKernel, prog.Mul.Name())
	assert.Equal(t, "warning: kernel not vectorized", prog.Log, "log is kept on success")
	assert.Equal(t, [][]string{{"a", "b"}}, ctx.builds)
}

func TestCompiler_BuildFailure(t *testing.T) {
	ctx := newFakeContext()
	ctx.failBuildSize = 2

	_, err := NewCompiler(ctx).Compile(ProblemSize{Size: 2, GridSize: 4}, []string{"#define size 2\n"})

	var ce *CompileError
	require.True(t, errors.As(err, &ce), "want CompileError, got %v", err)
	assert.Equal(t, 2, ce.Size)
	assert.Contains(t, ce.Log, "expected ';'")
	assert.Contains(t, err.Error(), "expected ';'")
	assert.Empty(t, ctx.allocs, "no buffers after a failed build")
}

func TestCompiler_MissingEntryPoint(t *testing.T) {
	ctx := newFakeContext()
	ctx.missingKernel = MulKernel

	_, err := NewCompiler(ctx).Compile(ProblemSize{Size: 1, GridSize: 4}, []string{"x"})

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Err.Error(), "mul")
}
