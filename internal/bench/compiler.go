package bench

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/cwbudde/gridbench/internal/gpu"
	"github.com/zeebo/xxh3"
)

// Kernel entry points every template must define.
const (
	InitKernel = "init"
	MulKernel  = "mul"
)

// CompiledProgram is a program specialised for one problem size.
type CompiledProgram struct {
	Size int
	Init gpu.Kernel
	Mul  gpu.Kernel
	// Log is the compiler output, kept even on success for warnings.
	Log string

	program gpu.Program
}

// Release frees the kernels and the program.
func (p *CompiledProgram) Release() {
	if p == nil {
		return
	}
	if p.Init != nil {
		p.Init.Release()
		p.Init = nil
	}
	if p.Mul != nil {
		p.Mul.Release()
		p.Mul = nil
	}
	if p.program != nil {
		p.program.Release()
		p.program = nil
	}
}

// Compiler builds size-specialised programs against one context.
type Compiler struct {
	ctx gpu.Context
}

// NewCompiler binds a compiler to ctx.
func NewCompiler(ctx gpu.Context) *Compiler {
	return &Compiler{ctx: ctx}
}

// Compile builds fragments for p and resolves the init and mul entry points.
// The build log is written to the diagnostic log whether or not the build
// succeeds. Failures are returned as *CompileError.
func (c *Compiler) Compile(p ProblemSize, fragments []string) (*CompiledProgram, error) {
	hash := fmt.Sprintf("%016x", xxh3.HashString(strings.Join(fragments, "")))

	program, buildLog, err := c.ctx.Build(fragments)
	logBuild(p.Size, hash, buildLog, err)
	if err != nil {
		return nil, &CompileError{Size: p.Size, Log: buildLog, Err: err}
	}

	compiled := &CompiledProgram{Size: p.Size, Log: buildLog, program: program}

	compiled.Init, err = program.Kernel(InitKernel)
	if err != nil {
		compiled.Release()
		return nil, &CompileError{Size: p.Size, Log: buildLog, Err: err}
	}
	compiled.Mul, err = program.Kernel(MulKernel)
	if err != nil {
		compiled.Release()
		return nil, &CompileError{Size: p.Size, Log: buildLog, Err: err}
	}

	return compiled, nil
}

func logBuild(size int, hash, buildLog string, err error) {
	attrs := []any{"size", size, "source_hash", hash}
	switch {
	case err != nil:
		slog.Error("OpenCL build failed", append(attrs, "err", err, "log", buildLog)...)
	case buildLog != "":
		// Successful builds may still warn, e.g. "kernel not vectorized".
		slog.Warn("OpenCL build log", append(attrs, "log", buildLog)...)
	default:
		slog.Debug("Program built", attrs...)
	}
}
