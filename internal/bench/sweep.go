package bench

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/gridbench/internal/gpu"
)

// Observer receives sweep progress. Implementations must not block.
type Observer interface {
	Compiled(size int, err error)
	Measured(prec Precision, report SizeReport)
}

// SweepOptions configures a sweep.
type SweepOptions struct {
	Precision Precision
	GridSize  int
	MaxSize   int
	Samples   int
	Local     gpu.NDRange
	Observer  Observer
}

// Sweep drives sizes 1..MaxSize through build, compile, run and report. It
// owns the report writer and the program of the size in progress; nothing
// carries over from one size to the next.
type Sweep struct {
	opts     SweepOptions
	builder  *SourceBuilder
	compiler *Compiler
	runner   *Runner
	report   *ReportWriter
	current  *CompiledProgram
}

// NewSweep wires a sweep over ctx.
func NewSweep(ctx gpu.Context, builder *SourceBuilder, report *ReportWriter, opts SweepOptions) *Sweep {
	return &Sweep{
		opts:     opts,
		builder:  builder,
		compiler: NewCompiler(ctx),
		runner:   NewRunner(ctx, opts.GridSize, opts.Local),
		report:   report,
	}
}

// Run executes the whole sweep. The first compile or dispatch failure ends it;
// rows already written stay in the report.
func (s *Sweep) Run() error {
	if s.opts.MaxSize < 1 {
		return fmt.Errorf("max size must be at least 1, got %d", s.opts.MaxSize)
	}
	if s.opts.GridSize < 1 {
		return fmt.Errorf("grid size must be at least 1, got %d", s.opts.GridSize)
	}

	slog.Info("Starting sweep",
		"precision", s.opts.Precision.String(),
		"samples", s.opts.Samples,
		"max_size", s.opts.MaxSize,
		"grid_size", s.opts.GridSize,
		"local_size", fmt.Sprintf("%dx%d", s.opts.Local.X, s.opts.Local.Y),
	)

	for size := 1; size <= s.opts.MaxSize; size++ {
		if err := s.step(size); err != nil {
			return err
		}
	}

	slog.Info("Sweep complete", "sizes", s.opts.MaxSize, "report", s.report.Path())
	return nil
}

func (s *Sweep) step(size int) error {
	p := ProblemSize{Size: size, GridSize: s.opts.GridSize}

	prog, err := s.compiler.Compile(p, s.builder.Fragments(s.opts.Precision, p))
	if s.opts.Observer != nil {
		s.opts.Observer.Compiled(size, err)
	}
	if err != nil {
		return err
	}
	s.current = prog
	defer func() {
		s.current.Release()
		s.current = nil
	}()

	sample, err := s.runner.Run(prog, p, s.opts.Precision, s.opts.Samples)
	if err != nil {
		return err
	}

	report := Summarize(size, sample)
	if err := s.report.Write(report); err != nil {
		return fmt.Errorf("size %d: %w", size, err)
	}
	if s.opts.Observer != nil {
		s.opts.Observer.Measured(s.opts.Precision, report)
	}

	stddev, median := Spread(sample)
	slog.Info("Size measured",
		"size", size,
		"min", report.Min,
		"avg", report.Avg,
		"max", report.Max,
		"stddev", stddev,
		"median", median,
	)
	return nil
}
