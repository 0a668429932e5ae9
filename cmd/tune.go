package main

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/gridbench/internal/bench"
	"github.com/cwbudde/gridbench/internal/gpu"
	"github.com/cwbudde/gridbench/internal/opt"
	"github.com/cwbudde/gridbench/internal/tune"
	"github.com/spf13/cobra"
)

var (
	tunePrecision string
	tuneSize      int
	tuneTrials    int
	tuneIters     int
	tunePop       int
	tuneSeed      int64
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Search for the fastest local work-group size",
	Long: `Compiles the kernel for one problem size and searches local work-group
sizes drawn from the divisors of the grid size with the mayfly optimizer,
scoring each by the mean of a short timed run.`,
	Args: cobra.NoArgs,
	RunE: runTune,
}

func init() {
	tuneCmd.Flags().StringVar(&tunePrecision, "precision", "float", "Numeric type: float or double")
	tuneCmd.Flags().IntVar(&tuneSize, "size", 8, "Problem size to tune at")
	tuneCmd.Flags().IntVar(&tuneTrials, "trials", 10, "Timed dispatches per candidate")
	tuneCmd.Flags().IntVar(&tuneIters, "iters", 10, "Optimizer iterations")
	tuneCmd.Flags().IntVar(&tunePop, "pop", opt.MinPopulation, "Optimizer population size")
	tuneCmd.Flags().Int64Var(&tuneSeed, "seed", 42, "Random seed")

	rootCmd.AddCommand(tuneCmd)
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, nil)
	if err != nil {
		return err
	}
	requested, err := bench.ParsePrecision(tunePrecision)
	if err != nil {
		return err
	}

	be, err := openBackend(cfg.Backend, gpu.Options{
		PreferGPU: cfg.PreferGPU,
		Verbose:   cfg.Verbose,
		Choose:    gpu.DoubleCapable,
	})
	if err != nil {
		return fmt.Errorf("failed to open backend: %w", err)
	}
	defer be.Close()

	builder, err := loadTemplate(cfg.KernelPath)
	if err != nil {
		return err
	}

	prec := bench.ResolvePrecision(requested, be.Device)
	tuner := tune.New(be.Context, builder, opt.NewMayfly(tuneIters, tunePop, tuneSeed), tune.Options{
		Precision: prec,
		GridSize:  cfg.GridSize,
		Size:      tuneSize,
		Trials:    tuneTrials,
	})

	result, err := tuner.Run()
	if err != nil {
		return err
	}

	slog.Info("Tuning complete",
		"device", be.Device.Name,
		"precision", prec.String(),
		"local_size", fmt.Sprintf("%dx%d", result.Local.X, result.Local.Y),
		"avg", result.Avg,
		"evaluated", result.Evaluated,
	)
	fmt.Fprintf(cmd.OutOrStdout(), "--local-size %d,%d\t# avg %.3gs over %d candidates\n",
		result.Local.X, result.Local.Y, result.Avg, result.Evaluated)
	return nil
}
