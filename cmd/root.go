package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/cwbudde/gridbench/internal/bench"
	"github.com/cwbudde/gridbench/internal/config"
	"github.com/cwbudde/gridbench/internal/gpu"
	"github.com/cwbudde/gridbench/internal/metrics"
	"github.com/cwbudde/gridbench/res"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var (
	logLevel string
	logger   *slog.Logger

	configPath  string
	backendName string
	preferGPU   bool
	gridSize    int
	localSize   []int
	kernelPath  string
	verbose     bool

	outPath     string
	outDir      string
	metricsFile string
)

var rootCmd = &cobra.Command{
	Use:   "gridbench [precision [maxsize [samples]]]",
	Short: "Time a size-specialised mat-vec kernel over a sweep of problem sizes",
	Long: `gridbench compiles the grid-mul kernel once per problem size 1..maxsize,
times repeated dispatches of its mul entry point with device profiling and
writes min/avg/max plus every sample to a tab-separated report.

precision is float or double (default float); double falls back to float when
the selected device lacks cl_khr_fp64. maxsize defaults to 40, samples to 50.`,
	Args: cobra.MaximumNArgs(3),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = setupLogger(logLevel)
		slog.SetDefault(logger)
	},
	RunE: runSweep,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&configPath, "config", "", "YAML config file")
	pf.StringVar(&backendName, "backend", backendAuto, "Compute backend: auto, opencl, host")
	pf.BoolVar(&preferGPU, "prefer-gpu", true, "Only consider GPU devices when any are present")
	pf.IntVar(&gridSize, "grid-size", 4, "Cells per grid dimension")
	pf.IntSliceVar(&localSize, "local-size", []int{4, 4}, "Local work-group size X,Y (0,0 lets the runtime choose)")
	pf.StringVar(&kernelPath, "kernel", "", "Kernel template path (default: embedded grid-mul.cl)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Log every enumerated device")

	f := rootCmd.Flags()
	f.StringVar(&outPath, "out", "", "Report path (default: <out-dir>/out.<platform>.<precision>.txt)")
	f.StringVar(&outDir, "out-dir", ".", "Directory for the default report name")
	f.StringVar(&metricsFile, "metrics-file", "", "Write prometheus metrics in text format to this file on exit")
}

// resolveConfig layers defaults, the config file, changed flags and positional
// arguments, in that order.
func resolveConfig(cmd *cobra.Command, args []string) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return cfg, err
		}
	}

	applyFlags(&cfg, cmd.Flags().Changed)
	if err := applyArgs(&cfg, args); err != nil {
		return cfg, err
	}

	cfg.Backend = normalizeBackend(cfg.Backend)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, changed func(string) bool) {
	if changed("backend") {
		cfg.Backend = backendName
	}
	if changed("prefer-gpu") {
		cfg.PreferGPU = preferGPU
	}
	if changed("grid-size") {
		cfg.GridSize = gridSize
	}
	if changed("local-size") {
		cfg.LocalSize = localSize
	}
	if changed("kernel") {
		cfg.KernelPath = kernelPath
	}
	if changed("verbose") {
		cfg.Verbose = verbose
	}
	if changed("out") {
		cfg.Output = outPath
	}
	if changed("out-dir") {
		cfg.OutputDir = outDir
	}
	if changed("metrics-file") {
		cfg.MetricsFile = metricsFile
	}
}

// applyArgs reads precision, maxsize and samples from the positional arguments.
func applyArgs(cfg *config.Config, args []string) error {
	if len(args) > 0 {
		prec, err := bench.ParsePrecision(args[0])
		if err != nil {
			return err
		}
		cfg.Precision = prec.String()
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("maxsize %q: %w", args[1], err)
		}
		cfg.MaxSize = n
	}
	if len(args) > 2 {
		n, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("samples %q: %w", args[2], err)
		}
		cfg.Samples = n
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	if cfg.MetricsFile != "" {
		atexit.Register(func() {
			if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
				slog.Error("Failed to write metrics", "path", cfg.MetricsFile, "error", err)
				return
			}
			slog.Info("Metrics written", "path", cfg.MetricsFile)
		})
	}

	_, err = executeSweep(cfg, recorder)
	return err
}

// executeSweep opens the backend, resolves precision against the chosen device
// and runs the sweep. It returns the report path, which is set even when the
// sweep aborts after the report was created.
func executeSweep(cfg config.Config, observer bench.Observer) (string, error) {
	requested, err := bench.ParsePrecision(cfg.Precision)
	if err != nil {
		return "", err
	}

	be, err := openBackend(cfg.Backend, gpu.Options{
		PreferGPU: cfg.PreferGPU,
		Verbose:   cfg.Verbose,
		Choose:    gpu.DoubleCapable,
	})
	if err != nil {
		return "", fmt.Errorf("failed to open backend: %w", err)
	}
	defer be.Close()

	prec := bench.ResolvePrecision(requested, be.Device)
	if prec != requested {
		slog.Warn("Device lacks double precision, using float",
			"device", be.Device.Name,
			"extension", gpu.ExtensionFP64,
		)
	}

	builder, err := loadTemplate(cfg.KernelPath)
	if err != nil {
		return "", err
	}

	path := outputPath(cfg, be.Platform.Name, prec)
	report, err := bench.CreateReport(path)
	if err != nil {
		return "", err
	}
	defer report.Close()

	slog.Info("Selected device",
		"platform", be.Platform.Name,
		"device", be.Device.Name,
		"precision", prec.String(),
		"samples", cfg.Samples,
		"max_size", cfg.MaxSize,
		"report", path,
	)

	sweep := bench.NewSweep(be.Context, builder, report, bench.SweepOptions{
		Precision: prec,
		GridSize:  cfg.GridSize,
		MaxSize:   cfg.MaxSize,
		Samples:   cfg.Samples,
		Local:     gpu.NDRange{X: cfg.LocalSize[0], Y: cfg.LocalSize[1]},
		Observer:  observer,
	})
	if err := sweep.Run(); err != nil {
		return path, err
	}
	return path, report.Close()
}

func loadTemplate(path string) (*bench.SourceBuilder, error) {
	if path == "" {
		return bench.NewSourceBuilder(res.FS, res.GridMulPath)
	}
	return bench.NewSourceBuilder(os.DirFS(filepath.Dir(path)), filepath.Base(path))
}

// outputPath returns cfg.Output when set, otherwise out.<platform>.<precision>.txt
// inside cfg.OutputDir.
func outputPath(cfg config.Config, platform string, prec bench.Precision) string {
	if cfg.Output != "" {
		return cfg.Output
	}
	name := fmt.Sprintf("out.%s.%s.txt", platformSlug(platform), prec)
	return filepath.Join(cfg.OutputDir, name)
}

// platformSlug lowercases name and collapses runs of other characters to '-'.
func platformSlug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "unknown"
	}
	return slug
}
