package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwbudde/gridbench/internal/bench"
	"github.com/cwbudde/gridbench/internal/config"
	"github.com/cwbudde/gridbench/internal/gpu"
	"github.com/cwbudde/gridbench/internal/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withHostDevices(t *testing.T, infos ...gpu.DeviceInfo) {
	t.Helper()
	prevCL, prevHost := openOpenCL, openHost
	t.Cleanup(func() { openOpenCL, openHost = prevCL, prevHost })

	openOpenCL = func(gpu.Options) (*backend, error) { return nil, gpu.ErrNotBuilt }
	openHost = func(opts gpu.Options) (*backend, error) {
		rt, err := host.OpenDevices(opts, infos...)
		if err != nil {
			return nil, err
		}
		return &backend{Context: rt, Platform: rt.Platform, Device: rt.Device, Close: rt.Close}, nil
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func hostSweepConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Backend = backendHost
	cfg.OutputDir = t.TempDir()
	return cfg
}

func TestApplyArgs(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, applyArgs(&cfg, nil))
	assert.Equal(t, "float", cfg.Precision)
	assert.Equal(t, 40, cfg.MaxSize)
	assert.Equal(t, 50, cfg.Samples)

	require.NoError(t, applyArgs(&cfg, []string{"double", "12", "7"}))
	assert.Equal(t, "double", cfg.Precision)
	assert.Equal(t, 12, cfg.MaxSize)
	assert.Equal(t, 7, cfg.Samples)

	for _, args := range [][]string{{"half"}, {"float", "x"}, {"float", "4", "many"}} {
		c := config.Default()
		assert.Error(t, applyArgs(&c, args), "args %q", args)
	}
}

func TestApplyFlags_OnlyChanged(t *testing.T) {
	backendName, gridSize = "host", 8
	t.Cleanup(func() { backendName, gridSize = backendAuto, 4 })

	cfg := config.Default()
	applyFlags(&cfg, func(name string) bool { return name == "backend" })

	assert.Equal(t, "host", cfg.Backend)
	assert.Equal(t, 4, cfg.GridSize, "unchanged flag must not apply")
}

func TestNormalizeBackend(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", backendAuto},
		{" Auto ", backendAuto},
		{"gpu", backendOpenCL},
		{"CL", backendOpenCL},
		{"cpu", backendHost},
		{"cuda", "cuda"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, normalizeBackend(c.in), "normalizeBackend(%q)", c.in)
	}
}

func TestOpenBackend_AutoFallsBackToHost(t *testing.T) {
	withHostDevices(t, host.DefaultDevice())

	be, err := openBackend(backendAuto, gpu.Options{})
	require.NoError(t, err)
	defer be.Close()
	assert.Equal(t, host.PlatformName, be.Platform.Name)
}

func TestOpenBackend_SelectionErrorIsFatal(t *testing.T) {
	withHostDevices(t, host.DefaultDevice())
	openOpenCL = func(gpu.Options) (*backend, error) {
		return nil, &gpu.DeviceSelectionError{Candidates: 2}
	}

	_, err := openBackend(backendAuto, gpu.Options{})
	var selErr *gpu.DeviceSelectionError
	assert.ErrorAs(t, err, &selErr)
}

func TestOutputPath(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = "results"
	assert.Equal(t, filepath.Join("results", "out.nvidia-cuda.double.txt"), outputPath(cfg, "NVIDIA CUDA", bench.Double))

	cfg.Output = "fixed.tsv"
	assert.Equal(t, "fixed.tsv", outputPath(cfg, "NVIDIA CUDA", bench.Double))
}

func TestPlatformSlug(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Intel(R) OpenCL HD Graphics", "intel-r-opencl-hd-graphics"},
		{"AMD Accelerated Parallel Processing!", "amd-accelerated-parallel-processing"},
		{"Host", "host"},
		{"  ", "unknown"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, platformSlug(c.in), "platformSlug(%q)", c.in)
	}
}

func TestExecuteSweep_SingleSizeSingleSample(t *testing.T) {
	withHostDevices(t, host.DefaultDevice())

	cfg := hostSweepConfig(t)
	cfg.MaxSize = 1
	cfg.Samples = 1

	path, err := executeSweep(cfg, nil)
	require.NoError(t, err)

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, bench.ReportHeader, lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1\t"), "row %q should be size 1", lines[1])
	assert.Len(t, strings.Split(lines[1], "\t"), 5)
}

func TestExecuteSweep_DoubleWithoutFP64UsesFloat(t *testing.T) {
	noFP64 := host.DefaultDevice()
	noFP64.Extensions = nil
	withHostDevices(t, noFP64)

	cfg := hostSweepConfig(t)
	cfg.Precision = "double"
	cfg.MaxSize = 2
	cfg.Samples = 3

	path, err := executeSweep(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "out.host.float.txt"), path)
	assert.Len(t, readLines(t, path), 3)
}

func TestExecuteSweep_PrefersDoubleCapableDevice(t *testing.T) {
	noFP64 := host.DefaultDevice()
	noFP64.Name = "single only"
	noFP64.Extensions = nil
	withHostDevices(t, noFP64, host.DefaultDevice())

	cfg := hostSweepConfig(t)
	cfg.Precision = "double"
	cfg.MaxSize = 1
	cfg.Samples = 1

	path, err := executeSweep(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "out.host.double.txt", filepath.Base(path))
}

func TestExecuteSweep_BadKernelAborts(t *testing.T) {
	withHostDevices(t, host.DefaultDevice())

	cfg := hostSweepConfig(t)
	kernel := filepath.Join(cfg.OutputDir, "broken.cl")
	require.NoError(t, os.WriteFile(kernel, []byte("__kernel void init() {}\n"), 0644))
	cfg.MaxSize = 3
	cfg.Samples = 1
	cfg.KernelPath = kernel

	path, err := executeSweep(cfg, nil)
	var compileErr *bench.CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, 1, compileErr.Size)
	assert.Len(t, readLines(t, path), 1, "header only")
}

func TestNewLogger_JSONCarriesRunID(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "debug", false, "run-1").Debug("hello", "k", 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec), buf.String())
	assert.Equal(t, "run-1", rec["run_id"])
	assert.Equal(t, "hello", rec["msg"])
}

func TestNewLogger_TextOnTerminal(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "warn", true, "run-2").Info("dropped")
	assert.Zero(t, buf.Len(), "info logged at warn level")

	newLogger(&buf, "warn", true, "run-2").Warn("kept")
	assert.Contains(t, buf.String(), "run_id=run-2")
}

func TestPrintDevices(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printDevices(&buf, []gpu.PlatformInfo{host.Platform()}))

	out := buf.String()
	assert.Contains(t, out, "PLATFORM")
	assert.Contains(t, out, host.PlatformName)
	assert.Contains(t, out, "yes", "host device reports fp64")
}
