// Package host runs the benchmark kernels on the CPU through gonum BLAS. It
// stands in for an OpenCL device when none is available and mirrors the
// OpenCL runtime's build, buffer and dispatch surface.
package host

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/cwbudde/gridbench/internal/gpu"
)

// PlatformName is the platform name reported by the host backend.
const PlatformName = "Host"

// DefaultDevice describes the single host device.
func DefaultDevice() gpu.DeviceInfo {
	return gpu.DeviceInfo{
		Name:            "gonum BLAS",
		Vendor:          "gonum",
		Version:         "host 1.2",
		Type:            gpu.DeviceTypeCPU,
		MaxComputeUnits: uint32(runtime.NumCPU()),
		Extensions:      []string{gpu.ExtensionFP64},
	}
}

// Platform returns the host platform with its device list.
func Platform() gpu.PlatformInfo {
	return gpu.PlatformInfo{
		Name:    PlatformName,
		Vendor:  "gonum",
		Version: "host",
		Devices: []gpu.DeviceInfo{DefaultDevice()},
	}
}

var _ gpu.Context = (*Runtime)(nil)

type device struct {
	info gpu.DeviceInfo
}

func (d *device) Info() gpu.DeviceInfo { return d.info }

// Runtime executes programs on the calling goroutine. Profiling timestamps are
// nanoseconds on the monotonic clock since the runtime was created.
type Runtime struct {
	Platform gpu.PlatformInfo
	Device   gpu.DeviceInfo
	epoch    time.Time
}

// Open bootstraps the host platform. PreferGPU has no effect since the host
// exposes only a CPU device.
func Open(opts gpu.Options) (*Runtime, error) {
	return OpenDevices(opts, DefaultDevice())
}

// OpenDevices bootstraps a host platform exposing the given devices.
func OpenDevices(opts gpu.Options, infos ...gpu.DeviceInfo) (*Runtime, error) {
	if len(infos) == 0 {
		return nil, gpu.ErrNoDevices
	}
	candidates := make([]gpu.Device, len(infos))
	for i, info := range infos {
		candidates[i] = &device{info: info}
	}

	if opts.Verbose {
		for i, d := range candidates {
			slog.Info("Host device",
				"index", i,
				"device", d.Info().Name,
				"fp64", d.Info().SupportsDouble(),
			)
		}
	}

	idx := 0
	if opts.Choose != nil {
		var err error
		idx, err = opts.Choose(candidates)
		if err != nil {
			return nil, err
		}
	}
	if idx < 0 || idx >= len(candidates) {
		return nil, fmt.Errorf("device index %d out of range [0,%d)", idx, len(candidates))
	}

	platform := Platform()
	platform.Devices = infos
	return &Runtime{
		Platform: platform,
		Device:   candidates[idx].Info(),
		epoch:    time.Now(),
	}, nil
}

// Close is a no-op; host buffers are garbage collected.
func (r *Runtime) Close() {}

func (r *Runtime) now() uint64 {
	return uint64(time.Since(r.epoch).Nanoseconds())
}
