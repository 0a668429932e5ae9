package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cwbudde/gridbench/internal/gpu"
	"github.com/cwbudde/gridbench/internal/host"
)

const (
	backendAuto   = "auto"
	backendOpenCL = "opencl"
	backendHost   = "host"
)

// normalizeBackend maps user input to a canonical backend name. Unknown names
// are returned unchanged so validation can reject them.
func normalizeBackend(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return backendAuto
	case "gpu", "opencl", "cl":
		return backendOpenCL
	case "cpu", "host":
		return backendHost
	default:
		return name
	}
}

// backend is an opened compute context and the device it is bound to.
type backend struct {
	Context  gpu.Context
	Platform gpu.PlatformInfo
	Device   gpu.DeviceInfo
	Close    func()
}

// Bootstrap hooks; tests swap them for fixed device lists.
var (
	openOpenCL = func(opts gpu.Options) (*backend, error) {
		rt, err := gpu.Open(opts)
		if err != nil {
			return nil, err
		}
		return &backend{Context: rt, Platform: rt.Platform, Device: rt.Device, Close: rt.Close}, nil
	}
	openHost = func(opts gpu.Options) (*backend, error) {
		rt, err := host.Open(opts)
		if err != nil {
			return nil, err
		}
		return &backend{Context: rt, Platform: rt.Platform, Device: rt.Device, Close: rt.Close}, nil
	}
)

// openBackend opens the named backend. auto tries OpenCL first and falls back
// to the host backend unless device selection itself failed.
func openBackend(name string, opts gpu.Options) (*backend, error) {
	switch normalizeBackend(name) {
	case backendOpenCL:
		return openOpenCL(opts)
	case backendHost:
		return openHost(opts)
	case backendAuto:
		b, err := openOpenCL(opts)
		if err == nil {
			return b, nil
		}
		var selErr *gpu.DeviceSelectionError
		if errors.As(err, &selErr) {
			return nil, err
		}
		slog.Warn("OpenCL unavailable, falling back to host backend", "error", err)
		return openHost(opts)
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}
