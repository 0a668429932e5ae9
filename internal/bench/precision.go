package bench

import (
	"fmt"
	"strings"

	"github.com/cwbudde/gridbench/internal/gpu"
)

// Precision selects the kernel's working numeric type.
type Precision int

const (
	Single Precision = iota
	Double
)

// ParsePrecision maps a numeric type name to a Precision.
func ParsePrecision(name string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "float", "single", "float32":
		return Single, nil
	case "double", "float64":
		return Double, nil
	default:
		return Single, fmt.Errorf("unknown precision %q (want float or double)", name)
	}
}

// String returns the OpenCL C type name.
func (p Precision) String() string {
	if p == Double {
		return "double"
	}
	return "float"
}

// Size returns the byte width of one element.
func (p Precision) Size() int {
	if p == Double {
		return 8
	}
	return 4
}

// ResolvePrecision downgrades a double request to Single when the device lacks
// the fp64 extension.
func ResolvePrecision(requested Precision, device gpu.DeviceInfo) Precision {
	if requested == Double && device.SupportsDouble() {
		return Double
	}
	return Single
}
