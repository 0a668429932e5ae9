package gpu

import (
	"errors"
	"fmt"
	"slices"
)

// ErrNoDevices indicates that no usable OpenCL devices were found.
var ErrNoDevices = errors.New("no OpenCL devices found")

// ErrNotBuilt indicates the binary was built without GPU support.
var ErrNotBuilt = errors.New("opencl support requires building with '-tags gpu'")

// DeviceSelectionError reports that the ranked best device could not be found
// again in the original enumeration. It means device equality is broken and is
// never recoverable.
type DeviceSelectionError struct {
	Candidates int
}

func (e *DeviceSelectionError) Error() string {
	return fmt.Sprintf("device selection: best device not found among %d candidates", e.Candidates)
}

// SelectBest ranks devices by capable, capable devices first, and returns the
// index of the best one within devices. Ties keep enumeration order. The
// ranking runs on a copy; the returned index always refers to the caller's slice.
func SelectBest[D comparable](devices []D, capable func(D) bool) (int, error) {
	if len(devices) == 0 {
		return -1, ErrNoDevices
	}

	ranked := slices.Clone(devices)
	slices.SortStableFunc(ranked, func(a, b D) int {
		ca, cb := capable(a), capable(b)
		switch {
		case ca && !cb:
			return -1
		case cb && !ca:
			return 1
		default:
			return 0
		}
	})
	best := ranked[0]

	for i, d := range devices {
		if d == best {
			return i, nil
		}
	}
	return -1, &DeviceSelectionError{Candidates: len(devices)}
}

// DoubleCapable is a Chooser that picks the best device for double precision.
func DoubleCapable(devices []Device) (int, error) {
	return SelectBest(devices, func(d Device) bool {
		return d.Info().SupportsDouble()
	})
}
