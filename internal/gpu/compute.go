package gpu

// Device is an enumerated compute device. Implementations are handles, so two
// Devices are the same device exactly when they compare equal with ==.
type Device interface {
	Info() DeviceInfo
}

// Chooser picks one device out of the enumerated list and returns its index.
type Chooser func(devices []Device) (int, error)

// Options configures platform bootstrap.
type Options struct {
	// PreferGPU restricts the candidate list to GPUs when at least one is present.
	PreferGPU bool
	// Verbose logs every enumerated device.
	Verbose bool
	// Choose is invoked once with the candidate list. Nil picks the first device.
	Choose Chooser
}

// NDRange is a two dimensional work extent.
type NDRange struct {
	X, Y int
}

// Count returns the number of work items covered by the range.
func (r NDRange) Count() int {
	return r.X * r.Y
}

// Context is the surface a backend exposes once a device and queue are bound.
type Context interface {
	// Build compiles the concatenated sources for the bound device. The build
	// log is returned even when err is non-nil.
	Build(sources []string) (Program, string, error)

	// NewBuffer allocates a read-write device buffer of the given byte size.
	NewBuffer(bytes int) (Buffer, error)

	// Enqueue submits k over the 2-D domain at offset (0,0). The returned event
	// completes asynchronously; callers must Wait before reading its profile.
	Enqueue(k Kernel, global, local NDRange) (Event, error)
}

var _ Context = (*Runtime)(nil)

// Program is a compiled program holding named kernels.
type Program interface {
	Kernel(name string) (Kernel, error)
	Release()
}

// Kernel is a program entry point with bound arguments.
type Kernel interface {
	Name() string
	SetArgs(args ...Buffer) error
	Release()
}

// Buffer is device memory.
type Buffer interface {
	Size() int
	Release()
}

// Event tracks one enqueued command.
type Event interface {
	Wait() error
	// Profile returns the device START and END timestamps in nanoseconds.
	Profile() (start, end uint64, err error)
	Release()
}
