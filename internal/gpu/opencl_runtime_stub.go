//go:build !gpu

package gpu

// Runtime is a placeholder when GPU support is not compiled.
type Runtime struct {
	Platform PlatformInfo
	Device   DeviceInfo
}

// Open returns an error when GPU support is not compiled in.
func Open(_ Options) (*Runtime, error) {
	return nil, ErrNotBuilt
}

// Close is a no-op without GPU support.
func (r *Runtime) Close() {}

func (r *Runtime) Build(_ []string) (Program, string, error) { return nil, "", ErrNotBuilt }

func (r *Runtime) NewBuffer(_ int) (Buffer, error) { return nil, ErrNotBuilt }

func (r *Runtime) Enqueue(_ Kernel, _, _ NDRange) (Event, error) { return nil, ErrNotBuilt }

// EnumeratePlatforms returns an error when GPU support is not compiled in.
func EnumeratePlatforms() ([]PlatformInfo, error) {
	return nil, ErrNotBuilt
}
