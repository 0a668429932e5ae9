package gpu

// DeviceType describes the class of an OpenCL device.
type DeviceType string

const (
	DeviceTypeGPU         DeviceType = "GPU"
	DeviceTypeCPU         DeviceType = "CPU"
	DeviceTypeAccelerator DeviceType = "Accelerator"
	DeviceTypeDefault     DeviceType = "Default"
	DeviceTypeUnknown     DeviceType = "Unknown"
)

// ExtensionFP64 is the extension a device must list to run double precision kernels.
const ExtensionFP64 = "cl_khr_fp64"

// DeviceInfo captures metadata about an OpenCL device.
type DeviceInfo struct {
	Name            string
	Vendor          string
	Version         string
	Type            DeviceType
	MaxComputeUnits uint32
	Extensions      []string
}

// HasExtension reports whether ext is in the device's extension set.
func (d DeviceInfo) HasExtension(ext string) bool {
	for _, e := range d.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// SupportsDouble reports whether the device can compile double precision kernels.
func (d DeviceInfo) SupportsDouble() bool {
	return d.HasExtension(ExtensionFP64)
}

// PlatformInfo captures metadata about an OpenCL platform and its devices.
type PlatformInfo struct {
	Name    string
	Vendor  string
	Version string
	Devices []DeviceInfo
}
