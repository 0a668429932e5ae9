//go:build gpu

package gpu

/*
#cgo LDFLAGS: -lOpenCL
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#include <CL/cl.h>
#include <stdlib.h>

static const char* gridbench_cl_error_string(cl_int status) {
	switch (status) {
	case CL_SUCCESS: return "CL_SUCCESS";
	case CL_DEVICE_NOT_FOUND: return "CL_DEVICE_NOT_FOUND";
	case CL_DEVICE_NOT_AVAILABLE: return "CL_DEVICE_NOT_AVAILABLE";
	case CL_COMPILER_NOT_AVAILABLE: return "CL_COMPILER_NOT_AVAILABLE";
	case CL_MEM_OBJECT_ALLOCATION_FAILURE: return "CL_MEM_OBJECT_ALLOCATION_FAILURE";
	case CL_OUT_OF_RESOURCES: return "CL_OUT_OF_RESOURCES";
	case CL_OUT_OF_HOST_MEMORY: return "CL_OUT_OF_HOST_MEMORY";
	case CL_PROFILING_INFO_NOT_AVAILABLE: return "CL_PROFILING_INFO_NOT_AVAILABLE";
	case CL_BUILD_PROGRAM_FAILURE: return "CL_BUILD_PROGRAM_FAILURE";
	case CL_INVALID_VALUE: return "CL_INVALID_VALUE";
	case CL_INVALID_PLATFORM: return "CL_INVALID_PLATFORM";
	case CL_INVALID_DEVICE: return "CL_INVALID_DEVICE";
	case CL_INVALID_CONTEXT: return "CL_INVALID_CONTEXT";
	case CL_INVALID_QUEUE_PROPERTIES: return "CL_INVALID_QUEUE_PROPERTIES";
	case CL_INVALID_COMMAND_QUEUE: return "CL_INVALID_COMMAND_QUEUE";
	case CL_INVALID_MEM_OBJECT: return "CL_INVALID_MEM_OBJECT";
	case CL_INVALID_BUILD_OPTIONS: return "CL_INVALID_BUILD_OPTIONS";
	case CL_INVALID_PROGRAM: return "CL_INVALID_PROGRAM";
	case CL_INVALID_PROGRAM_EXECUTABLE: return "CL_INVALID_PROGRAM_EXECUTABLE";
	case CL_INVALID_KERNEL_NAME: return "CL_INVALID_KERNEL_NAME";
	case CL_INVALID_KERNEL_DEFINITION: return "CL_INVALID_KERNEL_DEFINITION";
	case CL_INVALID_KERNEL: return "CL_INVALID_KERNEL";
	case CL_INVALID_ARG_INDEX: return "CL_INVALID_ARG_INDEX";
	case CL_INVALID_ARG_VALUE: return "CL_INVALID_ARG_VALUE";
	case CL_INVALID_ARG_SIZE: return "CL_INVALID_ARG_SIZE";
	case CL_INVALID_KERNEL_ARGS: return "CL_INVALID_KERNEL_ARGS";
	case CL_INVALID_WORK_DIMENSION: return "CL_INVALID_WORK_DIMENSION";
	case CL_INVALID_WORK_GROUP_SIZE: return "CL_INVALID_WORK_GROUP_SIZE";
	case CL_INVALID_WORK_ITEM_SIZE: return "CL_INVALID_WORK_ITEM_SIZE";
	case CL_INVALID_GLOBAL_OFFSET: return "CL_INVALID_GLOBAL_OFFSET";
	case CL_INVALID_EVENT_WAIT_LIST: return "CL_INVALID_EVENT_WAIT_LIST";
	case CL_INVALID_EVENT: return "CL_INVALID_EVENT";
	case CL_INVALID_OPERATION: return "CL_INVALID_OPERATION";
	case CL_INVALID_BUFFER_SIZE: return "CL_INVALID_BUFFER_SIZE";
	case CL_EXEC_STATUS_ERROR_FOR_EVENTS_IN_WAIT_LIST: return "CL_EXEC_STATUS_ERROR_FOR_EVENTS_IN_WAIT_LIST";
	default: return "CL_UNKNOWN_ERROR";
	}
}

static cl_command_queue gridbench_create_profiling_queue(cl_context ctx, cl_device_id device, cl_int *status) {
#if CL_TARGET_OPENCL_VERSION >= 200
	const cl_queue_properties props[] = {CL_QUEUE_PROPERTIES, CL_QUEUE_PROFILING_ENABLE, 0};
	return clCreateCommandQueueWithProperties(ctx, device, props, status);
#else
	return clCreateCommandQueue(ctx, device, CL_QUEUE_PROFILING_ENABLE, status);
#endif
}
*/
import "C"

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unsafe"
)

// Runtime owns the OpenCL context and a profiling-enabled command queue.
type Runtime struct {
	deviceID C.cl_device_id
	context  C.cl_context
	queue    C.cl_command_queue
	Platform PlatformInfo
	Device   DeviceInfo
}

// Open enumerates every device on every platform, hands the candidate list to
// opts.Choose and binds a context and queue to the chosen device.
func Open(opts Options) (*Runtime, error) {
	records, err := enumeratePlatformRecords()
	if err != nil {
		return nil, err
	}

	var candidates []Device
	for _, platform := range records {
		for _, device := range platform.devices {
			candidates = append(candidates, device)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoDevices
	}

	if opts.PreferGPU {
		var gpus []Device
		for _, d := range candidates {
			if d.Info().Type == DeviceTypeGPU {
				gpus = append(gpus, d)
			}
		}
		if len(gpus) > 0 {
			candidates = gpus
		}
	}

	if opts.Verbose {
		for i, d := range candidates {
			rec := d.(*deviceRecord)
			slog.Info("OpenCL device",
				"index", i,
				"platform", rec.platform.info.Name,
				"device", rec.info.Name,
				"type", rec.info.Type,
				"fp64", rec.info.SupportsDouble(),
			)
		}
	}

	idx := 0
	if opts.Choose != nil {
		idx, err = opts.Choose(candidates)
		if err != nil {
			return nil, err
		}
	}
	if idx < 0 || idx >= len(candidates) {
		return nil, fmt.Errorf("device index %d out of range [0,%d)", idx, len(candidates))
	}
	chosen := candidates[idx].(*deviceRecord)

	var status C.cl_int

	context := C.clCreateContext(nil, 1, &chosen.id, nil, nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateContext", status)
	}

	queue := C.gridbench_create_profiling_queue(context, chosen.id, &status)
	if status != C.CL_SUCCESS {
		C.clReleaseContext(context)
		return nil, statusError("clCreateCommandQueue", status)
	}

	return &Runtime{
		deviceID: chosen.id,
		context:  context,
		queue:    queue,
		Platform: chosen.platform.info,
		Device:   chosen.info,
	}, nil
}

// Close releases OpenCL resources.
func (r *Runtime) Close() {
	if r == nil {
		return
	}
	if r.queue != nil {
		C.clReleaseCommandQueue(r.queue)
		r.queue = nil
	}
	if r.context != nil {
		C.clReleaseContext(r.context)
		r.context = nil
	}
}

// Build compiles the sources as one program for the bound device.
func (r *Runtime) Build(sources []string) (Program, string, error) {
	n := len(sources)
	if n == 0 {
		return nil, "", errors.New("clCreateProgramWithSource: no sources")
	}

	strs := (**C.char)(C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof((*C.char)(nil)))))
	defer C.free(unsafe.Pointer(strs))
	lengths := (*C.size_t)(C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(C.size_t(0)))))
	defer C.free(unsafe.Pointer(lengths))

	strView := unsafe.Slice(strs, n)
	lenView := unsafe.Slice(lengths, n)
	for i, s := range sources {
		strView[i] = C.CString(s)
		lenView[i] = C.size_t(len(s))
	}
	defer func() {
		for _, p := range strView {
			C.free(unsafe.Pointer(p))
		}
	}()

	var status C.cl_int
	program := C.clCreateProgramWithSource(r.context, C.cl_uint(n), strs, lengths, &status)
	if status != C.CL_SUCCESS {
		return nil, "", statusError("clCreateProgramWithSource", status)
	}

	status = C.clBuildProgram(program, 1, &r.deviceID, nil, nil, nil)
	log := r.buildLog(program)
	if status != C.CL_SUCCESS {
		C.clReleaseProgram(program)
		return nil, log, statusError("clBuildProgram", status)
	}

	return &clProgram{id: program}, log, nil
}

func (r *Runtime) buildLog(program C.cl_program) string {
	var logSize C.size_t
	if status := C.clGetProgramBuildInfo(program, r.deviceID, C.CL_PROGRAM_BUILD_LOG, 0, nil, &logSize); status != C.CL_SUCCESS {
		slog.Error("OpenCL: failed to fetch build log size", "err", statusError("clGetProgramBuildInfo", status))
		return ""
	}
	if logSize == 0 {
		return ""
	}

	buf := make([]byte, int(logSize))
	if status := C.clGetProgramBuildInfo(program, r.deviceID, C.CL_PROGRAM_BUILD_LOG, logSize, unsafe.Pointer(&buf[0]), nil); status != C.CL_SUCCESS {
		slog.Error("OpenCL: failed to fetch build log", "err", statusError("clGetProgramBuildInfo", status))
		return ""
	}

	return strings.TrimSpace(trimNull(buf))
}

// NewBuffer allocates a CL_MEM_READ_WRITE buffer.
func (r *Runtime) NewBuffer(bytes int) (Buffer, error) {
	var status C.cl_int
	mem := C.clCreateBuffer(r.context, C.CL_MEM_READ_WRITE, C.size_t(bytes), nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateBuffer", status)
	}
	return &clBuffer{mem: mem, size: bytes}, nil
}

// Enqueue submits the kernel over a 2-D range at offset (0,0). A zero local
// range lets the implementation pick the work-group size.
func (r *Runtime) Enqueue(k Kernel, global, local NDRange) (Event, error) {
	ck, ok := k.(*clKernel)
	if !ok {
		return nil, fmt.Errorf("clEnqueueNDRangeKernel: kernel %T not created by this runtime", k)
	}

	globalSize := [2]C.size_t{C.size_t(global.X), C.size_t(global.Y)}
	localSize := [2]C.size_t{C.size_t(local.X), C.size_t(local.Y)}
	var localPtr *C.size_t
	if local.X > 0 && local.Y > 0 {
		localPtr = &localSize[0]
	}

	var event C.cl_event
	status := C.clEnqueueNDRangeKernel(r.queue, ck.id, 2, nil, &globalSize[0], localPtr, 0, nil, &event)
	if status != C.CL_SUCCESS {
		return nil, statusError("clEnqueueNDRangeKernel("+ck.name+")", status)
	}
	return &clEvent{id: event}, nil
}

type clProgram struct {
	id C.cl_program
}

func (p *clProgram) Kernel(name string) (Kernel, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var status C.cl_int
	kernel := C.clCreateKernel(p.id, cname, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateKernel("+name+")", status)
	}
	return &clKernel{id: kernel, name: name}, nil
}

func (p *clProgram) Release() {
	if p.id != nil {
		C.clReleaseProgram(p.id)
		p.id = nil
	}
}

type clKernel struct {
	id   C.cl_kernel
	name string
}

func (k *clKernel) Name() string { return k.name }

func (k *clKernel) SetArgs(args ...Buffer) error {
	for i, arg := range args {
		buf, ok := arg.(*clBuffer)
		if !ok {
			return fmt.Errorf("clSetKernelArg(%s, %d): buffer %T not created by this runtime", k.name, i, arg)
		}
		mem := buf.mem
		status := C.clSetKernelArg(k.id, C.cl_uint(i), C.size_t(unsafe.Sizeof(mem)), unsafe.Pointer(&mem))
		if status != C.CL_SUCCESS {
			return statusError(fmt.Sprintf("clSetKernelArg(%s, %d)", k.name, i), status)
		}
	}
	return nil
}

func (k *clKernel) Release() {
	if k.id != nil {
		C.clReleaseKernel(k.id)
		k.id = nil
	}
}

type clBuffer struct {
	mem  C.cl_mem
	size int
}

func (b *clBuffer) Size() int { return b.size }

func (b *clBuffer) Release() {
	if b.mem != nil {
		C.clReleaseMemObject(b.mem)
		b.mem = nil
	}
}

type clEvent struct {
	id C.cl_event
}

func (e *clEvent) Wait() error {
	if status := C.clWaitForEvents(1, &e.id); status != C.CL_SUCCESS {
		return statusError("clWaitForEvents", status)
	}
	return nil
}

func (e *clEvent) Profile() (start, end uint64, err error) {
	var s, t C.cl_ulong
	status := C.clGetEventProfilingInfo(e.id, C.CL_PROFILING_COMMAND_START, C.size_t(unsafe.Sizeof(s)), unsafe.Pointer(&s), nil)
	if status != C.CL_SUCCESS {
		return 0, 0, statusError("clGetEventProfilingInfo(start)", status)
	}
	status = C.clGetEventProfilingInfo(e.id, C.CL_PROFILING_COMMAND_END, C.size_t(unsafe.Sizeof(t)), unsafe.Pointer(&t), nil)
	if status != C.CL_SUCCESS {
		return 0, 0, statusError("clGetEventProfilingInfo(end)", status)
	}
	return uint64(s), uint64(t), nil
}

func (e *clEvent) Release() {
	if e.id != nil {
		C.clReleaseEvent(e.id)
		e.id = nil
	}
}

// EnumeratePlatforms returns discovered platforms with their devices.
func EnumeratePlatforms() ([]PlatformInfo, error) {
	records, err := enumeratePlatformRecords()
	if err != nil {
		return nil, err
	}

	out := make([]PlatformInfo, len(records))
	for i, platform := range records {
		out[i] = platform.info
	}
	return out, nil
}

type platformRecord struct {
	id      C.cl_platform_id
	info    PlatformInfo
	devices []*deviceRecord
}

type deviceRecord struct {
	id       C.cl_device_id
	info     DeviceInfo
	platform *platformRecord
}

func (d *deviceRecord) Info() DeviceInfo { return d.info }

func enumeratePlatformRecords() ([]*platformRecord, error) {
	var count C.cl_uint
	status := C.clGetPlatformIDs(0, nil, &count)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(count)", status)
	}
	if count == 0 {
		return nil, nil
	}

	platformIDs := make([]C.cl_platform_id, int(count))
	status = C.clGetPlatformIDs(count, &platformIDs[0], nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(list)", status)
	}

	records := make([]*platformRecord, 0, int(count))
	for _, pid := range platformIDs {
		name, err := getPlatformString(pid, C.CL_PLATFORM_NAME)
		if err != nil {
			return nil, err
		}
		vendor, err := getPlatformString(pid, C.CL_PLATFORM_VENDOR)
		if err != nil {
			return nil, err
		}
		version, err := getPlatformString(pid, C.CL_PLATFORM_VERSION)
		if err != nil {
			return nil, err
		}

		rec := &platformRecord{
			id: pid,
			info: PlatformInfo{
				Name:    name,
				Vendor:  vendor,
				Version: version,
			},
		}

		devices, err := enumerateDevices(rec)
		if err != nil {
			if errors.Is(err, ErrNoDevices) {
				records = append(records, rec)
				continue
			}
			return nil, err
		}

		rec.devices = devices
		rec.info.Devices = make([]DeviceInfo, len(devices))
		for i, device := range devices {
			rec.info.Devices[i] = device.info
		}

		records = append(records, rec)
	}

	return records, nil
}

func enumerateDevices(platform *platformRecord) ([]*deviceRecord, error) {
	var count C.cl_uint
	status := C.clGetDeviceIDs(platform.id, C.CL_DEVICE_TYPE_ALL, 0, nil, &count)
	if status == C.CL_DEVICE_NOT_FOUND {
		return nil, ErrNoDevices
	}
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs(count)", status)
	}
	if count == 0 {
		return nil, ErrNoDevices
	}

	deviceIDs := make([]C.cl_device_id, int(count))
	status = C.clGetDeviceIDs(platform.id, C.CL_DEVICE_TYPE_ALL, count, &deviceIDs[0], nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs(list)", status)
	}

	devices := make([]*deviceRecord, 0, int(count))
	for _, id := range deviceIDs {
		info, err := buildDeviceInfo(id)
		if err != nil {
			return nil, err
		}
		devices = append(devices, &deviceRecord{
			id:       id,
			info:     info,
			platform: platform,
		})
	}

	return devices, nil
}

func buildDeviceInfo(id C.cl_device_id) (DeviceInfo, error) {
	name, err := getDeviceString(id, C.CL_DEVICE_NAME)
	if err != nil {
		return DeviceInfo{}, err
	}
	vendor, err := getDeviceString(id, C.CL_DEVICE_VENDOR)
	if err != nil {
		return DeviceInfo{}, err
	}
	version, err := getDeviceString(id, C.CL_DEVICE_VERSION)
	if err != nil {
		return DeviceInfo{}, err
	}
	extensions, err := getDeviceString(id, C.CL_DEVICE_EXTENSIONS)
	if err != nil {
		return DeviceInfo{}, err
	}

	var rawType C.cl_device_type
	status := C.clGetDeviceInfo(id, C.CL_DEVICE_TYPE, C.size_t(unsafe.Sizeof(rawType)), unsafe.Pointer(&rawType), nil)
	if status != C.CL_SUCCESS {
		return DeviceInfo{}, statusError("clGetDeviceInfo(type)", status)
	}

	var computeUnits C.cl_uint
	status = C.clGetDeviceInfo(id, C.CL_DEVICE_MAX_COMPUTE_UNITS, C.size_t(unsafe.Sizeof(computeUnits)), unsafe.Pointer(&computeUnits), nil)
	if status != C.CL_SUCCESS {
		return DeviceInfo{}, statusError("clGetDeviceInfo(computeUnits)", status)
	}

	return DeviceInfo{
		Name:            name,
		Vendor:          vendor,
		Version:         version,
		Type:            mapDeviceType(rawType),
		MaxComputeUnits: uint32(computeUnits),
		Extensions:      strings.Fields(extensions),
	}, nil
}

func getPlatformString(id C.cl_platform_id, param C.cl_platform_info) (string, error) {
	var size C.size_t
	status := C.clGetPlatformInfo(id, param, 0, nil, &size)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetPlatformInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}

	buf := make([]byte, int(size))
	status = C.clGetPlatformInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetPlatformInfo(value)", status)
	}

	return trimNull(buf), nil
}

func getDeviceString(id C.cl_device_id, param C.cl_device_info) (string, error) {
	var size C.size_t
	status := C.clGetDeviceInfo(id, param, 0, nil, &size)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}

	buf := make([]byte, int(size))
	status = C.clGetDeviceInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(value)", status)
	}

	return trimNull(buf), nil
}

func trimNull(buf []byte) string {
	if len(buf) == 0 {
		return ""
	}
	if buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf)
}

func mapDeviceType(dt C.cl_device_type) DeviceType {
	switch {
	case dt&C.CL_DEVICE_TYPE_GPU != 0:
		return DeviceTypeGPU
	case dt&C.CL_DEVICE_TYPE_CPU != 0:
		return DeviceTypeCPU
	case dt&C.CL_DEVICE_TYPE_ACCELERATOR != 0:
		return DeviceTypeAccelerator
	case dt&C.CL_DEVICE_TYPE_DEFAULT != 0:
		return DeviceTypeDefault
	default:
		return DeviceTypeUnknown
	}
}

func statusError(prefix string, status C.cl_int) error {
	return fmt.Errorf("%s: %s (%d)", prefix, C.GoString(C.gridbench_cl_error_string(status)), int(status))
}
