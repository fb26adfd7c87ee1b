//go:build cgo

package clgateway

/*
#cgo CFLAGS: -DCL_TARGET_OPENCL_VERSION=120
#cgo LDFLAGS: -lOpenCL
#ifdef __APPLE__
#include <OpenCL/opencl.h>
#else
#include <CL/cl.h>
#endif
#include <stdlib.h>
*/
import "C"

import (
	"context"
	"fmt"
	"strconv"
	"unsafe"

	"go.uber.org/zap"

	"github.com/Galarius/opencl-language-server/internal/device"
)

// clGateway binds to the system OpenCL ICD loader via cgo, mirroring
// original_source/src/clinfo.cpp and src/diagnostics.cpp's BuildSource.
type clGateway struct {
	logger *zap.SugaredLogger
}

// New returns the cgo-backed Gateway. logger may be nil.
func New(logger *zap.SugaredLogger) Gateway {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &clGateway{logger: logger}
}

func (g *clGateway) ListDevices(ctx context.Context) ([]device.Device, error) {
	var numPlatforms C.cl_uint
	if C.clGetPlatformIDs(0, nil, &numPlatforms) != C.CL_SUCCESS || numPlatforms == 0 {
		g.logger.Warnw("no opencl platforms were found")
		return nil, nil
	}

	platforms := make([]C.cl_platform_id, numPlatforms)
	if C.clGetPlatformIDs(numPlatforms, &platforms[0], nil) != C.CL_SUCCESS {
		g.logger.Errorw("failed to enumerate opencl platforms")
		return nil, ErrDriverUnavailable
	}

	var devices []device.Device
	for _, platform := range platforms {
		var numDevices C.cl_uint
		if C.clGetDeviceIDs(platform, C.CL_DEVICE_TYPE_ALL, 0, nil, &numDevices) != C.CL_SUCCESS || numDevices == 0 {
			continue
		}
		ids := make([]C.cl_device_id, numDevices)
		if C.clGetDeviceIDs(platform, C.CL_DEVICE_TYPE_ALL, numDevices, &ids[0], nil) != C.CL_SUCCESS {
			continue
		}
		for _, id := range ids {
			dev, err := g.describeDevice(id)
			if err != nil {
				g.logger.Warnw("failed to get info for a device", "error", err)
				continue
			}
			devices = append(devices, dev)
		}
	}
	return devices, nil
}

func (g *clGateway) describeDevice(id C.cl_device_id) (device.Device, error) {
	name, err := deviceInfoString(id, C.CL_DEVICE_NAME)
	if err != nil {
		return device.Device{}, err
	}
	clType, err := deviceInfoUlong(id, C.CL_DEVICE_TYPE)
	if err != nil {
		return device.Device{}, err
	}
	version, err := deviceInfoString(id, C.CL_DEVICE_VERSION)
	if err != nil {
		return device.Device{}, err
	}
	vendor, err := deviceInfoString(id, C.CL_DEVICE_VENDOR)
	if err != nil {
		return device.Device{}, err
	}
	vendorID, err := deviceInfoUint(id, C.CL_DEVICE_VENDOR_ID)
	if err != nil {
		return device.Device{}, err
	}
	driverVersion, err := deviceInfoString(id, C.CL_DRIVER_VERSION)
	if err != nil {
		return device.Device{}, err
	}
	maxComputeUnits, err := deviceInfoUint(id, C.CL_DEVICE_MAX_COMPUTE_UNITS)
	if err != nil {
		return device.Device{}, err
	}
	maxClockFrequency, err := deviceInfoUint(id, C.CL_DEVICE_MAX_CLOCK_FREQUENCY)
	if err != nil {
		return device.Device{}, err
	}

	identity := device.Identity{
		Name:          name,
		Type:          clType,
		Version:       version,
		Vendor:        vendor,
		VendorID:      vendorID,
		DriverVersion: driverVersion,
	}
	description := fmt.Sprintf(
		"name: %s; type: %s; version: %s; vendor: %s; vendorID: %s; driverVersion: %s",
		name, strconv.FormatUint(clType, 10), version, vendor, strconv.FormatUint(uint64(vendorID), 10), driverVersion)

	return device.Device{
		ID:          device.Fingerprint(identity),
		Description: description,
		PowerIndex:  device.PowerIndex(maxComputeUnits, maxClockFrequency),
		Handle:      id,
	}, nil
}

func (g *clGateway) Compile(ctx context.Context, dev device.Device, source string, options string) (string, error) {
	id, ok := dev.Handle.(C.cl_device_id)
	if !ok {
		return "", ErrDeviceMissing
	}

	var status C.cl_int
	ids := []C.cl_device_id{id}
	clCtx := C.clCreateContext(nil, 1, &ids[0], nil, nil, &status)
	if status != C.CL_SUCCESS || clCtx == nil {
		return "", fmt.Errorf("%w: clCreateContext failed (%d)", ErrCompilerError, status)
	}
	defer C.clReleaseContext(clCtx)

	csrc := C.CString(source)
	defer C.free(unsafe.Pointer(csrc))
	srcLen := C.size_t(len(source))

	program := C.clCreateProgramWithSource(clCtx, 1, &csrc, &srcLen, &status)
	if status != C.CL_SUCCESS || program == nil {
		return "", fmt.Errorf("%w: clCreateProgramWithSource failed (%d)", ErrCompilerError, status)
	}
	defer C.clReleaseProgram(program)

	var coptions *C.char
	if options != "" {
		coptions = C.CString(options)
		defer C.free(unsafe.Pointer(coptions))
	}

	buildStatus := C.clBuildProgram(program, 1, &ids[0], coptions, nil, nil)
	if buildStatus != C.CL_SUCCESS && buildStatus != C.CL_BUILD_PROGRAM_FAILURE {
		g.logger.Errorw("failed to build program", "status", buildStatus)
		return "", fmt.Errorf("%w: clBuildProgram failed (%d)", ErrCompilerError, buildStatus)
	}

	var logSize C.size_t
	if C.clGetProgramBuildInfo(program, id, C.CL_PROGRAM_BUILD_LOG, 0, nil, &logSize) != C.CL_SUCCESS || logSize == 0 {
		g.logger.Errorw("failed to get build info")
		return "", nil
	}

	buf := make([]byte, logSize)
	if C.clGetProgramBuildInfo(program, id, C.CL_PROGRAM_BUILD_LOG, logSize, unsafe.Pointer(&buf[0]), nil) != C.CL_SUCCESS {
		g.logger.Errorw("failed to get build info")
		return "", nil
	}

	return trimNullTerminator(string(buf)), nil
}

func trimNullTerminator(s string) string {
	for len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return s
}

func deviceInfoString(id C.cl_device_id, param C.cl_device_info) (string, error) {
	var size C.size_t
	if C.clGetDeviceInfo(id, param, 0, nil, &size) != C.CL_SUCCESS || size == 0 {
		return "", nil
	}
	buf := make([]byte, size)
	if C.clGetDeviceInfo(id, param, size, unsafe.Pointer(&buf[0]), nil) != C.CL_SUCCESS {
		return "", fmt.Errorf("clGetDeviceInfo failed for param %d", param)
	}
	return trimNullTerminator(string(buf)), nil
}

func deviceInfoUint(id C.cl_device_id, param C.cl_device_info) (uint32, error) {
	var value C.cl_uint
	if C.clGetDeviceInfo(id, param, C.size_t(unsafe.Sizeof(value)), unsafe.Pointer(&value), nil) != C.CL_SUCCESS {
		return 0, fmt.Errorf("clGetDeviceInfo failed for param %d", param)
	}
	return uint32(value), nil
}

func deviceInfoUlong(id C.cl_device_id, param C.cl_device_info) (uint64, error) {
	var value C.cl_ulong
	if C.clGetDeviceInfo(id, param, C.size_t(unsafe.Sizeof(value)), unsafe.Pointer(&value), nil) != C.CL_SUCCESS {
		return 0, fmt.Errorf("clGetDeviceInfo failed for param %d", param)
	}
	return uint64(value), nil
}
