// Package clgateway abstracts access to the OpenCL compute driver: listing
// platforms/devices and compiling kernel source against a selected device.
// The real binding requires cgo and the system ICD loader; a build-tag
// fallback keeps the rest of the module linkable without either.
package clgateway

import (
	"context"
	"errors"

	"github.com/Galarius/opencl-language-server/internal/device"
)

// Sentinel errors returned by Gateway implementations. Callers distinguish
// "no hardware" (expected, log and continue) from "something is actually
// broken" (log as an error).
var (
	ErrDriverUnavailable = errors.New("opencl driver unavailable")
	ErrDeviceMissing     = errors.New("no opencl device selected")
	ErrCompilerError     = errors.New("opencl compiler error")
	ErrLogUnavailable    = errors.New("build log unavailable")
)

// Gateway is the external contract the diagnostics engine drives. Compile
// returns a build log string even on a normal build failure: only genuine
// compiler/driver errors are reported through the error return.
type Gateway interface {
	ListDevices(ctx context.Context) ([]device.Device, error)
	Compile(ctx context.Context, dev device.Device, source string, options string) (string, error)
}
