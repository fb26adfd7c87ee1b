//go:build !cgo

package clgateway

import (
	"context"

	"go.uber.org/zap"

	"github.com/Galarius/opencl-language-server/internal/device"
)

// unavailableGateway stands in for clGateway when the module is built
// without cgo (no OpenCL ICD loader to bind against). ListDevices reports no
// hardware rather than an error, matching the driver-unavailable contract in
// §4.1; Compile always fails since there is never a selectable device.
type unavailableGateway struct {
	logger *zap.SugaredLogger
}

// New returns the no-cgo fallback Gateway. logger may be nil.
func New(logger *zap.SugaredLogger) Gateway {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &unavailableGateway{logger: logger}
}

func (g *unavailableGateway) ListDevices(ctx context.Context) ([]device.Device, error) {
	g.logger.Warnw("built without cgo, opencl driver is unavailable")
	return nil, nil
}

func (g *unavailableGateway) Compile(ctx context.Context, dev device.Device, source string, options string) (string, error) {
	return "", ErrDeviceMissing
}
