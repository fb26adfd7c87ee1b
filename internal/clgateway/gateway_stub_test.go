//go:build !cgo

package clgateway_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Galarius/opencl-language-server/internal/clgateway"
	"github.com/Galarius/opencl-language-server/internal/device"
)

func TestUnavailableGateway_ListDevicesIsEmptyNotError(t *testing.T) {
	t.Parallel()

	gw := clgateway.New(nil)
	devices, err := gw.ListDevices(context.Background())
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestUnavailableGateway_CompileFailsWithDeviceMissing(t *testing.T) {
	t.Parallel()

	gw := clgateway.New(nil)
	_, err := gw.Compile(context.Background(), device.Device{}, "kernel void k() {}", "")
	assert.ErrorIs(t, err, clgateway.ErrDeviceMissing)
}
