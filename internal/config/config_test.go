package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Galarius/opencl-language-server/internal/config"
	"github.com/Galarius/opencl-language-server/internal/device"
	"github.com/Galarius/opencl-language-server/internal/diagnostics"
)

type fakeGateway struct {
	devices []device.Device
}

func (g *fakeGateway) ListDevices(ctx context.Context) ([]device.Device, error) {
	return g.devices, nil
}

func (g *fakeGateway) Compile(ctx context.Context, dev device.Device, source, options string) (string, error) {
	return "", nil
}

func TestLoad_MissingFileReturnsZeroValue(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.jsonc"))
	require.NoError(t, err)
	assert.Empty(t, cfg.BuildOptions)
	assert.Nil(t, cfg.MaxNumberOfProblems)
	assert.Nil(t, cfg.DeviceID)
}

func TestLoad_StripsCommentsAndDecodesFields(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.jsonc")
	contents := `{
		// build flags passed straight through to the compiler
		"buildOptions": ["-cl-fast-relaxed-math", "-Werror"],
		"maxNumberOfProblems": 50,
		"deviceID": 11 /* fingerprint, not an index */
	}`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, diagnostics.BuildOptions("-cl-fast-relaxed-math -Werror"), cfg.BuildOptions)
	require.NotNil(t, cfg.MaxNumberOfProblems)
	assert.Equal(t, uint64(50), *cfg.MaxNumberOfProblems)
	require.NotNil(t, cfg.DeviceID)
	assert.Equal(t, uint32(11), *cfg.DeviceID)
}

func TestLoad_PlainJSONWithoutComments(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"buildOptions": "-g"}`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, diagnostics.BuildOptions("-g"), cfg.BuildOptions)
}

func TestApply_SetsFieldsPresentInFile(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{devices: []device.Device{
		{ID: 1, PowerIndex: 10},
		{ID: 11, PowerIndex: 20},
	}}
	engine := diagnostics.New(gw, nil)

	maxProblems := uint64(64)
	deviceID := uint32(11)
	cfg := config.File{
		BuildOptions:        "-cl-std=CL2.0",
		MaxNumberOfProblems: &maxProblems,
		DeviceID:            &deviceID,
	}

	config.Apply(cfg, engine)

	dev, ok := engine.GetDevice()
	require.True(t, ok)
	assert.Equal(t, uint32(11), dev.ID)
}
