// Package diagnostics orchestrates device selection, compilation, and
// build-log parsing into LSP-shaped diagnostic records.
package diagnostics

import (
	"context"
	"errors"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Galarius/opencl-language-server/internal/clgateway"
	"github.com/Galarius/opencl-language-server/internal/device"
	"github.com/Galarius/opencl-language-server/internal/logparser"
)

// DefaultMaxProblems is the problem-count ceiling applied until a client or
// local config overrides it (INT8_MAX in the original implementation).
const DefaultMaxProblems uint64 = 127

// ErrNoDevice is returned when a build log or diagnostics pass is requested
// but no compute device has been selected.
var ErrNoDevice = errors.New("no opencl device selected")

// Source is one text buffer to compile: a file path (for display purposes
// only) and its full text.
type Source struct {
	FilePath string
	Text     string
}

// Config mirrors the DiagnosticsConfig settings pulled from client
// configuration or a local config file.
type Config struct {
	BuildOptions     string
	MaxProblems      uint64
	SelectedDeviceID uint32
}

// Engine owns device selection policy, build options, and the problem cap,
// and drives the Compiler Gateway and Log Parser to produce diagnostics for
// a source buffer.
type Engine struct {
	gateway  clgateway.Gateway
	parser   *logparser.Parser
	registry *device.Registry
	logger   *zap.SugaredLogger

	buildOptions string
	maxProblems  uint64

	current   device.Device
	hasDevice bool
}

// New constructs an Engine and selects an initial device (setOpenCLDevice(0)
// per the original construction contract). gateway must not be nil; logger
// may be.
func New(gateway clgateway.Gateway, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	e := &Engine{
		gateway:     gateway,
		parser:      logparser.New(logger.Named("logparser")),
		registry:    device.NewRegistry(),
		logger:      logger,
		maxProblems: DefaultMaxProblems,
	}
	e.SetOpenCLDevice(0)
	return e
}

// SetBuildOptions sets the compiler build options string used for every
// subsequent compile.
func (e *Engine) SetBuildOptions(options BuildOptions) {
	e.buildOptions = string(options)
	e.logger.Debugw("set build options", "options", e.buildOptions)
}

// SetMaxProblemsCount sets the diagnostics cap applied by GetDiagnostics.
func (e *Engine) SetMaxProblemsCount(maxProblems uint64) {
	e.maxProblems = maxProblems
	e.logger.Debugw("set max number of problems", "max", maxProblems)
}

// SetOpenCLDevice re-discovers devices via the Compiler Gateway and applies
// the selection policy:
//
//  1. If identifier > 0 and it matches a known fingerprint, select that
//     device unconditionally, even if it is weaker than the one currently
//     held.
//  2. Otherwise, auto-select the device with the highest PowerIndex. If a
//     device is already held, only switch if the candidate's PowerIndex
//     strictly exceeds the current one (keeps repeated auto-selection
//     monotonic, see P8). This guard applies only to the auto-selection
//     path, not to an explicit identifier match.
//  3. If no devices exist, leave the current selection unchanged and log a
//     warning.
func (e *Engine) SetOpenCLDevice(identifier uint32) {
	devices, err := e.gateway.ListDevices(context.Background())
	if err != nil {
		e.logger.Errorw("failed to list opencl devices", "error", err)
		return
	}
	e.registry.Refresh(devices)

	if len(devices) == 0 {
		e.logger.Warnw("no opencl devices found, keeping current selection")
		return
	}

	candidate, found := device.Device{}, false
	explicitMatch := false
	if identifier > 0 {
		candidate, found = e.registry.Lookup(identifier)
		explicitMatch = found
	}
	if !found {
		candidate, found = e.registry.MostPowerful()
	}
	if !found {
		e.logger.Warnw("no opencl device candidate found, keeping current selection")
		return
	}

	// The monotonic "never downgrade" guard only applies to auto-selection
	// by power (P8); an explicit identifier match always wins, matching the
	// original's unconditional `m_device = selectedDevice` on a fingerprint
	// match.
	if !explicitMatch && e.hasDevice && candidate.PowerIndex <= e.current.PowerIndex {
		e.logger.Debugw("candidate device does not exceed current power index, keeping selection",
			"current", e.current.Description, "candidate", candidate.Description)
		return
	}

	e.current, e.hasDevice = candidate, true
	e.logger.Infow("selected opencl device", "description", candidate.Description, "id", candidate.ID)
}

// GetDevice returns the currently selected device, if any.
func (e *Engine) GetDevice() (device.Device, bool) {
	return e.current, e.hasDevice
}

// GetBuildLog compiles source against the currently selected device and
// returns the raw build log.
func (e *Engine) GetBuildLog(ctx context.Context, source Source) (string, error) {
	if !e.hasDevice {
		return "", ErrNoDevice
	}
	return e.gateway.Compile(ctx, e.current, source.Text, e.buildOptions)
}

// GetDiagnostics builds source and parses the resulting log into
// diagnostics, capped at the current MaxProblems, displaying the source's
// file basename as the diagnostic source label. The Compiler Gateway is
// invoked exactly once per call.
func (e *Engine) GetDiagnostics(ctx context.Context, source Source) ([]logparser.Diagnostic, error) {
	buildLog, err := e.GetBuildLog(ctx, source)
	if err != nil {
		return nil, err
	}

	name := ""
	if source.FilePath != "" {
		name = filepath.Base(source.FilePath)
	}
	return e.parser.Parse(buildLog, name, e.maxProblems), nil
}
