package lspsession_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Galarius/opencl-language-server/internal/device"
	"github.com/Galarius/opencl-language-server/internal/diagnostics"
	"github.com/Galarius/opencl-language-server/internal/jsonrpc"
	"github.com/Galarius/opencl-language-server/internal/lspsession"
)

type fakeGateway struct {
	devices  []device.Device
	buildLog string
}

func (g *fakeGateway) ListDevices(ctx context.Context) ([]device.Device, error) {
	return g.devices, nil
}

func (g *fakeGateway) Compile(ctx context.Context, dev device.Device, source, options string) (string, error) {
	return g.buildLog, nil
}

type sequentialIDs struct{ n int }

func (s *sequentialIDs) NewID() string {
	s.n++
	return "id-" + strconv.Itoa(s.n)
}

type fakeExitHandler struct {
	called  bool
	success bool
}

func (f *fakeExitHandler) Exit(success bool) {
	f.called = true
	f.success = success
}

func newHandler(t *testing.T, gw *fakeGateway, ids *sequentialIDs) (*lspsession.Handler, *fakeExitHandler) {
	t.Helper()
	eng := diagnostics.New(gw, nil)
	rpc := jsonrpc.New(nil)
	rpc.RegisterOutputCallback(func([]byte) {})
	exitHandler := &fakeExitHandler{}
	h := lspsession.New(eng, rpc, ids, exitHandler, nil)
	return h, exitHandler
}

func TestOnInitialize_RecordsCapabilitiesAndRespondsWithCapabilities(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t, &fakeGateway{}, &sequentialIDs{})

	err := h.OnInitialize(jsonrpc.Body{
		"id": float64(0),
		"params": jsonrpc.Body{
			"capabilities": jsonrpc.Body{
				"workspace": jsonrpc.Body{
					"configuration": true,
					"didChangeConfiguration": jsonrpc.Body{
						"dynamicRegistration": true,
					},
				},
			},
		},
	})
	require.NoError(t, err)

	resp, ok := h.GetNextResponse()
	require.True(t, ok)
	assert.InDelta(t, 0, resp["id"], 0)
	result := resp["result"].(jsonrpc.Body)
	caps := result["capabilities"].(jsonrpc.Body)
	sync := caps["textDocumentSync"].(jsonrpc.Body)
	assert.Equal(t, true, sync["openClose"])
	assert.Equal(t, 1, sync["change"])

	_, more := h.GetNextResponse()
	assert.False(t, more)
}

func TestOnInitialized_RegistersCapabilityWhenSupported(t *testing.T) {
	t.Parallel()

	ids := &sequentialIDs{}
	h, _ := newHandler(t, &fakeGateway{}, ids)

	require.NoError(t, h.OnInitialize(jsonrpc.Body{
		"id": float64(0),
		"params": jsonrpc.Body{
			"capabilities": jsonrpc.Body{
				"workspace": jsonrpc.Body{
					"didChangeConfiguration": jsonrpc.Body{"dynamicRegistration": true},
				},
			},
		},
	}))
	_, _ = h.GetNextResponse() // drain the initialize response

	require.NoError(t, h.OnInitialized(jsonrpc.Body{}))

	resp, ok := h.GetNextResponse()
	require.True(t, ok)
	assert.Equal(t, "client/registerCapability", resp["method"])
	assert.Equal(t, "id-1", resp["id"])
	params := resp["params"].(jsonrpc.Body)
	regs := params["registrations"].([]jsonrpc.Body)
	require.Len(t, regs, 1)
	assert.Equal(t, "id-2", regs[0]["id"])
	assert.Equal(t, "workspace/didChangeConfiguration", regs[0]["method"])
}

func TestOnInitialized_NoOpWhenUnsupported(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t, &fakeGateway{}, &sequentialIDs{})
	require.NoError(t, h.OnInitialize(jsonrpc.Body{"id": float64(0), "params": jsonrpc.Body{}}))
	_, _ = h.GetNextResponse()

	require.NoError(t, h.OnInitialized(jsonrpc.Body{}))
	_, ok := h.GetNextResponse()
	assert.False(t, ok)
}

func TestOnConfigurationChanged_RequestsThreeSectionsInOrder(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t, &fakeGateway{}, &sequentialIDs{})
	require.NoError(t, h.OnInitialize(jsonrpc.Body{
		"id": float64(0),
		"params": jsonrpc.Body{
			"capabilities": jsonrpc.Body{"workspace": jsonrpc.Body{"configuration": true}},
		},
	}))
	_, _ = h.GetNextResponse()

	require.NoError(t, h.OnConfigurationChanged(jsonrpc.Body{}))

	resp, ok := h.GetNextResponse()
	require.True(t, ok)
	assert.Equal(t, "workspace/configuration", resp["method"])
	params := resp["params"].(jsonrpc.Body)
	items := params["items"].([]jsonrpc.Body)
	require.Len(t, items, 3)
	assert.Equal(t, "OpenCL.server.buildOptions", items[0]["section"])
	assert.Equal(t, "OpenCL.server.maxNumberOfProblems", items[1]["section"])
	assert.Equal(t, "OpenCL.server.deviceID", items[2]["section"])
}

func TestOnConfigurationChanged_NoOpWithoutCapability(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t, &fakeGateway{}, &sequentialIDs{})
	require.NoError(t, h.OnConfigurationChanged(jsonrpc.Body{}))
	_, ok := h.GetNextResponse()
	assert.False(t, ok)
}

func TestOnRespond_AppliesConfigurationResult(t *testing.T) {
	t.Parallel()

	a := device.Device{ID: 11, PowerIndex: 10}
	b := device.Device{ID: 22, PowerIndex: 20}
	gw := &fakeGateway{devices: []device.Device{a, b}}
	h, _ := newHandler(t, gw, &sequentialIDs{})

	require.NoError(t, h.OnInitialize(jsonrpc.Body{
		"id":     float64(0),
		"params": jsonrpc.Body{"capabilities": jsonrpc.Body{"workspace": jsonrpc.Body{"configuration": true}}},
	}))
	_, _ = h.GetNextResponse()
	require.NoError(t, h.OnConfigurationChanged(jsonrpc.Body{}))
	req, _ := h.GetNextResponse()

	h.OnRespond(jsonrpc.Body{
		"id":     req["id"],
		"result": []interface{}{"-cl-fast-relaxed-math", float64(50), float64(11)},
	})

	selected, ok := h.Engine().GetDevice()
	require.True(t, ok)
	assert.Equal(t, uint32(11), selected.ID)
}

func TestOnRespond_OutOfOrderIsDiscardedSafely(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t, &fakeGateway{}, &sequentialIDs{})
	require.NoError(t, h.OnInitialize(jsonrpc.Body{
		"id":     float64(0),
		"params": jsonrpc.Body{"capabilities": jsonrpc.Body{"workspace": jsonrpc.Body{"configuration": true}}},
	}))
	_, _ = h.GetNextResponse()
	require.NoError(t, h.OnConfigurationChanged(jsonrpc.Body{}))
	_, _ = h.GetNextResponse()

	assert.NotPanics(t, func() {
		h.OnRespond(jsonrpc.Body{"id": "not-the-pending-id", "result": []interface{}{}})
	})
}

func TestOnRespond_EmptyPendingQueueIsSafe(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t, &fakeGateway{}, &sequentialIDs{})
	assert.NotPanics(t, func() {
		h.OnRespond(jsonrpc.Body{"id": "x", "result": []interface{}{}})
	})
}

func TestOnTextOpen_PublishesDiagnostics(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		devices:  []device.Device{{ID: 1, PowerIndex: 1}},
		buildLog: "<program source>:12:5: warning: no previous prototype for function 'getChannel'",
	}
	h, _ := newHandler(t, gw, &sequentialIDs{})

	require.NoError(t, h.OnTextOpen(jsonrpc.Body{
		"params": jsonrpc.Body{
			"textDocument": jsonrpc.Body{
				"uri":  "file:///tmp/kernel.cl",
				"text": "kernel void k() {}",
			},
		},
	}))

	resp, ok := h.GetNextResponse()
	require.True(t, ok)
	assert.Equal(t, "textDocument/publishDiagnostics", resp["method"])
	params := resp["params"].(jsonrpc.Body)
	assert.Equal(t, "file:///tmp/kernel.cl", params["uri"])
}

func TestOnTextChanged_UsesLastContentChangesEntry(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{devices: []device.Device{{ID: 1, PowerIndex: 1}}, buildLog: ""}
	h, _ := newHandler(t, gw, &sequentialIDs{})

	require.NoError(t, h.OnTextChanged(jsonrpc.Body{
		"params": jsonrpc.Body{
			"textDocument": jsonrpc.Body{"uri": "file:///tmp/kernel.cl"},
			"contentChanges": []interface{}{
				map[string]interface{}{"text": "stale"},
				map[string]interface{}{"text": "fresh"},
			},
		},
	}))

	resp, ok := h.GetNextResponse()
	require.True(t, ok)
	assert.Equal(t, "textDocument/publishDiagnostics", resp["method"])
}

func TestOnTextChanged_IgnoresEntryWithoutText(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t, &fakeGateway{}, &sequentialIDs{})
	require.NoError(t, h.OnTextChanged(jsonrpc.Body{
		"params": jsonrpc.Body{
			"textDocument":   jsonrpc.Body{"uri": "file:///tmp/kernel.cl"},
			"contentChanges": []interface{}{map[string]interface{}{"rangeLength": float64(1)}},
		},
	}))
	_, ok := h.GetNextResponse()
	assert.False(t, ok)
}

func TestShutdownThenExit_Succeeds(t *testing.T) {
	t.Parallel()

	h, exitHandler := newHandler(t, &fakeGateway{}, &sequentialIDs{})

	require.NoError(t, h.OnShutdown(jsonrpc.Body{"id": float64(7)}))
	resp, ok := h.GetNextResponse()
	require.True(t, ok)
	assert.InDelta(t, 7, resp["id"], 0)
	assert.Nil(t, resp["result"])

	require.NoError(t, h.OnExit(jsonrpc.Body{}))
	assert.True(t, exitHandler.called)
	assert.True(t, exitHandler.success)
}

func TestExitWithoutShutdown_Fails(t *testing.T) {
	t.Parallel()

	h, exitHandler := newHandler(t, &fakeGateway{}, &sequentialIDs{})
	require.NoError(t, h.OnExit(jsonrpc.Body{}))
	assert.True(t, exitHandler.called)
	assert.False(t, exitHandler.success)
}
