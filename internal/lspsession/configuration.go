package lspsession

import (
	"encoding/json"

	"github.com/Galarius/opencl-language-server/internal/diagnostics"
	"github.com/Galarius/opencl-language-server/internal/jsonrpc"
)

// configurationSections is the fixed, ordered list of client configuration
// items requested by OnConfigurationChanged; the client response's "result"
// array lines up with this order positionally.
var configurationSections = []string{
	"OpenCL.server.buildOptions",
	"OpenCL.server.maxNumberOfProblems",
	"OpenCL.server.deviceID",
}

// OnConfigurationChanged handles the "workspace/didChangeConfiguration"
// notification by requesting the current configuration from the client, if
// it was ever declared capable of answering one.
func (h *Handler) OnConfigurationChanged(jsonrpc.Body) error {
	h.logger.Debug("received didChangeConfiguration notification")

	if !h.state.HasConfigurationCapability {
		h.logger.Debug("client does not have configuration capability")
		return nil
	}

	items := make([]jsonrpc.Body, len(configurationSections))
	for i, section := range configurationSections {
		items[i] = jsonrpc.Body{"section": section}
	}

	id := h.idGenerator.NewID()
	h.pending = append(h.pending, PendingRequest{Method: "workspace/configuration", ID: id})
	h.enqueue(jsonrpc.Body{
		"id":     id,
		"method": "workspace/configuration",
		"params": jsonrpc.Body{"items": items},
	})
	return nil
}

// OnRespond handles a client response to a server-initiated request,
// correlating it against the FIFO pending-request queue. Out-of-order
// responses are discarded with a warning; the session never fails because
// of one.
func (h *Handler) OnRespond(body jsonrpc.Body) {
	h.logger.Debug("received client response")

	if len(h.pending) == 0 {
		h.logger.Warnw("received client response with no pending request")
		return
	}

	req := h.pending[0]
	h.pending = h.pending[1:]

	id, _ := idString(body["id"])
	if id != req.ID {
		h.logger.Warnw("client response id does not match pending request, discarding",
			"expected", req.ID, "got", id)
		return
	}

	if req.Method == "workspace/configuration" {
		h.onConfigurationResult(body)
	}
}

// onConfigurationResult applies a workspace/configuration response: result
// is a positional array matching configurationSections.
func (h *Handler) onConfigurationResult(body jsonrpc.Body) {
	result, ok := body["result"].([]interface{})
	if !ok || len(result) == 0 {
		h.logger.Warnw("empty configuration result")
		return
	}
	if len(result) < 2 {
		h.logger.Warnw("unexpected configuration result item count", "count", len(result))
		return
	}

	cfg := map[string]interface{}{
		"buildOptions": result[0],
	}
	if len(result) > 1 {
		cfg["maxNumberOfProblems"] = result[1]
	}
	if len(result) > 2 {
		cfg["deviceID"] = result[2]
	}
	h.applyConfiguration(cfg)
}

// applyConfiguration pushes any of buildOptions/maxNumberOfProblems/deviceID
// present in cfg into the Diagnostics Engine. Missing keys are left
// untouched.
func (h *Handler) applyConfiguration(cfg map[string]interface{}) {
	if v, ok := cfg["buildOptions"]; ok {
		h.engine.SetBuildOptions(decodeBuildOptions(v))
	}
	if v, ok := cfg["maxNumberOfProblems"]; ok {
		if n, ok := asUint64(v); ok {
			h.engine.SetMaxProblemsCount(n)
		}
	}
	if v, ok := cfg["deviceID"]; ok {
		if n, ok := asUint64(v); ok {
			h.engine.SetOpenCLDevice(uint32(n))
		}
	}
}

// decodeBuildOptions reuses diagnostics.BuildOptions' permissive
// string-or-array JSON decoding for a value that has already been decoded
// once (from a JSON-RPC body) by round-tripping it back through
// encoding/json.
func decodeBuildOptions(v interface{}) diagnostics.BuildOptions {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	var opts diagnostics.BuildOptions
	if err := json.Unmarshal(data, &opts); err != nil {
		return ""
	}
	return opts
}

func asUint64(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	default:
		return 0, false
	}
}

func idString(v interface{}) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, true
	case float64:
		return jsonNumberString(id), true
	default:
		return "", false
	}
}

func jsonNumberString(f float64) string {
	data, _ := json.Marshal(f)
	return string(data)
}
