package lspsession

import (
	"context"
	"fmt"

	"go.lsp.dev/uri"

	"github.com/Galarius/opencl-language-server/internal/diagnostics"
	"github.com/Galarius/opencl-language-server/internal/jsonrpc"
	"github.com/Galarius/opencl-language-server/internal/logparser"
)

// OnTextOpen handles "textDocument/didOpen".
func (h *Handler) OnTextOpen(body jsonrpc.Body) error {
	h.logger.Debug("received didOpen notification")

	docURI, ok := stringAt(body, "params", "textDocument", "uri")
	if !ok {
		h.logger.Warnw("didOpen missing textDocument.uri")
		return nil
	}
	text, ok := stringAt(body, "params", "textDocument", "text")
	if !ok {
		h.logger.Warnw("didOpen missing textDocument.text")
		return nil
	}

	h.buildDiagnosticsRespond(docURI, text)
	return nil
}

// OnTextChanged handles "textDocument/didChange". The server advertises
// Full sync, so only the last entry of contentChanges carries a complete
// document; if it lacks a text field the event is ignored defensively.
func (h *Handler) OnTextChanged(body jsonrpc.Body) error {
	h.logger.Debug("received didChange notification")

	docURI, ok := stringAt(body, "params", "textDocument", "uri")
	if !ok {
		h.logger.Warnw("didChange missing textDocument.uri")
		return nil
	}

	changes, ok := dig(body, "params", "contentChanges")
	if !ok {
		return nil
	}
	list, ok := changes.([]interface{})
	if !ok || len(list) == 0 {
		return nil
	}

	last, ok := list[len(list)-1].(map[string]interface{})
	if !ok {
		return nil
	}
	text, ok := last["text"].(string)
	if !ok {
		h.logger.Debug("last contentChanges entry has no text, ignoring")
		return nil
	}

	h.buildDiagnosticsRespond(docURI, text)
	return nil
}

// buildDiagnosticsRespond converts uri to a file path, runs one diagnostics
// pass (the Compiler Gateway is invoked exactly once here, via
// engine.GetDiagnostics), and enqueues textDocument/publishDiagnostics. Any
// failure is surfaced as a JSON-RPC InternalError and nothing is enqueued.
func (h *Handler) buildDiagnosticsRespond(docURI string, text string) {
	path := uri.URI(docURI).Filename()
	h.logger.Debugw("converted uri to path", "uri", docURI, "path", path)

	diags, err := h.engine.GetDiagnostics(context.Background(), diagnostics.Source{
		FilePath: path,
		Text:     text,
	})
	if err != nil {
		msg := fmt.Sprintf("Failed to get diagnostics: %s", err)
		h.logger.Errorw("buildDiagnosticsRespond failed", "error", err)
		h.rpc.WriteError(jsonrpc.InternalError, msg)
		return
	}

	if diags == nil {
		diags = []logparser.Diagnostic{}
	}

	h.enqueue(jsonrpc.Body{
		"method": "textDocument/publishDiagnostics",
		"params": jsonrpc.Body{
			"uri":         docURI,
			"diagnostics": diags,
		},
	})
}
