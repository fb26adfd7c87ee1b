package lspsession

import "github.com/Galarius/opencl-language-server/internal/jsonrpc"

// OnShutdown handles the "shutdown" request: acknowledges it and marks the
// session as having seen an orderly shutdown, which OnExit consults.
func (h *Handler) OnShutdown(body jsonrpc.Body) error {
	h.logger.Debug("received shutdown request")
	h.enqueue(jsonrpc.Body{
		"id":     body["id"],
		"result": nil,
	})
	h.state.ShutdownRequested = true
	return nil
}

// OnExit handles the "exit" notification: terminates the process via the
// injected ExitHandler, successfully only if shutdown was requested first.
func (h *Handler) OnExit(jsonrpc.Body) error {
	h.logger.Debugw("received exit notification", "shutdownRequested", h.state.ShutdownRequested)
	h.exitHandler.Exit(h.state.ShutdownRequested)
	return nil
}
