// Package lspsession implements the LSP session state machine: handshake
// negotiation, capability tracking, configuration pull/push, document-change
// handling, and orderly shutdown. It translates LSP methods into Diagnostics
// Engine calls and is driven by the JSON-RPC Engine's method callbacks.
package lspsession

import (
	"go.uber.org/zap"

	"github.com/Galarius/opencl-language-server/internal/diagnostics"
	"github.com/Galarius/opencl-language-server/internal/idgen"
	"github.com/Galarius/opencl-language-server/internal/jsonrpc"
)

// PendingRequest tracks a server-initiated request awaiting a client
// response, correlated by id.
type PendingRequest struct {
	Method string
	ID     string
}

// ExitHandler is invoked from OnExit; it is injected so tests don't have to
// terminate the test process.
type ExitHandler interface {
	Exit(success bool)
}

// State is the session's capability and lifecycle bookkeeping.
type State struct {
	HasConfigurationCapability     bool
	SupportsDidChangeConfiguration bool
	ShutdownRequested              bool
}

// Handler is the session state machine. Its exported On* methods satisfy
// jsonrpc.MethodCallback (OnRespond satisfies jsonrpc.InputCallback) and are
// meant to be registered with a jsonrpc.Engine by the server loop.
type Handler struct {
	engine      *diagnostics.Engine
	rpc         *jsonrpc.Engine
	idGenerator idgen.Generator
	exitHandler ExitHandler
	logger      *zap.SugaredLogger

	state    State
	pending  []PendingRequest
	outQueue []jsonrpc.Body
}

// New constructs a Handler. rpc is used only to emit wire-level errors
// (e.g. InternalError from a failed diagnostics pass); engine drives
// compilation; idGenerator mints ids for server-initiated requests;
// exitHandler is invoked on the "exit" notification.
func New(engine *diagnostics.Engine, rpc *jsonrpc.Engine, idGenerator idgen.Generator, exitHandler ExitHandler, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{
		engine:      engine,
		rpc:         rpc,
		idGenerator: idGenerator,
		exitHandler: exitHandler,
		logger:      logger,
	}
}

// Engine exposes the underlying Diagnostics Engine, mainly so the server
// loop and tests can inspect device selection without threading state
// through the handler's method-callback surface.
func (h *Handler) Engine() *diagnostics.Engine {
	return h.engine
}

// enqueue appends a message to the outbound FIFO, to be drained by the
// server loop via GetNextResponse.
func (h *Handler) enqueue(msg jsonrpc.Body) {
	h.outQueue = append(h.outQueue, msg)
}

// GetNextResponse pops the oldest queued outbound message, if any.
func (h *Handler) GetNextResponse() (jsonrpc.Body, bool) {
	if len(h.outQueue) == 0 {
		return nil, false
	}
	msg := h.outQueue[0]
	h.outQueue = h.outQueue[1:]
	return msg, true
}

// OnInitialize handles the "initialize" request: records client
// capabilities, applies any initializationOptions.configuration, and
// enqueues the server's capabilities response.
func (h *Handler) OnInitialize(body jsonrpc.Body) error {
	h.logger.Debug("received initialize request")

	h.state.HasConfigurationCapability = boolAt(body, "params", "capabilities", "workspace", "configuration")
	h.state.SupportsDidChangeConfiguration = boolAt(body,
		"params", "capabilities", "workspace", "didChangeConfiguration", "dynamicRegistration")

	if config, ok := dig(body, "params", "initializationOptions", "configuration"); ok {
		if cfg, ok := config.(map[string]interface{}); ok {
			h.applyConfiguration(cfg)
		}
	}

	h.enqueue(jsonrpc.Body{
		"id": body["id"],
		"result": jsonrpc.Body{
			"capabilities": jsonrpc.Body{
				"textDocumentSync": jsonrpc.Body{
					"openClose":         true,
					"change":            1, // TextDocumentSyncKind.Full
					"willSave":          false,
					"willSaveWaitUntil": false,
					"save":              false,
				},
			},
		},
	})
	return nil
}

// OnInitialized handles the "initialized" notification. If the client
// declared didChangeConfiguration dynamic registration support, it
// registers for workspace/didChangeConfiguration using two freshly
// generated ids (the registration is not itself a response to
// "initialized", which is a notification with no id to echo).
func (h *Handler) OnInitialized(jsonrpc.Body) error {
	h.logger.Debug("received initialized notification")

	if !h.state.SupportsDidChangeConfiguration {
		h.logger.Debug("client does not support didChangeConfiguration registration")
		return nil
	}

	h.enqueue(jsonrpc.Body{
		"id":     h.idGenerator.NewID(),
		"method": "client/registerCapability",
		"params": jsonrpc.Body{
			"registrations": []jsonrpc.Body{
				{
					"id":     h.idGenerator.NewID(),
					"method": "workspace/didChangeConfiguration",
				},
			},
		},
	})
	return nil
}
