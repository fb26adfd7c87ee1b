// Package jsonrpc implements the wire-level JSON-RPC 2.0 framing and
// dispatch engine that drives the language server: a byte-at-a-time
// header/body state machine, method routing, and request/response
// correlation for server-initiated requests.
//
// This is deliberately hand-rolled rather than built on a JSON-RPC
// transport library: the framing state machine (HeaderScan -> BodyScan ->
// ReadyDispatch) and its error-recovery quirks are the contract this
// package exists to implement.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ErrorCode is a JSON-RPC 2.0 wire-level error code.
type ErrorCode int32

// Wire-level error codes. NotInitialized is an LSP extension, not part of
// base JSON-RPC 2.0.
const (
	ParseError     ErrorCode = -32700
	InvalidRequest ErrorCode = -32600
	MethodNotFound ErrorCode = -32601
	InvalidParams  ErrorCode = -32602
	InternalError  ErrorCode = -32603
	NotInitialized ErrorCode = -32002
)

// Body is a decoded JSON-RPC message body, as a loosely typed JSON object.
// The engine deliberately does not require callers to define Go structs for
// every LSP method: the session handler picks fields out by name, the same
// way the original implementation treated every message as an untyped JSON
// object.
type Body = map[string]interface{}

// MethodCallback handles an inbound request or notification. A returned
// error is logged by the engine; it does not itself produce a JSON-RPC
// error response — callers that need to surface a failure to the client do
// so explicitly via WriteError (see the LSP session handler's
// buildDiagnosticsRespond for the canonical example).
type MethodCallback func(body Body) error

// InputCallback handles a client response to a server-initiated request.
type InputCallback func(body Body)

// OutputCallback receives a fully framed outbound message (headers + body)
// for delivery to the transport (typically stdout).
type OutputCallback func(frame []byte)

// headerRegexp extracts "Key: Value\r\n" header lines as they accumulate in
// the buffer, optionally followed by a non-header line (mirrors the
// original parser's header regex verbatim).
var headerRegexp = regexp.MustCompile(`([\w-]+): (.+)\r\n(?:([^:]+)\r\n)?`)

const crlf = "\r\n"

// Engine is the JSON-RPC framing and dispatch state machine. It is driven
// one byte at a time via Consume and is not safe for concurrent use: the
// server loop that owns it is the only goroutine that may call into it,
// matching the single-threaded cooperative model of the server as a whole.
type Engine struct {
	logger *zap.SugaredLogger

	buffer        []byte
	headers       map[string]string
	contentLength int
	validHeader   bool
	isProcessing  bool

	method string
	body   Body

	callbacks      map[string]MethodCallback
	inputCallback  InputCallback
	outputCallback OutputCallback

	initialized    bool
	tracing        bool
	verboseTracing bool
}

// New returns a fresh Engine in the HeaderScan state, ready to receive
// bytes at consume.
func New(logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{
		logger:       logger,
		headers:      make(map[string]string),
		callbacks:    make(map[string]MethodCallback),
		isProcessing: true,
	}
}

// RegisterMethodCallback sets (or idempotently overwrites) the handler for
// an inbound method name.
func (e *Engine) RegisterMethodCallback(method string, fn MethodCallback) {
	e.logger.Debugw("registering method callback", "method", method)
	e.callbacks[method] = fn
}

// RegisterInputCallback sets the handler invoked for client responses to
// server-initiated requests.
func (e *Engine) RegisterInputCallback(fn InputCallback) {
	e.logger.Debug("registering client response callback")
	e.inputCallback = fn
}

// RegisterOutputCallback sets the handler invoked with each framed
// outbound message.
func (e *Engine) RegisterOutputCallback(fn OutputCallback) {
	e.logger.Debug("registering output callback")
	e.outputCallback = fn
}

// Consume feeds a single byte into the state machine.
func (e *Engine) Consume(b byte) {
	e.buffer = append(e.buffer, b)
	if e.validHeader {
		e.processBody()
	} else {
		e.processHeaderByte()
	}
}

// IsReady reports whether a complete frame body has been consumed (dispatched,
// or rejected with a ParseError); the caller should Write any queued
// responses and then call Reset.
func (e *Engine) IsReady() bool {
	return !e.isProcessing
}

// Reset clears all per-frame state, returning the engine to HeaderScan.
func (e *Engine) Reset() {
	e.method = ""
	e.buffer = e.buffer[:0]
	e.body = nil
	e.headers = make(map[string]string)
	e.validHeader = false
	e.contentLength = 0
	e.isProcessing = true
}

// Write serializes data as the body of an outbound frame, injecting
// "jsonrpc":"2.0", and hands the framed bytes to the output callback.
func (e *Engine) Write(data Body) {
	if e.outputCallback == nil {
		e.logger.Error("write called with no output callback registered")
		return
	}

	withVersion := make(Body, len(data)+1)
	for k, v := range data {
		withVersion[k] = v
	}
	withVersion["jsonrpc"] = "2.0"

	content, err := json.Marshal(withVersion)
	if err != nil {
		e.logger.Errorw("failed to serialize message", "error", err)
		return
	}

	var frame bytes.Buffer
	fmt.Fprintf(&frame, "Content-Length: %d%s", len(content), crlf)
	frame.WriteString("Content-Type: application/vscode-jsonrpc;charset=utf-8" + crlf)
	frame.WriteString(crlf)
	frame.Write(content)

	e.logger.Debugw("writing frame", "body", string(content))
	e.outputCallback(frame.Bytes())
}

// WriteError reports a wire-level error, following the original protocol's
// shape of an untagged {"error": {...}} body (no "id" field).
func (e *Engine) WriteError(code ErrorCode, message string) {
	e.logger.Debugw("reporting error", "code", code, "message", message)
	e.Write(Body{
		"error": Body{
			"code":    int32(code),
			"message": message,
		},
	})
}

// WriteTrace emits a $/logTrace notification when tracing is enabled; it is
// a no-op otherwise (but always logs internally, so trace content is never
// entirely lost).
func (e *Engine) WriteTrace(message, verbose string) {
	if !e.tracing {
		e.logger.Debugw("tracing disabled, dropping trace", "message", message, "verbose", verbose)
		return
	}

	verboseOut := ""
	if e.verboseTracing {
		verboseOut = verbose
	}
	e.Write(Body{
		"method": "$/logTrace",
		"params": Body{
			"message": message,
			"verbose": verboseOut,
		},
	})
}

func (e *Engine) processHeaderByte() {
	if e.readHeaders() {
		e.buffer = e.buffer[:0]
	}

	if string(e.buffer) == crlf {
		e.buffer = e.buffer[:0]
		e.validHeader = e.contentLength > 0
		if !e.validHeader {
			e.WriteError(InvalidRequest, "Invalid content length")
		}
	}
}

// readHeaders scans the buffer for complete "Key: Value\r\n" lines,
// recording every one found (Content-Length is parsed specially; all other
// headers are preserved but otherwise ignored). It returns true if at least
// one header line was found, signaling the caller to clear the buffer.
func (e *Engine) readHeaders() bool {
	matches := headerRegexp.FindAllStringSubmatch(string(e.buffer), -1)
	if len(matches) == 0 {
		return false
	}
	for _, m := range matches {
		key, value := m[1], m[2]
		if key == "Content-Length" {
			if n, err := strconv.Atoi(value); err == nil {
				e.contentLength = n
			}
		}
		e.headers[key] = value
	}
	return true
}

func (e *Engine) processBody() {
	if len(e.buffer) != e.contentLength {
		return
	}

	e.logger.Debugw("buffered frame body", "body", string(e.buffer))

	var body Body
	if err := json.Unmarshal(e.buffer, &body); err != nil {
		e.logger.Errorw("failed to parse request", "error", err)
		e.buffer = e.buffer[:0]
		e.WriteError(ParseError, "Failed to parse request")
		e.isProcessing = false
		return
	}
	e.body = body

	if methodVal, ok := body["method"]; ok {
		if method, ok := methodVal.(string); ok {
			e.method = method
			e.processMethod()
			e.isProcessing = false
			return
		}
	}

	e.fireRespondCallback()
	e.isProcessing = false
}

func (e *Engine) processMethod() {
	switch {
	case e.method == "initialize":
		e.onInitialize()
	case !e.initialized:
		e.logAndHandleUnexpectedMessage()
		return
	case e.method == "$/setTrace":
		e.onTracingChanged()
	}
	e.fireMethodCallback()
}

func (e *Engine) onInitialize() {
	trace, _ := paramString(e.body, "trace")
	e.tracing = trace != "off"
	e.verboseTracing = trace == "verbose"
	e.initialized = true
	e.logger.Debugw("tracing options from initialize", "verbose", e.verboseTracing, "on", e.tracing)
}

func (e *Engine) onTracingChanged() {
	trace, _ := paramValue(e.body, "value")
	traceStr, _ := trace.(string)
	e.tracing = traceStr != "off"
	e.verboseTracing = traceStr == "verbose"
	e.logger.Debugw("tracing options changed", "verbose", e.verboseTracing, "on", e.tracing)
}

func (e *Engine) logAndHandleUnexpectedMessage() {
	e.logger.Errorw("unexpected first message", "method", e.method)
	e.WriteError(NotInitialized, "Server was not initialized.")
}

func (e *Engine) fireMethodCallback() {
	cb, ok := e.callbacks[e.method]
	if !ok {
		mustRespond := e.paramsHaveID() || !strings.HasPrefix(e.method, "$/")
		e.logger.Debugw("no handler registered", "method", e.method, "mustRespond", mustRespond)
		if mustRespond {
			e.WriteError(MethodNotFound, fmt.Sprintf("Method %q is not supported.", e.method))
		}
		return
	}

	e.logger.Debugw("dispatching method", "method", e.method)
	if err := cb(e.body); err != nil {
		e.logger.Errorw("method handler failed", "method", e.method, "error", err)
	}
}

func (e *Engine) fireRespondCallback() {
	if e.inputCallback == nil {
		return
	}
	e.logger.Debug("dispatching client response")
	e.inputCallback(e.body)
}

// paramsHaveID reports whether body.params.id is present and non-null,
// mirroring the original dispatcher's (slightly unusual) request test: it
// inspects params.id rather than the top-level id.
func (e *Engine) paramsHaveID() bool {
	id, ok := paramValue(e.body, "id")
	return ok && id != nil
}

func paramValue(body Body, key string) (interface{}, bool) {
	params, ok := body["params"].(Body)
	if !ok {
		return nil, false
	}
	v, ok := params[key]
	return v, ok
}

func paramString(body Body, key string) (string, bool) {
	v, ok := paramValue(body, key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
