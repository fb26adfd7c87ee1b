package lspsession

import (
	"errors"
	"io"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Galarius/opencl-language-server/internal/jsonrpc"
)

// ErrInterrupted is returned by Run when the interrupt flag was observed
// between two input bytes (the byte-boundary equivalent of POSIX EINTR).
var ErrInterrupted = errors.New("interrupted")

// Loop owns the read loop that drives a jsonrpc.Engine and a Handler: it
// feeds input bytes to the engine one at a time, and on every complete
// frame resets the engine and drains the handler's response queue through
// it. It is the only goroutine that may touch either collaborator.
type Loop struct {
	rpc     *jsonrpc.Engine
	handler *Handler
	logger  *zap.SugaredLogger

	interrupted atomic.Bool
}

// NewLoop wires the handler's callbacks onto rpc and returns a Loop ready
// to Run. Output frames are written to out as they are produced.
func NewLoop(rpc *jsonrpc.Engine, handler *Handler, out io.Writer, logger *zap.SugaredLogger) *Loop {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	l := &Loop{rpc: rpc, handler: handler, logger: logger}

	rpc.RegisterMethodCallback("initialize", handler.OnInitialize)
	rpc.RegisterMethodCallback("initialized", handler.OnInitialized)
	rpc.RegisterMethodCallback("shutdown", handler.OnShutdown)
	rpc.RegisterMethodCallback("exit", handler.OnExit)
	rpc.RegisterMethodCallback("textDocument/didOpen", handler.OnTextOpen)
	rpc.RegisterMethodCallback("textDocument/didChange", handler.OnTextChanged)
	rpc.RegisterMethodCallback("workspace/didChangeConfiguration", handler.OnConfigurationChanged)
	rpc.RegisterInputCallback(handler.OnRespond)
	rpc.RegisterOutputCallback(func(frame []byte) {
		if _, err := out.Write(frame); err != nil {
			logger.Errorw("failed to write frame", "error", err)
		}
	})

	return l
}

// Interrupt requests that Run stop at the next byte boundary. Safe to call
// from a signal handler.
func (l *Loop) Interrupt() {
	l.interrupted.Store(true)
}

// Run reads from in one byte at a time until EOF, interruption, or a read
// error. On every complete frame it resets the engine and writes every
// response the handler has queued.
func (l *Loop) Run(in io.Reader) error {
	if err := setBinaryMode(); err != nil {
		l.logger.Warnw("failed to switch streams to binary mode", "error", err)
	}

	buf := make([]byte, 1)
	for {
		if l.interrupted.Load() {
			return ErrInterrupted
		}

		n, err := in.Read(buf)
		if n > 0 {
			l.rpc.Consume(buf[0])
			if l.rpc.IsReady() {
				l.rpc.Reset()
				for {
					resp, ok := l.handler.GetNextResponse()
					if !ok {
						break
					}
					l.rpc.Write(resp)
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}
