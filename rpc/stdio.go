package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/goliatone/go-flowise/logging"
)

const (
	// TransportStdio tags requests that arrived on the line transport.
	TransportStdio = "stdio"

	maxLineSize = 32 * 1024 * 1024
)

// LineTransport serves JSON-RPC 2.0 over newline delimited messages, one
// request per line. Requests are processed in arrival order and every
// response is written as a single line.
type LineTransport struct {
	server *Server
	in     io.Reader
	out    io.Writer
	mu     sync.Mutex
	logger logging.Logger
}

// NewLineTransport binds server to in and out.
func NewLineTransport(server *Server, in io.Reader, out io.Writer) *LineTransport {
	return &LineTransport{
		server: server,
		in:     in,
		out:    out,
		logger: server.Logger(),
	}
}

// ServeStdio serves server on the given reader and writer until in is
// exhausted or ctx is done.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	return NewLineTransport(s, in, out).Serve(ctx)
}

// Serve reads lines until EOF or cancellation. A nil error is returned on
// EOF and on cancellation. On cancellation in is closed when it is an
// io.Closer, which releases the blocked reader; other readers keep the
// read goroutine alive until they return.
func (t *LineTransport) Serve(ctx context.Context) error {
	lines := make(chan []byte)
	errs := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(t.in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			msg := make([]byte, len(line))
			copy(msg, line)
			select {
			case lines <- msg:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- err
		}
	}()

	t.logger.Info("rpc line transport started")
	for {
		select {
		case <-ctx.Done():
			if closer, ok := t.in.(io.Closer); ok {
				if err := closer.Close(); err != nil {
					t.logger.Warn("rpc line transport close input: %v", err)
				}
			}
			t.logger.Info("rpc line transport stopped: %v", ctx.Err())
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errs:
					t.logger.Error("rpc line transport read failed: %v", err)
					return err
				default:
				}
				t.logger.Info("rpc line transport reached end of input")
				return nil
			}
			t.handle(ctx, line)
		}
	}
}

func (t *LineTransport) handle(ctx context.Context, line []byte) {
	handlePanic := logging.MakePanicHandler(logging.LoggerPanicLogger(t.logger))
	defer handlePanic("rpc.LineTransport.handle", map[string]any{"transport": TransportStdio})

	resp, ok := t.server.HandleMessage(ctx, line, RequestMeta{Transport: TransportStdio})
	if !ok {
		return
	}
	if err := t.write(resp); err != nil {
		t.logger.Error("rpc line transport write failed: %v", err)
	}
}

func (t *LineTransport) write(resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		data, _ = json.Marshal(errorResponse(resp.ID, CodeInvocationFailed, "response could not be encoded", err.Error()))
	}
	data = append(data, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err = t.out.Write(data)
	return err
}
