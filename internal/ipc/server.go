package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/ItsAbhinavM/Bob/internal/logging"
)

const (
	// DefaultReadTimeout bounds how long a client may take to send its request.
	DefaultReadTimeout = 2 * time.Second
	// DefaultWriteTimeout bounds delivering a response once it is ready.
	DefaultWriteTimeout = 2 * time.Second
)

// Handler processes one IPC command request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Server answers session commands. Reading the request and writing the
// response are bounded; the handler itself is not, since a say waits for
// the assistant's reply.
type Server struct {
	Handler      Handler
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

// Serve runs a Server with default timeouts.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	return (&Server{Handler: handler}).Serve(ctx, listener)
}

// Serve accepts clients until ctx ends or the listener closes, then waits
// for in-flight requests.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	logger := logging.OrDiscard(s.Logger)
	var wg sync.WaitGroup
	defer wg.Wait()

	stop := context.AfterFunc(ctx, func() {
		_ = listener.Close()
	})
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveConn(ctx, conn, logger)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn, logger *slog.Logger) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(orDefault(s.ReadTimeout, DefaultReadTimeout)))
	line, err := readLine(bufio.NewReader(conn))
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			logger.Warn("ipc client sent no request in time")
		}
		s.reply(conn, Failure("read request: %v", err), logger)
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.reply(conn, Failure("decode request: %v", err), logger)
		return
	}

	started := time.Now()
	resp := s.Handler.Handle(ctx, req)
	logger.Debug("ipc request handled",
		"command", req.Command,
		"ok", resp.OK,
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	s.reply(conn, resp, logger)
}

func (s *Server) reply(conn net.Conn, resp Response, logger *slog.Logger) {
	_ = conn.SetWriteDeadline(time.Now().Add(orDefault(s.WriteTimeout, DefaultWriteTimeout)))
	if err := writeLine(conn, resp); err != nil {
		logger.Debug("ipc response not delivered", "error", err.Error())
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
