// Package proxyserver is the top-level TCP listener: it accepts
// connections and hands each one to the protocol dispatcher on its
// own goroutine, tagging it with a correlation ID for logging.
package proxyserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/duskrelay/duskrelay/internal/audit"
	"github.com/duskrelay/duskrelay/internal/correlate"
	"github.com/duskrelay/duskrelay/internal/dispatcher"
	"github.com/duskrelay/duskrelay/internal/logging"
)

// Server accepts TCP connections on one address and dispatches each
// to the SOCKS5/HTTP handler.
type Server struct {
	ln   net.Listener
	disp *dispatcher.Dispatcher
	log  *slog.Logger

	// Audit, if set, receives an "accepted" and a "closed" event for
	// every connection. Nil disables recording.
	Audit *audit.Log
}

// New binds addr (e.g. "0.0.0.0:7878").
func New(addr string, disp *dispatcher.Dispatcher) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("proxyserver: listen %q: %w", addr, err)
	}
	return &Server{ln: ln, disp: disp, log: logging.For("proxyserver")}, nil
}

// Addr returns the listener's bound local address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve accepts connections until ctx is cancelled or the listener is
// closed, dispatching each on its own goroutine.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			s.log.Warn("accept failed", "err", err)
			continue
		}

		id := correlate.New()
		remote := conn.RemoteAddr().String()
		connLog := s.log.With("correlation_id", id, "remote", remote)
		connLog.Debug("connection accepted")
		if s.Audit != nil {
			s.Audit.Record(ctx, audit.Event{CorrelationID: id, Protocol: "tcp", RemoteAddr: remote, Kind: "accepted"})
		}

		go func() {
			connCtx := correlate.WithID(ctx, id)
			s.disp.Handle(connCtx, conn)
			connLog.Debug("connection closed")
			if s.Audit != nil {
				s.Audit.Record(ctx, audit.Event{CorrelationID: id, Protocol: "tcp", RemoteAddr: remote, Kind: "closed"})
			}
		}()
	}
}

// Close closes the underlying listener.
func (s *Server) Close() error {
	return s.ln.Close()
}
