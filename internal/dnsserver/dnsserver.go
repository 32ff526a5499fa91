// Package dnsserver listens for DNS queries on a single UDP socket and
// dispatches each datagram to a resolver in turn, preserving per-client
// datagram order.
package dnsserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/duskrelay/duskrelay/internal/logging"
	"github.com/duskrelay/duskrelay/internal/pool"
	"golang.org/x/sys/unix"
)

const maxDatagramSize = 4096

// Resolver is the subset of *resolver.Resolver the server depends on.
type Resolver interface {
	Handle(ctx context.Context, raw []byte) []byte
}

// Server listens on one UDP socket and answers each datagram
// sequentially, handing it to resolver before moving to the next.
type Server struct {
	conn     *net.UDPConn
	resolver Resolver
	log      *slog.Logger
	bufPool  *pool.Pool[[]byte]
}

// New binds addr (e.g. "127.0.0.1:53") and returns a Server ready to
// Serve.
func New(addr string, resolver Resolver) (*Server, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dnsserver: resolve %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("dnsserver: listen %q: %w", addr, err)
	}

	if rc, err := conn.SyscallConn(); err == nil {
		_ = rc.Control(func(fd uintptr) {
			_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, 1<<20)
		})
	}

	return &Server{
		conn:     conn,
		resolver: resolver,
		log:      logging.For("dnsserver"),
		bufPool: pool.New(func() []byte {
			return make([]byte, maxDatagramSize)
		}),
	}, nil
}

// Addr returns the socket's bound local address.
func (s *Server) Addr() net.Addr { return s.conn.LocalAddr() }

// Serve reads datagrams one at a time until ctx is cancelled or the
// socket is closed, answering each before reading the next so that a
// client's queries are always processed in the order received.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.conn.Close()
	}()

	for {
		buf := s.bufPool.Get()
		n, clientAddr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			s.bufPool.Put(buf)
			if errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			s.log.Warn("dns read failed", "err", err)
			continue
		}

		raw := make([]byte, n)
		copy(raw, buf[:n])
		s.bufPool.Put(buf)

		reply := s.resolver.Handle(ctx, raw)
		if reply == nil {
			continue
		}
		if _, err := s.conn.WriteToUDP(reply, clientAddr); err != nil {
			s.log.Warn("dns reply write failed", "err", err, "client", clientAddr)
		}
	}
}

// Close closes the underlying socket.
func (s *Server) Close() error {
	return s.conn.Close()
}
