// Package dispatcher demultiplexes a single TCP listener between the
// SOCKS5 and HTTP/1.1 proxy protocols by peeking the connection's
// first bytes without consuming them.
package dispatcher

import (
	"bufio"
	"context"
	"log/slog"
	"net"

	"github.com/duskrelay/duskrelay/internal/httpproxy"
	"github.com/duskrelay/duskrelay/internal/logging"
	"github.com/duskrelay/duskrelay/internal/socksserver"
)

// peekBufferSize must be able to hold the largest SOCKS5 greeting:
// VER(1) + NMETHODS(1) + METHODS(up to 255).
const peekBufferSize = 257

// Dispatcher routes each accepted connection to the SOCKS5 or HTTP
// handler based on its first bytes.
type Dispatcher struct {
	socks *socksserver.Server
	http  *httpproxy.Server
	log   *slog.Logger
}

// New builds a Dispatcher wired to both protocol handlers.
func New(socks *socksserver.Server, http *httpproxy.Server) *Dispatcher {
	return &Dispatcher{socks: socks, http: http, log: logging.For("dispatcher")}
}

// Handle classifies conn's protocol and dispatches to the matching
// handler, closing conn when the handler returns.
func (d *Dispatcher) Handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReaderSize(conn, peekBufferSize)
	isSocks, err := looksLikeSocks5(r)
	if err != nil {
		d.log.Debug("peek failed", "err", err, "remote", conn.RemoteAddr())
		return
	}

	if isSocks {
		d.socks.Handle(ctx, conn, r)
	} else {
		d.http.Handle(ctx, conn, r)
	}
}

// looksLikeSocks5 peeks the greeting without consuming it: a SOCKS5
// client sends VER=5 | NMETHODS | METHODS[NMETHODS], so the whole
// greeting is exactly NMETHODS+2 bytes. Input that starts with 5 but
// has more bytes buffered than that is not treated as a greeting.
func looksLikeSocks5(r *bufio.Reader) (bool, error) {
	head, err := r.Peek(2)
	if err != nil {
		return false, err
	}
	if head[0] != 0x05 {
		return false, nil
	}
	total := int(head[1]) + 2
	if _, err := r.Peek(total); err != nil {
		return false, err
	}
	return r.Buffered() == total, nil
}
