// Package httpproxy implements the HTTP/1.1 side of the dual-protocol
// listener: CONNECT tunneling and plain proxy forwarding.
package httpproxy

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/textproto"
	"strings"
	"sync"

	"github.com/duskrelay/duskrelay/internal/logging"
)

const maxHeaderBlock = 10 * 1024

// Server handles one HTTP-side connection at a time: it reads the
// first request's header block, resolves the target from the Host
// header, and either tunnels (CONNECT) or forwards (everything else).
type Server struct {
	log *slog.Logger
}

// New builds a Server.
func New() *Server {
	return &Server{log: logging.For("httpproxy")}
}

// Handle reads a single HTTP request header block from r, dials the
// target named by its Host header, and relays bytes until either side
// closes. The caller owns closing conn.
func (s *Server) Handle(_ context.Context, conn net.Conn, r *bufio.Reader) {
	raw, err := readHeaderBlock(r, maxHeaderBlock)
	if err != nil {
		s.log.Debug("read request header failed", "err", err)
		return
	}

	host := extractHost(raw)
	if host == "" {
		s.log.Debug("request missing Host header")
		return
	}
	if !strings.Contains(host, ":") {
		host += ":80"
	}

	isConnect := bytes.HasPrefix(raw, []byte("CONNECT "))

	server, err := net.Dial("tcp", host)
	if err != nil {
		s.log.Debug("dial target failed", "target", host, "err", err)
		return
	}
	defer server.Close()

	if isConnect {
		if _, err := conn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
			return
		}
	} else {
		if _, err := server.Write(raw); err != nil {
			return
		}
	}

	pipe(conn, server)
}

// readHeaderBlock reads from r until a blank line terminates the
// request's header block, returning the raw bytes including that
// blank line. It refuses to buffer past maxBytes.
func readHeaderBlock(r *bufio.Reader, maxBytes int) ([]byte, error) {
	var buf bytes.Buffer
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		buf.WriteString(line)
		if buf.Len() > maxBytes {
			return nil, errors.New("httpproxy: request header too large")
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break
		}
	}
	return buf.Bytes(), nil
}

// extractHost reads the Host header out of a raw request header
// block. The header name is matched exactly as written ("Host", not
// "host" or "HOST"); net/textproto's ReadMIMEHeader canonicalizes
// header names case-insensitively, which is not what the wire format
// calls for here, so the header lines are scanned directly instead.
func extractHost(raw []byte) string {
	tp := textproto.NewReader(bufio.NewReader(bytes.NewReader(raw)))
	if _, err := tp.ReadLine(); err != nil {
		return ""
	}
	for {
		line, err := tp.ReadLine()
		if err != nil || line == "" {
			return ""
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if name != "Host" {
			continue
		}
		return strings.TrimSpace(value)
	}
}

// pipe relays bytes in both directions until either side closes, then
// closes both ends.
func pipe(a, b net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(b, a)
		_ = b.Close()
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(a, b)
		_ = a.Close()
	}()
	wg.Wait()
}
