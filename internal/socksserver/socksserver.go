// Package socksserver implements the SOCKS5 request phase: method
// negotiation, the CONNECT and UDP ASSOCIATE commands, and stream
// relaying once a target is reached.
package socksserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"syscall"

	"github.com/duskrelay/duskrelay/internal/logging"
	"github.com/duskrelay/duskrelay/internal/nat"
	"github.com/duskrelay/duskrelay/internal/socksaddr"
	"github.com/duskrelay/duskrelay/internal/socksauth"
	"github.com/duskrelay/duskrelay/internal/udptunnel"
)

const (
	cmdConnect      = 0x01
	cmdBind         = 0x02
	cmdUDPAssociate = 0x03
)

// SOCKS5 reply codes (RFC 1928 Section 6).
const (
	repSucceeded               = 0x00
	repFailure                 = 0x01
	repNetworkUnreachable      = 0x03
	repHostUnreachable         = 0x04
	repConnectionRefused       = 0x05
	repTTLExpired              = 0x06
	repCommandNotSupported     = 0x07
	repAddressTypeNotSupported = 0x08
)

// Server handles the SOCKS5 side of a dual-protocol listener: method
// negotiation, request parsing, and command dispatch.
type Server struct {
	username string
	password string
	required bool

	nat *nat.Table
	log *slog.Logger
}

// New builds a Server. Authentication is required only when both
// username and password are non-empty.
func New(username, password string, natTable *nat.Table) *Server {
	return &Server{
		username: username,
		password: password,
		required: username != "" && password != "",
		nat:      natTable,
		log:      logging.For("socksserver"),
	}
}

// Handle negotiates SOCKS5 authentication over r/conn, then parses and
// dispatches a single request. r must already have consumed no bytes
// past the method-selection greeting the caller used to identify the
// connection as SOCKS5.
func (s *Server) Handle(ctx context.Context, conn net.Conn, r *bufio.Reader) {
	if err := socksauth.Negotiate(r, conn, s.required, s.username, s.password); err != nil {
		if !errors.Is(err, socksauth.ErrRejected) {
			s.log.Warn("auth negotiation failed", "err", err)
		}
		return
	}

	cmd, target, err := readRequest(r)
	if err != nil {
		s.log.Warn("request parse failed", "err", err)
		return
	}

	switch cmd {
	case cmdConnect:
		s.handleConnect(conn, target)
	case cmdUDPAssociate:
		s.handleUDPAssociate(ctx, conn)
	case cmdBind:
		s.log.Debug("BIND command not supported")
	default:
		s.log.Debug("unknown SOCKS5 command", "cmd", cmd)
	}
}

// readRequest reads VER|CMD|RSV|ATYP|DST.ADDR|DST.PORT and returns the
// command byte and the dialable "host:port" target.
func readRequest(r *bufio.Reader) (cmd byte, target string, err error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, "", err
	}
	cmd = header[1]
	atyp := header[3]

	var addr []byte
	switch atyp {
	case socksaddr.ATYPIPv4:
		addr = make([]byte, net.IPv4len+2)
	case socksaddr.ATYPIPv6:
		addr = make([]byte, net.IPv6len+2)
	case socksaddr.ATYPDomainName:
		lenByte := make([]byte, 1)
		if _, err := io.ReadFull(r, lenByte); err != nil {
			return 0, "", err
		}
		addr = make([]byte, 1+int(lenByte[0])+2)
		addr[0] = lenByte[0]
		if _, err := io.ReadFull(r, addr[1:]); err != nil {
			return 0, "", err
		}
		target, _ = socksaddr.ParseTarget(atyp, addr)
		return cmd, target, nil
	default:
		return 0, "", errors.New("socksserver: unrecognized ATYP")
	}

	if _, err := io.ReadFull(r, addr); err != nil {
		return 0, "", err
	}
	target, _ = socksaddr.ParseTarget(atyp, addr)
	return cmd, target, nil
}

func (s *Server) handleConnect(conn net.Conn, target string) {
	local, _ := conn.LocalAddr().(*net.TCPAddr)
	var bnd []byte
	if local != nil {
		bnd = socksaddr.StringifyHostPort(local.IP, local.Port)
	} else {
		bnd = socksaddr.StringifyHostPort(net.IPv4zero, 0)
	}

	server, err := net.Dial("tcp", target)
	if err != nil {
		s.log.Debug("connect target failed", "target", target, "err", err)
		_, _ = conn.Write(reply(mapDialError(err), bnd))
		return
	}
	defer server.Close()

	if _, err := conn.Write(reply(repSucceeded, bnd)); err != nil {
		return
	}
	pipe(conn, server)
}

func (s *Server) handleUDPAssociate(ctx context.Context, conn net.Conn) {
	tun, err := udptunnel.New(s.nat)
	if err != nil {
		s.log.Warn("udp tunnel allocation failed", "err", err)
		_, _ = conn.Write(reply(repFailure, socksaddr.StringifyHostPort(net.IPv4zero, 0)))
		return
	}

	local, _ := conn.LocalAddr().(*net.TCPAddr)
	var ip net.IP
	if local != nil {
		ip = local.IP
	} else {
		ip = net.IPv4zero
	}
	bnd := socksaddr.StringifyHostPort(ip, int(tun.LocalPort()))
	if _, err := conn.Write(reply(repSucceeded, bnd)); err != nil {
		tun.Close()
		return
	}

	if err := tun.Start(ctx); err != nil {
		s.log.Warn("udp tunnel start failed", "err", err)
		tun.Close()
		return
	}
	defer tun.Close()

	buf := make([]byte, 1)
	_, _ = conn.Read(buf)
}

func reply(rep byte, bnd []byte) []byte {
	out := make([]byte, 0, 3+len(bnd))
	out = append(out, 0x05, rep, 0x00)
	return append(out, bnd...)
}

// mapDialError translates a dial error into a SOCKS5 reply code.
func mapDialError(err error) byte {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return repConnectionRefused
	case errors.Is(err, syscall.ETIMEDOUT):
		return repTTLExpired
	case errors.Is(err, syscall.EADDRNOTAVAIL):
		return repHostUnreachable
	case errors.Is(err, syscall.ENOTCONN):
		return repNetworkUnreachable
	case errors.Is(err, syscall.EINVAL):
		return repAddressTypeNotSupported
	case errors.Is(err, syscall.ENOENT):
		return repHostUnreachable
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return repTTLExpired
	}
	return repFailure
}

// pipe relays bytes in both directions until either side closes,
// then closes both ends.
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
