// Package udptunnel implements the SOCKS5 UDP ASSOCIATE relay: a pair
// of UDP sockets bridging a client and its chosen targets, with
// lifetime bound to the controlling TCP connection.
package udptunnel

import (
	"context"
	"log/slog"
	"net"

	"github.com/duskrelay/duskrelay/internal/logging"
	"github.com/duskrelay/duskrelay/internal/nat"
	"github.com/duskrelay/duskrelay/internal/socksaddr"
)

// Tunnel owns two UDP sockets for one UDP ASSOCIATE: local faces the
// SOCKS client, remote faces the internet.
type Tunnel struct {
	local  *net.UDPConn
	remote *net.UDPConn

	localPort  uint16
	remotePort uint16

	nat *nat.Table
	log *slog.Logger

	cancel context.CancelFunc
}

// New acquires two NAT ports and binds a UDP socket on each (wildcard
// host). It does not start relaying until Start is called.
func New(natTable *nat.Table) (*Tunnel, error) {
	localPort, err := natTable.Select()
	if err != nil {
		return nil, err
	}
	remotePort, err := natTable.Select()
	if err != nil {
		natTable.Remove(localPort)
		return nil, err
	}

	local, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(localPort)})
	if err != nil {
		natTable.Remove(localPort)
		natTable.Remove(remotePort)
		return nil, err
	}
	remote, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(remotePort)})
	if err != nil {
		local.Close()
		natTable.Remove(localPort)
		natTable.Remove(remotePort)
		return nil, err
	}

	return &Tunnel{
		local:      local,
		remote:     remote,
		localPort:  localPort,
		remotePort: remotePort,
		nat:        natTable,
		log:        logging.For("udptunnel"),
	}, nil
}

// LocalPort returns the port of the socket facing the SOCKS client,
// used as BND.PORT in the UDP ASSOCIATE reply.
func (t *Tunnel) LocalPort() uint16 { return t.localPort }

// Start blocks until the first datagram arrives from the client on
// the local socket. That datagram both reveals the client's address
// (the local socket is then connected to it) and carries the first
// UDP relay frame, whose payload is forwarded immediately. Two relay
// goroutines are then spawned and the NAT mapping is recorded.
func (t *Tunnel) Start(ctx context.Context) error {
	buf := make([]byte, 65535)
	n, clientAddr, err := t.local.ReadFromUDP(buf)
	if err != nil {
		return err
	}
	if err := t.local.Close(); err != nil {
		return err
	}
	t.local, err = net.DialUDP("udp", &net.UDPAddr{Port: int(t.localPort)}, clientAddr)
	if err != nil {
		return err
	}

	if target, payload, ferr := parseFrame(buf[:n]); ferr != nil {
		t.log.Warn("dropping malformed initial UDP relay frame", "err", ferr)
	} else if targetAddr, rerr := net.ResolveUDPAddr("udp", target); rerr == nil {
		_, _ = t.remote.WriteToUDP(payload, targetAddr)
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	go t.relayClientToServer(runCtx)
	go t.relayServerToClient(runCtx)

	t.nat.Insert(t.localPort, t.remotePort)
	return nil
}

func (t *Tunnel) relayClientToServer(ctx context.Context) {
	buf := make([]byte, 65535)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := t.local.Read(buf)
		if err != nil {
			return
		}
		target, payload, ferr := parseFrame(buf[:n])
		if ferr != nil {
			t.log.Warn("dropping malformed client->server UDP relay frame", "err", ferr)
			continue
		}
		targetAddr, rerr := net.ResolveUDPAddr("udp", target)
		if rerr != nil {
			t.log.Warn("resolve relay target failed", "target", target, "err", rerr)
			continue
		}
		if _, err := t.remote.WriteToUDP(payload, targetAddr); err != nil {
			t.log.Warn("relay to target failed", "err", err)
		}
	}
}

func (t *Tunnel) relayServerToClient(ctx context.Context) {
	buf := make([]byte, 65535)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, fromAddr, err := t.remote.ReadFromUDP(buf)
		if err != nil {
			return
		}
		origin := socksaddr.StringifyTarget(fromAddr)
		frame := buildFrame(origin, buf[:n])
		if _, err := t.local.Write(frame); err != nil {
			t.log.Warn("relay to client failed", "err", err)
		}
	}
}

// Close cancels both relay goroutines, closes both sockets, and
// removes the NAT mapping keyed by the local port. If Start never
// recorded a mapping, both allocated ports are released directly.
func (t *Tunnel) Close() error {
	if t.cancel != nil {
		t.cancel()
	}
	t.nat.Remove(t.localPort)
	if t.cancel == nil {
		t.nat.Remove(t.remotePort)
	}
	errLocal := t.local.Close()
	errRemote := t.remote.Close()
	if errLocal != nil {
		return errLocal
	}
	return errRemote
}
