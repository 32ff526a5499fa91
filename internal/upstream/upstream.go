// Package upstream implements a single-socket DNS forwarding client: one
// UDP socket shared by every in-flight query, with replies correlated
// back to their requester by transaction ID over a broadcast fan-out.
package upstream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/duskrelay/duskrelay/internal/logging"
	"golang.org/x/sys/unix"
)

// ErrUnavailable is returned by Resolve when no nameservers are
// configured or the send to the upstream socket fails.
var ErrUnavailable = errors.New("upstream: no nameserver available")

const subscriberBufferSize = 16

// Client is a single UDP socket forwarding queries to the nameservers
// configured in resolv.conf, fanning out every inbound datagram to
// every in-flight Resolve call via a broadcast hub.
type Client struct {
	conn       *net.UDPConn
	nameservers []*net.UDPAddr

	mu          sync.Mutex
	subscribers map[chan []byte]struct{}

	log *slog.Logger
}

// New binds a UDP socket on a wildcard port, loads nameservers from
// resolvConfPath (typically /etc/resolv.conf), and starts the receive
// loop that fans inbound datagrams out to subscribers.
func New(resolvConfPath string) (*Client, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("upstream: listen: %w", err)
	}

	if rc, err := conn.SyscallConn(); err == nil {
		_ = rc.Control(func(fd uintptr) {
			_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, 1<<20)
		})
	}

	c := &Client{
		conn:        conn,
		subscribers: make(map[chan []byte]struct{}),
		log:         logging.For("upstream"),
	}
	c.loadNameservers(resolvConfPath)
	go c.receiveLoop()
	return c, nil
}

func (c *Client) loadNameservers(path string) {
	f, err := os.Open(path)
	if err != nil {
		c.log.Warn("load resolv.conf failed", "path", path, "err", err)
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "nameserver" {
			continue
		}
		ip := net.ParseIP(fields[1])
		if ip == nil {
			c.log.Warn("parse nameserver failed", "line", line)
			continue
		}
		c.nameservers = append(c.nameservers, &net.UDPAddr{IP: ip, Port: 53})
	}
}

func (c *Client) receiveLoop() {
	buf := make([]byte, 65535)
	for {
		n, _, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			c.log.Error("resolve from upstream failed", "err", err)
			continue
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		c.broadcast(datagram)
	}
}

func (c *Client) broadcast(datagram []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.subscribers {
		select {
		case ch <- datagram:
		default:
			c.log.Warn("subscriber channel full, dropping upstream datagram")
		}
	}
}

func (c *Client) subscribe() chan []byte {
	ch := make(chan []byte, subscriberBufferSize)
	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	c.mu.Unlock()
	return ch
}

func (c *Client) unsubscribe(ch chan []byte) {
	c.mu.Lock()
	delete(c.subscribers, ch)
	c.mu.Unlock()
}

// Resolve sends raw (the original query's wire bytes) to the first
// configured nameserver and waits for the first reply datagram whose
// leading two bytes (transaction id) match raw's. The subscription is
// created before the send so a reply racing the send is never missed.
func (c *Client) Resolve(ctx context.Context, raw []byte) ([]byte, error) {
	if len(c.nameservers) == 0 {
		return nil, ErrUnavailable
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("upstream: query too short to carry a transaction id")
	}

	ch := c.subscribe()
	defer c.unsubscribe(ch)

	if _, err := c.conn.WriteToUDP(raw, c.nameservers[0]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case datagram := <-ch:
			if len(datagram) >= 2 && datagram[0] == raw[0] && datagram[1] == raw[1] {
				return datagram, nil
			}
		}
	}
}

// Close closes the upstream socket, terminating the receive loop.
func (c *Client) Close() error {
	return c.conn.Close()
}
