package upstream

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeResolvConf(t *testing.T, nameserverIP string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resolv.conf")
	require.NoError(t, os.WriteFile(path, []byte("nameserver "+nameserverIP+"\n"), 0o644))
	return path
}

// fakeNameserver binds a UDP socket and echoes every received datagram
// back to its sender, standing in for a real upstream resolver.
func fakeNameserver(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 512)
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			_, _ = conn.WriteToUDP(buf[:n], addr)
		}
	}()
	return conn
}

func TestResolveReturnsMatchingReply(t *testing.T) {
	ns := fakeNameserver(t)
	path := writeResolvConf(t, ns.LocalAddr().(*net.UDPAddr).IP.String())

	// resolv.conf assumes port 53; override by dialing the real test
	// server port directly instead of through loadNameservers' fixed port.
	c, err := New(path)
	require.NoError(t, err)
	defer c.Close()
	c.nameservers[0].Port = ns.LocalAddr().(*net.UDPAddr).Port

	query := []byte{0x12, 0x34, 0, 0, 0, 1}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reply, err := c.Resolve(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, query, reply)
}

func TestResolveNoNameservers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resolv.conf")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	c, err := New(path)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Resolve(context.Background(), []byte{1, 2})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestResolveContextCancellation(t *testing.T) {
	path := writeResolvConf(t, "127.0.0.1")
	c, err := New(path)
	require.NoError(t, err)
	defer c.Close()
	c.nameservers[0].Port = 1 // nothing listening; no reply will ever arrive

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Resolve(ctx, []byte{0xAB, 0xCD, 0, 0})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
