package proxyserver

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/duskrelay/duskrelay/internal/dispatcher"
	"github.com/duskrelay/duskrelay/internal/httpproxy"
	"github.com/duskrelay/duskrelay/internal/nat"
	"github.com/duskrelay/duskrelay/internal/socksserver"
)

func TestServeDispatchesSocksConnection(t *testing.T) {
	target, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer target.Close()
	go func() {
		conn, err := target.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(conn, conn)
	}()

	disp := dispatcher.New(socksserver.New("", "", nat.New()), httpproxy.New())
	srv, err := New("127.0.0.1:0", disp)
	require.NoError(t, err)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	client, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte{0x05, 0x01, 0x00})
	require.NoError(t, err)
	methodReply := make([]byte, 2)
	_, err = io.ReadFull(bufio.NewReader(client), methodReply)
	require.NoError(t, err)
	require.Equal(t, []byte{0x05, 0x00}, methodReply)
}

func TestCloseStopsAccepting(t *testing.T) {
	disp := dispatcher.New(socksserver.New("", "", nat.New()), httpproxy.New())
	srv, err := New("127.0.0.1:0", disp)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}
