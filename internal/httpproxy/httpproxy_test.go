package httpproxy

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func tcpEchoServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				io.Copy(conn, conn)
			}()
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func TestHandleConnectEstablishesTunnel(t *testing.T) {
	target := tcpEchoServer(t)
	s := New()

	client, server := net.Pipe()
	defer client.Close()

	go s.Handle(context.Background(), server, bufio.NewReader(server))

	req := "CONNECT " + target + " HTTP/1.1\r\nHost: " + target + "\r\n\r\n"
	_, err := client.Write([]byte(req))
	require.NoError(t, err)

	reply := make([]byte, len("HTTP/1.1 200 Connection Established\r\n\r\n"))
	_, err = io.ReadFull(client, reply)
	require.NoError(t, err)
	require.Equal(t, "HTTP/1.1 200 Connection Established\r\n\r\n", string(reply))

	_, err = client.Write([]byte("ping"))
	require.NoError(t, err)
	echoBuf := make([]byte, 4)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = io.ReadFull(client, echoBuf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(echoBuf))
}

func TestHandleForwardsPlainRequest(t *testing.T) {
	target := tcpEchoServer(t)
	s := New()

	client, server := net.Pipe()
	defer client.Close()

	go s.Handle(context.Background(), server, bufio.NewReader(server))

	req := "GET / HTTP/1.1\r\nHost: " + target + "\r\n\r\n"
	_, err := client.Write([]byte(req))
	require.NoError(t, err)

	echoBuf := make([]byte, len(req))
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = io.ReadFull(client, echoBuf)
	require.NoError(t, err)
	require.Equal(t, req, string(echoBuf))
}

func TestExtractHostExactCase(t *testing.T) {
	raw := []byte("GET / HTTP/1.1\r\nHost: example.com:80\r\n\r\n")
	require.Equal(t, "example.com:80", extractHost(raw))
}

func TestExtractHostRejectsWrongCase(t *testing.T) {
	raw := []byte("GET / HTTP/1.1\r\nhost: example.com:80\r\n\r\n")
	require.Equal(t, "", extractHost(raw))
}

func TestHandleMissingHostClosesQuietly(t *testing.T) {
	s := New()
	client, server := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		s.Handle(context.Background(), server, bufio.NewReader(server))
		close(done)
	}()

	_, err := client.Write([]byte("GET / HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return for missing Host header")
	}
}
