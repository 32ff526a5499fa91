// Package socksauth implements the SOCKS5 method-negotiation and
// username/password sub-negotiation handshake (RFC 1928 Section 3,
// RFC 1929).
package socksauth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

const (
	methodNoAuth         = 0x00
	methodUserPass       = 0x02
	methodNoneAcceptable = 0xFF
)

// ErrRejected is returned when the client offers no acceptable method,
// or fails the username/password check.
var ErrRejected = errors.New("socksauth: rejected")

// Negotiate reads the SOCKS5 greeting (VER, NMETHODS, METHODS[]) from
// r, selects a method according to required, writes the method-select
// reply, and — if username/password was selected — completes the
// sub-negotiation. On success the client is authenticated and the
// stream is ready to read the SOCKS5 request.
func Negotiate(r *bufio.Reader, w writer, required bool, username, password string) error {
	ver, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("socksauth: read version: %w", err)
	}
	if ver != 0x05 {
		return fmt.Errorf("socksauth: unsupported SOCKS version %d", ver)
	}

	nmethods, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("socksauth: read nmethods: %w", err)
	}
	methods := make([]byte, nmethods)
	if _, err := io.ReadFull(r, methods); err != nil {
		return fmt.Errorf("socksauth: read methods: %w", err)
	}

	method, writeReply := selectMethod(methods, required)
	if writeReply {
		if _, err := w.Write([]byte{0x05, method}); err != nil {
			return fmt.Errorf("socksauth: write method select: %w", err)
		}
	}
	if method == methodNoneAcceptable {
		return ErrRejected
	}
	if method == methodNoAuth {
		return nil
	}

	return userPassSubNegotiation(r, w, username, password)
}

// selectMethod picks the method to reply with, per the SELECT_METHOD
// table: when auth is required and the client didn't offer
// username/password, the server replies 0x05 0xFF. Otherwise — auth
// not required and the client didn't offer no-auth — the server
// writes nothing at all and simply closes, so writeReply is false.
func selectMethod(offered []byte, required bool) (method byte, writeReply bool) {
	has := func(m byte) bool {
		for _, o := range offered {
			if o == m {
				return true
			}
		}
		return false
	}

	if required {
		if has(methodUserPass) {
			return methodUserPass, true
		}
		return methodNoneAcceptable, true
	}
	if has(methodNoAuth) {
		return methodNoAuth, true
	}
	return methodNoneAcceptable, false
}

func userPassSubNegotiation(r *bufio.Reader, w writer, username, password string) error {
	ver, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("socksauth: read subnegotiation version: %w", err)
	}
	if ver != 0x01 {
		return fmt.Errorf("socksauth: unsupported subnegotiation version %d", ver)
	}

	ulen, err := r.ReadByte()
	if err != nil {
		return err
	}
	uname := make([]byte, ulen)
	if _, err := io.ReadFull(r, uname); err != nil {
		return err
	}

	plen, err := r.ReadByte()
	if err != nil {
		return err
	}
	passwd := make([]byte, plen)
	if _, err := io.ReadFull(r, passwd); err != nil {
		return err
	}

	match := username != "" && password != "" && string(uname) == username && string(passwd) == password

	if !match {
		_, _ = w.Write([]byte{0x01, 0x01})
		return ErrRejected
	}
	if _, err := w.Write([]byte{0x01, 0x00}); err != nil {
		return fmt.Errorf("socksauth: write subnegotiation reply: %w", err)
	}
	return nil
}

type writer interface {
	Write([]byte) (int, error)
}
