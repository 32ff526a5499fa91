// Package dns implements a hand-written codec for DNS wire frames
// (RFC 1035 Section 4): header, question and A/AAAA answer sections.
//
// Name compression pointers (RFC 1035 Section 4.1.4) are deliberately
// not dereferenced. Names are treated as opaque wire bytes, terminated
// by the first zero octet, and are re-emitted byte-for-byte; a query
// using a compression pointer is rejected rather than mis-parsed.
//
// Error Handling:
//
// All errors are wrapped with context using fmt.Errorf("...: %w", err).
// This preserves error chains while adding operational context.
package dns

import "errors"

// ErrDNSError is a sentinel error type for DNS protocol violations.
// Wrap this with fmt.Errorf("context: %w", ErrDNSError) to add context.
var ErrDNSError = errors.New("dns wire error")
