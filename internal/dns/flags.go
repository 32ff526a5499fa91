package dns

import "github.com/duskrelay/duskrelay/internal/bits"

// Header flags word layout (RFC 1035 Section 4.1.1), LSB-indexed:
//
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	|QR|   Opcode  |AA|TC|RD|RA| Z  Z  Z |   RCODE   |
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	15 14 13 12 11 10  9  8  7  6  5  4  3  2  1  0
const (
	qrPos      uint = 15
	opcodePos  uint = 11
	opcodeLen  uint = 4
	aaPos      uint = 10
	tcPos      uint = 9
	rdPos      uint = 8
	raPos      uint = 7
	reservedPos uint = 4
	reservedLen uint = 3
	rcodePos   uint = 0
	rcodeLen   uint = 4
)

// DNS resource record types supported by this resolver (RFC 1035, RFC 3596).
type RecordType uint16

const (
	TypeA    RecordType = 1  // IPv4 address
	TypeAAAA RecordType = 28 // IPv6 address (RFC 3596)
)

// RecordClass represents DNS resource record classes (RFC 1035).
type RecordClass uint16

const ClassIN RecordClass = 1

// QR returns true if the flags word marks a response.
func QR(flags uint16) bool { return bits.Bit(flags, qrPos) == 1 }

// SetQR sets or clears the QR bit.
func SetQR(flags uint16, isResponse bool) uint16 {
	if isResponse {
		return bits.SetBit(flags, qrPos)
	}
	return bits.ClearBit(flags, qrPos)
}

// Opcode extracts the 4-bit OPCODE field.
func Opcode(flags uint16) uint16 { return bits.Field(flags, opcodePos, opcodeLen) }

// SetOpcode overwrites the OPCODE field.
func SetOpcode(flags, opcode uint16) uint16 { return bits.SetField(flags, opcodePos, opcodeLen, opcode) }

// AA reports the Authoritative Answer bit.
func AA(flags uint16) bool { return bits.Bit(flags, aaPos) == 1 }

// SetAA sets or clears the AA bit.
func SetAA(flags uint16, v bool) uint16 {
	if v {
		return bits.SetBit(flags, aaPos)
	}
	return bits.ClearBit(flags, aaPos)
}

// TC reports the Truncation bit.
func TC(flags uint16) bool { return bits.Bit(flags, tcPos) == 1 }

// SetTC sets or clears the TC bit.
func SetTC(flags uint16, v bool) uint16 {
	if v {
		return bits.SetBit(flags, tcPos)
	}
	return bits.ClearBit(flags, tcPos)
}

// RD reports the Recursion Desired bit.
func RD(flags uint16) bool { return bits.Bit(flags, rdPos) == 1 }

// SetRD sets or clears the RD bit.
func SetRD(flags uint16, v bool) uint16 {
	if v {
		return bits.SetBit(flags, rdPos)
	}
	return bits.ClearBit(flags, rdPos)
}

// RA reports the Recursion Available bit.
func RA(flags uint16) bool { return bits.Bit(flags, raPos) == 1 }

// SetRA sets or clears the RA bit.
func SetRA(flags uint16, v bool) uint16 {
	if v {
		return bits.SetBit(flags, raPos)
	}
	return bits.ClearBit(flags, raPos)
}

// RCode extracts the 4-bit response code.
func RCode(flags uint16) uint16 { return bits.Field(flags, rcodePos, rcodeLen) }

// SetRCode overwrites the response code field.
func SetRCode(flags, rcode uint16) uint16 { return bits.SetField(flags, rcodePos, rcodeLen, rcode) }

// Reserved extracts the 3 reserved bits (must be zero in queries and
// replies produced by this resolver).
func Reserved(flags uint16) uint16 { return bits.Field(flags, reservedPos, reservedLen) }

// SetReserved overwrites the 3 reserved bits.
func SetReserved(flags, value uint16) uint16 {
	return bits.SetField(flags, reservedPos, reservedLen, value)
}
