package dns

import (
	"encoding/binary"
	"fmt"
)

// Answer represents a single resource record in the answer section
// (RFC 1035 Section 4.1.3). Only A and AAAA records are modeled: RData
// holds the raw rdata bytes (4 bytes for A, 16 for AAAA) and is not
// further interpreted.
//
// Name holds the raw wire bytes of the owner name, so it can be
// re-emitted byte-identically or copied straight from the question it
// answers.
type Answer struct {
	Name  []byte
	Type  uint16
	Class uint16
	TTL   uint32
	RData []byte
}

// Marshal serializes the answer to DNS wire format.
func (a Answer) Marshal() []byte {
	out := make([]byte, 0, len(a.Name)+10+len(a.RData))
	out = append(out, a.Name...)
	fixed := make([]byte, 10)
	binary.BigEndian.PutUint16(fixed[0:2], a.Type)
	binary.BigEndian.PutUint16(fixed[2:4], a.Class)
	binary.BigEndian.PutUint32(fixed[4:8], a.TTL)
	binary.BigEndian.PutUint16(fixed[8:10], uint16(len(a.RData)))
	out = append(out, fixed...)
	out = append(out, a.RData...)
	return out
}

// ParseAnswer parses a resource record from msg at *off, advancing
// *off past it.
func ParseAnswer(msg []byte, off *int) (Answer, error) {
	name, err := readName(msg, off)
	if err != nil {
		return Answer{}, err
	}
	if *off+10 > len(msg) {
		return Answer{}, fmt.Errorf("%w: unexpected EOF while reading DNS answer", ErrDNSError)
	}
	rrType := binary.BigEndian.Uint16(msg[*off : *off+2])
	rrClass := binary.BigEndian.Uint16(msg[*off+2 : *off+4])
	ttl := binary.BigEndian.Uint32(msg[*off+4 : *off+8])
	rdlen := binary.BigEndian.Uint16(msg[*off+8 : *off+10])
	*off += 10

	if *off+int(rdlen) > len(msg) {
		return Answer{}, fmt.Errorf("%w: unexpected EOF while reading DNS answer rdata", ErrDNSError)
	}
	rdata := make([]byte, rdlen)
	copy(rdata, msg[*off:*off+int(rdlen)])
	*off += int(rdlen)

	return Answer{Name: name, Type: rrType, Class: rrClass, TTL: ttl, RData: rdata}, nil
}

// NewA builds an A answer from a 4-byte IPv4 address.
func NewA(name []byte, ttl uint32, addr [4]byte) Answer {
	return Answer{Name: name, Type: uint16(TypeA), Class: uint16(ClassIN), TTL: ttl, RData: addr[:]}
}

// NewAAAA builds an AAAA answer from a 16-byte IPv6 address.
func NewAAAA(name []byte, ttl uint32, addr [16]byte) Answer {
	return Answer{Name: name, Type: uint16(TypeAAAA), Class: uint16(ClassIN), TTL: ttl, RData: addr[:]}
}
