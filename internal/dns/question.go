package dns

import (
	"encoding/binary"
	"fmt"
)

// Question represents a DNS question section entry (RFC 1035 Section 4.1.2).
//
// Name holds the raw wire bytes of the label sequence, including the
// terminating zero octet, so it can be re-emitted byte-identically.
type Question struct {
	Name  []byte
	Type  uint16
	Class uint16
}

// Marshal serializes the question to DNS wire format.
func (q Question) Marshal() []byte {
	b := make([]byte, 0, len(q.Name)+4)
	b = append(b, q.Name...)
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], q.Type)
	binary.BigEndian.PutUint16(buf[2:4], q.Class)
	return append(b, buf...)
}

// ParseQuestion parses a question from msg at *off, advancing *off past it.
func ParseQuestion(msg []byte, off *int) (Question, error) {
	name, err := readName(msg, off)
	if err != nil {
		return Question{}, err
	}
	if *off+4 > len(msg) {
		return Question{}, fmt.Errorf("%w: unexpected EOF while reading DNS question", ErrDNSError)
	}
	q := Question{
		Name:  name,
		Type:  binary.BigEndian.Uint16(msg[*off : *off+2]),
		Class: binary.BigEndian.Uint16(msg[*off+2 : *off+4]),
	}
	*off += 4
	return q, nil
}
