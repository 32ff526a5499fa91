package dns

import (
	"errors"

	"github.com/duskrelay/duskrelay/internal/helpers"
)

// Limits for incoming DNS messages to prevent resource exhaustion attacks.
const (
	MaxIncomingDNSMessageSize = 4096 // Maximum size of incoming DNS message
	MaxQuestions              = 4    // Maximum questions per query (RFC allows 1 typically)
	MaxRRPerSection           = 100  // Maximum resource records per section
)

// ParseQuery parses an incoming DNS query with bounds checking. It
// requires exactly one question, QR=0 (a query, not a response), and
// OPCODE=0 (standard query); any other shape is rejected rather than
// processed.
func ParseQuery(msg []byte) (Frame, error) {
	if len(msg) > MaxIncomingDNSMessageSize {
		return Frame{}, errors.New("dns message too large")
	}
	f, err := ParseFrame(msg)
	if err != nil {
		return Frame{}, err
	}

	if QR(f.Header.Flags) {
		return Frame{}, errors.New("invalid query: QR flag set (response packet received)")
	}
	if opcode := Opcode(f.Header.Flags); opcode != 0 {
		return Frame{}, errors.New("unsupported opcode")
	}
	if len(f.Questions) != 1 {
		return Frame{}, errors.New("unsupported question count")
	}

	return f, nil
}

// BuildReply constructs a reply frame for req carrying the given
// answers. The transaction id and reserved bits are copied from req;
// QR is set, AA is set, TC/RD/RA/OPCODE/RCODE are all cleared, and the
// question section is copied unchanged.
func BuildReply(req Frame, answers []Answer) Frame {
	flags := SetQR(0, true)
	flags = SetAA(flags, true)
	flags = SetReserved(flags, Reserved(req.Header.Flags))

	return Frame{
		Header: Header{
			ID:      req.Header.ID,
			Flags:   flags,
			QDCount: helpers.ClampIntToUint16(len(req.Questions)),
			ANCount: helpers.ClampIntToUint16(len(answers)),
		},
		Questions: req.Questions,
		Answers:   answers,
	}
}

// BuildErrorReply constructs a reply frame for req with no answers and
// the given response code, otherwise following the same rule as
// BuildReply.
func BuildErrorReply(req Frame, rcode uint16) Frame {
	f := BuildReply(req, nil)
	f.Header.Flags = SetRCode(f.Header.Flags, rcode)
	return f
}
