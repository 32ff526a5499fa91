package udptunnel

import (
	"fmt"

	"github.com/duskrelay/duskrelay/internal/socksaddr"
)

// parseFrame parses a SOCKS5 UDP relay datagram: RSV[2]=0 | FRAG[1]=0 |
// ATYP[1] | DST.ADDR | DST.PORT | DATA. It returns the dialable target
// "host:port" and the payload slice (aliasing buf).
func parseFrame(buf []byte) (target string, payload []byte, err error) {
	if len(buf) < 4 {
		return "", nil, fmt.Errorf("udptunnel: frame too short")
	}
	if buf[0] != 0 || buf[1] != 0 {
		return "", nil, fmt.Errorf("udptunnel: non-zero RSV in frame")
	}
	if buf[2] != 0 {
		return "", nil, fmt.Errorf("udptunnel: fragmentation not supported")
	}
	atyp := buf[3]
	target, consumed := socksaddr.ParseTarget(atyp, buf[4:])
	if consumed == 0 {
		return "", nil, fmt.Errorf("udptunnel: unrecognized ATYP %#x", atyp)
	}
	return target, buf[4+consumed:], nil
}

// buildFrame wraps payload with a SOCKS5 UDP relay header whose DST
// fields carry origin.
func buildFrame(origin []byte, payload []byte) []byte {
	out := make([]byte, 0, 3+len(origin)+len(payload))
	out = append(out, 0, 0, 0)
	out = append(out, origin...)
	out = append(out, payload...)
	return out
}
