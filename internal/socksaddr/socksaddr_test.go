package socksaddr

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTargetIPv4(t *testing.T) {
	buf := []byte{127, 0, 0, 1, 0x1F, 0x90} // 127.0.0.1:8080
	hostport, n := ParseTarget(ATYPIPv4, buf)
	assert.Equal(t, "127.0.0.1:8080", hostport)
	assert.Equal(t, 6, n)
}

func TestParseTargetDomainName(t *testing.T) {
	buf := append([]byte{byte(len("example.com"))}, "example.com"...)
	buf = append(buf, 0x00, 0x50) // port 80
	hostport, n := ParseTarget(ATYPDomainName, buf)
	assert.Equal(t, "example.com:80", hostport)
	assert.Equal(t, 1+len("example.com")+2, n)
}

func TestParseTargetIPv6(t *testing.T) {
	ip := net.ParseIP("2001:db8::1").To16()
	buf := append(append([]byte{}, ip...), 0x00, 0x35)
	hostport, n := ParseTarget(ATYPIPv6, buf)
	assert.Equal(t, "[2001:db8::1]:53", hostport)
	assert.Equal(t, 18, n)
}

func TestParseTargetUnknownATYP(t *testing.T) {
	hostport, n := ParseTarget(0x7F, []byte{1, 2, 3})
	assert.Equal(t, "", hostport)
	assert.Equal(t, 0, n)
}

func TestParseTargetTruncated(t *testing.T) {
	hostport, n := ParseTarget(ATYPIPv4, []byte{1, 2})
	assert.Equal(t, "", hostport)
	assert.Equal(t, 0, n)
}

func TestStringifyTargetIPv4(t *testing.T) {
	addr := &net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: 1234}
	b := StringifyTarget(addr)
	require.Equal(t, []byte{ATYPIPv4, 10, 0, 0, 1, 0x04, 0xD2}, b)
}

func TestStringifyTargetIPv6(t *testing.T) {
	addr := &net.UDPAddr{IP: net.ParseIP("::1"), Port: 53}
	b := StringifyTarget(addr)
	assert.Equal(t, byte(ATYPIPv6), b[0])
	assert.Len(t, b, 1+16+2)
}

func TestAppendAddrRoundTripsIPv4(t *testing.T) {
	b, err := AppendAddr(nil, "127.0.0.1:80")
	require.NoError(t, err)
	hostport, n := ParseTarget(b[0], b[1:])
	assert.Equal(t, "127.0.0.1:80", hostport)
	assert.Equal(t, len(b)-1, n)
}

func TestAppendAddrRoundTripsDomain(t *testing.T) {
	b, err := AppendAddr(nil, "example.com:443")
	require.NoError(t, err)
	hostport, n := ParseTarget(b[0], b[1:])
	assert.Equal(t, "example.com:443", hostport)
	assert.Equal(t, len(b)-1, n)
}

func TestAppendAddrInvalidHostPort(t *testing.T) {
	_, err := AppendAddr(nil, "not-a-hostport")
	assert.Error(t, err)
}
