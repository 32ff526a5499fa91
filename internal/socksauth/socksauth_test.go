package socksauth

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiateNoAuthWhenNotRequired(t *testing.T) {
	greeting := []byte{0x05, 0x01, 0x00}
	var out bytes.Buffer
	err := Negotiate(bufio.NewReader(bytes.NewReader(greeting)), &out, false, "", "")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05, 0x00}, out.Bytes())
}

func TestNegotiateRejectsWhenNoAuthOfferedButRequired(t *testing.T) {
	greeting := []byte{0x05, 0x01, 0x00}
	var out bytes.Buffer
	err := Negotiate(bufio.NewReader(bytes.NewReader(greeting)), &out, true, "alice", "secret")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, []byte{0x05, 0xFF}, out.Bytes())
}

func TestNegotiateWritesNothingWhenNoAuthNotOfferedAndNotRequired(t *testing.T) {
	greeting := []byte{0x05, 0x01, 0x02} // only userpass offered, auth not required
	var out bytes.Buffer
	err := Negotiate(bufio.NewReader(bytes.NewReader(greeting)), &out, false, "", "")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Empty(t, out.Bytes())
}

func TestNegotiateUserPassSuccess(t *testing.T) {
	var input bytes.Buffer
	input.Write([]byte{0x05, 0x01, 0x02}) // greeting, offering userpass
	input.WriteByte(0x01)                 // subneg version
	input.WriteByte(byte(len("alice")))
	input.WriteString("alice")
	input.WriteByte(byte(len("secret")))
	input.WriteString("secret")

	var out bytes.Buffer
	err := Negotiate(bufio.NewReader(&input), &out, true, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05, 0x02, 0x01, 0x00}, out.Bytes())
}

func TestNegotiateUserPassMismatch(t *testing.T) {
	var input bytes.Buffer
	input.Write([]byte{0x05, 0x01, 0x02})
	input.WriteByte(0x01)
	input.WriteByte(byte(len("alice")))
	input.WriteString("alice")
	input.WriteByte(byte(len("wrong")))
	input.WriteString("wrong")

	var out bytes.Buffer
	err := Negotiate(bufio.NewReader(&input), &out, true, "alice", "secret")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, []byte{0x05, 0x02, 0x01, 0x01}, out.Bytes())
}

func TestNegotiateRejectsWrongVersion(t *testing.T) {
	var out bytes.Buffer
	err := Negotiate(bufio.NewReader(bytes.NewReader([]byte{0x04, 0x01, 0x00})), &out, false, "", "")
	assert.Error(t, err)
}
