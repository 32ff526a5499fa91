package dns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildQuery(t *testing.T, id uint16, rd bool) Frame {
	t.Helper()
	name, err := EncodeDomain("example.com")
	require.NoError(t, err)
	return Frame{
		Header:    Header{ID: id, Flags: SetRD(0, rd)},
		Questions: []Question{{Name: name, Type: uint16(TypeA), Class: uint16(ClassIN)}},
	}
}

func TestParseQueryAccepted(t *testing.T) {
	req := buildQuery(t, 0x1111, true)
	f, err := ParseQuery(req.Marshal())
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1111), f.Header.ID)
	assert.True(t, RD(f.Header.Flags))
}

func TestParseQueryRejectsResponse(t *testing.T) {
	req := buildQuery(t, 1, false)
	req.Header.Flags = SetQR(req.Header.Flags, true)
	_, err := ParseQuery(req.Marshal())
	assert.Error(t, err)
}

func TestParseQueryRejectsNonZeroOpcode(t *testing.T) {
	req := buildQuery(t, 1, false)
	req.Header.Flags = SetOpcode(req.Header.Flags, 1)
	_, err := ParseQuery(req.Marshal())
	assert.Error(t, err)
}

func TestParseQueryRejectsWrongQuestionCount(t *testing.T) {
	req := buildQuery(t, 1, false)
	req.Questions = nil
	_, err := ParseQuery(req.Marshal())
	assert.Error(t, err)
}

func TestParseQueryTooLarge(t *testing.T) {
	_, err := ParseQuery(make([]byte, MaxIncomingDNSMessageSize+1))
	assert.Error(t, err)
}

func TestBuildReplyPreservesIDAndReserved(t *testing.T) {
	req := buildQuery(t, 0xABCD, true)
	req.Header.Flags = SetReserved(req.Header.Flags, 0x5)

	name, err := EncodeDomain("example.com")
	require.NoError(t, err)
	ans := NewA(name, 300, [4]byte{1, 2, 3, 4})

	reply := BuildReply(req, []Answer{ans})

	assert.Equal(t, req.Header.ID, reply.Header.ID)
	assert.True(t, QR(reply.Header.Flags))
	assert.True(t, AA(reply.Header.Flags))
	assert.False(t, TC(reply.Header.Flags))
	assert.False(t, RD(reply.Header.Flags))
	assert.False(t, RA(reply.Header.Flags))
	assert.Equal(t, uint16(0), Opcode(reply.Header.Flags))
	assert.Equal(t, uint16(0), RCode(reply.Header.Flags))
	assert.Equal(t, uint16(0x5), Reserved(reply.Header.Flags))
	assert.Equal(t, req.Questions, reply.Questions)
	assert.Len(t, reply.Answers, 1)
}

func TestBuildErrorReplySetsRCodeNoAnswers(t *testing.T) {
	req := buildQuery(t, 1, true)
	reply := BuildErrorReply(req, 2)
	assert.Empty(t, reply.Answers)
	assert.Equal(t, uint16(2), RCode(reply.Header.Flags))
}
