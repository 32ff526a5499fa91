package resolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/duskrelay/duskrelay/internal/dns"
	"github.com/duskrelay/duskrelay/internal/hosts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUpstream struct {
	reply []byte
	err   error
}

func (s stubUpstream) Resolve(ctx context.Context, raw []byte) ([]byte, error) {
	return s.reply, s.err
}

func loadHostsTable(t *testing.T, contents string) *hosts.Table {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hosts")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	table, err := hosts.Load(path)
	require.NoError(t, err)
	return table
}

func buildQueryBytes(t *testing.T, host string, qtype uint16) ([]byte, uint16) {
	t.Helper()
	name, err := dns.EncodeDomain(host)
	require.NoError(t, err)
	id := uint16(0x4242)
	frame := dns.Frame{
		Header:    dns.Header{ID: id, Flags: dns.SetRD(0, true)},
		Questions: []dns.Question{{Name: name, Type: qtype, Class: uint16(dns.ClassIN)}},
	}
	return frame.Marshal(), id
}

func TestHandleHostsHit(t *testing.T) {
	table := loadHostsTable(t, "10.0.0.1 foo.local\n")
	r := New(table, stubUpstream{})

	raw, id := buildQueryBytes(t, "foo.local", uint16(dns.TypeA))
	reply := r.Handle(context.Background(), raw)
	require.NotNil(t, reply)

	f, err := dns.ParseFrame(reply)
	require.NoError(t, err)
	assert.Equal(t, id, f.Header.ID)
	assert.True(t, dns.QR(f.Header.Flags))
	require.Len(t, f.Answers, 1)
	assert.Equal(t, []byte{10, 0, 0, 1}, f.Answers[0].RData)
}

func TestHandleForwardsOnMiss(t *testing.T) {
	table := loadHostsTable(t, "10.0.0.1 foo.local\n")
	upstreamReply := []byte{0xAB, 0xCD, 0x81, 0x80}
	r := New(table, stubUpstream{reply: upstreamReply})

	raw, _ := buildQueryBytes(t, "bar.local", uint16(dns.TypeA))
	reply := r.Handle(context.Background(), raw)
	assert.Equal(t, upstreamReply, reply)
}

func TestHandleUpstreamUnavailableReturnsNil(t *testing.T) {
	table := loadHostsTable(t, "10.0.0.1 foo.local\n")
	r := New(table, stubUpstream{err: upstreamUnavailableErr{}})

	raw, _ := buildQueryBytes(t, "bar.local", uint16(dns.TypeA))
	assert.Nil(t, r.Handle(context.Background(), raw))
}

type upstreamUnavailableErr struct{}

func (upstreamUnavailableErr) Error() string { return "upstream: no nameserver available" }

func TestHandleMalformedQueryReturnsNil(t *testing.T) {
	table := loadHostsTable(t, "10.0.0.1 foo.local\n")
	r := New(table, stubUpstream{})

	assert.Nil(t, r.Handle(context.Background(), []byte{0, 1, 2}))
}
