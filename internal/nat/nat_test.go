package nat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectReturnsPortInRange(t *testing.T) {
	table := New()
	p, err := table.Select()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p, uint16(portRangeLo))
	assert.LessOrEqual(t, p, uint16(portRangeHi))
}

func TestSelectDoesNotRepeat(t *testing.T) {
	table := New()
	seen := make(map[uint16]struct{})
	for range 50 {
		p, err := table.Select()
		require.NoError(t, err)
		_, dup := seen[p]
		assert.False(t, dup)
		seen[p] = struct{}{}
	}
}

func TestSelectExhausted(t *testing.T) {
	table := New()
	for p := portRangeLo; p <= portRangeHi; p++ {
		table.allocatedPorts[uint16(p)] = struct{}{}
	}
	_, err := table.Select()
	assert.ErrorIs(t, err, ErrNoPortAvailable)
}

func TestInsertAndRemove(t *testing.T) {
	table := New()
	table.Insert(50001, 50002)
	assert.Equal(t, 2, table.Len())

	snap := table.Snapshot()
	assert.Equal(t, uint16(50002), snap[50001])

	table.Remove(50001)
	assert.Equal(t, 0, table.Len())
	assert.Empty(t, table.Snapshot())
}

func TestRemoveUnknownLocalIsNoop(t *testing.T) {
	table := New()
	table.Remove(12345)
	assert.Equal(t, 0, table.Len())
}

func TestDefaultIsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}
