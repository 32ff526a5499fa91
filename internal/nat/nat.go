// Package nat implements the process-wide port allocation table for
// SOCKS5 UDP ASSOCIATE tunnels.
package nat

import (
	"errors"
	"math/rand"
	"sync"
)

const (
	portRangeLo = 50000
	portRangeHi = 60000

	maxSelectAttempts = 10
)

// ErrNoPortAvailable is returned by Select when the port range is
// exhausted or too contended to find a free port within the attempt
// budget.
var ErrNoPortAvailable = errors.New("nat: no port available")

// Table is a process-wide singleton tracking allocated ports and the
// local->remote forwarding map for active UDP tunnels. Every exported
// method holds mu for its full duration.
type Table struct {
	mu            sync.Mutex
	allocatedPorts map[uint16]struct{}
	forwardMap     map[uint16]uint16
}

var (
	instance     *Table
	instanceOnce sync.Once
)

// Default returns the process-wide NAT table singleton.
func Default() *Table {
	instanceOnce.Do(func() {
		instance = New()
	})
	return instance
}

// New builds an empty table. Exposed for tests; production code
// should use Default.
func New() *Table {
	return &Table{
		allocatedPorts: make(map[uint16]struct{}),
		forwardMap:     make(map[uint16]uint16),
	}
}

// Select draws a uniform random port in [50000, 60000] not already
// allocated, marks it allocated, and returns it. It gives up after
// maxSelectAttempts tries.
func (t *Table) Select() (uint16, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for range maxSelectAttempts {
		p := uint16(portRangeLo + rand.Intn(portRangeHi-portRangeLo+1))
		if _, taken := t.allocatedPorts[p]; taken {
			continue
		}
		t.allocatedPorts[p] = struct{}{}
		return p, nil
	}
	return 0, ErrNoPortAvailable
}

// Insert records both ports as allocated and maps local->remote.
func (t *Table) Insert(local, remote uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allocatedPorts[local] = struct{}{}
	t.allocatedPorts[remote] = struct{}{}
	t.forwardMap[local] = remote
}

// Remove removes the mapping keyed by local, and both its endpoints
// from the allocated set, if present.
func (t *Table) Remove(local uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	remote, ok := t.forwardMap[local]
	if !ok {
		delete(t.allocatedPorts, local)
		return
	}
	delete(t.forwardMap, local)
	delete(t.allocatedPorts, local)
	delete(t.allocatedPorts, remote)
}

// Len returns the number of allocated ports. Exposed for tests and
// the admin API.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.allocatedPorts)
}

// Snapshot returns a copy of the local->remote forwarding map, for the
// admin API's NAT introspection endpoint.
func (t *Table) Snapshot() map[uint16]uint16 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[uint16]uint16, len(t.forwardMap))
	for k, v := range t.forwardMap {
		out[k] = v
	}
	return out
}
