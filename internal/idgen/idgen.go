// Package idgen produces time-ordered int64 identifiers for accounts and
// token rows. Layout: 41 bits of milliseconds since Epoch, 10 bits of node
// id and 12 bits of per-millisecond sequence.
package idgen

import (
	"errors"
	"sync"
	"time"
)

const (
	nodeBits = 10
	seqBits  = 12
	maxNode  = 1<<nodeBits - 1
	maxSeq   = 1<<seqBits - 1
)

// Epoch is the zero point of the timestamp component.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// ErrClockBackwards is returned when the clock moves behind the last issued
// timestamp by more than the tolerated skew.
var ErrClockBackwards = errors.New("idgen: clock moved backwards")

// Generator is safe for concurrent use.
type Generator struct {
	mu     sync.Mutex
	node   int64
	lastMS int64
	seq    int64
	now    func() time.Time
}

// New returns a generator for node (0..1023). A nil now uses time.Now.
func New(node int64, now func() time.Time) (*Generator, error) {
	if node < 0 || node > maxNode {
		return nil, errors.New("idgen: node out of range")
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{node: node, now: now}, nil
}

// NextID returns the next identifier. IDs from one generator are strictly
// increasing.
func (g *Generator) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().Sub(Epoch).Milliseconds()
	if ms < g.lastMS {
		// Small skews are absorbed by borrowing from the last timestamp.
		if g.lastMS-ms > 5000 {
			return 0, ErrClockBackwards
		}
		ms = g.lastMS
	}
	if ms == g.lastMS {
		g.seq++
		if g.seq > maxSeq {
			ms++
			g.seq = 0
		}
	} else {
		g.seq = 0
	}
	g.lastMS = ms

	return ms<<(nodeBits+seqBits) | g.node<<seqBits | g.seq, nil
}
