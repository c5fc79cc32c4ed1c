// Package chaintime abstracts the chain time source the analytics engine
// reads. Timestamps are opaque unsigned time units (block-time on chains
// that expose it, wall seconds otherwise); the engine only ever subtracts
// and buckets them, so the unit choice lives entirely in configuration.
package chaintime

import (
	"sync/atomic"
	"time"
)

// Clock supplies the current chain time unit.
type Clock interface {
	Now() uint64
}

// SystemClock reports wall-clock seconds since the Unix epoch. Suitable for
// deployments where transfer events carry wall time rather than block height.
type SystemClock struct{}

func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// Manual is a hand-advanced clock for tests. The zero value starts at 0.
type Manual struct {
	now atomic.Uint64
}

// NewManual creates a manual clock starting at the given time unit.
func NewManual(start uint64) *Manual {
	m := &Manual{}
	m.now.Store(start)
	return m
}

func (m *Manual) Now() uint64 {
	return m.now.Load()
}

// Set jumps the clock to an absolute time unit.
func (m *Manual) Set(t uint64) {
	m.now.Store(t)
}

// Advance moves the clock forward by delta units and returns the new time.
func (m *Manual) Advance(delta uint64) uint64 {
	return m.now.Add(delta)
}
