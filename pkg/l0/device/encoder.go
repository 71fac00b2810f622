// Package device provides firmware side state shared with interrupt
// handlers.
package device

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// MaxMotors is the number of motors a board drives.
const MaxMotors = 3

// ErrBadIndex indicates an encoder index out of range.
var ErrBadIndex = errors.New("bad encoder index")

// EncoderTable holds one tick counter per encoder, built once at startup.
// Each counter is written only by the interrupt handler of its encoder
// and read by the main loop.
type EncoderTable struct {
	counters []atomic.Uint32
}

// NewEncoderTable creates a table of n encoders.
func NewEncoderTable(n int) *EncoderTable {
	return &EncoderTable{counters: make([]atomic.Uint32, n)}
}

// Len returns the number of encoders.
func (t *EncoderTable) Len() int {
	return len(t.counters)
}

// Handler returns the interrupt handler of encoder idx. It is resolved
// once when the interrupt is attached.
func (t *EncoderTable) Handler(idx int) (func(forward bool), error) {
	if idx < 0 || idx >= len(t.counters) {
		return nil, fmt.Errorf("%w: %d of %d", ErrBadIndex, idx, len(t.counters))
	}
	counter := &t.counters[idx]
	return func(forward bool) {
		if forward {
			counter.Add(1)
		} else {
			counter.Add(^uint32(0))
		}
	}, nil
}

// Tick counts one encoder edge. It must only be called from the
// interrupt context of encoder idx.
func (t *EncoderTable) Tick(idx int, forward bool) {
	if forward {
		t.counters[idx].Add(1)
	} else {
		t.counters[idx].Add(^uint32(0))
	}
}

// Read returns the raw tick counter, which wraps.
func (t *EncoderTable) Read(idx int) uint32 {
	return t.counters[idx].Load()
}

// Delta returns the ticks since *last and updates *last. Wrapping is
// handled as long as fewer than 2^31 ticks happened in between.
func (t *EncoderTable) Delta(idx int, last *uint32) int32 {
	cur := t.counters[idx].Load()
	d := int32(cur - *last)
	*last = cur
	return d
}
