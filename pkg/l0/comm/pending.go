package comm

import (
	"sort"
	"sync/atomic"
	"time"
)

// Continuation is invoked exactly once when a request is acknowledged
// (nil) or dropped (ErrTimeout, or the reason passed to CancelAll).
type Continuation func(err error)

// IDGen generates request ids. It starts from 0 and wraps silently.
type IDGen struct {
	next atomic.Uint32
}

// Next returns the next id.
func (g *IDGen) Next() uint32 {
	return g.next.Add(1) - 1
}

type pendingEntry struct {
	cont Continuation
	at   time.Time
	seq  uint64
}

// PendingTable tracks requests waiting for an ack, at most one per id.
// It is not safe for concurrent use: it's owned by the loop that decodes
// frames. Continuations are invoked synchronously from the calling
// goroutine.
type PendingTable struct {
	// Now is the clock for Expire, time.Now if nil.
	Now func() time.Time

	entries map[uint32]*pendingEntry
	seq     uint64
}

// NewPendingTable creates an empty table.
func NewPendingTable() *PendingTable {
	return &PendingTable{entries: make(map[uint32]*pendingEntry)}
}

func (t *PendingTable) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Register stores cont for id. If a request is already pending on id,
// its continuation is invoked with ErrTimeout before cont is stored.
// It returns true when an existing entry was evicted.
func (t *PendingTable) Register(id uint32, cont Continuation) (evicted bool) {
	if t.entries == nil {
		t.entries = make(map[uint32]*pendingEntry)
	}
	if old, ok := t.entries[id]; ok {
		delete(t.entries, id)
		old.cont(ErrTimeout)
		evicted = true
	}
	t.seq++
	t.entries[id] = &pendingEntry{cont: cont, at: t.now(), seq: t.seq}
	return
}

// Resolve completes the request of id successfully. An unknown id is
// ignored and false is returned.
func (t *PendingTable) Resolve(id uint32) bool {
	e, ok := t.entries[id]
	if !ok {
		return false
	}
	delete(t.entries, id)
	e.cont(nil)
	return true
}

// Fail completes the request of id with err. An unknown id is ignored
// and false is returned.
func (t *PendingTable) Fail(id uint32, err error) bool {
	e, ok := t.entries[id]
	if !ok {
		return false
	}
	delete(t.entries, id)
	e.cont(err)
	return true
}

// CancelAll fails every pending request with reason, in registration
// order, leaving the table empty.
func (t *PendingTable) CancelAll(reason error) int {
	entries := t.drain(func(*pendingEntry) bool { return true })
	for _, e := range entries {
		e.cont(reason)
	}
	return len(entries)
}

// Expire fails requests registered before the deadline with ErrTimeout
// and returns the number of expired requests.
func (t *PendingTable) Expire(before time.Time) int {
	entries := t.drain(func(e *pendingEntry) bool { return e.at.Before(before) })
	for _, e := range entries {
		e.cont(ErrTimeout)
	}
	return len(entries)
}

// Len returns the number of pending requests.
func (t *PendingTable) Len() int {
	return len(t.entries)
}

// drain removes matched entries before any continuation runs, so a
// continuation may register again.
func (t *PendingTable) drain(match func(*pendingEntry) bool) []*pendingEntry {
	var entries []*pendingEntry
	for id, e := range t.entries {
		if match(e) {
			entries = append(entries, e)
			delete(t.entries, id)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	return entries
}
