package hflog

import (
	"sync/atomic"
	"time"
)

// Ring is the lock-free shared-memory ring buffer (spec §3, §4.9): writers
// claim a slot via atomic fetch-and-add on writeSeq and write directly into
// it; the sole reader (Flusher) trails with its own cursor.
type Ring struct {
	slots    [ringSize]entry
	writeSeq atomic.Uint64
}

// NewRing returns an empty ring buffer.
func NewRing() *Ring { return &Ring{} }

// Append claims the next sequence number and writes level/scopeBytes/
// msgBytes into its slot. It never blocks and never allocates.
func (r *Ring) Append(level Level, scopeBytes [ScopeBytesLen]byte, scopeLen uint8, msgBytes [MsgBytesLen]byte, msgLen uint16) uint64 {
	seq := r.writeSeq.Add(1) - 1
	slot := &r.slots[seq&ringMask]
	slot.timestampNanos = time.Now().UnixNano()
	slot.level = level
	slot.scopeBytes = scopeBytes
	slot.scopeLen = scopeLen
	slot.msgBytes = msgBytes
	slot.msgLen = msgLen
	// sequence is written last: the flusher only trusts a slot once its
	// stored sequence matches the index it expects, guarding against
	// reading a slot that a writer has started but not finished claiming.
	slot.sequence = seq
	return seq
}

// WriteCursor returns the next sequence number that will be claimed.
func (r *Ring) WriteCursor() uint64 { return r.writeSeq.Load() }

// slotSequence reads the sequence stamped into the slot at idx, used by the
// flusher to detect whether a slot has actually been written yet (cold
// start) or has been overwritten since the reader last visited it
// (overrun).
func (r *Ring) slotSequence(idx uint64) uint64 {
	return r.slots[idx&ringMask].sequence
}

func (r *Ring) read(idx uint64) Record {
	return r.slots[idx&ringMask].toRecord()
}
