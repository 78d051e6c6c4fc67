package hflog

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignis-framework/ignis/ignis/metrics"
)

// Sink is where the Flusher drains decoded records to. A plain io.Writer
// (the spec's "text stream") is sufficient; Flusher formats each record as
// one line.
type Sink interface {
	io.Writer
}

// Flusher cooperatively drains a Ring to a Sink (spec §4.9). It never
// blocks a writer: writers only ever touch the Ring, never the Flusher.
type Flusher struct {
	ring *Ring
	sink Sink

	readSeq atomic.Uint64

	mu      sync.Mutex
	ticker  *time.Ticker
	stopCh  chan struct{}
	stopped sync.WaitGroup
}

// NewFlusher returns a Flusher draining ring to sink. The flusher starts
// at sequence 0, so entries written before construction are drained too
// (up to the ring's capacity).
func NewFlusher(ring *Ring, sink Sink) *Flusher {
	return &Flusher{ring: ring, sink: sink}
}

// Flush drains every entry currently available, in insertion order,
// detecting and skipping past an overrun (spec §4.9, §7 "overflow"). It
// returns the number of records emitted and whether an overrun occurred.
func (f *Flusher) Flush() (emitted int, overran bool) {
	wc := f.ring.WriteCursor()
	rs := f.readSeq.Load()
	if rs >= wc {
		return 0, false
	}

	if wc-rs > ringSize {
		skipped := wc - ringSize - rs
		fmt.Fprintf(f.sink, "*** hflog overflow: %d entries dropped ***\n", skipped)
		metrics.HFLogDropped.Add(float64(skipped))
		rs = wc - ringSize
		overran = true
	}

	for rs < wc {
		// the writer that claimed rs has not stamped its slot yet; pick it
		// up on the next Flush
		if f.ring.slotSequence(rs) != rs {
			break
		}
		rec := f.ring.read(rs)
		f.writeRecord(rec)
		rs++
		emitted++
	}
	f.readSeq.Store(rs)
	metrics.HFLogFlushed.WithLabelValues("text").Add(float64(emitted))
	return emitted, overran
}

func (f *Flusher) writeRecord(rec Record) {
	fmt.Fprintf(f.sink, "%d\t%s\t%s\t%s\n", rec.Timestamp, rec.Level, rec.Scope, rec.Message)
}

// Start arms a periodic tick (default 100ms, spec §4.9) that calls Flush.
// It is idempotent: calling Start while already running is a no-op.
func (f *Flusher) Start(interval time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ticker != nil {
		return
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	f.ticker = time.NewTicker(interval)
	f.stopCh = make(chan struct{})
	f.stopped.Add(1)
	go func() {
		defer f.stopped.Done()
		for {
			select {
			case <-f.stopCh:
				return
			case <-f.ticker.C:
				f.Flush()
			}
		}
	}()
}

// Stop halts the periodic tick and performs one final Flush, draining
// anything written since the last tick.
func (f *Flusher) Stop() {
	f.mu.Lock()
	if f.ticker == nil {
		f.mu.Unlock()
		return
	}
	f.ticker.Stop()
	close(f.stopCh)
	f.ticker = nil
	f.mu.Unlock()

	f.stopped.Wait()
	f.Flush()
}
