// Package latch captures sensor edges into pending-request bits.
//
// Each sensor pin's interrupt handler sets its line's bit in an edge-flag
// word and pokes a one-slot channel; it never blocks. A worker goroutine
// swaps the whole word to zero in one atomic step, so every physical event
// is delivered exactly once, and hands the captured line mask to the sink.
package latch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"signalcode-go/errcode"
	"signalcode-go/services/signal/internal/pins"
)

// MaxLines is the number of sensor inputs a latch watches.
const MaxLines = 4

// Sink receives captured line masks. The arbiter core implements it.
type Sink interface {
	OnSensorEdge(lineMask uint8)
}

// Line binds latch line Index to an interrupt-capable pin.
type Line struct {
	Index int
	Pin   pins.IRQPin
}

// Stats are diagnostic counters.
type Stats struct {
	Edges     uint32 // interrupts seen
	Captures  uint32 // worker passes that delivered a non-empty mask
	Coalesced uint32 // notifications folded into an already pending one
	Debounced uint32 // line events suppressed by the debounce window
}

type Latch struct {
	sink     Sink
	debounce atomic.Int64 // time.Duration

	flags  atomic.Uint32
	notify chan struct{}

	edges     atomic.Uint32
	captures  atomic.Uint32
	coalesced atomic.Uint32
	debounced atomic.Uint32

	mu    sync.Mutex
	lines [MaxLines]pins.IRQPin
	last  [MaxLines]time.Time // worker-owned
	now   func() time.Time
}

// New returns a latch feeding sink. debounce of 0 disables filtering.
func New(sink Sink, debounce time.Duration) *Latch {
	l := &Latch{
		sink:   sink,
		notify: make(chan struct{}, 1),
		now:    time.Now,
	}
	l.debounce.Store(int64(debounce))
	return l
}

// SetDebounce changes the filter window; it applies from the next Poll.
func (l *Latch) SetDebounce(d time.Duration) { l.debounce.Store(int64(d)) }

// Attach configures each pin as an input and installs its edge handler.
func (l *Latch) Attach(lines []Line, pull pins.Pull, edge pins.Edge) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ln := range lines {
		if ln.Index < 0 || ln.Index >= MaxLines {
			return &errcode.E{C: errcode.InvalidParams, Op: "latch.attach", Msg: "line index out of range"}
		}
		if l.lines[ln.Index] != nil {
			return &errcode.E{C: errcode.PinInUse, Op: "latch.attach", Msg: "line already attached"}
		}
		if err := ln.Pin.ConfigureInput(pull); err != nil {
			return err
		}
		bit := uint32(1) << ln.Index
		if err := ln.Pin.SetIRQ(edge, func() { l.raise(bit) }); err != nil {
			return err
		}
		l.lines[ln.Index] = ln.Pin
	}
	return nil
}

// Detach removes every handler; pending flags are kept for one more Poll.
func (l *Latch) Detach() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, p := range l.lines {
		if p != nil {
			_ = p.ClearIRQ()
			l.lines[i] = nil
		}
	}
}

// raise runs in interrupt context: atomic OR plus a non-blocking poke.
func (l *Latch) raise(bit uint32) {
	for {
		old := l.flags.Load()
		if l.flags.CompareAndSwap(old, old|bit) {
			break
		}
	}
	l.edges.Add(1)
	select {
	case l.notify <- struct{}{}:
	default:
		l.coalesced.Add(1)
	}
}

// Inject raises lines as if their pins had fired. Used by simulators.
func (l *Latch) Inject(lineMask uint8) {
	for i := 0; i < MaxLines; i++ {
		if lineMask&(1<<i) != 0 {
			l.raise(uint32(1) << i)
		}
	}
}

// Poll captures and clears all edge flags at once and forwards the mask.
// It returns the delivered mask. Only one goroutine may call Poll.
func (l *Latch) Poll() uint8 {
	raw := uint8(l.flags.Swap(0))
	if raw == 0 {
		return 0
	}
	mask := raw
	if db := time.Duration(l.debounce.Load()); db > 0 {
		now := l.now()
		for i := 0; i < MaxLines; i++ {
			bit := uint8(1) << i
			if mask&bit == 0 {
				continue
			}
			if !l.last[i].IsZero() && now.Sub(l.last[i]) < db {
				mask &^= bit
				l.debounced.Add(1)
				continue
			}
			l.last[i] = now
		}
	}
	if mask != 0 {
		l.captures.Add(1)
		l.sink.OnSensorEdge(mask)
	}
	return mask
}

// Run polls whenever a handler signals, until ctx ends.
func (l *Latch) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.notify:
			l.Poll()
		}
	}
}

func (l *Latch) Stats() Stats {
	return Stats{
		Edges:     l.edges.Load(),
		Captures:  l.captures.Load(),
		Coalesced: l.coalesced.Load(),
		Debounced: l.debounced.Load(),
	}
}

// Lines counts attached lines.
func (l *Latch) Lines() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, p := range l.lines {
		if p != nil {
			n++
		}
	}
	return n
}
