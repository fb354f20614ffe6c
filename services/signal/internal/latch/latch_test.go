package latch

import (
	"context"
	"sync"
	"testing"
	"time"

	"signalcode-go/services/signal/internal/pins"
)

type recSink struct {
	mu    sync.Mutex
	masks []uint8
	got   chan uint8
}

func newRecSink() *recSink { return &recSink{got: make(chan uint8, 16)} }

func (s *recSink) OnSensorEdge(m uint8) {
	s.mu.Lock()
	s.masks = append(s.masks, m)
	s.mu.Unlock()
	s.got <- m
}

func attachFour(t *testing.T, l *Latch) [MaxLines]*pins.FakePin {
	t.Helper()
	var fp [MaxLines]*pins.FakePin
	lines := make([]Line, 0, MaxLines)
	for i := range fp {
		fp[i] = pins.NewFakePin(10 + i)
		lines = append(lines, Line{Index: i, Pin: fp[i]})
	}
	if err := l.Attach(lines, pins.PullDown, pins.EdgeBoth); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	return fp
}

func TestPoll_CapturesSimultaneousEdgesOnce(t *testing.T) {
	sink := newRecSink()
	l := New(sink, 0)
	fp := attachFour(t, l)

	fp[0].Set(true)
	fp[2].Set(true)

	if got := l.Poll(); got != 0b0101 {
		t.Fatalf("Poll() = %04b, want 0101", got)
	}
	if got := l.Poll(); got != 0 {
		t.Fatalf("second Poll() = %04b, flags were not cleared", got)
	}
	if st := l.Stats(); st.Edges != 2 || st.Captures != 1 || st.Coalesced != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestRun_DeliversFromHandler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := newRecSink()
	l := New(sink, 0)
	fp := attachFour(t, l)
	go l.Run(ctx)

	fp[3].Pulse()
	select {
	case m := <-sink.got:
		if m != 0b1000 {
			t.Fatalf("mask = %04b, want 1000", m)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for capture")
	}
}

func TestPoll_Debounce(t *testing.T) {
	sink := newRecSink()
	l := New(sink, 50*time.Millisecond)
	clock := time.Unix(1000, 0)
	l.now = func() time.Time { return clock }
	attachFour(t, l)

	l.Inject(0b0001)
	if l.Poll() != 0b0001 {
		t.Fatal("first edge must pass")
	}

	clock = clock.Add(10 * time.Millisecond)
	l.Inject(0b0011)
	if got := l.Poll(); got != 0b0010 {
		t.Fatalf("Poll() = %04b, line 0 should be debounced", got)
	}

	clock = clock.Add(60 * time.Millisecond)
	l.Inject(0b0001)
	if l.Poll() != 0b0001 {
		t.Fatal("edge after the window must pass")
	}
	if l.Stats().Debounced != 1 {
		t.Fatalf("debounced = %d, want 1", l.Stats().Debounced)
	}
}

func TestAttach_Validation(t *testing.T) {
	l := New(newRecSink(), 0)
	if err := l.Attach([]Line{{Index: 4, Pin: pins.NewFakePin(1)}}, pins.PullNone, pins.EdgeRising); err == nil {
		t.Fatal("expected error for line index 4")
	}
	p := pins.NewFakePin(2)
	if err := l.Attach([]Line{{Index: 0, Pin: p}}, pins.PullNone, pins.EdgeRising); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if err := l.Attach([]Line{{Index: 0, Pin: pins.NewFakePin(3)}}, pins.PullNone, pins.EdgeRising); err == nil {
		t.Fatal("expected error for re-attaching line 0")
	}
	l.Detach()
	if l.Lines() != 0 {
		t.Fatal("Detach left lines attached")
	}
	p.Pulse()
	if l.Poll() != 0 {
		t.Fatal("detached pin still raised a flag")
	}
}
