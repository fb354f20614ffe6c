package ticksource

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock drives Run with hand-made timer fires.
func fakeClock(s *Source, start time.Time) chan time.Time {
	c := make(chan time.Time)
	s.now = func() time.Time { return start }
	s.newTicker = func(time.Duration) (<-chan time.Time, func()) { return c, func() {} }
	return c
}

func recvN(t *testing.T, s *Source, n int) []uint32 {
	t.Helper()
	var out []uint32
	for len(out) < n {
		select {
		case seq := <-s.C():
			out = append(out, seq)
		case <-time.After(200 * time.Millisecond):
			t.Fatalf("timeout after %d of %d ticks", len(out), n)
		}
	}
	return out
}

func expectQuiet(t *testing.T, s *Source) {
	t.Helper()
	select {
	case seq := <-s.C():
		t.Fatalf("unexpected tick %d", seq)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestRun_OneTickPerPeriod(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Unix(0, 0)
	s := New(time.Second)
	c := fakeClock(s, start)
	go s.Run(ctx)

	c <- start.Add(1 * time.Second)
	c <- start.Add(2*time.Second + 3*time.Millisecond)
	got := recvN(t, s, 2)
	if got[0] != 1 || got[1] != 2 {
		t.Fatalf("sequence %v, want [1 2]", got)
	}
	expectQuiet(t, s)
}

func TestRun_LateFireCatchesUp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Unix(0, 0)
	s := New(time.Second)
	c := fakeClock(s, start)
	go s.Run(ctx)

	// One wake-up 3.5 periods in must still yield three distinct ticks.
	c <- start.Add(3500 * time.Millisecond)
	got := recvN(t, s, 3)
	if got[2] != 3 {
		t.Fatalf("sequence %v, want [1 2 3]", got)
	}
	expectQuiet(t, s)

	// An early fire (jitter) is absorbed and the next one stays on schedule.
	c <- start.Add(3900 * time.Millisecond)
	expectQuiet(t, s)
	c <- start.Add(4 * time.Second)
	if got := recvN(t, s, 1); got[0] != 4 {
		t.Fatalf("tick %v, want 4", got)
	}
	if s.Count() != 4 {
		t.Fatalf("Count() = %d", s.Count())
	}
}

func TestRun_FirstFireOnSchedule(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The clock moves on between reads, as a real one does.
	var mu sync.Mutex
	clock := time.Unix(0, 0)
	s := New(100 * time.Millisecond)
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Millisecond)
		return clock
	}
	c := make(chan time.Time)
	var created time.Time
	s.newTicker = func(d time.Duration) (<-chan time.Time, func()) {
		at := s.now()
		mu.Lock()
		created = at
		mu.Unlock()
		return c, func() {}
	}
	go s.Run(ctx)

	// A ticker stamps each fire with its scheduled time: creation + period.
	var first time.Time
	for deadline := time.Now().Add(time.Second); first.IsZero() && time.Now().Before(deadline); {
		mu.Lock()
		first = created
		mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	c <- first.Add(100 * time.Millisecond)
	if got := recvN(t, s, 1); got[0] != 1 {
		t.Fatalf("tick %v, want 1", got)
	}
}

func TestManual(t *testing.T) {
	s := NewManual()
	done := make(chan struct{})
	go func() { s.Run(context.Background()); close(done) }()
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("manual Run should return immediately")
	}
	if s.Fire() != 1 || s.Fire() != 2 || s.Count() != 2 {
		t.Fatal("manual fire sequence broken")
	}
	expectQuiet(t, s)
}
