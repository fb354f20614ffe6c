// Package ticksource produces the arbitration clock.
//
// Run schedules ticks against absolute deadlines (start + n*period). A late
// wake-up emits every period that elapsed, one message each, so a delayed
// timer never skips or merges steps. In manual mode no timer runs and ticks
// come only from Fire.
package ticksource

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultPeriod is the arbitration tick.
const DefaultPeriod = time.Second

type Source struct {
	period time.Duration
	manual bool
	out    chan uint32
	count  atomic.Uint32

	// clock hooks, replaced in tests
	now       func() time.Time
	newTicker func(d time.Duration) (<-chan time.Time, func())
}

// New returns a timer-driven source. A non-positive period means DefaultPeriod.
func New(period time.Duration) *Source {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Source{
		period: period,
		out:    make(chan uint32, 16),
		now:    time.Now,
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// NewManual returns a source that only advances through Fire.
func NewManual() *Source {
	s := New(DefaultPeriod)
	s.manual = true
	return s
}

func (s *Source) Period() time.Duration { return s.period }
func (s *Source) Manual() bool          { return s.manual }

// C delivers one sequence number per tick.
func (s *Source) C() <-chan uint32 { return s.out }

// Count is the number of ticks fired so far.
func (s *Source) Count() uint32 { return s.count.Load() }

// Fire counts one tick and returns its sequence number. The caller performs
// the step itself; nothing is sent on C.
func (s *Source) Fire() uint32 { return s.count.Add(1) }

// Run emits ticks until ctx ends. It returns at once in manual mode.
func (s *Source) Run(ctx context.Context) {
	if s.manual {
		return
	}
	// The schedule starts no later than the ticker, so its first fire
	// (stamped with the scheduled time) is never before next.
	next := s.now().Add(s.period)
	c, stop := s.newTicker(s.period)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case at := <-c:
			for !at.Before(next) {
				seq := s.count.Add(1)
				select {
				case s.out <- seq:
				case <-ctx.Done():
					return
				}
				next = next.Add(s.period)
			}
		}
	}
}
