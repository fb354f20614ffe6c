// Package render multiplexes the two signal groups onto shared lamp wiring.
// Each refresh cycle shows the primary group, blanks, waits a quiescent gap,
// shows the secondary group, blanks and waits again. The renderer holds no
// state beyond counters and reads colours afresh every slot.
package render

import (
	"context"
	"sync/atomic"
	"time"

	"signalcode-go/types"
	"signalcode-go/x/logx"
	"signalcode-go/x/mathx"
	"signalcode-go/x/timex"
)

// ColorSource is polled once per group slot.
type ColorSource interface {
	Colors() (primary, secondary types.Color)
}

// Aspect is the set of lamps lit for one group.
type Aspect struct {
	Red, Yellow, Green, Arrow bool
}

// Lamps drives one group at a time.
type Lamps interface {
	Show(g types.Group, a Aspect) error
	Blank() error
}

// AspectFor turns a colour into lamps. Caution uses the arrow lamp when the
// hardware has one, otherwise a yellow lamp blinking with blinkOn.
func AspectFor(c types.Color, hasArrow, blinkOn bool) Aspect {
	switch c {
	case types.ColorRed:
		return Aspect{Red: true}
	case types.ColorYellow:
		return Aspect{Yellow: true}
	case types.ColorGreen:
		return Aspect{Green: true}
	case types.ColorCaution:
		if hasArrow {
			return Aspect{Arrow: true}
		}
		return Aspect{Yellow: blinkOn}
	default:
		return Aspect{}
	}
}

// Refresh bounds in full cycles per second.
const (
	MinRefreshHz     = 50
	MaxRefreshHz     = 2000
	DefaultRefreshHz = 200
	DefaultGap       = 200 * time.Microsecond
)

type Options struct {
	RefreshHz int
	Gap       time.Duration
	HasArrow  bool
}

type Renderer struct {
	src      ColorSource
	lamps    Lamps
	hasArrow bool
	hold     time.Duration
	gap      time.Duration

	frames atomic.Uint32
	errs   atomic.Uint32
	log    *logx.Logger

	sleep func(time.Duration)
	now   func() time.Time
}

func New(src ColorSource, lamps Lamps, opt Options) *Renderer {
	hz := opt.RefreshHz
	if hz == 0 {
		hz = DefaultRefreshHz
	}
	hz = mathx.Clamp(hz, MinRefreshHz, MaxRefreshHz)
	slot := timex.PeriodFromHz(uint32(hz)) / 2
	gap := mathx.Clamp(opt.Gap, 0, slot/2)
	return &Renderer{
		src:      src,
		lamps:    lamps,
		hasArrow: opt.HasArrow,
		hold:     slot - gap,
		gap:      gap,
		log:      logx.New("render"),
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// blinkOn is true for the first half of every second.
func blinkOn(at time.Time) bool { return at.UnixMilli()%1000 < 500 }

// Frame renders one full cycle of both groups.
func (r *Renderer) Frame() {
	for _, g := range [...]types.Group{types.GroupPrimary, types.GroupSecondary} {
		p, s := r.src.Colors()
		c := p
		if g == types.GroupSecondary {
			c = s
		}
		r.check(r.lamps.Show(g, AspectFor(c, r.hasArrow, blinkOn(r.now()))))
		r.sleep(r.hold)
		r.check(r.lamps.Blank())
		r.sleep(r.gap)
	}
	r.frames.Add(1)
}

func (r *Renderer) check(err error) {
	if err == nil {
		return
	}
	// Log the first failure and then every 1000th to keep the loop cheap.
	if n := r.errs.Add(1); n == 1 || n%1000 == 0 {
		r.log.Warn("lamp drive failed", "err", err, "count", n)
	}
}

// Run refreshes until ctx ends, then leaves all lamps dark.
func (r *Renderer) Run(ctx context.Context) {
	defer func() { r.check(r.lamps.Blank()) }()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		r.Frame()
	}
}

func (r *Renderer) Frames() uint32 { return r.frames.Load() }
func (r *Renderer) Errors() uint32 { return r.errs.Load() }
