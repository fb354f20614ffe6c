package arbiter

import (
	"signalcode-go/errcode"
	"signalcode-go/types"
	"signalcode-go/x/mathx"
)

// MaxDuration bounds every timing field (one hour of ticks).
const MaxDuration = 3600

// Timing holds every phase duration, in ticks.
type Timing struct {
	Yellow   uint16 // clearance length after a transition
	Reset    uint16 // AllRed dwell before requests are served
	MinGreen uint16 // guaranteed primary-through service
	SoloWait uint16 // solo grace window
	SoloMax  uint16 // solo starvation cap
	SecWait  uint16 // secondary-through grace window
	SecMax   uint16 // secondary-through cap
}

func DefaultTiming() Timing {
	return Timing{Yellow: 2, Reset: 3, MinGreen: 5, SoloWait: 2, SoloMax: 5, SecWait: 2, SecMax: 5}
}

// TimingFrom converts a config document; zero fields keep their default.
func TimingFrom(c types.TimingConfig) (Timing, error) {
	t := DefaultTiming()
	fields := []struct {
		name string
		in   int
		out  *uint16
	}{
		{"yellow", c.Yellow, &t.Yellow},
		{"reset", c.Reset, &t.Reset},
		{"min_green", c.MinGreen, &t.MinGreen},
		{"solo_wait", c.SoloWait, &t.SoloWait},
		{"solo_max", c.SoloMax, &t.SoloMax},
		{"sec_wait", c.SecWait, &t.SecWait},
		{"sec_max", c.SecMax, &t.SecMax},
	}
	for _, f := range fields {
		if f.in == 0 {
			continue
		}
		if !mathx.Between(f.in, 1, MaxDuration) {
			return Timing{}, &errcode.E{C: errcode.InvalidTiming, Op: "timing", Msg: f.name + " out of range"}
		}
		*f.out = uint16(f.in)
	}
	return t, t.Validate()
}

// Validate checks ranges and the wait <= cap orderings.
func (t Timing) Validate() error {
	for _, v := range []uint16{t.Yellow, t.Reset, t.MinGreen, t.SoloWait, t.SoloMax, t.SecWait, t.SecMax} {
		if !mathx.Between(v, 1, MaxDuration) {
			return &errcode.E{C: errcode.InvalidTiming, Op: "timing", Msg: "duration out of range"}
		}
	}
	if t.SoloWait > t.SoloMax {
		return &errcode.E{C: errcode.InvalidTiming, Op: "timing", Msg: "solo_wait exceeds solo_max"}
	}
	if t.SecWait > t.SecMax {
		return &errcode.E{C: errcode.InvalidTiming, Op: "timing", Msg: "sec_wait exceeds sec_max"}
	}
	return nil
}
