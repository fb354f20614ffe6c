package render

import (
	"signalcode-go/services/signal/internal/pins"
	"signalcode-go/types"
)

type groupPins struct {
	red, yellow, green, arrow, enable pins.GPIOPin
}

// GPIOLamps drives lamps straight from GPIO. Groups may share their colour
// lines when each has an enable line selecting it.
type GPIOLamps struct {
	groups [2]groupPins
}

// ClaimOwner is the pin owner recorded for lamp lines.
const ClaimOwner = "lamps"

// NewGPIOLamps resolves and claims every configured pin.
func NewGPIOLamps(f pins.PinFactory, claims *pins.Claims, primary, secondary types.LampPins) (*GPIOLamps, error) {
	l := &GPIOLamps{}
	for i, cfg := range [2]types.LampPins{primary, secondary} {
		g := &l.groups[i]
		for _, slot := range []struct {
			n   int
			dst *pins.GPIOPin
		}{
			{cfg.Red, &g.red}, {cfg.Yellow, &g.yellow}, {cfg.Green, &g.green},
			{cfg.Arrow, &g.arrow}, {cfg.Enable, &g.enable},
		} {
			if slot.n == types.NoPin {
				continue
			}
			if claims != nil {
				if err := claims.Claim(slot.n, ClaimOwner); err != nil {
					return nil, err
				}
			}
			p, err := pins.Output(f, slot.n)
			if err != nil {
				return nil, err
			}
			*slot.dst = p
		}
	}
	return l, nil
}

// HasArrow reports whether both groups have a dedicated arrow lamp.
func (l *GPIOLamps) HasArrow() bool {
	return l.groups[0].arrow != nil && l.groups[1].arrow != nil
}

func (l *GPIOLamps) Show(g types.Group, a Aspect) error {
	other := &l.groups[1-int(g)]
	set(other.enable, false)
	gp := &l.groups[g]
	set(gp.red, a.Red)
	set(gp.yellow, a.Yellow)
	set(gp.green, a.Green)
	set(gp.arrow, a.Arrow)
	set(gp.enable, true)
	return nil
}

func (l *GPIOLamps) Blank() error {
	for i := range l.groups {
		gp := &l.groups[i]
		set(gp.enable, false)
		set(gp.red, false)
		set(gp.yellow, false)
		set(gp.green, false)
		set(gp.arrow, false)
	}
	return nil
}

func set(p pins.GPIOPin, v bool) {
	if p != nil {
		p.Set(v)
	}
}
