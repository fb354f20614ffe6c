package render

import (
	"tinygo.org/x/drivers"

	"signalcode-go/errcode"
	"signalcode-go/types"
)

// DefaultPCF8574Addr is the expander address with A2..A0 strapped low.
const DefaultPCF8574Addr = 0x20

// Expander bit layout.
const (
	bitPrimaryRed = iota
	bitPrimaryYellow
	bitPrimaryGreen
	bitSecondaryRed
	bitSecondaryYellow
	bitSecondaryGreen
	bitPrimaryArrow
	bitSecondaryArrow
)

// PCF8574Lamps drives both groups from one 8-bit I²C expander. Only the
// shown group's bits are lit in each write.
type PCF8574Lamps struct {
	bus       drivers.I2C
	addr      uint16
	activeLow bool
	buf       [1]byte
}

func NewPCF8574(bus drivers.I2C, addr uint16, activeLow bool) *PCF8574Lamps {
	if addr == 0 {
		addr = DefaultPCF8574Addr
	}
	return &PCF8574Lamps{bus: bus, addr: addr, activeLow: activeLow}
}

// Encode returns the port byte for group g showing a (before polarity).
func Encode(g types.Group, a Aspect) byte {
	base, arrow := bitPrimaryRed, bitPrimaryArrow
	if g == types.GroupSecondary {
		base, arrow = bitSecondaryRed, bitSecondaryArrow
	}
	var b byte
	if a.Red {
		b |= 1 << base
	}
	if a.Yellow {
		b |= 1 << (base + 1)
	}
	if a.Green {
		b |= 1 << (base + 2)
	}
	if a.Arrow {
		b |= 1 << arrow
	}
	return b
}

func (l *PCF8574Lamps) Show(g types.Group, a Aspect) error {
	return l.write(Encode(g, a))
}

func (l *PCF8574Lamps) Blank() error { return l.write(0) }

func (l *PCF8574Lamps) write(b byte) error {
	if l.activeLow {
		b = ^b
	}
	l.buf[0] = b
	if err := l.bus.Tx(l.addr, l.buf[:], nil); err != nil {
		return &errcode.E{C: errcode.Error, Op: "pcf8574.write", Err: err}
	}
	return nil
}
