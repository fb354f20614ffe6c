// Package pins abstracts the GPIO lines and I²C buses the signal service
// drives. Host builds get in-memory fakes; RP2 builds map to machine pins.
package pins

import (
	"strconv"
	"sync"

	"tinygo.org/x/drivers"

	"signalcode-go/errcode"
)

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// ParsePull accepts "up", "down" and anything else as none.
func ParsePull(s string) Pull {
	switch s {
	case "up":
		return PullUp
	case "down":
		return PullDown
	default:
		return PullNone
	}
}

type GPIOPin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Number() int
}

// Edge selection for IRQ.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// IRQPin extends GPIOPin with interrupts. The handler runs in interrupt
// context on MCU builds and must not block or allocate.
type IRQPin interface {
	GPIOPin
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// PinFactory supplies GPIO pins by board number.
type PinFactory interface {
	ByNumber(n int) (GPIOPin, bool)
}

// I2CFactory supplies configured I²C buses by id ("i2c0", "i2c1").
type I2CFactory interface {
	ByID(id string) (drivers.I2C, bool)
}

// Claims tracks pin ownership. An owner may claim the same pin repeatedly
// (multiplexed lamp groups share their colour lines); another owner may not.
type Claims struct {
	mu     sync.Mutex
	owners map[int]string
}

// Claim records owner for pin n; a second claim by a different owner fails
// with PinInUse.
func (c *Claims) Claim(n int, owner string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owners == nil {
		c.owners = make(map[int]string)
	}
	if cur, ok := c.owners[n]; ok && cur != owner {
		return &errcode.E{C: errcode.PinInUse, Op: "claim", Msg: "gp" + strconv.Itoa(n) + " held by " + cur}
	}
	c.owners[n] = owner
	return nil
}

// ReleaseOwner frees every pin held by owner.
func (c *Claims) ReleaseOwner(owner string) {
	c.mu.Lock()
	for n, o := range c.owners {
		if o == owner {
			delete(c.owners, n)
		}
	}
	c.mu.Unlock()
}

// Input resolves n to an IRQ-capable input.
func Input(f PinFactory, n int) (IRQPin, error) {
	p, ok := f.ByNumber(n)
	if !ok {
		return nil, &errcode.E{C: errcode.UnknownPin, Op: "input", Msg: "gp" + strconv.Itoa(n)}
	}
	ip, ok := p.(IRQPin)
	if !ok {
		return nil, &errcode.E{C: errcode.Unsupported, Op: "input", Msg: "gp" + strconv.Itoa(n) + " has no IRQ"}
	}
	return ip, nil
}

// Output resolves n and configures it as an output driven low.
func Output(f PinFactory, n int) (GPIOPin, error) {
	p, ok := f.ByNumber(n)
	if !ok {
		return nil, &errcode.E{C: errcode.UnknownPin, Op: "output", Msg: "gp" + strconv.Itoa(n)}
	}
	if err := p.ConfigureOutput(false); err != nil {
		return nil, err
	}
	return p, nil
}
