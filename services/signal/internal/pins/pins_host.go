//go:build !rp2040 && !rp2350

package pins

import (
	"sync"

	"tinygo.org/x/drivers"
)

// ----------------------------- I²C (host) ------------------------------------

// HostI2C implements drivers.I2C and keeps the last byte written per address.
type HostI2C struct {
	mu     sync.Mutex
	last   map[uint16][]byte
	writes int
	Err    error // returned by Tx when set
}

func (h *HostI2C) Tx(addr uint16, w, r []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Err != nil {
		return h.Err
	}
	if h.last == nil {
		h.last = make(map[uint16][]byte)
	}
	h.last[addr] = append([]byte(nil), w...)
	h.writes++
	for i := range r {
		r[i] = 0xFF
	}
	return nil
}

// Last returns the most recent write to addr.
func (h *HostI2C) Last(addr uint16) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]byte(nil), h.last[addr]...)
}

func (h *HostI2C) Writes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writes
}

type hostI2CFactory struct {
	buses map[string]drivers.I2C
}

func (f *hostI2CFactory) ByID(id string) (drivers.I2C, bool) {
	b, ok := f.buses[id]
	return b, ok
}

// DefaultI2CFactory creates inert host buses "i2c0" and "i2c1".
func DefaultI2CFactory() I2CFactory {
	return &hostI2CFactory{buses: map[string]drivers.I2C{
		"i2c0": &HostI2C{},
		"i2c1": &HostI2C{},
	}}
}

// ----------------------------- GPIO (host) -----------------------------------

// FakePin implements IRQPin in memory. Set on an input fires the registered
// handler synchronously when the level change matches the IRQ edge.
type FakePin struct {
	mu      sync.Mutex
	number  int
	level   bool
	output  bool
	pull    Pull
	irqEdge Edge
	irqFunc func()
	sets    int
}

func NewFakePin(n int) *FakePin { return &FakePin{number: n} }

func (p *FakePin) ConfigureInput(pull Pull) error {
	p.mu.Lock()
	p.output = false
	p.pull = pull
	p.level = pull == PullUp
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.output = true
	p.level = initial
	p.mu.Unlock()
	return nil
}

func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	old := p.level
	p.level = level
	p.sets++
	want := irqWanted(p.irqEdge, edgeFrom(old, level))
	irq := p.irqFunc
	p.mu.Unlock()
	if want && irq != nil {
		irq()
	}
}

func (p *FakePin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *FakePin) Number() int { return p.number }

// Sets counts calls to Set, for render tests.
func (p *FakePin) Sets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sets
}

func (p *FakePin) IsOutput() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.output
}

func (p *FakePin) SetIRQ(edge Edge, handler func()) error {
	p.mu.Lock()
	p.irqEdge = edge
	p.irqFunc = handler
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ClearIRQ() error {
	p.mu.Lock()
	p.irqEdge = EdgeNone
	p.irqFunc = nil
	p.mu.Unlock()
	return nil
}

// Pulse toggles the level twice, producing a rising and a falling edge.
func (p *FakePin) Pulse() {
	p.Set(!p.Get())
	p.Set(!p.Get())
}

func edgeFrom(old, new bool) Edge {
	switch {
	case !old && new:
		return EdgeRising
	case old && !new:
		return EdgeFalling
	default:
		return EdgeNone
	}
}

func irqWanted(cfg, seen Edge) bool {
	if seen == EdgeNone {
		return false
	}
	return cfg == EdgeBoth || cfg == seen
}

// HostPinFactory hands out stable *FakePin instances for GP0..GP28.
type HostPinFactory struct {
	mu   sync.Mutex
	pins map[int]*FakePin
}

func (f *HostPinFactory) ByNumber(n int) (GPIOPin, bool) {
	p, ok := f.Fake(n)
	if !ok {
		return nil, false
	}
	return p, true
}

// Fake returns the concrete pin so tests and the simulator can drive edges.
func (f *HostPinFactory) Fake(n int) (*FakePin, bool) {
	if n < 0 || n > 28 {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pins == nil {
		f.pins = make(map[int]*FakePin)
	}
	p, ok := f.pins[n]
	if !ok {
		p = NewFakePin(n)
		f.pins[n] = p
	}
	return p, true
}

// DefaultPinFactory provides a host GPIO factory.
func DefaultPinFactory() PinFactory { return &HostPinFactory{} }
