package arbiter

import (
	"sync/atomic"

	"signalcode-go/types"
)

// Pending is the request set shared by the sensor latch (sets bits) and the
// core (takes bits). Every mutation is a CAS on the whole word, so a set
// racing a take never disturbs unrelated bits.
type Pending struct {
	bits atomic.Uint32
}

// Set ORs mask into the set.
func (p *Pending) Set(mask uint8) {
	if mask == 0 {
		return
	}
	for {
		old := p.bits.Load()
		if p.bits.CompareAndSwap(old, old|uint32(mask)) {
			return
		}
	}
}

// Take clears m and reports whether it was set.
func (p *Pending) Take(m types.Movement) bool {
	bit := uint32(m.Bit())
	for {
		old := p.bits.Load()
		if old&bit == 0 {
			return false
		}
		if p.bits.CompareAndSwap(old, old&^bit) {
			return true
		}
	}
}

// TakeFirst takes the first pending movement in priority order.
func (p *Pending) TakeFirst(order ...types.Movement) (types.Movement, bool) {
	for _, m := range order {
		if p.Take(m) {
			return m, true
		}
	}
	return 0, false
}

func (p *Pending) Has(m types.Movement) bool { return p.bits.Load()&uint32(m.Bit()) != 0 }

// Load returns the current mask.
func (p *Pending) Load() uint8 { return uint8(p.bits.Load()) }
