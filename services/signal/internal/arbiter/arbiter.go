// Package arbiter decides right-of-way once per tick.
//
// A Core owns the phase, its clearance flag and the phase counters. All of
// that is touched only from the tick context (OnTick, Reset, Snapshot and
// SetTiming). Sensor input arrives through OnSensorEdge, which may run
// concurrently and only ORs bits into the shared Pending set. The rendered
// colours are published as one atomic word so a renderer never needs a lock.
package arbiter

import (
	"sync/atomic"

	"signalcode-go/types"
	"signalcode-go/x/mathx"
)

const counterMax = ^uint16(0)

// State is the authoritative arbitration state. Phase is a single tagged
// value, replaced wholesale on every transition.
type State struct {
	Phase    types.Phase
	Clearing bool        // inside the post-transition clearance
	Caution  bool        // the transition that started this phase carried caution
	From     types.Phase // phase left by that transition
}

// Counters are whole-tick timers. Each belongs to one phase and is cleared
// when a transition leaves or enters it.
type Counters struct {
	Clearance    uint16
	MinGreen     uint16
	MaxGreen     uint16
	MaxGreenWait uint16
	SoloMax      uint16
	SoloWait     uint16
}

// Transition describes one phase change.
type Transition struct {
	Tick    uint32
	From    types.Phase
	To      types.Phase
	Caution bool
	Forced  bool // cap expiry or fallback, not a served request
}

// Snapshot is a consistent copy of the core, taken from the tick context.
type Snapshot struct {
	State     State
	Counters  Counters
	Pending   uint8
	Ticks     uint32
	Primary   types.Color
	Secondary types.Color
}

// Core is the arbitration state machine.
type Core struct {
	timing  Timing
	staged  *Timing
	pending *Pending
	lines   atomic.Uint32

	state State
	ctr   Counters
	ticks uint32

	colors atomic.Uint32

	// OnTransition, when set, runs synchronously inside OnTick.
	OnTransition func(Transition)
}

// New returns a core in AllRed with zero counters. A nil pending set gets a
// private one.
func New(t Timing, pending *Pending) *Core {
	if pending == nil {
		pending = &Pending{}
	}
	c := &Core{timing: t, pending: pending}
	c.lines.Store(DefaultLineMap().pack())
	c.render()
	return c
}

func (c *Core) Pending() *Pending  { return c.pending }
func (c *Core) Timing() Timing     { return c.timing }
func (c *Core) State() State       { return c.state }
func (c *Core) Counters() Counters { return c.ctr }

// SetLineMap replaces the line-to-movement mapping used by OnSensorEdge.
func (c *Core) SetLineMap(lm LineMap) { c.lines.Store(lm.pack()) }

// SetTiming stages t. It takes effect at the next phase boundary: the next
// transition, a Reset, or the next tick spent in AllRed.
func (c *Core) SetTiming(t Timing) {
	c.staged = &t
}

// OnSensorEdge records requests for every line set in lineMask. Safe to call
// from any goroutine.
func (c *Core) OnSensorEdge(lineMask uint8) {
	c.pending.Set(unpackLineMap(c.lines.Load()).Mask(lineMask))
}

// Request marks m pending directly, bypassing the line map.
func (c *Core) Request(m types.Movement) {
	if m.Valid() {
		c.pending.Set(m.Bit())
	}
}

// Colors returns the latest published colour per group.
func (c *Core) Colors() (primary, secondary types.Color) {
	v := c.colors.Load()
	return types.Color(v), types.Color(v >> 8)
}

// Reset returns to AllRed with zero counters. Pending requests survive.
func (c *Core) Reset() {
	c.applyStaged()
	c.state = State{Phase: types.PhaseAllRed}
	c.ctr = Counters{}
	c.render()
}

func (c *Core) Snapshot() Snapshot {
	p, s := c.Colors()
	return Snapshot{
		State: c.state, Counters: c.ctr, Pending: c.pending.Load(),
		Ticks: c.ticks, Primary: p, Secondary: s,
	}
}

// OnTick advances the machine by exactly one tick.
func (c *Core) OnTick() {
	c.ticks++
	c.step()
	c.render()
}

func (c *Core) step() {
	if c.state.Phase == types.PhaseAllRed {
		c.stepAllRed()
		return
	}
	if c.state.Clearing {
		c.ctr.Clearance = mathx.SatInc(c.ctr.Clearance, counterMax)
		if c.ctr.Clearance < c.timing.Yellow {
			return
		}
		c.state.Clearing = false
	}
	switch c.state.Phase {
	case types.PhasePrimaryThrough:
		c.stepPrimaryThrough()
	case types.PhasePrimarySolo:
		c.stepSolo(types.PrimarySolo, types.PrimaryThrough,
			types.PrimaryThrough, types.SecondarySolo, types.SecondaryThrough)
	case types.PhaseSecondarySolo:
		c.stepSolo(types.SecondarySolo, types.SecondaryThrough,
			types.SecondaryThrough, types.PrimarySolo, types.PrimaryThrough)
	case types.PhaseSecondaryThrough:
		c.stepSecondaryThrough()
	}
}

func (c *Core) stepAllRed() {
	c.applyStaged()
	c.ctr.Clearance = mathx.SatInc(c.ctr.Clearance, counterMax)
	if c.ctr.Clearance < c.timing.Reset {
		return
	}
	if m, ok := c.pending.TakeFirst(types.PrimaryThrough, types.PrimarySolo,
		types.SecondaryThrough, types.SecondarySolo); ok {
		c.transition(types.PhaseOf(m), false, false)
	}
}

func (c *Core) stepPrimaryThrough() {
	c.ctr.MinGreen = mathx.SatInc(c.ctr.MinGreen, counterMax)
	if c.ctr.MinGreen < c.timing.MinGreen {
		return
	}
	if m, ok := c.pending.TakeFirst(types.SecondarySolo, types.SecondaryThrough, types.PrimarySolo); ok {
		c.transition(types.PhaseOf(m), true, false)
		return
	}
	// Nothing waiting: re-arm the minimum and keep serving.
	c.ctr.MinGreen = 0
}

// stepSolo serves own until a competing request, the cap, or lack of demand
// hands over to the same street's through movement. Re-selecting own
// consumes its bit but leaves both counters running, so the cap always
// fires eventually.
func (c *Core) stepSolo(own, through types.Movement, order ...types.Movement) {
	c.ctr.SoloMax = mathx.SatInc(c.ctr.SoloMax, counterMax)
	c.ctr.SoloWait = mathx.SatInc(c.ctr.SoloWait, counterMax)
	if c.ctr.SoloWait < c.timing.SoloWait {
		return
	}
	if m, ok := c.pending.TakeFirst(order...); ok {
		c.transition(types.PhaseOf(m), true, false)
		return
	}
	if c.ctr.SoloMax >= c.timing.SoloMax {
		c.transition(types.PhaseOf(through), true, true)
		return
	}
	if c.pending.Take(own) {
		return
	}
	c.transition(types.PhaseOf(through), true, true)
}

func (c *Core) stepSecondaryThrough() {
	c.ctr.MaxGreen = mathx.SatInc(c.ctr.MaxGreen, counterMax)
	c.ctr.MaxGreenWait = mathx.SatInc(c.ctr.MaxGreenWait, counterMax)
	if c.ctr.MaxGreenWait < c.timing.SecWait {
		return
	}
	if m, ok := c.pending.TakeFirst(types.PrimarySolo, types.PrimaryThrough, types.SecondarySolo); ok {
		c.transition(types.PhaseOf(m), true, false)
		return
	}
	if c.ctr.MaxGreen >= c.timing.SecMax {
		c.transition(types.PhasePrimaryThrough, true, true)
		return
	}
	if c.pending.Take(types.SecondaryThrough) {
		return
	}
	c.transition(types.PhasePrimaryThrough, true, true)
}

// transition replaces the state and clears every counter; the source and
// target phase counters are the only non-zero ones at this point.
func (c *Core) transition(to types.Phase, caution, forced bool) {
	from := c.state.Phase
	c.applyStaged()
	c.state = State{Phase: to, Clearing: true, Caution: caution, From: from}
	c.ctr = Counters{}
	if c.OnTransition != nil {
		c.OnTransition(Transition{Tick: c.ticks, From: from, To: to, Caution: caution, Forced: forced})
	}
}

func (c *Core) applyStaged() {
	if c.staged != nil {
		c.timing = *c.staged
		c.staged = nil
	}
}

// render publishes the colours implied by the current state.
func (c *Core) render() {
	p, s := ColorsFor(c.state)
	c.colors.Store(uint32(p) | uint32(s)<<8)
}

// ColorsFor maps a state to the two group colours.
func ColorsFor(st State) (primary, secondary types.Color) {
	if st.Clearing {
		primary, secondary = types.ColorRed, types.ColorRed
		if st.Caution {
			switch st.From {
			case types.PhasePrimaryThrough, types.PhasePrimarySolo:
				primary = types.ColorYellow
			case types.PhaseSecondaryThrough, types.PhaseSecondarySolo:
				secondary = types.ColorYellow
			}
		}
		return primary, secondary
	}
	switch st.Phase {
	case types.PhasePrimaryThrough:
		return types.ColorGreen, types.ColorRed
	case types.PhasePrimarySolo:
		return types.ColorCaution, types.ColorRed
	case types.PhaseSecondaryThrough:
		return types.ColorRed, types.ColorGreen
	case types.PhaseSecondarySolo:
		return types.ColorRed, types.ColorCaution
	default:
		return types.ColorRed, types.ColorRed
	}
}
