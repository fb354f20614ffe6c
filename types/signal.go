package types

import "signalcode-go/errcode"

// ---- Movements ----

// Movement is one directional flow contending for right-of-way.
type Movement uint8

const (
	PrimaryThrough Movement = iota
	PrimarySolo
	SecondaryThrough
	SecondarySolo

	NumMovements = 4
)

var movementNames = [NumMovements]string{
	"primary-through", "primary-solo", "secondary-through", "secondary-solo",
}

func (m Movement) String() string {
	if int(m) < NumMovements {
		return movementNames[m]
	}
	return "invalid"
}

// Bit is the movement's flag in a pending-request mask.
func (m Movement) Bit() uint8 { return 1 << m }

// Valid reports whether m names one of the four movements.
func (m Movement) Valid() bool { return m < NumMovements }

// ParseMovement accepts the kebab-case name, the phase name or a short alias
// (pt, ps, st, ss).
func ParseMovement(s string) (Movement, error) {
	switch s {
	case "primary-through", "PrimaryThrough", "pt":
		return PrimaryThrough, nil
	case "primary-solo", "PrimarySolo", "ps":
		return PrimarySolo, nil
	case "secondary-through", "SecondaryThrough", "st":
		return SecondaryThrough, nil
	case "secondary-solo", "SecondarySolo", "ss":
		return SecondarySolo, nil
	}
	return 0, &errcode.E{C: errcode.UnknownMovement, Op: "parse_movement", Msg: s}
}

// ---- Phases ----

// Phase is the arbitration state: AllRed or exactly one served movement.
type Phase uint8

const (
	PhaseAllRed Phase = iota
	PhasePrimaryThrough
	PhasePrimarySolo
	PhaseSecondaryThrough
	PhaseSecondarySolo
)

var phaseNames = [...]string{
	"AllRed", "PrimaryThrough", "PrimarySolo", "SecondaryThrough", "SecondarySolo",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "Invalid"
}

// PhaseOf maps a movement to the phase that serves it.
func PhaseOf(m Movement) Phase { return Phase(m) + 1 }

// Movement returns the served movement; ok is false for AllRed.
func (p Phase) Movement() (Movement, bool) {
	if p == PhaseAllRed || int(p) >= len(phaseNames) {
		return 0, false
	}
	return Movement(p - 1), true
}

func ParsePhase(s string) (Phase, error) {
	for i, n := range phaseNames {
		if n == s {
			return Phase(i), nil
		}
	}
	if s == "all-red" {
		return PhaseAllRed, nil
	}
	if m, err := ParseMovement(s); err == nil {
		return PhaseOf(m), nil
	}
	return 0, &errcode.E{C: errcode.InvalidParams, Op: "parse_phase", Msg: s}
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	v, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ---- Colours ----

// Group is one of the two rendered lamp groups.
type Group uint8

const (
	GroupPrimary Group = iota
	GroupSecondary
)

func (g Group) String() string {
	if g == GroupSecondary {
		return "secondary"
	}
	return "primary"
}

func ParseGroup(s string) (Group, error) {
	switch s {
	case "primary":
		return GroupPrimary, nil
	case "secondary":
		return GroupSecondary, nil
	}
	return 0, &errcode.E{C: errcode.InvalidParams, Op: "parse_group", Msg: s}
}

// Color is the aspect shown by one group.
type Color uint8

const (
	ColorOff Color = iota
	ColorRed
	ColorYellow
	ColorGreen
	ColorCaution
)

var colorNames = [...]string{"off", "red", "yellow", "green", "caution"}

func (c Color) String() string {
	if int(c) < len(colorNames) {
		return colorNames[c]
	}
	return "invalid"
}

func ParseColor(s string) (Color, error) {
	for i, n := range colorNames {
		if n == s {
			return Color(i), nil
		}
	}
	return 0, &errcode.E{C: errcode.InvalidParams, Op: "parse_color", Msg: s}
}

func (c Color) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Color) UnmarshalText(b []byte) error {
	v, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ---- Bus payloads ----

// SignalState is retained on signal/state.
type SignalState struct {
	Phase     Phase  `json:"phase"`
	Clearing  bool   `json:"clearing"`
	Caution   bool   `json:"caution"`
	From      Phase  `json:"from"`
	Primary   Color  `json:"primary"`
	Secondary Color  `json:"secondary"`
	Pending   uint8  `json:"pending"`
	Tick      uint32 `json:"tick"`
	TS        int64  `json:"ts_ms"`
}

// Transition is published on signal/event/transition.
type Transition struct {
	ID      string `json:"id"`
	Tick    uint32 `json:"tick"`
	From    Phase  `json:"from"`
	To      Phase  `json:"to"`
	Caution bool   `json:"caution"`
	Forced  bool   `json:"forced"`
	TS      int64  `json:"ts_ms"`
}

// SignalDiag is retained on signal/diag and refreshed every tick.
type SignalDiag struct {
	Phase       Phase  `json:"phase"`
	Ticks       uint32 `json:"ticks"`
	Edges       uint32 `json:"edges"`
	ISRDrops    uint32 `json:"isr_drops"`
	Pending     uint8  `json:"pending"`
	Transitions uint32 `json:"transitions"`
	TS          int64  `json:"ts_ms"`
}

// ---- Controls ----

type SenseRequest struct {
	Movement string `json:"movement"`
}

type TickRequest struct {
	N int `json:"n"`
}
