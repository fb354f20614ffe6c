package arbiter

import (
	"signalcode-go/errcode"
	"signalcode-go/types"
)

// LineMap assigns each latch line to the movement its sensor watches.
type LineMap [types.NumMovements]types.Movement

func DefaultLineMap() LineMap {
	return LineMap{types.PrimaryThrough, types.PrimarySolo, types.SecondaryThrough, types.SecondarySolo}
}

// LineMapFrom builds a map from sensor config lines; missing lines keep the
// default assignment.
func LineMapFrom(lines []types.SensorLine) (LineMap, error) {
	lm := DefaultLineMap()
	if len(lines) > types.NumMovements {
		return lm, &errcode.E{C: errcode.InvalidParams, Op: "line_map", Msg: "more than 4 sensor lines"}
	}
	for i, l := range lines {
		m, err := types.ParseMovement(l.Movement)
		if err != nil {
			return DefaultLineMap(), err
		}
		lm[i] = m
	}
	return lm, nil
}

// Mask converts a mask of latch lines into a mask of movement bits.
func (lm LineMap) Mask(lines uint8) uint8 {
	var out uint8
	for i, m := range lm {
		if lines&(1<<i) != 0 {
			out |= m.Bit()
		}
	}
	return out
}

func (lm LineMap) pack() uint32 {
	var v uint32
	for i, m := range lm {
		v |= uint32(m&3) << (2 * i)
	}
	return v
}

func unpackLineMap(v uint32) LineMap {
	var lm LineMap
	for i := range lm {
		lm[i] = types.Movement((v >> (2 * i)) & 3)
	}
	return lm
}
