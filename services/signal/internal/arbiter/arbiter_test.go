package arbiter

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalcode-go/types"
)

func newRecordingCore() (*Core, *[]Transition) {
	c := New(DefaultTiming(), nil)
	var log []Transition
	c.OnTransition = func(tr Transition) { log = append(log, tr) }
	return c, &log
}

func tickN(c *Core, n int) {
	for i := 0; i < n; i++ {
		c.OnTick()
	}
}

// enter drives a fresh core from AllRed into the steady phase serving m.
// It returns after the tick on which clearance ended.
func enter(t *testing.T, c *Core, m types.Movement) {
	t.Helper()
	c.Request(m)
	tickN(c, 3)
	require.Equal(t, types.PhaseOf(m), c.State().Phase)
	require.True(t, c.State().Clearing)
	tickN(c, 2)
	require.False(t, c.State().Clearing)
}

func groupOf(p types.Phase) types.Group {
	if p == types.PhaseSecondaryThrough || p == types.PhaseSecondarySolo {
		return types.GroupSecondary
	}
	return types.GroupPrimary
}

func colorOf(c *Core, g types.Group) types.Color {
	p, s := c.Colors()
	if g == types.GroupSecondary {
		return s
	}
	return p
}

func TestAllRed(t *testing.T) {
	t.Run("quiescent without requests", func(t *testing.T) {
		c, log := newRecordingCore()
		tickN(c, 1000)

		assert.Equal(t, State{Phase: types.PhaseAllRed}, c.State())
		assert.Empty(t, *log)
		p, s := c.Colors()
		assert.Equal(t, types.ColorRed, p)
		assert.Equal(t, types.ColorRed, s)
	})

	t.Run("serves primary through after reset dwell without caution", func(t *testing.T) {
		c, log := newRecordingCore()
		c.Request(types.PrimaryThrough)

		tickN(c, 2)
		assert.Equal(t, types.PhaseAllRed, c.State().Phase)

		c.OnTick()
		assert.Equal(t, State{Phase: types.PhasePrimaryThrough, Clearing: true, From: types.PhaseAllRed}, c.State())
		require.Len(t, *log, 1)
		assert.False(t, (*log)[0].Caution)
		assert.Zero(t, c.Pending().Load())

		p, s := c.Colors()
		assert.Equal(t, types.ColorRed, p, "clearance from AllRed is all red")
		assert.Equal(t, types.ColorRed, s)
	})

	t.Run("fixed priority order", func(t *testing.T) {
		c, _ := newRecordingCore()
		c.Request(types.SecondarySolo)
		c.Request(types.PrimarySolo)
		tickN(c, 3)

		assert.Equal(t, types.PhasePrimarySolo, c.State().Phase)
		assert.True(t, c.Pending().Has(types.SecondarySolo))
		assert.False(t, c.Pending().Has(types.PrimarySolo))
	})

	t.Run("late request is served on the next tick", func(t *testing.T) {
		c, _ := newRecordingCore()
		tickN(c, 20)
		c.Request(types.SecondaryThrough)
		c.OnTick()
		assert.Equal(t, types.PhaseSecondaryThrough, c.State().Phase)
	})
}

func TestClearance(t *testing.T) {
	c, _ := newRecordingCore()
	c.Request(types.PrimaryThrough)
	tickN(c, 3)

	c.OnTick()
	assert.True(t, c.State().Clearing)
	p, _ := c.Colors()
	assert.Equal(t, types.ColorRed, p)

	c.OnTick()
	assert.False(t, c.State().Clearing)
	assert.Equal(t, uint16(2), c.Counters().Clearance, "clearance counter is not reset when clearance ends")
	assert.Equal(t, uint16(1), c.Counters().MinGreen, "steady branch runs on the tick clearance ends")
	p, s := c.Colors()
	assert.Equal(t, types.ColorGreen, p)
	assert.Equal(t, types.ColorRed, s)
}

func TestPrimaryThrough(t *testing.T) {
	t.Run("holds minimum green regardless of requests", func(t *testing.T) {
		c, log := newRecordingCore()
		enter(t, c, types.PrimaryThrough)
		c.Request(types.SecondarySolo)

		for i := 0; i < 3; i++ {
			c.OnTick()
			assert.Equal(t, types.PhasePrimaryThrough, c.State().Phase)
		}
		c.OnTick()
		assert.Equal(t, State{Phase: types.PhaseSecondarySolo, Clearing: true, Caution: true, From: types.PhasePrimaryThrough}, c.State())
		assert.Equal(t, Transition{Tick: 9, From: types.PhasePrimaryThrough, To: types.PhaseSecondarySolo, Caution: true}, (*log)[len(*log)-1])

		p, s := c.Colors()
		assert.Equal(t, types.ColorYellow, p)
		assert.Equal(t, types.ColorRed, s)
	})

	t.Run("priority secondary solo over secondary through over primary solo", func(t *testing.T) {
		c, _ := newRecordingCore()
		enter(t, c, types.PrimaryThrough)
		c.Request(types.PrimarySolo)
		c.Request(types.SecondaryThrough)
		tickN(c, 4)

		assert.Equal(t, types.PhaseSecondaryThrough, c.State().Phase)
		assert.True(t, c.Pending().Has(types.PrimarySolo))
	})

	t.Run("re-arms minimum when nothing waits", func(t *testing.T) {
		c, log := newRecordingCore()
		enter(t, c, types.PrimaryThrough)
		tickN(c, 4)
		assert.Equal(t, types.PhasePrimaryThrough, c.State().Phase)
		assert.Zero(t, c.Counters().MinGreen)
		assert.False(t, c.State().Clearing, "self-loop does not enter clearance")
		assert.Len(t, *log, 1)

		c.Request(types.SecondaryThrough)
		tickN(c, 4)
		assert.Equal(t, types.PhasePrimaryThrough, c.State().Phase)
		c.OnTick()
		assert.Equal(t, types.PhaseSecondaryThrough, c.State().Phase)
	})
}

func TestSolo(t *testing.T) {
	t.Run("continuous self requests are capped", func(t *testing.T) {
		c, log := newRecordingCore()
		enter(t, c, types.PrimarySolo)
		steady := 1

		for c.State().Phase == types.PhasePrimarySolo {
			c.Request(types.PrimarySolo)
			c.OnTick()
			steady++
			require.LessOrEqual(t, steady, 10, "solo never released")
		}
		assert.Equal(t, int(DefaultTiming().SoloMax), steady)
		last := (*log)[len(*log)-1]
		assert.Equal(t, types.PhasePrimaryThrough, last.To)
		assert.True(t, last.Caution)
		assert.True(t, last.Forced)
	})

	t.Run("self request keeps counters running", func(t *testing.T) {
		c, _ := newRecordingCore()
		enter(t, c, types.SecondarySolo)
		c.Request(types.SecondarySolo)
		c.OnTick()

		assert.Equal(t, types.PhaseSecondarySolo, c.State().Phase)
		assert.Equal(t, Counters{Clearance: 2, SoloMax: 2, SoloWait: 2}, c.Counters())
		assert.False(t, c.Pending().Has(types.SecondarySolo), "own request consumed")
	})

	t.Run("released to same street through without demand", func(t *testing.T) {
		c, log := newRecordingCore()
		enter(t, c, types.SecondarySolo)
		c.OnTick()

		assert.Equal(t, State{Phase: types.PhaseSecondaryThrough, Clearing: true, Caution: true, From: types.PhaseSecondarySolo}, c.State())
		assert.True(t, (*log)[len(*log)-1].Forced)
		_, s := c.Colors()
		assert.Equal(t, types.ColorYellow, s)
	})

	t.Run("grace window ignores competitors", func(t *testing.T) {
		c, _ := newRecordingCore()
		c.Request(types.PrimarySolo)
		tickN(c, 5)
		c.Request(types.PrimaryThrough)
		assert.Equal(t, types.PhasePrimarySolo, c.State().Phase)
		assert.Equal(t, uint16(1), c.Counters().SoloWait)
	})

	t.Run("primary solo priority", func(t *testing.T) {
		c, log := newRecordingCore()
		enter(t, c, types.PrimarySolo)
		c.Request(types.SecondaryThrough)
		c.Request(types.SecondarySolo)
		c.OnTick()

		assert.Equal(t, types.PhaseSecondarySolo, c.State().Phase)
		assert.False(t, (*log)[len(*log)-1].Forced)
		assert.True(t, c.Pending().Has(types.SecondaryThrough))
		assert.Equal(t, Counters{}, c.Counters())
	})

	t.Run("secondary solo priority", func(t *testing.T) {
		c, _ := newRecordingCore()
		enter(t, c, types.SecondarySolo)
		c.Request(types.PrimaryThrough)
		c.Request(types.PrimarySolo)
		c.OnTick()

		assert.Equal(t, types.PhasePrimarySolo, c.State().Phase)
		assert.True(t, c.Pending().Has(types.PrimaryThrough))
	})

	t.Run("solo caution colours", func(t *testing.T) {
		c, _ := newRecordingCore()
		enter(t, c, types.PrimarySolo)
		p, s := c.Colors()
		assert.Equal(t, types.ColorCaution, p)
		assert.Equal(t, types.ColorRed, s)
	})
}

func TestSecondaryThrough(t *testing.T) {
	t.Run("cap expiry forces primary through", func(t *testing.T) {
		c, log := newRecordingCore()
		c.state = State{Phase: types.PhaseSecondaryThrough}
		c.ctr = Counters{MaxGreen: 4, MaxGreenWait: 4}

		c.OnTick()

		assert.Equal(t, State{Phase: types.PhasePrimaryThrough, Clearing: true, Caution: true, From: types.PhaseSecondaryThrough}, c.State())
		assert.Zero(t, c.Counters().MaxGreen)
		assert.Zero(t, c.Counters().MaxGreenWait)
		require.Len(t, *log, 1)
		assert.True(t, (*log)[0].Forced)
	})

	t.Run("self extension bounded by cap", func(t *testing.T) {
		c, _ := newRecordingCore()
		enter(t, c, types.SecondaryThrough)
		steady := 1
		for c.State().Phase == types.PhaseSecondaryThrough {
			c.Request(types.SecondaryThrough)
			c.OnTick()
			steady++
			require.LessOrEqual(t, steady, 10)
		}
		assert.Equal(t, int(DefaultTiming().SecMax), steady)
		assert.Equal(t, types.PhasePrimaryThrough, c.State().Phase)
	})

	t.Run("priority primary solo over primary through over secondary solo", func(t *testing.T) {
		c, _ := newRecordingCore()
		enter(t, c, types.SecondaryThrough)
		c.Request(types.SecondarySolo)
		c.Request(types.PrimaryThrough)
		c.OnTick()

		assert.Equal(t, types.PhasePrimaryThrough, c.State().Phase)
		assert.True(t, c.State().Caution)
		assert.True(t, c.Pending().Has(types.SecondarySolo))
	})

	t.Run("released without demand after wait", func(t *testing.T) {
		c, log := newRecordingCore()
		enter(t, c, types.SecondaryThrough)
		c.OnTick()
		assert.Equal(t, types.PhasePrimaryThrough, c.State().Phase)
		assert.True(t, (*log)[len(*log)-1].Forced)
	})
}

func TestOnSensorEdge(t *testing.T) {
	t.Run("sets only the mapped movement", func(t *testing.T) {
		c := New(DefaultTiming(), nil)
		c.Request(types.PrimarySolo)
		c.OnSensorEdge(1 << 2)
		assert.Equal(t, types.PrimarySolo.Bit()|types.SecondaryThrough.Bit(), c.Pending().Load())
	})

	t.Run("custom line map", func(t *testing.T) {
		c := New(DefaultTiming(), nil)
		lm, err := LineMapFrom([]types.SensorLine{
			{Pin: 1, Movement: "secondary-solo"},
			{Pin: 2, Movement: "pt"},
		})
		require.NoError(t, err)
		c.SetLineMap(lm)
		c.OnSensorEdge(0b0011)
		assert.Equal(t, types.SecondarySolo.Bit()|types.PrimaryThrough.Bit(), c.Pending().Load())
	})

	t.Run("unknown movement rejected", func(t *testing.T) {
		_, err := LineMapFrom([]types.SensorLine{{Movement: "diagonal"}})
		assert.Error(t, err)
	})
}

func TestResetAndTiming(t *testing.T) {
	t.Run("reset returns to all red keeping requests", func(t *testing.T) {
		c, _ := newRecordingCore()
		enter(t, c, types.PrimarySolo)
		c.Request(types.SecondarySolo)
		c.Reset()

		assert.Equal(t, State{Phase: types.PhaseAllRed}, c.State())
		assert.Equal(t, Counters{}, c.Counters())
		assert.True(t, c.Pending().Has(types.SecondarySolo))
	})

	t.Run("staged timing waits for a phase boundary", func(t *testing.T) {
		c, _ := newRecordingCore()
		enter(t, c, types.PrimaryThrough)
		fast := DefaultTiming()
		fast.Reset = 1
		fast.MinGreen = 1
		c.SetTiming(fast)

		c.Request(types.SecondaryThrough)
		c.OnTick()
		assert.Equal(t, types.PhasePrimaryThrough, c.State().Phase, "old minimum still applies")
		tickN(c, 3)
		assert.Equal(t, types.PhaseSecondaryThrough, c.State().Phase)
		assert.Equal(t, uint16(1), c.Timing().MinGreen)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := TimingFrom(types.TimingConfig{SoloWait: 6, SoloMax: 5})
		assert.Error(t, err)
		_, err = TimingFrom(types.TimingConfig{Yellow: 4000})
		assert.Error(t, err)
		tm, err := TimingFrom(types.TimingConfig{Yellow: 3})
		require.NoError(t, err)
		assert.Equal(t, uint16(3), tm.Yellow)
		assert.Equal(t, uint16(5), tm.SecMax)
	})
}

// TestRandomisedInvariants drives the core with random demand and checks the
// timing guarantees on every transition.
func TestRandomisedInvariants(t *testing.T) {
	c, log := newRecordingCore()
	tm := c.Timing()
	rng := rand.New(rand.NewSource(7))

	steady := 0
	yellowLeft := 0
	checkAfter := false
	var yGroup types.Group

	for i := 0; i < 20000; i++ {
		if rng.Intn(3) == 0 {
			c.Request(types.Movement(rng.Intn(types.NumMovements)))
		}
		if rng.Intn(50) == 0 {
			c.OnSensorEdge(uint8(rng.Intn(16)))
		}
		n := len(*log)
		c.OnTick()
		st := c.State()

		require.LessOrEqual(t, int(st.Phase), int(types.PhaseSecondarySolo))
		if st.Phase == types.PhaseAllRed {
			require.False(t, st.Clearing)
		}

		if checkAfter {
			require.NotEqual(t, types.ColorYellow, colorOf(c, yGroup), "tick %d: yellow outlived clearance", i)
			checkAfter = false
		}

		if len(*log) > n {
			tr := (*log)[len(*log)-1]
			run := steady + 1
			switch tr.From {
			case types.PhasePrimaryThrough:
				require.GreaterOrEqual(t, run, int(tm.MinGreen), "tick %d", i)
			case types.PhasePrimarySolo, types.PhaseSecondarySolo:
				require.LessOrEqual(t, run, int(tm.SoloMax), "tick %d", i)
			case types.PhaseSecondaryThrough:
				require.LessOrEqual(t, run, int(tm.SecMax), "tick %d", i)
			}
			require.Equal(t, tr.From != types.PhaseAllRed, tr.Caution)
			require.NotEqual(t, tr.From, tr.To)
			if tr.Caution {
				yellowLeft = int(tm.Yellow)
				yGroup = groupOf(tr.From)
			}
			steady = 0
		} else if st.Phase != types.PhaseAllRed && !st.Clearing {
			steady++
		}

		if yellowLeft > 0 {
			require.Equal(t, types.ColorYellow, colorOf(c, yGroup), "tick %d", i)
			yellowLeft--
			checkAfter = yellowLeft == 0
		}
	}
	assert.NotEmpty(t, *log)
}
