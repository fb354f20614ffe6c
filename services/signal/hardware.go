package signal

import (
	"context"
	"strconv"
	"time"

	"signalcode-go/errcode"
	"signalcode-go/services/signal/internal/arbiter"
	"signalcode-go/services/signal/internal/latch"
	"signalcode-go/services/signal/internal/pins"
	"signalcode-go/services/signal/internal/render"
	"signalcode-go/services/signal/internal/ticksource"
	"signalcode-go/types"
	"signalcode-go/x/mathx"
)

// Lamp backends.
const (
	BackendGPIO    = "gpio"
	BackendPCF8574 = "pcf8574"
	BackendNone    = "none"
)

const (
	ownerSensors = "sensors"
	ownerLamps   = render.ClaimOwner

	minTickMS = 10
	maxTickMS = 60_000
)

// hardware is the running sensor, lamp and clock plumbing.
type hardware struct {
	renderStop context.CancelFunc
	renderDone chan struct{}
	renderer   *render.Renderer
}

// apply validates cfg in full, including every pin it names, then rebuilds
// the sensor and lamp hardware. Timing, line map, clock and s.cfg change only
// once the hardware is up. If the rebuild fails the previous hardware is
// restored and the running config stays in force.
func (s *Service) apply(ctx context.Context, cfg types.SignalConfig) error {
	timing, err := arbiter.TimingFrom(cfg.Timing)
	if err != nil {
		return err
	}
	lm, err := arbiter.LineMapFrom(cfg.Sensors.Lines)
	if err != nil {
		return err
	}
	if cfg.TickMS == 0 {
		cfg.TickMS = int(ticksource.DefaultPeriod / time.Millisecond)
	}
	if !mathx.Between(cfg.TickMS, minTickMS, maxTickMS) {
		return &errcode.E{C: errcode.InvalidParams, Op: "signal.apply", Msg: "tick_ms out of range"}
	}
	if err := s.preflight(cfg); err != nil {
		return err
	}

	if err := s.rebuild(ctx, cfg); err != nil {
		if s.live {
			if rerr := s.rebuild(ctx, s.cfg); rerr != nil {
				s.log.Error("previous hardware not restored", "err", rerr)
			}
		}
		return err
	}

	s.core.SetTiming(timing)
	s.core.SetLineMap(lm)
	s.latch.SetDebounce(time.Duration(cfg.Sensors.DebounceMS) * time.Millisecond)
	s.restartTicks(ctx, time.Duration(cfg.TickMS)*time.Millisecond)
	s.cfg = cfg
	s.live = true
	s.log.Info("config applied",
		"tick_ms", cfg.TickMS, "lamps", cfg.Lamps.Backend, "sensors", s.latch.Lines(),
		"min_green", timing.MinGreen, "solo_max", timing.SoloMax, "sec_max", timing.SecMax)
	return nil
}

// preflight resolves every pin and bus cfg names without claiming or
// configuring anything. A pin may serve one sensor line, or lamps only.
func (s *Service) preflight(cfg types.SignalConfig) error {
	sensors := make(map[int]bool, len(cfg.Sensors.Lines))
	for _, l := range cfg.Sensors.Lines {
		if l.Pin == types.NoPin {
			continue
		}
		if _, err := pins.Input(s.pf, l.Pin); err != nil {
			return err
		}
		if sensors[l.Pin] {
			return &errcode.E{C: errcode.PinInUse, Op: "signal.apply", Msg: "gp" + strconv.Itoa(l.Pin) + " on two sensor lines"}
		}
		sensors[l.Pin] = true
	}

	if s.extLamps != nil {
		return nil
	}
	switch cfg.Lamps.Backend {
	case BackendNone, "":
	case BackendGPIO:
		for _, g := range []types.LampPins{cfg.Lamps.Primary, cfg.Lamps.Secondary} {
			for _, n := range []int{g.Red, g.Yellow, g.Green, g.Arrow, g.Enable} {
				if n == types.NoPin {
					continue
				}
				if _, ok := s.pf.ByNumber(n); !ok {
					return &errcode.E{C: errcode.UnknownPin, Op: "signal.apply", Msg: "lamp gp" + strconv.Itoa(n)}
				}
				if sensors[n] {
					return &errcode.E{C: errcode.PinInUse, Op: "signal.apply", Msg: "gp" + strconv.Itoa(n) + " is both sensor and lamp"}
				}
			}
		}
	case BackendPCF8574:
		if _, ok := s.i2c.ByID(i2cBusID(cfg.Lamps)); !ok {
			return &errcode.E{C: errcode.NotReady, Op: "signal.apply", Msg: "no i2c bus " + i2cBusID(cfg.Lamps)}
		}
	default:
		return &errcode.E{C: errcode.Unsupported, Op: "signal.apply", Msg: "lamp backend " + cfg.Lamps.Backend}
	}
	return nil
}

// rebuild swaps the attached sensors and the renderer over to cfg. Lamps go
// first so a pin moving from lamps to sensors is free when sensors claim it.
func (s *Service) rebuild(ctx context.Context, cfg types.SignalConfig) error {
	s.stopLamps()
	if err := s.attachSensors(cfg.Sensors); err != nil {
		return err
	}
	return s.startLamps(ctx, cfg.Lamps)
}

func i2cBusID(cfg types.LampConfig) string {
	if cfg.I2CBus == "" {
		return "i2c0"
	}
	return cfg.I2CBus
}

func (s *Service) restartTicks(ctx context.Context, period time.Duration) {
	if s.src != nil && (s.manual || s.src.Period() == period) {
		return
	}
	if s.tickCancel != nil {
		s.tickCancel()
	}
	if s.manual {
		s.src = ticksource.NewManual()
		return
	}
	s.src = ticksource.New(period)
	tctx, cancel := context.WithCancel(ctx)
	s.tickCancel = cancel
	go s.src.Run(tctx)
}

// attachSensors replaces the latch lines. Lines with pin -1 are virtual and
// only receive requests through sense controls.
func (s *Service) attachSensors(cfg types.SensorConfig) error {
	s.latch.Detach()
	s.claims.ReleaseOwner(ownerSensors)

	pull := pins.ParsePull(cfg.Pull)
	if cfg.Pull == "" && cfg.Invert {
		pull = pins.PullUp
	}
	var lines []latch.Line
	for i, l := range cfg.Lines {
		if l.Pin == types.NoPin {
			continue
		}
		if err := s.claims.Claim(l.Pin, ownerSensors); err != nil {
			return err
		}
		p, err := pins.Input(s.pf, l.Pin)
		if err != nil {
			return err
		}
		lines = append(lines, latch.Line{Index: i, Pin: p})
	}
	return s.latch.Attach(lines, pull, pins.EdgeBoth)
}

// startLamps stops any running renderer and starts one for cfg.
func (s *Service) startLamps(ctx context.Context, cfg types.LampConfig) error {
	s.stopLamps()

	lamps, hasArrow := s.extLamps, s.extArrow
	if lamps == nil {
		var err error
		switch cfg.Backend {
		case BackendNone, "":
			return nil
		case BackendGPIO:
			var gl *render.GPIOLamps
			gl, err = render.NewGPIOLamps(s.pf, s.claims, cfg.Primary, cfg.Secondary)
			if gl != nil {
				lamps, hasArrow = gl, gl.HasArrow()
			}
		case BackendPCF8574:
			id := i2cBusID(cfg)
			b, ok := s.i2c.ByID(id)
			if !ok {
				return &errcode.E{C: errcode.NotReady, Op: "signal.lamps", Msg: "no i2c bus " + id}
			}
			lamps, hasArrow = render.NewPCF8574(b, uint16(cfg.I2CAddr), cfg.ActiveLow), true
		}
		if err != nil {
			s.claims.ReleaseOwner(ownerLamps)
			return err
		}
	}

	r := render.New(s.core, lamps, render.Options{
		RefreshHz: cfg.RefreshHz,
		Gap:       time.Duration(cfg.GapUS) * time.Microsecond,
		HasArrow:  hasArrow,
	})
	rctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.hw = hardware{renderStop: cancel, renderDone: done, renderer: r}
	go func() {
		defer close(done)
		r.Run(rctx)
	}()
	return nil
}

func (s *Service) stopLamps() {
	if s.hw.renderStop != nil {
		s.hw.renderStop()
		<-s.hw.renderDone
	}
	s.hw = hardware{}
	s.claims.ReleaseOwner(ownerLamps)
}

func (s *Service) shutdown() {
	s.stopLamps()
	s.latch.Detach()
	s.claims.ReleaseOwner(ownerSensors)
	if s.tickCancel != nil {
		s.tickCancel()
	}
}
