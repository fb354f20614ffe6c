// Package signal runs the intersection controller. One goroutine owns the
// arbitration core: it applies configuration, steps the core on every tick,
// answers control requests and publishes state. Sensor capture and lamp
// rendering run in their own goroutines and meet the core only through its
// atomic pending set and colour word.
package signal

import (
	"context"

	"github.com/google/uuid"

	"signalcode-go/bus"
	"signalcode-go/errcode"
	"signalcode-go/services/internal/util"
	"signalcode-go/services/signal/internal/arbiter"
	"signalcode-go/services/signal/internal/latch"
	"signalcode-go/services/signal/internal/pins"
	"signalcode-go/services/signal/internal/render"
	"signalcode-go/services/signal/internal/ticksource"
	"signalcode-go/types"
	"signalcode-go/x/logx"
	"signalcode-go/x/mathx"
	"signalcode-go/x/timex"
)

// MaxManualTicks bounds one tick control request.
const MaxManualTicks = 3600

// Lamps and Aspect let callers outside this package supply a lamp sink.
type (
	Lamps  = render.Lamps
	Aspect = render.Aspect
)

type Option func(*Service)

func WithPinFactory(f pins.PinFactory) Option { return func(s *Service) { s.pf = f } }
func WithI2CFactory(f pins.I2CFactory) Option { return func(s *Service) { s.i2c = f } }
func WithClaims(c *pins.Claims) Option        { return func(s *Service) { s.claims = c } }

// WithManualTicks disables the timer; ticks come only from tick controls.
func WithManualTicks() Option { return func(s *Service) { s.manual = true } }

// WithConfig replaces the configuration applied at start.
func WithConfig(cfg types.SignalConfig) Option { return func(s *Service) { s.cfg = cfg } }

// WithLamps renders onto l regardless of the configured backend.
func WithLamps(l Lamps, hasArrow bool) Option {
	return func(s *Service) { s.extLamps, s.extArrow = l, hasArrow }
}

type Service struct {
	pf       pins.PinFactory
	i2c      pins.I2CFactory
	claims   *pins.Claims
	manual   bool
	extLamps render.Lamps
	extArrow bool

	conn  *bus.Connection
	log   *logx.Logger
	cfg   types.SignalConfig
	core  *arbiter.Core
	latch *latch.Latch
	src   *ticksource.Source
	hw    hardware
	live  bool // hardware for cfg is attached

	transitions uint32
	lastDrops   uint32
	tickCancel  context.CancelFunc
}

func New(opts ...Option) *Service {
	s := &Service{cfg: types.DefaultSignalConfig(), log: logx.New("signal")}
	for _, o := range opts {
		o(s)
	}
	if s.pf == nil {
		s.pf = pins.DefaultPinFactory()
	}
	if s.i2c == nil {
		s.i2c = pins.DefaultI2CFactory()
	}
	if s.claims == nil {
		s.claims = &pins.Claims{}
	}
	s.core = arbiter.New(arbiter.DefaultTiming(), nil)
	s.core.OnTransition = s.onTransition
	s.latch = latch.New(s.core, 0)
	return s
}

// Colors exposes the rendered colours for in-process viewers.
func (s *Service) Colors() (primary, secondary types.Color) { return s.core.Colors() }

// Start applies the initial configuration and runs the service loop until
// ctx ends. The initial configuration must be valid.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	s.conn = conn
	if err := s.apply(ctx, s.cfg); err != nil {
		return err
	}
	// Subscribed before returning so a request sent right after Start is queued.
	cfgSub := conn.Subscribe(topicConfigSignal)
	ctlSub := conn.Subscribe(topicControlAll)
	go s.latch.Run(ctx)
	go s.loop(ctx, cfgSub, ctlSub)
	return nil
}

func (s *Service) loop(ctx context.Context, cfgSub, ctlSub *bus.Subscription) {
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctlSub)

	s.publishStatus("ready", "running", nil)
	s.publish()
	s.log.Info("signal service started", "manual", s.manual, "tick_ms", s.cfg.TickMS)

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			s.publishStatus("stopped", "context_cancelled", nil)
			s.log.Info("signal service stopped")
			return

		case <-s.src.C():
			s.step()

		case msg := <-cfgSub.Channel():
			cfg := types.DefaultSignalConfig()
			if err := util.DecodeJSON(msg.Payload, &cfg); err != nil {
				err = &errcode.E{C: errcode.InvalidPayload, Op: "signal.config", Err: err}
				s.log.Warn("config rejected", "err", err)
				s.publishStatus("error", "config_decode_failed", err)
				continue
			}
			if err := s.apply(ctx, cfg); err != nil {
				s.log.Warn("config rejected", "err", err)
				s.publishStatus("error", "apply_config_failed", err)
				continue
			}
			s.publishStatus("ready", "configured", nil)

		case msg := <-ctlSub.Channel():
			s.control(msg)
		}
	}
}

// step advances the core once and publishes the result.
func (s *Service) step() {
	s.core.OnTick()
	if st := s.latch.Stats(); st.Coalesced != s.lastDrops {
		s.log.Warn("sensor wake-ups coalesced", "total", st.Coalesced, "new", st.Coalesced-s.lastDrops)
		s.lastDrops = st.Coalesced
	}
	s.publish()
}

func (s *Service) onTransition(t arbiter.Transition) {
	s.transitions++
	ev := types.Transition{
		ID:      uuid.New().String(),
		Tick:    t.Tick,
		From:    t.From,
		To:      t.To,
		Caution: t.Caution,
		Forced:  t.Forced,
		TS:      timex.NowMs(),
	}
	s.log.Debug("transition", "from", t.From, "to", t.To, "caution", t.Caution, "forced", t.Forced, "tick", t.Tick)
	s.conn.Publish(s.conn.NewMessage(TopicTransition, ev, false))
}

func (s *Service) snapshot() types.SignalState {
	snap := s.core.Snapshot()
	return types.SignalState{
		Phase:     snap.State.Phase,
		Clearing:  snap.State.Clearing,
		Caution:   snap.State.Caution,
		From:      snap.State.From,
		Primary:   snap.Primary,
		Secondary: snap.Secondary,
		Pending:   snap.Pending,
		Tick:      snap.Ticks,
		TS:        timex.NowMs(),
	}
}

func (s *Service) publish() {
	st := s.snapshot()
	ls := s.latch.Stats()
	s.conn.Publish(s.conn.NewMessage(TopicState, st, true))
	s.conn.Publish(s.conn.NewMessage(TopicDiag, types.SignalDiag{
		Phase:       st.Phase,
		Ticks:       st.Tick,
		Edges:       ls.Edges,
		ISRDrops:    ls.Coalesced,
		Pending:     st.Pending,
		Transitions: s.transitions,
		TS:          st.TS,
	}, true))
}

func (s *Service) publishStatus(level, status string, err error) {
	payload := map[string]any{"level": level, "status": status, "ts_ms": timex.NowMs()}
	if err != nil {
		payload["error"] = err.Error()
		payload["code"] = string(errcode.Of(err))
	}
	s.conn.Publish(s.conn.NewMessage(TopicStatus, payload, true))
}

// ---- Controls ----

func (s *Service) control(msg *bus.Message) {
	verb, _ := msg.Topic.At(msg.Topic.Len() - 1).(string)
	switch verb {
	case ctlSense:
		m, err := parseSense(msg.Payload)
		if err != nil {
			s.conn.Reply(msg, types.Fail(err), false)
			return
		}
		s.core.Request(m)
		s.conn.Reply(msg, types.Ok(map[string]any{"pending": s.core.Pending().Load()}), false)

	case ctlReset:
		s.core.Reset()
		s.log.Info("core reset")
		s.publish()
		s.conn.Reply(msg, types.Ok(s.snapshot()), false)

	case ctlSnapshot:
		s.conn.Reply(msg, types.Ok(s.snapshot()), false)

	case ctlTick:
		if !s.src.Manual() {
			s.conn.Reply(msg, types.Fail(&errcode.E{C: errcode.Unsupported, Op: "signal.tick", Msg: "tick source is not manual"}), false)
			return
		}
		req := types.TickRequest{N: 1}
		if err := util.DecodeJSON(msg.Payload, &req); err != nil {
			s.conn.Reply(msg, types.Fail(&errcode.E{C: errcode.InvalidPayload, Op: "signal.tick", Err: err}), false)
			return
		}
		if !mathx.Between(req.N, 1, MaxManualTicks) {
			s.conn.Reply(msg, types.Fail(&errcode.E{C: errcode.InvalidParams, Op: "signal.tick", Msg: "n out of range"}), false)
			return
		}
		for i := 0; i < req.N; i++ {
			s.src.Fire()
			s.step()
		}
		s.conn.Reply(msg, types.Ok(s.snapshot()), false)

	default:
		s.conn.Reply(msg, types.Fail(&errcode.E{C: errcode.InvalidTopic, Op: "signal.control", Msg: verb}), false)
	}
}

// parseSense accepts a bare movement name or a SenseRequest document.
func parseSense(p any) (types.Movement, error) {
	switch v := p.(type) {
	case string:
		return types.ParseMovement(v)
	case types.Movement:
		if !v.Valid() {
			return 0, &errcode.E{C: errcode.UnknownMovement, Op: "signal.sense"}
		}
		return v, nil
	}
	var req types.SenseRequest
	if err := util.DecodeJSON(p, &req); err != nil {
		return 0, &errcode.E{C: errcode.InvalidPayload, Op: "signal.sense", Err: err}
	}
	return types.ParseMovement(req.Movement)
}
