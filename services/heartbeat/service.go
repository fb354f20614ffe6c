// Package heartbeat logs a periodic liveness line with the latest signal
// diagnostics and republishes it on "heartbeat".
package heartbeat

import (
	"context"
	"time"

	"signalcode-go/bus"
	"signalcode-go/services/internal/util"
	"signalcode-go/types"
	"signalcode-go/x/logx"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	topicSignalDiag      = bus.T("signal", "diag")
	TopicHeartbeat       = bus.T("heartbeat")
)

const DefaultInterval = 10 * time.Second

type Service struct {
	Interval time.Duration // initial interval; zero means DefaultInterval
	log      *logx.Logger
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)
	diagSub := conn.Subscribe(topicSignalDiag)
	defer conn.Unsubscribe(diagSub)

	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	start := time.Now()
	var (
		seq  uint32
		diag types.SignalDiag
	)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("heartbeat stopping")
			return
		case now := <-tick.C:
			seq++
			hb := types.Heartbeat{
				Seq:     seq,
				UptimeS: int64(now.Sub(start) / time.Second),
				Phase:   diag.Phase,
				Ticks:   diag.Ticks,
				Drops:   diag.ISRDrops,
			}
			s.log.Info("heartbeat", "seq", hb.Seq, "uptime_s", hb.UptimeS,
				"phase", hb.Phase, "ticks", hb.Ticks, "isr_drops", hb.Drops)
			conn.Publish(conn.NewMessage(TopicHeartbeat, hb, false))
		case msg := <-diagSub.Channel():
			if err := util.DecodeJSON(msg.Payload, &diag); err != nil {
				s.log.Debug("bad diag payload", "err", err)
			}
		case msg := <-cfgSub.Channel():
			var cfg types.HeartbeatConfig
			if err := util.DecodeJSON(msg.Payload, &cfg); err != nil || cfg.Interval <= 0 {
				s.log.Warn("heartbeat config rejected", "payload", msg.Payload, "err", err)
				continue
			}
			tick.Reset(time.Duration(cfg.Interval * float64(time.Second)))
			s.log.Info("heartbeat interval set", "seconds", cfg.Interval)
		}
	}
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	if s.log == nil {
		s.log = logx.New("heartbeat")
	}
	go s.serviceLoop(ctx, conn)
	return nil
}
