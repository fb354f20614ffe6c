package main

import (
	"context"
	"fmt"
	"time"

	"signalcode-go/bus"
	"signalcode-go/services/heartbeat"
	"signalcode-go/services/journal"
	"signalcode-go/services/signal"
	"signalcode-go/script"
)

// stack is one running simulator: bus, signal service and its companions.
type stack struct {
	bus     *bus.Bus
	signal  *signal.Service
	runner  *script.Runner
	journal *journal.Store

	stopJournal context.CancelFunc
	journalDone <-chan struct{}
}

func startStack(ctx context.Context, cfg *SimConfig, opts ...signal.Option) (*stack, error) {
	b := bus.NewBus(64)
	if cfg.Manual {
		opts = append(opts, signal.WithManualTicks())
	}
	opts = append(opts, signal.WithConfig(cfg.SignalConfig()))
	svc := signal.New(opts...)
	if err := svc.Start(ctx, b.NewConnection("signal")); err != nil {
		return nil, fmt.Errorf("start signal service: %w", err)
	}
	st := &stack{bus: b, signal: svc, runner: script.New(b.NewConnection("script"))}

	if cfg.Heartbeat > 0 {
		hb := &heartbeat.Service{Interval: time.Duration(cfg.Heartbeat * float64(time.Second))}
		_ = hb.Start(ctx, b.NewConnection("heartbeat"))
	}
	if cfg.Journal.Path != "" {
		store, err := journal.Open(ctx, cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		jctx, cancel := context.WithCancel(ctx)
		st.journal, st.stopJournal = store, cancel
		st.journalDone = store.Start(jctx, b.NewConnection("journal"))
	}
	return st, nil
}

// Close stops the journal after it has recorded every queued event.
func (s *stack) Close() error {
	if s.journal == nil {
		return nil
	}
	s.stopJournal()
	<-s.journalDone
	return s.journal.Close()
}
