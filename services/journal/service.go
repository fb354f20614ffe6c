//go:build !rp2040 && !rp2350

package journal

import (
	"context"

	"signalcode-go/bus"
	"signalcode-go/errcode"
	"signalcode-go/services/internal/util"
	"signalcode-go/services/signal"
	"signalcode-go/types"
	"signalcode-go/x/logx"
)

var topicConfigJournal = bus.T("config", "journal")

// OpenConfigured opens the store named by the retained config/journal
// section. It returns nil without error when no section or path is set.
func OpenConfigured(ctx context.Context, conn *bus.Connection) (*Store, error) {
	sub := conn.Subscribe(topicConfigJournal)
	defer conn.Unsubscribe(sub)

	var msg *bus.Message
	select {
	case msg = <-sub.Channel():
	default:
		return nil, nil
	}
	var cfg types.JournalConfig
	if err := util.DecodeJSON(msg.Payload, &cfg); err != nil {
		return nil, &errcode.E{C: errcode.InvalidPayload, Op: "journal.config", Err: err}
	}
	if cfg.Path == "" {
		return nil, nil
	}
	return Open(ctx, cfg.Path)
}

// QueueDepth is the journal's own subscription queue. One tick makes at most
// one transition, so a full manual tick burst fits without loss.
const QueueDepth = 4096

// Run records every transition event until ctx ends. Events already queued
// when ctx ends are still written.
func (s *Store) Run(ctx context.Context, conn *bus.Connection) {
	s.consume(ctx, conn, conn.SubscribeDepth(signal.TopicTransition, QueueDepth))
}

// Start subscribes before returning and records in the background. The
// returned channel closes when recording has stopped.
func (s *Store) Start(ctx context.Context, conn *bus.Connection) <-chan struct{} {
	sub := conn.SubscribeDepth(signal.TopicTransition, QueueDepth)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.consume(ctx, conn, sub)
	}()
	return done
}

func (s *Store) consume(ctx context.Context, conn *bus.Connection, sub *bus.Subscription) {
	log := logx.New("journal").With("boot_id", s.bootID)
	defer conn.Unsubscribe(sub)

	log.Info("journal recording")
	var dropped uint32
	defer func() { s.noteDrops(log, sub, &dropped) }()
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case msg, ok := <-sub.Channel():
					if !ok {
						return
					}
					s.record(context.Background(), log, msg)
				default:
					return
				}
			}
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			s.record(ctx, log, msg)
			s.noteDrops(log, sub, &dropped)
		}
	}
}

// noteDrops logs transitions the bus discarded since the last check.
func (s *Store) noteDrops(log *logx.Logger, sub *bus.Subscription, seen *uint32) {
	if d := sub.Dropped(); d != *seen {
		log.Error("transitions lost before journaling", "new", d-*seen, "total", d)
		s.lost.Store(d)
		*seen = d
	}
}

// Lost counts transitions the journal never saw because its queue overflowed.
func (s *Store) Lost() uint32 { return s.lost.Load() }

func (s *Store) record(ctx context.Context, log *logx.Logger, msg *bus.Message) {
	var ev types.Transition
	if err := util.DecodeJSON(msg.Payload, &ev); err != nil {
		log.Warn("bad transition payload", "err", err)
		return
	}
	if err := s.Record(ctx, ev); err != nil {
		log.Error("journal write failed", "id", ev.ID, "err", err)
	}
}
