package heartbeat

import (
	"context"
	"testing"
	"time"

	"signalcode-go/bus"
	"signalcode-go/types"
)

func nextBeat(t *testing.T, sub *bus.Subscription, within time.Duration) types.Heartbeat {
	t.Helper()
	select {
	case m := <-sub.Channel():
		hb, ok := m.Payload.(types.Heartbeat)
		if !ok {
			t.Fatalf("payload %T", m.Payload)
		}
		return hb
	case <-time.After(within):
		t.Fatal("no heartbeat")
	}
	return types.Heartbeat{}
}

func TestHeartbeatCarriesDiag(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("hb")
	probe := b.NewConnection("probe")
	sub := probe.Subscribe(TopicHeartbeat)

	probe.Publish(probe.NewMessage(topicSignalDiag,
		types.SignalDiag{Phase: types.PhasePrimaryThrough, Ticks: 42, ISRDrops: 1}, true))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = (&Service{Interval: 20 * time.Millisecond}).Start(ctx, conn)

	// The first beat may race the retained diag; the second cannot.
	nextBeat(t, sub, time.Second)
	hb := nextBeat(t, sub, time.Second)
	if hb.Seq != 2 || hb.Ticks != 42 || hb.Phase != types.PhasePrimaryThrough || hb.Drops != 1 {
		t.Fatalf("heartbeat = %+v", hb)
	}
}

func TestHeartbeatIntervalFromConfig(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("hb")
	probe := b.NewConnection("probe")
	sub := probe.Subscribe(TopicHeartbeat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = (&Service{Interval: time.Hour}).Start(ctx, conn)

	// Invalid documents are ignored; the hour-long interval stays.
	probe.Publish(probe.NewMessage(topicConfigHeartbeat, map[string]any{"interval": -1}, true))
	select {
	case <-sub.Channel():
		t.Fatal("unexpected beat")
	case <-time.After(50 * time.Millisecond):
	}

	probe.Publish(probe.NewMessage(topicConfigHeartbeat, map[string]any{"interval": 0.02}, true))
	nextBeat(t, sub, time.Second)
}
