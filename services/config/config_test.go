package config

import (
	"context"
	"testing"
	"time"

	"signalcode-go/bus"
	"signalcode-go/errcode"
	"signalcode-go/services/internal/util"
	"signalcode-go/types"
)

func TestConfig_PublishEmbedded_RetainedPerKey(t *testing.T) {
	oldLookup := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(device string) ([]byte, bool) {
		if device != "pico" {
			return nil, false
		}
		return []byte("mode: dev\ndebug: true\nregion:\n  code: eu\n"), true
	}
	t.Cleanup(func() { EmbeddedConfigLookup = oldLookup })

	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")
	svc := NewConfigService()

	if err := svc.Publish(WithDevice(context.Background(), "pico"), conn); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// Retained messages arrive on subscribe.
	sub := conn.Subscribe(bus.T(configPrefix, "#"))
	got := map[string]any{}
	deadline := time.After(500 * time.Millisecond)
	for len(got) < 3 {
		select {
		case m := <-sub.Channel():
			if m.Topic.Len() != 2 || m.Topic.At(0) != configPrefix {
				t.Fatalf("unexpected topic %v", m.Topic)
			}
			if !m.Retained {
				t.Fatalf("%v not retained", m.Topic)
			}
			key, ok := m.Topic.At(1).(string)
			if !ok {
				t.Fatalf("topic[1] type %T", m.Topic.At(1))
			}
			got[key] = m.Payload
		case <-deadline:
			t.Fatalf("timed out with %v", got)
		}
	}

	if s, ok := got["mode"].(string); !ok || s != "dev" {
		t.Fatalf("mode = %#v", got["mode"])
	}
	if v, ok := got["debug"].(bool); !ok || !v {
		t.Fatalf("debug = %#v", got["debug"])
	}
	region, ok := got["region"].(map[string]any)
	if !ok || region["code"] != "eu" {
		t.Fatalf("region = %#v", got["region"])
	}
}

func TestConfig_Publish_MissingDevice(t *testing.T) {
	conn := bus.NewBus(4).NewConnection("test-missing-device")
	err := NewConfigService().Publish(context.Background(), conn)
	if errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("err = %v", err)
	}
}

func TestConfig_Publish_NoConfigFound(t *testing.T) {
	conn := bus.NewBus(4).NewConnection("test-no-config")
	err := NewConfigService().Publish(WithDevice(context.Background(), "unknown-device"), conn)
	if errcode.Of(err) != errcode.NotReady {
		t.Fatalf("err = %v", err)
	}
}

func TestParseRejectsNonMapping(t *testing.T) {
	for _, doc := range []string{"- a\n- b\n", "", "a: [1, 2"} {
		if _, err := Parse([]byte(doc)); errcode.Of(err) != errcode.InvalidPayload {
			t.Errorf("Parse(%q) err = %v", doc, err)
		}
	}
}

// Every embedded document must decode into the typed sections the
// services expect.
func TestEmbeddedDocumentsDecode(t *testing.T) {
	for device, raw := range embeddedConfigs {
		m, err := Parse(raw)
		if err != nil {
			t.Fatalf("%s: %v", device, err)
		}
		sc := types.DefaultSignalConfig()
		if err := util.DecodeJSON(m["signal"], &sc); err != nil {
			t.Fatalf("%s signal: %v", device, err)
		}
		if sc.TickMS != 1000 {
			t.Errorf("%s tick_ms = %d", device, sc.TickMS)
		}
		var hb types.HeartbeatConfig
		if err := util.DecodeJSON(m["heartbeat"], &hb); err != nil || hb.Interval <= 0 {
			t.Errorf("%s heartbeat = %+v err=%v", device, hb, err)
		}
	}

	m, _ := Parse(embeddedConfigs["pico-expander"])
	sc := types.DefaultSignalConfig()
	_ = util.DecodeJSON(m["signal"], &sc)
	if sc.Lamps.Backend != "pcf8574" || sc.Lamps.I2CAddr != 0x20 || !sc.Sensors.Invert {
		t.Fatalf("expander config = %+v", sc)
	}
	// Sections absent from the document keep defaults.
	if sc.Timing.MinGreen != types.DefaultSignalConfig().Timing.MinGreen {
		t.Fatalf("timing default lost: %+v", sc.Timing)
	}
}
