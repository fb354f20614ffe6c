// Package config publishes the device's embedded configuration. Each
// top-level key of the device document becomes a retained message on
// config/<key>, so services pick up their section whenever they subscribe.
package config

import (
	"context"

	"gopkg.in/yaml.v3"

	"signalcode-go/bus"
	"signalcode-go/errcode"
	"signalcode-go/x/logx"
)

const (
	serviceName  = "config"
	configPrefix = "config"
)

type ctxKey string

// CtxDeviceKey carries the device id in the start context.
const CtxDeviceKey ctxKey = "device"

// WithDevice returns ctx carrying device id.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, CtxDeviceKey, device)
}

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

type ConfigService struct {
	Name string
	log  *logx.Logger
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName, log: logx.New(serviceName)}
}

// Parse decodes a device document into its top-level sections.
func Parse(raw []byte) (map[string]any, error) {
	var m map[string]any
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, &errcode.E{C: errcode.InvalidPayload, Op: "config.parse", Err: err}
	}
	if m == nil {
		return nil, &errcode.E{C: errcode.InvalidPayload, Op: "config.parse", Msg: "document is not a mapping"}
	}
	return m, nil
}

// Publish reads the device config and publishes each section retained.
func (s *ConfigService) Publish(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return &errcode.E{C: errcode.InvalidParams, Op: "config.publish", Msg: "missing device id"}
	}
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return &errcode.E{C: errcode.NotReady, Op: "config.publish", Msg: "no embedded config for " + device}
	}
	m, err := Parse(raw)
	if err != nil {
		return err
	}
	for k, v := range m {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), v, true))
	}
	s.log.Info("config published", "device", device, "sections", len(m))
	return nil
}

// Start publishes in the background; failures are logged.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.Publish(ctx, conn); err != nil {
			s.log.Error("config publish failed", "err", err)
		}
	}()
}
