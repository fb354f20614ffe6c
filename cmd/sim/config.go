package main

import (
	"github.com/spf13/viper"

	"signalcode-go/services/signal"
	"signalcode-go/types"
)

// SimConfig is the simulator's file/env configuration.
type SimConfig struct {
	TickMS    int           `mapstructure:"tick_ms"`
	Manual    bool          `mapstructure:"manual"`
	Timing    TimingConfig  `mapstructure:"timing"`
	Heartbeat float64       `mapstructure:"heartbeat"` // seconds; 0 disables
	Log       LogConfig     `mapstructure:"log"`
	Journal   JournalConfig `mapstructure:"journal"`
}

type TimingConfig struct {
	Yellow   int `mapstructure:"yellow"`
	Reset    int `mapstructure:"reset"`
	MinGreen int `mapstructure:"min_green"`
	SoloWait int `mapstructure:"solo_wait"`
	SoloMax  int `mapstructure:"solo_max"`
	SecWait  int `mapstructure:"sec_wait"`
	SecMax   int `mapstructure:"sec_max"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// DefaultConfig mirrors the firmware timing with a 1 s clock.
func DefaultConfig() *SimConfig {
	t := types.DefaultSignalConfig().Timing
	return &SimConfig{
		TickMS: 1000,
		Timing: TimingConfig{
			Yellow: t.Yellow, Reset: t.Reset, MinGreen: t.MinGreen,
			SoloWait: t.SoloWait, SoloMax: t.SoloMax,
			SecWait: t.SecWait, SecMax: t.SecMax,
		},
		Heartbeat: 0,
		Log:       LogConfig{Level: "WARN"},
	}
}

// SetDefaults registers every key so env overrides resolve without a file.
func SetDefaults() {
	d := DefaultConfig()
	viper.SetDefault("tick_ms", d.TickMS)
	viper.SetDefault("manual", d.Manual)
	viper.SetDefault("heartbeat", d.Heartbeat)

	viper.SetDefault("timing.yellow", d.Timing.Yellow)
	viper.SetDefault("timing.reset", d.Timing.Reset)
	viper.SetDefault("timing.min_green", d.Timing.MinGreen)
	viper.SetDefault("timing.solo_wait", d.Timing.SoloWait)
	viper.SetDefault("timing.solo_max", d.Timing.SoloMax)
	viper.SetDefault("timing.sec_wait", d.Timing.SecWait)
	viper.SetDefault("timing.sec_max", d.Timing.SecMax)

	viper.SetDefault("log.level", d.Log.Level)
	viper.SetDefault("log.json", d.Log.JSON)
	viper.SetDefault("journal.path", d.Journal.Path)
}

// LoadConfig unmarshals viper state, falling back to defaults on error.
func LoadConfig() *SimConfig {
	var cfg SimConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return DefaultConfig()
	}
	return &cfg
}

// SignalConfig converts to the service document. Lamps are headless; the
// TUI attaches its own sink.
func (c *SimConfig) SignalConfig() types.SignalConfig {
	sc := types.DefaultSignalConfig()
	sc.TickMS = c.TickMS
	sc.Timing = types.TimingConfig{
		Yellow: c.Timing.Yellow, Reset: c.Timing.Reset, MinGreen: c.Timing.MinGreen,
		SoloWait: c.Timing.SoloWait, SoloMax: c.Timing.SoloMax,
		SecWait: c.Timing.SecWait, SecMax: c.Timing.SecMax,
	}
	sc.Lamps.Backend = signal.BackendNone
	return sc
}
