package types

// Signal configuration supplied on topic "config/signal".

type SignalConfig struct {
	TickMS  int          `json:"tick_ms,omitempty"`
	Timing  TimingConfig `json:"timing"`
	Sensors SensorConfig `json:"sensors"`
	Lamps   LampConfig   `json:"lamps"`
}

// TimingConfig holds phase durations in ticks.
type TimingConfig struct {
	Yellow   int `json:"yellow"`
	Reset    int `json:"reset"`
	MinGreen int `json:"min_green"`
	SoloWait int `json:"solo_wait"`
	SoloMax  int `json:"solo_max"`
	SecWait  int `json:"sec_wait"`
	SecMax   int `json:"sec_max"`
}

type SensorConfig struct {
	Lines      []SensorLine `json:"lines"`
	DebounceMS int          `json:"debounce_ms,omitempty"`
	Invert     bool         `json:"invert,omitempty"`
	Pull       string       `json:"pull,omitempty"` // "up", "down", "none"
}

// SensorLine binds latch line i (its index in Lines) to a pin and movement.
type SensorLine struct {
	Pin      int    `json:"pin"`
	Movement string `json:"movement"`
}

type LampConfig struct {
	Backend   string   `json:"backend"` // "gpio", "pcf8574", "none"
	RefreshHz int      `json:"refresh_hz,omitempty"`
	GapUS     int      `json:"gap_us,omitempty"`
	Primary   LampPins `json:"primary"`
	Secondary LampPins `json:"secondary"`
	I2CBus    string   `json:"i2c_bus,omitempty"`
	I2CAddr   int      `json:"i2c_addr,omitempty"`
	ActiveLow bool     `json:"active_low,omitempty"` // expander sinks lamp current
}

// LampPins lists GPIO numbers for one group; -1 marks an absent lamp.
type LampPins struct {
	Red    int `json:"red"`
	Yellow int `json:"yellow"`
	Green  int `json:"green"`
	Arrow  int `json:"arrow"`
	Enable int `json:"enable"`
}

// NoPin marks an unused lamp or enable line.
const NoPin = -1

// DefaultSignalConfig returns the stock intersection wiring for a Pico.
func DefaultSignalConfig() SignalConfig {
	return SignalConfig{
		TickMS: 1000,
		Timing: TimingConfig{
			Yellow: 2, Reset: 3, MinGreen: 5,
			SoloWait: 2, SoloMax: 5,
			SecWait: 2, SecMax: 5,
		},
		Sensors: SensorConfig{
			Lines: []SensorLine{
				{Pin: 10, Movement: "primary-through"},
				{Pin: 11, Movement: "primary-solo"},
				{Pin: 12, Movement: "secondary-through"},
				{Pin: 13, Movement: "secondary-solo"},
			},
			Pull: "down",
		},
		Lamps: LampConfig{
			Backend:   "gpio",
			RefreshHz: 200,
			GapUS:     200,
			Primary:   LampPins{Red: 2, Yellow: 3, Green: 4, Arrow: NoPin, Enable: 6},
			Secondary: LampPins{Red: 2, Yellow: 3, Green: 4, Arrow: NoPin, Enable: 7},
			I2CAddr:   0x20,
		},
	}
}

// HeartbeatConfig is supplied on topic "config/heartbeat".
type HeartbeatConfig struct {
	Interval float64 `json:"interval"` // seconds
}

// JournalConfig is supplied on topic "config/journal" (host builds only).
type JournalConfig struct {
	Path string `json:"path"`
}
