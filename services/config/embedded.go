package config

// Per-device documents. Key is the device id placed in the start context.

const cfgPico = `
signal:
  tick_ms: 1000
  timing:
    yellow: 2
    reset: 3
    min_green: 5
    solo_wait: 2
    solo_max: 5
    sec_wait: 2
    sec_max: 5
  sensors:
    pull: down
    debounce_ms: 50
    lines:
      - {pin: 10, movement: primary-through}
      - {pin: 11, movement: primary-solo}
      - {pin: 12, movement: secondary-through}
      - {pin: 13, movement: secondary-solo}
  lamps:
    backend: gpio
    refresh_hz: 200
    gap_us: 200
    primary:   {red: 2, yellow: 3, green: 4, arrow: -1, enable: 6}
    secondary: {red: 2, yellow: 3, green: 4, arrow: -1, enable: 7}
heartbeat:
  interval: 10
`

// The expander board has arrow lamps on bits 6 and 7.
const cfgPicoExpander = `
signal:
  tick_ms: 1000
  sensors:
    pull: up
    invert: true
    lines:
      - {pin: 10, movement: primary-through}
      - {pin: 11, movement: primary-solo}
      - {pin: 12, movement: secondary-through}
      - {pin: 13, movement: secondary-solo}
  lamps:
    backend: pcf8574
    refresh_hz: 100
    i2c_bus: i2c0
    i2c_addr: 0x20
heartbeat:
  interval: 10
`

const cfgSim = `
signal:
  tick_ms: 1000
  lamps:
    backend: none
heartbeat:
  interval: 30
journal:
  path: signal-journal.db
`

var embeddedConfigs = map[string][]byte{
	"pico":          []byte(cfgPico),
	"pico-expander": []byte(cfgPicoExpander),
	"sim":           []byte(cfgSim),
}
