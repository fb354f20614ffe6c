//go:build rp2040 || rp2350

// Firmware for a Pico driving one intersection. Logs and the command
// console share UART0.
package main

import (
	"context"
	"machine"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"signalcode-go/bus"
	"signalcode-go/script"
	"signalcode-go/services/config"
	"signalcode-go/services/console"
	"signalcode-go/services/heartbeat"
	"signalcode-go/services/signal"
	"signalcode-go/x/logx"
)

// device selects the embedded document; override with -ldflags "-X main.device=pico-expander".
var device = "pico"

const consoleBaud = 115200

func main() {
	// Allow USB CDC to enumerate before the first line.
	time.Sleep(2 * time.Second)

	ctx := context.Background()
	uart := uartx.UART0
	_ = uart.Configure(uartx.UARTConfig{
		BaudRate: consoleBaud,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})

	con := console.New(console.DefaultRingSize)
	logx.Configure(con, "INFO", false)
	go con.Pump(ctx, uart)
	log := logx.New("main")

	b := bus.NewBus(8)

	svc := signal.New()
	if err := svc.Start(ctx, b.NewConnection("signal")); err != nil {
		log.Error("signal service failed", "err", err)
	}
	_ = (&heartbeat.Service{}).Start(ctx, b.NewConnection("heartbeat"))
	config.NewConfigService().Start(config.WithDevice(ctx, device), b.NewConnection("config"))

	runner := script.New(b.NewConnection("console"))
	log.Info("boot", "device", device)
	for {
		if err := console.Serve(ctx, uart, runner, con); err != nil {
			log.Warn("console restarted", "err", err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
