//go:build !rp2040 && !rp2350

// Command signalcode-go runs the controller on a host: the device document
// is published on the bus, the signal service follows it, and operator
// commands are read from stdin with replies and logs on stdout.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/viper"

	"signalcode-go/bus"
	"signalcode-go/script"
	"signalcode-go/services/config"
	"signalcode-go/services/console"
	"signalcode-go/services/heartbeat"
	"signalcode-go/services/journal"
	sigsvc "signalcode-go/services/signal"
	"signalcode-go/x/logx"
)

func main() {
	v := viper.New()
	v.SetEnvPrefix("signalcode")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("device", "sim")
	v.SetDefault("log.level", "INFO")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	con := console.New(console.DefaultRingSize)
	logx.Configure(con, v.GetString("log.level"), false)
	go con.Pump(ctx, os.Stdout)
	log := logx.New("main")

	b := bus.NewBus(16)
	device := v.GetString("device")

	svc := sigsvc.New()
	if err := svc.Start(ctx, b.NewConnection("signal")); err != nil {
		log.Error("signal service failed", "err", err)
		os.Exit(1)
	}
	_ = (&heartbeat.Service{}).Start(ctx, b.NewConnection("heartbeat"))

	cfgConn := b.NewConnection("config")
	if err := config.NewConfigService().Publish(config.WithDevice(ctx, device), cfgConn); err != nil {
		log.Error("config publish failed", "device", device, "err", err)
	}

	var journalDone <-chan struct{}
	jconn := b.NewConnection("journal")
	store, err := journal.OpenConfigured(ctx, jconn)
	if err != nil {
		log.Error("journal unavailable", "err", err)
	}
	if store != nil {
		defer store.Close()
		journalDone = store.Start(ctx, jconn)
	}

	runner := script.New(b.NewConnection("console"))
	log.Info("ready", "device", device)
	if err := console.Serve(ctx, console.NewReaderPort(os.Stdin), runner, con); err != nil && ctx.Err() == nil {
		log.Warn("console closed", "err", err)
	}
	stop()
	if journalDone != nil {
		<-journalDone
	}
}
