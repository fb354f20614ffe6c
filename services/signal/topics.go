package signal

import "signalcode-go/bus"

const (
	ctlSense    = "sense"
	ctlReset    = "reset"
	ctlSnapshot = "snapshot"
	ctlTick     = "tick"
)

var (
	topicConfigSignal = bus.T("config", "signal")

	TopicState      = bus.T("signal", "state")
	TopicStatus     = bus.T("signal", "status")
	TopicDiag       = bus.T("signal", "diag")
	TopicTransition = bus.T("signal", "event", "transition")

	topicControlAll = bus.T("signal", "control", bus.SingleWild)
)

// ControlTopic addresses one control verb: sense, reset, snapshot or tick.
func ControlTopic(verb string) bus.Topic { return bus.T("signal", "control", verb) }
