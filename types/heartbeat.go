package types

// Heartbeat is published on "heartbeat" at the configured interval.
type Heartbeat struct {
	Seq     uint32 `json:"seq"`
	UptimeS int64  `json:"uptime_s"`
	Phase   Phase  `json:"phase"`
	Ticks   uint32 `json:"ticks"`
	Drops   uint32 `json:"isr_drops"`
}
