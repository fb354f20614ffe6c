// Package util holds small helpers shared by the services.
package util

import (
	"encoding/json"
	"time"
)

// ResetTimer stops t, drains a pending fire and re-arms it for d.
func ResetTimer(t *time.Timer, d time.Duration) {
	if d < 0 {
		d = 0
	}
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// DecodeJSON decodes a bus payload into dst. Payloads may arrive as raw
// JSON ([]byte or string) or as an in-process value, which is round-tripped
// so fields present in src overlay the defaults already in dst.
func DecodeJSON[T any](src any, dst *T) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	case T:
		*dst = v
		return nil
	case *T:
		*dst = *v
		return nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}
