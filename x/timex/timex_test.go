package timex

import (
	"testing"
	"time"
)

func TestPeriodFromHz(t *testing.T) {
	if got := PeriodFromHz(0); got != time.Second {
		t.Fatalf("PeriodFromHz(0) = %v", got)
	}
	if got := PeriodFromHz(200); got != 5*time.Millisecond {
		t.Fatalf("PeriodFromHz(200) = %v", got)
	}
}

func TestNowMsTracksClock(t *testing.T) {
	before := time.Now().UnixMilli()
	got := NowMs()
	if got < before || got > time.Now().UnixMilli() {
		t.Fatalf("NowMs = %d outside [%d, now]", got, before)
	}
}
