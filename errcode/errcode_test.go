package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, OK},
		{"bare code", InvalidTiming, InvalidTiming},
		{"wrapped E", Wrap(UnknownPin, "latch.attach", "gp30", nil), UnknownPin},
		{"fmt wrapped E", fmt.Errorf("boot: %w", &E{C: PinInUse}), PinInUse},
		{"fmt wrapped code", fmt.Errorf("apply: %w", InvalidParams), InvalidParams},
		{"foreign", errors.New("boom"), Error},
	}
	for _, tc := range cases {
		if got := Of(tc.err); got != tc.want {
			t.Errorf("%s: Of() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestE_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("nack")
	err := Wrap(Error, "render.drive", "pcf8574", cause)

	if got, want := err.Error(), "render.drive: error: pcf8574: nack"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to reach the cause")
	}
}
