package mathx

import "testing"

func TestClamp(t *testing.T) {
	if got := Clamp(5000, 50, 2000); got != 2000 {
		t.Fatalf("Clamp high = %d", got)
	}
	if got := Clamp(10, 2000, 50); got != 50 {
		t.Fatalf("Clamp with swapped bounds = %d", got)
	}
}

func TestBetween(t *testing.T) {
	if !Between(3, 1, 3600) || Between(0, 1, 3600) {
		t.Fatal("Between misreports inclusive bounds")
	}
}

func TestSatInc(t *testing.T) {
	var v uint16 = 65534
	v = SatInc(v, 65535)
	v = SatInc(v, 65535)
	if v != 65535 {
		t.Fatalf("SatInc wrapped: %d", v)
	}
}
