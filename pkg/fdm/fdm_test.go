package fdm

import (
	"math"
	"testing"
)

func TestChannelClamping(t *testing.T) {
	p := ServoPacket{Channels: []float64{-3, 0.5, 2}}

	if v := p.Channel(0); v != -1 {
		t.Fatalf("Expected -1 for channel below range, got %v", v)
	}
	if v := p.Channel(1); v != 0.5 {
		t.Fatalf("Expected 0.5 for in-range channel, got %v", v)
	}
	if v := p.Channel(2); v != 1 {
		t.Fatalf("Expected 1 for channel above range, got %v", v)
	}
}

func TestNonFiniteChannelValues(t *testing.T) {
	p := ServoPacket{Channels: []float64{math.NaN(), math.Inf(1), math.Inf(-1)}}

	if v := p.Channel(0); v != 0 {
		t.Fatalf("Expected 0 for NaN demand, got %v", v)
	}
	if v := p.Channel(1); v != 1 {
		t.Fatalf("Expected 1 for +Inf demand, got %v", v)
	}
	if v := p.Channel(2); v != -1 {
		t.Fatalf("Expected -1 for -Inf demand, got %v", v)
	}
}

func TestMissingChannelIsZero(t *testing.T) {
	p := ServoPacket{Channels: []float64{0.25}}
	if v := p.Channel(5); v != 0 {
		t.Fatalf("Expected 0 for unsent channel, got %v", v)
	}
	if v := p.Channel(-1); v != 0 {
		t.Fatalf("Expected 0 for negative channel index, got %v", v)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 3); got != 3 {
		t.Fatalf("Clamp(5,0,3) = %v", got)
	}
	if got := Clamp(-0.5, 0.0, 1.0); got != 0 {
		t.Fatalf("Clamp(-0.5,0,1) = %v", got)
	}
	if got := Clamp(2, 1, 3); got != 2 {
		t.Fatalf("Clamp(2,1,3) = %v", got)
	}
}
