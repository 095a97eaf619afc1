package fdm

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Wire types for the lockstep exchange with the autopilot.  The autopilot
// sends a servo packet, the bridge advances the solver and replies with a
// flight dynamics packet.

// ServoPacket carries normalized actuator demands from the autopilot.
// Channels are in the range [-1, 1]; values outside are clamped.
type ServoPacket struct {
	Channels []float64 `json:"channels"`
}

// Channel returns the clamped value of channel i, or 0 for a channel the
// autopilot did not send.  NaN demands read as 0: they must never reach a
// joint velocity servo.
func (p ServoPacket) Channel(i int) float64 {
	if i < 0 || i >= len(p.Channels) {
		return 0
	}
	v := p.Channels[i]
	if math.IsNaN(v) {
		return 0
	}
	return Clamp(v, -1, 1)
}

type Attitude struct {
	Position   [3]float64 `json:"position"`
	Quaternion [4]float64 `json:"quaternion"` // w, x, y, z
}

type Wheel struct {
	Attitude
	SpinRate float64 `json:"spin_rate"`
	Steer    float64 `json:"steer"`
}

// Packet is the state snapshot returned to the autopilot after stepping.
type Packet struct {
	Timestamp float64    `json:"timestamp"`
	Body      Attitude   `json:"body"`
	Velocity  [3]float64 `json:"velocity"`
	Wheels    []Wheel    `json:"wheels"`
	Paused    bool       `json:"paused"`
}

func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
