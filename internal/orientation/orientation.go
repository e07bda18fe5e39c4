package orientation

import (
	"math"
)

// Tilt is the canonical body-tilt representation for the controller.
// Pitch is rotation about the lateral axis (positive = nose up), roll is
// rotation about the forward axis (positive = right side down). Degrees.
type Tilt struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// AccelSource is anything that can provide accelerometer samples in g-units.
// Implementations: MPU-9250 over SPI, a mock source for development, and
// scripted sources in tests.
type AccelSource interface {
	ReadAccel() (ax, ay, az float64, err error)
}

// ComputeTiltFromAccel computes pitch and roll from a single accelerometer
// sample using the static tilt formulas:
//
//	pitch = atan2(ay, sqrt(ax² + az²))
//	roll  = atan2(-ax, az)
//
// Units of the input cancel out; only the ratios matter.
func ComputeTiltFromAccel(ax, ay, az float64) Tilt {
	pitchRad := math.Atan2(ay, math.Sqrt(ax*ax+az*az))
	rollRad := math.Atan2(-ax, az)

	return Tilt{
		Pitch: pitchRad * 180.0 / math.Pi,
		Roll:  rollRad * 180.0 / math.Pi,
	}
}
