// Package servo provides the servo-write port of the controller: a narrow
// interface the gait engine drives, with backends for the PCA9685 PWM
// controller over I2C, an SSC-32 style serial servo controller, and an
// in-memory simulator for development and tests.
package servo

import (
	"github.com/relabs-tech/quadruped_computer/internal/body"
)

// Writer is the servo-write port. SetServo commands one channel to a
// logical angle; when applyCalibration is true the backend converts the
// logical angle to a physical one via the calibration profile first.
// It reports false on an unmapped channel or hardware error and never
// panics: a single bad joint must not stall the gait loop.
type Writer interface {
	SetServo(ch body.Channel, angle int, applyCalibration bool) bool
}

// clampPhysical keeps a physical command inside the 180° servo range.
func clampPhysical(angle int) int {
	if angle < 0 {
		return 0
	}
	if angle > 180 {
		return 180
	}
	return angle
}
