// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"
)

type mockSource struct {
	start time.Time
}

// NewMockSource creates a mock accelerometer that simulates a body slowly
// rocking a few degrees around level. Useful for developing the balance
// and stability paths without hardware.
func NewMockSource() AccelSource {
	return &mockSource{start: time.Now()}
}

func (m *mockSource) ReadAccel() (float64, float64, float64, error) {
	elapsed := time.Since(m.start).Seconds()

	// Small tilt angles around level, gravity on the z axis.
	pitchRad := 5 * math.Sin(elapsed) * math.Pi / 180
	rollRad := 3 * math.Cos(elapsed*0.7) * math.Pi / 180

	ax := -math.Sin(rollRad)
	ay := math.Sin(pitchRad)
	az := math.Cos(pitchRad) * math.Cos(rollRad)
	return ax, ay, az, nil
}
