package servo

import (
	"sync"

	"github.com/relabs-tech/quadruped_computer/internal/body"
	"github.com/relabs-tech/quadruped_computer/internal/calibration"
)

// Simulator is an in-memory servo backend. It records both the logical and
// the calibrated physical angle per channel so tests and the development
// console can inspect what the gait engine commanded.
type Simulator struct {
	mu       sync.RWMutex
	profile  *calibration.Profile
	logical  [body.NumChannels]int
	physical [body.NumChannels]int
	writes   int
}

// NewSimulator creates a simulator with every channel at logical 90.
func NewSimulator(profile *calibration.Profile) *Simulator {
	if profile == nil {
		profile = calibration.NewProfile()
	}
	s := &Simulator{profile: profile}
	for ch := range s.logical {
		s.logical[ch] = 90
		s.physical[ch] = profile.ToPhysical(body.Channel(ch), 90)
	}
	return s
}

// SetServo records the commanded angle. Unknown channels report false.
func (s *Simulator) SetServo(ch body.Channel, angle int, applyCalibration bool) bool {
	if !ch.Valid() {
		return false
	}

	physical := angle
	if applyCalibration {
		physical = s.profile.ToPhysical(ch, angle)
	}
	physical = clampPhysical(physical)

	s.mu.Lock()
	s.logical[ch] = angle
	s.physical[ch] = physical
	s.writes++
	s.mu.Unlock()
	return true
}

// LogicalAngles returns a snapshot of the last commanded logical angles.
func (s *Simulator) LogicalAngles() [body.NumChannels]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logical
}

// PhysicalAngles returns a snapshot of the last calibrated physical angles.
func (s *Simulator) PhysicalAngles() [body.NumChannels]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.physical
}

// Writes returns the total number of accepted writes.
func (s *Simulator) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
