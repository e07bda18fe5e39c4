// Package calibration maps logical joint angles (90 = neutral, leg-agnostic)
// to physical servo angles. Each channel carries a calibrated neutral, a
// direction that mirrors left/right kinematics, and physical clamp limits.
package calibration

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/relabs-tech/quadruped_computer/internal/body"
)

// ServoCalibration holds the logical->physical mapping for one channel.
type ServoCalibration struct {
	Channel      int    `json:"channel"`
	Leg          string `json:"leg"`
	Joint        string `json:"joint"`
	NeutralAngle int    `json:"neutral_angle"` // physical angle for logical 90
	Direction    int    `json:"direction"`     // +1 or -1, mirrors left/right
	MinAngle     int    `json:"min_angle"`
	MaxAngle     int    `json:"max_angle"`
	Calibrated   bool   `json:"calibrated"`
	Notes        string `json:"notes,omitempty"`
}

// Profile is the per-robot calibration table for all servo channels.
// It is read-mostly: the gait and balance core only ever call ToPhysical
// and IsFullyCalibrated; mutation happens in the external calibration
// workflow, which holds an exclusive-write contract.
type Profile struct {
	Version         string                             `json:"version"`
	CalibrationDate string                             `json:"calibration_date,omitempty"`
	Servos          map[body.Channel]*ServoCalibration `json:"servos"`
}

// NewProfile creates a default profile: neutral 90, direction +1,
// limits [0,180], all channels uncalibrated.
func NewProfile() *Profile {
	p := &Profile{
		Version: "1.1",
		Servos:  make(map[body.Channel]*ServoCalibration, body.NumChannels),
	}
	for ch := body.Channel(0); ch < body.NumChannels; ch++ {
		p.Servos[ch] = &ServoCalibration{
			Channel:      int(ch),
			Leg:          string(ch.Leg()),
			Joint:        ch.Joint().String(),
			NeutralAngle: 90,
			Direction:    1,
			MinAngle:     0,
			MaxAngle:     180,
			Calibrated:   false,
		}
	}
	return p
}

// ToPhysical converts a logical angle into the physical servo command:
//
//	physical = clamp(neutral + direction*(logical-90), min, max)
//
// An unknown channel maps to identity; hitting an unmapped channel is a
// configuration gap, not a runtime error, and must not stall the gait.
func (p *Profile) ToPhysical(ch body.Channel, logical int) int {
	s, ok := p.Servos[ch]
	if !ok {
		return logical
	}
	delta := logical - 90
	physical := s.NeutralAngle + s.Direction*delta
	if physical < s.MinAngle {
		physical = s.MinAngle
	}
	if physical > s.MaxAngle {
		physical = s.MaxAngle
	}
	return physical
}

// IsFullyCalibrated reports whether all driven channels are calibrated.
func (p *Profile) IsFullyCalibrated() bool {
	for ch := body.Channel(0); ch < body.NumChannels; ch++ {
		s, ok := p.Servos[ch]
		if !ok || !s.Calibrated {
			return false
		}
	}
	return true
}

// profileJSON is the on-disk shape: servo map keyed by decimal strings,
// matching the calibration.json written by the calibration tooling.
type profileJSON struct {
	Version         string                       `json:"version"`
	CalibrationDate string                       `json:"calibration_date,omitempty"`
	Servos          map[string]*ServoCalibration `json:"servos"`
}

// Load reads a calibration profile from a JSON file. A missing file is not
// an error: the controller starts with defaults and reports uncalibrated.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("no calibration file at %s, using defaults", path)
			return NewProfile(), nil
		}
		return nil, fmt.Errorf("read calibration file: %w", err)
	}

	var raw profileJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse calibration file %s: %w", path, err)
	}

	p := NewProfile()
	p.Version = raw.Version
	p.CalibrationDate = raw.CalibrationDate
	for key, s := range raw.Servos {
		var n int
		if _, err := fmt.Sscanf(key, "%d", &n); err != nil {
			return nil, fmt.Errorf("calibration file %s: bad channel key %q", path, key)
		}
		ch, err := body.NewChannel(n)
		if err != nil {
			// Channels 12-15 exist on the PCA9685 but drive nothing.
			continue
		}
		p.Servos[ch] = s
	}
	return p, nil
}

// Save writes the profile to a JSON file, stamping the calibration date.
func (p *Profile) Save(path string) error {
	raw := profileJSON{
		Version:         p.Version,
		CalibrationDate: time.Now().Format(time.RFC3339),
		Servos:          make(map[string]*ServoCalibration, len(p.Servos)),
	}
	for ch, s := range p.Servos {
		raw.Servos[fmt.Sprintf("%d", int(ch))] = s
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal calibration: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write calibration file: %w", err)
	}
	return nil
}
