package servo

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/quadruped_computer/internal/body"
	"github.com/relabs-tech/quadruped_computer/internal/calibration"
	"github.com/relabs-tech/quadruped_computer/internal/config"
)

// PCA9685Bus drives the twelve leg servos through a PCA9685 16-channel PWM
// controller on the I2C bus. Channels 12-15 are left unused.
type PCA9685Bus struct {
	profile *calibration.Profile
	group   *pca9685.ServoGroup
}

// NewPCA9685Bus opens the configured I2C bus and initializes the PWM
// controller for 50 Hz hobby servos.
func NewPCA9685Bus(profile *calibration.Profile) (*PCA9685Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	cfg := config.Get()

	bus, err := i2creg.Open(cfg.ServoI2CBus)
	if err != nil {
		return nil, fmt.Errorf("open I2C bus %q: %w", cfg.ServoI2CBus, err)
	}

	dev, err := pca9685.NewI2C(bus, cfg.ServoI2CAddr)
	if err != nil {
		return nil, fmt.Errorf("PCA9685 at 0x%02X: %w", cfg.ServoI2CAddr, err)
	}

	if err := dev.SetPwmFreq(50 * physic.Hertz); err != nil {
		return nil, fmt.Errorf("PCA9685 set PWM frequency: %w", err)
	}

	group := pca9685.NewServoGroup(dev,
		gpio.Duty(cfg.ServoMinPulse), gpio.Duty(cfg.ServoMaxPulse),
		0, 180*physic.Degree)

	log.Printf("PCA9685 servo bus ready (addr=0x%02X, pulse %d-%d)",
		cfg.ServoI2CAddr, cfg.ServoMinPulse, cfg.ServoMaxPulse)

	return &PCA9685Bus{profile: profile, group: group}, nil
}

// SetServo writes one channel. Hardware errors are logged and reported as
// false; the caller keeps ticking.
func (b *PCA9685Bus) SetServo(ch body.Channel, angle int, applyCalibration bool) bool {
	if !ch.Valid() {
		return false
	}

	physical := angle
	if applyCalibration {
		physical = b.profile.ToPhysical(ch, angle)
	}
	physical = clampPhysical(physical)

	srv := b.group.GetServo(int(ch))
	if err := srv.SetAngle(physic.Angle(physical) * physic.Degree); err != nil {
		log.Printf("servo ch%d write error: %v", int(ch), err)
		return false
	}
	return true
}
