// Package balance estimates body tilt from accelerometer samples and turns
// it into per-leg knee corrections that keep the body level while standing
// or walking.
package balance

import (
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/quadruped_computer/internal/body"
	"github.com/relabs-tech/quadruped_computer/internal/orientation"
)

// Readings with all three axes this close to zero are a known MPU glitch,
// not a real sample: a valid reading always carries ~1 g somewhere.
const badReadingThreshold = 0.01

// Delay between calibration samples, letting the sensor settle.
const calibrateSampleDelay = 20 * time.Millisecond

// Controller converts accelerometer samples into a calibrated, filtered
// pitch/roll estimate and a per-leg correction vector. With a nil source it
// runs in simulation mode and reports a level body.
//
// Sign convention: positive correction biases the knee to bend more,
// raising that corner of the body.
type Controller struct {
	src orientation.AccelSource // nil = simulation mode

	mu          sync.Mutex
	pitchOffset float64 // calibration zero point, degrees
	rollOffset  float64

	kp        float64
	pitchGain float64
	rollGain  float64

	alpha     float64 // low-pass coefficient, higher = more responsive
	lastPitch float64 // filtered state, persists across calls
	lastRoll  float64

	lastRawPitch float64 // last known-good raw reading
	lastRawRoll  float64
}

// New creates a balance controller on the given accelerometer source.
// A nil source selects simulation mode; that is not an error, the robot
// simply walks without tilt correction.
func New(src orientation.AccelSource) *Controller {
	return &Controller{
		src:       src,
		kp:        0.5,
		pitchGain: 1.0,
		rollGain:  1.0,
		alpha:     0.25,
	}
}

// SimulationMode reports whether the controller runs without a real sensor.
func (c *Controller) SimulationMode() bool {
	return c.src == nil
}

// readRawAngles reads one accelerometer sample and converts it to raw
// pitch/roll. Sensor errors and zero-glitch readings both degrade to the
// last known-good values; this method never fails.
func (c *Controller) readRawAngles() (pitch, roll float64) {
	if c.src == nil {
		return 0, 0
	}

	ax, ay, az, err := c.src.ReadAccel()
	if err != nil {
		log.Printf("IMU read error: %v", err)
		return c.lastRawPitch, c.lastRawRoll
	}

	if abs(ax) < badReadingThreshold && abs(ay) < badReadingThreshold && abs(az) < badReadingThreshold {
		return c.lastRawPitch, c.lastRawRoll
	}

	t := orientation.ComputeTiltFromAccel(ax, ay, az)
	c.lastRawPitch = t.Pitch
	c.lastRawRoll = t.Roll
	return t.Pitch, t.Roll
}

// ReadRawAngles returns the current uncalibrated pitch/roll.
func (c *Controller) ReadRawAngles() (pitch, roll float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readRawAngles()
}

// Calibrate averages the given number of raw readings and stores the mean
// as the zero point. The robot should be stationary on a flat surface.
// This blocks for samples*20ms and must not be called from the gait tick
// loop. In simulation mode it just zeroes the offsets.
func (c *Controller) Calibrate(samples int) {
	if c.src == nil {
		c.mu.Lock()
		c.pitchOffset = 0
		c.rollOffset = 0
		c.mu.Unlock()
		log.Printf("balance calibration skipped (simulation mode)")
		return
	}
	if samples <= 0 {
		samples = 30
	}

	log.Printf("calibrating balance zero point with %d samples...", samples)
	var pitchSum, rollSum float64
	for i := 0; i < samples; i++ {
		c.mu.Lock()
		p, r := c.readRawAngles()
		c.mu.Unlock()
		pitchSum += p
		rollSum += r
		time.Sleep(calibrateSampleDelay)
	}

	c.mu.Lock()
	c.pitchOffset = pitchSum / float64(samples)
	c.rollOffset = rollSum / float64(samples)
	pitchOffset, rollOffset := c.pitchOffset, c.rollOffset
	c.mu.Unlock()

	log.Printf("balance calibrated: pitch_offset=%.2f roll_offset=%.2f", pitchOffset, rollOffset)
}

// GetAngles returns the calibrated, gain-scaled and low-pass filtered
// pitch/roll estimate. The filter state persists across calls.
func (c *Controller) GetAngles() (pitch, roll float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rawPitch, rawRoll := c.readRawAngles()

	pitch = (rawPitch - c.pitchOffset) * c.pitchGain
	roll = (rawRoll - c.rollOffset) * c.rollGain

	pitch = c.alpha*pitch + (1-c.alpha)*c.lastPitch
	roll = c.alpha*roll + (1-c.alpha)*c.lastRoll

	c.lastPitch = pitch
	c.lastRoll = roll
	return pitch, roll
}

// GetCorrection computes the per-leg knee correction for the current tilt.
// Front legs get the full pitch term, rear legs half; the roll term splits
// left/right at half weight on all legs.
func (c *Controller) GetCorrection() map[body.Leg]float64 {
	pitch, roll := c.GetAngles()

	c.mu.Lock()
	kp := c.kp
	c.mu.Unlock()

	return map[body.Leg]float64{
		body.FrontLeft:  -pitch*kp - roll*kp*0.5,
		body.FrontRight: -pitch*kp + roll*kp*0.5,
		body.RearLeft:   -pitch*kp*0.5 - roll*kp*0.5,
		body.RearRight:  -pitch*kp*0.5 + roll*kp*0.5,
	}
}

// SetKp sets the proportional gain, clamped to [0, 2].
func (c *Controller) SetKp(kp float64) {
	if kp < 0 {
		kp = 0
	}
	if kp > 2.0 {
		kp = 2.0
	}
	c.mu.Lock()
	c.kp = kp
	c.mu.Unlock()
	log.Printf("balance Kp set to %.2f", kp)
}

// Kp returns the current proportional gain.
func (c *Controller) Kp() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kp
}

// SetGains sets the pitch and roll sensitivity multipliers.
func (c *Controller) SetGains(pitchGain, rollGain float64) {
	c.mu.Lock()
	c.pitchGain = pitchGain
	c.rollGain = rollGain
	c.mu.Unlock()
}

// SetFilterAlpha sets the low-pass coefficient, clamped to (0, 1].
func (c *Controller) SetFilterAlpha(alpha float64) {
	if alpha <= 0 {
		alpha = 0.01
	}
	if alpha > 1 {
		alpha = 1
	}
	c.mu.Lock()
	c.alpha = alpha
	c.mu.Unlock()
}

// Offsets returns the calibration zero point.
func (c *Controller) Offsets() (pitchOffset, rollOffset float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pitchOffset, c.rollOffset
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
