package servo

import (
	"fmt"
	"io"
	"log"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/quadruped_computer/internal/body"
	"github.com/relabs-tech/quadruped_computer/internal/calibration"
	"github.com/relabs-tech/quadruped_computer/internal/config"
)

// Pulse widths for the 0°..180° physical range, microseconds.
const (
	serialPulseMin = 500
	serialPulseMax = 2500
)

// SerialBus drives servos through an SSC-32 compatible serial servo
// controller using "#<ch>P<pulse>\r" commands.
type SerialBus struct {
	profile *calibration.Profile

	mu   sync.Mutex
	port io.WriteCloser
}

// NewSerialBus opens the configured serial port.
func NewSerialBus(profile *calibration.Profile) (*SerialBus, error) {
	cfg := config.Get()

	opts := serial.OpenOptions{
		PortName:        cfg.ServoSerialPort,
		BaudRate:        uint(cfg.ServoSerialBaud),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open servo serial port %s: %w", cfg.ServoSerialPort, err)
	}
	log.Printf("serial servo bus opened on %s at %d baud", cfg.ServoSerialPort, cfg.ServoSerialBaud)

	return &SerialBus{profile: profile, port: port}, nil
}

// SetServo converts the angle to a pulse width and writes one command frame.
func (b *SerialBus) SetServo(ch body.Channel, angle int, applyCalibration bool) bool {
	if !ch.Valid() {
		return false
	}

	physical := angle
	if applyCalibration {
		physical = b.profile.ToPhysical(ch, angle)
	}
	physical = clampPhysical(physical)

	pulse := serialPulseMin + physical*(serialPulseMax-serialPulseMin)/180

	b.mu.Lock()
	_, err := fmt.Fprintf(b.port, "#%dP%d\r", int(ch), pulse)
	b.mu.Unlock()
	if err != nil {
		log.Printf("servo ch%d serial write error: %v", int(ch), err)
		return false
	}
	return true
}

// Close releases the serial port.
func (b *SerialBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.port.Close()
}
