package orientation

import (
	"fmt"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/quadruped_computer/internal/config"
)

// ±2g range: 16384 LSB per g.
const accelCountsPerG = 16384.0

type imuSource struct {
	imu *mpu9250.MPU9250
}

// NewIMUSource initializes the body MPU-9250 over SPI and returns an
// AccelSource reading in g-units. The SPI device and CS pin come from the
// configuration file.
func NewIMUSource() (AccelSource, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	cfg := config.Get()

	cs := gpioreg.ByName(cfg.IMUCSPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU CS pin %q not found", cfg.IMUCSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.IMUSPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU SPI transport (%s): %w", cfg.IMUSPIDevice, err)
	}

	imu, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("IMU device creation: %w", err)
	}

	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("IMU initialization: %w", err)
	}

	if err := imu.SetAccelRange(0); err != nil { // ±2g
		return nil, fmt.Errorf("IMU set accel range: %w", err)
	}

	return &imuSource{imu: imu}, nil
}

// ReadAccel reads one accelerometer sample and converts raw counts to g.
func (s *imuSource) ReadAccel() (float64, float64, float64, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("IMU accel X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("IMU accel Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("IMU accel Z: %w", err)
	}

	return float64(ax) / accelCountsPerG,
		float64(ay) / accelCountsPerG,
		float64(az) / accelCountsPerG,
		nil
}
