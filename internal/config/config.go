package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker             string
	MQTTClientIDController string
	MQTTClientIDConsole    string
	MQTTClientIDDisplay    string

	// Topics
	TopicTilt       string
	TopicStability  string
	TopicGaitStatus string

	// IMU hardware
	IMUSPIDevice string
	IMUCSPin     string

	// Servo bus: "pca9685", "serial" or "sim"
	ServoBus        string
	ServoI2CBus     string
	ServoI2CAddr    uint16
	ServoMinPulse   int // PCA9685 off-counts at the 0° end
	ServoMaxPulse   int // PCA9685 off-counts at the 180° end
	ServoSerialPort string
	ServoSerialBaud int

	// Calibration
	CalibrationFile string

	// Gait defaults
	GaitCycleTime     float64 // seconds per full trot cycle
	GaitStepHeight    int     // degrees; 0 = auto from knee bend
	GaitStepLength    int     // degrees; 0 = auto from knee bend
	GaitSpeed         float64 // cycle time divider
	GaitKneeBend      int     // degrees of standing knee bend
	GaitInterpFactor  float64 // per-tick blend toward target, 1.0 = direct
	GaitRearLiftBoost int     // extra swing lift for rear legs, degrees

	// Balance defaults
	BalanceKp          float64
	BalancePitchGain   float64
	BalanceRollGain    float64
	BalanceFilterAlpha float64

	// Stability thresholds (degrees)
	StabilityWarningPitch   float64
	StabilityWarningRoll    float64
	StabilityCriticalPitch  float64
	StabilityCriticalRoll   float64
	StabilityEmergencyPitch float64
	StabilityEmergencyRoll  float64

	// Timing
	TiltPollInterval   int // milliseconds
	ConsoleLogInterval int // milliseconds

	// Web server
	WebServerPort int

	// Display
	DisplayUpdateInterval int // milliseconds
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported (lowercase) so other packages cannot access it directly.
//     External code must use InitGlobal() to set and Get() to read.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock for initialization,
//     read lock for Get() allows multiple concurrent readers.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// defaults returns a Config pre-filled with the values the robot ships with.
// The config file only needs to override what differs.
func defaults() *Config {
	return &Config{
		MQTTBroker:             "tcp://localhost:1883",
		MQTTClientIDController: "quadruped-controller",
		MQTTClientIDConsole:    "quadruped-console",
		MQTTClientIDDisplay:    "quadruped-display",

		TopicTilt:       "quadruped/tilt",
		TopicStability:  "quadruped/stability",
		TopicGaitStatus: "quadruped/gait/status",

		IMUSPIDevice: "/dev/spidev0.0",
		IMUCSPin:     "18",

		ServoBus:        "sim",
		ServoI2CBus:     "",
		ServoI2CAddr:    0x40,
		ServoMinPulse:   120,
		ServoMaxPulse:   610,
		ServoSerialPort: "/dev/ttyUSB0",
		ServoSerialBaud: 115200,

		CalibrationFile: "./calibration.json",

		GaitCycleTime:     1.0,
		GaitStepHeight:    36,
		GaitStepLength:    15,
		GaitSpeed:         1.0,
		GaitKneeBend:      40,
		GaitInterpFactor:  1.0,
		GaitRearLiftBoost: 0,

		BalanceKp:          0.5,
		BalancePitchGain:   1.0,
		BalanceRollGain:    1.0,
		BalanceFilterAlpha: 0.25,

		StabilityWarningPitch:   10,
		StabilityWarningRoll:    10,
		StabilityCriticalPitch:  20,
		StabilityCriticalRoll:   20,
		StabilityEmergencyPitch: 30,
		StabilityEmergencyRoll:  30,

		TiltPollInterval:   100,
		ConsoleLogInterval: 500,

		WebServerPort: 8080,

		DisplayUpdateInterval: 250,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := defaults()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_CONTROLLER":
		c.MQTTClientIDController = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_TILT":
		c.TopicTilt = value
	case "TOPIC_STABILITY":
		c.TopicStability = value
	case "TOPIC_GAIT_STATUS":
		c.TopicGaitStatus = value

	// IMU hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value

	// Servo bus
	case "SERVO_BUS":
		if value != "pca9685" && value != "serial" && value != "sim" {
			return fmt.Errorf("SERVO_BUS must be pca9685, serial or sim, got %q", value)
		}
		c.ServoBus = value
	case "SERVO_I2C_BUS":
		c.ServoI2CBus = value
	case "SERVO_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid SERVO_I2C_ADDR %q: %w", value, err)
		}
		c.ServoI2CAddr = uint16(addr)
	case "SERVO_MIN_PULSE":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERVO_MIN_PULSE %q: %w", value, err)
		}
		if val < 0 || val > 4095 {
			return fmt.Errorf("SERVO_MIN_PULSE must be 0-4095, got %d", val)
		}
		c.ServoMinPulse = val
	case "SERVO_MAX_PULSE":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERVO_MAX_PULSE %q: %w", value, err)
		}
		if val < 0 || val > 4095 {
			return fmt.Errorf("SERVO_MAX_PULSE must be 0-4095, got %d", val)
		}
		c.ServoMaxPulse = val
	case "SERVO_SERIAL_PORT":
		c.ServoSerialPort = value
	case "SERVO_SERIAL_BAUD":
		baud, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERVO_SERIAL_BAUD %q: %w", value, err)
		}
		c.ServoSerialBaud = baud

	// Calibration
	case "CALIBRATION_FILE":
		c.CalibrationFile = value

	// Gait
	case "GAIT_CYCLE_TIME":
		val, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid GAIT_CYCLE_TIME %q: %w", value, err)
		}
		if val <= 0 {
			return fmt.Errorf("GAIT_CYCLE_TIME must be positive, got %v", val)
		}
		c.GaitCycleTime = val
	case "GAIT_STEP_HEIGHT":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GAIT_STEP_HEIGHT %q: %w", value, err)
		}
		c.GaitStepHeight = val
	case "GAIT_STEP_LENGTH":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GAIT_STEP_LENGTH %q: %w", value, err)
		}
		c.GaitStepLength = val
	case "GAIT_SPEED":
		val, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid GAIT_SPEED %q: %w", value, err)
		}
		if val <= 0 {
			return fmt.Errorf("GAIT_SPEED must be positive, got %v", val)
		}
		c.GaitSpeed = val
	case "GAIT_KNEE_BEND":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GAIT_KNEE_BEND %q: %w", value, err)
		}
		if val < 0 || val > 80 {
			return fmt.Errorf("GAIT_KNEE_BEND must be 0-80, got %d", val)
		}
		c.GaitKneeBend = val
	case "GAIT_INTERP_FACTOR":
		val, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid GAIT_INTERP_FACTOR %q: %w", value, err)
		}
		if val <= 0 || val > 1 {
			return fmt.Errorf("GAIT_INTERP_FACTOR must be in (0,1], got %v", val)
		}
		c.GaitInterpFactor = val
	case "GAIT_REAR_LIFT_BOOST":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GAIT_REAR_LIFT_BOOST %q: %w", value, err)
		}
		c.GaitRearLiftBoost = val

	// Balance
	case "BALANCE_KP":
		val, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid BALANCE_KP %q: %w", value, err)
		}
		c.BalanceKp = val
	case "BALANCE_PITCH_GAIN":
		val, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid BALANCE_PITCH_GAIN %q: %w", value, err)
		}
		c.BalancePitchGain = val
	case "BALANCE_ROLL_GAIN":
		val, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid BALANCE_ROLL_GAIN %q: %w", value, err)
		}
		c.BalanceRollGain = val
	case "BALANCE_FILTER_ALPHA":
		val, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid BALANCE_FILTER_ALPHA %q: %w", value, err)
		}
		if val <= 0 || val > 1 {
			return fmt.Errorf("BALANCE_FILTER_ALPHA must be in (0,1], got %v", val)
		}
		c.BalanceFilterAlpha = val

	// Stability thresholds
	case "STABILITY_WARNING_PITCH":
		return c.setFloat(&c.StabilityWarningPitch, key, value)
	case "STABILITY_WARNING_ROLL":
		return c.setFloat(&c.StabilityWarningRoll, key, value)
	case "STABILITY_CRITICAL_PITCH":
		return c.setFloat(&c.StabilityCriticalPitch, key, value)
	case "STABILITY_CRITICAL_ROLL":
		return c.setFloat(&c.StabilityCriticalRoll, key, value)
	case "STABILITY_EMERGENCY_PITCH":
		return c.setFloat(&c.StabilityEmergencyPitch, key, value)
	case "STABILITY_EMERGENCY_ROLL":
		return c.setFloat(&c.StabilityEmergencyRoll, key, value)

	// Timing
	case "TILT_POLL_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TILT_POLL_INTERVAL %q: %w", value, err)
		}
		c.TiltPollInterval = interval
	case "CONSOLE_LOG_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CONSOLE_LOG_INTERVAL %q: %w", value, err)
		}
		c.ConsoleLogInterval = interval

	// Web server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func (c *Config) setFloat(dst *float64, key, value string) error {
	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = val
	return nil
}

// validate checks cross-field consistency.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.ServoMinPulse >= c.ServoMaxPulse {
		return fmt.Errorf("SERVO_MIN_PULSE (%d) must be below SERVO_MAX_PULSE (%d)",
			c.ServoMinPulse, c.ServoMaxPulse)
	}
	if c.TiltPollInterval <= 0 {
		return fmt.Errorf("TILT_POLL_INTERVAL must be positive")
	}
	if c.StabilityWarningPitch > c.StabilityCriticalPitch ||
		c.StabilityCriticalPitch > c.StabilityEmergencyPitch {
		return fmt.Errorf("stability pitch thresholds must be ordered warning <= critical <= emergency")
	}
	if c.StabilityWarningRoll > c.StabilityCriticalRoll ||
		c.StabilityCriticalRoll > c.StabilityEmergencyRoll {
		return fmt.Errorf("stability roll thresholds must be ordered warning <= critical <= emergency")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
