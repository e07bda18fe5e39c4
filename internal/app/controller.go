package app

import (
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/quadruped_computer/internal/balance"
	"github.com/relabs-tech/quadruped_computer/internal/body"
	"github.com/relabs-tech/quadruped_computer/internal/calibration"
	"github.com/relabs-tech/quadruped_computer/internal/config"
	"github.com/relabs-tech/quadruped_computer/internal/gait"
	"github.com/relabs-tech/quadruped_computer/internal/kinematics"
	"github.com/relabs-tech/quadruped_computer/internal/orientation"
	"github.com/relabs-tech/quadruped_computer/internal/servo"
	"github.com/relabs-tech/quadruped_computer/internal/stability"
)

// Robot bundles the control core: the calibration profile, the servo bus,
// the balance controller, the stability monitor and the gait engine. One
// Robot owns all mutable control state; the API layers only hold a
// reference to it.
type Robot struct {
	Profile *calibration.Profile
	Bus     servo.Writer
	Balance *balance.Controller
	Monitor *stability.Monitor
	Engine  *gait.Engine
}

// buildServoBus selects the configured servo backend. Hardware init
// failures degrade to the simulator so the controller always comes up.
func buildServoBus(profile *calibration.Profile) servo.Writer {
	cfg := config.Get()

	switch cfg.ServoBus {
	case "pca9685":
		bus, err := servo.NewPCA9685Bus(profile)
		if err != nil {
			log.Printf("PCA9685 init failed, using simulated servos: %v", err)
			return servo.NewSimulator(profile)
		}
		return bus
	case "serial":
		bus, err := servo.NewSerialBus(profile)
		if err != nil {
			log.Printf("serial servo bus init failed, using simulated servos: %v", err)
			return servo.NewSimulator(profile)
		}
		return bus
	default:
		log.Printf("using simulated servo bus")
		return servo.NewSimulator(profile)
	}
}

// buildAccelSource opens the body IMU, or returns nil for simulation mode.
func buildAccelSource() orientation.AccelSource {
	src, err := orientation.NewIMUSource()
	if err != nil {
		log.Printf("IMU init failed, balance runs in simulation mode: %v", err)
		return nil
	}
	return src
}

// NewRobot wires the full control core from the global configuration.
func NewRobot() (*Robot, error) {
	cfg := config.Get()

	profile, err := calibration.Load(cfg.CalibrationFile)
	if err != nil {
		return nil, err
	}
	if profile.IsFullyCalibrated() {
		log.Printf("calibration loaded: all %d channels calibrated", body.NumChannels)
	} else {
		log.Printf("WARNING: calibration incomplete, movements may be asymmetric")
	}

	bus := buildServoBus(profile)

	bal := balance.New(buildAccelSource())
	bal.SetKp(cfg.BalanceKp)
	bal.SetGains(cfg.BalancePitchGain, cfg.BalanceRollGain)
	bal.SetFilterAlpha(cfg.BalanceFilterAlpha)

	monitor := stability.NewMonitor(stability.Thresholds{
		WarningPitch:   cfg.StabilityWarningPitch,
		WarningRoll:    cfg.StabilityWarningRoll,
		CriticalPitch:  cfg.StabilityCriticalPitch,
		CriticalRoll:   cfg.StabilityCriticalRoll,
		EmergencyPitch: cfg.StabilityEmergencyPitch,
		EmergencyRoll:  cfg.StabilityEmergencyRoll,
	})

	engine := gait.New(bus, bal, gait.Options{
		Params: gait.Params{
			CycleTime:  cfg.GaitCycleTime,
			StepHeight: cfg.GaitStepHeight,
			StepLength: cfg.GaitStepLength,
			Speed:      cfg.GaitSpeed,
		},
		KneeBend:     cfg.GaitKneeBend,
		InterpFactor: cfg.GaitInterpFactor,
		SolverFactory: func() (kinematics.Solver, error) {
			return kinematics.NewMockSolver(0.10, float64(cfg.GaitKneeBend)), nil
		},
	})
	if cfg.GaitRearLiftBoost != 0 {
		boost := cfg.GaitRearLiftBoost
		engine.SetParams(gait.ParamsPatch{RearLiftBoost: &boost})
	}

	// A severe tilt stops the gait; the monitor itself never actuates.
	monitor.OnStateChange(func(old, new stability.State, pitch, roll float64) {
		log.Printf("stability: %s -> %s (pitch=%.1f roll=%.1f)", old, new, pitch, roll)
		if new == stability.Emergency && engine.IsRunning() {
			log.Printf("stability: emergency tilt, stopping gait")
			go func() {
				if err := engine.Stop(); err != nil {
					log.Printf("stability: emergency stop failed: %v", err)
				}
			}()
		}
	})

	return &Robot{
		Profile: profile,
		Bus:     bus,
		Balance: bal,
		Monitor: monitor,
		Engine:  engine,
	}, nil
}

// gaitStatus is the telemetry shape for the gait topic.
type gaitStatus struct {
	Running     bool    `json:"running"`
	Direction   string  `json:"direction"`
	UseIK       bool    `json:"use_ik"`
	TurnRate    float64 `json:"turn_rate"`
	LateralRate float64 `json:"lateral_rate"`
	Balance     bool    `json:"balance"`
}

func (r *Robot) gaitStatus() gaitStatus {
	return gaitStatus{
		Running:     r.Engine.IsRunning(),
		Direction:   string(r.Engine.Direction()),
		UseIK:       r.Engine.UseIK(),
		TurnRate:    r.Engine.TurnRate(),
		LateralRate: r.Engine.LateralRate(),
		Balance:     r.Engine.BalanceEnabled(),
	}
}

// RunController is the main control daemon: it wires the robot, runs the
// tilt poll / telemetry loop, and serves the HTTP control surface.
func RunController() error {
	log.Println("starting quadruped controller")

	cfg := config.Get()

	robot, err := NewRobot()
	if err != nil {
		return err
	}

	// Settle into the stand pose before anything else moves.
	if err := robot.Engine.GotoStand(false); err != nil {
		return err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDController)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)

	go telemetryLoop(robot, client)

	return RunControlAPI(robot)
}

// telemetryLoop is the single dedicated poller of the tilt signal: it
// feeds the stability monitor and publishes tilt, stability and gait
// status over MQTT.
func telemetryLoop(robot *Robot, client mqtt.Client) {
	cfg := config.Get()

	ticker := time.NewTicker(time.Duration(cfg.TiltPollInterval) * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		pitch, roll := robot.Balance.GetAngles()
		robot.Monitor.Update(pitch, roll)

		publishJSON(client, cfg.TopicTilt, orientation.Tilt{Pitch: pitch, Roll: roll})
		publishJSON(client, cfg.TopicStability, robot.Monitor.GetStatus())
		publishJSON(client, cfg.TopicGaitStatus, robot.gaitStatus())
	}
}

func publishJSON(client mqtt.Client, topic string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("json marshal error (%s): %v", topic, err)
		return
	}
	if token := client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		log.Printf("MQTT publish error (%s): %v", topic, token.Error())
	}
}
