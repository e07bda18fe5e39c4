package app

import (
	"fmt"
	"log"

	"github.com/relabs-tech/quadruped_computer/internal/balance"
	"github.com/relabs-tech/quadruped_computer/internal/config"
	"github.com/relabs-tech/quadruped_computer/internal/stability"
)

// RunBalanceCalibration captures the level-surface zero point of the tilt
// signal. Place the robot on a flat surface before running; the captured
// offsets are subtracted from every subsequent reading.
func RunBalanceCalibration(samples int) error {
	cfg := config.Get()

	ctrl := balance.New(buildAccelSource())
	ctrl.SetKp(cfg.BalanceKp)
	ctrl.SetGains(cfg.BalancePitchGain, cfg.BalanceRollGain)
	ctrl.SetFilterAlpha(cfg.BalanceFilterAlpha)

	if ctrl.SimulationMode() {
		log.Println("calibrate: no IMU available, running against the simulated source")
	}

	rawPitch, rawRoll := ctrl.ReadRawAngles()
	fmt.Printf("before: pitch=%.2f roll=%.2f\n", rawPitch, rawRoll)

	log.Printf("calibrate: averaging %d samples, keep the robot still", samples)
	ctrl.Calibrate(samples)

	pitchOffset, rollOffset := ctrl.Offsets()
	fmt.Printf("offsets: pitch=%.2f roll=%.2f\n", pitchOffset, rollOffset)

	pitch, roll := ctrl.GetAngles()
	fmt.Printf("after:  pitch=%.2f roll=%.2f\n", pitch, roll)

	state := stability.NewMonitor(stability.Thresholds{
		WarningPitch:   cfg.StabilityWarningPitch,
		WarningRoll:    cfg.StabilityWarningRoll,
		CriticalPitch:  cfg.StabilityCriticalPitch,
		CriticalRoll:   cfg.StabilityCriticalRoll,
		EmergencyPitch: cfg.StabilityEmergencyPitch,
		EmergencyRoll:  cfg.StabilityEmergencyRoll,
	}).Update(pitch, roll)
	fmt.Printf("stability after calibration: %s\n", state)

	return nil
}
