// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/quadruped_computer/internal/app"
	"github.com/relabs-tech/quadruped_computer/internal/config"
)

func main() {
	configPath := flag.String("config", "./quadruped_config.txt", "path to configuration file")
	samples := flag.Int("samples", 30, "number of readings to average for the zero point")
	flag.Parse()

	log.Println("starting quadruped-computer balance calibration")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunBalanceCalibration(*samples); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
