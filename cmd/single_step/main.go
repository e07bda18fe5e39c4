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
	direction := flag.String("direction", "forward", "gait direction: forward or backward")
	steps := flag.Int("steps", 1, "number of gait cycles to walk")
	flag.Parse()

	log.Println("starting quadruped-computer single-step bench tool")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunSingleStep(*direction, *steps); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
