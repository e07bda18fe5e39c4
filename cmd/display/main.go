package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/quadruped_computer/internal/app"
	"github.com/relabs-tech/quadruped_computer/internal/config"
)

func main() {
	configPath := flag.String("config", "./quadruped_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting quadruped-computer status display (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunDisplay(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
