package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/quadruped_computer/internal/config"
	"github.com/relabs-tech/quadruped_computer/internal/orientation"
	"github.com/relabs-tech/quadruped_computer/internal/stability"
)

// RunConsoleMQTT subscribes to the controller's telemetry topics and prints
// each frame to stdout. Useful for watching a robot on the bench without
// opening the web surface.
func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Subscribe to tilt
	tiltToken := client.Subscribe(cfg.TopicTilt, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var t orientation.Tilt
		if err := json.Unmarshal(msg.Payload(), &t); err != nil {
			log.Printf("console: tilt unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[TILT]  PITCH=%6.2f  ROLL=%6.2f\n",
			t.Pitch, t.Roll,
		)
	})
	tiltToken.Wait()
	if tiltToken.Error() != nil {
		return tiltToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicTilt)

	// Subscribe to stability status
	stabToken := client.Subscribe(cfg.TopicStability, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s stability.Status
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: stability unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[STAB]  state=%-9s pitch=%6.2f roll=%6.2f in_state=%6.1fs\n",
			s.State, s.Pitch, s.Roll, s.TimeInState,
		)
	})
	stabToken.Wait()
	if stabToken.Error() != nil {
		return stabToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicStability)

	// Subscribe to gait status
	gaitToken := client.Subscribe(cfg.TopicGaitStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var g gaitStatus
		if err := json.Unmarshal(msg.Payload(), &g); err != nil {
			log.Printf("console: gait unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[GAIT]  running=%-5v dir=%-8s turn=%5.2f lateral=%5.2f ik=%v balance=%v\n",
			g.Running, g.Direction, g.TurnRate, g.LateralRate, g.UseIK, g.Balance,
		)
	})
	gaitToken.Wait()
	if gaitToken.Error() != nil {
		return gaitToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicGaitStatus)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
