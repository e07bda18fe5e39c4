package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/quadruped_computer/internal/config"
	"github.com/relabs-tech/quadruped_computer/internal/orientation"
	"github.com/relabs-tech/quadruped_computer/internal/stability"
)

// displayData holds the latest telemetry for the status display.
type displayData struct {
	mu sync.RWMutex

	tilt     orientation.Tilt
	haveTilt bool

	stab     stability.Status
	haveStab bool

	gait     gaitStatus
	haveGait bool
}

// RunDisplay drives the SSD1306 status display from the controller's MQTT
// telemetry: pitch/roll on the upper half, stability state and gait status
// below.
func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: initialized 128x64 panel")

	if err := showSplash(dev); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &displayData{}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := subscribeTelemetry(client, data, cfg); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		// Read data without copying the mutex
		data.mu.RLock()
		snapshot := displayData{
			tilt:     data.tilt,
			haveTilt: data.haveTilt,
			stab:     data.stab,
			haveStab: data.haveStab,
			gait:     data.gait,
			haveGait: data.haveGait,
		}
		data.mu.RUnlock()

		if err := updateStatusDisplay(dev, &snapshot); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

func subscribeTelemetry(client mqtt.Client, data *displayData, cfg *config.Config) error {
	tiltToken := client.Subscribe(cfg.TopicTilt, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var t orientation.Tilt
		if err := json.Unmarshal(msg.Payload(), &t); err != nil {
			log.Printf("display: tilt unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.tilt = t
		data.haveTilt = true
		data.mu.Unlock()
	})
	tiltToken.Wait()
	if tiltToken.Error() != nil {
		return tiltToken.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicTilt)

	stabToken := client.Subscribe(cfg.TopicStability, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s stability.Status
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("display: stability unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.stab = s
		data.haveStab = true
		data.mu.Unlock()
	})
	stabToken.Wait()
	if stabToken.Error() != nil {
		return stabToken.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicStability)

	gaitToken := client.Subscribe(cfg.TopicGaitStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var g gaitStatus
		if err := json.Unmarshal(msg.Payload(), &g); err != nil {
			log.Printf("display: gait unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.gait = g
		data.haveGait = true
		data.mu.Unlock()
	})
	gaitToken.Wait()
	if gaitToken.Error() != nil {
		return gaitToken.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicGaitStatus)

	return nil
}

func updateStatusDisplay(dev *ssd1306.Dev, data *displayData) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	if !data.haveTilt {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("Quadruped"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
		return dev.Draw(dev.Bounds(), img, image.Point{})
	}

	drawer.Dot = fixed.P(0, 13)
	drawer.DrawBytes([]byte(fmt.Sprintf("P: %6.1f", data.tilt.Pitch)))

	drawer.Dot = fixed.P(0, 26)
	drawer.DrawBytes([]byte(fmt.Sprintf("R: %6.1f", data.tilt.Roll)))

	if data.haveStab {
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte(fmt.Sprintf("S: %s", data.stab.State)))
	}

	if data.haveGait {
		gaitLine := "Idle"
		if data.gait.Running {
			gaitLine = fmt.Sprintf("Trot %s", data.gait.Direction)
		}
		drawer.Dot = fixed.P(0, 52)
		drawer.DrawBytes([]byte(gaitLine))
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func showSplash(dev *ssd1306.Dev) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := 0; i < 1024; i++ {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("Quadruped Pi"))

	drawer.Dot = fixed.P(5, 43)
	drawer.DrawBytes([]byte("Starting up"))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
