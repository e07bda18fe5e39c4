// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/quadruped_computer/internal/body"
	"github.com/relabs-tech/quadruped_computer/internal/calibration"
	"github.com/relabs-tech/quadruped_computer/internal/config"
	"github.com/relabs-tech/quadruped_computer/internal/servo"
)

// calibrationSession holds the state of an active servo calibration: one
// channel at a time, jogged live over the raw (uncalibrated) servo path.
// The gait engine must be stopped while a session runs; the session owns
// the servo bus and the profile for its duration.
type calibrationSession struct {
	conn    *websocket.Conn
	mu      sync.Mutex
	profile *calibration.Profile
	bus     servo.Writer

	channel body.Channel
	angle   int // current physical angle of the channel under test
}

// Calibration WebSocket message types
type calWSMessage struct {
	Action  string `json:"action"` // init, select, jog, set_neutral, set_min, set_max, set_direction, mark, next, save, cancel
	Channel int    `json:"channel,omitempty"`
	Delta   int    `json:"delta,omitempty"`
	Value   int    `json:"value,omitempty"`
}

type calWSResponse struct {
	Type    string                        `json:"type"` // channel, angle, servo, complete, error
	Channel int                           `json:"channel,omitempty"`
	Leg     string                        `json:"leg,omitempty"`
	Joint   string                        `json:"joint,omitempty"`
	Angle   int                           `json:"angle,omitempty"`
	Servo   *calibration.ServoCalibration `json:"servo,omitempty"`
	Message string                        `json:"message,omitempty"`
}

// HandleServoCalibrationWS runs the interactive servo calibration loop over
// a WebSocket connection.
func HandleServoCalibrationWS(robot *Robot, w http.ResponseWriter, r *http.Request) {
	if robot.Engine.IsRunning() {
		http.Error(w, "stop the gait before calibrating", http.StatusConflict)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("calibration: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	session := &calibrationSession{
		conn:    conn,
		profile: robot.Profile,
		bus:     robot.Bus,
	}

	// Main message loop
	for {
		var msg calWSMessage
		err := conn.ReadJSON(&msg)
		if err != nil {
			log.Printf("calibration: websocket read error: %v", err)
			break
		}

		session.mu.Lock()
		err = session.handle(msg)
		session.mu.Unlock()
		if err != nil {
			session.sendError(err.Error())
		}

		if msg.Action == "cancel" || msg.Action == "save" {
			return
		}
	}
}

func (s *calibrationSession) handle(msg calWSMessage) error {
	switch msg.Action {
	case "init":
		log.Printf("calibration: session started")
		return s.selectChannel(body.Channel(0))

	case "select":
		ch, err := body.NewChannel(msg.Channel)
		if err != nil {
			return err
		}
		return s.selectChannel(ch)

	case "jog":
		return s.jog(msg.Delta)

	case "set_neutral":
		servoCal := s.profile.Servos[s.channel]
		servoCal.NeutralAngle = s.angle
		s.sendServo(servoCal)

	case "set_min":
		servoCal := s.profile.Servos[s.channel]
		servoCal.MinAngle = s.angle
		s.sendServo(servoCal)

	case "set_max":
		servoCal := s.profile.Servos[s.channel]
		servoCal.MaxAngle = s.angle
		s.sendServo(servoCal)

	case "set_direction":
		if msg.Value != 1 && msg.Value != -1 {
			return fmt.Errorf("direction must be 1 or -1, got %d", msg.Value)
		}
		servoCal := s.profile.Servos[s.channel]
		servoCal.Direction = msg.Value
		s.sendServo(servoCal)

	case "mark":
		servoCal := s.profile.Servos[s.channel]
		if servoCal.MinAngle >= servoCal.MaxAngle {
			return fmt.Errorf("channel %d: min %d must be below max %d",
				s.channel, servoCal.MinAngle, servoCal.MaxAngle)
		}
		servoCal.Calibrated = true
		s.sendServo(servoCal)
		log.Printf("calibration: channel %d (%s %s) marked calibrated",
			s.channel, s.channel.Leg(), s.channel.Joint())

	case "next":
		next := s.channel + 1
		if !next.Valid() {
			return s.complete()
		}
		return s.selectChannel(next)

	case "save":
		return s.complete()

	case "cancel":
		log.Printf("calibration: cancelled by user")

	default:
		return fmt.Errorf("unknown action %q", msg.Action)
	}
	return nil
}

// selectChannel moves the session to a channel and drives it to its current
// neutral so the operator sees which servo is under test.
func (s *calibrationSession) selectChannel(ch body.Channel) error {
	s.channel = ch
	s.angle = s.profile.Servos[ch].NeutralAngle

	if !s.bus.SetServo(ch, s.angle, false) {
		return fmt.Errorf("channel %d: servo write failed", ch)
	}

	s.conn.WriteJSON(calWSResponse{
		Type:    "channel",
		Channel: int(ch),
		Leg:     string(ch.Leg()),
		Joint:   ch.Joint().String(),
		Angle:   s.angle,
		Servo:   s.profile.Servos[ch],
	})
	return nil
}

// jog nudges the channel under test by delta physical degrees, bypassing
// the calibration mapping so raw limits can be probed.
func (s *calibrationSession) jog(delta int) error {
	angle := s.angle + delta
	if angle < 0 {
		angle = 0
	}
	if angle > 180 {
		angle = 180
	}

	if !s.bus.SetServo(s.channel, angle, false) {
		return fmt.Errorf("channel %d: servo write failed", s.channel)
	}
	s.angle = angle

	s.conn.WriteJSON(calWSResponse{
		Type:    "angle",
		Channel: int(s.channel),
		Angle:   angle,
	})
	return nil
}

func (s *calibrationSession) complete() error {
	path := config.Get().CalibrationFile
	if err := s.profile.Save(path); err != nil {
		return fmt.Errorf("save calibration: %w", err)
	}
	log.Printf("calibration: profile saved to %s (fully calibrated: %v)",
		path, s.profile.IsFullyCalibrated())

	s.conn.WriteJSON(calWSResponse{
		Type:    "complete",
		Message: path,
	})
	return nil
}

func (s *calibrationSession) sendServo(servoCal *calibration.ServoCalibration) {
	s.conn.WriteJSON(calWSResponse{
		Type:    "servo",
		Channel: int(s.channel),
		Servo:   servoCal,
	})
}

func (s *calibrationSession) sendError(message string) {
	s.conn.WriteJSON(calWSResponse{
		Type:    "error",
		Message: message,
	})
}
