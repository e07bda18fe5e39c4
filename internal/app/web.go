package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/quadruped_computer/internal/config"
	"github.com/relabs-tech/quadruped_computer/internal/gait"
	"github.com/relabs-tech/quadruped_computer/internal/orientation"
	"github.com/relabs-tech/quadruped_computer/internal/stability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local control surface, no origin restriction
	},
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func writeCommandResult(w http.ResponseWriter, err error) {
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, gait.ErrAlreadyRunning) || errors.Is(err, gait.ErrNotRunning) ||
			errors.Is(err, gait.ErrBadDirection) || errors.Is(err, gait.ErrBalanceUnavailable) ||
			errors.Is(err, gait.ErrIKUnavailable) {
			status = http.StatusConflict
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// RunControlAPI serves the HTTP/WebSocket control surface wrapping the
// gait engine, balance controller and stability monitor.
func RunControlAPI(robot *Robot) error {
	cfg := config.Get()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		pitch, roll := robot.Balance.GetAngles()
		writeJSON(w, map[string]interface{}{
			"gait":       robot.gaitStatus(),
			"tilt":       orientation.Tilt{Pitch: pitch, Roll: roll},
			"stability":  robot.Monitor.GetStatus(),
			"calibrated": robot.Profile.IsFullyCalibrated(),
			"simulation": robot.Balance.SimulationMode(),
		})
	})

	mux.HandleFunc("/api/gait/start", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Direction string `json:"direction"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Direction == "" {
			req.Direction = string(gait.Forward)
		}
		writeCommandResult(w, robot.Engine.Start(gait.Direction(req.Direction)))
	})

	mux.HandleFunc("/api/gait/stop", func(w http.ResponseWriter, r *http.Request) {
		writeCommandResult(w, robot.Engine.Stop())
	})

	mux.HandleFunc("/api/gait/step", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Direction string `json:"direction"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Direction == "" {
			req.Direction = string(gait.Forward)
		}
		writeCommandResult(w, robot.Engine.SingleStep(gait.Direction(req.Direction)))
	})

	mux.HandleFunc("/api/gait/params", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, robot.Engine.GetParams())
		case http.MethodPost:
			var patch gait.ParamsPatch
			if !decodeBody(w, r, &patch) {
				return
			}
			robot.Engine.SetParams(patch)
			writeJSON(w, robot.Engine.GetParams())
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/gait/turn", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Rate float64 `json:"rate"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		robot.Engine.SetTurnRate(req.Rate)
		writeJSON(w, map[string]float64{"rate": robot.Engine.TurnRate()})
	})

	mux.HandleFunc("/api/gait/lateral", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Rate float64 `json:"rate"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		robot.Engine.SetLateralRate(req.Rate)
		writeJSON(w, map[string]float64{"rate": robot.Engine.LateralRate()})
	})

	mux.HandleFunc("/api/gait/stand_height", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			KneeBend int `json:"knee_bend"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		writeJSON(w, robot.Engine.SetStandHeight(req.KneeBend))
	})

	mux.HandleFunc("/api/gait/stand_angles", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, robot.Engine.GetStandAngles())
	})

	mux.HandleFunc("/api/gait/stand", func(w http.ResponseWriter, r *http.Request) {
		writeCommandResult(w, robot.Engine.GotoStand(false))
	})

	mux.HandleFunc("/api/gait/mode", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, map[string]bool{"use_ik": robot.Engine.UseIK()})
		case http.MethodPost:
			var req struct {
				UseIK bool `json:"use_ik"`
			}
			if !decodeBody(w, r, &req) {
				return
			}
			writeCommandResult(w, robot.Engine.SetMode(req.UseIK))
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/balance/enable", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Enable    bool `json:"enable"`
			Calibrate bool `json:"calibrate"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		writeCommandResult(w, robot.Engine.EnableBalance(req.Enable, req.Calibrate))
	})

	mux.HandleFunc("/api/balance/kp", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Kp float64 `json:"kp"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		robot.Balance.SetKp(req.Kp)
		writeJSON(w, map[string]float64{"kp": robot.Balance.Kp()})
	})

	mux.HandleFunc("/api/balance/angles", func(w http.ResponseWriter, r *http.Request) {
		pitch, roll := robot.Balance.GetAngles()
		pitchOffset, rollOffset := robot.Balance.Offsets()
		writeJSON(w, map[string]interface{}{
			"pitch":        pitch,
			"roll":         roll,
			"pitch_offset": pitchOffset,
			"roll_offset":  rollOffset,
			"kp":           robot.Balance.Kp(),
			"enabled":      robot.Engine.BalanceEnabled(),
			"simulation":   robot.Balance.SimulationMode(),
		})
	})

	mux.HandleFunc("/api/stability", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, robot.Monitor.GetStatus())
	})

	mux.HandleFunc("/api/stability/statistics", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, robot.Monitor.GetStateStatistics())
	})

	mux.HandleFunc("/api/stability/thresholds", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, robot.Monitor.GetStatus().Thresholds)
		case http.MethodPost:
			var t stability.Thresholds
			if !decodeBody(w, r, &t) {
				return
			}
			robot.Monitor.SetThresholds(t)
			writeJSON(w, t)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/stability/reset", func(w http.ResponseWriter, r *http.Request) {
		robot.Monitor.Reset()
		writeJSON(w, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/api/calibration", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, robot.Profile)
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleTelemetryWS(robot, w, r)
	})

	mux.HandleFunc("/ws/calibration", func(w http.ResponseWriter, r *http.Request) {
		HandleServoCalibrationWS(robot, w, r)
	})

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("control API listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

// handleTelemetryWS streams a telemetry frame every 100ms until the client
// disconnects.
func handleTelemetryWS(robot *Robot, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		pitch, roll := robot.Balance.GetAngles()
		frame := map[string]interface{}{
			"tilt":      orientation.Tilt{Pitch: pitch, Roll: roll},
			"stability": robot.Monitor.GetStatus(),
			"gait":      robot.gaitStatus(),
		}
		if err := conn.WriteJSON(frame); err != nil {
			log.Printf("websocket write error: %v", err)
			return
		}
	}
}
