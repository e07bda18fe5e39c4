// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/relabs-tech/quadruped_computer/internal/body"
	"github.com/relabs-tech/quadruped_computer/internal/gait"
	"github.com/relabs-tech/quadruped_computer/internal/kinematics"
)

// RunConsole is an interactive bench console: it wires the robot from the
// active config (typically with the simulated servo bus) and drives the
// gait engine from stdin commands.
func RunConsole() error {
	robot, err := NewRobot()
	if err != nil {
		return err
	}

	if err := robot.Engine.GotoStand(false); err != nil {
		return err
	}
	fmt.Println("quadruped console. Type 'help' for commands.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "help":
			printConsoleHelp()

		case "start":
			dir := gait.Forward
			if len(args) > 0 {
				dir = gait.Direction(args[0])
			}
			reportErr(robot.Engine.Start(dir))

		case "stop":
			reportErr(robot.Engine.Stop())

		case "step":
			dir := gait.Forward
			if len(args) > 0 {
				dir = gait.Direction(args[0])
			}
			reportErr(robot.Engine.SingleStep(dir))

		case "turn":
			rate, ok := parseRate(args)
			if !ok {
				continue
			}
			robot.Engine.SetTurnRate(rate)
			fmt.Printf("turn rate = %.2f\n", robot.Engine.TurnRate())

		case "lat":
			rate, ok := parseRate(args)
			if !ok {
				continue
			}
			robot.Engine.SetLateralRate(rate)
			fmt.Printf("lateral rate = %.2f\n", robot.Engine.LateralRate())

		case "height":
			if len(args) != 1 {
				fmt.Println("usage: height <knee_bend>")
				continue
			}
			bend, err := strconv.Atoi(args[0])
			if err != nil {
				fmt.Printf("bad knee bend %q\n", args[0])
				continue
			}
			printStandAngles(robot.Engine.SetStandHeight(bend))

		case "stand":
			if err := robot.Engine.GotoStand(false); err != nil {
				reportErr(err)
				continue
			}
			fmt.Println("standing")

		case "ik":
			if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
				fmt.Println("usage: ik on|off")
				continue
			}
			reportErr(robot.Engine.SetMode(args[0] == "on"))

		case "balance":
			if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
				fmt.Println("usage: balance on|off")
				continue
			}
			reportErr(robot.Engine.EnableBalance(args[0] == "on", args[0] == "on"))

		case "kp":
			if len(args) != 1 {
				fmt.Println("usage: kp <gain>")
				continue
			}
			kp, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				fmt.Printf("bad gain %q\n", args[0])
				continue
			}
			robot.Balance.SetKp(kp)
			fmt.Printf("kp = %.2f\n", robot.Balance.Kp())

		case "status":
			pitch, roll := robot.Balance.GetAngles()
			g := robot.gaitStatus()
			s := robot.Monitor.GetStatus()
			fmt.Printf("gait:      running=%v dir=%s turn=%.2f lat=%.2f ik=%v balance=%v\n",
				g.Running, g.Direction, g.TurnRate, g.LateralRate, g.UseIK, g.Balance)
			fmt.Printf("tilt:      pitch=%.2f roll=%.2f\n", pitch, roll)
			fmt.Printf("stability: %s (%.1fs in state)\n", s.State, s.TimeInState)

		case "angles":
			printStandAngles(robot.Engine.GetStandAngles())

		case "quit", "exit":
			if robot.Engine.IsRunning() {
				if err := robot.Engine.Stop(); err != nil {
					log.Printf("console: stop on exit: %v", err)
				}
			}
			fmt.Println("bye")
			return nil

		default:
			fmt.Printf("unknown command %q, try 'help'\n", cmd)
		}
	}
	return scanner.Err()
}

func printConsoleHelp() {
	fmt.Println(`commands:
  start [forward|backward]   start the trot gait
  stop                       stop the gait and return to stand
  step [forward|backward]    walk a single gait cycle
  turn <-1..1>               set the turn rate
  lat <-1..1>                set the lateral rate
  height <knee_bend>         set the standing knee bend (0-80)
  stand                      move to the stand pose
  ik on|off                  toggle kinematics mode
  balance on|off             toggle tilt compensation
  kp <gain>                  set the balance gain (0-2)
  status                     print gait, tilt and stability state
  angles                     print the stand pose per joint
  quit                       stop and exit`)
}

func printStandAngles(stand map[body.Leg]kinematics.LegAngles) {
	for _, leg := range body.Legs() {
		a := stand[leg]
		fmt.Printf("  %s: hip=%3.0f knee=%3.0f ankle=%3.0f\n", leg, a.Hip, a.Knee, a.Ankle)
	}
}

func parseRate(args []string) (float64, bool) {
	if len(args) != 1 {
		fmt.Println("usage: <command> <-1..1>")
		return 0, false
	}
	rate, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		fmt.Printf("bad rate %q\n", args[0])
		return 0, false
	}
	return rate, true
}

func reportErr(err error) {
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println("ok")
}
