package app

import (
	"fmt"
	"log"

	"github.com/relabs-tech/quadruped_computer/internal/body"
	"github.com/relabs-tech/quadruped_computer/internal/gait"
	"github.com/relabs-tech/quadruped_computer/internal/servo"
)

// RunSingleStep walks exactly one gait cycle and reports the final servo
// angles. Bench tool for tuning gait parameters without the full daemon.
func RunSingleStep(direction string, steps int) error {
	robot, err := NewRobot()
	if err != nil {
		return err
	}

	dir := gait.Direction(direction)
	if steps < 1 {
		steps = 1
	}

	log.Printf("single step: direction=%s steps=%d params=%+v",
		dir, steps, robot.Engine.GetParams())

	if err := robot.Engine.GotoStand(false); err != nil {
		return err
	}

	for i := 0; i < steps; i++ {
		if err := robot.Engine.SingleStep(dir); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		log.Printf("single step: completed cycle %d/%d", i+1, steps)
	}

	if sim, ok := robot.Bus.(*servo.Simulator); ok {
		fmt.Printf("servo writes: %d\n", sim.Writes())
		logical := sim.LogicalAngles()
		physical := sim.PhysicalAngles()
		for _, leg := range body.Legs() {
			for _, joint := range []body.Joint{body.Hip, body.Knee, body.Ankle} {
				ch := body.ChannelFor(leg, joint)
				fmt.Printf("  %s %-5s ch=%2d logical=%3d physical=%3d\n",
					leg, joint, ch, logical[ch], physical[ch])
			}
		}
	} else {
		fmt.Println("final stand pose:")
		printStandAngles(robot.Engine.GetStandAngles())
	}

	return nil
}
