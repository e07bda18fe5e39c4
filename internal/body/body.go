// Package body defines the fixed leg/joint/channel model of the quadruped:
// four legs with three joints each, mapped onto PWM channels 0-11.
package body

import "fmt"

// Leg identifies one of the four legs.
type Leg string

const (
	FrontLeft  Leg = "FL"
	FrontRight Leg = "FR"
	RearLeft   Leg = "RL"
	RearRight  Leg = "RR"
)

// Legs returns all legs in channel order (FL, FR, RL, RR).
func Legs() []Leg {
	return []Leg{FrontLeft, FrontRight, RearLeft, RearRight}
}

// Joint identifies one joint within a leg.
type Joint int

const (
	Hip Joint = iota
	Knee
	Ankle
)

// NumChannels is the number of servo channels driven by the controller.
const NumChannels = 12

// Channel is a servo channel index in [0, NumChannels).
type Channel int

// legIndex maps each leg to its block of three consecutive channels.
var legIndex = map[Leg]int{
	FrontLeft:  0,
	FrontRight: 1,
	RearLeft:   2,
	RearRight:  3,
}

// ChannelFor returns the servo channel for a leg/joint pair.
// channel = 3*index(leg) + index(joint), so FL hip=0 ... RR ankle=11.
func ChannelFor(leg Leg, joint Joint) Channel {
	return Channel(3*legIndex[leg] + int(joint))
}

// NewChannel validates a raw channel index.
func NewChannel(n int) (Channel, error) {
	if n < 0 || n >= NumChannels {
		return 0, fmt.Errorf("channel %d out of range [0,%d)", n, NumChannels)
	}
	return Channel(n), nil
}

// Valid reports whether the channel is within the driven range.
func (c Channel) Valid() bool {
	return c >= 0 && c < NumChannels
}

// Leg returns the leg this channel belongs to.
func (c Channel) Leg() Leg {
	return Legs()[int(c)/3]
}

// Joint returns the joint this channel drives.
func (c Channel) Joint() Joint {
	return Joint(int(c) % 3)
}

// IsLeft reports whether the leg is on the left side of the body.
// Left and right legs mirror each other; calibration direction and the
// lateral stepping term both depend on this.
func (l Leg) IsLeft() bool {
	return l == FrontLeft || l == RearLeft
}

// IsFront reports whether the leg is a front leg. Front legs receive the
// full pitch correction from the balance controller, rear legs half.
func (l Leg) IsFront() bool {
	return l == FrontLeft || l == FrontRight
}

func (j Joint) String() string {
	switch j {
	case Hip:
		return "hip"
	case Knee:
		return "knee"
	case Ankle:
		return "ankle"
	}
	return "unknown"
}
