package body

import "testing"

func TestChannelFor(t *testing.T) {
	cases := []struct {
		leg   Leg
		joint Joint
		want  Channel
	}{
		{FrontLeft, Hip, 0},
		{FrontLeft, Knee, 1},
		{FrontLeft, Ankle, 2},
		{FrontRight, Hip, 3},
		{RearLeft, Knee, 7},
		{RearRight, Hip, 9},
		{RearRight, Ankle, 11},
	}
	for _, c := range cases {
		if got := ChannelFor(c.leg, c.joint); got != c.want {
			t.Errorf("ChannelFor(%s, %s) = %d, want %d", c.leg, c.joint, got, c.want)
		}
	}
}

func TestChannelRoundTrip(t *testing.T) {
	for ch := Channel(0); ch < NumChannels; ch++ {
		if got := ChannelFor(ch.Leg(), ch.Joint()); got != ch {
			t.Errorf("channel %d round-tripped to %d via %s/%s", ch, got, ch.Leg(), ch.Joint())
		}
	}
}

func TestNewChannelValidation(t *testing.T) {
	if _, err := NewChannel(-1); err == nil {
		t.Error("NewChannel(-1) should fail")
	}
	if _, err := NewChannel(12); err == nil {
		t.Error("NewChannel(12) should fail")
	}
	ch, err := NewChannel(11)
	if err != nil {
		t.Fatalf("NewChannel(11) failed: %v", err)
	}
	if !ch.Valid() {
		t.Error("channel 11 should be valid")
	}
}

func TestLegSides(t *testing.T) {
	if !FrontLeft.IsLeft() || !RearLeft.IsLeft() {
		t.Error("FL and RL must be left legs")
	}
	if FrontRight.IsLeft() || RearRight.IsLeft() {
		t.Error("FR and RR must not be left legs")
	}
	if !FrontLeft.IsFront() || !FrontRight.IsFront() {
		t.Error("FL and FR must be front legs")
	}
	if RearLeft.IsFront() || RearRight.IsFront() {
		t.Error("RL and RR must not be front legs")
	}
}
