package orientation

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestTiltLevel(t *testing.T) {
	tilt := ComputeTiltFromAccel(0, 0, 1)
	if !almostEqual(tilt.Pitch, 0) || !almostEqual(tilt.Roll, 0) {
		t.Errorf("level body must read zero tilt, got pitch=%f roll=%f", tilt.Pitch, tilt.Roll)
	}
}

func TestTiltPitch(t *testing.T) {
	// Gravity split equally between y and z: 45 degrees nose up.
	g := 1 / math.Sqrt2
	tilt := ComputeTiltFromAccel(0, g, g)
	if !almostEqual(tilt.Pitch, 45) {
		t.Errorf("pitch = %f, want 45", tilt.Pitch)
	}
	if !almostEqual(tilt.Roll, 0) {
		t.Errorf("roll = %f, want 0", tilt.Roll)
	}
}

func TestTiltRoll(t *testing.T) {
	g := 1 / math.Sqrt2
	tilt := ComputeTiltFromAccel(-g, 0, g)
	if !almostEqual(tilt.Roll, 45) {
		t.Errorf("roll = %f, want 45", tilt.Roll)
	}
	if !almostEqual(tilt.Pitch, 0) {
		t.Errorf("pitch = %f, want 0", tilt.Pitch)
	}
}

func TestTiltScaleInvariant(t *testing.T) {
	// Only the ratios matter: raw counts and g-units must agree.
	a := ComputeTiltFromAccel(0.1, 0.2, 0.96)
	b := ComputeTiltFromAccel(1638, 3277, 15729)
	if math.Abs(a.Pitch-b.Pitch) > 0.01 || math.Abs(a.Roll-b.Roll) > 0.01 {
		t.Errorf("scaled inputs diverged: %+v vs %+v", a, b)
	}
}

func TestMockSourceConsistent(t *testing.T) {
	src := NewMockSource()
	for i := 0; i < 20; i++ {
		ax, ay, az, err := src.ReadAccel()
		if err != nil {
			t.Fatalf("mock source error: %v", err)
		}
		mag := math.Sqrt(ax*ax + ay*ay + az*az)
		if mag < 0.9 || mag > 1.1 {
			t.Errorf("sample %d: |a| = %f, want ~1g", i, mag)
		}
		tilt := ComputeTiltFromAccel(ax, ay, az)
		if math.Abs(tilt.Pitch) > 10 || math.Abs(tilt.Roll) > 10 {
			t.Errorf("sample %d: mock rocking out of range: %+v", i, tilt)
		}
	}
}
