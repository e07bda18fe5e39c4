package trajectory

import (
	"math"
	"testing"
)

func TestSwingEndpoints(t *testing.T) {
	tr := New(DefaultConfig())
	nx, ny, nz := 0.0, -0.1, 0.05

	x0, y0, z0 := tr.SwingPosition(0, nx, ny, nz)
	if math.Abs(x0-(nx-0.02)) > 1e-9 {
		t.Errorf("swing start x = %f, want half a stride behind neutral", x0)
	}
	if math.Abs(y0-ny) > 1e-9 || z0 != nz {
		t.Errorf("swing start must be on the ground at neutral height: y=%f z=%f", y0, z0)
	}

	x1, y1, _ := tr.SwingPosition(1, nx, ny, nz)
	if math.Abs(x1-(nx+0.02)) > 1e-9 {
		t.Errorf("swing end x = %f, want half a stride ahead of neutral", x1)
	}
	if math.Abs(y1-ny) > 1e-9 {
		t.Errorf("swing end y = %f, want back on the ground", y1)
	}

	_, yMid, _ := tr.SwingPosition(0.5, nx, ny, nz)
	if math.Abs(yMid-(ny+0.03)) > 1e-9 {
		t.Errorf("mid-swing lift = %f, want neutral + step height", yMid)
	}
}

func TestStanceSweepsBackward(t *testing.T) {
	tr := New(Config{StepHeight: 0.05, StrideLength: 0.08})
	nx, ny, nz := 0.0, -0.12, -0.05

	x0, y0, _ := tr.StancePosition(0, nx, ny, nz)
	x1, y1, _ := tr.StancePosition(1, nx, ny, nz)
	if x0 <= x1 {
		t.Errorf("stance must sweep front to back: x(0)=%f x(1)=%f", x0, x1)
	}
	if math.Abs(x0-(nx+0.04)) > 1e-9 || math.Abs(x1-(nx-0.04)) > 1e-9 {
		t.Errorf("stance endpoints = %f, %f", x0, x1)
	}
	if y0 != ny || y1 != ny {
		t.Error("stance must keep the foot at ground height")
	}
}

func TestStanceMirrorsSwing(t *testing.T) {
	tr := New(DefaultConfig())
	for _, phase := range []float64{0, 0.25, 0.5, 0.75, 1} {
		sx, _, _ := tr.SwingPosition(phase, 0, 0, 0)
		tx, _, _ := tr.StancePosition(phase, 0, 0, 0)
		if math.Abs(sx+tx) > 1e-9 {
			t.Errorf("phase %.2f: swing x %f and stance x %f must mirror", phase, sx, tx)
		}
	}
}
