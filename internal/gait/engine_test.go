package gait

import (
	"errors"
	"testing"

	"github.com/relabs-tech/quadruped_computer/internal/body"
	"github.com/relabs-tech/quadruped_computer/internal/kinematics"
	"github.com/relabs-tech/quadruped_computer/internal/servo"
)

func newTestEngine(t *testing.T, opts Options) (*Engine, *servo.Simulator) {
	t.Helper()
	sim := servo.NewSimulator(nil)
	return New(sim, nil, opts), sim
}

func TestSetStandHeight(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	stand := e.SetStandHeight(40)
	fl := stand[body.FrontLeft]
	if fl.Hip != 90 || fl.Knee != 50 || fl.Ankle != 142 {
		t.Errorf("stand at bend 40 = %+v, want hip 90 knee 50 ankle 142", fl)
	}

	// Clamped both ways.
	stand = e.SetStandHeight(-5)
	if stand[body.FrontLeft].Knee != 90 {
		t.Errorf("bend clamps to 0: knee = %f, want 90", stand[body.FrontLeft].Knee)
	}
	stand = e.SetStandHeight(200)
	if e.KneeBend() != maxKneeBend {
		t.Errorf("bend clamps to %d, got %d", maxKneeBend, e.KneeBend())
	}
	if stand[body.FrontLeft].Knee != float64(90-maxKneeBend) {
		t.Errorf("knee at max bend = %f", stand[body.FrontLeft].Knee)
	}
}

func TestGotoStandWritesAllServos(t *testing.T) {
	e, sim := newTestEngine(t, Options{KneeBend: 40})
	if err := e.GotoStand(false); err != nil {
		t.Fatalf("GotoStand failed: %v", err)
	}

	logical := sim.LogicalAngles()
	for _, leg := range body.Legs() {
		if got := logical[body.ChannelFor(leg, body.Hip)]; got != 90 {
			t.Errorf("%s hip = %d, want 90", leg, got)
		}
		if got := logical[body.ChannelFor(leg, body.Knee)]; got != 50 {
			t.Errorf("%s knee = %d, want 50", leg, got)
		}
		if got := logical[body.ChannelFor(leg, body.Ankle)]; got != 142 {
			t.Errorf("%s ankle = %d, want 142", leg, got)
		}
	}
	if sim.Writes() != body.NumChannels {
		t.Errorf("GotoStand made %d writes, want %d", sim.Writes(), body.NumChannels)
	}
}

func TestGotoStandWhileRunningFails(t *testing.T) {
	e, _ := newTestEngine(t, Options{KneeBend: 40})

	if err := e.Start(Forward); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer e.Stop()

	// The tick loop owns the servo port; a concurrent pose write would
	// corrupt the interpolation state.
	if err := e.GotoStand(false); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("GotoStand while running = %v, want ErrAlreadyRunning", err)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	e, sim := newTestEngine(t, Options{KneeBend: 40})

	if err := e.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Stop while idle = %v, want ErrNotRunning", err)
	}
	if err := e.Start("sideways"); !errors.Is(err, ErrBadDirection) {
		t.Fatalf("Start with bad direction = %v, want ErrBadDirection", err)
	}

	if err := e.Start(Forward); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !e.IsRunning() {
		t.Fatal("engine must report running after Start")
	}
	if err := e.Start(Forward); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start = %v, want ErrAlreadyRunning", err)
	}

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if e.IsRunning() {
		t.Fatal("engine must report idle after Stop")
	}

	// Stop returns the legs to the stand pose.
	logical := sim.LogicalAngles()
	for _, leg := range body.Legs() {
		if got := logical[body.ChannelFor(leg, body.Knee)]; got != 50 {
			t.Errorf("%s knee after stop = %d, want 50", leg, got)
		}
		if got := logical[body.ChannelFor(leg, body.Ankle)]; got != 142 {
			t.Errorf("%s ankle after stop = %d, want 142", leg, got)
		}
	}
}

func TestSingleStep(t *testing.T) {
	e, sim := newTestEngine(t, Options{
		KneeBend: 40,
		Params:   Params{CycleTime: 0.09}, // 3 bench ticks
	})

	if err := e.SingleStep("diagonal"); !errors.Is(err, ErrBadDirection) {
		t.Fatalf("SingleStep with bad direction = %v, want ErrBadDirection", err)
	}

	before := sim.Writes()
	if err := e.SingleStep(Backward); err != nil {
		t.Fatalf("SingleStep failed: %v", err)
	}
	if e.IsRunning() {
		t.Error("SingleStep must not leave the engine running")
	}
	if e.Direction() != Backward {
		t.Errorf("direction = %s, want backward", e.Direction())
	}

	// Stand, three ticks, return to stand: at least 5 pose writes.
	if got := sim.Writes() - before; got < 5*body.NumChannels {
		t.Errorf("SingleStep made %d writes, want at least %d", got, 5*body.NumChannels)
	}

	logical := sim.LogicalAngles()
	if logical[body.ChannelFor(body.FrontLeft, body.Knee)] != 50 {
		t.Error("SingleStep must end in the stand pose")
	}
}

func TestRateClamping(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	e.SetTurnRate(3)
	if e.TurnRate() != 1 {
		t.Errorf("turn rate = %f, want clamp to 1", e.TurnRate())
	}
	e.SetTurnRate(-3)
	if e.TurnRate() != -1 {
		t.Errorf("turn rate = %f, want clamp to -1", e.TurnRate())
	}
	e.SetLateralRate(0.25)
	if e.LateralRate() != 0.25 {
		t.Errorf("lateral rate = %f", e.LateralRate())
	}
}

func TestSetParamsPatch(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	height := 20
	speed := 2.0
	e.SetParams(ParamsPatch{StepHeight: &height, Speed: &speed})
	p := e.GetParams()
	if p.StepHeight != 20 || p.Speed != 2.0 {
		t.Errorf("patched params = %+v", p)
	}
	if p.CycleTime != 1.0 {
		t.Errorf("unpatched cycle time changed: %f", p.CycleTime)
	}

	// Invalid values are ignored, not applied.
	badSpeed := -1.0
	e.SetParams(ParamsPatch{Speed: &badSpeed})
	if e.GetParams().Speed != 2.0 {
		t.Errorf("negative speed must be rejected, got %f", e.GetParams().Speed)
	}
}

func TestIKModeUnavailableWithoutFactory(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	if err := e.SetMode(true); !errors.Is(err, ErrIKUnavailable) {
		t.Fatalf("SetMode(true) without factory = %v, want ErrIKUnavailable", err)
	}
	if e.UseIK() {
		t.Error("engine must stay in angle mode")
	}
}

func TestIKModeLazyConstruction(t *testing.T) {
	built := 0
	e, _ := newTestEngine(t, Options{
		KneeBend: 40,
		SolverFactory: func() (kinematics.Solver, error) {
			built++
			return kinematics.NewMockSolver(0.1, 40), nil
		},
	})

	if built != 0 {
		t.Fatal("solver must not be built before IK mode is requested")
	}
	if err := e.SetMode(true); err != nil {
		t.Fatalf("SetMode(true) failed: %v", err)
	}
	if !e.UseIK() || built != 1 {
		t.Fatalf("IK mode not active (built=%d)", built)
	}

	// Toggling reuses the solver.
	if err := e.SetMode(false); err != nil {
		t.Fatalf("SetMode(false) failed: %v", err)
	}
	if err := e.SetMode(true); err != nil {
		t.Fatalf("re-enabling IK failed: %v", err)
	}
	if built != 1 {
		t.Errorf("solver rebuilt %d times, want lazy reuse", built)
	}
}

func TestSetParamsReplacesTrajectory(t *testing.T) {
	e, _ := newTestEngine(t, Options{
		KneeBend: 40,
		SolverFactory: func() (kinematics.Solver, error) {
			return kinematics.NewMockSolver(0.1, 40), nil
		},
	})
	if err := e.SetMode(true); err != nil {
		t.Fatalf("SetMode(true) failed: %v", err)
	}

	e.mu.Lock()
	old := e.traj
	e.mu.Unlock()

	height := 0.05
	e.SetParams(ParamsPatch{IKStepHeight: &height})

	// The generator the tick loop may still hold must not change under it.
	if old.Config.StepHeight != 0.03 {
		t.Errorf("previous trajectory mutated: step height = %f, want 0.03", old.Config.StepHeight)
	}

	e.mu.Lock()
	cur := e.traj
	e.mu.Unlock()
	if cur == old {
		t.Fatal("trajectory must be replaced, not updated in place")
	}
	if cur.Config.StepHeight != 0.05 || cur.Config.StrideLength != 0.04 {
		t.Errorf("new trajectory config = %+v, want step 0.05 stride 0.04", cur.Config)
	}
}

func TestIKModeFactoryFailure(t *testing.T) {
	boom := errors.New("no geometry")
	e, _ := newTestEngine(t, Options{
		SolverFactory: func() (kinematics.Solver, error) { return nil, boom },
	})
	if err := e.SetMode(true); !errors.Is(err, boom) {
		t.Fatalf("SetMode(true) = %v, want factory error", err)
	}
	if e.UseIK() {
		t.Error("failed factory must leave angle mode active")
	}
}

func TestBalanceUnavailable(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	if err := e.EnableBalance(true, false); !errors.Is(err, ErrBalanceUnavailable) {
		t.Fatalf("EnableBalance without controller = %v, want ErrBalanceUnavailable", err)
	}
	if err := e.SetBalanceKp(1.0); !errors.Is(err, ErrBalanceUnavailable) {
		t.Fatalf("SetBalanceKp without controller = %v, want ErrBalanceUnavailable", err)
	}
}
