package gait

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/quadruped_computer/internal/balance"
	"github.com/relabs-tech/quadruped_computer/internal/body"
	"github.com/relabs-tech/quadruped_computer/internal/kinematics"
	"github.com/relabs-tech/quadruped_computer/internal/servo"
	"github.com/relabs-tech/quadruped_computer/internal/trajectory"
)

// pairA and pairB are the diagonal trot pairs; A swings first.
var (
	pairA = []body.Leg{body.FrontLeft, body.RearRight}
	pairB = []body.Leg{body.FrontRight, body.RearLeft}
)

// SolverFactory lazily constructs the IK solver when the engine first
// switches into IK mode.
type SolverFactory func() (kinematics.Solver, error)

// Options configure a new engine. Zero values select the shipped defaults.
type Options struct {
	Params        Params
	KneeBend      int              // standing knee bend, degrees
	InterpFactor  float64          // per-tick blend toward target, 1.0 = direct
	RearAnkleComp map[body.Leg]int // fixed rear-leg ankle correction
	SolverFactory SolverFactory
}

// Engine owns the trot state machine and the real-time tick loop. The
// loop goroutine is the only writer of the interpolation state and the
// only caller of the servo port while running; all setters are safe to
// call concurrently from request-handling goroutines.
type Engine struct {
	writer  servo.Writer
	balance *balance.Controller

	mu            sync.Mutex
	params        Params
	direction     Direction
	turnRate      float64
	lateralRate   float64
	useIK         bool
	solver        kinematics.Solver
	traj          *trajectory.FootTrajectory
	solverFactory SolverFactory
	useBalance    bool
	kneeBend      int
	rearAnkleComp map[body.Leg]int
	stand         map[body.Leg]kinematics.LegAngles
	interpFactor  float64

	runMu   sync.Mutex // serializes Start/Stop/SingleStep
	running bool       // guarded by mu (read by Status) and runMu (transitions)
	stopCh  chan struct{}
	doneCh  chan struct{}

	// Owned by whichever goroutine currently drives the servos; the
	// lifecycle guarantees there is at most one at a time.
	currentAngles map[body.Channel]float64
	ikFailing     bool
}

// New creates an engine in the Idle state. The balance controller may be
// nil, in which case balance can never be enabled.
func New(writer servo.Writer, bal *balance.Controller, opts Options) *Engine {
	kneeBend := opts.KneeBend
	if kneeBend <= 0 {
		kneeBend = 40
	}
	if kneeBend > maxKneeBend {
		kneeBend = maxKneeBend
	}

	params := opts.Params
	if params.CycleTime <= 0 {
		params.CycleTime = 1.0
	}
	if params.Speed <= 0 {
		params.Speed = 1.0
	}
	if params.StepHeight <= 0 {
		params.StepHeight = int(float64(kneeBend) * 0.9)
	}
	if params.StepLength <= 0 {
		params.StepLength = int(float64(kneeBend) * 0.5)
	}
	if params.IKStepHeight <= 0 {
		params.IKStepHeight = 0.03
	}
	if params.IKStrideLength <= 0 {
		params.IKStrideLength = 0.04
	}

	interp := opts.InterpFactor
	if interp <= 0 || interp > 1 {
		interp = 1.0
	}

	comp := make(map[body.Leg]int, len(opts.RearAnkleComp))
	for leg, v := range opts.RearAnkleComp {
		comp[leg] = v
	}

	e := &Engine{
		writer:        writer,
		balance:       bal,
		params:        params,
		direction:     Forward,
		solverFactory: opts.SolverFactory,
		kneeBend:      kneeBend,
		rearAnkleComp: comp,
		stand:         standAnglesFor(kneeBend, comp),
		interpFactor:  interp,
		currentAngles: make(map[body.Channel]float64, body.NumChannels),
	}
	log.Printf("gait engine ready: cycle=%.2fs height=%d° length=%d° knee_bend=%d°",
		params.CycleTime, params.StepHeight, params.StepLength, kneeBend)
	return e
}

// snapshot captures everything one tick needs under the lock.
func (e *Engine) snapshot() tickState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return tickState{
		params:      e.params,
		direction:   e.direction,
		turnRate:    e.turnRate,
		lateralRate: e.lateralRate,
		useBalance:  e.useBalance,
		stand:       e.stand, // replaced wholesale on change, never mutated
		interp:      e.interpFactor,
	}
}

// interpolate blends the target toward the last written angle. A factor of
// 1.0 writes the target directly; this is the validated default because
// partial blending caused servo hunting and high current draw under load.
func (e *Engine) interpolate(ch body.Channel, target, factor float64) float64 {
	cur, ok := e.currentAngles[ch]
	if !ok {
		e.currentAngles[ch] = target
		return target
	}
	next := cur + (target-cur)*factor
	e.currentAngles[ch] = next
	return next
}

// applyLegAngles adds the balance correction and writes one leg's three
// servos through the calibrated port.
func (e *Engine) applyLegAngles(st *tickState, leg body.Leg, angles kinematics.LegAngles) {
	bal := 0.0
	if st.useBalance && e.balance != nil {
		bal = e.balance.GetCorrection()[leg]
	}

	hip := int(math.Round(e.interpolate(body.ChannelFor(leg, body.Hip), angles.Hip, st.interp)))
	knee := int(math.Round(e.interpolate(body.ChannelFor(leg, body.Knee), angles.Knee+bal, st.interp)))
	ankle := int(math.Round(e.interpolate(body.ChannelFor(leg, body.Ankle), angles.Ankle-bal*0.5, st.interp)))

	if !e.writer.SetServo(body.ChannelFor(leg, body.Hip), hip, true) {
		log.Printf("servo write failed: %s hip", leg)
	}
	if !e.writer.SetServo(body.ChannelFor(leg, body.Knee), knee, true) {
		log.Printf("servo write failed: %s knee", leg)
	}
	if !e.writer.SetServo(body.ChannelFor(leg, body.Ankle), ankle, true) {
		log.Printf("servo write failed: %s ankle", leg)
	}
}

// swingFor and stanceFor select angle-mode or IK-mode generation.
func (e *Engine) swingFor(st *tickState, phase float64, leg body.Leg) kinematics.LegAngles {
	if sol, traj := e.ikComponents(); sol != nil {
		if angles, ok := e.ikLegAngles(sol, traj, phase, leg, true); ok {
			return angles
		}
	}
	return swingAngles(st, phase, leg)
}

func (e *Engine) stanceFor(st *tickState, phase float64, leg body.Leg) kinematics.LegAngles {
	if sol, traj := e.ikComponents(); sol != nil {
		if angles, ok := e.ikLegAngles(sol, traj, phase, leg, false); ok {
			return angles
		}
	}
	return stanceAngles(st, phase, leg)
}

// ikComponents returns the solver and trajectory when IK mode is active.
func (e *Engine) ikComponents() (kinematics.Solver, *trajectory.FootTrajectory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.useIK || e.solver == nil || e.traj == nil {
		return nil, nil
	}
	return e.solver, e.traj
}

// ikLegAngles computes one leg via the foot trajectory and the external
// solver, with the other three feet held at neutral. A solver fault falls
// back to angle-mode for this leg on this tick and is logged once per
// fault episode, not once per tick.
func (e *Engine) ikLegAngles(sol kinematics.Solver, traj *trajectory.FootTrajectory, phase float64, leg body.Leg, swing bool) (kinematics.LegAngles, bool) {
	neutral := sol.NeutralFootPositions()
	n, ok := neutral[leg]
	if !ok {
		return kinematics.LegAngles{}, false
	}

	var x, y, z float64
	if swing {
		x, y, z = traj.SwingPosition(phase, n.X, n.Y, n.Z)
	} else {
		x, y, z = traj.StancePosition(phase, n.X, n.Y, n.Z)
	}

	feet := make(map[body.Leg]kinematics.Vec3, len(neutral))
	for l, p := range neutral {
		feet[l] = p
	}
	feet[leg] = kinematics.Vec3{X: x, Y: y, Z: z}

	angles, err := sol.FeetToAngles(feet)
	if err != nil {
		if !e.ikFailing {
			log.Printf("IK solve failed for %s, falling back to angle mode: %v", leg, err)
			e.ikFailing = true
		}
		return kinematics.LegAngles{}, false
	}
	e.ikFailing = false

	legAngles, ok := angles[leg]
	return legAngles, ok
}

// tickAt computes and writes all four legs for one instant of the cycle.
// cyclePhase is in [0,1): pair A swings in the first half, pair B in the
// second, each eased by smoothPhase while its counterpart sweeps linearly
// through stance.
func (e *Engine) tickAt(st *tickState, cyclePhase float64) {
	if cyclePhase < 0.5 {
		swingPhase := smoothPhase(cyclePhase * 2)
		for _, leg := range pairA {
			e.applyLegAngles(st, leg, e.swingFor(st, swingPhase, leg))
		}
		stancePhase := cyclePhase * 2
		for _, leg := range pairB {
			e.applyLegAngles(st, leg, e.stanceFor(st, stancePhase, leg))
		}
		return
	}

	stancePhase := (cyclePhase - 0.5) * 2
	for _, leg := range pairA {
		e.applyLegAngles(st, leg, e.stanceFor(st, stancePhase, leg))
	}
	swingPhase := smoothPhase((cyclePhase - 0.5) * 2)
	for _, leg := range pairB {
		e.applyLegAngles(st, leg, e.swingFor(st, swingPhase, leg))
	}
}

// loop is the 50 Hz tick loop; it runs on its own goroutine for the
// lifetime of one Running episode.
func (e *Engine) loop(stopCh chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)

	log.Printf("gait started: direction=%s", e.Direction())

	start := time.Now()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			log.Printf("gait stopped")
			return
		case now := <-ticker.C:
			st := e.snapshot()
			cycleTime := st.params.CycleTime / st.params.Speed
			elapsed := now.Sub(start).Seconds()
			cyclePhase := math.Mod(elapsed, cycleTime) / cycleTime
			e.tickAt(&st, cyclePhase)
		}
	}
}

// GotoStand moves every leg to its stand pose. When applyBalance is false
// the pose is written directly with no correction; Start uses that as a
// deliberate settle-before-walking step. While the tick loop is active the
// loop owns the servo port, so GotoStand fails with ErrAlreadyRunning
// instead of writing alongside it.
func (e *Engine) GotoStand(applyBalance bool) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.isRunning() {
		return ErrAlreadyRunning
	}
	e.gotoStand(applyBalance)
	return nil
}

// gotoStand is the unguarded pose write; callers hold runMu.
func (e *Engine) gotoStand(applyBalance bool) {
	st := e.snapshot()
	if !applyBalance {
		st.useBalance = false
	}
	for leg, angles := range st.stand {
		e.applyLegAngles(&st, leg, angles)
	}
}

// returnToStand drives all legs back to the stand pose after a run.
func (e *Engine) returnToStand() {
	log.Printf("returning to stand position")
	st := e.snapshot()
	for leg, angles := range st.stand {
		e.applyLegAngles(&st, leg, angles)
	}
}

// Start transitions Idle -> Running: settle in the stand pose, then begin
// the periodic tick loop on a dedicated goroutine. Starting while already
// running fails with ErrAlreadyRunning.
func (e *Engine) Start(dir Direction) error {
	if dir != Forward && dir != Backward {
		return fmt.Errorf("%w: %q", ErrBadDirection, dir)
	}

	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.isRunning() {
		return ErrAlreadyRunning
	}

	e.gotoStand(false)
	time.Sleep(standSettleDelay)

	e.mu.Lock()
	e.direction = dir
	e.running = true
	e.mu.Unlock()

	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	go e.loop(e.stopCh, e.doneCh)
	return nil
}

// Stop transitions Running -> Idle: signal the loop, wait for it to exit
// (bounded), then drive the legs back to the stand pose synchronously.
// Stopping while idle fails with ErrNotRunning.
func (e *Engine) Stop() error {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if !e.isRunning() {
		return ErrNotRunning
	}

	close(e.stopCh)
	select {
	case <-e.doneCh:
	case <-time.After(stopJoinTimeout):
		log.Printf("gait loop did not exit within %v", stopJoinTimeout)
	}

	e.mu.Lock()
	e.running = false
	e.mu.Unlock()

	e.returnToStand()
	return nil
}

// SingleStep runs exactly one full cycle at the slower bench rate, then
// returns the legs to the stand pose. It blocks the caller and does not
// use the background loop; intended for testing and tuning.
func (e *Engine) SingleStep(dir Direction) error {
	if dir != Forward && dir != Backward {
		return fmt.Errorf("%w: %q", ErrBadDirection, dir)
	}

	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.isRunning() {
		return ErrAlreadyRunning
	}

	e.mu.Lock()
	e.direction = dir
	e.mu.Unlock()

	e.gotoStand(false)
	time.Sleep(standSettleDelay)

	st := e.snapshot()
	cycleTime := st.params.CycleTime / st.params.Speed
	steps := int(cycleTime / singleStepInterval.Seconds())
	if steps < 1 {
		steps = 1
	}

	for i := 0; i < steps; i++ {
		st := e.snapshot()
		e.tickAt(&st, float64(i)/float64(steps))
		time.Sleep(singleStepInterval)
	}

	e.returnToStand()
	return nil
}

// IsRunning reports whether the tick loop is active.
func (e *Engine) IsRunning() bool {
	return e.isRunning()
}

func (e *Engine) isRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Direction returns the current travel direction.
func (e *Engine) Direction() Direction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.direction
}
