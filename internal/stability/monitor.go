// Package stability classifies the robot's current tilt into severity
// tiers. The monitor is a pure classifier: it has no actuation authority,
// callers decide what to do with the state (the controller wires an
// emergency listener that stops the gait).
package stability

import (
	"log"
	"sync"
	"time"
)

// State is a stability severity tier, ordered from best to worst.
type State int

const (
	Stable State = iota
	Warning
	Critical
	Emergency
)

func (s State) String() string {
	switch s {
	case Stable:
		return "stable"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	case Emergency:
		return "emergency"
	}
	return "unknown"
}

// States lists all tiers in severity order.
func States() []State {
	return []State{Stable, Warning, Critical, Emergency}
}

// Thresholds hold the tilt angles (degrees) at which each tier triggers.
// A tier triggers when |pitch| or |roll| exceeds its threshold.
type Thresholds struct {
	WarningPitch   float64 `json:"warning_pitch"`
	WarningRoll    float64 `json:"warning_roll"`
	CriticalPitch  float64 `json:"critical_pitch"`
	CriticalRoll   float64 `json:"critical_roll"`
	EmergencyPitch float64 `json:"emergency_pitch"`
	EmergencyRoll  float64 `json:"emergency_roll"`
}

// DefaultThresholds returns the shipped 10/20/30 degree tiers.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WarningPitch:   10,
		WarningRoll:    10,
		CriticalPitch:  20,
		CriticalRoll:   20,
		EmergencyPitch: 30,
		EmergencyRoll:  30,
	}
}

// ChangeListener is invoked on every state transition.
type ChangeListener func(old, new State, pitch, roll float64)

// historyEntry records how long the monitor stayed in one state.
type historyEntry struct {
	state    State
	duration time.Duration
}

const maxHistoryLength = 100

// StateStats summarizes the recorded time in one state.
type StateStats struct {
	Time       float64 `json:"time"`       // seconds
	Percentage float64 `json:"percentage"` // of total recorded time
}

// Status is a snapshot of the monitor.
type Status struct {
	State       string     `json:"state"`
	Pitch       float64    `json:"pitch"`
	Roll        float64    `json:"roll"`
	TimeInState float64    `json:"time_in_state"` // seconds
	Thresholds  Thresholds `json:"thresholds"`
}

// Monitor evaluates tilt readings against the thresholds and tracks state
// transitions. Update must have a single caller (or callers must accept
// interleaving); the read methods are safe from any goroutine.
type Monitor struct {
	mu         sync.Mutex
	thresholds Thresholds

	current        State
	pitch, roll    float64
	stateStartTime time.Time
	history        []historyEntry
	listeners      []ChangeListener

	now func() time.Time // test hook
}

// NewMonitor creates a monitor in the Stable state.
func NewMonitor(t Thresholds) *Monitor {
	m := &Monitor{
		thresholds: t,
		current:    Stable,
		now:        time.Now,
	}
	m.stateStartTime = m.now()
	return m
}

// classify maps a tilt reading onto a tier, worst case first.
func (m *Monitor) classify(pitch, roll float64) State {
	absPitch, absRoll := abs(pitch), abs(roll)
	switch {
	case absPitch > m.thresholds.EmergencyPitch || absRoll > m.thresholds.EmergencyRoll:
		return Emergency
	case absPitch > m.thresholds.CriticalPitch || absRoll > m.thresholds.CriticalRoll:
		return Critical
	case absPitch > m.thresholds.WarningPitch || absRoll > m.thresholds.WarningRoll:
		return Warning
	default:
		return Stable
	}
}

// Update evaluates one tilt reading and returns the resulting state.
// On a transition it records the time spent in the previous state and
// notifies listeners; a panicking listener is logged, never propagated.
func (m *Monitor) Update(pitch, roll float64) State {
	m.mu.Lock()
	m.pitch = pitch
	m.roll = roll

	newState := m.classify(pitch, roll)
	if newState == m.current {
		m.mu.Unlock()
		return newState
	}

	old := m.current
	now := m.now()
	m.history = append(m.history, historyEntry{state: old, duration: now.Sub(m.stateStartTime)})
	if len(m.history) > maxHistoryLength {
		m.history = m.history[len(m.history)-maxHistoryLength:]
	}
	m.current = newState
	m.stateStartTime = now
	listeners := make([]ChangeListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		notify(fn, old, newState, pitch, roll)
	}
	return newState
}

func notify(fn ChangeListener, old, new State, pitch, roll float64) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("stability listener panic: %v", r)
		}
	}()
	fn(old, new, pitch, roll)
}

// OnStateChange registers a transition listener.
func (m *Monitor) OnStateChange(fn ChangeListener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// GetStatus returns a snapshot of the current state and tilt.
func (m *Monitor) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		State:       m.current.String(),
		Pitch:       m.pitch,
		Roll:        m.roll,
		TimeInState: m.now().Sub(m.stateStartTime).Seconds(),
		Thresholds:  m.thresholds,
	}
}

// CurrentState returns the current tier.
func (m *Monitor) CurrentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// IsEmergency reports whether the monitor is in the Emergency tier.
func (m *Monitor) IsEmergency() bool {
	return m.CurrentState() == Emergency
}

// NeedsAttention reports whether the monitor is in any tier above Stable.
func (m *Monitor) NeedsAttention() bool {
	return m.CurrentState() != Stable
}

// GetStateStatistics returns, per state, the total recorded dwell time and
// its share of all recorded time. Before any transition all entries are zero.
func (m *Monitor) GetStateStatistics() map[string]StateStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make(map[string]StateStats, len(States()))
	var total time.Duration
	for _, e := range m.history {
		total += e.duration
	}
	for _, s := range States() {
		if total == 0 {
			stats[s.String()] = StateStats{}
			continue
		}
		var stateTime time.Duration
		for _, e := range m.history {
			if e.state == s {
				stateTime += e.duration
			}
		}
		stats[s.String()] = StateStats{
			Time:       stateTime.Seconds(),
			Percentage: 100 * float64(stateTime) / float64(total),
		}
	}
	return stats
}

// SetThresholds replaces the tier thresholds. The next Update uses them.
func (m *Monitor) SetThresholds(t Thresholds) {
	m.mu.Lock()
	m.thresholds = t
	m.mu.Unlock()
}

// Reset returns the monitor to Stable and clears the history.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.current = Stable
	m.pitch = 0
	m.roll = 0
	m.stateStartTime = m.now()
	m.history = nil
	m.mu.Unlock()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
