package stability

import (
	"testing"
	"time"
)

func TestClassification(t *testing.T) {
	m := NewMonitor(DefaultThresholds())

	cases := []struct {
		pitch, roll float64
		want        State
	}{
		{0, 0, Stable},
		{5, 5, Stable},
		{10, 0, Stable}, // thresholds are strict
		{12, 0, Warning},
		{0, -12, Warning},
		{0, 25, Critical},
		{-22, 0, Critical},
		{35, 0, Emergency},
		{0, -31, Emergency},
		{35, 12, Emergency}, // worst tier wins
	}
	for _, c := range cases {
		if got := m.Update(c.pitch, c.roll); got != c.want {
			t.Errorf("Update(%.1f, %.1f) = %s, want %s", c.pitch, c.roll, got, c.want)
		}
	}
}

func TestStateChangeListener(t *testing.T) {
	m := NewMonitor(DefaultThresholds())

	type transition struct {
		from, to State
	}
	var seen []transition
	m.OnStateChange(func(old, new State, pitch, roll float64) {
		seen = append(seen, transition{old, new})
	})

	m.Update(0, 0)  // no change
	m.Update(15, 0) // Stable -> Warning
	m.Update(16, 0) // no change
	m.Update(35, 0) // Warning -> Emergency
	m.Update(0, 0)  // Emergency -> Stable

	want := []transition{
		{Stable, Warning},
		{Warning, Emergency},
		{Emergency, Stable},
	}
	if len(seen) != len(want) {
		t.Fatalf("got %d transitions, want %d: %v", len(seen), len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestPanickingListenerDoesNotKillMonitor(t *testing.T) {
	m := NewMonitor(DefaultThresholds())
	m.OnStateChange(func(old, new State, pitch, roll float64) {
		panic("bad listener")
	})
	called := false
	m.OnStateChange(func(old, new State, pitch, roll float64) {
		called = true
	})

	if got := m.Update(15, 0); got != Warning {
		t.Fatalf("Update after panic = %s, want Warning", got)
	}
	if !called {
		t.Error("second listener must still run after the first panics")
	}
}

func TestHistoryCap(t *testing.T) {
	m := NewMonitor(DefaultThresholds())
	// Alternate states far more times than the history holds.
	for i := 0; i < 3*maxHistoryLength; i++ {
		if i%2 == 0 {
			m.Update(15, 0)
		} else {
			m.Update(0, 0)
		}
	}
	m.mu.Lock()
	n := len(m.history)
	m.mu.Unlock()
	if n > maxHistoryLength {
		t.Errorf("history grew to %d entries, cap is %d", n, maxHistoryLength)
	}
}

func TestStateStatistics(t *testing.T) {
	clock := time.Unix(1000, 0)
	m := NewMonitor(DefaultThresholds())
	m.now = func() time.Time { return clock }
	m.stateStartTime = clock

	// 10 seconds Stable, then 30 seconds Warning, then back.
	clock = clock.Add(10 * time.Second)
	m.Update(15, 0)
	clock = clock.Add(30 * time.Second)
	m.Update(0, 0)

	stats := m.GetStateStatistics()
	if got := stats[Stable.String()].Time; got != 10 {
		t.Errorf("Stable time = %f, want 10", got)
	}
	if got := stats[Warning.String()].Time; got != 30 {
		t.Errorf("Warning time = %f, want 30", got)
	}
	if got := stats[Warning.String()].Percentage; got != 75 {
		t.Errorf("Warning percentage = %f, want 75", got)
	}
	if got := stats[Emergency.String()].Time; got != 0 {
		t.Errorf("Emergency time = %f, want 0", got)
	}
}

func TestStatisticsEmptyHistory(t *testing.T) {
	m := NewMonitor(DefaultThresholds())
	stats := m.GetStateStatistics()
	for _, s := range States() {
		st := stats[s.String()]
		if st.Time != 0 || st.Percentage != 0 {
			t.Errorf("empty history stats for %s = %+v, want zeros", s, st)
		}
	}
}

func TestStatus(t *testing.T) {
	m := NewMonitor(DefaultThresholds())
	m.Update(25, 3)
	s := m.GetStatus()
	if s.State != Critical.String() {
		t.Errorf("status state = %s, want %s", s.State, Critical)
	}
	if s.Pitch != 25 || s.Roll != 3 {
		t.Errorf("status tilt = (%f, %f), want (25, 3)", s.Pitch, s.Roll)
	}
	if s.Thresholds != DefaultThresholds() {
		t.Errorf("status thresholds = %+v", s.Thresholds)
	}
}

func TestNeedsAttentionAndEmergency(t *testing.T) {
	m := NewMonitor(DefaultThresholds())
	m.Update(5, 5)
	if m.NeedsAttention() || m.IsEmergency() {
		t.Error("stable monitor must not need attention")
	}
	m.Update(25, 0)
	if !m.NeedsAttention() {
		t.Error("critical state must need attention")
	}
	if m.IsEmergency() {
		t.Error("critical is not emergency")
	}
	m.Update(40, 0)
	if !m.IsEmergency() {
		t.Error("emergency state not reported")
	}
}

func TestSetThresholds(t *testing.T) {
	m := NewMonitor(DefaultThresholds())
	m.SetThresholds(Thresholds{
		WarningPitch: 5, WarningRoll: 5,
		CriticalPitch: 8, CriticalRoll: 8,
		EmergencyPitch: 12, EmergencyRoll: 12,
	})
	if got := m.Update(6, 0); got != Warning {
		t.Errorf("Update(6, 0) with tightened thresholds = %s, want Warning", got)
	}
	if got := m.Update(13, 0); got != Emergency {
		t.Errorf("Update(13, 0) with tightened thresholds = %s, want Emergency", got)
	}
}

func TestReset(t *testing.T) {
	m := NewMonitor(DefaultThresholds())
	m.Update(35, 0)
	m.Reset()
	if m.CurrentState() != Stable {
		t.Errorf("state after reset = %s, want Stable", m.CurrentState())
	}
	stats := m.GetStateStatistics()
	if stats[Emergency.String()].Time != 0 {
		t.Error("reset must clear the history")
	}
}
