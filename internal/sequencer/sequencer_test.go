package sequencer

import (
	"math/rand"
	"testing"
	"time"

	"splitguard/internal/gate"
	"splitguard/internal/host"
)

var components = []string{"item_boots", "item_wind_lace", "item_ring_of_regen"}

func testConfig() Config {
	return Config{
		Components:      components,
		KeyPrefix:       "unlock_",
		RetryDelay:      0.1,
		UnlockDelayMin:  0.133,
		UnlockDelayMax:  0.165,
		CombineCooldown: 150 * time.Millisecond,
	}
}

// unlockingHost applies unlock orders straight to its inventory.
type unlockingHost struct {
	*host.State
	unlocks []string
	times   []float64
}

func (h *unlockingHost) Disassemble(string, bool) {}

func (h *unlockingHost) SetCombineLock(item string, locked, _ bool) {
	for i := range h.Inventory {
		if h.Inventory[i].Name == item {
			h.Inventory[i].CombineLocked = locked
		}
	}
	h.unlocks = append(h.unlocks, item)
	h.times = append(h.times, h.Time.Now)
}

func lockedState(clock host.Clock) *host.State {
	st := &host.State{Time: clock}
	for _, name := range components {
		st.Inventory = append(st.Inventory, host.Item{Name: name, CombineLocked: true})
	}
	return st
}

// TestStepUnlocksInDeclaredOrder verifies one unlock per component, in order
func TestStepUnlocksInDeclaredOrder(t *testing.T) {
	clock := host.Clock{Now: 100, TickInterval: 1.0 / 30, Ping: 60, InputLag: 0.02}
	h := &unlockingHost{State: lockedState(clock)}
	seq := New(testConfig(), gate.New(), rand.New(rand.NewSource(1)))

	settled := false
	for i := 0; i < 120 && !settled; i++ {
		_, res := seq.Step(h, h.Time.Now)
		settled = res == Settled
		h.Time.Now += clock.TickInterval
	}

	if !settled {
		t.Fatal("Expected sequencer to settle")
	}
	if len(h.unlocks) != len(components) {
		t.Fatalf("Expected %d unlocks, got %d", len(components), len(h.unlocks))
	}
	for i, name := range components {
		if h.unlocks[i] != name {
			t.Errorf("Expected unlock %d to be %s, got %s", i, name, h.unlocks[i])
		}
	}
	for i := 1; i < len(h.times); i++ {
		gap := h.times[i] - h.times[i-1]
		if gap < 0.133 {
			t.Errorf("Expected gap >= 0.133s, got %.3f", gap)
		}
	}
}

// TestStepRespectsRoundTrip verifies slow links stretch the unlock spacing
func TestStepRespectsRoundTrip(t *testing.T) {
	clock := host.Clock{Now: 50, TickInterval: 1.0 / 30, Ping: 250, InputLag: 0.05}
	h := &unlockingHost{State: lockedState(clock)}
	seq := New(testConfig(), gate.New(), rand.New(rand.NewSource(7)))

	for i := 0; i < 90; i++ {
		seq.Step(h, h.Time.Now)
		h.Time.Now += clock.TickInterval
	}

	for i := 1; i < len(h.times); i++ {
		if gap := h.times[i] - h.times[i-1]; gap < 0.3-1e-9 {
			t.Errorf("Expected gap >= ping+input lag 0.3s, got %.3f", gap)
		}
	}
}

// TestStepWaitsAfterSettle verifies the retry delay after nothing is locked
func TestStepWaitsAfterSettle(t *testing.T) {
	st := &host.State{Time: host.Clock{Now: 10, TickInterval: 1.0 / 30}}
	for _, name := range components {
		st.Inventory = append(st.Inventory, host.Item{Name: name})
	}
	h := &unlockingHost{State: st}
	seq := New(testConfig(), gate.New(), rand.New(rand.NewSource(1)))

	if _, res := seq.Step(h, 10); res != Settled {
		t.Fatalf("Expected settled, got %s", res)
	}
	if seq.Ready(10.05) {
		t.Error("Expected retry delay to hold the sequencer")
	}
	if _, res := seq.Step(h, 10.05); res != Waiting {
		t.Errorf("Expected waiting during retry delay, got %s", res)
	}
	if !seq.Ready(10.1) {
		t.Error("Expected sequencer ready after retry delay")
	}
}

// TestStepGatedPerComponent verifies a component is not unlocked twice inside its cooldown
func TestStepGatedPerComponent(t *testing.T) {
	st := lockedState(host.Clock{Now: 1, TickInterval: 1.0 / 30})
	buf := &host.CommandBuffer{}
	h := host.Bind(st, buf)
	seq := New(testConfig(), gate.New(), rand.New(rand.NewSource(3)))

	seq.Step(h, 1)
	seq.Hold()
	// The lock never clears because the buffer does not apply commands.
	if _, res := seq.Step(h, 1.05); res != Waiting {
		t.Errorf("Expected gate to hold second unlock, got %s", res)
	}
	if buf.Len() != 1 {
		t.Errorf("Expected 1 command, got %d", buf.Len())
	}
}

// TestReset verifies deadlines clear
func TestReset(t *testing.T) {
	st := lockedState(host.Clock{Now: 1, TickInterval: 1.0 / 30})
	h := &unlockingHost{State: st}
	seq := New(testConfig(), gate.New(), rand.New(rand.NewSource(3)))

	seq.Step(h, 1)
	seq.Reset()
	if !seq.Ready(0) {
		t.Error("Expected ready after reset")
	}
}
