package latency

import (
	"math"
	"testing"
	"time"

	"splitguard/internal/host"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

var tranquilCost = ActionCost{
	Components:          3,
	DisassembleCooldown: 120 * time.Millisecond,
	RetryDelay:          0.1,
	CombineCooldown:     150 * time.Millisecond,
	UnlockDelayMax:      0.165,
}

// TestLagLead verifies each branch of the lag lead maximum
func TestLagLead(t *testing.T) {
	tests := []struct {
		name  string
		clock host.Clock
		want  float64
	}{
		{"idle clock hits floor", host.Clock{TickInterval: 0.01}, 0.1},
		{"sum of lags", host.Clock{TickInterval: 1.0 / 30, InputLag: 0.05, IOLag: 0.04}, 0.05 + 0.04 + 2.0/30},
		{"jitter dominates tick", host.Clock{TickInterval: 1.0 / 30, LatestTickDelta: 0.2, InputLag: 0.01}, 0.01 + 0.2 + 1.0/30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LagLead(tt.clock)
			if !near(got, tt.want) {
				t.Errorf("Expected %.4f, got %.4f", tt.want, got)
			}
		})
	}
}

// TestActionCost verifies the recombine round cost
func TestActionCost(t *testing.T) {
	want := 0.12 + 0.1 + 0.15 + 2*0.165
	if got := tranquilCost.Seconds(); !near(got, want) {
		t.Errorf("Expected %.3f, got %.3f", want, got)
	}

	single := tranquilCost
	single.Components = 0
	if got := single.Seconds(); !near(got, 0.37) {
		t.Errorf("Expected no unlock term for empty component list, got %.3f", got)
	}
}

// TestSafetyLeadCoversCost verifies the safety lead never undercuts the action cost
func TestSafetyLeadCoversCost(t *testing.T) {
	clock := host.Clock{TickInterval: 1.0 / 30}
	got := SafetyLead(clock, tranquilCost)
	if got < tranquilCost.Seconds() {
		t.Errorf("Expected safety lead >= %.3f, got %.3f", tranquilCost.Seconds(), got)
	}
}

// TestCycleInterval verifies the interval shrinks near window close and is capped
func TestCycleInterval(t *testing.T) {
	clock := host.Clock{TickInterval: 1.0 / 30}
	tests := []struct {
		name       string
		windowLeft float64
		want       float64
	}{
		{"fresh window capped", 10, 7},
		{"shrinks with window", 5, 5 - 0.1 - 1},
		{"never below a tick", 0.5, 1.0 / 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CycleInterval(clock, tt.windowLeft, 7)
			if !near(got, tt.want) {
				t.Errorf("Expected %.4f, got %.4f", tt.want, got)
			}
		})
	}
}

// TestUnlockDelay verifies band placement and the round trip floor
func TestUnlockDelay(t *testing.T) {
	fast := host.Clock{TickInterval: 1.0 / 30}
	if got := UnlockDelay(fast, 0, 0.133, 0.165); !near(got, 0.133) {
		t.Errorf("Expected band minimum 0.133, got %.4f", got)
	}
	if got := UnlockDelay(fast, 1, 0.133, 0.165); !near(got, 0.165) {
		t.Errorf("Expected band maximum 0.165, got %.4f", got)
	}

	slow := host.Clock{TickInterval: 1.0 / 30, Ping: 180, InputLag: 0.03}
	if got := UnlockDelay(slow, 0.5, 0.133, 0.165); !near(got, 0.21) {
		t.Errorf("Expected round trip 0.21, got %.4f", got)
	}
}

// TestImpactLeads verifies the pre and post impact leads
func TestImpactLeads(t *testing.T) {
	clock := host.Clock{TickInterval: 1.0 / 30}
	buf := TimingBuffer(clock)
	if !near(buf, 0.12) {
		t.Fatalf("Expected buffer floor 0.12, got %.4f", buf)
	}
	if got := PreImpactLead(clock, 50*time.Millisecond); !near(got, 0.12+0.05+1.0/30) {
		t.Errorf("Expected pre impact %.4f, got %.4f", 0.12+0.05+1.0/30, got)
	}
	if got := PostImpactLead(clock); !near(got, 2.0/30) {
		t.Errorf("Expected post impact %.4f, got %.4f", 2.0/30, got)
	}
}

// TestRetryDelay verifies the retry floor follows the slower of tick and cooldown
func TestRetryDelay(t *testing.T) {
	if got := RetryDelay(host.Clock{TickInterval: 0.03}, 50*time.Millisecond); !near(got, 0.05) {
		t.Errorf("Expected 0.05, got %.4f", got)
	}
	if got := RetryDelay(host.Clock{TickInterval: 0.1}, 50*time.Millisecond); !near(got, 0.1) {
		t.Errorf("Expected 0.1, got %.4f", got)
	}
}
