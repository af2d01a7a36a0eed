package gate

import (
	"testing"
	"time"
)

func TestSleepBlocksUntilDurationElapses(t *testing.T) {
	s := New()

	if !s.Sleep("disassemble", 120*time.Millisecond, 10.0) {
		t.Fatal("First sleep should arm the key")
	}

	tests := []struct {
		name string
		now  float64
		want bool
	}{
		{"immediately after", 10.0, true},
		{"half way", 10.06, true},
		{"just before expiry", 10.119, true},
		{"after expiry", 10.1201, false},
		{"well after", 11.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe := New()
			probe.Sleep("disassemble", 120*time.Millisecond, 10.0)
			if got := probe.Sleeping("disassemble", tt.now); got != tt.want {
				t.Errorf("Expected Sleeping=%v at %.3f, got %v", tt.want, tt.now, got)
			}
		})
	}
}

func TestSleepWhileSleepingDoesNotExtend(t *testing.T) {
	s := New()
	s.Sleep("key", 100*time.Millisecond, 1.0)

	if s.Sleep("key", 500*time.Millisecond, 1.05) {
		t.Error("Sleep on a sleeping key should be a no-op")
	}
	if s.Sleeping("key", 1.1) {
		t.Error("Window should not have been extended by the rejected sleep")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	s := New()
	s.Sleep("a", time.Second, 0)

	if s.Sleeping("b", 0.5) {
		t.Error("Unrelated key should not be sleeping")
	}
	if !s.Sleep("b", time.Second, 0.5) {
		t.Error("Unrelated key should arm")
	}
}

func TestNeverTwoCommandsWithinCooldown(t *testing.T) {
	s := New()
	const cooldown = 50 * time.Millisecond
	var fired []float64

	// Drive at an uneven tick cadence.
	now := 0.0
	for i := 0; i < 400; i++ {
		now += 0.007 + float64(i%5)*0.003
		if !s.Sleeping("critical", now) {
			s.Sleep("critical", cooldown, now)
			fired = append(fired, now)
		}
	}

	for i := 1; i < len(fired); i++ {
		if gap := fired[i] - fired[i-1]; gap < cooldown.Seconds()-1e-9 {
			t.Fatalf("Commands %d and %d only %.4fs apart", i-1, i, gap)
		}
	}
	if len(fired) < 2 {
		t.Errorf("Expected several commands, got %d", len(fired))
	}
}

func TestReset(t *testing.T) {
	s := New()
	s.Sleep("a", time.Minute, 0)
	s.Sleep("b", time.Minute, 0)

	s.Reset()

	if s.Sleeping("a", 1) || s.Sleeping("b", 1) {
		t.Error("Reset should clear every key")
	}
	if got := s.Remaining("a", 1); got != 0 {
		t.Errorf("Expected 0 remaining after reset, got %f", got)
	}
}
