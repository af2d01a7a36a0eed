package scenario

import (
	"math/rand"
	"slices"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"splitguard/internal/config"
	"splitguard/internal/decision"
	"splitguard/internal/engine"
	"splitguard/internal/host"
)

type captureSink struct {
	mu      sync.Mutex
	records []decision.Record
}

func (c *captureSink) Record(r decision.Record) {
	c.mu.Lock()
	c.records = append(c.records, r)
	c.mu.Unlock()
}

func (c *captureSink) splitCauses() []decision.Cause {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []decision.Cause
	for _, r := range c.records {
		if r.Action == decision.ActionDisassemble {
			out = append(out, r.Cause)
		}
	}
	return out
}

func newEngine(t *testing.T) (*engine.Engine, *captureSink) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	opts := engine.DefaultOptions(config.NewStore(config.DefaultSettings(), ""))
	opts.Logger = logger
	opts.Rand = rand.New(rand.NewSource(3))
	e := engine.New(opts)
	t.Cleanup(e.Close)

	sink := &captureSink{}
	e.AddSink(sink)
	return e, sink
}

// TestScenarios runs every built-in script through the engine and checks the
// split causes it produces
func TestScenarios(t *testing.T) {
	tests := []struct {
		name      string
		want      decision.Cause
		forbidden []decision.Cause
	}{
		{"idle-cycle", decision.CauseAntiStickCycle, []decision.Cause{decision.CauseThreat}},
		{"incoming-projectile", decision.CauseProjectileCreated, nil},
		{"melee-hero", decision.CauseThreat, nil},
		{"damage-debuff", decision.CauseThreat, nil},
		{"cast-intercept", decision.CauseCastIntercept, []decision.Cause{decision.CauseAntiStickCycle}},
		{"channel-impact", decision.CauseImpactWindow, []decision.Cause{decision.CauseCastIntercept}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := Lookup(tt.name)
			if err != nil {
				t.Fatalf("Lookup failed: %v", err)
			}
			e, sink := newEngine(t)
			res := sc.Run(e, 0)

			causes := sink.splitCauses()
			if !slices.Contains(causes, tt.want) {
				t.Errorf("Expected a %s split, got %v", tt.want, causes)
			}
			for _, f := range tt.forbidden {
				if slices.Contains(causes, f) {
					t.Errorf("Expected no %s split, got %v", f, causes)
				}
			}

			for _, is := range res.World.Issued {
				if is.Refused {
					t.Errorf("Expected every command accepted, %+v was refused", is)
				}
			}
			if len(res.World.Commands(host.CommandSetCombineLock)) == 0 {
				t.Error("Expected the composite to be recombined")
			}
			if len(res.Samples) == 0 {
				t.Error("Expected timeline samples")
			}
		})
	}
}

// TestScenarioMarks verifies every cue shows up on the timeline
func TestScenarioMarks(t *testing.T) {
	sc, err := Lookup("incoming-projectile")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	e, _ := newEngine(t)
	res := sc.Run(e, 0)

	_, cues := sc.Build()
	if len(res.Marks) != len(cues) {
		t.Fatalf("Expected %d marks, got %d", len(cues), len(res.Marks))
	}
	for i := 1; i < len(res.Marks); i++ {
		if res.Marks[i].T < res.Marks[i-1].T {
			t.Errorf("Expected marks in time order, got %v", res.Marks)
		}
	}
}

// TestLookup verifies the registry
func TestLookup(t *testing.T) {
	names := Names()
	if len(names) != 6 {
		t.Errorf("Expected 6 scenarios, got %v", names)
	}
	if !slices.IsSorted(names) {
		t.Errorf("Expected sorted names, got %v", names)
	}
	if _, err := Lookup("nope"); err == nil {
		t.Error("Expected error for unknown scenario")
	}
	for _, sc := range All() {
		if sc.Duration <= 0 || sc.Description == "" {
			t.Errorf("Expected duration and description on %s", sc.Name)
		}
	}
}
