// Package scenario holds the built-in scripted games used by splitctl and the
// end-to-end tests.
package scenario

import (
	"fmt"
	"sort"

	"splitguard/internal/host"
	"splitguard/internal/khanda"
	"splitguard/internal/sim"
	"splitguard/internal/tranquil"
)

// Start is the game time every scenario begins at.
const Start = 100.0

// Tick is the simulated frame interval.
const Tick = 1.0 / 30

// Shared cast. The hero is always entity 1 on team 2.
const (
	HeroID  host.EntityID = 1
	EnemyID host.EntityID = 50
	AllyTeam              = 2
	EnemyTeam             = 3
)

var (
	TranquilRecipe = sim.Recipe{Composite: tranquil.CompositeName, Components: tranquil.Components}
	KhandaRecipe   = sim.Recipe{Composite: khanda.CompositeName, Components: khanda.Components}
)

// Scenario is a named, reproducible script.
type Scenario struct {
	Name        string
	Description string
	Duration    float64 // default run length, seconds
	Build       func() (*sim.World, []sim.Cue)
}

// Run builds the scenario and drives d through it. duration <= 0 uses the
// scenario default.
func (s Scenario) Run(d sim.Driver, duration float64) sim.Result {
	if duration <= 0 {
		duration = s.Duration
	}
	w, cues := s.Build()
	return sim.Run(w, cues, d, duration)
}

var registry = map[string]Scenario{}

func register(s Scenario) {
	if _, dup := registry[s.Name]; dup {
		panic("scenario: duplicate " + s.Name)
	}
	registry[s.Name] = s
}

// Lookup finds a scenario by name.
func Lookup(name string) (Scenario, error) {
	s, ok := registry[name]
	if !ok {
		return Scenario{}, fmt.Errorf("unknown scenario %q (have %v)", name, Names())
	}
	return s, nil
}

// Names lists the registered scenarios in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// All returns every scenario in name order.
func All() []Scenario {
	out := make([]Scenario, 0, len(registry))
	for _, name := range Names() {
		out = append(out, registry[name])
	}
	return out
}

func hero(melee bool) host.Hero {
	return host.Hero{Entity: host.Entity{
		ID: HeroID, Kind: host.KindHero, Name: "npc_dota_hero_lina", Team: AllyTeam,
		Valid: true, Alive: true, Visible: true, Melee: melee, Target: host.NoEntity,
		AttackRange: 670,
	}}
}

func enemyHero(name string, melee bool, pos host.Vec2) host.Entity {
	return host.Entity{
		ID: EnemyID, Kind: host.KindHero, Name: name, Team: EnemyTeam,
		Valid: true, Alive: true, Visible: true, Melee: melee,
		Position: pos, Target: host.NoEntity, AttackRange: 150,
	}
}

// bootsWorld is a fresh hero carrying just-assembled Tranquil Boots.
func bootsWorld() *sim.World {
	w := sim.NewWorld(hero(false), host.Clock{Now: Start, TickInterval: Tick}, TranquilRecipe)
	w.Give(host.Item{Name: tranquil.CompositeName, AssembledTime: Start})
	return w
}

// khandaWorld is a hero carrying a Khanda still cooling down, with an enemy
// in cast range.
func khandaWorld(cooldown float64) *sim.World {
	w := sim.NewWorld(hero(false), host.Clock{Now: Start, TickInterval: Tick}, KhandaRecipe)
	w.Give(host.Item{Name: khanda.CompositeName, Cooldown: cooldown, AssembledTime: Start})
	w.Spawn(enemyHero("npc_dota_hero_lion", false, host.Vec2{X: 500}))
	return w
}

// at offsets a cue from the scenario start.
func at(offset float64, label string, apply func(w *sim.World) []host.Event) sim.Cue {
	return sim.Cue{At: Start + offset, Label: label, Apply: apply}
}
