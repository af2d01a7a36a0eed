package khanda

import (
	"math"
	"math/rand"
	"testing"

	"splitguard/internal/config"
	"splitguard/internal/decision"
	"splitguard/internal/host"
	"splitguard/internal/sim"
)

const tick = 1.0 / 30

type staticSettings struct{ s config.KhandaSettings }

func (st *staticSettings) Khanda() config.KhandaSettings { return st.s }

var recipe = sim.Recipe{Composite: CompositeName, Components: Components}

type recorder struct{ records []decision.Record }

func (r *recorder) Record(rec decision.Record) { r.records = append(r.records, rec) }

func (r *recorder) causes(action decision.Action) []decision.Cause {
	var out []decision.Cause
	for _, rec := range r.records {
		if rec.Action == action {
			out = append(out, rec.Cause)
		}
	}
	return out
}

var enemy = host.Entity{
	ID: 50, Kind: host.KindHero, Name: "npc_dota_hero_lion", Team: 3,
	Valid: true, Alive: true, Visible: true, Target: host.NoEntity,
}

func newWorld(now, cooldown float64) *sim.World {
	hero := host.Hero{Entity: host.Entity{
		ID: 1, Kind: host.KindHero, Name: "npc_dota_hero_lina", Team: 2,
		Valid: true, Alive: true, Visible: true, Target: host.NoEntity,
	}}
	w := sim.NewWorld(hero, host.Clock{Now: now, TickInterval: tick}, recipe)
	w.Give(host.Item{Name: CompositeName, Cooldown: cooldown})
	w.Spawn(enemy)
	return w
}

func newController(enabled bool) (*Controller, *recorder) {
	rec := &recorder{}
	c := New(&staticSettings{s: config.KhandaSettings{Enabled: enabled}}, config.DefaultKhandaTimings(), Options{
		Sink: rec,
		Rand: rand.New(rand.NewSource(7)),
	})
	return c, rec
}

func frame(c *Controller, w *sim.World, events ...host.Event) {
	w.Advance(tick)
	for _, ev := range events {
		c.Handle(w, ev)
	}
	c.Handle(w, host.Tick{DT: tick})
}

func nuke() host.Ability {
	return host.Ability{
		ID: 7, Name: "lina_laguna_blade", Owner: 1,
		Behavior: host.BehaviorUnitTarget, CastPoint: 0.45,
	}
}

func castAt(a host.Ability, target host.Entity, hitTime float64) host.OrderPrepared {
	return host.OrderPrepared{Order: host.Order{
		Type:        host.OrderCastTarget,
		Issuers:     []host.EntityID{1},
		PlayerInput: true,
		Ability:     &a,
		Target:      &target,
		HitTime:     hitTime,
	}}
}

// TestInterceptSplitsBeforeOrder verifies a cast on a cooling Khanda splits
// it while the order is still being prepared
func TestInterceptSplitsBeforeOrder(t *testing.T) {
	c, rec := newController(true)
	w := newWorld(20, 10)

	c.Handle(w, castAt(nuke(), enemy, 0.3))

	splits := w.Commands(host.CommandDisassemble)
	if len(splits) != 1 {
		t.Fatalf("Expected 1 split during the order, got %d", len(splits))
	}
	if splits[0].At != 20 || splits[0].Queue {
		t.Errorf("Expected unqueued split at 20, got %+v", splits[0])
	}
	if causes := rec.causes(decision.ActionDisassemble); len(causes) != 1 || causes[0] != decision.CauseCastIntercept {
		t.Errorf("Expected cast intercept cause, got %v", causes)
	}

	st := c.Status()
	if st.Cast == nil {
		t.Fatal("Expected cast tracked")
	}
	if !st.Cast.CompositeCD || st.Cast.Target != int32(enemy.ID) {
		t.Errorf("Expected armed cast on %d, got %+v", enemy.ID, *st.Cast)
	}
	if st.Intercepts != 1 {
		t.Errorf("Expected 1 intercept, got %d", st.Intercepts)
	}
}

// TestInterceptSkipped verifies orders that must not be intercepted
func TestInterceptSkipped(t *testing.T) {
	ally := enemy
	ally.ID, ally.Team = 60, 2

	tests := []struct {
		name     string
		cooldown float64
		order    func() host.OrderPrepared
		tracked  bool
	}{
		{"khanda ready", 0, func() host.OrderPrepared { return castAt(nuke(), enemy, 0.3) }, true},
		{"ally target", 10, func() host.OrderPrepared { return castAt(nuke(), ally, 0.3) }, false},
		{"queued", 10, func() host.OrderPrepared {
			o := castAt(nuke(), enemy, 0.3)
			o.Order.Queue = true
			return o
		}, false},
		{"not player input", 10, func() host.OrderPrepared {
			o := castAt(nuke(), enemy, 0.3)
			o.Order.PlayerInput = false
			return o
		}, false},
		{"channelled", 10, func() host.OrderPrepared {
			a := nuke()
			a.Behavior |= host.BehaviorChannelled
			return castAt(a, enemy, 0)
		}, true},
		{"item", 10, func() host.OrderPrepared {
			a := nuke()
			a.IsItem = true
			return castAt(a, enemy, 0)
		}, false},
		{"other issuer", 10, func() host.OrderPrepared {
			o := castAt(nuke(), enemy, 0.3)
			o.Order.Issuers = []host.EntityID{9}
			return o
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newController(true)
			w := newWorld(20, tt.cooldown)

			c.Handle(w, tt.order())

			if n := len(w.Commands(host.CommandDisassemble)); n != 0 {
				t.Errorf("Expected no split, got %d", n)
			}
			if got := c.Status().Cast != nil; got != tt.tracked {
				t.Errorf("Expected tracked=%v, got %v", tt.tracked, got)
			}
		})
	}
}

// TestReadyKhandaNeverSplits verifies a cast that starts with Khanda ready is
// left alone so Khanda itself triggers
func TestReadyKhandaNeverSplits(t *testing.T) {
	c, _ := newController(true)
	w := newWorld(20, 0)

	a := nuke()
	c.Handle(w, castAt(a, enemy, 0.3))
	phase := a
	phase.InAbilityPhase = true
	frame(c, w, host.AbilityPhaseChanged{Ability: phase})
	for range 60 {
		frame(c, w)
	}

	if n := len(w.Commands(host.CommandDisassemble)); n != 0 {
		t.Errorf("Expected no split, got %d", n)
	}
}

// TestInterruptClearsCast verifies an unrelated order drops the tracked cast
func TestInterruptClearsCast(t *testing.T) {
	c, _ := newController(true)
	w := newWorld(20, 0)

	c.Handle(w, castAt(nuke(), enemy, 0.3))
	if c.Status().Cast == nil {
		t.Fatal("Expected cast tracked")
	}

	c.Handle(w, host.OrderPrepared{Order: host.Order{
		Type: host.OrderMove, Issuers: []host.EntityID{1}, PlayerInput: true,
	}})
	if c.Status().Cast != nil {
		t.Error("Expected cast cleared by move order")
	}
}

// TestRecombinesAfterCastWindow verifies the split holds through the cast and
// the components are unlocked one at a time once it lands
func TestRecombinesAfterCastWindow(t *testing.T) {
	c, rec := newController(true)
	w := newWorld(20, 10)

	a := nuke()
	c.Handle(w, castAt(a, enemy, 0.3))
	phase := a
	phase.InAbilityPhase = true
	frame(c, w, host.AbilityPhaseChanged{Ability: phase})

	for range 10 {
		frame(c, w)
		if n := len(w.Commands(host.CommandSetCombineLock)); n != 0 {
			t.Fatalf("Expected no unlock during the cast, got %d at %.3f", n, w.Now())
		}
	}

	for range 90 {
		frame(c, w)
	}

	if _, ok := w.Item(CompositeName); !ok {
		t.Fatal("Expected Khanda recombined")
	}
	unlocks := w.Commands(host.CommandSetCombineLock)
	if len(unlocks) != 2 {
		t.Fatalf("Expected 2 unlocks, got %d", len(unlocks))
	}
	if unlocks[0].Item != Phylactery || unlocks[1].Item != SoulBooster {
		t.Errorf("Expected phylactery then soul booster, got %s, %s", unlocks[0].Item, unlocks[1].Item)
	}
	if gap := unlocks[1].At - unlocks[0].At; gap < 0.1 {
		t.Errorf("Expected unlocks spaced by at least 0.1s, got %.3f", gap)
	}
	if causes := rec.causes(decision.ActionUnlock); len(causes) != 2 || causes[0] != decision.CauseRecombine {
		t.Errorf("Expected recombine unlocks, got %v", causes)
	}
}

// TestChannelSplitsOnlyAtImpact verifies a channelled cast is split inside the
// impact window and never mid-channel
func TestChannelSplitsOnlyAtImpact(t *testing.T) {
	c, rec := newController(true)
	w := newWorld(20, 10)

	a := host.Ability{
		ID: 8, Name: "pugna_life_drain", Owner: 1,
		Behavior:  host.BehaviorUnitTarget | host.BehaviorChannelled,
		CastPoint: 0.3, MaxChannelTime: 1.0,
	}
	c.Handle(w, castAt(a, enemy, 0))

	phase := a
	phase.InAbilityPhase = true
	frame(c, w, host.AbilityPhaseChanged{Ability: phase})
	for range 9 {
		frame(c, w)
	}
	channel := a
	channel.OwnerChanneling = true
	frame(c, w, host.AbilityChannelChanged{Ability: channel})
	for range 30 {
		frame(c, w)
	}
	frame(c, w, host.AbilityChannelChanged{Ability: a})

	if n := len(w.Commands(host.CommandDisassemble)); n != 0 {
		t.Fatalf("Expected no split through the channel, got %d", n)
	}

	impact := w.Now() + tick + 0.6
	frame(c, w, host.ProjectileCreated{Projectile: host.Projectile{
		ID: 900, Source: 1, SourceIsUnit: true, Target: enemy.ID, TargetIsUnit: true,
		Ability: a.ID, ExpireTime: impact,
	}})
	for range 10 {
		frame(c, w)
	}
	if n := len(w.Commands(host.CommandDisassemble)); n != 0 {
		t.Fatalf("Expected no split before the impact window, got %d at %.3f", n, w.Now())
	}

	for range 5 {
		frame(c, w)
	}
	splits := w.Commands(host.CommandDisassemble)
	if len(splits) != 1 {
		t.Fatalf("Expected 1 split in the impact window, got %d", len(splits))
	}
	if splits[0].At > impact {
		t.Errorf("Expected split before impact %.3f, got %.3f", impact, splits[0].At)
	}
	if causes := rec.causes(decision.ActionDisassemble); causes[0] != decision.CauseImpactWindow {
		t.Errorf("Expected impact window cause, got %v", causes)
	}
}

// TestPhaseWithoutOrderSplits verifies a quick-cast spell is picked up from its
// cast phase alone
func TestPhaseWithoutOrderSplits(t *testing.T) {
	c, rec := newController(true)
	w := newWorld(20, 10)

	phase := nuke()
	phase.InAbilityPhase = true
	frame(c, w, host.AbilityPhaseChanged{Ability: phase})

	st := c.Status()
	if st.Cast == nil || st.Cast.Target != int32(host.NoEntity) {
		t.Fatalf("Expected untargeted cast tracked, got %+v", st.Cast)
	}
	if causes := rec.causes(decision.ActionDisassemble); len(causes) != 1 || causes[0] != decision.CauseImpactWindow {
		t.Errorf("Expected one impact window split, got %v", causes)
	}
}

// TestPhylacteryEstimateArmsOnce verifies the Phylactery estimate arms on the
// rising edge only and suppresses the next intercept
func TestPhylacteryEstimateArmsOnce(t *testing.T) {
	c, _ := newController(true)
	w := newWorld(20, 10)

	c.Handle(w, castAt(nuke(), enemy, 0.3))
	frame(c, w)

	phyl := w.ItemRef(Phylactery)
	if phyl == nil {
		t.Fatal("Expected phylactery after split")
	}
	phyl.Cooldown = 9
	setAt := w.Now()
	frame(c, w)

	until := c.Status().PhylacteryUntil
	if math.Abs(until-(setAt+9)) > 1e-6 {
		t.Errorf("Expected estimate at %.3f, got %.3f", setAt+9, until)
	}
	for range 20 {
		frame(c, w)
	}
	if c.phylactery.Arms() != 1 {
		t.Errorf("Expected estimate armed once, got %d", c.phylactery.Arms())
	}
	if got := c.Status().PhylacteryUntil; got != until {
		t.Errorf("Expected estimate unchanged at %.3f, got %.3f", until, got)
	}

	if _, ok := w.Item(CompositeName); !ok {
		t.Fatal("Expected Khanda recombined while Phylactery is cooling")
	}
	w.ItemRef(CompositeName).Cooldown = 10
	before := len(w.Commands(host.CommandDisassemble))
	c.Handle(w, castAt(nuke(), enemy, 0.3))
	if n := len(w.Commands(host.CommandDisassemble)); n != before {
		t.Errorf("Expected no intercept while Phylactery is cooling, got %d new", n-before)
	}
}

// TestDisabledIssuesNothing verifies a disabled controller stays silent
func TestDisabledIssuesNothing(t *testing.T) {
	c, _ := newController(false)
	w := newWorld(20, 10)

	c.Handle(w, castAt(nuke(), enemy, 0.3))
	for range 30 {
		frame(c, w)
	}

	if len(w.Issued) != 0 {
		t.Errorf("Expected no commands, got %d", len(w.Issued))
	}
	if c.Status().Running {
		t.Error("Expected controller not running")
	}
}

// TestGameEndedResets verifies session end drops the tracked cast
func TestGameEndedResets(t *testing.T) {
	c, _ := newController(true)
	w := newWorld(20, 0)

	c.Handle(w, castAt(nuke(), enemy, 0.3))
	frame(c, w)
	c.Handle(w, host.GameEnded{})

	st := c.Status()
	if st.Running || st.Cast != nil || len(st.Impacts) != 0 {
		t.Errorf("Expected reset status, got %+v", st)
	}
}
