package khanda

import (
	"github.com/sirupsen/logrus"

	"splitguard/internal/decision"
	"splitguard/internal/host"
	"splitguard/internal/latency"
	"splitguard/internal/pending"
)

// onOrder records a targeted cast before it is sent and, when Khanda is on
// cooldown, splits it ahead of the order so the cast cannot consume it.
func (c *Controller) onOrder(h host.Host, o host.Order) {
	if !c.canRun(h) || !o.PlayerInput {
		return
	}
	hero, _ := h.Hero()
	if !hero.Alive || !o.IssuedBy(hero.ID) {
		return
	}
	if c.cast.InterruptedBy(o) {
		c.cast.Clear()
	}
	if o.Type != host.OrderCastTarget || o.Ability == nil {
		return
	}
	a := *o.Ability
	if a.IsItem || a.Owner != hero.ID {
		return
	}
	khanda, ok := h.Item(CompositeName)
	if !ok {
		return
	}
	if o.Target != nil && o.Target.IsUnit() && o.Target.Team == hero.Team {
		return
	}
	c.seenComposite = true
	if o.Queue {
		return
	}

	now := h.Clock().Now
	onCooldown := khanda.Cooldown > c.timings.WindowEpsilon
	if onCooldown && !a.Has(host.BehaviorChannelled) && !c.phylacteryActive(h, now) {
		if err := c.issue(h, khanda, decision.CauseCastIntercept, false, now); err != nil {
			c.log.WithError(err).Debug("intercept skipped")
		}
	}

	target := host.NoEntity
	if o.Target != nil && o.Target.IsUnit() {
		target = o.Target.ID
	}
	c.mark(h, a, target, c.castWindow(a, o), onCooldown)
}

// castWindow is how long the split must hold for a cast at its target.
func (c *Controller) castWindow(a host.Ability, o host.Order) float64 {
	window := c.fallbackWindow(a)
	if o.HitTime > 0 && o.Target != nil && o.Target.IsUnit() {
		window = max(o.HitTime+c.timings.CastWindowExtraBuffer, window)
	}
	return window
}

func (c *Controller) fallbackWindow(a host.Ability) float64 {
	return max(a.CastDelay+c.timings.CastWindowExtraBuffer, fallbackCastWindow)
}

func (c *Controller) mark(h host.World, a host.Ability, target host.EntityID, window float64, onCooldown bool) {
	clock := h.Clock()
	c.cast.Mark(pending.Intent{
		Ability:      a,
		Target:       target,
		Window:       window,
		ReleaseDelay: a.CastPoint + latency.TimingBuffer(clock),
		Timeout:      c.timings.IntentTimeout,
		CompositeCD:  onCooldown,
	}, clock.Now)

	c.log.WithFields(logrus.Fields{
		"ability":  a.Name,
		"target":   target,
		"window":   window,
		"cooldown": onCooldown,
	}).Debug("cast tracked")
}

// onPhase follows the wind-up of the tracked cast. A unit-target cast that
// never went through an order (cast by hotkey with quick cast) is picked up
// here instead.
func (c *Controller) onPhase(h host.World, a host.Ability) {
	if !c.canRun(h) {
		return
	}
	hero, _ := h.Hero()
	if a.Owner != hero.ID || a.IsItem {
		return
	}

	tracked := c.cast.Tracks(a, hero.ID)
	if a.InAbilityPhase && !tracked {
		khanda, ok := h.Item(CompositeName)
		if !ok || !a.Has(host.BehaviorUnitTarget) {
			return
		}
		c.seenComposite = true
		c.mark(h, a, host.NoEntity, c.fallbackWindow(a), khanda.Cooldown > c.timings.WindowEpsilon)
		tracked = true
	}
	if !tracked {
		return
	}

	now := h.Clock().Now
	if a.InAbilityPhase {
		c.cast.PhaseStarted(a.CastPoint, now)
		return
	}
	c.cast.PhaseEnded(now)
}

func (c *Controller) onChannel(h host.World, a host.Ability) {
	if !c.canRun(h) {
		return
	}
	hero, _ := h.Hero()
	if !c.cast.Tracks(a, hero.ID) {
		return
	}
	clock := h.Clock()
	buffer := latency.TimingBuffer(clock)
	if a.OwnerChanneling {
		c.cast.ChannelStarted(a, buffer, clock.Now)
		return
	}
	c.cast.ChannelEnded(buffer, clock.Now)
}

func (c *Controller) onProjectile(h host.World, p host.Projectile) {
	if !c.canRun(h) {
		return
	}
	hero, _ := h.Hero()
	if !c.cast.Matches(p, hero.ID) {
		return
	}
	clock := h.Clock()
	c.cast.Schedule(pending.ImpactAt(p, clock.Now), c.leads(clock), clock.Now)
}
