// Package pending tracks the one self-initiated cast a controller is
// currently splitting around, from order through wind-up, channel and
// projectile impact.
package pending

import (
	"slices"

	"splitguard/internal/host"
)

// Fixed release offsets, seconds.
const (
	phaseReleaseFloor   = 0.12
	channelReleaseFloor = 0.15
	phaseEndRelease     = 0.08
	releaseFloor        = 0.08
	impactFallback      = 0.5
)

// Cast is the record of one tracked cast.
type Cast struct {
	Ability     host.AbilityID
	Target      host.EntityID // NoEntity when untargeted
	Channelled  bool
	InChannel   bool
	PhaseSeen   bool
	CompositeCD bool // composite was on cooldown when the intent was recorded

	ReleaseAt       float64 // projected release of the effect; <= 0 unknown
	IntentTimeoutAt float64
}

// Leads are the impact window margins for the current tick.
type Leads struct {
	Pre  float64
	Post float64
}

// Tracker holds the pending cast, the own-cast window and the scheduled
// projectile impacts.
type Tracker struct {
	active      bool
	cast        Cast
	windowUntil float64
	impacts     []float64
}

// Intent is what the caller knows when a cast is first seen.
type Intent struct {
	Ability      host.Ability
	Target       host.EntityID
	Window       float64 // own-cast window duration
	ReleaseDelay float64 // seconds until projected release
	Timeout      float64
	CompositeCD  bool
}

// Mark records a new cast intent, replacing any previous one. The own-cast
// window only ever grows.
func (t *Tracker) Mark(in Intent, now float64) {
	t.active = true
	t.cast = Cast{
		Ability:         in.Ability.ID,
		Target:          in.Target,
		Channelled:      in.Ability.Has(host.BehaviorChannelled),
		CompositeCD:     in.CompositeCD,
		ReleaseAt:       now + max(in.ReleaseDelay, releaseFloor),
		IntentTimeoutAt: now + in.Timeout,
	}
	t.windowUntil = max(t.windowUntil, now+in.Window)
}

// Active reports whether a cast is tracked.
func (t *Tracker) Active() bool { return t.active }

// Cast returns the tracked cast.
func (t *Tracker) Cast() (Cast, bool) { return t.cast, t.active }

// Clear drops the pending cast. The own-cast window and impact schedule are
// left to expire on their own.
func (t *Tracker) Clear() {
	if !t.active {
		return
	}
	t.active = false
	t.cast = Cast{Ability: host.NoAbility, Target: host.NoEntity}
}

// Reset drops everything.
func (t *Tracker) Reset() {
	t.active = false
	t.cast = Cast{Ability: host.NoAbility, Target: host.NoEntity}
	t.windowUntil = 0
	t.impacts = t.impacts[:0]
}

// Tracks reports whether a belongs to owner and is the tracked cast.
func (t *Tracker) Tracks(a host.Ability, owner host.EntityID) bool {
	return t.active &&
		t.cast.Ability != host.NoAbility &&
		a.ID == t.cast.Ability &&
		a.Owner == owner
}

// InterruptedBy reports whether an unqueued player order abandons the cast.
func (t *Tracker) InterruptedBy(o host.Order) bool {
	if !t.active || o.Queue {
		return false
	}
	return o.Ability == nil || o.Ability.ID != t.cast.Ability
}

// PhaseStarted pushes the release out to the end of the cast point.
func (t *Tracker) PhaseStarted(castPoint, now float64) {
	t.cast.PhaseSeen = true
	t.cast.ReleaseAt = max(t.cast.ReleaseAt, now+max(castPoint+phaseReleaseFloor, phaseReleaseFloor))
	t.windowUntil = max(t.windowUntil, t.cast.ReleaseAt)
}

// PhaseEnded sets a short release when no phase or release was ever seen.
func (t *Tracker) PhaseEnded(now float64) {
	if !t.cast.PhaseSeen && t.cast.ReleaseAt <= 0 {
		t.cast.ReleaseAt = now + phaseEndRelease
	}
}

// ChannelStarted holds the release until the channel can end.
func (t *Tracker) ChannelStarted(a host.Ability, buffer, now float64) {
	t.cast.InChannel = true
	t.cast.PhaseSeen = true
	remain := max(a.ChannelEndTime, a.MaxChannelTime, 0)
	t.cast.ReleaseAt = max(t.cast.ReleaseAt, now+max(remain+buffer, channelReleaseFloor))
	t.windowUntil = max(t.windowUntil, t.cast.ReleaseAt)
}

// ChannelEnded moves the release to just after now; the projectile spawns on
// a later tick.
func (t *Tracker) ChannelEnded(buffer, now float64) {
	t.cast.InChannel = false
	t.cast.ReleaseAt = now + buffer
	t.windowUntil = t.cast.ReleaseAt
}

// Matches reports whether p was launched by the tracked cast.
func (t *Tracker) Matches(p host.Projectile, owner host.EntityID) bool {
	if t.cast.Ability == host.NoAbility || !t.active {
		return false
	}
	if p.Source != owner || p.IsAttack {
		return false
	}
	if p.Ability != t.cast.Ability && p.Ability != host.NoAbility {
		return false
	}
	if t.cast.Target != host.NoEntity && p.Target != t.cast.Target {
		return false
	}
	return true
}

// ImpactAt projects when p lands: the host expiry, else distance over speed,
// else a short fallback.
func ImpactAt(p host.Projectile, now float64) float64 {
	if p.ExpireTime > now {
		return p.ExpireTime
	}
	if p.Speed > 0 && p.SourceIsUnit && p.TargetIsUnit {
		return now + p.Distance/p.Speed
	}
	return now + impactFallback
}

// Schedule adds a projected impact.
func (t *Tracker) Schedule(impactAt float64, leads Leads, now float64) {
	t.impacts = append(t.impacts, impactAt)
	t.Prune(leads, now)
}

// Prune drops impacts older than the post-impact lead.
func (t *Tracker) Prune(leads Leads, now float64) {
	oldest := now - leads.Post
	t.impacts = slices.DeleteFunc(t.impacts, func(at float64) bool {
		return at < oldest
	})
}

// Impacts returns the scheduled impacts.
func (t *Tracker) Impacts() []float64 { return t.impacts }

// WindowRemaining is the time left in the own-cast window.
func (t *Tracker) WindowRemaining(now float64) float64 {
	return max(t.windowUntil-now, 0)
}

// FlightRemaining is the time until the latest scheduled impact.
func (t *Tracker) FlightRemaining(leads Leads, now float64) float64 {
	t.Prune(leads, now)
	var remaining float64
	for _, at := range t.impacts {
		if at > now {
			remaining = max(remaining, at-now)
		}
	}
	return remaining
}

// ImpactWindowRemaining is the time left in any impact window that contains
// now. A window spans [impact - pre, impact + post).
func (t *Tracker) ImpactWindowRemaining(leads Leads, now float64) float64 {
	t.Prune(leads, now)
	var remaining float64
	for _, at := range t.impacts {
		start, end := at-leads.Pre, at+leads.Post
		if now < start || now >= end {
			continue
		}
		remaining = max(remaining, end-now)
	}
	return remaining
}

// ShouldDelayRecombine reports whether recombining now would land inside the
// cast. It clears a cast whose release has passed or whose intent timed out.
func (t *Tracker) ShouldDelayRecombine(heroChanneling bool, leads Leads, eps, now float64) bool {
	if now < t.windowUntil {
		return true
	}
	if heroChanneling || t.cast.InChannel {
		return true
	}
	if t.FlightRemaining(leads, now) > eps {
		return true
	}
	if t.ImpactWindowRemaining(leads, now) > eps {
		return true
	}
	if !t.active {
		return false
	}

	if t.cast.ReleaseAt <= 0 {
		if now < t.cast.IntentTimeoutAt {
			return true
		}
		t.Clear()
		return false
	}
	if now < t.cast.ReleaseAt {
		return true
	}
	t.Clear()
	return false
}
