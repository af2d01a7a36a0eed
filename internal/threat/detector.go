// Package threat decides, once per tick, whether anything hostile is in
// progress against the controlled actor: an incoming projectile, a melee
// attacker in reach, or a damaging effect.
package threat

import (
	"fmt"
	"maps"
	"slices"

	"splitguard/internal/host"
)

// expirySlack is added to a host-reported projectile expiry.
const expirySlack = 0.05

// Settings are the per-tick adjustable inputs.
type Settings struct {
	AllowOwnAttack     bool
	Cooldown           float64
	RecentDamageWindow float64
	DamageDebuffWindow float64
}

// Ranges bounds the proximity checks.
type Ranges struct {
	EnemyRadius     float64
	CreepExtraRange float64
	CreepRangeFloor float64
}

// Detector owns the threat bookkeeping of one controller. It never mutates
// host entities; candidates are kept as ids and re-read every tick.
type Detector struct {
	ranges             Ranges
	projectileLifetime float64

	heroes       map[host.EntityID]struct{}
	creeps       map[host.EntityID]struct{}
	bootstrapped bool

	projectiles map[int64]float64 // id -> expiry
	own         map[int64]struct{}

	lastThreatTime   float64
	ownAttackUntil   float64
	damageUntil      float64
	lastRecentDamage float64
	hadDebuff        bool
}

// NewDetector creates an empty detector.
func NewDetector(r Ranges, projectileLifetime float64) *Detector {
	return &Detector{
		ranges:             r,
		projectileLifetime: projectileLifetime,
		heroes:             make(map[host.EntityID]struct{}),
		creeps:             make(map[host.EntityID]struct{}),
		projectiles:        make(map[int64]float64),
		own:                make(map[int64]struct{}),
	}
}

// Bootstrap fills the candidate sets from the live population the first
// time it is called after a candidate reset.
func (d *Detector) Bootstrap(w host.World) {
	if d.bootstrapped {
		return
	}
	for _, e := range w.Entities() {
		d.Track(e)
	}
	d.bootstrapped = true
}

// Track adds e to a candidate set when it is a valid melee hero or a valid
// melee non-hero creep that is not a structure.
func (d *Detector) Track(e host.Entity) {
	if !e.Valid || !e.Melee {
		return
	}
	switch {
	case e.IsHero():
		d.heroes[e.ID] = struct{}{}
	case e.Kind == host.KindUnit && e.Creep && !e.Building:
		d.creeps[e.ID] = struct{}{}
	}
}

// Forget drops e from both candidate sets.
func (d *Detector) Forget(e host.Entity) {
	delete(d.heroes, e.ID)
	delete(d.creeps, e.ID)
}

// Candidates returns the tracked hero and creep counts.
func (d *Detector) Candidates() (heroes, creeps int) {
	return len(d.heroes), len(d.creeps)
}

// ResetCandidates clears the candidate sets; the next Bootstrap refills them.
func (d *Detector) ResetCandidates() {
	clear(d.heroes)
	clear(d.creeps)
	d.bootstrapped = false
}

// Reset clears everything except the candidate sets.
func (d *Detector) Reset() {
	clear(d.projectiles)
	clear(d.own)
	d.lastThreatTime = 0
	d.ownAttackUntil = 0
	d.damageUntil = 0
	d.lastRecentDamage = 0
	d.hadDebuff = false
}

// ActiveProjectiles returns the number of tracked projectiles.
func (d *Detector) ActiveProjectiles() int {
	return len(d.projectiles)
}

// Cleanup purges projectiles past their expiry.
func (d *Detector) Cleanup(now float64) {
	for id, expiry := range d.projectiles {
		if now > expiry {
			delete(d.projectiles, id)
			delete(d.own, id)
		}
	}
}

// ProjectileKind classifies a projectile notification.
type ProjectileKind int

const (
	Ignored ProjectileKind = iota
	Incoming
	OwnAttack
)

// UpsertProjectile tracks p if it is an incoming attack on hero, or hero's
// own attack on an enemy unit when allowOwn is set.
func (d *Detector) UpsertProjectile(p host.Projectile, hero host.Hero, now float64, allowOwn bool) ProjectileKind {
	incoming := p.Target == hero.ID &&
		p.SourceIsUnit &&
		p.SourceTeam != hero.Team
	ownAttack := allowOwn &&
		p.IsAttack &&
		p.Source == hero.ID &&
		p.TargetIsUnit &&
		p.TargetTeam != hero.Team

	if !incoming && !ownAttack {
		return Ignored
	}

	d.projectiles[p.ID] = d.expiry(p, now)
	if ownAttack {
		d.own[p.ID] = struct{}{}
		return OwnAttack
	}
	delete(d.own, p.ID)
	d.lastThreatTime = now
	return Incoming
}

// DestroyProjectile stops tracking a projectile. Losing a hostile projectile
// restarts the threat cooldown.
func (d *Detector) DestroyProjectile(id int64, now float64) {
	if _, ok := d.projectiles[id]; !ok {
		return
	}
	delete(d.projectiles, id)
	if _, own := d.own[id]; own {
		delete(d.own, id)
		return
	}
	d.lastThreatTime = now
}

// ExtendOwnAttack keeps the own-attack window open until at least until.
func (d *Detector) ExtendOwnAttack(until float64) {
	d.ownAttackUntil = max(d.ownAttackUntil, until)
}

func (d *Detector) expiry(p host.Projectile, now float64) float64 {
	if p.ExpireTime > now {
		return p.ExpireTime + expirySlack
	}
	return now + d.projectileLifetime
}

// Reason returns the first active threat in priority order. It samples the
// hero's damage counters, so call it once per tick.
func (d *Detector) Reason(w host.World, hero host.Hero, now float64, s Settings) (string, bool) {
	if now-d.lastThreatTime < s.Cooldown {
		return "threat cooldown window", true
	}

	if n := len(d.projectiles); n > 0 {
		return fmt.Sprintf("tracking projectiles active (%d)", n), true
	}

	if s.AllowOwnAttack && now < d.ownAttackUntil {
		return fmt.Sprintf("own attack cast window (%.2fs)", d.ownAttackUntil-now), true
	}

	if reason, ok := d.damageReason(hero, now, s); ok {
		return reason, true
	}

	for _, id := range slices.Sorted(maps.Keys(d.heroes)) {
		enemy, ok := w.Entity(id)
		if !ok || !enemy.Valid {
			delete(d.heroes, id)
			continue
		}
		if d.heroThreat(hero, enemy) {
			return fmt.Sprintf("enemy attack nearby (%s)", enemy.Name), true
		}
	}

	for _, id := range slices.Sorted(maps.Keys(d.creeps)) {
		creep, ok := w.Entity(id)
		if !ok || !creep.Valid {
			delete(d.creeps, id)
			continue
		}
		if d.creepThreat(hero, creep) {
			return fmt.Sprintf("creep attack nearby (%s)", creep.Name), true
		}
	}

	return "", false
}

// hostileAttacker holds the checks shared by heroes and creeps. Ranged
// attackers are covered by projectile tracking, not distance.
func hostileAttacker(hero host.Hero, e host.Entity) bool {
	if e.ID == hero.ID {
		return false
	}
	if !e.Valid || !e.Alive || !e.Visible {
		return false
	}
	if e.Team == hero.Team || !e.Melee || !e.Attacking {
		return false
	}
	return e.Target == host.NoEntity || e.Target == hero.ID
}

func (d *Detector) heroThreat(hero host.Hero, enemy host.Entity) bool {
	if !hostileAttacker(hero, enemy) {
		return false
	}
	return enemy.Distance2D(hero.Entity) <= d.ranges.EnemyRadius
}

func (d *Detector) creepThreat(hero host.Hero, creep host.Entity) bool {
	if creep.IsHero() || !creep.Creep || creep.Building {
		return false
	}
	if !hostileAttacker(hero, creep) {
		return false
	}
	reach := max(creep.AttackRange, d.ranges.CreepRangeFloor) + d.ranges.CreepExtraRange
	return creep.Distance2D(hero.Entity) <= reach
}

func (d *Detector) damageReason(hero host.Hero, now float64, s Settings) (string, bool) {
	recent := hero.RecentDamage
	if recent > 0 && recent > d.lastRecentDamage && !friendlyDamageDebuff(hero) {
		d.damageUntil = max(d.damageUntil, now+s.RecentDamageWindow)
	}
	d.lastRecentDamage = recent

	debuff, active := enemyDamageDebuff(hero)
	if active {
		if !d.hadDebuff {
			d.damageUntil = max(d.damageUntil, now+s.DamageDebuffWindow)
		}
		d.hadDebuff = true
		return fmt.Sprintf("damage debuff (%s)", debuff), true
	}

	// Tail after the source disappears.
	if d.hadDebuff {
		d.damageUntil = max(d.damageUntil, now+s.DamageDebuffWindow)
	}
	d.hadDebuff = false

	if now < d.damageUntil {
		hold := max(d.damageUntil-now, 0)
		if recent > 0 {
			return fmt.Sprintf("recent damage (%g); hold (%.2fs)", recent, hold), true
		}
		return fmt.Sprintf("damage hold window (%.2fs)", hold), true
	}
	return "", false
}

// friendlyDamageDebuff reports whether a listed damage effect from an ally
// explains the latest damage.
func friendlyDamageDebuff(hero host.Hero) bool {
	for _, m := range hero.Modifiers {
		if IsDamageModifier(m.Name) && m.HasCaster && m.CasterTeam == hero.Team {
			return true
		}
	}
	return false
}

// enemyDamageDebuff finds a harmful effect from a non-allied source: either
// a listed damage effect, or any unlisted debuff reporting network damage.
func enemyDamageDebuff(hero host.Hero) (string, bool) {
	for _, m := range hero.Modifiers {
		if !m.Valid || !m.Debuff {
			continue
		}
		if IsDamageModifier(m.Name) {
			if m.HasCaster && m.CasterTeam == hero.Team {
				continue
			}
			return m.Name, true
		}
		if m.NetworkDamage > 0 {
			return m.Name, true
		}
	}
	return "", false
}
