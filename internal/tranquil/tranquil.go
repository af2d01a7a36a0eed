// Package tranquil implements the threat-driven split controller for
// Tranquil Boots: split the boots whenever something hostile is in progress,
// recombine them as soon as it is safe, and run an anti-stick cycle so the
// boots never sit assembled for longer than the disassemble window allows.
package tranquil

import (
	"errors"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"splitguard/internal/config"
	"splitguard/internal/decision"
	"splitguard/internal/gate"
	"splitguard/internal/host"
	"splitguard/internal/latency"
	"splitguard/internal/sequencer"
	"splitguard/internal/threat"
)

// Item names.
const (
	CompositeName   = "item_tranquil_boots"
	CompositePrefix = "item_tranquil_boots"
	Boots           = "item_boots"
	WindLace        = "item_wind_lace"
	RingOfRegen     = "item_ring_of_regen"
)

// Components lists the boots' parts in unlock order.
var Components = []string{Boots, WindLace, RingOfRegen}

// Gate keys.
const (
	keyDisassemble         = "tranquil_disassemble"
	keyDisassembleCritical = "tranquil_disassemble_critical"
	keyUnlockPrefix        = "unlock_"
)

// SettingsSource supplies the live settings, read once per tick.
type SettingsSource interface {
	Tranquil() config.TranquilSettings
}

// Options carries optional collaborators.
type Options struct {
	Sink   decision.Sink
	Logger *logrus.Entry
	Rand   *rand.Rand
}

// Controller is one instance of the boots controller. It is not safe for
// concurrent use; the engine serialises calls.
type Controller struct {
	settings SettingsSource
	timings  config.TranquilTimings
	sink     decision.Sink
	log      *logrus.Entry

	gate   *gate.Sleeper
	threat *threat.Detector
	seq    *sequencer.Sequencer
	cycle  *cycle

	seenComposite  bool
	running        bool
	lastReason     string
	compositeState string
	splits         int
	unlocks        int
}

// New creates a controller.
func New(settings SettingsSource, timings config.TranquilTimings, opts Options) *Controller {
	if opts.Sink == nil {
		opts.Sink = decision.Discard
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	log := opts.Logger.WithField("controller", decision.Tranquil)

	g := gate.New()
	c := &Controller{
		settings: settings,
		timings:  timings,
		sink:     opts.Sink,
		log:      log,
		gate:     g,
		threat: threat.NewDetector(threat.Ranges{
			EnemyRadius:     timings.EnemyThreatRadius,
			CreepExtraRange: timings.CreepThreatExtraRange,
			CreepRangeFloor: timings.CreepAttackRangeFloor,
		}, timings.ProjectileLifetime),
		seq: sequencer.New(sequencer.Config{
			Components:      Components,
			KeyPrefix:       keyUnlockPrefix,
			RetryDelay:      timings.ReassembleRetryDelay,
			UnlockDelayMin:  timings.UnlockDelayMin,
			UnlockDelayMax:  timings.UnlockDelayMax,
			CombineCooldown: timings.CombineCooldown,
		}, g, opts.Rand),
		cycle:          newCycle(log),
		compositeState: CompositeAbsent,
	}
	return c
}

// Name returns the controller name.
func (c *Controller) Name() string { return decision.Tranquil }

// Handle processes one event to completion.
func (c *Controller) Handle(h host.Host, ev host.Event) {
	switch e := ev.(type) {
	case host.Tick:
		c.tick(h, e.DT)
	case host.GameStarted:
		c.threat.ResetCandidates()
	case host.GameEnded:
		c.reset(true)
	case host.EntityCreated:
		c.threat.Track(e.Entity)
	case host.EntityDestroyed:
		c.threat.Forget(e.Entity)
	case host.ProjectileCreated:
		c.upsertProjectile(h, e.Projectile, true)
	case host.ProjectileUpdated:
		c.upsertProjectile(h, e.Projectile, false)
	case host.ProjectileDestroyed:
		if c.settings.Tranquil().Enabled {
			c.threat.DestroyProjectile(e.Projectile.ID, h.Clock().Now)
		}
	case host.AttackStarted:
		c.onAttackStarted(h, e)
	}
}

// Reset clears all runtime state, including threat candidates.
func (c *Controller) Reset() {
	c.reset(true)
}

func (c *Controller) reset(clearCandidates bool) {
	if c.running {
		c.log.Info("runtime state reset")
	}
	c.running = false
	c.threat.Reset()
	c.seq.Reset()
	c.cycle.reset()
	c.gate.Reset()
	c.seenComposite = false
	c.lastReason = ""
	c.compositeState = CompositeAbsent
	if clearCandidates {
		c.threat.ResetCandidates()
	}
}

func (c *Controller) canRun(h host.World, s config.TranquilSettings) bool {
	if !s.Enabled || !h.Session().Playable() {
		return false
	}
	hero, ok := h.Hero()
	return ok && hero.Valid
}

func (c *Controller) tick(h host.Host, dt float64) {
	if dt == 0 {
		return
	}

	s := c.settings.Tranquil()
	if !c.canRun(h, s) {
		c.reset(false)
		return
	}
	c.running = true

	now := h.Clock().Now
	c.threat.Bootstrap(h)
	c.threat.Cleanup(now)

	hero, _ := h.Hero()
	reason, isThreat := c.threat.Reason(h, hero, now, threatSettings(s))
	c.lastReason = reason

	boots, hasBoots := c.composite(h)
	if hasBoots {
		c.seenComposite = true
	}
	c.compositeState = c.describe(h, hasBoots)
	c.confirmCycle(h, hero, s, now)

	if h.KeyPressed(s.HoldDisassembleKey) {
		if hasBoots {
			c.disassemble(h, decision.CauseHoldKey, "hold key", false, false)
		}
		return
	}

	if err := c.lockReason(boots, hasBoots, now); err != nil {
		c.log.WithError(err).Debug("split locked")
		return
	}

	if isThreat {
		if hasBoots {
			c.disassemble(h, decision.CauseThreat, reason, false, false)
		}
		return
	}

	if !hasBoots {
		c.recombine(h, now)
		return
	}
	c.seq.Hold()

	if hero.InAbilityPhase || hero.Channeling {
		if c.cycle.awaiting() {
			c.cycle.settle(now)
		}
		return
	}

	c.runCycle(h, boots, s, now)
}

func threatSettings(s config.TranquilSettings) threat.Settings {
	return threat.Settings{
		AllowOwnAttack:     s.AbuseOnMyAttacks,
		Cooldown:           s.ThreatCooldown,
		RecentDamageWindow: s.RecentDamageThreatWindow,
		DamageDebuffWindow: s.DamageDebuffThreatWindow,
	}
}

// composite finds the boots by exact name, then by prefix.
func (c *Controller) composite(w host.World) (host.Item, bool) {
	if it, ok := w.Item(CompositeName); ok {
		return it, true
	}
	return w.ItemWithPrefix(CompositePrefix)
}

// disassembled reports whether the boots are known to be split: absent, seen
// earlier this session, and every component present.
func (c *Controller) disassembled(w host.World, hasBoots bool) bool {
	if hasBoots || !c.seenComposite {
		return false
	}
	return c.seq.AllPresent(w)
}

func (c *Controller) describe(w host.World, hasBoots bool) string {
	switch {
	case hasBoots:
		return CompositeAssembled
	case c.disassembled(w, hasBoots):
		return CompositeDisassembled
	default:
		return CompositeAbsent
	}
}

// windowRemaining is the time left to split after assembly.
func (c *Controller) windowRemaining(boots host.Item, hasBoots bool, now float64) float64 {
	if !hasBoots || boots.AssembledTime <= 0 {
		return 0
	}
	return max(boots.AssembledTime+c.timings.InitialDisassembleWindow-now, 0)
}

// lockReason returns nil when a split is legal. Absent boots or an unknown
// assembly time never lock.
func (c *Controller) lockReason(boots host.Item, hasBoots bool, now float64) error {
	if !hasBoots || boots.AssembledTime <= 0 {
		return nil
	}
	eps := c.timings.WindowEpsilon
	remaining := c.windowRemaining(boots, hasBoots, now)
	if remaining <= eps {
		return decision.ErrWindowClosed
	}
	if boots.Cooldown > remaining+eps {
		return decision.ErrCooldownExceedsWindow
	}
	return nil
}

// CanDisassemble reports whether splitting boots is legal at now.
func (c *Controller) CanDisassemble(boots host.Item, now float64) bool {
	return c.lockReason(boots, true, now) == nil
}

// disassemble issues the split. Causes other than the cycle, and forced cycle
// retries, are critical: unqueued and spaced by the short cooldown.
func (c *Controller) disassemble(h host.Host, cause decision.Cause, reason string, forceImmediate, bypassCooldown bool) error {
	boots, ok := c.composite(h)
	if !ok {
		return decision.ErrNoComposite
	}
	if _, ok := h.Hero(); !ok {
		return decision.ErrNoComposite
	}

	now := h.Clock().Now
	if err := c.lockReason(boots, true, now); err != nil {
		return err
	}

	critical := cause != decision.CauseAntiStickCycle || forceImmediate
	key, cooldown := keyDisassemble, c.timings.DisassembleCooldown
	if critical {
		key, cooldown = keyDisassembleCritical, c.timings.CriticalDisassembleCooldown
	}
	if !bypassCooldown && c.gate.Sleeping(key, now) {
		return decision.ErrGated
	}

	queue := !critical
	h.Disassemble(boots.Name, queue)
	c.gate.Sleep(key, cooldown, now)
	if cause != decision.CauseAntiStickCycle {
		c.cycle.lastCycleTime = now
	}
	c.splits++

	c.log.WithFields(logrus.Fields{
		"cause": cause,
		"item":  boots.Name,
		"queue": queue,
	}).Info("disassemble")
	c.sink.Record(decision.Record{
		At:         time.Now(),
		GameTime:   now,
		Controller: decision.Tranquil,
		Action:     decision.ActionDisassemble,
		Cause:      cause,
		Item:       boots.Name,
		Queue:      queue,
		Reason:     reason,
	})
	return nil
}

func (c *Controller) recombine(h host.Host, now float64) {
	name, res := c.seq.Step(h, now)
	if res != sequencer.Unlocked {
		return
	}
	c.unlocks++
	c.log.WithField("item", name).Debug("unlock component")
	c.sink.Record(decision.Record{
		At:         time.Now(),
		GameTime:   now,
		Controller: decision.Tranquil,
		Action:     decision.ActionUnlock,
		Cause:      decision.CauseRecombine,
		Item:       name,
		Queue:      true,
	})
}

func (c *Controller) upsertProjectile(h host.Host, p host.Projectile, splitNow bool) {
	s := c.settings.Tranquil()
	if !s.Enabled {
		return
	}
	hero, ok := h.Hero()
	if !ok || !hero.Valid {
		return
	}

	kind := c.threat.UpsertProjectile(p, hero, h.Clock().Now, s.AbuseOnMyAttacks)
	if kind == threat.Ignored || !splitNow {
		return
	}
	c.disassemble(h, decision.CauseProjectileCreated, "projectile created", false, false)
}

func (c *Controller) onAttackStarted(h host.Host, e host.AttackStarted) {
	s := c.settings.Tranquil()
	if !s.Enabled || !s.AbuseOnMyAttacks {
		return
	}
	sess := h.Session()
	if !sess.Connected || !sess.InGame {
		return
	}
	hero, ok := h.Hero()
	if !ok || !hero.Valid || !hero.Alive || e.Unit != hero.ID {
		return
	}
	// Spell animations also raise attack starts.
	if hero.InAbilityPhase || hero.Channeling || !hero.Attacking {
		return
	}

	now := h.Clock().Now
	c.threat.ExtendOwnAttack(now + max(e.CastPoint, 0) + c.timings.OwnAttackThreatBuffer)

	cause := decision.CauseAttackStartRanged
	if hero.Melee {
		cause = decision.CauseAttackStartMelee
	}
	if err := c.disassemble(h, cause, "own attack", false, false); err != nil && !errors.Is(err, decision.ErrGated) {
		c.log.WithError(err).Debug("attack split skipped")
	}
}

// actionCost is the projected cost of one split and full recombine.
func (c *Controller) actionCost() latency.ActionCost {
	return latency.ActionCost{
		Components:          len(Components),
		DisassembleCooldown: c.timings.DisassembleCooldown,
		RetryDelay:          c.timings.ReassembleRetryDelay,
		CombineCooldown:     c.timings.CombineCooldown,
		UnlockDelayMax:      c.timings.UnlockDelayMax,
	}
}
