// Package khanda implements the cast-intercept split controller for Khanda.
// Khanda is split into Phylactery and Soul Booster right before a targeted
// spell would otherwise trigger Khanda while it is on cooldown, so that
// Phylactery triggers instead, then recombined once the spell has landed.
package khanda

import (
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"splitguard/internal/config"
	"splitguard/internal/decision"
	"splitguard/internal/gate"
	"splitguard/internal/host"
	"splitguard/internal/latency"
	"splitguard/internal/pending"
	"splitguard/internal/sequencer"
)

// Item names.
const (
	CompositeName = "item_angels_demise"
	Phylactery    = "item_phylactery"
	SoulBooster   = "item_soul_booster"
)

// Components lists Khanda's parts in unlock order.
var Components = []string{Phylactery, SoulBooster}

const (
	keyDisassemble         = "khanda_disassemble"
	keyDisassembleCritical = "khanda_disassemble_critical"
	keyUnlockPrefix        = "khanda_unlock_"

	fallbackCastWindow = 0.12
)

// SettingsSource supplies the live settings, read once per tick.
type SettingsSource interface {
	Khanda() config.KhandaSettings
}

// Options carries optional collaborators.
type Options struct {
	Sink   decision.Sink
	Logger *logrus.Entry
	Rand   *rand.Rand
}

// Controller is one instance of the Khanda controller. Not safe for
// concurrent use.
type Controller struct {
	settings SettingsSource
	timings  config.KhandaTimings
	sink     decision.Sink
	log      *logrus.Entry

	gate       *gate.Sleeper
	seq        *sequencer.Sequencer
	cast       pending.Tracker
	phylactery *pending.CooldownEstimate

	seenComposite  bool
	running        bool
	compositeState string
	splits         int
	intercepts     int
	unlocks        int
}

// New creates a controller.
func New(settings SettingsSource, timings config.KhandaTimings, opts Options) *Controller {
	if opts.Sink == nil {
		opts.Sink = decision.Discard
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}

	g := gate.New()
	c := &Controller{
		settings: settings,
		timings:  timings,
		sink:     opts.Sink,
		log:      opts.Logger.WithField("controller", decision.Khanda),
		gate:     g,
		seq: sequencer.New(sequencer.Config{
			Components:      Components,
			KeyPrefix:       keyUnlockPrefix,
			RetryDelay:      timings.ReassembleRetryDelay,
			UnlockDelayMin:  timings.UnlockDelayMin,
			UnlockDelayMax:  timings.UnlockDelayMax,
			CombineCooldown: timings.CombineCooldown,
		}, g, opts.Rand),
		phylactery:     pending.NewCooldownEstimate(timings.WindowEpsilon),
		compositeState: CompositeAbsent,
	}
	c.cast.Reset()
	return c
}

// Name returns the controller name.
func (c *Controller) Name() string { return decision.Khanda }

// Handle processes one event to completion.
func (c *Controller) Handle(h host.Host, ev host.Event) {
	switch e := ev.(type) {
	case host.Tick:
		c.tick(h, e.DT)
	case host.GameEnded:
		c.Reset()
	case host.OrderPrepared:
		c.onOrder(h, e.Order)
	case host.AbilityPhaseChanged:
		c.onPhase(h, e.Ability)
	case host.AbilityChannelChanged:
		c.onChannel(h, e.Ability)
	case host.ProjectileCreated:
		c.onProjectile(h, e.Projectile)
	}
}

// Reset clears all runtime state.
func (c *Controller) Reset() {
	if c.running {
		c.log.Info("runtime state reset")
	}
	c.running = false
	c.cast.Reset()
	c.phylactery.Reset()
	c.seq.Reset()
	c.gate.Reset()
	c.seenComposite = false
	c.compositeState = CompositeAbsent
}

func (c *Controller) canRun(h host.World) bool {
	if !c.settings.Khanda().Enabled || !h.Session().Playable() {
		return false
	}
	hero, ok := h.Hero()
	return ok && hero.Valid
}

// leads returns the impact window margins for the current clock.
func (c *Controller) leads(clock host.Clock) pending.Leads {
	return pending.Leads{
		Pre:  latency.PreImpactLead(clock, c.timings.CriticalDisassembleCooldown),
		Post: latency.PostImpactLead(clock),
	}
}

func (c *Controller) tick(h host.Host, dt float64) {
	if dt == 0 {
		return
	}
	if !c.canRun(h) {
		c.Reset()
		return
	}
	c.running = true

	hero, _ := h.Hero()
	clock := h.Clock()
	now := clock.Now
	eps := c.timings.WindowEpsilon
	leads := c.leads(clock)
	c.cast.Prune(leads, now)

	khanda, hasKhanda := h.Item(CompositeName)
	if hasKhanda {
		c.seenComposite = true
	}
	c.compositeState = c.describe(h, hasKhanda)

	if !hasKhanda {
		ownCast := c.cast.WindowRemaining(now) > eps
		canRecombine := c.phylacteryActive(h, now) ||
			(!ownCast && !c.cast.ShouldDelayRecombine(hero.Channeling, leads, eps, now))

		switch {
		case c.disassembled(h) && canRecombine && c.seq.Ready(now):
			c.recombine(h, now)
		case !canRecombine:
			c.seq.Hold()
		}
		return
	}
	c.seq.Hold()

	ownCast := c.cast.WindowRemaining(now)
	flight := c.cast.FlightRemaining(leads, now)
	impact := c.cast.ImpactWindowRemaining(leads, now)
	cast, active := c.cast.Cast()
	keepSplit := (active && cast.InChannel) ||
		ownCast > eps ||
		flight > eps ||
		impact > eps

	if active && !keepSplit {
		c.cast.Clear()
	}
	if c.phylacteryActive(h, now) || !keepSplit {
		return
	}

	// Let a plain cast reach its release point so Khanda's own trigger is
	// not pre-empted when it was ready at cast start.
	waitRelease := active &&
		!cast.CompositeCD &&
		!cast.InChannel &&
		flight <= eps &&
		impact <= eps &&
		(cast.ReleaseAt <= 0 || now < cast.ReleaseAt)
	if waitRelease {
		return
	}

	// Channelled spells split only inside the impact window, never mid-channel.
	if active && cast.CompositeCD && cast.Channelled && impact <= eps {
		return
	}

	if err := c.disassemble(h, khanda, decision.CauseImpactWindow, false); err != nil {
		c.log.WithError(err).Debug("impact split skipped")
	}
}

// disassembled reports whether Khanda is known to be split.
func (c *Controller) disassembled(w host.World) bool {
	if _, ok := w.Item(CompositeName); ok || !c.seenComposite {
		return false
	}
	return c.seq.AllPresent(w)
}

func (c *Controller) describe(w host.World, hasKhanda bool) string {
	switch {
	case hasKhanda:
		return CompositeAssembled
	case c.disassembled(w):
		return CompositeDisassembled
	default:
		return CompositeAbsent
	}
}

// phylacteryActive folds the latest Phylactery reading into the estimate.
func (c *Controller) phylacteryActive(h host.World, now float64) bool {
	var observed float64
	if hero, ok := h.Hero(); ok && hero.Valid {
		if it, ok := h.Item(Phylactery); ok {
			observed = it.Cooldown
		}
	}
	return c.phylactery.Active(observed, now)
}

// disassemble splits Khanda for the tracked cast. It only fires when Khanda
// was already on cooldown as the cast started.
func (c *Controller) disassemble(h host.Host, khanda host.Item, cause decision.Cause, queue bool) error {
	if _, ok := h.Item(CompositeName); !ok {
		return decision.ErrNoComposite
	}
	cast, active := c.cast.Cast()
	if !active || !cast.CompositeCD {
		return decision.ErrNotArmed
	}
	now := h.Clock().Now
	if c.phylacteryActive(h, now) {
		return decision.ErrPairedOnCooldown
	}
	return c.issue(h, khanda, cause, queue, now)
}

// issue sends the split through the order gate. Both controller causes are
// critical.
func (c *Controller) issue(h host.Host, khanda host.Item, cause decision.Cause, queue bool, now float64) error {
	critical := cause == decision.CauseCastIntercept || cause == decision.CauseImpactWindow
	key, cooldown := keyDisassemble, c.timings.DisassembleCooldown
	if critical {
		key, cooldown = keyDisassembleCritical, c.timings.CriticalDisassembleCooldown
	}
	if c.gate.Sleeping(key, now) {
		return decision.ErrGated
	}

	h.Disassemble(khanda.Name, queue)
	c.gate.Sleep(key, cooldown, now)
	c.splits++
	if cause == decision.CauseCastIntercept {
		c.intercepts++
	}

	c.log.WithFields(logrus.Fields{
		"cause":    cause,
		"item":     khanda.Name,
		"queue":    queue,
		"cooldown": khanda.Cooldown,
	}).Info("disassemble")
	c.sink.Record(decision.Record{
		At:         time.Now(),
		GameTime:   now,
		Controller: decision.Khanda,
		Action:     decision.ActionDisassemble,
		Cause:      cause,
		Item:       khanda.Name,
		Queue:      queue,
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
		Controller: decision.Khanda,
		Action:     decision.ActionUnlock,
		Cause:      decision.CauseRecombine,
		Item:       name,
		Queue:      true,
	})
}
