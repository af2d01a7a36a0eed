// Package sequencer drives recombination of a split composite: components are
// unlocked one at a time in declared order, spaced by a randomized delay that
// never undercuts the observed round trip.
package sequencer

import (
	"math/rand"
	"time"

	"splitguard/internal/gate"
	"splitguard/internal/host"
	"splitguard/internal/latency"
)

// Config describes one composite's recombination.
type Config struct {
	Components      []string // unlock order
	KeyPrefix       string   // gate key prefix, one key per component
	RetryDelay      float64  // wait after the last unlock for the server to recombine
	UnlockDelayMin  float64
	UnlockDelayMax  float64
	CombineCooldown time.Duration
}

// Result reports what a Step did.
type Result int

const (
	Waiting  Result = iota // a delay or gate held the step
	Unlocked               // one component was unlocked
	Settled                // nothing left locked, retry armed
)

func (r Result) String() string {
	switch r {
	case Unlocked:
		return "unlocked"
	case Settled:
		return "settled"
	default:
		return "waiting"
	}
}

// Sequencer holds only the two step deadlines. Gate keys live in the shared
// ledger of the owning controller.
type Sequencer struct {
	cfg  Config
	gate *gate.Sleeper
	rnd  *rand.Rand

	retryAt      float64
	nextUnlockAt float64
}

// New creates a sequencer. rnd may be nil, in which case a time-seeded source
// is used.
func New(cfg Config, g *gate.Sleeper, rnd *rand.Rand) *Sequencer {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Sequencer{cfg: cfg, gate: g, rnd: rnd}
}

// Components returns the declared unlock order.
func (s *Sequencer) Components() []string {
	return s.cfg.Components
}

// Ready reports whether the post-settle retry deadline has passed.
func (s *Sequencer) Ready(now float64) bool {
	return now >= s.retryAt
}

// Step runs one recombination step and returns the component it unlocked.
func (s *Sequencer) Step(h host.Host, now float64) (string, Result) {
	if now < s.retryAt || now < s.nextUnlockAt {
		return "", Waiting
	}

	name, ok := s.NextLocked(h)
	if !ok {
		s.nextUnlockAt = 0
		s.retryAt = now + s.cfg.RetryDelay
		return "", Settled
	}

	if !s.unlock(h, name, now) {
		return name, Waiting
	}
	clock := h.Clock()
	s.nextUnlockAt = now + latency.UnlockDelay(clock, s.rnd.Float64(), s.cfg.UnlockDelayMin, s.cfg.UnlockDelayMax)
	return name, Unlocked
}

// NextLocked returns the first component, in declared order, that is present
// and still combine-locked.
func (s *Sequencer) NextLocked(w host.World) (string, bool) {
	for _, name := range s.cfg.Components {
		if it, ok := w.Item(name); ok && it.CombineLocked {
			return name, true
		}
	}
	return "", false
}

// AllPresent reports whether every component is in the inventory.
func (s *Sequencer) AllPresent(w host.World) bool {
	for _, name := range s.cfg.Components {
		if _, ok := w.Item(name); !ok {
			return false
		}
	}
	return true
}

// Hold drops the pending unlock delay; the next Step after a hold unlocks
// immediately.
func (s *Sequencer) Hold() {
	s.nextUnlockAt = 0
}

// Reset clears both deadlines.
func (s *Sequencer) Reset() {
	s.retryAt = 0
	s.nextUnlockAt = 0
}

func (s *Sequencer) unlock(h host.Host, name string, now float64) bool {
	it, ok := h.Item(name)
	if !ok || !it.CombineLocked {
		return false
	}

	key := s.cfg.KeyPrefix + name
	if s.gate.Sleeping(key, now) {
		return false
	}

	h.SetCombineLock(name, false, true)
	s.gate.Sleep(key, s.cfg.CombineCooldown, now)
	return true
}
