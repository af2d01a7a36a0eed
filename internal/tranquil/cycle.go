package tranquil

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"

	"splitguard/internal/config"
	"splitguard/internal/decision"
	"splitguard/internal/host"
	"splitguard/internal/latency"
)

// Anti-stick cycle states.
const (
	StateIdle         = "idle"
	StateAwaitConfirm = "await_disassemble_confirm"
)

const (
	eventSplitIssued = "split_issued"
	eventSettle      = "settle"
)

// cycle is the anti-stick sub-machine. From idle, a split moves it to
// awaiting confirmation; it settles back to idle once the boots are seen
// split, or when splitting stops being legal.
type cycle struct {
	fsm *fsm.FSM

	lastCycleTime float64
	retryAt       float64
}

func newCycle(log *logrus.Entry) *cycle {
	return &cycle{
		fsm: fsm.NewFSM(
			StateIdle,
			fsm.Events{
				{Name: eventSplitIssued, Src: []string{StateIdle}, Dst: StateAwaitConfirm},
				{Name: eventSettle, Src: []string{StateAwaitConfirm}, Dst: StateIdle},
			},
			fsm.Callbacks{
				"enter_state": func(_ context.Context, e *fsm.Event) {
					log.WithFields(logrus.Fields{"from": e.Src, "to": e.Dst}).Debug("cycle state")
				},
			},
		),
	}
}

func (cy *cycle) awaiting() bool {
	return cy.fsm.Is(StateAwaitConfirm)
}

func (cy *cycle) state() string {
	return cy.fsm.Current()
}

// start enters the await state and arms the first retry deadline.
func (cy *cycle) start(now, retryDelay float64) {
	if err := cy.fsm.Event(context.Background(), eventSplitIssued); err != nil {
		return
	}
	cy.retryAt = now + retryDelay
}

// settle returns to idle. The next cycle is measured from now, which also
// postpones a cycle that was abandoned without confirmation.
func (cy *cycle) settle(now float64) {
	if cy.awaiting() {
		_ = cy.fsm.Event(context.Background(), eventSettle)
	}
	cy.retryAt = 0
	cy.lastCycleTime = now
}

func (cy *cycle) reset() {
	cy.fsm.SetState(StateIdle)
	cy.lastCycleTime = 0
	cy.retryAt = 0
}

// interval is the dynamic cycle interval for the boots' current window.
func (c *Controller) interval(clock host.Clock, windowLeft float64) float64 {
	return latency.CycleInterval(clock, windowLeft, c.timings.CycleInterval)
}

func (c *Controller) retryDelay(clock host.Clock) float64 {
	return latency.RetryDelay(clock, c.timings.CriticalDisassembleCooldown)
}

// canRunCycle requires a legal split and enough window left to recombine.
func (c *Controller) canRunCycle(h host.World, now float64) bool {
	boots, ok := c.composite(h)
	if !ok {
		return false
	}
	if c.lockReason(boots, true, now) != nil {
		return false
	}
	return c.windowRemaining(boots, true, now) > latency.SafetyLead(h.Clock(), c.actionCost())
}

// confirmCycle runs before the tick's decision: it confirms, aborts or
// retries a pending cycle split.
func (c *Controller) confirmCycle(h host.Host, hero host.Hero, s config.TranquilSettings, now float64) {
	if !c.cycle.awaiting() {
		return
	}
	if hero.InAbilityPhase || hero.Channeling {
		return
	}

	_, hasBoots := c.composite(h)
	if c.disassembled(h, hasBoots) {
		c.cycle.settle(now)
		return
	}

	if !c.canRunCycle(h, now) {
		c.cycle.settle(now)
		return
	}

	if now >= c.cycle.retryAt {
		if c.disassemble(h, decision.CauseAntiStickCycle, "cycle retry", true, s.ForceCycleCatchUp) == nil {
			c.cycle.retryAt = now + c.retryDelay(h.Clock())
		}
	}
}

// runCycle starts a new cycle once the interval since the last one elapsed.
func (c *Controller) runCycle(h host.Host, boots host.Item, s config.TranquilSettings, now float64) {
	if c.cycle.awaiting() {
		return
	}

	clock := h.Clock()
	interval := c.interval(clock, c.windowRemaining(boots, true, now))
	if now < c.cycle.lastCycleTime+interval {
		return
	}
	if !c.canRunCycle(h, now) {
		return
	}

	// Past the interval check the cycle is overdue by definition.
	forceCatchUp := s.ForceCycleCatchUp
	if err := c.disassemble(h, decision.CauseAntiStickCycle, "anti-stick cycle", true, forceCatchUp); err != nil {
		return
	}
	c.cycle.start(now, c.retryDelay(clock))
}
