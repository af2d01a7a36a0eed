// Package latency holds the latency compensation arithmetic shared by the
// split controllers. Every function reads the clock it is handed; nothing is
// cached between ticks.
package latency

import (
	"math"
	"time"

	"splitguard/internal/host"
)

// Floors applied when every measured term is smaller.
const (
	minLagLead      = 0.1
	minSafetyLead   = 0.2
	minTimingBuffer = 0.12
	minUnlockDelay  = 0.1
)

// Jitter is the larger of the last observed tick delta and the nominal tick.
func Jitter(c host.Clock) float64 {
	return math.Max(c.LatestTickDelta, c.TickInterval)
}

// LagLead is how early an order has to leave to land before a deadline.
func LagLead(c host.Clock) float64 {
	tick := c.TickInterval
	return max(
		c.InputLag+c.IOLag+Jitter(c)+tick,
		c.InputLag+tick*2,
		c.IOLag+tick*2,
		minLagLead,
	)
}

// ActionCost is the projected wall time of one full split/recombine round:
// the split order cooldown, the server recombine retry, the combine order
// cooldown and one unlock delay per component after the first.
type ActionCost struct {
	Components          int
	DisassembleCooldown time.Duration
	RetryDelay          float64
	CombineCooldown     time.Duration
	UnlockDelayMax      float64
}

// Seconds returns the total cost.
func (a ActionCost) Seconds() float64 {
	extra := math.Max(float64(a.Components-1), 0)
	return a.DisassembleCooldown.Seconds() +
		a.RetryDelay +
		a.CombineCooldown.Seconds() +
		extra*a.UnlockDelayMax
}

// SafetyLead is the minimum window that has to remain for a split to be
// recombined in time.
func SafetyLead(c host.Clock, cost ActionCost) float64 {
	tick := c.TickInterval
	action := cost.Seconds()
	return max(
		c.InputLag+c.IOLag+Jitter(c)+tick+action,
		c.InputLag+tick*3+action,
		c.IOLag+tick*3+action,
		minSafetyLead,
	)
}

// CycleInterval shrinks the base interval so the next proactive split still
// fits inside the remaining window.
func CycleInterval(c host.Clock, windowLeft, base float64) float64 {
	dynamic := math.Max(windowLeft-LagLead(c)-1.0, c.TickInterval)
	return math.Min(dynamic, base)
}

// RetryDelay spaces repeated split attempts by at least one order cooldown.
func RetryDelay(c host.Clock, orderCooldown time.Duration) float64 {
	return math.Max(orderCooldown.Seconds(), c.TickInterval)
}

// UnlockDelay is the spacing between two unlock orders. roll is a uniform
// sample in [0, 1) that places the delay inside [lo, hi]; the result never
// undercuts the observed round trip.
func UnlockDelay(c host.Clock, roll, lo, hi float64) float64 {
	base := lo + roll*(hi-lo)
	return max(base, c.Ping/1000+c.InputLag, minUnlockDelay)
}

// TimingBuffer is the slack between a cast event and the moment the host can
// act on an order issued in response.
func TimingBuffer(c host.Clock) float64 {
	tick := c.TickInterval
	return max(
		c.InputLag+c.IOLag+tick,
		c.InputLag+tick*2,
		c.IOLag+tick*2,
		Jitter(c)+tick,
		minTimingBuffer,
	)
}

// PreImpactLead is how long before a projectile lands a split has to be
// issued so the order and its cooldown clear first.
func PreImpactLead(c host.Clock, orderCooldown time.Duration) float64 {
	return TimingBuffer(c) + orderCooldown.Seconds() + c.TickInterval
}

// PostImpactLead keeps the impact window open briefly after the projected hit.
func PostImpactLead(c host.Clock) float64 {
	return math.Max(TimingBuffer(c)*0.5, c.TickInterval*2)
}
