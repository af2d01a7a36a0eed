package pending

// CooldownEstimate smooths a cooldown value the host reports with lag. It
// arms once on the edge where the observed value becomes positive and is not
// re-armed while its own countdown is still running.
type CooldownEstimate struct {
	eps          float64
	until        float64
	lastObserved float64
	arms         int
}

// NewCooldownEstimate returns an estimate treating values <= eps as ready.
func NewCooldownEstimate(eps float64) *CooldownEstimate {
	return &CooldownEstimate{eps: eps}
}

// Observe feeds the latest host reading and returns the estimated remaining
// cooldown.
func (c *CooldownEstimate) Observe(observed, now float64) float64 {
	if observed > c.eps {
		startedNow := c.lastObserved <= c.eps
		running := c.until-now > c.eps
		if startedNow && !running {
			c.until = now + observed
			c.arms++
		}
	}
	c.lastObserved = observed
	return max(c.until-now, 0)
}

// Active reports whether the estimate is still counting down after folding in
// the latest reading.
func (c *CooldownEstimate) Active(observed, now float64) bool {
	return c.Observe(observed, now) > c.eps
}

// Until returns the armed deadline.
func (c *CooldownEstimate) Until() float64 { return c.until }

// Arms counts how many times the estimate has been armed.
func (c *CooldownEstimate) Arms() int { return c.arms }

// Reset forgets the estimate.
func (c *CooldownEstimate) Reset() {
	c.until = 0
	c.lastObserved = 0
	c.arms = 0
}
