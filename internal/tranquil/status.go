package tranquil

// Composite states reported in Status.
const (
	CompositeAssembled    = "assembled"
	CompositeDisassembled = "disassembled"
	CompositeAbsent       = "absent"
)

// Status is a point-in-time summary for diagnostics.
type Status struct {
	Running           bool    `json:"running"`
	Composite         string  `json:"composite"`
	CycleState        string  `json:"cycleState"`
	LastCycleTime     float64 `json:"lastCycleTime"`
	ThreatReason      string  `json:"threatReason,omitempty"`
	ActiveProjectiles int     `json:"activeProjectiles"`
	HeroCandidates    int     `json:"heroCandidates"`
	CreepCandidates   int     `json:"creepCandidates"`
	Splits            int     `json:"splits"`
	Unlocks           int     `json:"unlocks"`
}

// Status returns the controller's current summary.
func (c *Controller) Status() Status {
	heroes, creeps := c.threat.Candidates()
	return Status{
		Running:           c.running,
		Composite:         c.compositeState,
		CycleState:        c.cycle.state(),
		LastCycleTime:     c.cycle.lastCycleTime,
		ThreatReason:      c.lastReason,
		ActiveProjectiles: c.threat.ActiveProjectiles(),
		HeroCandidates:    heroes,
		CreepCandidates:   creeps,
		Splits:            c.splits,
		Unlocks:           c.unlocks,
	}
}
