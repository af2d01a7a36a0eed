package khanda

// Composite states reported in Status.
const (
	CompositeAssembled    = "assembled"
	CompositeDisassembled = "disassembled"
	CompositeAbsent       = "absent"
)

// CastStatus describes the tracked cast.
type CastStatus struct {
	Ability     int32   `json:"ability"`
	Target      int32   `json:"target"`
	Channelled  bool    `json:"channelled"`
	InChannel   bool    `json:"inChannel"`
	CompositeCD bool    `json:"compositeOnCooldown"`
	ReleaseAt   float64 `json:"releaseAt"`
}

// Status is a point-in-time summary for diagnostics.
type Status struct {
	Running         bool        `json:"running"`
	Composite       string      `json:"composite"`
	Cast            *CastStatus `json:"cast,omitempty"`
	Impacts         []float64   `json:"impacts,omitempty"`
	PhylacteryUntil float64     `json:"phylacteryUntil"`
	Splits          int         `json:"splits"`
	Intercepts      int         `json:"intercepts"`
	Unlocks         int         `json:"unlocks"`
}

// Status returns the controller's current summary.
func (c *Controller) Status() Status {
	st := Status{
		Running:         c.running,
		Composite:       c.compositeState,
		Impacts:         append([]float64(nil), c.cast.Impacts()...),
		PhylacteryUntil: c.phylactery.Until(),
		Splits:          c.splits,
		Intercepts:      c.intercepts,
		Unlocks:         c.unlocks,
	}
	if cast, ok := c.cast.Cast(); ok {
		st.Cast = &CastStatus{
			Ability:     int32(cast.Ability),
			Target:      int32(cast.Target),
			Channelled:  cast.Channelled,
			InChannel:   cast.InChannel,
			CompositeCD: cast.CompositeCD,
			ReleaseAt:   cast.ReleaseAt,
		}
	}
	return st
}
