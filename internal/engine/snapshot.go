package engine

import (
	"sync/atomic"
	"time"

	"splitguard/internal/khanda"
	"splitguard/internal/tranquil"
)

// Status is an immutable copy of the engine state for the API. A published
// Status is never mutated.
type Status struct {
	Sequence  uint64    `json:"sequence"`  // Monotonic sequence for ordering
	Timestamp time.Time `json:"timestamp"` // When the snapshot was created
	Frame     uint64    `json:"frame"`     // Engine frame this represents
	GameTime  float64   `json:"gameTime"`
	InSession bool      `json:"inSession"`

	TranquilEnabled bool            `json:"tranquilEnabled"`
	KhandaEnabled   bool            `json:"khandaEnabled"`
	Tranquil        tranquil.Status `json:"tranquil"`
	Khanda          khanda.Status   `json:"khanda"`

	EventLog EventLogStats `json:"eventLog"`
}

// statusBoard publishes snapshots for lock-free readers.
type statusBoard struct {
	current  atomic.Pointer[Status]
	sequence atomic.Uint64
}

func (b *statusBoard) publish(st Status) *Status {
	st.Sequence = b.sequence.Add(1)
	st.Timestamp = time.Now()
	b.current.Store(&st)
	return &st
}

func (b *statusBoard) load() *Status {
	return b.current.Load()
}
