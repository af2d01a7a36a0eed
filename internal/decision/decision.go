// Package decision defines the records controllers emit for every command
// they issue, and the sinks that consume them.
package decision

import (
	"sync"
	"time"
)

// Controller names. Engine marks session boundaries.
const (
	Tranquil = "tranquil"
	Khanda   = "khanda"
	Engine   = "engine"
)

// Action is what was issued.
type Action string

const (
	ActionDisassemble  Action = "disassemble"
	ActionUnlock       Action = "unlock"
	ActionReset        Action = "reset"
	ActionSessionStart Action = "session_start"
)

// Cause is why a split was issued.
type Cause string

const (
	CauseThreat            Cause = "THREAT"
	CauseAntiStickCycle    Cause = "ANTI_STICK_CYCLE"
	CauseHoldKey           Cause = "HOLD_KEY"
	CauseAttackStartMelee  Cause = "ATTACK_START_MELEE"
	CauseAttackStartRanged Cause = "ATTACK_START_RANGED"
	CauseProjectileCreated Cause = "PROJECTILE_CREATED"
	CauseCastIntercept     Cause = "CAST_INTERCEPT"
	CauseImpactWindow      Cause = "IMPACT_WINDOW"
	CauseRecombine         Cause = "RECOMBINE"
	CauseSession           Cause = "SESSION"
)

// Record is one decision.
type Record struct {
	At         time.Time `json:"at"`
	GameTime   float64   `json:"gameTime"`
	Controller string    `json:"controller"`
	Action     Action    `json:"action"`
	Cause      Cause     `json:"cause,omitempty"`
	Item       string    `json:"item,omitempty"`
	Queue      bool      `json:"queue"`
	Reason     string    `json:"reason,omitempty"`
}

// Sink consumes records. Implementations must not block the caller.
type Sink interface {
	Record(Record)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Record)

func (f SinkFunc) Record(r Record) { f(r) }

// Discard drops every record.
var Discard Sink = SinkFunc(func(Record) {})

// Fanout delivers each record to every registered sink in registration order.
type Fanout struct {
	mu    sync.RWMutex
	sinks []Sink
}

// Add registers a sink.
func (f *Fanout) Add(s Sink) {
	f.mu.Lock()
	f.sinks = append(f.sinks, s)
	f.mu.Unlock()
}

func (f *Fanout) Record(r Record) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, s := range f.sinks {
		s.Record(r)
	}
}

// Ring keeps the most recent records.
type Ring struct {
	mu    sync.Mutex
	buf   []Record
	next  int
	count int
}

// NewRing returns a ring holding up to size records.
func NewRing(size int) *Ring {
	return &Ring{buf: make([]Record, size)}
}

func (r *Ring) Record(rec Record) {
	r.mu.Lock()
	r.buf[r.next] = rec
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
	r.mu.Unlock()
}

// Recent returns up to n records, newest first.
func (r *Ring) Recent(n int) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]Record, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

// Len returns the number of stored records.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
