// Package gate implements the action gate: a keyed cooldown ledger that keeps
// a class of command from being reissued before its minimum spacing elapses.
package gate

import "time"

// Sleeper maps an action key to the game time it stays busy until.
// Times are game seconds supplied by the caller, never wall-clock.
type Sleeper struct {
	until map[string]float64
}

// New returns an empty ledger.
func New() *Sleeper {
	return &Sleeper{until: make(map[string]float64)}
}

// Sleep marks key busy for d starting at now. A key that is still sleeping is
// left untouched, so repeated attempts cannot push the window out.
// Returns true when the sleep was armed.
func (s *Sleeper) Sleep(key string, d time.Duration, now float64) bool {
	if s.Sleeping(key, now) {
		return false
	}
	s.until[key] = now + d.Seconds()
	return true
}

// Sleeping reports whether key is still busy at now.
func (s *Sleeper) Sleeping(key string, now float64) bool {
	until, ok := s.until[key]
	if !ok {
		return false
	}
	if now >= until {
		delete(s.until, key)
		return false
	}
	return true
}

// Remaining returns how long key stays busy, zero when free.
func (s *Sleeper) Remaining(key string, now float64) float64 {
	if !s.Sleeping(key, now) {
		return 0
	}
	return s.until[key] - now
}

// Reset clears every key.
func (s *Sleeper) Reset() {
	clear(s.until)
}
