// Package host describes the narrow, read-only view of the simulation that the
// split controllers consume, and the two fire-and-forget commands they issue.
//
// The adapter that talks to the real simulation lives outside the decision
// core; everything here is plain data so it can travel over IPC or be built
// by hand in tests.
package host

// World is the typed query surface the controllers read every tick.
// Every lookup may report absence; callers treat absence as "do nothing".
type World interface {
	// Clock returns the latency and timing figures for this frame.
	Clock() Clock
	// Session returns the connection / UI state.
	Session() Session
	// Hero returns the controlled actor.
	Hero() (Hero, bool)
	// Item finds an inventory item of the controlled actor by exact name.
	Item(name string) (Item, bool)
	// ItemWithPrefix finds the first inventory item whose name starts with prefix.
	ItemWithPrefix(prefix string) (Item, bool)
	// Entity looks up a live entity by id.
	Entity(id EntityID) (Entity, bool)
	// Entities enumerates the current entity population.
	Entities() []Entity
	// KeyPressed reports whether the named key bind is held.
	KeyPressed(key string) bool
}

// Commander receives the orders a controller issues. Orders carry no result;
// the outcome is observed on a later tick by re-reading the World.
type Commander interface {
	Disassemble(item string, queue bool)
	SetCombineLock(item string, locked, queue bool)
}

// Host is both halves together.
type Host interface {
	World
	Commander
}

// Clock carries everything the latency compensation math needs.
// All values are seconds except Ping, which the host reports in milliseconds.
type Clock struct {
	Now             float64
	TickInterval    float64
	LatestTickDelta float64
	InputLag        float64
	IOLag           float64 // incoming IO lag derived from latency
	Ping            float64 // milliseconds
}

// Session is the precondition block: controllers only run while connected,
// in-game, not spectating.
type Session struct {
	Connected bool
	InGame    bool
	Spectator bool
}

// Playable reports whether a controller may act at all.
func (s Session) Playable() bool {
	return s.Connected && s.InGame && !s.Spectator
}
