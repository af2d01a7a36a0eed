package host

import "strings"

// State is a complete frame snapshot. It implements World so the same value
// can come off the wire, out of the simulator, or from a test literal.
type State struct {
	Time       Clock
	Game       Session
	Actor      *Hero
	Inventory  []Item
	Population []Entity
	Pressed    []string
}

func (s *State) Clock() Clock     { return s.Time }
func (s *State) Session() Session { return s.Game }

func (s *State) Hero() (Hero, bool) {
	if s.Actor == nil {
		return Hero{}, false
	}
	return *s.Actor, true
}

func (s *State) Item(name string) (Item, bool) {
	for _, it := range s.Inventory {
		if it.Name == name {
			return it, true
		}
	}
	return Item{}, false
}

func (s *State) ItemWithPrefix(prefix string) (Item, bool) {
	for _, it := range s.Inventory {
		if strings.HasPrefix(it.Name, prefix) {
			return it, true
		}
	}
	return Item{}, false
}

func (s *State) Entity(id EntityID) (Entity, bool) {
	if s.Actor != nil && s.Actor.ID == id {
		return s.Actor.Entity, true
	}
	for _, e := range s.Population {
		if e.ID == id {
			return e, true
		}
	}
	return Entity{}, false
}

func (s *State) Entities() []Entity { return s.Population }

func (s *State) KeyPressed(key string) bool {
	if key == "" {
		return false
	}
	for _, k := range s.Pressed {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// Bound pairs a World with a Commander into a Host.
type Bound struct {
	World
	Commander
}

// Bind returns a Host reading from w and writing to c.
func Bind(w World, c Commander) Bound {
	return Bound{World: w, Commander: c}
}
