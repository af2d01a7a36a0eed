// Package sim is a small deterministic stand-in for the game host. It models
// only what the split controllers observe: a clock, the hero's inventory with
// split and recombine rules, a handful of nearby entities and key binds.
package sim

import (
	"strings"

	"splitguard/internal/host"
)

// Recipe describes one composite and its parts.
type Recipe struct {
	Composite  string
	Components []string
}

// Issued is a command as the world received it.
type Issued struct {
	At float64
	host.Command
	Refused bool
}

type recombine struct {
	recipe Recipe
	at     float64
}

// World implements host.Host.
type World struct {
	host.State

	Recipes           []Recipe
	DisassembleWindow float64 // seconds after assembly a split is accepted
	RecombineDelay    float64 // server delay between last unlock and the composite reforming

	Issued []Issued

	stash   map[string]host.Item // composite state at split, keyed by recipe composite
	pending []recombine
}

// NewWorld creates a world with hero as the controlled actor.
func NewWorld(hero host.Hero, clock host.Clock, recipes ...Recipe) *World {
	h := hero
	return &World{
		State: host.State{
			Time:  clock,
			Game:  host.Session{Connected: true, InGame: true},
			Actor: &h,
		},
		Recipes:           recipes,
		DisassembleWindow: 10,
		RecombineDelay:    1.0 / 30,
		stash:             make(map[string]host.Item),
	}
}

// Now returns the current game time.
func (w *World) Now() float64 { return w.Time.Now }

// HeroRef returns the mutable controlled actor.
func (w *World) HeroRef() *host.Hero { return w.Actor }

// Give puts item in the inventory, replacing one with the same name.
func (w *World) Give(item host.Item) {
	w.Remove(item.Name)
	w.Inventory = append(w.Inventory, item)
}

// Remove drops an item by name.
func (w *World) Remove(name string) {
	for i, it := range w.Inventory {
		if it.Name == name {
			w.Inventory = append(w.Inventory[:i], w.Inventory[i+1:]...)
			return
		}
	}
}

// ItemRef returns a mutable inventory slot.
func (w *World) ItemRef(name string) *host.Item {
	for i := range w.Inventory {
		if w.Inventory[i].Name == name {
			return &w.Inventory[i]
		}
	}
	return nil
}

// Spawn adds or replaces an entity in the population.
func (w *World) Spawn(e host.Entity) {
	for i := range w.Population {
		if w.Population[i].ID == e.ID {
			w.Population[i] = e
			return
		}
	}
	w.Population = append(w.Population, e)
}

// Despawn removes an entity.
func (w *World) Despawn(id host.EntityID) (host.Entity, bool) {
	for i, e := range w.Population {
		if e.ID == id {
			w.Population = append(w.Population[:i], w.Population[i+1:]...)
			return e, true
		}
	}
	return host.Entity{}, false
}

// Press holds a key bind; Release lets it go.
func (w *World) Press(key string) { w.Pressed = append(w.Pressed, key) }

func (w *World) Release(key string) {
	out := w.Pressed[:0]
	for _, k := range w.Pressed {
		if !strings.EqualFold(k, key) {
			out = append(out, k)
		}
	}
	w.Pressed = out
}

func (w *World) recipeFor(item string) (Recipe, bool) {
	for _, r := range w.Recipes {
		if item == r.Composite || strings.HasPrefix(item, r.Composite) {
			return r, true
		}
	}
	return Recipe{}, false
}

// Disassemble splits a composite into combine-locked components. Splits
// outside the disassemble window are refused.
func (w *World) Disassemble(item string, queue bool) {
	issued := Issued{At: w.Time.Now, Command: host.Command{Kind: host.CommandDisassemble, Item: item, Queue: queue}}
	defer func() { w.Issued = append(w.Issued, issued) }()

	it, ok := w.Item(item)
	recipe, known := w.recipeFor(item)
	if !ok || !known {
		issued.Refused = true
		return
	}
	if it.AssembledTime > 0 && w.Time.Now > it.AssembledTime+w.DisassembleWindow {
		issued.Refused = true
		return
	}

	w.Remove(item)
	w.stash[recipe.Composite] = it
	for _, name := range recipe.Components {
		w.Give(host.Item{Name: name, CombineLocked: true})
	}
}

// SetCombineLock flips a component's lock. Once every component of a split
// composite is unlocked, the server recombines it after RecombineDelay.
func (w *World) SetCombineLock(item string, locked, queue bool) {
	w.Issued = append(w.Issued, Issued{
		At:      w.Time.Now,
		Command: host.Command{Kind: host.CommandSetCombineLock, Item: item, Locked: locked, Queue: queue},
	})

	ref := w.ItemRef(item)
	if ref == nil {
		return
	}
	ref.CombineLocked = locked
	if locked {
		return
	}

	for _, r := range w.Recipes {
		if _, split := w.stash[r.Composite]; !split || w.recombining(r) {
			continue
		}
		if w.allUnlocked(r) {
			w.pending = append(w.pending, recombine{recipe: r, at: w.Time.Now + w.RecombineDelay})
		}
	}
}

func (w *World) recombining(r Recipe) bool {
	for _, p := range w.pending {
		if p.recipe.Composite == r.Composite {
			return true
		}
	}
	return false
}

func (w *World) allUnlocked(r Recipe) bool {
	for _, name := range r.Components {
		it, ok := w.Item(name)
		if !ok || it.CombineLocked {
			return false
		}
	}
	return true
}

// Advance moves the clock, counts cooldowns down and completes due
// recombinations.
func (w *World) Advance(dt float64) {
	w.Time.Now += dt
	w.Time.LatestTickDelta = dt

	for i := range w.Inventory {
		w.Inventory[i].Cooldown = max(w.Inventory[i].Cooldown-dt, 0)
	}
	for name, it := range w.stash {
		it.Cooldown = max(it.Cooldown-dt, 0)
		w.stash[name] = it
	}

	keep := w.pending[:0]
	for _, p := range w.pending {
		if w.Time.Now < p.at {
			keep = append(keep, p)
			continue
		}
		w.complete(p.recipe)
	}
	w.pending = keep
}

func (w *World) complete(r Recipe) {
	if !w.allUnlocked(r) {
		return
	}
	for _, name := range r.Components {
		w.Remove(name)
	}
	it := w.stash[r.Composite]
	delete(w.stash, r.Composite)
	it.AssembledTime = w.Time.Now
	it.CombineLocked = false
	w.Give(it)
}

// Commands returns the issued commands of a kind, refused ones included.
func (w *World) Commands(kind host.CommandKind) []Issued {
	var out []Issued
	for _, is := range w.Issued {
		if is.Kind == kind {
			out = append(out, is)
		}
	}
	return out
}
