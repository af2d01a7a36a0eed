package sim

import (
	"sort"

	"splitguard/internal/host"
)

// Driver consumes events against a host. The engine satisfies it.
type Driver interface {
	Handle(h host.Host, ev host.Event)
}

// Cue is a scripted change applied at a game time. It mutates the world and
// returns the notifications the host would raise for it.
type Cue struct {
	At    float64
	Label string
	Apply func(w *World) []host.Event
}

// Sample is one frame of the recorded timeline.
type Sample struct {
	T         float64
	Assembled map[string]bool // composite name -> assembled this frame
	Locked    map[string]int  // composite name -> components still locked
}

// Mark is a labelled cue on the timeline.
type Mark struct {
	T     float64
	Label string
}

// Result is the outcome of a run.
type Result struct {
	World   *World
	Samples []Sample
	Marks   []Mark
}

// Run drives d through cues for duration seconds of game time. Each frame the
// clock advances, due cues fire and their events are delivered, then a Tick
// closes the frame.
func Run(w *World, cues []Cue, d Driver, duration float64) Result {
	sort.SliceStable(cues, func(i, j int) bool { return cues[i].At < cues[j].At })

	res := Result{World: w}
	dt := w.Time.TickInterval
	end := w.Time.Now + duration
	next := 0

	for w.Time.Now < end {
		w.Advance(dt)

		var events []host.Event
		for next < len(cues) && cues[next].At <= w.Time.Now {
			c := cues[next]
			events = append(events, c.Apply(w)...)
			res.Marks = append(res.Marks, Mark{T: w.Time.Now, Label: c.Label})
			next++
		}
		events = append(events, host.Tick{DT: dt})

		for _, ev := range events {
			d.Handle(w, ev)
		}
		res.Samples = append(res.Samples, w.sample())
	}
	return res
}

func (w *World) sample() Sample {
	s := Sample{
		T:         w.Time.Now,
		Assembled: make(map[string]bool, len(w.Recipes)),
		Locked:    make(map[string]int, len(w.Recipes)),
	}
	for _, r := range w.Recipes {
		_, ok := w.ItemWithPrefix(r.Composite)
		s.Assembled[r.Composite] = ok
		for _, name := range r.Components {
			if it, ok := w.Item(name); ok && it.CombineLocked {
				s.Locked[r.Composite]++
			}
		}
	}
	return s
}
