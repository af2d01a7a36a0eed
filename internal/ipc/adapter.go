package ipc

import (
	"fmt"

	"splitguard/internal/host"
)

// EventKind tags an EventData. Values are part of the wire format.
type EventKind uint8

const (
	EventGameStarted EventKind = iota + 1
	EventGameEnded
	EventEntityCreated
	EventEntityDestroyed
	EventProjectileCreated
	EventProjectileUpdated
	EventProjectileDestroyed
	EventAttackStarted
	EventOrderPrepared
	EventAbilityPhaseChanged
	EventAbilityChannelChanged
)

// EventData is the wire form of a host.Event. Only the fields the kind
// needs are set. Ticks are not sent as events; see FrameMessage.DT.
type EventData struct {
	Kind       EventKind
	Entity     host.Entity
	Projectile host.Projectile
	Unit       host.EntityID
	CastPoint  float64
	Order      host.Order
	Ability    host.Ability
}

// FromEvent converts an event to its wire form.
func FromEvent(ev host.Event) (EventData, error) {
	switch e := ev.(type) {
	case host.GameStarted:
		return EventData{Kind: EventGameStarted}, nil
	case host.GameEnded:
		return EventData{Kind: EventGameEnded}, nil
	case host.EntityCreated:
		return EventData{Kind: EventEntityCreated, Entity: e.Entity}, nil
	case host.EntityDestroyed:
		return EventData{Kind: EventEntityDestroyed, Entity: e.Entity}, nil
	case host.ProjectileCreated:
		return EventData{Kind: EventProjectileCreated, Projectile: e.Projectile}, nil
	case host.ProjectileUpdated:
		return EventData{Kind: EventProjectileUpdated, Projectile: e.Projectile}, nil
	case host.ProjectileDestroyed:
		return EventData{Kind: EventProjectileDestroyed, Projectile: e.Projectile}, nil
	case host.AttackStarted:
		return EventData{Kind: EventAttackStarted, Unit: e.Unit, CastPoint: e.CastPoint}, nil
	case host.OrderPrepared:
		return EventData{Kind: EventOrderPrepared, Order: e.Order}, nil
	case host.AbilityPhaseChanged:
		return EventData{Kind: EventAbilityPhaseChanged, Ability: e.Ability}, nil
	case host.AbilityChannelChanged:
		return EventData{Kind: EventAbilityChannelChanged, Ability: e.Ability}, nil
	default:
		return EventData{}, fmt.Errorf("ipc: event %s has no wire form", ev.EventName())
	}
}

// ToEvent converts the wire form back to a host.Event.
func (d EventData) ToEvent() (host.Event, error) {
	switch d.Kind {
	case EventGameStarted:
		return host.GameStarted{}, nil
	case EventGameEnded:
		return host.GameEnded{}, nil
	case EventEntityCreated:
		return host.EntityCreated{Entity: d.Entity}, nil
	case EventEntityDestroyed:
		return host.EntityDestroyed{Entity: d.Entity}, nil
	case EventProjectileCreated:
		return host.ProjectileCreated{Projectile: d.Projectile}, nil
	case EventProjectileUpdated:
		return host.ProjectileUpdated{Projectile: d.Projectile}, nil
	case EventProjectileDestroyed:
		return host.ProjectileDestroyed{Projectile: d.Projectile}, nil
	case EventAttackStarted:
		return host.AttackStarted{Unit: d.Unit, CastPoint: d.CastPoint}, nil
	case EventOrderPrepared:
		return host.OrderPrepared{Order: d.Order}, nil
	case EventAbilityPhaseChanged:
		return host.AbilityPhaseChanged{Ability: d.Ability}, nil
	case EventAbilityChannelChanged:
		return host.AbilityChannelChanged{Ability: d.Ability}, nil
	default:
		return nil, fmt.Errorf("ipc: unknown event kind %d", d.Kind)
	}
}

// ToEvents converts a frame to the ordered event list the engine consumes,
// Tick last. Unknown kinds are skipped and reported.
func (m *FrameMessage) ToEvents() ([]host.Event, error) {
	out := make([]host.Event, 0, len(m.Events)+1)
	var firstErr error
	for _, d := range m.Events {
		ev, err := d.ToEvent()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, ev)
	}
	return append(out, host.Tick{DT: m.DT}), firstErr
}

// NewFrame builds a frame message from host events. Ticks in events are
// dropped; dt is carried separately.
func NewFrame(seq uint64, dt float64, state host.State, events ...host.Event) (*FrameMessage, error) {
	msg := &FrameMessage{Seq: seq, DT: dt, State: state}
	for _, ev := range events {
		if _, ok := ev.(host.Tick); ok {
			continue
		}
		d, err := FromEvent(ev)
		if err != nil {
			return nil, err
		}
		msg.Events = append(msg.Events, d)
	}
	return msg, nil
}
