package host

// Event is the closed set of notifications a controller consumes through its
// single Handle entry point. Events are processed one at a time, in order.
type Event interface {
	EventName() string
	event()
}

// Tick is the per-frame data update carrying the elapsed time delta.
type Tick struct{ DT float64 }

// GameStarted marks the start of a game session.
type GameStarted struct{}

// GameEnded marks the end of a game session; controllers fully reset.
type GameEnded struct{}

// EntityCreated announces a new entity.
type EntityCreated struct{ Entity Entity }

// EntityDestroyed announces an entity leaving the population.
type EntityDestroyed struct{ Entity Entity }

// ProjectileCreated announces a new tracking projectile.
type ProjectileCreated struct{ Projectile Projectile }

// ProjectileUpdated announces a retargeted or re-timed projectile.
type ProjectileUpdated struct{ Projectile Projectile }

// ProjectileDestroyed announces a projectile hitting or being dodged.
type ProjectileDestroyed struct{ Projectile Projectile }

// AttackStarted announces a unit beginning an attack animation.
type AttackStarted struct {
	Unit      EntityID
	CastPoint float64
}

// OrderPrepared is a player order about to be sent.
type OrderPrepared struct{ Order Order }

// AbilityPhaseChanged fires when an ability enters or leaves its cast phase.
type AbilityPhaseChanged struct{ Ability Ability }

// AbilityChannelChanged fires when an ability starts or stops channelling.
type AbilityChannelChanged struct{ Ability Ability }

func (Tick) EventName() string                  { return "tick" }
func (GameStarted) EventName() string           { return "game_started" }
func (GameEnded) EventName() string             { return "game_ended" }
func (EntityCreated) EventName() string         { return "entity_created" }
func (EntityDestroyed) EventName() string       { return "entity_destroyed" }
func (ProjectileCreated) EventName() string     { return "projectile_created" }
func (ProjectileUpdated) EventName() string     { return "projectile_updated" }
func (ProjectileDestroyed) EventName() string   { return "projectile_destroyed" }
func (AttackStarted) EventName() string         { return "attack_started" }
func (OrderPrepared) EventName() string         { return "order_prepared" }
func (AbilityPhaseChanged) EventName() string   { return "ability_phase_changed" }
func (AbilityChannelChanged) EventName() string { return "ability_channel_changed" }

func (Tick) event()                  {}
func (GameStarted) event()           {}
func (GameEnded) event()             {}
func (EntityCreated) event()         {}
func (EntityDestroyed) event()       {}
func (ProjectileCreated) event()     {}
func (ProjectileUpdated) event()     {}
func (ProjectileDestroyed) event()   {}
func (AttackStarted) event()         {}
func (OrderPrepared) event()         {}
func (AbilityPhaseChanged) event()   {}
func (AbilityChannelChanged) event() {}
