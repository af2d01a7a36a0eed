package host

import "math"

// EntityID identifies an entity for the lifetime of a game session.
type EntityID int32

// NoEntity marks an absent target / source.
const NoEntity EntityID = -1

// AbilityID identifies an ability instance.
type AbilityID int32

// NoAbility marks an unresolved ability.
const NoAbility AbilityID = -1

// Kind is the closed set of entity variants the controllers distinguish.
type Kind uint8

const (
	KindOther Kind = iota
	KindHero
	KindUnit // non-hero unit (creeps, summons, structures)
)

func (k Kind) String() string {
	switch k {
	case KindHero:
		return "hero"
	case KindUnit:
		return "unit"
	default:
		return "other"
	}
}

// Vec2 is a ground-plane position.
type Vec2 struct {
	X, Y float64
}

// Distance returns the 2D distance between two points.
func (v Vec2) Distance(o Vec2) float64 {
	return math.Hypot(o.X-v.X, o.Y-v.Y)
}

// Entity is a read-only view of one entity with explicit capability flags.
type Entity struct {
	ID   EntityID
	Kind Kind
	Name string
	Team int

	Valid   bool
	Alive   bool
	Visible bool

	Melee    bool
	Creep    bool
	Building bool

	Attacking      bool
	InAbilityPhase bool
	Channeling     bool

	Position    Vec2
	Target      EntityID // NoEntity when not targeting anything
	AttackRange float64
}

// IsHero reports whether the entity is a hero.
func (e Entity) IsHero() bool { return e.Kind == KindHero }

// IsUnit reports whether the entity is any kind of unit, heroes included.
func (e Entity) IsUnit() bool { return e.Kind == KindHero || e.Kind == KindUnit }

// Distance2D returns the ground distance to another entity.
func (e Entity) Distance2D(o Entity) float64 {
	return e.Position.Distance(o.Position)
}

// Modifier is an active effect on the controlled actor.
type Modifier struct {
	Name          string
	Valid         bool
	Debuff        bool
	HasCaster     bool
	CasterTeam    int
	NetworkDamage float64
}

// Hero is the controlled actor: an entity plus the damage bookkeeping the
// threat detector reads.
type Hero struct {
	Entity
	RecentDamage float64
	Modifiers    []Modifier
}

// Item is an inventory slot of the controlled actor.
type Item struct {
	Name          string
	Cooldown      float64 // seconds remaining
	AssembledTime float64 // game time the item last became whole; <= 0 unknown
	CombineLocked bool
}

// Behavior is the ability behaviour bit set.
type Behavior uint32

const (
	BehaviorUnitTarget Behavior = 1 << 3
	BehaviorChannelled Behavior = 1 << 7
)

// Ability is an ability as seen in order and phase notifications.
type Ability struct {
	ID       AbilityID
	Name     string
	Owner    EntityID
	IsItem   bool
	Behavior Behavior

	InAbilityPhase  bool
	OwnerChanneling bool

	CastPoint      float64
	CastDelay      float64
	ChannelEndTime float64
	MaxChannelTime float64
}

// Has reports whether the ability carries every bit in b.
func (a Ability) Has(b Behavior) bool {
	return a.Behavior&b == b
}

// Projectile is a tracking projectile notification.
type Projectile struct {
	ID int64

	Source       EntityID
	SourceIsUnit bool
	SourceTeam   int

	Target       EntityID
	TargetIsUnit bool
	TargetTeam   int

	// Distance between source and target when both are units, else 0.
	Distance   float64
	Speed      float64
	ExpireTime float64
	IsAttack   bool
	Ability    AbilityID
}

// OrderType enumerates the player orders the controllers care about.
type OrderType uint8

const (
	OrderNone OrderType = iota
	OrderMove
	OrderAttack
	OrderCastTarget
	OrderCastPosition
	OrderCastNoTarget
	OrderOther
)

// Order is a prepared player order, seen before it is sent.
type Order struct {
	Type        OrderType
	Issuers     []EntityID
	PlayerInput bool
	Queue       bool
	Ability     *Ability
	Target      *Entity
	// HitTime is the ability's projected travel/impact time against Target,
	// resolved by the host; <= 0 when unknown.
	HitTime float64
}

// IssuedBy reports whether id is among the order issuers.
func (o Order) IssuedBy(id EntityID) bool {
	for _, issuer := range o.Issuers {
		if issuer == id {
			return true
		}
	}
	return false
}
