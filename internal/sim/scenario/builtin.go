package scenario

import (
	"splitguard/internal/host"
	"splitguard/internal/sim"
)

func init() {
	register(Scenario{
		Name:        "idle-cycle",
		Description: "Boots assembled and nothing happening; only the anti-stick cycle acts",
		Duration:    20,
		Build: func() (*sim.World, []sim.Cue) {
			return bootsWorld(), nil
		},
	})

	register(Scenario{
		Name:        "incoming-projectile",
		Description: "An enemy hero fires two tracking attacks at the hero",
		Duration:    8,
		Build:       incomingProjectile,
	})

	register(Scenario{
		Name:        "melee-hero",
		Description: "An enemy melee hero walks up, attacks for two seconds and leaves",
		Duration:    6,
		Build:       meleeHero,
	})

	register(Scenario{
		Name:        "damage-debuff",
		Description: "A radiance burn ticks on the hero for two seconds",
		Duration:    6,
		Build:       damageDebuff,
	})

	register(Scenario{
		Name:        "cast-intercept",
		Description: "A targeted nuke is cast while Khanda is on cooldown",
		Duration:    4,
		Build:       castIntercept,
	})

	register(Scenario{
		Name:        "channel-impact",
		Description: "A channelled spell releases a projectile; the split lands just before impact",
		Duration:    5,
		Build:       channelImpact,
	})
}

func incomingProjectile() (*sim.World, []sim.Cue) {
	w := bootsWorld()
	sniper := enemyHero("npc_dota_hero_sniper", false, host.Vec2{X: 600})
	w.Spawn(sniper)

	shot := func(id int64, flight float64) (fire, hit func(w *sim.World) []host.Event) {
		var p host.Projectile
		fire = func(w *sim.World) []host.Event {
			p = host.Projectile{
				ID: id, Source: EnemyID, SourceIsUnit: true, SourceTeam: EnemyTeam,
				Target: HeroID, TargetIsUnit: true, TargetTeam: AllyTeam,
				Distance: 600, Speed: 600 / flight, ExpireTime: w.Now() + flight, IsAttack: true,
				Ability: host.NoAbility,
			}
			return []host.Event{host.ProjectileCreated{Projectile: p}}
		}
		hit = func(w *sim.World) []host.Event {
			return []host.Event{host.ProjectileDestroyed{Projectile: p}}
		}
		return fire, hit
	}

	fire1, hit1 := shot(1, 0.6)
	fire2, hit2 := shot(2, 0.6)
	return w, []sim.Cue{
		at(0, "enemy in view", func(w *sim.World) []host.Event {
			e, _ := w.Entity(EnemyID)
			return []host.Event{host.EntityCreated{Entity: e}}
		}),
		at(2.0, "attack 1 fired", fire1),
		at(2.6, "attack 1 lands", hit1),
		at(5.0, "attack 2 fired", fire2),
		at(5.6, "attack 2 lands", hit2),
	}
}

func meleeHero() (*sim.World, []sim.Cue) {
	w := bootsWorld()
	axe := enemyHero("npc_dota_hero_axe", true, host.Vec2{X: 140})
	axe.Attacking = true
	axe.Target = HeroID

	return w, []sim.Cue{
		at(1.0, "axe engages", func(w *sim.World) []host.Event {
			w.Spawn(axe)
			return []host.Event{host.EntityCreated{Entity: axe}}
		}),
		at(3.0, "axe leaves", func(w *sim.World) []host.Event {
			gone, ok := w.Despawn(EnemyID)
			if !ok {
				return nil
			}
			return []host.Event{host.EntityDestroyed{Entity: gone}}
		}),
	}
}

func damageDebuff() (*sim.World, []sim.Cue) {
	w := bootsWorld()
	burn := host.Modifier{
		Name: "modifier_item_radiance_debuff", Valid: true, Debuff: true,
		HasCaster: true, CasterTeam: EnemyTeam, NetworkDamage: 60,
	}

	return w, []sim.Cue{
		at(1.0, "radiance burn applied", func(w *sim.World) []host.Event {
			h := w.HeroRef()
			h.Modifiers = append(h.Modifiers, burn)
			h.RecentDamage = 60
			return nil
		}),
		at(3.0, "burn expires", func(w *sim.World) []host.Event {
			h := w.HeroRef()
			h.Modifiers = nil
			h.RecentDamage = 0
			return nil
		}),
	}
}

func laguna() host.Ability {
	return host.Ability{
		ID: 7, Name: "lina_laguna_blade", Owner: HeroID,
		Behavior: host.BehaviorUnitTarget, CastPoint: 0.45,
	}
}

func castOrder(a host.Ability, target host.Entity, hitTime float64) host.OrderPrepared {
	return host.OrderPrepared{Order: host.Order{
		Type:        host.OrderCastTarget,
		Issuers:     []host.EntityID{HeroID},
		PlayerInput: true,
		Ability:     &a,
		Target:      &target,
		HitTime:     hitTime,
	}}
}

func castIntercept() (*sim.World, []sim.Cue) {
	w := khandaWorld(20)
	a := laguna()

	return w, []sim.Cue{
		at(1.0, "laguna ordered", func(w *sim.World) []host.Event {
			target, _ := w.Entity(EnemyID)
			phase := a
			phase.InAbilityPhase = true
			w.HeroRef().InAbilityPhase = true
			return []host.Event{
				castOrder(a, target, 0.25),
				host.AbilityPhaseChanged{Ability: phase},
			}
		}),
		at(1.45, "laguna released", func(w *sim.World) []host.Event {
			w.HeroRef().InAbilityPhase = false
			return []host.Event{host.AbilityPhaseChanged{Ability: a}}
		}),
	}
}

func channelImpact() (*sim.World, []sim.Cue) {
	w := khandaWorld(20)
	a := host.Ability{
		ID: 8, Name: "pugna_life_drain", Owner: HeroID,
		Behavior:  host.BehaviorUnitTarget | host.BehaviorChannelled,
		CastPoint: 0.3, MaxChannelTime: 1.0,
	}

	return w, []sim.Cue{
		at(0.5, "drain ordered", func(w *sim.World) []host.Event {
			target, _ := w.Entity(EnemyID)
			phase := a
			phase.InAbilityPhase = true
			w.HeroRef().InAbilityPhase = true
			return []host.Event{
				castOrder(a, target, 0),
				host.AbilityPhaseChanged{Ability: phase},
			}
		}),
		at(0.8, "channel starts", func(w *sim.World) []host.Event {
			h := w.HeroRef()
			h.InAbilityPhase = false
			h.Channeling = true
			channel := a
			channel.OwnerChanneling = true
			return []host.Event{host.AbilityChannelChanged{Ability: channel}}
		}),
		at(1.8, "channel ends", func(w *sim.World) []host.Event {
			w.HeroRef().Channeling = false
			return []host.Event{host.AbilityChannelChanged{Ability: a}}
		}),
		at(1.9, "projectile released", func(w *sim.World) []host.Event {
			return []host.Event{host.ProjectileCreated{Projectile: host.Projectile{
				ID: 900, Source: HeroID, SourceIsUnit: true, SourceTeam: AllyTeam,
				Target: EnemyID, TargetIsUnit: true, TargetTeam: EnemyTeam,
				Ability: a.ID, ExpireTime: w.Now() + 0.6,
			}}}
		}),
	}
}
