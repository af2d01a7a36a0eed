package threat

// damageModifiers lists harmful effects known to tick damage or repeatedly
// break regeneration. It is not exhaustive: unlisted debuffs that report
// network damage are caught by the generic fallback in enemyDamageDebuff.
var damageModifiers = map[string]struct{}{
	"modifier_item_urn_damage":                  {},
	"modifier_item_spirit_vessel_damage":        {},
	"modifier_item_radiance_debuff":             {},
	"modifier_item_meteor_hammer_burn":          {},
	"modifier_item_cloak_of_flames_debuff":      {},
	"modifier_item_blood_grenade_debuff":        {},
	"modifier_dragon_scale_burn":                {},
	"modifier_venomancer_venomous_gale":         {},
	"modifier_venomancer_poison_sting":          {},
	"modifier_venomancer_poison_sting_ward":     {},
	"modifier_viper_poison_attack_slow":         {},
	"modifier_viper_viper_strike_slow":          {},
	"modifier_viper_nethertoxin":                {},
	"modifier_huskar_burning_spear_debuff":      {},
	"modifier_axe_battle_hunger":                {},
	"modifier_queenofpain_shadow_strike":        {},
	"modifier_maledict":                         {},
	"modifier_jakiro_dual_breath_burn":          {},
	"modifier_jakiro_macropyre_burn":            {},
	"modifier_doom_bringer_doom":                {},
	"modifier_bloodseeker_rupture":              {},
	"modifier_dazzle_poison_touch":              {},
	"modifier_pudge_rot":                        {},
	"modifier_phoenix_fire_spirit_burn":         {},
	"modifier_winter_wyvern_arctic_burn_slow":   {},
	"modifier_silencer_curse_of_the_silent":     {},
	"modifier_disruptor_thunder_strike":         {},
	"modifier_treant_natures_grasp_damage":      {},
	"modifier_dragon_knight_fireball_burn":      {},
	"modifier_abyssal_underlord_firestorm_burn": {},
}

// IsDamageModifier reports whether name is on the known damage list.
func IsDamageModifier(name string) bool {
	_, ok := damageModifiers[name]
	return ok
}
