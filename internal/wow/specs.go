// Package wow holds the static class and specialization table.
package wow

import "sort"

// Role is the raid role of a specialization.
type Role int

const (
	RoleTank Role = iota
	RoleHeal
	RoleMelee
	RoleRanged
)

// DPS reports whether the role deals damage.
func (r Role) DPS() bool { return r == RoleMelee || r == RoleRanged }

// Class is a playable class.
type Class struct {
	Name      string
	EmojiName string
}

// SpecID identifies a specialization, e.g. "mage_dps".
type SpecID string

// Spec is a class specialization.
type Spec struct {
	ID        SpecID
	Class     *Class
	EmojiName string
	Role      Role
}

var (
	DeathKnight = &Class{Name: "DeathKnight", EmojiName: "deathknight"}
	DemonHunter = &Class{Name: "DemonHunter", EmojiName: "demonhunter"}
	Druid       = &Class{Name: "Druid", EmojiName: "druid"}
	Hunter      = &Class{Name: "Hunter", EmojiName: "hunter"}
	Mage        = &Class{Name: "Mage", EmojiName: "mage"}
	Monk        = &Class{Name: "Monk", EmojiName: "monk"}
	Paladin     = &Class{Name: "Paladin", EmojiName: "paladin"}
	Priest      = &Class{Name: "Priest", EmojiName: "priest"}
	Rogue       = &Class{Name: "Rogue", EmojiName: "rogue"}
	Shaman      = &Class{Name: "Shaman", EmojiName: "shaman"}
	Warlock     = &Class{Name: "Warlock", EmojiName: "warlock"}
	Warrior     = &Class{Name: "Warrior", EmojiName: "warrior"}
)

func spec(id string, class *Class, emoji string, role Role) *Spec {
	return &Spec{ID: SpecID(id), Class: class, EmojiName: emoji, Role: role}
}

var specs = []*Spec{
	spec("dk_blood", DeathKnight, "deathknight_blood", RoleTank),
	spec("dk_frost", DeathKnight, "deathknight_frost", RoleMelee),
	spec("dk_unholy", DeathKnight, "deathknight_unholy", RoleMelee),
	spec("dk_dps", DeathKnight, "deathknight_dps", RoleMelee),

	spec("dh_vengeance", DemonHunter, "demonhunter_vengeance", RoleTank),
	spec("dh_havoc", DemonHunter, "demonhunter_havoc", RoleMelee),

	spec("druid_guardian", Druid, "druid_guardian", RoleTank),
	spec("druid_resto", Druid, "druid_restoration", RoleHeal),
	spec("druid_balance", Druid, "druid_balance", RoleRanged),
	spec("druid_feral", Druid, "druid_feral", RoleMelee),

	spec("hunt_bm", Hunter, "huner_beast_mastery", RoleRanged),
	spec("hunt_marksman", Hunter, "hunter_marksmanship", RoleRanged),
	spec("hunt_survival", Hunter, "hunter_survival", RoleMelee),
	spec("hunt_rdps", Hunter, "hunter", RoleRanged),

	spec("mage_frost", Mage, "mage_frost", RoleRanged),
	spec("mage_fire", Mage, "mage_fire", RoleRanged),
	spec("mage_arcane", Mage, "mage_arcane", RoleRanged),
	spec("mage_dps", Mage, "mage", RoleRanged),

	spec("monk_brewmaster", Monk, "monk_brewmaster", RoleTank),
	spec("monk_mistweaver", Monk, "monk_mistweaver", RoleHeal),
	spec("monk_windwalker", Monk, "monk_windwalker", RoleMelee),

	spec("pal_prot", Paladin, "paladin_protection", RoleTank),
	spec("pal_holy", Paladin, "paladin_holy", RoleHeal),
	spec("pal_ret", Paladin, "paladin_retribution", RoleMelee),

	spec("priest_holy", Priest, "priest_holy", RoleHeal),
	spec("priest_disci", Priest, "priest_discipline", RoleHeal),
	spec("priest_shadow", Priest, "priest_shadow", RoleRanged),
	spec("priest_heal", Priest, "priest", RoleHeal),

	spec("rogue_assa", Rogue, "rogue_assassination", RoleMelee),
	spec("rogue_outlaw", Rogue, "rogue_outlaw", RoleMelee),
	spec("rogue_sub", Rogue, "rogue_subtlety", RoleMelee),
	spec("rogue_dps", Rogue, "rogue", RoleMelee),

	spec("shaman_resto", Shaman, "shaman_restoration", RoleHeal),
	spec("shaman_elem", Shaman, "shaman_elemental", RoleRanged),
	spec("shaman_enhancement", Shaman, "shaman_enhancement", RoleMelee),

	spec("warlock_affli", Warlock, "warlock_affliction", RoleRanged),
	spec("warlock_demono", Warlock, "warlock_demonology", RoleRanged),
	spec("warlock_destru", Warlock, "warlock_destruction", RoleRanged),
	spec("warlock_dps", Warlock, "warlock", RoleRanged),

	spec("war_prot", Warrior, "warrior_protection", RoleTank),
	spec("war_arm", Warrior, "warrior_arm", RoleMelee),
	spec("war_fury", Warrior, "warrior_fury", RoleMelee),
	spec("war_dps", Warrior, "warrior", RoleMelee),
}

var byID = func() map[SpecID]*Spec {
	m := make(map[SpecID]*Spec, len(specs))
	for _, s := range specs {
		m[s.ID] = s
	}
	return m
}()

// Lookup returns the spec with id.
func Lookup(id SpecID) (*Spec, bool) {
	s, ok := byID[id]
	return s, ok
}

// All returns every spec in table order.
func All() []*Spec { return append([]*Spec(nil), specs...) }

// RosterSpecs are the specs offered as roster reactions, in display order.
func RosterSpecs() []*Spec {
	ids := []SpecID{
		"dk_blood", "dk_dps",
		"dh_vengeance", "dh_havoc",
		"druid_guardian", "druid_resto", "druid_balance", "druid_feral",
		"hunt_survival", "hunt_rdps",
		"mage_dps",
		"monk_brewmaster", "monk_mistweaver", "monk_windwalker",
		"pal_prot", "pal_holy", "pal_ret",
		"priest_shadow", "priest_heal",
		"rogue_dps",
		"shaman_resto", "shaman_elem", "shaman_enhancement",
		"war_prot", "war_dps",
		"warlock_dps",
	}
	out := make([]*Spec, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}

// Classes returns every class sorted by name.
func Classes() []*Class {
	out := []*Class{DeathKnight, DemonHunter, Druid, Hunter, Mage, Monk, Paladin, Priest, Rogue, Shaman, Warlock, Warrior}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
