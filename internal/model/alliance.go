package model

// PerkType identifies a clan perk. This core only consumes
// territory-cost perks; other types pass through untouched.
type PerkType string

const PerkTerritoryCost PerkType = "territory_cost"

// Perk is a clan-level bonus descriptor owned by the perk subsystem.
// Value is a percentage for territory_cost perks.
type Perk struct {
	Type  PerkType
	Value int32
}

// AllianceType classifies an alliance between two clans.
type AllianceType string

const (
	AllianceMilitary   AllianceType = "MILITARY_ALLIANCE"
	AllianceFederation AllianceType = "FEDERATION"
)

// ContractType is a signed clause inside an alliance.
type ContractType string

const (
	ContractDefensePact ContractType = "DEFENSE_PACT"
	ContractWarSupport  ContractType = "WAR_SUPPORT"
)

// Alliance is the slice of an alliance record this core reads.
type Alliance struct {
	ClanA     int32
	ClanB     int32
	Type      AllianceType
	Contracts []ContractType
}

// PermitsJointWar reports whether the alliance lets the two clans
// declare a war together: a military alliance or federation carrying a
// defense pact or war support contract.
func (a *Alliance) PermitsJointWar() bool {
	if a == nil {
		return false
	}
	if a.Type != AllianceMilitary && a.Type != AllianceFederation {
		return false
	}
	for _, c := range a.Contracts {
		if c == ContractDefensePact || c == ContractWarSupport {
			return true
		}
	}
	return false
}
