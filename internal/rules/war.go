package rules

import (
	"time"

	"github.com/udisondev/clanforge/internal/model"
)

// War constants.
const (
	// MinWarLevel is the minimum clan level to declare a war.
	MinWarLevel int32 = 10

	// Declaration cost before perk discounts.
	WarCostMetal  int64 = 50_000
	WarCostEnergy int64 = 50_000

	// MinWarDuration gates endWar: a war runs at least this long.
	MinWarDuration = 48 * time.Hour

	// WarCooldown blocks a new declaration between the same pair after
	// the previous war ended.
	WarCooldown = 168 * time.Hour

	// Capture odds: base success chance, loss per defense-bonus point,
	// and the floor the chance never drops below.
	captureBase          = 0.70
	capturePerBonusPoint = 0.005
	captureFloor         = 0.30

	// Spoils percentages taken from the loser's treasury.
	spoilsMetalPct  = 15
	spoilsEnergyPct = 15
	spoilsRPPct     = 10

	// Experience adjustments on WIN/LOSS.
	VictoryExperience int64 = 50_000
	DefeatExperience  int64 = -25_000
)

// WarCost returns the declaration cost before discounts.
func WarCost() model.Resources {
	return model.Resources{Metal: WarCostMetal, Energy: WarCostEnergy}
}

// CaptureChance returns the probability of a capture succeeding
// against a tile with the given defense bonus:
// max(0.30, 0.70 - bonus*0.005).
func CaptureChance(defenseBonus int32) float64 {
	chance := captureBase - float64(defenseBonus)*capturePerBonusPoint
	if chance < captureFloor {
		return captureFloor
	}
	return chance
}

// WarSpoils computes the share of the loser's treasury the winner
// takes: 15% metal, 15% energy, 10% research points, floored.
func WarSpoils(loser model.Resources) model.Resources {
	return model.Resources{
		Metal:          loser.Metal * spoilsMetalPct / 100,
		Energy:         loser.Energy * spoilsEnergyPct / 100,
		ResearchPoints: loser.ResearchPoints * spoilsRPPct / 100,
	}
}

// Objective is a war objective recognized at spoils time.
type Objective string

const (
	ObjectiveConquest   Objective = "CONQUEST_VICTORY"
	ObjectiveBlitzkrieg Objective = "BLITZKRIEG"
	ObjectiveDecisive   Objective = "DECISIVE_VICTORY"
	ObjectiveDomination Objective = "STRATEGIC_DOMINATION"
)

// ObjectiveBonuses are the numeric effects of achieved objectives.
// SpoilsMultiplierPct scales metal/energy spoils (100 = unchanged).
type ObjectiveBonuses struct {
	SpoilsMultiplierPct int64
	ResearchPoints      int64
	Experience          int64
}

// WarObjectives inspects a finished war's stats from the winning
// side's perspective and returns the bonuses that side earned plus the
// objectives achieved. Strategic Domination is recorded but carries no
// numeric bonus; its documented income-doubling effect is handled
// outside this core.
func WarObjectives(w *model.War, winnerID int32) (ObjectiveBonuses, []Objective) {
	gained := w.Stats.AttackerTerritoryGained
	lost := w.Stats.DefenderTerritoryGained
	if w.OnDefenderSide(winnerID) {
		gained, lost = lost, gained
	}

	bonuses := ObjectiveBonuses{SpoilsMultiplierPct: 100}
	var achieved []Objective

	if gained >= 20 {
		bonuses.SpoilsMultiplierPct = 125
		achieved = append(achieved, ObjectiveConquest)
	}
	if w.EndedAt != nil && w.EndedAt.Sub(w.DeclaredAt) < 72*time.Hour {
		bonuses.ResearchPoints += 10_000
		achieved = append(achieved, ObjectiveBlitzkrieg)
	}
	if gained >= 1 && lost == 0 {
		bonuses.Experience += 25_000
		achieved = append(achieved, ObjectiveDecisive)
	}
	if gained >= 10 {
		achieved = append(achieved, ObjectiveDomination)
	}
	return bonuses, achieved
}
