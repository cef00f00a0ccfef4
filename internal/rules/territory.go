// Package rules holds the pure balance tables of the warfare core:
// territory pricing, level caps, defense bonuses, capture odds, income
// scaling and war spoils. No I/O, no state.
package rules

import "github.com/udisondev/clanforge/internal/model"

// Claim cost tiers by current owned-territory count. A clan inside a
// tier pays the tier's price in metal and the same amount in energy.
type costTier struct {
	UpTo int   // highest owned count the tier covers
	Cost int64 // metal (energy equal)
}

var claimCostTiers = []costTier{
	{UpTo: 10, Cost: 2500},
	{UpTo: 25, Cost: 3000},
	{UpTo: 50, Cost: 3500},
	{UpTo: 100, Cost: 4000},
	{UpTo: 250, Cost: 5000},
	{UpTo: 500, Cost: 6000},
	{UpTo: 750, Cost: 7000},
	{UpTo: 1000, Cost: 8000},
}

// Territory caps by clan level. Step thresholds, highest not above the
// level wins.
type levelCap struct {
	MinLevel int32
	Max      int
}

var territoryCaps = []levelCap{
	{MinLevel: 1, Max: 25},
	{MinLevel: 6, Max: 50},
	{MinLevel: 11, Max: 100},
	{MinLevel: 16, Max: 200},
	{MinLevel: 21, Max: 400},
	{MinLevel: 26, Max: 700},
	{MinLevel: 31, Max: 1000},
}

// Daily passive income per territory at level 1.
const (
	BaseIncomeMetal  int64 = 100
	BaseIncomeEnergy int64 = 100
)

// ClaimCost returns the price of the next tile for a clan that already
// owns `owned` tiles. Total over all counts: beyond the last tier the
// top price applies.
func ClaimCost(owned int) model.Resources {
	for _, t := range claimCostTiers {
		if owned <= t.UpTo {
			return model.Resources{Metal: t.Cost, Energy: t.Cost}
		}
	}
	top := claimCostTiers[len(claimCostTiers)-1]
	return model.Resources{Metal: top.Cost, Energy: top.Cost}
}

// MaxTerritories returns the territory cap for a clan level.
func MaxTerritories(level int32) int {
	max := territoryCaps[0].Max
	for _, c := range territoryCaps {
		if level >= c.MinLevel {
			max = c.Max
		}
	}
	return max
}

// ApplyDiscount reduces a cost by a whole percentage, multiplicatively,
// flooring each resource to an integer. Percent is clamped to [0,100].
func ApplyDiscount(cost model.Resources, percent int32) model.Resources {
	if percent <= 0 {
		return cost
	}
	if percent > 100 {
		percent = 100
	}
	keep := int64(100 - percent)
	return model.Resources{
		Metal:          cost.Metal * keep / 100,
		Energy:         cost.Energy * keep / 100,
		ResearchPoints: cost.ResearchPoints * keep / 100,
	}
}

// TerritoryCostDiscount sums the territory_cost perks of a clan into a
// single percentage.
func TerritoryCostDiscount(perks []model.Perk) int32 {
	var pct int32
	for _, p := range perks {
		if p.Type == model.PerkTerritoryCost {
			pct += p.Value
		}
	}
	return pct
}

// DefenseBonus is the capture-resistance percentage of a tile: +10 per
// cardinal neighbor owned by the same clan, capped at +50. Callers pass
// the tile set the bonus should be judged against, including any tile
// claimed in the same operation.
func DefenseBonus(c model.Coord, owned model.TileSet) int32 {
	var bonus int32
	for _, n := range c.Neighbors() {
		if owned.Contains(n) {
			bonus += 10
		}
	}
	if bonus > 50 {
		bonus = 50
	}
	return bonus
}

// DailyIncomePerTile scales the base income by clan level:
// floor(base * (1 + (level-1) * 0.1)).
func DailyIncomePerTile(level int32) model.Resources {
	if level < 1 {
		level = 1
	}
	// Integer math: base * (10 + level - 1) / 10.
	mult := int64(9 + level)
	return model.Resources{
		Metal:  BaseIncomeMetal * mult / 10,
		Energy: BaseIncomeEnergy * mult / 10,
	}
}
