package model

import "time"

// ClanStats are the warfare counters kept per clan.
type ClanStats struct {
	TotalTerritories    int32
	WarsWon             int32
	WarsLost            int32
	TerritoriesCaptured int32
	TotalWars           int32
}

// Clan is the slice of a clan record this core reads and writes:
// identity, level, treasury and warfare counters. Membership, crests,
// chat and the rest belong to the clan subsystem.
type Clan struct {
	ID         int32
	Tag        string
	Name       string
	LeaderID   int64
	Level      int32
	Treasury   Resources
	Experience int64
	Stats      ClanStats

	// LastIncomeCollection is nil until the first daily collection.
	LastIncomeCollection *time.Time
}

// CollectedIncomeToday reports whether the clan already collected
// territory income during the UTC day containing now.
func (c *Clan) CollectedIncomeToday(now time.Time) bool {
	if c.LastIncomeCollection == nil {
		return false
	}
	y1, m1, d1 := c.LastIncomeCollection.UTC().Date()
	y2, m2, d2 := now.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
