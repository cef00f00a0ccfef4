package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/clanforge/internal/db"
	"github.com/udisondev/clanforge/internal/model"
)

// SeedClan inserts a clan with a leader member and returns the leader's
// character ID.
func SeedClan(tb testing.TB, pool *pgxpool.Pool, id int32, level int32, treasury model.Resources) int64 {
	tb.Helper()
	ctx := context.Background()
	clans := db.NewClanRepository(pool)

	leaderID := int64(id) * 1000
	clan := &model.Clan{
		ID:       id,
		Tag:      clanTag(id),
		Name:     "Clan " + clanTag(id),
		LeaderID: leaderID,
		Level:    level,
		Treasury: treasury,
	}
	if err := clans.Create(ctx, clan); err != nil {
		tb.Fatalf("seeding clan %d: %v", id, err)
	}
	if err := clans.AddMember(ctx, model.Member{
		CharacterID: leaderID,
		ClanID:      id,
		Role:        model.RoleLeader,
	}); err != nil {
		tb.Fatalf("seeding leader of clan %d: %v", id, err)
	}
	return leaderID
}

// SeedMember inserts an extra member with the given role.
func SeedMember(tb testing.TB, pool *pgxpool.Pool, clanID int32, characterID int64, role model.Role) {
	tb.Helper()
	clans := db.NewClanRepository(pool)
	if err := clans.AddMember(context.Background(), model.Member{
		CharacterID: characterID,
		ClanID:      clanID,
		Role:        role,
	}); err != nil {
		tb.Fatalf("seeding member %d: %v", characterID, err)
	}
}

// SeedTerritory inserts a tile owned by the clan.
func SeedTerritory(tb testing.TB, pool *pgxpool.Pool, clanID int32, x, y int32) {
	tb.Helper()
	ctx := context.Background()
	tiles := db.NewTerritoryRepository(pool)
	clans := db.NewClanRepository(pool)

	inserted, err := tiles.Insert(ctx, model.Territory{
		Coord:     model.Coord{X: x, Y: y},
		ClanID:    clanID,
		ClaimedBy: int64(clanID) * 1000,
		ClaimedAt: time.Now().UTC(),
	})
	if err != nil {
		tb.Fatalf("seeding territory (%d,%d): %v", x, y, err)
	}
	if !inserted {
		tb.Fatalf("seeding territory (%d,%d): already owned", x, y)
	}
	if _, err := clans.IncrementTerritories(ctx, clanID, 1<<30); err != nil {
		tb.Fatalf("seeding territory count: %v", err)
	}
}

func clanTag(id int32) string {
	tags := []string{"AAA", "BBB", "CCC", "DDD", "EEE", "FFF", "GGG", "HHH"}
	return tags[int(id)%len(tags)]
}
