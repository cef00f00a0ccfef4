package territory

import (
	"context"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/clanforge/internal/db"
	"github.com/udisondev/clanforge/internal/fault"
	"github.com/udisondev/clanforge/internal/model"
	"github.com/udisondev/clanforge/internal/testutil"
)

func newManager(t *testing.T) (*Manager, *pgxpool.Pool) {
	t.Helper()
	pool := testutil.SetupTestDB(t)
	database := db.NewFromPool(pool)
	clans := db.NewClanRepository(pool)
	tiles := db.NewTerritoryRepository(pool)
	perks := db.NewPerkRepository(pool)
	activity := db.NewActivityRepository(pool)
	return NewManager(database, clans, tiles, perks, activity), pool
}

func TestClaim_FirstTerritory(t *testing.T) {
	mgr, pool := newManager(t)
	ctx := context.Background()
	leader := testutil.SeedClan(t, pool, 1, 1, model.Resources{Metal: 3000, Energy: 3000})

	res, err := mgr.Claim(ctx, 1, leader, 5, 5)
	require.NoError(t, err)
	require.Equal(t, model.Resources{Metal: 2500, Energy: 2500}, res.Cost)
	require.Equal(t, int32(0), res.DefenseBonus)
	require.Equal(t, int32(5), res.Territory.X)

	clan, err := db.NewClanRepository(pool).Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.Resources{Metal: 500, Energy: 500}, clan.Treasury)
	require.Equal(t, int32(1), clan.Stats.TotalTerritories)
}

func TestClaim_RequiresAdjacency(t *testing.T) {
	mgr, pool := newManager(t)
	ctx := context.Background()
	leader := testutil.SeedClan(t, pool, 1, 1, model.Resources{Metal: 20000, Energy: 20000})
	testutil.SeedTerritory(t, pool, 1, 5, 5)

	_, err := mgr.Claim(ctx, 1, leader, 8, 8)
	require.ErrorIs(t, err, fault.ErrValidation)
	require.ErrorContains(t, err, "must be adjacent")

	// A cardinal neighbor of an owned tile is fine, and it touches one
	// friendly tile.
	res, err := mgr.Claim(ctx, 1, leader, 5, 6)
	require.NoError(t, err)
	require.Equal(t, int32(10), res.DefenseBonus)
}

func TestClaim_OwnedTiles(t *testing.T) {
	mgr, pool := newManager(t)
	ctx := context.Background()
	leader := testutil.SeedClan(t, pool, 1, 1, model.Resources{Metal: 20000, Energy: 20000})
	testutil.SeedClan(t, pool, 2, 1, model.Resources{})
	testutil.SeedTerritory(t, pool, 1, 5, 5)
	testutil.SeedTerritory(t, pool, 2, 5, 6)

	_, err := mgr.Claim(ctx, 1, leader, 5, 5)
	require.ErrorIs(t, err, fault.ErrValidation)
	require.ErrorContains(t, err, "already owns")

	_, err = mgr.Claim(ctx, 1, leader, 5, 6)
	require.ErrorIs(t, err, fault.ErrValidation)
	require.ErrorContains(t, err, "owned by another clan")
}

func TestClaim_Permissions(t *testing.T) {
	mgr, pool := newManager(t)
	ctx := context.Background()
	testutil.SeedClan(t, pool, 1, 1, model.Resources{Metal: 20000, Energy: 20000})
	testutil.SeedMember(t, pool, 1, 777, model.RoleMember)
	testutil.SeedMember(t, pool, 1, 778, model.RoleOfficer)

	_, err := mgr.Claim(ctx, 1, 777, 5, 5)
	require.ErrorIs(t, err, fault.ErrPermission)

	_, err = mgr.Claim(ctx, 1, 999, 5, 5)
	require.ErrorIs(t, err, fault.ErrPermission)

	_, err = mgr.Claim(ctx, 1, 778, 5, 5)
	require.NoError(t, err)
}

func TestClaim_MissingClan(t *testing.T) {
	mgr, _ := newManager(t)

	_, err := mgr.Claim(context.Background(), 42, 1, 5, 5)
	require.ErrorIs(t, err, fault.ErrNotFound)
}

func TestClaim_InsufficientFunds(t *testing.T) {
	mgr, pool := newManager(t)
	ctx := context.Background()
	leader := testutil.SeedClan(t, pool, 1, 1, model.Resources{Metal: 2000, Energy: 2000})

	_, err := mgr.Claim(ctx, 1, leader, 5, 5)
	require.ErrorIs(t, err, fault.ErrValidation)
	require.ErrorContains(t, err, "insufficient funds")

	// Nothing was charged.
	clan, err := db.NewClanRepository(pool).Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.Resources{Metal: 2000, Energy: 2000}, clan.Treasury)
}

func TestClaim_TerritoryLimit(t *testing.T) {
	mgr, pool := newManager(t)
	ctx := context.Background()
	leader := testutil.SeedClan(t, pool, 1, 1, model.Resources{Metal: 1 << 40, Energy: 1 << 40})

	// A level 1 clan holds at most 25 tiles.
	for y := int32(0); y < 25; y++ {
		testutil.SeedTerritory(t, pool, 1, 0, y)
	}

	_, err := mgr.Claim(ctx, 1, leader, 0, 25)
	require.ErrorIs(t, err, fault.ErrValidation)
	require.ErrorContains(t, err, "territory limit")
}

func TestClaim_PerkDiscount(t *testing.T) {
	mgr, pool := newManager(t)
	ctx := context.Background()
	leader := testutil.SeedClan(t, pool, 1, 1, model.Resources{Metal: 3000, Energy: 3000})
	require.NoError(t, db.NewPerkRepository(pool).SetPerk(ctx, 1, model.Perk{Type: model.PerkTerritoryCost, Value: 10}))

	res, err := mgr.Claim(ctx, 1, leader, 5, 5)
	require.NoError(t, err)
	require.Equal(t, model.Resources{Metal: 2250, Energy: 2250}, res.Cost)
}

// Two clans race for the same unclaimed tile; the storage layer lets
// exactly one through.
func TestClaim_ConcurrentSameTile(t *testing.T) {
	mgr, pool := newManager(t)
	ctx := context.Background()
	leaderA := testutil.SeedClan(t, pool, 1, 1, model.Resources{Metal: 3000, Energy: 3000})
	leaderB := testutil.SeedClan(t, pool, 2, 1, model.Resources{Metal: 3000, Energy: 3000})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	claims := []struct {
		clan   int32
		player int64
	}{{1, leaderA}, {2, leaderB}}
	for i, c := range claims {
		wg.Add(1)
		go func(i int, clan int32, player int64) {
			defer wg.Done()
			_, errs[i] = mgr.Claim(ctx, clan, player, 5, 5)
		}(i, c.clan, c.player)
	}
	wg.Wait()

	var won int
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			require.ErrorIs(t, err, fault.ErrValidation)
		}
	}
	require.Equal(t, 1, won, "exactly one clan should claim the tile")

	owner, err := db.NewTerritoryRepository(pool).Get(ctx, model.Coord{X: 5, Y: 5})
	require.NoError(t, err)
	require.NotNil(t, owner)

	// The loser was not charged.
	loserID := int32(2)
	if errs[1] == nil {
		loserID = 1
	}
	loser, err := db.NewClanRepository(pool).Get(ctx, loserID)
	require.NoError(t, err)
	require.Equal(t, model.Resources{Metal: 3000, Energy: 3000}, loser.Treasury)
}

func TestAbandon(t *testing.T) {
	mgr, pool := newManager(t)
	ctx := context.Background()
	leader := testutil.SeedClan(t, pool, 1, 1, model.Resources{Metal: 3000, Energy: 3000})

	_, err := mgr.Claim(ctx, 1, leader, 5, 5)
	require.NoError(t, err)

	require.NoError(t, mgr.Abandon(ctx, 1, leader, 5, 5))

	// Abandoning pays nothing back.
	clan, err := db.NewClanRepository(pool).Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.Resources{Metal: 500, Energy: 500}, clan.Treasury)
	require.Equal(t, int32(0), clan.Stats.TotalTerritories)

	err = mgr.Abandon(ctx, 1, leader, 5, 5)
	require.ErrorIs(t, err, fault.ErrValidation)
	require.ErrorContains(t, err, "does not own")
}

func TestDefenseBonus(t *testing.T) {
	mgr, pool := newManager(t)
	ctx := context.Background()
	testutil.SeedClan(t, pool, 1, 1, model.Resources{})
	testutil.SeedTerritory(t, pool, 1, 5, 5)
	testutil.SeedTerritory(t, pool, 1, 5, 6)
	testutil.SeedTerritory(t, pool, 1, 6, 5)

	bonus, err := mgr.DefenseBonus(ctx, 1, 5, 5)
	require.NoError(t, err)
	require.Equal(t, int32(20), bonus)

	bonus, err = mgr.DefenseBonus(ctx, 1, 6, 5)
	require.NoError(t, err)
	require.Equal(t, int32(10), bonus)
}

func TestCollectDailyIncome(t *testing.T) {
	mgr, pool := newManager(t)
	ctx := context.Background()
	testutil.SeedClan(t, pool, 1, 1, model.Resources{})
	testutil.SeedTerritory(t, pool, 1, 0, 0)
	testutil.SeedTerritory(t, pool, 1, 0, 1)
	testutil.SeedTerritory(t, pool, 1, 0, 2)

	res, err := mgr.CollectDailyIncome(ctx, 1)
	require.NoError(t, err)
	require.True(t, res.Collected)
	require.Equal(t, int64(300), res.MetalCollected)
	require.Equal(t, int64(300), res.EnergyCollected)
	require.Equal(t, 3, res.Territories)

	clan, err := db.NewClanRepository(pool).Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.Resources{Metal: 300, Energy: 300}, clan.Treasury)

	// Same day, nothing more to collect.
	res, err = mgr.CollectDailyIncome(ctx, 1)
	require.NoError(t, err)
	require.False(t, res.Collected)

	clan, err = db.NewClanRepository(pool).Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.Resources{Metal: 300, Energy: 300}, clan.Treasury)
}

func TestCollectDailyIncome_LevelScaling(t *testing.T) {
	mgr, pool := newManager(t)
	ctx := context.Background()
	testutil.SeedClan(t, pool, 1, 5, model.Resources{})
	testutil.SeedTerritory(t, pool, 1, 0, 0)

	// Level 5: 100 * (9+5)/10 = 140 per tile.
	res, err := mgr.CollectDailyIncome(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(140), res.MetalCollected)
	require.Equal(t, int64(140), res.EnergyCollected)
}
