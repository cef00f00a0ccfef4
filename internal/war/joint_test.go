package war

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/clanforge/internal/db"
	"github.com/udisondev/clanforge/internal/fault"
	"github.com/udisondev/clanforge/internal/model"
	"github.com/udisondev/clanforge/internal/testutil"
)

func seedAlliance(t *testing.T, pool *pgxpool.Pool, a, b int32, typ model.AllianceType, contracts ...model.ContractType) {
	t.Helper()
	require.NoError(t, db.NewAllianceRepository(pool).SetAlliance(context.Background(), model.Alliance{
		ClanA: a, ClanB: b, Type: typ, Contracts: contracts,
	}))
}

func TestDeclareJoint(t *testing.T) {
	mgr, pool := newManager(t)
	ctx := context.Background()
	leader := testutil.SeedClan(t, pool, 1, 10, model.Resources{Metal: 30000, Energy: 30000})
	testutil.SeedClan(t, pool, 2, 10, model.Resources{Metal: 30000, Energy: 30000})
	testutil.SeedClan(t, pool, 3, 10, model.Resources{})
	seedAlliance(t, pool, 1, 2, model.AllianceMilitary, model.ContractWarSupport)

	res, err := mgr.DeclareJoint(ctx, 1, 2, 3, leader)
	require.NoError(t, err)
	require.Equal(t, model.WarDeclared, res.War.Status)
	require.Equal(t, []int32{2}, res.War.AttackerAllies)
	require.Equal(t, model.Resources{Metal: 25000, Energy: 25000}, res.Costs[1])
	require.Equal(t, model.Resources{Metal: 25000, Energy: 25000}, res.Costs[2])

	// Each attacker paid its own half.
	require.Equal(t, model.Resources{Metal: 5000, Energy: 5000}, getClan(t, pool, 1).Treasury)
	require.Equal(t, model.Resources{Metal: 5000, Energy: 5000}, getClan(t, pool, 2).Treasury)
	require.Equal(t, int32(1), getClan(t, pool, 3).Stats.TotalWars)

	// The ally can fight in the shared war.
	ok, err := mgr.CanParticipate(ctx, res.War.ID, 2)
	require.NoError(t, err)
	require.True(t, ok)

	participants, err := mgr.Participants(ctx, res.War.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []int32{1, 2, 3}, participants)
}

func TestDeclareJoint_RequiresAlliance(t *testing.T) {
	mgr, pool := newManager(t)
	ctx := context.Background()
	leader := testutil.SeedClan(t, pool, 1, 10, model.Resources{Metal: 30000, Energy: 30000})
	testutil.SeedClan(t, pool, 2, 10, model.Resources{Metal: 30000, Energy: 30000})
	testutil.SeedClan(t, pool, 3, 10, model.Resources{})

	// No alliance at all.
	_, err := mgr.DeclareJoint(ctx, 1, 2, 3, leader)
	require.ErrorIs(t, err, fault.ErrPermission)

	// An alliance without a war contract does not qualify either.
	seedAlliance(t, pool, 1, 2, model.AllianceFederation)
	_, err = mgr.DeclareJoint(ctx, 1, 2, 3, leader)
	require.ErrorIs(t, err, fault.ErrPermission)

	seedAlliance(t, pool, 1, 2, model.AllianceFederation, model.ContractDefensePact)
	_, err = mgr.DeclareJoint(ctx, 1, 2, 3, leader)
	require.NoError(t, err)
}

func TestDeclareJoint_AllyLevelAndFunds(t *testing.T) {
	mgr, pool := newManager(t)
	ctx := context.Background()
	leader := testutil.SeedClan(t, pool, 1, 10, model.Resources{Metal: 30000, Energy: 30000})
	testutil.SeedClan(t, pool, 2, 9, model.Resources{Metal: 30000, Energy: 30000})
	testutil.SeedClan(t, pool, 3, 10, model.Resources{})
	testutil.SeedClan(t, pool, 4, 10, model.Resources{Metal: 1000, Energy: 1000})
	seedAlliance(t, pool, 1, 2, model.AllianceMilitary, model.ContractWarSupport)
	seedAlliance(t, pool, 1, 4, model.AllianceMilitary, model.ContractWarSupport)

	_, err := mgr.DeclareJoint(ctx, 1, 2, 3, leader)
	require.ErrorIs(t, err, fault.ErrValidation)
	require.ErrorContains(t, err, "level")

	_, err = mgr.DeclareJoint(ctx, 1, 4, 3, leader)
	require.ErrorIs(t, err, fault.ErrValidation)
	require.ErrorContains(t, err, "allied clan's share")

	// Neither attacker lost anything on the failed attempts.
	require.Equal(t, model.Resources{Metal: 30000, Energy: 30000}, getClan(t, pool, 1).Treasury)
	require.Equal(t, model.Resources{Metal: 1000, Energy: 1000}, getClan(t, pool, 4).Treasury)
}

func TestDeclareJoint_BothPairsMustBeAtPeace(t *testing.T) {
	mgr, pool := newManager(t)
	ctx := context.Background()
	leader := testutil.SeedClan(t, pool, 1, 10, model.Resources{Metal: 30000, Energy: 30000})
	testutil.SeedClan(t, pool, 2, 10, model.Resources{Metal: 30000, Energy: 30000})
	testutil.SeedClan(t, pool, 3, 10, model.Resources{})
	seedAlliance(t, pool, 1, 2, model.AllianceMilitary, model.ContractWarSupport)

	// The ally is already fighting the target on its own.
	seedWar(t, pool, 2, 3, model.WarActive, time.Now().UTC())

	_, err := mgr.DeclareJoint(ctx, 1, 2, 3, leader)
	require.ErrorIs(t, err, fault.ErrValidation)
	require.ErrorContains(t, err, "already running")
}

func TestCanParticipate_EndedWar(t *testing.T) {
	mgr, pool := newManager(t)
	ctx := context.Background()
	testutil.SeedClan(t, pool, 1, 10, model.Resources{})
	testutil.SeedClan(t, pool, 2, 10, model.Resources{})
	w := seedWar(t, pool, 1, 2, model.WarActive, time.Now().UTC())

	winner := int32(1)
	_, err := db.NewWarRepository(pool).SetEnded(ctx, w.ID, time.Now().UTC(), &winner)
	require.NoError(t, err)

	ok, err := mgr.CanParticipate(ctx, w.ID, 1)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = mgr.CanParticipate(ctx, w.ID, 3)
	require.NoError(t, err)
	require.False(t, ok)
}
