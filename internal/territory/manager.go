// Package territory owns the per-clan territory ledger: claiming,
// abandoning, defense bonuses and daily passive income.
package territory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/udisondev/clanforge/internal/db"
	"github.com/udisondev/clanforge/internal/fault"
	"github.com/udisondev/clanforge/internal/model"
	"github.com/udisondev/clanforge/internal/rules"
)

// PerkSource supplies clan perks. Owned by the perk subsystem.
type PerkSource interface {
	ActivePerks(ctx context.Context, clanID int32) ([]model.Perk, error)
}

// ActivityLog receives clan activity events. Best-effort: failures are
// logged and never abort the operation that produced the event.
type ActivityLog interface {
	Log(ctx context.Context, clanID int32, eventType string, metadata map[string]any) error
}

// Manager is the territory ledger.
type Manager struct {
	db       *db.DB
	clans    *db.ClanRepository
	tiles    *db.TerritoryRepository
	perks    PerkSource
	activity ActivityLog
}

// NewManager wires the ledger over its storage and collaborators.
func NewManager(database *db.DB, clans *db.ClanRepository, tiles *db.TerritoryRepository, perks PerkSource, activity ActivityLog) *Manager {
	return &Manager{
		db:       database,
		clans:    clans,
		tiles:    tiles,
		perks:    perks,
		activity: activity,
	}
}

// ClaimResult is what a successful claim returns.
type ClaimResult struct {
	Territory    model.Territory
	Cost         model.Resources
	DefenseBonus int32
}

// Claim claims the tile at (x, y) for the clan. Preconditions are
// checked in order and the first failure wins; the actual mutation
// runs in one transaction whose statements re-check funds, tile
// exclusivity and the territory cap, so two racing claims cannot both
// pass on a stale read.
func (m *Manager) Claim(ctx context.Context, clanID int32, playerID int64, x, y int32) (*ClaimResult, error) {
	clan, err := m.clans.Get(ctx, clanID)
	if err != nil {
		return nil, fault.Internal("loading clan", err)
	}
	if clan == nil {
		return nil, fault.NotFoundf("clan %d", clanID)
	}

	if err := m.requireOfficer(ctx, clanID, playerID); err != nil {
		return nil, err
	}

	coord := model.Coord{X: x, Y: y}
	existing, err := m.tiles.Get(ctx, coord)
	if err != nil {
		return nil, fault.Internal("checking tile owner", err)
	}
	if existing != nil {
		if existing.ClanID == clanID {
			return nil, fault.Validationf("your clan already owns the tile (%d,%d)", x, y)
		}
		return nil, fault.Validationf("the tile (%d,%d) is owned by another clan", x, y)
	}

	owned, err := m.tiles.Of(ctx, clanID)
	if err != nil {
		return nil, fault.Internal("loading territories", err)
	}
	tileSet := model.NewTileSet(owned)
	if len(owned) > 0 && !tileSet.AdjacentTo(coord) {
		return nil, fault.Validationf("new territory must be adjacent to territory you already own")
	}

	limit := rules.MaxTerritories(clan.Level)
	if len(owned) >= limit {
		return nil, fault.Validationf("your clan is at its territory limit (%d at level %d)", limit, clan.Level)
	}

	perks, err := m.perks.ActivePerks(ctx, clanID)
	if err != nil {
		return nil, fault.Internal("loading perks", err)
	}
	cost := rules.ApplyDiscount(rules.ClaimCost(len(owned)), rules.TerritoryCostDiscount(perks))
	if !clan.Treasury.Covers(cost) {
		return nil, fault.Validationf("insufficient funds: claiming costs %d metal and %d energy", cost.Metal, cost.Energy)
	}

	tile := model.Territory{
		Coord:     coord,
		ClanID:    clanID,
		ClanTag:   clan.Tag,
		ClaimedBy: playerID,
		ClaimedAt: time.Now().UTC(),
	}

	err = m.db.InTx(ctx, func(tx pgx.Tx) error {
		clans := m.clans.WithTx(tx)
		tiles := m.tiles.WithTx(tx)

		paid, err := clans.AdjustTreasury(ctx, clanID, cost.Neg())
		if err != nil {
			return fault.Internal("debiting treasury", err)
		}
		if !paid {
			return fault.Validationf("insufficient funds: claiming costs %d metal and %d energy", cost.Metal, cost.Energy)
		}

		inserted, err := tiles.Insert(ctx, tile)
		if err != nil {
			return fault.Internal("claiming tile", err)
		}
		if !inserted {
			return fault.Validationf("the tile (%d,%d) is owned by another clan", x, y)
		}

		counted, err := clans.IncrementTerritories(ctx, clanID, limit)
		if err != nil {
			return fault.Internal("updating territory count", err)
		}
		if !counted {
			return fault.Validationf("your clan is at its territory limit (%d at level %d)", limit, clan.Level)
		}

		return clans.AppendTransaction(ctx, db.Transaction{
			ClanID: clanID,
			Kind:   "territory_claim",
			Amount: cost.Neg(),
			Detail: tile.Coord.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	tileSet[coord] = struct{}{}
	bonus := rules.DefenseBonus(coord, tileSet)

	m.logActivity(ctx, clanID, "territory_claimed", map[string]any{
		"x": x, "y": y, "by": playerID, "cost_metal": cost.Metal, "cost_energy": cost.Energy,
	})
	slog.Info("territory claimed", "clan", clanID, "x", x, "y", y, "cost", cost.Metal, "bonus", bonus)

	return &ClaimResult{Territory: tile, Cost: cost, DefenseBonus: bonus}, nil
}

// Abandon drops a tile the clan owns. No refund.
func (m *Manager) Abandon(ctx context.Context, clanID int32, playerID int64, x, y int32) error {
	clan, err := m.clans.Get(ctx, clanID)
	if err != nil {
		return fault.Internal("loading clan", err)
	}
	if clan == nil {
		return fault.NotFoundf("clan %d", clanID)
	}

	if err := m.requireOfficer(ctx, clanID, playerID); err != nil {
		return err
	}

	coord := model.Coord{X: x, Y: y}
	err = m.db.InTx(ctx, func(tx pgx.Tx) error {
		deleted, err := m.tiles.WithTx(tx).Delete(ctx, clanID, coord)
		if err != nil {
			return fault.Internal("abandoning tile", err)
		}
		if !deleted {
			return fault.Validationf("your clan does not own the tile (%d,%d)", x, y)
		}
		return m.clans.WithTx(tx).DecrementTerritories(ctx, clanID)
	})
	if err != nil {
		return err
	}

	m.logActivity(ctx, clanID, "territory_abandoned", map[string]any{
		"x": x, "y": y, "by": playerID,
	})
	slog.Info("territory abandoned", "clan", clanID, "x", x, "y", y)
	return nil
}

// DefenseBonus computes the current defense bonus of one of the clan's
// tiles against its stored territory set.
func (m *Manager) DefenseBonus(ctx context.Context, clanID int32, x, y int32) (int32, error) {
	owned, err := m.tiles.Of(ctx, clanID)
	if err != nil {
		return 0, fault.Internal("loading territories", err)
	}
	return rules.DefenseBonus(model.Coord{X: x, Y: y}, model.NewTileSet(owned)), nil
}

// IncomeResult reports one daily income collection.
type IncomeResult struct {
	Collected       bool
	MetalCollected  int64
	EnergyCollected int64
	Territories     int
	Timestamp       time.Time
}

// CollectDailyIncome credits the clan's passive territory income once
// per UTC calendar day. Safe to call at any frequency: the credit and
// the timestamp move in one conditional statement, so only the first
// call of a day pays out.
func (m *Manager) CollectDailyIncome(ctx context.Context, clanID int32) (*IncomeResult, error) {
	clan, err := m.clans.Get(ctx, clanID)
	if err != nil {
		return nil, fault.Internal("loading clan", err)
	}
	if clan == nil {
		return nil, fault.NotFoundf("clan %d", clanID)
	}

	now := time.Now().UTC()
	if clan.CollectedIncomeToday(now) {
		return &IncomeResult{Collected: false, Timestamp: now}, nil
	}

	count, err := m.tiles.Count(ctx, clanID)
	if err != nil {
		return nil, fault.Internal("counting territories", err)
	}
	perTile := rules.DailyIncomePerTile(clan.Level)
	income := model.Resources{
		Metal:  perTile.Metal * int64(count),
		Energy: perTile.Energy * int64(count),
	}

	collected, err := m.clans.CollectIncome(ctx, clanID, income, now)
	if err != nil {
		return nil, fault.Internal("crediting income", err)
	}
	if !collected {
		// Lost the race against another collection today.
		return &IncomeResult{Collected: false, Timestamp: now}, nil
	}

	if err := m.clans.AppendTransaction(ctx, db.Transaction{
		ClanID: clanID,
		Kind:   "territory_income",
		Amount: income,
		Detail: fmt.Sprintf("%d territories", count),
	}); err != nil {
		slog.Warn("recording income transaction failed", "clan", clanID, "err", err)
	}

	m.logActivity(ctx, clanID, "territory_income", map[string]any{
		"metal": income.Metal, "energy": income.Energy, "territories": count,
	})
	slog.Info("territory income collected", "clan", clanID, "metal", income.Metal, "energy", income.Energy, "territories", count)

	return &IncomeResult{
		Collected:       true,
		MetalCollected:  income.Metal,
		EnergyCollected: income.Energy,
		Territories:     count,
		Timestamp:       now,
	}, nil
}

// Territories returns the clan's territory list.
func (m *Manager) Territories(ctx context.Context, clanID int32) ([]model.Territory, error) {
	tiles, err := m.tiles.Of(ctx, clanID)
	if err != nil {
		return nil, fault.Internal("loading territories", err)
	}
	return tiles, nil
}

func (m *Manager) requireOfficer(ctx context.Context, clanID int32, playerID int64) error {
	member, err := m.clans.Member(ctx, clanID, playerID)
	if err != nil {
		return fault.Internal("loading member", err)
	}
	if member == nil {
		return fault.Permissionf("player %d is not a member of clan %d", playerID, clanID)
	}
	if !member.Role.CanManageTerritory() {
		return fault.Permissionf("only officers and above manage territory")
	}
	return nil
}

func (m *Manager) logActivity(ctx context.Context, clanID int32, eventType string, metadata map[string]any) {
	if err := m.activity.Log(ctx, clanID, eventType, metadata); err != nil {
		slog.Warn("activity log failed", "clan", clanID, "type", eventType, "err", err)
	}
}
