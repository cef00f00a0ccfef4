package war

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/udisondev/clanforge/internal/db"
	"github.com/udisondev/clanforge/internal/fault"
	"github.com/udisondev/clanforge/internal/model"
	"github.com/udisondev/clanforge/internal/rules"
)

// JointDeclareResult is what a successful joint declaration returns.
type JointDeclareResult struct {
	War model.War
	// Costs per attacking clan, keyed by clan ID.
	Costs map[int32]model.Resources
}

// DeclareJoint declares a war together with an allied clan. The two
// attackers must hold a military alliance or federation carrying a
// defense pact or war support contract; the declaration cost is split
// evenly and each half is fund-checked against its own clan. Joint
// wars start DECLARED and go through the same activation grace as
// regular wars.
func (m *Manager) DeclareJoint(ctx context.Context, clanID, allyClanID, targetClanID int32, playerID int64) (*JointDeclareResult, error) {
	if clanID == allyClanID {
		return nil, fault.Validationf("a clan cannot ally with itself")
	}
	if clanID == targetClanID || allyClanID == targetClanID {
		return nil, fault.Validationf("a clan cannot declare war on itself")
	}

	clan, err := m.clans.Get(ctx, clanID)
	if err != nil {
		return nil, fault.Internal("loading clan", err)
	}
	if clan == nil {
		return nil, fault.NotFoundf("clan %d", clanID)
	}
	ally, err := m.clans.Get(ctx, allyClanID)
	if err != nil {
		return nil, fault.Internal("loading ally clan", err)
	}
	if ally == nil {
		return nil, fault.NotFoundf("clan %d", allyClanID)
	}
	target, err := m.clans.Get(ctx, targetClanID)
	if err != nil {
		return nil, fault.Internal("loading target clan", err)
	}
	if target == nil {
		return nil, fault.NotFoundf("clan %d", targetClanID)
	}

	if err := m.requireOfficer(ctx, clanID, playerID); err != nil {
		return nil, err
	}
	if clan.Level < rules.MinWarLevel {
		return nil, fault.Validationf("clan level %d is required to declare war", rules.MinWarLevel)
	}
	if ally.Level < rules.MinWarLevel {
		return nil, fault.Validationf("the allied clan must also be level %d to join a war", rules.MinWarLevel)
	}

	alliance, err := m.alliances.Between(ctx, clanID, allyClanID)
	if err != nil {
		return nil, fault.Internal("loading alliance", err)
	}
	if !alliance.PermitsJointWar() {
		return nil, fault.Permissionf("a joint war requires a military alliance or federation with a defense pact or war support contract")
	}

	// Both attacking clans must be at peace with the target.
	if err := m.checkPairAtPeace(ctx, clanID, targetClanID); err != nil {
		return nil, err
	}
	if err := m.checkPairAtPeace(ctx, allyClanID, targetClanID); err != nil {
		return nil, err
	}

	// Each attacker pays half, after its own perk discount.
	base := rules.WarCost()
	half := model.Resources{Metal: base.Metal / 2, Energy: base.Energy / 2}
	costs := make(map[int32]model.Resources, 2)
	for _, id := range []int32{clanID, allyClanID} {
		perks, err := m.perks.ActivePerks(ctx, id)
		if err != nil {
			return nil, fault.Internal("loading perks", err)
		}
		costs[id] = rules.ApplyDiscount(half, rules.TerritoryCostDiscount(perks))
	}
	if !clan.Treasury.Covers(costs[clanID]) {
		return nil, fault.Validationf("insufficient funds: your share of the declaration costs %d metal and %d energy",
			costs[clanID].Metal, costs[clanID].Energy)
	}
	if !ally.Treasury.Covers(costs[allyClanID]) {
		return nil, fault.Validationf("insufficient funds: the allied clan's share costs %d metal and %d energy",
			costs[allyClanID].Metal, costs[allyClanID].Energy)
	}

	w := model.War{
		ID:              uuid.New(),
		AttackerID:      clanID,
		DefenderID:      targetClanID,
		Status:          model.WarDeclared,
		DeclaredAt:      time.Now().UTC(),
		DeclarationCost: costs[clanID].Add(costs[allyClanID]),
		AttackerAllies:  []int32{allyClanID},
	}

	err = m.db.InTx(ctx, func(tx pgx.Tx) error {
		clans := m.clans.WithTx(tx)

		for _, id := range []int32{clanID, allyClanID} {
			paid, err := clans.AdjustTreasury(ctx, id, costs[id].Neg())
			if err != nil {
				return fault.Internal("debiting declaration cost", err)
			}
			if !paid {
				return fault.Validationf("insufficient funds: clan %d cannot pay its share of the declaration", id)
			}
		}

		if err := m.wars.WithTx(tx).Create(ctx, &w); err != nil {
			if errors.Is(err, db.ErrLiveWarExists) {
				return fault.Validationf("a war between these clans is already running")
			}
			return fault.Internal("creating war", err)
		}

		for _, id := range []int32{clanID, allyClanID, targetClanID} {
			if err := clans.RecordWarStarted(ctx, id); err != nil {
				return fault.Internal("updating war counters", err)
			}
		}

		for _, id := range []int32{clanID, allyClanID} {
			if err := clans.AppendTransaction(ctx, db.Transaction{
				ClanID: id,
				Kind:   "war_declaration",
				Amount: costs[id].Neg(),
				Detail: w.ID.String(),
			}); err != nil {
				return fault.Internal("recording transaction", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	meta := map[string]any{
		"war_id": w.ID.String(), "attacker": clanID, "ally": allyClanID, "defender": targetClanID,
	}
	m.logActivity(ctx, clanID, "war_declared", meta)
	m.logActivity(ctx, allyClanID, "war_joined", meta)
	m.logActivity(ctx, targetClanID, "war_received", meta)
	slog.Info("joint war declared", "war", w.ID, "attacker", clanID, "ally", allyClanID, "defender", targetClanID)

	return &JointDeclareResult{War: w, Costs: costs}, nil
}

// Participants returns every clan involved in a war, principals first.
func (m *Manager) Participants(ctx context.Context, warID uuid.UUID) ([]int32, error) {
	w, err := m.War(ctx, warID)
	if err != nil {
		return nil, err
	}
	return w.Participants(), nil
}

// CanParticipate reports whether the clan may act in the war: the war
// must still be live and the clan must stand on one of its sides.
func (m *Manager) CanParticipate(ctx context.Context, warID uuid.UUID, clanID int32) (bool, error) {
	w, err := m.War(ctx, warID)
	if err != nil {
		return false, err
	}
	return w.Live() && w.Involves(clanID), nil
}
