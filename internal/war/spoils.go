package war

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/udisondev/clanforge/internal/db"
	"github.com/udisondev/clanforge/internal/fault"
	"github.com/udisondev/clanforge/internal/model"
	"github.com/udisondev/clanforge/internal/rules"
)

// SpoilsResult describes one post-war distribution.
type SpoilsResult struct {
	// Plunder is what the loser paid: the base percentages of its
	// treasury at distribution time.
	Plunder model.Resources
	// Awarded is what the winner received: plunder scaled by the
	// conquest multiplier plus objective research points.
	Awarded model.Resources
	// Objectives the winning side achieved.
	Objectives []rules.Objective
	// Experience adjustments applied to each side.
	WinnerExperience int64
	LoserExperience  int64
}

// distributeSpoils computes and applies the post-war transfer inside
// the caller's transaction. Both clan rows are locked in ID order
// first, so the spoils are taken from the exact balance that gets
// debited and concurrent distributions cannot deadlock. Any failure
// rolls the whole war-end transaction back.
func (m *Manager) distributeSpoils(ctx context.Context, tx pgx.Tx, w *model.War, winnerID, loserID int32) (*SpoilsResult, error) {
	clans := m.clans.WithTx(tx)

	first, second := winnerID, loserID
	if first > second {
		first, second = second, first
	}
	var loser *model.Clan
	for _, id := range []int32{first, second} {
		c, err := clans.GetForUpdate(ctx, id)
		if err != nil {
			return nil, fault.Internal("locking clan", err)
		}
		if c == nil {
			return nil, fault.NotFoundf("clan %d", id)
		}
		if id == loserID {
			loser = c
		}
	}

	plunder := rules.WarSpoils(loser.Treasury)
	bonuses, objectives := rules.WarObjectives(w, winnerID)

	awarded := model.Resources{
		Metal:          plunder.Metal * bonuses.SpoilsMultiplierPct / 100,
		Energy:         plunder.Energy * bonuses.SpoilsMultiplierPct / 100,
		ResearchPoints: plunder.ResearchPoints + bonuses.ResearchPoints,
	}

	// Debit the loser exactly what was plundered. The rows are locked,
	// so the conditional update can only fail if something is wrong.
	debited, err := clans.AdjustTreasury(ctx, loserID, plunder.Neg())
	if err != nil {
		return nil, fault.Internal("debiting loser", err)
	}
	if !debited {
		return nil, fault.Internal("debiting loser", fmt.Errorf("treasury of clan %d changed under lock", loserID))
	}

	credited, err := clans.AdjustTreasury(ctx, winnerID, awarded)
	if err != nil {
		return nil, fault.Internal("crediting winner", err)
	}
	if !credited {
		return nil, fault.Internal("crediting winner", fmt.Errorf("credit to clan %d did not apply", winnerID))
	}

	winnerXP := rules.VictoryExperience + bonuses.Experience
	if err := clans.AdjustExperience(ctx, winnerID, winnerXP); err != nil {
		return nil, fault.Internal("awarding experience", err)
	}
	if err := clans.AdjustExperience(ctx, loserID, rules.DefeatExperience); err != nil {
		return nil, fault.Internal("deducting experience", err)
	}

	detail := w.ID.String()
	if err := clans.AppendTransaction(ctx, db.Transaction{
		ClanID: winnerID, Kind: "war_spoils", Amount: awarded, Detail: detail,
	}); err != nil {
		return nil, fault.Internal("recording winner transaction", err)
	}
	if err := clans.AppendTransaction(ctx, db.Transaction{
		ClanID: loserID, Kind: "war_plunder", Amount: plunder.Neg(), Detail: detail,
	}); err != nil {
		return nil, fault.Internal("recording loser transaction", err)
	}

	slog.Info("war spoils distributed",
		"war", w.ID, "winner", winnerID, "loser", loserID,
		"metal", awarded.Metal, "energy", awarded.Energy, "rp", awarded.ResearchPoints,
		"objectives", len(objectives))

	return &SpoilsResult{
		Plunder:          plunder,
		Awarded:          awarded,
		Objectives:       objectives,
		WinnerExperience: winnerXP,
		LoserExperience:  rules.DefeatExperience,
	}, nil
}
