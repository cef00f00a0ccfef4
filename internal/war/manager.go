// Package war owns the war lifecycle: declaration, territory capture,
// ending a war and distributing its spoils, plus the allied joint-war
// variant.
package war

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
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

// AllianceSource supplies alliance records. Owned by the alliance
// subsystem.
type AllianceSource interface {
	Between(ctx context.Context, a, b int32) (*model.Alliance, error)
}

// ActivityLog receives clan activity events. Best-effort.
type ActivityLog interface {
	Log(ctx context.Context, clanID int32, eventType string, metadata map[string]any) error
}

// Config holds war timing settings.
type Config struct {
	// ActivationGrace is how long a war stays DECLARED before it may
	// turn ACTIVE. Captures are rejected during the grace period.
	ActivationGrace time.Duration
}

// DefaultConfig returns the default war settings.
func DefaultConfig() Config {
	return Config{ActivationGrace: time.Hour}
}

// Manager is the war state machine.
type Manager struct {
	db        *db.DB
	clans     *db.ClanRepository
	wars      *db.WarRepository
	tiles     *db.TerritoryRepository
	perks     PerkSource
	alliances AllianceSource
	activity  ActivityLog
	cfg       Config

	// chance draws the capture roll; replaced in tests.
	chance func() float64
}

// NewManager wires the war state machine over its storage and
// collaborators.
func NewManager(database *db.DB, clans *db.ClanRepository, wars *db.WarRepository, tiles *db.TerritoryRepository,
	perks PerkSource, alliances AllianceSource, activity ActivityLog, cfg Config) *Manager {
	return &Manager{
		db:        database,
		clans:     clans,
		wars:      wars,
		tiles:     tiles,
		perks:     perks,
		alliances: alliances,
		activity:  activity,
		cfg:       cfg,
		chance:    rand.Float64,
	}
}

// SetChanceFunc overrides the capture roll source. Tests use it to
// make outcomes deterministic.
func (m *Manager) SetChanceFunc(fn func() float64) {
	m.chance = fn
}

// DeclareResult is what a successful declaration returns.
type DeclareResult struct {
	War  model.War
	Cost model.Resources
}

// Declare declares war on another clan. The declaration cost is
// debited conditionally and the live-pair unique index rejects a
// second concurrent declaration, so validation racing a rival request
// cannot double-book a pair or overdraw the treasury.
func (m *Manager) Declare(ctx context.Context, clanID, targetClanID int32, playerID int64) (*DeclareResult, error) {
	if clanID == targetClanID {
		return nil, fault.Validationf("a clan cannot declare war on itself")
	}

	clan, err := m.clans.Get(ctx, clanID)
	if err != nil {
		return nil, fault.Internal("loading clan", err)
	}
	if clan == nil {
		return nil, fault.NotFoundf("clan %d", clanID)
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

	if err := m.checkPairAtPeace(ctx, clanID, targetClanID); err != nil {
		return nil, err
	}

	cost, err := m.declarationCost(ctx, clanID)
	if err != nil {
		return nil, err
	}
	if !clan.Treasury.Covers(cost) {
		return nil, fault.Validationf("insufficient funds: declaring war costs %d metal and %d energy", cost.Metal, cost.Energy)
	}

	w := model.War{
		ID:              uuid.New(),
		AttackerID:      clanID,
		DefenderID:      targetClanID,
		Status:          model.WarDeclared,
		DeclaredAt:      time.Now().UTC(),
		DeclarationCost: cost,
	}

	err = m.db.InTx(ctx, func(tx pgx.Tx) error {
		clans := m.clans.WithTx(tx)

		paid, err := clans.AdjustTreasury(ctx, clanID, cost.Neg())
		if err != nil {
			return fault.Internal("debiting declaration cost", err)
		}
		if !paid {
			return fault.Validationf("insufficient funds: declaring war costs %d metal and %d energy", cost.Metal, cost.Energy)
		}

		if err := m.wars.WithTx(tx).Create(ctx, &w); err != nil {
			if errors.Is(err, db.ErrLiveWarExists) {
				return fault.Validationf("a war between these clans is already running")
			}
			return fault.Internal("creating war", err)
		}

		for _, id := range []int32{clanID, targetClanID} {
			if err := clans.RecordWarStarted(ctx, id); err != nil {
				return fault.Internal("updating war counters", err)
			}
		}

		return clans.AppendTransaction(ctx, db.Transaction{
			ClanID: clanID,
			Kind:   "war_declaration",
			Amount: cost.Neg(),
			Detail: w.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	meta := map[string]any{"war_id": w.ID.String(), "attacker": clanID, "defender": targetClanID}
	m.logActivity(ctx, clanID, "war_declared", meta)
	m.logActivity(ctx, targetClanID, "war_received", meta)
	slog.Info("war declared", "war", w.ID, "attacker", clanID, "defender", targetClanID, "cost", cost.Metal)

	return &DeclareResult{War: w, Cost: cost}, nil
}

// CaptureResult is the outcome of one capture attempt.
type CaptureResult struct {
	Success      bool
	DefenseBonus int32
	Chance       float64
	Territory    *model.Territory
}

// Capture attempts to take the tile at (x, y) from the target clan.
// Requires an ACTIVE war opposing the two clans; a DECLARED war whose
// grace period has elapsed is promoted first. On success the tile, the
// clan counters and the war stats move in one transaction.
func (m *Manager) Capture(ctx context.Context, clanID, targetClanID int32, x, y int32, playerID int64) (*CaptureResult, error) {
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

	w, err := m.wars.LiveOpposing(ctx, clanID, targetClanID)
	if err != nil {
		return nil, fault.Internal("looking up war", err)
	}
	if w == nil {
		return nil, fault.Validationf("your clan is not at war with the target clan")
	}

	if w.Status == model.WarDeclared {
		promoted, err := m.wars.Activate(ctx, w.ID, time.Now().UTC().Add(-m.cfg.ActivationGrace))
		if err != nil {
			return nil, fault.Internal("activating war", err)
		}
		if !promoted {
			return nil, fault.Validationf("the war is not active yet")
		}
		w.Status = model.WarActive
	}

	coord := model.Coord{X: x, Y: y}
	tile, err := m.tiles.Get(ctx, coord)
	if err != nil {
		return nil, fault.Internal("loading tile", err)
	}
	if tile == nil || tile.ClanID != targetClanID {
		return nil, fault.Validationf("the target clan does not own the tile (%d,%d)", x, y)
	}

	defenderTiles, err := m.tiles.Of(ctx, targetClanID)
	if err != nil {
		return nil, fault.Internal("loading defender territories", err)
	}
	bonus := rules.DefenseBonus(coord, model.NewTileSet(defenderTiles))
	chance := rules.CaptureChance(bonus)
	byAttackerSide := w.OnAttackerSide(clanID)

	if m.chance() >= chance {
		// Defense held. Nothing moves, only the battle counters — and
		// only while the war is still running.
		recorded, err := m.wars.RecordCapture(ctx, w.ID, byAttackerSide, false)
		if err != nil {
			return nil, fault.Internal("recording failed capture", err)
		}
		if !recorded {
			return nil, fault.Validationf("the war is no longer active")
		}
		meta := map[string]any{"war_id": w.ID.String(), "x": x, "y": y, "defense_bonus": bonus}
		m.logActivity(ctx, clanID, "war_capture_failed", meta)
		m.logActivity(ctx, targetClanID, "war_defense_held", meta)
		slog.Info("capture failed", "war", w.ID, "clan", clanID, "x", x, "y", y, "bonus", bonus)
		return &CaptureResult{Success: false, DefenseBonus: bonus, Chance: chance}, nil
	}

	err = m.db.InTx(ctx, func(tx pgx.Tx) error {
		moved, err := m.tiles.WithTx(tx).Transfer(ctx, targetClanID, clanID, coord, playerID)
		if err != nil {
			return fault.Internal("transferring tile", err)
		}
		if !moved {
			return fault.Validationf("the target clan does not own the tile (%d,%d)", x, y)
		}
		if err := m.clans.WithTx(tx).RecordCapturedTile(ctx, clanID, targetClanID); err != nil {
			return fault.Internal("updating clan counters", err)
		}
		// Re-checks the status under the row lock: if the war ended
		// between the LiveOpposing read and here, the whole transfer
		// rolls back.
		recorded, err := m.wars.WithTx(tx).RecordCapture(ctx, w.ID, byAttackerSide, true)
		if err != nil {
			return fault.Internal("recording capture", err)
		}
		if !recorded {
			return fault.Validationf("the war is no longer active")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	captured := model.Territory{
		Coord:     coord,
		ClanID:    clanID,
		ClanTag:   clan.Tag,
		ClaimedBy: playerID,
		ClaimedAt: time.Now().UTC(),
	}
	meta := map[string]any{"war_id": w.ID.String(), "x": x, "y": y, "defense_bonus": bonus}
	m.logActivity(ctx, clanID, "war_territory_captured", meta)
	m.logActivity(ctx, targetClanID, "war_territory_lost", meta)
	slog.Info("territory captured", "war", w.ID, "clan", clanID, "from", targetClanID, "x", x, "y", y)

	return &CaptureResult{Success: true, DefenseBonus: bonus, Chance: chance, Territory: &captured}, nil
}

// EndResult is what ending a war returns.
type EndResult struct {
	War    model.War
	Spoils *SpoilsResult // nil for a truce
}

// End finishes a war with the given outcome (attacker perspective).
// The status change, the counters and the spoils transfer commit in a
// single transaction: the loser is never debited without the winner
// being credited.
func (m *Manager) End(ctx context.Context, warID uuid.UUID, outcome model.Outcome, endedBy int64) (*EndResult, error) {
	now := time.Now().UTC()
	var result EndResult

	err := m.db.InTx(ctx, func(tx pgx.Tx) error {
		wars := m.wars.WithTx(tx)

		w, err := wars.GetForUpdate(ctx, warID)
		if err != nil {
			return fault.Internal("loading war", err)
		}
		if w == nil {
			return fault.NotFoundf("war %s", warID)
		}
		if w.Status == model.WarEnded {
			return fault.Validationf("the war has already ended")
		}
		if now.Sub(w.DeclaredAt) < rules.MinWarDuration {
			return fault.Validationf("a war must run for at least %d hours before it can end",
				int(rules.MinWarDuration.Hours()))
		}

		var winnerID, loserID *int32
		switch outcome {
		case model.OutcomeWin:
			winnerID, loserID = &w.AttackerID, &w.DefenderID
		case model.OutcomeLoss:
			winnerID, loserID = &w.DefenderID, &w.AttackerID
		case model.OutcomeTruce:
			// No winner, no transfer.
		default:
			return fault.Validationf("unknown war outcome")
		}

		ended, err := wars.SetEnded(ctx, warID, now, winnerID)
		if err != nil {
			return fault.Internal("ending war", err)
		}
		if !ended {
			return fault.Validationf("the war has already ended")
		}
		w.Status = model.WarEnded
		w.EndedAt = &now
		w.WinnerID = winnerID

		if winnerID != nil {
			clans := m.clans.WithTx(tx)
			if err := clans.RecordWarResult(ctx, *winnerID, true); err != nil {
				return fault.Internal("recording war result", err)
			}
			if err := clans.RecordWarResult(ctx, *loserID, false); err != nil {
				return fault.Internal("recording war result", err)
			}

			spoils, err := m.distributeSpoils(ctx, tx, w, *winnerID, *loserID)
			if err != nil {
				return err
			}
			result.Spoils = spoils
		}

		result.War = *w
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logWarEnd(ctx, &result.War, endedBy)
	slog.Info("war ended", "war", warID, "outcome", outcome, "ended_by", endedBy)
	return &result, nil
}

// War returns a war by ID.
func (m *Manager) War(ctx context.Context, warID uuid.UUID) (*model.War, error) {
	w, err := m.wars.Get(ctx, warID)
	if err != nil {
		return nil, fault.Internal("loading war", err)
	}
	if w == nil {
		return nil, fault.NotFoundf("war %s", warID)
	}
	return w, nil
}

// WarsOf returns a clan's war history, newest first.
func (m *Manager) WarsOf(ctx context.Context, clanID int32) ([]model.War, error) {
	wars, err := m.wars.WarsOf(ctx, clanID)
	if err != nil {
		return nil, fault.Internal("loading wars", err)
	}
	return wars, nil
}

// WarsBetween returns the full war history of a clan pair, newest
// first.
func (m *Manager) WarsBetween(ctx context.Context, a, b int32) ([]model.War, error) {
	wars, err := m.wars.WarsBetween(ctx, a, b)
	if err != nil {
		return nil, fault.Internal("loading pair war history", err)
	}
	return wars, nil
}

// checkPairAtPeace rejects a declaration when the pair already fights
// or is still inside the post-war cooldown.
func (m *Manager) checkPairAtPeace(ctx context.Context, a, b int32) error {
	live, err := m.wars.LiveBetween(ctx, a, b)
	if err != nil {
		return fault.Internal("looking up live war", err)
	}
	if live != nil {
		return fault.Validationf("a war between these clans is already running")
	}

	lastEnded, err := m.wars.LastEndedBetween(ctx, a, b)
	if err != nil {
		return fault.Internal("looking up war history", err)
	}
	if lastEnded != nil {
		cooldownEnds := lastEnded.Add(rules.WarCooldown)
		if remaining := time.Until(cooldownEnds); remaining > 0 {
			return fault.Validationf("war cooldown active for another %s", remaining.Round(time.Minute))
		}
	}
	return nil
}

// declarationCost is the war cost after the clan's territory-cost
// perks.
func (m *Manager) declarationCost(ctx context.Context, clanID int32) (model.Resources, error) {
	perks, err := m.perks.ActivePerks(ctx, clanID)
	if err != nil {
		return model.Resources{}, fault.Internal("loading perks", err)
	}
	return rules.ApplyDiscount(rules.WarCost(), rules.TerritoryCostDiscount(perks)), nil
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
		return fault.Permissionf("only officers and above wage war")
	}
	return nil
}

// logWarEnd reports the outcome to every participant, recoded from
// each side's own perspective.
func (m *Manager) logWarEnd(ctx context.Context, w *model.War, endedBy int64) {
	for _, id := range w.Participants() {
		perspective := "TRUCE"
		if w.WinnerID != nil {
			winnerSide := w.OnAttackerSide(*w.WinnerID)
			if w.OnAttackerSide(id) == winnerSide {
				perspective = "WIN"
			} else {
				perspective = "LOSS"
			}
		}
		m.logActivity(ctx, id, "war_ended", map[string]any{
			"war_id":   w.ID.String(),
			"result":   perspective,
			"ended_by": endedBy,
		})
	}
}

func (m *Manager) logActivity(ctx context.Context, clanID int32, eventType string, metadata map[string]any) {
	if err := m.activity.Log(ctx, clanID, eventType, metadata); err != nil {
		slog.Warn("activity log failed", "clan", clanID, "type", eventType, "err", err)
	}
}
