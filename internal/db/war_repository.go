package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/clanforge/internal/model"
)

// ErrLiveWarExists is returned by Create when the unique index on the
// clan pair rejects a second live war.
var ErrLiveWarExists = errors.New("a war between these clans is already running")

// WarRepository handles the wars table.
type WarRepository struct {
	q Querier
}

// NewWarRepository creates a war repository over the pool.
func NewWarRepository(pool *pgxpool.Pool) *WarRepository {
	return &WarRepository{q: pool}
}

// WithTx returns a repository bound to the transaction.
func (r *WarRepository) WithTx(tx pgx.Tx) *WarRepository {
	return &WarRepository{q: tx}
}

const warColumns = `id, attacker_id, defender_id, status, declared_at, ended_at, winner_id,
	declaration_metal, declaration_energy,
	attacker_gained, defender_gained, attacker_battles_won, defender_battles_won,
	attacker_allies, defender_allies`

func scanWar(row pgx.Row) (*model.War, error) {
	var w model.War
	var status string
	err := row.Scan(
		&w.ID, &w.AttackerID, &w.DefenderID, &status, &w.DeclaredAt, &w.EndedAt, &w.WinnerID,
		&w.DeclarationCost.Metal, &w.DeclarationCost.Energy,
		&w.Stats.AttackerTerritoryGained, &w.Stats.DefenderTerritoryGained,
		&w.Stats.AttackerBattlesWon, &w.Stats.DefenderBattlesWon,
		&w.AttackerAllies, &w.DefenderAllies,
	)
	if err != nil {
		return nil, err
	}
	w.Status, err = model.ParseWarStatus(status)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Create inserts a war record. The partial unique index over the
// unordered clan pair guarantees at most one DECLARED/ACTIVE war per
// pair; a violation comes back as ErrLiveWarExists.
func (r *WarRepository) Create(ctx context.Context, w *model.War) error {
	attackerAllies := w.AttackerAllies
	if attackerAllies == nil {
		attackerAllies = []int32{}
	}
	defenderAllies := w.DefenderAllies
	if defenderAllies == nil {
		defenderAllies = []int32{}
	}
	_, err := r.q.Exec(ctx,
		`INSERT INTO wars (id, attacker_id, defender_id, status, declared_at,
		                   declaration_metal, declaration_energy,
		                   attacker_allies, defender_allies)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		w.ID, w.AttackerID, w.DefenderID, w.Status.String(), w.DeclaredAt,
		w.DeclarationCost.Metal, w.DeclarationCost.Energy,
		attackerAllies, defenderAllies,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrLiveWarExists
		}
		return fmt.Errorf("creating war %s: %w", w.ID, err)
	}
	return nil
}

// Get returns a war by ID. Returns nil, nil if it does not exist.
func (r *WarRepository) Get(ctx context.Context, id uuid.UUID) (*model.War, error) {
	w, err := scanWar(r.q.QueryRow(ctx,
		`SELECT `+warColumns+` FROM wars WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying war %s: %w", id, err)
	}
	return w, nil
}

// GetForUpdate returns a war with its row locked for the transaction.
func (r *WarRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.War, error) {
	w, err := scanWar(r.q.QueryRow(ctx,
		`SELECT `+warColumns+` FROM wars WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("locking war %s: %w", id, err)
	}
	return w, nil
}

// LiveBetween returns the DECLARED or ACTIVE war between two clans, if
// any. Returns nil, nil when the pair is at peace.
func (r *WarRepository) LiveBetween(ctx context.Context, a, b int32) (*model.War, error) {
	w, err := scanWar(r.q.QueryRow(ctx,
		`SELECT `+warColumns+` FROM wars
		 WHERE LEAST(attacker_id, defender_id) = LEAST($1::int, $2::int)
		   AND GREATEST(attacker_id, defender_id) = GREATEST($1::int, $2::int)
		   AND status IN ('DECLARED', 'ACTIVE')`, a, b))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying live war between %d and %d: %w", a, b, err)
	}
	return w, nil
}

// LiveOpposing returns the live war in which clan a and clan b stand
// on opposite sides, counting allied participants. Returns nil, nil
// when no such war exists.
func (r *WarRepository) LiveOpposing(ctx context.Context, a, b int32) (*model.War, error) {
	w, err := scanWar(r.q.QueryRow(ctx,
		`SELECT `+warColumns+` FROM wars
		 WHERE status IN ('DECLARED', 'ACTIVE')
		   AND (((attacker_id = $1 OR $1 = ANY(attacker_allies))
		         AND (defender_id = $2 OR $2 = ANY(defender_allies)))
		     OR ((attacker_id = $2 OR $2 = ANY(attacker_allies))
		         AND (defender_id = $1 OR $1 = ANY(defender_allies))))
		 LIMIT 1`, a, b))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying live war opposing %d and %d: %w", a, b, err)
	}
	return w, nil
}

// LastEndedBetween returns when the most recent war between the pair
// ended, or nil when they never fought.
func (r *WarRepository) LastEndedBetween(ctx context.Context, a, b int32) (*time.Time, error) {
	var endedAt *time.Time
	err := r.q.QueryRow(ctx,
		`SELECT max(ended_at) FROM wars
		 WHERE LEAST(attacker_id, defender_id) = LEAST($1::int, $2::int)
		   AND GREATEST(attacker_id, defender_id) = GREATEST($1::int, $2::int)
		   AND status = 'ENDED'`, a, b,
	).Scan(&endedAt)
	if err != nil {
		return nil, fmt.Errorf("querying last war between %d and %d: %w", a, b, err)
	}
	return endedAt, nil
}

// Activate promotes a DECLARED war to ACTIVE once its declaration is
// older than the cutoff. Conditional, so concurrent promotions and
// promotions of already-active wars are harmless. Returns whether this
// call did the promotion.
func (r *WarRepository) Activate(ctx context.Context, id uuid.UUID, cutoff time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE wars SET status = 'ACTIVE'
		 WHERE id = $1 AND status = 'DECLARED' AND declared_at <= $2`,
		id, cutoff,
	)
	if err != nil {
		return false, fmt.Errorf("activating war %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ActivateOverdue promotes every DECLARED war older than the cutoff.
// Used by the scheduler so activation does not depend on a capture
// attempt arriving. Returns how many wars were promoted.
func (r *WarRepository) ActivateOverdue(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE wars SET status = 'ACTIVE'
		 WHERE status = 'DECLARED' AND declared_at <= $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("activating overdue wars: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// RecordCapture updates the war counters for one capture attempt made
// by the given side. Conditional on the war still being ACTIVE: an
// ended war's record never changes, even when the caller raced a
// concurrent endWar on a stale read. Returns whether the counters
// moved.
func (r *WarRepository) RecordCapture(ctx context.Context, id uuid.UUID, byAttackerSide, success bool) (bool, error) {
	var sql string
	switch {
	case byAttackerSide && success:
		sql = `UPDATE wars SET attacker_gained = attacker_gained + 1,
		       attacker_battles_won = attacker_battles_won + 1
		       WHERE id = $1 AND status = 'ACTIVE'`
	case byAttackerSide && !success:
		sql = `UPDATE wars SET defender_battles_won = defender_battles_won + 1
		       WHERE id = $1 AND status = 'ACTIVE'`
	case !byAttackerSide && success:
		sql = `UPDATE wars SET defender_gained = defender_gained + 1,
		       defender_battles_won = defender_battles_won + 1
		       WHERE id = $1 AND status = 'ACTIVE'`
	default:
		sql = `UPDATE wars SET attacker_battles_won = attacker_battles_won + 1
		       WHERE id = $1 AND status = 'ACTIVE'`
	}
	tag, err := r.q.Exec(ctx, sql, id)
	if err != nil {
		return false, fmt.Errorf("recording capture for war %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetEnded marks a war ENDED. Conditional on the war still running, so
// a double endWar affects no rows the second time. Returns whether this
// call ended the war.
func (r *WarRepository) SetEnded(ctx context.Context, id uuid.UUID, endedAt time.Time, winnerID *int32) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE wars SET status = 'ENDED', ended_at = $2, winner_id = $3
		 WHERE id = $1 AND status <> 'ENDED'`,
		id, endedAt, winnerID,
	)
	if err != nil {
		return false, fmt.Errorf("ending war %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// WarsBetween returns every war the pair ever fought, newest first.
func (r *WarRepository) WarsBetween(ctx context.Context, a, b int32) ([]model.War, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+warColumns+` FROM wars
		 WHERE LEAST(attacker_id, defender_id) = LEAST($1::int, $2::int)
		   AND GREATEST(attacker_id, defender_id) = GREATEST($1::int, $2::int)
		 ORDER BY declared_at DESC`, a, b)
	if err != nil {
		return nil, fmt.Errorf("querying wars between %d and %d: %w", a, b, err)
	}
	defer rows.Close()

	var result []model.War
	for rows.Next() {
		w, err := scanWar(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning war: %w", err)
		}
		result = append(result, *w)
	}
	return result, rows.Err()
}

// WarsOf returns a clan's wars, newest first.
func (r *WarRepository) WarsOf(ctx context.Context, clanID int32) ([]model.War, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+warColumns+` FROM wars
		 WHERE attacker_id = $1 OR defender_id = $1
		    OR $1 = ANY(attacker_allies) OR $1 = ANY(defender_allies)
		 ORDER BY declared_at DESC`, clanID)
	if err != nil {
		return nil, fmt.Errorf("querying wars of clan %d: %w", clanID, err)
	}
	defer rows.Close()

	var result []model.War
	for rows.Next() {
		w, err := scanWar(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning war: %w", err)
		}
		result = append(result, *w)
	}
	return result, rows.Err()
}
