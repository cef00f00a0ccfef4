package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/clanforge/internal/model"
)

// ClanRepository handles clan persistence.
type ClanRepository struct {
	q Querier
}

// NewClanRepository creates a clan repository over the pool.
func NewClanRepository(pool *pgxpool.Pool) *ClanRepository {
	return &ClanRepository{q: pool}
}

// WithTx returns a repository bound to the transaction.
func (r *ClanRepository) WithTx(tx pgx.Tx) *ClanRepository {
	return &ClanRepository{q: tx}
}

const clanColumns = `id, tag, name, leader_id, level,
	metal, energy, research_points, experience,
	total_territories, wars_won, wars_lost, territories_captured, total_wars,
	last_income_collection`

func scanClan(row pgx.Row) (*model.Clan, error) {
	var c model.Clan
	err := row.Scan(
		&c.ID, &c.Tag, &c.Name, &c.LeaderID, &c.Level,
		&c.Treasury.Metal, &c.Treasury.Energy, &c.Treasury.ResearchPoints, &c.Experience,
		&c.Stats.TotalTerritories, &c.Stats.WarsWon, &c.Stats.WarsLost,
		&c.Stats.TerritoriesCaptured, &c.Stats.TotalWars,
		&c.LastIncomeCollection,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Get returns a clan by ID. Returns nil, nil if the clan does not exist.
func (r *ClanRepository) Get(ctx context.Context, id int32) (*model.Clan, error) {
	c, err := scanClan(r.q.QueryRow(ctx,
		`SELECT `+clanColumns+` FROM clans WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying clan %d: %w", id, err)
	}
	return c, nil
}

// GetForUpdate returns a clan by ID with its row locked for the rest
// of the transaction. Spoils distribution locks both clans this way so
// the spoils are computed against the balance that gets debited.
func (r *ClanRepository) GetForUpdate(ctx context.Context, id int32) (*model.Clan, error) {
	c, err := scanClan(r.q.QueryRow(ctx,
		`SELECT `+clanColumns+` FROM clans WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("locking clan %d: %w", id, err)
	}
	return c, nil
}

// Create inserts a new clan record.
func (r *ClanRepository) Create(ctx context.Context, c *model.Clan) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO clans (id, tag, name, leader_id, level, metal, energy, research_points, experience)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.Tag, c.Name, c.LeaderID, c.Level,
		c.Treasury.Metal, c.Treasury.Energy, c.Treasury.ResearchPoints, c.Experience,
	)
	if err != nil {
		return fmt.Errorf("creating clan %d: %w", c.ID, err)
	}
	return nil
}

// IDs returns all clan IDs, ordered. Used by the income scheduler.
func (r *ClanRepository) IDs(ctx context.Context) ([]int32, error) {
	rows, err := r.q.Query(ctx, `SELECT id FROM clans ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying clan ids: %w", err)
	}
	defer rows.Close()

	var ids []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning clan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Member returns the membership record of a character inside a clan.
// Returns nil, nil if the character is not a member of that clan.
func (r *ClanRepository) Member(ctx context.Context, clanID int32, characterID int64) (*model.Member, error) {
	var m model.Member
	var role string
	err := r.q.QueryRow(ctx,
		`SELECT character_id, clan_id, role FROM clan_members
		 WHERE clan_id = $1 AND character_id = $2`, clanID, characterID,
	).Scan(&m.CharacterID, &m.ClanID, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying member %d of clan %d: %w", characterID, clanID, err)
	}
	m.Role, err = model.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("member %d of clan %d: %w", characterID, clanID, err)
	}
	return &m, nil
}

// AddMember inserts a membership record.
func (r *ClanRepository) AddMember(ctx context.Context, m model.Member) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO clan_members (character_id, clan_id, role) VALUES ($1, $2, $3)`,
		m.CharacterID, m.ClanID, m.Role.String(),
	)
	if err != nil {
		return fmt.Errorf("adding member %d to clan %d: %w", m.CharacterID, m.ClanID, err)
	}
	return nil
}

// AdjustTreasury applies a delta to the clan treasury in one
// conditional statement. The WHERE clause re-checks that no balance
// goes negative, so a stale pre-read can never overdraw: the update
// simply does not apply. Returns whether it applied.
func (r *ClanRepository) AdjustTreasury(ctx context.Context, id int32, delta model.Resources) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE clans
		 SET metal = metal + $1, energy = energy + $2, research_points = research_points + $3
		 WHERE id = $4
		   AND metal + $1 >= 0 AND energy + $2 >= 0 AND research_points + $3 >= 0`,
		delta.Metal, delta.Energy, delta.ResearchPoints, id,
	)
	if err != nil {
		return false, fmt.Errorf("adjusting treasury of clan %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// AdjustExperience applies an experience delta, clamped at zero.
func (r *ClanRepository) AdjustExperience(ctx context.Context, id int32, delta int64) error {
	_, err := r.q.Exec(ctx,
		`UPDATE clans SET experience = GREATEST(0, experience + $1) WHERE id = $2`,
		delta, id,
	)
	if err != nil {
		return fmt.Errorf("adjusting experience of clan %d: %w", id, err)
	}
	return nil
}

// IncrementTerritories bumps the territory counter, guarded by the
// level cap. Returns false when the clan is already at the cap, which
// closes the race of two claims both passing a stale count check.
func (r *ClanRepository) IncrementTerritories(ctx context.Context, id int32, cap int) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE clans SET total_territories = total_territories + 1
		 WHERE id = $1 AND total_territories < $2`,
		id, cap,
	)
	if err != nil {
		return false, fmt.Errorf("incrementing territories of clan %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// DecrementTerritories lowers the territory counter, never below zero.
func (r *ClanRepository) DecrementTerritories(ctx context.Context, id int32) error {
	_, err := r.q.Exec(ctx,
		`UPDATE clans SET total_territories = GREATEST(0, total_territories - 1) WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("decrementing territories of clan %d: %w", id, err)
	}
	return nil
}

// RecordCapturedTile moves the territory counters after a successful
// capture: winner gains a tile and a capture, loser drops a tile.
func (r *ClanRepository) RecordCapturedTile(ctx context.Context, winnerID, loserID int32) error {
	if _, err := r.q.Exec(ctx,
		`UPDATE clans
		 SET total_territories = total_territories + 1,
		     territories_captured = territories_captured + 1
		 WHERE id = $1`, winnerID,
	); err != nil {
		return fmt.Errorf("crediting captured tile to clan %d: %w", winnerID, err)
	}
	if _, err := r.q.Exec(ctx,
		`UPDATE clans SET total_territories = GREATEST(0, total_territories - 1) WHERE id = $1`,
		loserID,
	); err != nil {
		return fmt.Errorf("debiting captured tile from clan %d: %w", loserID, err)
	}
	return nil
}

// RecordWarStarted bumps total_wars for a clan.
func (r *ClanRepository) RecordWarStarted(ctx context.Context, id int32) error {
	_, err := r.q.Exec(ctx,
		`UPDATE clans SET total_wars = total_wars + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("recording war start for clan %d: %w", id, err)
	}
	return nil
}

// RecordWarResult bumps wars_won or wars_lost.
func (r *ClanRepository) RecordWarResult(ctx context.Context, id int32, won bool) error {
	column := "wars_lost"
	if won {
		column = "wars_won"
	}
	_, err := r.q.Exec(ctx,
		`UPDATE clans SET `+column+` = `+column+` + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("recording war result for clan %d: %w", id, err)
	}
	return nil
}

// CollectIncome credits the daily territory income and stamps the
// collection time in one statement. The WHERE clause compares UTC
// calendar days, so a second call on the same day affects no rows —
// the scheduler can fire as often as it likes. Returns whether income
// was credited.
func (r *ClanRepository) CollectIncome(ctx context.Context, id int32, income model.Resources, now time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE clans
		 SET metal = metal + $1, energy = energy + $2, last_income_collection = $3
		 WHERE id = $4
		   AND (last_income_collection IS NULL
		        OR (last_income_collection AT TIME ZONE 'UTC')::date < ($3 AT TIME ZONE 'UTC')::date)`,
		income.Metal, income.Energy, now, id,
	)
	if err != nil {
		return false, fmt.Errorf("collecting income for clan %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Transaction is one clan_transactions audit row.
type Transaction struct {
	ID        uuid.UUID
	ClanID    int32
	Kind      string
	Amount    model.Resources
	Detail    string
	CreatedAt time.Time
}

// AppendTransaction adds an audit row to the append-only history.
func (r *ClanRepository) AppendTransaction(ctx context.Context, t Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := r.q.Exec(ctx,
		`INSERT INTO clan_transactions (id, clan_id, kind, metal, energy, research_points, detail)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.ClanID, t.Kind, t.Amount.Metal, t.Amount.Energy, t.Amount.ResearchPoints, t.Detail,
	)
	if err != nil {
		return fmt.Errorf("appending transaction for clan %d: %w", t.ClanID, err)
	}
	return nil
}

// Transactions returns the newest audit rows for a clan.
func (r *ClanRepository) Transactions(ctx context.Context, clanID int32, limit int) ([]Transaction, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, clan_id, kind, metal, energy, research_points, detail, created_at
		 FROM clan_transactions WHERE clan_id = $1
		 ORDER BY created_at DESC LIMIT $2`, clanID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying transactions of clan %d: %w", clanID, err)
	}
	defer rows.Close()

	var result []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.ClanID, &t.Kind,
			&t.Amount.Metal, &t.Amount.Energy, &t.Amount.ResearchPoints,
			&t.Detail, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}
