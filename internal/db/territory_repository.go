package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/clanforge/internal/model"
)

// TerritoryRepository handles the global territory table. The (x, y)
// primary key is what ultimately enforces tile exclusivity across all
// clans; everything here leans on it.
type TerritoryRepository struct {
	q Querier
}

// NewTerritoryRepository creates a territory repository over the pool.
func NewTerritoryRepository(pool *pgxpool.Pool) *TerritoryRepository {
	return &TerritoryRepository{q: pool}
}

// WithTx returns a repository bound to the transaction.
func (r *TerritoryRepository) WithTx(tx pgx.Tx) *TerritoryRepository {
	return &TerritoryRepository{q: tx}
}

// Of returns all territories of a clan with the owner's tag attached.
func (r *TerritoryRepository) Of(ctx context.Context, clanID int32) ([]model.Territory, error) {
	rows, err := r.q.Query(ctx,
		`SELECT t.x, t.y, t.clan_id, c.tag, t.claimed_by, t.claimed_at
		 FROM territories t JOIN clans c ON c.id = t.clan_id
		 WHERE t.clan_id = $1`, clanID)
	if err != nil {
		return nil, fmt.Errorf("querying territories of clan %d: %w", clanID, err)
	}
	defer rows.Close()

	var result []model.Territory
	for rows.Next() {
		var t model.Territory
		if err := rows.Scan(&t.X, &t.Y, &t.ClanID, &t.ClanTag, &t.ClaimedBy, &t.ClaimedAt); err != nil {
			return nil, fmt.Errorf("scanning territory: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// Get returns the territory at a coordinate. Returns nil, nil when the
// tile is unclaimed.
func (r *TerritoryRepository) Get(ctx context.Context, c model.Coord) (*model.Territory, error) {
	var t model.Territory
	err := r.q.QueryRow(ctx,
		`SELECT t.x, t.y, t.clan_id, cl.tag, t.claimed_by, t.claimed_at
		 FROM territories t JOIN clans cl ON cl.id = t.clan_id
		 WHERE t.x = $1 AND t.y = $2`, c.X, c.Y,
	).Scan(&t.X, &t.Y, &t.ClanID, &t.ClanTag, &t.ClaimedBy, &t.ClaimedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying territory (%d,%d): %w", c.X, c.Y, err)
	}
	return &t, nil
}

// Insert claims a tile. ON CONFLICT DO NOTHING turns a lost race (or a
// tile already owned by anyone) into a false return instead of an
// error, so concurrent claims of the same coordinate resolve to exactly
// one owner.
func (r *TerritoryRepository) Insert(ctx context.Context, t model.Territory) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`INSERT INTO territories (x, y, clan_id, claimed_by, claimed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (x, y) DO NOTHING`,
		t.X, t.Y, t.ClanID, t.ClaimedBy, t.ClaimedAt,
	)
	if err != nil {
		return false, fmt.Errorf("inserting territory (%d,%d): %w", t.X, t.Y, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Delete abandons a tile. The clan_id guard makes sure a clan can only
// drop its own tile. Returns whether a row was removed.
func (r *TerritoryRepository) Delete(ctx context.Context, clanID int32, c model.Coord) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`DELETE FROM territories WHERE x = $1 AND y = $2 AND clan_id = $3`,
		c.X, c.Y, clanID,
	)
	if err != nil {
		return false, fmt.Errorf("deleting territory (%d,%d): %w", c.X, c.Y, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Transfer moves a tile from one clan to another in a single
// conditional update: it applies only while the tile still belongs to
// `from`, so two concurrent captures of the same tile cannot both win.
func (r *TerritoryRepository) Transfer(ctx context.Context, from, to int32, c model.Coord, capturedBy int64) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE territories
		 SET clan_id = $1, claimed_by = $2, claimed_at = now()
		 WHERE x = $3 AND y = $4 AND clan_id = $5`,
		to, capturedBy, c.X, c.Y, from,
	)
	if err != nil {
		return false, fmt.Errorf("transferring territory (%d,%d): %w", c.X, c.Y, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Count returns the number of tiles a clan owns.
func (r *TerritoryRepository) Count(ctx context.Context, clanID int32) (int, error) {
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT count(*) FROM territories WHERE clan_id = $1`, clanID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting territories of clan %d: %w", clanID, err)
	}
	return n, nil
}
