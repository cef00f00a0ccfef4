package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/clanforge/internal/model"
)

// PerkRepository reads clan perks. The perk subsystem owns the table;
// this core only consumes territory_cost entries.
type PerkRepository struct {
	q Querier
}

// NewPerkRepository creates a perk repository over the pool.
func NewPerkRepository(pool *pgxpool.Pool) *PerkRepository {
	return &PerkRepository{q: pool}
}

// ActivePerks returns all active perks of a clan.
func (r *PerkRepository) ActivePerks(ctx context.Context, clanID int32) ([]model.Perk, error) {
	rows, err := r.q.Query(ctx,
		`SELECT perk_type, value FROM clan_perks WHERE clan_id = $1`, clanID)
	if err != nil {
		return nil, fmt.Errorf("querying perks of clan %d: %w", clanID, err)
	}
	defer rows.Close()

	var result []model.Perk
	for rows.Next() {
		var p model.Perk
		var perkType string
		if err := rows.Scan(&perkType, &p.Value); err != nil {
			return nil, fmt.Errorf("scanning perk: %w", err)
		}
		p.Type = model.PerkType(perkType)
		result = append(result, p)
	}
	return result, rows.Err()
}

// SetPerk upserts a perk row (used by tests and seeds).
func (r *PerkRepository) SetPerk(ctx context.Context, clanID int32, p model.Perk) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO clan_perks (clan_id, perk_type, value) VALUES ($1, $2, $3)
		 ON CONFLICT (clan_id, perk_type) DO UPDATE SET value = EXCLUDED.value`,
		clanID, string(p.Type), p.Value,
	)
	if err != nil {
		return fmt.Errorf("setting perk for clan %d: %w", clanID, err)
	}
	return nil
}
