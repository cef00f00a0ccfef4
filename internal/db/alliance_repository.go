package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/clanforge/internal/model"
)

// AllianceRepository reads alliance records. The alliance subsystem
// owns the table; this core only checks joint-war eligibility.
type AllianceRepository struct {
	q Querier
}

// NewAllianceRepository creates an alliance repository over the pool.
func NewAllianceRepository(pool *pgxpool.Pool) *AllianceRepository {
	return &AllianceRepository{q: pool}
}

// pair normalizes the unordered clan pair to the (smaller, larger)
// layout the table stores.
func pair(a, b int32) (int32, int32) {
	if a > b {
		return b, a
	}
	return a, b
}

// Between returns the alliance between two clans, or nil, nil when
// they are not allied.
func (r *AllianceRepository) Between(ctx context.Context, a, b int32) (*model.Alliance, error) {
	lo, hi := pair(a, b)
	var al model.Alliance
	var allianceType string
	var contracts []string
	err := r.q.QueryRow(ctx,
		`SELECT clan_a, clan_b, type, contracts FROM alliances
		 WHERE clan_a = $1 AND clan_b = $2`, lo, hi,
	).Scan(&al.ClanA, &al.ClanB, &allianceType, &contracts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying alliance between %d and %d: %w", a, b, err)
	}
	al.Type = model.AllianceType(allianceType)
	al.Contracts = make([]model.ContractType, len(contracts))
	for i, c := range contracts {
		al.Contracts[i] = model.ContractType(c)
	}
	return &al, nil
}

// AreAllies reports whether any alliance record links the two clans.
func (r *AllianceRepository) AreAllies(ctx context.Context, a, b int32) (bool, error) {
	al, err := r.Between(ctx, a, b)
	if err != nil {
		return false, err
	}
	return al != nil, nil
}

// SetAlliance upserts an alliance row (used by tests and seeds).
func (r *AllianceRepository) SetAlliance(ctx context.Context, al model.Alliance) error {
	lo, hi := pair(al.ClanA, al.ClanB)
	contracts := make([]string, len(al.Contracts))
	for i, c := range al.Contracts {
		contracts[i] = string(c)
	}
	_, err := r.q.Exec(ctx,
		`INSERT INTO alliances (clan_a, clan_b, type, contracts) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (clan_a, clan_b) DO UPDATE SET type = EXCLUDED.type, contracts = EXCLUDED.contracts`,
		lo, hi, string(al.Type), contracts,
	)
	if err != nil {
		return fmt.Errorf("setting alliance between %d and %d: %w", al.ClanA, al.ClanB, err)
	}
	return nil
}
