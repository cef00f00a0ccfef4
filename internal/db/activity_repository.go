package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ActivityRepository writes the clan activity feed. Logging is
// best-effort by contract: callers log failures and move on, they
// never roll anything back over a missing feed entry.
type ActivityRepository struct {
	q Querier
}

// NewActivityRepository creates an activity repository over the pool.
func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{q: pool}
}

// Log appends an activity event for a clan.
func (r *ActivityRepository) Log(ctx context.Context, clanID int32, eventType string, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encoding activity metadata: %w", err)
	}
	_, err = r.q.Exec(ctx,
		`INSERT INTO clan_activity (clan_id, type, metadata) VALUES ($1, $2, $3)`,
		clanID, eventType, payload,
	)
	if err != nil {
		return fmt.Errorf("logging activity for clan %d: %w", clanID, err)
	}
	return nil
}

// Activity is one clan activity feed row.
type Activity struct {
	ID        int64
	ClanID    int32
	Type      string
	Metadata  map[string]any
	CreatedAt time.Time
}

// Recent returns the newest feed entries for a clan.
func (r *ActivityRepository) Recent(ctx context.Context, clanID int32, limit int) ([]Activity, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, clan_id, type, metadata, created_at FROM clan_activity
		 WHERE clan_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		clanID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying activity of clan %d: %w", clanID, err)
	}
	defer rows.Close()

	var result []Activity
	for rows.Next() {
		var a Activity
		var payload []byte
		if err := rows.Scan(&a.ID, &a.ClanID, &a.Type, &payload, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		if err := json.Unmarshal(payload, &a.Metadata); err != nil {
			return nil, fmt.Errorf("decoding activity metadata: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
