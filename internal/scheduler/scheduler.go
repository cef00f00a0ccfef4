// Package scheduler runs the periodic warfare jobs: daily territory
// income and promotion of wars whose activation grace has elapsed.
// Every job is idempotent, so overlapping or restarted runs are safe.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/udisondev/clanforge/internal/db"
	"github.com/udisondev/clanforge/internal/territory"
)

// IncomeJob collects daily territory income for every clan. The
// collection itself is idempotent per UTC day, so the interval only
// controls how quickly a new day is noticed.
type IncomeJob struct {
	Clans    *db.ClanRepository
	Ledger   *territory.Manager
	Interval time.Duration
}

// Run loops until the context is canceled.
func (j *IncomeJob) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.collectAll(ctx)
		}
	}
}

func (j *IncomeJob) collectAll(ctx context.Context) {
	ids, err := j.Clans.IDs(ctx)
	if err != nil {
		slog.Error("income job: listing clans", "err", err)
		return
	}
	var collected int
	for _, id := range ids {
		result, err := j.Ledger.CollectDailyIncome(ctx, id)
		if err != nil {
			slog.Error("income job: collecting", "clan", id, "err", err)
			continue
		}
		if result.Collected {
			collected++
		}
	}
	if collected > 0 {
		slog.Info("income job: collected", "clans", collected)
	}
}

// WarJanitor promotes overdue DECLARED wars to ACTIVE so activation
// does not depend on a capture attempt arriving.
type WarJanitor struct {
	Wars     *db.WarRepository
	Grace    time.Duration
	Interval time.Duration
}

// Run loops until the context is canceled.
func (j *WarJanitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := j.Wars.ActivateOverdue(ctx, time.Now().UTC().Add(-j.Grace))
			if err != nil {
				slog.Error("war janitor: activating overdue wars", "err", err)
				continue
			}
			if n > 0 {
				slog.Info("war janitor: wars activated", "count", n)
			}
		}
	}
}
