package matchdb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

func (r *Impl) CreatePlayerStats(ctx context.Context, db bun.IDB, stats []PlayerStat) error {
	if len(stats) == 0 {
		return nil
	}
	db = r.resolveDB(db)
	_, err := db.NewInsert().
		Model(&stats).
		On("CONFLICT (match_id, user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create player stats: %w", err)
	}
	return nil
}

func (r *Impl) MarkConnected(ctx context.Context, db bun.IDB, matchID uuid.UUID, userID string, at time.Time) (bool, error) {
	db = r.resolveDB(db)
	result, err := db.NewUpdate().
		Model((*PlayerStat)(nil)).
		Set("connected = TRUE").
		Set("connected_at = ?", at).
		Where("match_id = ?", matchID).
		Where("user_id = ?", userID).
		Where("connected = FALSE").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to mark connected: %w", err)
	}
	return applied(result)
}

func (r *Impl) CountConnected(ctx context.Context, db bun.IDB, matchID uuid.UUID) (int, error) {
	db = r.resolveDB(db)
	n, err := db.NewSelect().
		Model((*PlayerStat)(nil)).
		Where("match_id = ?", matchID).
		Where("connected = TRUE").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count connected players: %w", err)
	}
	return n, nil
}

func (r *Impl) ListPlayerStats(ctx context.Context, db bun.IDB, matchID uuid.UUID) ([]PlayerStat, error) {
	db = r.resolveDB(db)
	var stats []PlayerStat
	err := db.NewSelect().
		Model(&stats).
		Where("match_id = ?", matchID).
		Order("team ASC", "user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list player stats: %w", err)
	}
	return stats, nil
}

func (r *Impl) RecordStatLine(ctx context.Context, db bun.IDB, matchID uuid.UUID, userID string, line StatLine) error {
	db = r.resolveDB(db)
	_, err := db.NewUpdate().
		Model((*PlayerStat)(nil)).
		Set("kills = GREATEST(kills, ?)", line.Kills).
		Set("deaths = GREATEST(deaths, ?)", line.Deaths).
		Set("assists = GREATEST(assists, ?)", line.Assists).
		Set("mvps = GREATEST(mvps, ?)", line.MVPs).
		Where("match_id = ?", matchID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record stat line: %w", err)
	}
	return nil
}

func (r *Impl) SetEloChanges(ctx context.Context, db bun.IDB, matchID uuid.UUID, changes map[string]int) error {
	db = r.resolveDB(db)
	for userID, delta := range changes {
		_, err := db.NewUpdate().
			Model((*PlayerStat)(nil)).
			Set("elo_change = ?", delta).
			Where("match_id = ?", matchID).
			Where("user_id = ?", userID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set elo change for %s: %w", userID, err)
		}
	}
	return nil
}
