package playerdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// ErrNotFound is returned when a player is not found.
var ErrNotFound = errors.New("player not found")

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new player repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *Impl) GetPlayers(ctx context.Context, db bun.IDB, userIDs []string) ([]Player, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	db = r.resolveDB(db)
	var players []Player
	err := db.NewSelect().
		Model(&players).
		Where("user_id IN (?)", bun.In(userIDs)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}
	return players, nil
}

func (r *Impl) GetPlayersForUpdate(ctx context.Context, db bun.IDB, userIDs []string) ([]Player, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	db = r.resolveDB(db)
	var players []Player
	err := db.NewSelect().
		Model(&players).
		Where("user_id IN (?)", bun.In(userIDs)).
		Order("user_id ASC").
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to lock players: %w", err)
	}
	return players, nil
}

func (r *Impl) ApplySettlement(ctx context.Context, db bun.IDB, userID string, rating, coinsDelta int) error {
	db = r.resolveDB(db)
	result, err := db.NewUpdate().
		Model((*Player)(nil)).
		Set("rating = ?", rating).
		Set("coins = coins + ?", coinsDelta).
		Set("updated_at = ?", time.Now()).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply settlement: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Impl) IncrementAbandons(ctx context.Context, db bun.IDB, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	db = r.resolveDB(db)
	_, err := db.NewUpdate().
		Model((*Player)(nil)).
		Set("abandon_count = abandon_count + 1").
		Set("updated_at = ?", time.Now()).
		Where("user_id IN (?)", bun.In(userIDs)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to increment abandons: %w", err)
	}
	return nil
}
