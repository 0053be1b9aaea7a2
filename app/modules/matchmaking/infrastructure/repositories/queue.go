package matchmakingdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

var (
	// ErrNotFound is returned when the user has no queue entry.
	ErrNotFound = errors.New("queue entry not found")
	// ErrAlreadyQueued is returned when the user already holds an entry.
	ErrAlreadyQueued = errors.New("user already queued")
)

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new queue repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *Impl) Insert(ctx context.Context, db bun.IDB, entry *QueueEntry) error {
	db = r.resolveDB(db)
	result, err := db.NewInsert().
		Model(entry).
		On("CONFLICT (user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert queue entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAlreadyQueued
	}
	return nil
}

func (r *Impl) ApplyCooldown(ctx context.Context, db bun.IDB, userID, mode string, joinedAt, until time.Time) error {
	db = r.resolveDB(db)
	entry := &QueueEntry{
		UserID:        userID,
		Mode:          mode,
		JoinedAt:      joinedAt,
		CooldownUntil: &until,
	}
	_, err := db.NewInsert().
		Model(entry).
		On("CONFLICT (user_id) DO UPDATE").
		Set("cooldown_until = GREATEST(COALESCE(qe.cooldown_until, EXCLUDED.cooldown_until), EXCLUDED.cooldown_until)").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply cooldown: %w", err)
	}
	return nil
}

func (r *Impl) Get(ctx context.Context, db bun.IDB, userID string) (*QueueEntry, error) {
	db = r.resolveDB(db)
	entry := new(QueueEntry)
	err := db.NewSelect().
		Model(entry).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}
	return entry, nil
}

func (r *Impl) Delete(ctx context.Context, db bun.IDB, userID string) error {
	db = r.resolveDB(db)
	result, err := db.NewDelete().
		Model((*QueueEntry)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete queue entry: %w", err)
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

func (r *Impl) DeleteMany(ctx context.Context, db bun.IDB, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	db = r.resolveDB(db)
	_, err := db.NewDelete().
		Model((*QueueEntry)(nil)).
		Where("user_id IN (?)", bun.In(userIDs)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete queue entries: %w", err)
	}
	return nil
}

func (r *Impl) ListForPairing(ctx context.Context, db bun.IDB, mode string) ([]QueueEntry, error) {
	db = r.resolveDB(db)
	var entries []QueueEntry
	err := db.NewSelect().
		Model(&entries).
		Where("mode = ?", mode).
		Order("joined_at ASC", "user_id ASC").
		For("UPDATE SKIP LOCKED").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	return entries, nil
}
