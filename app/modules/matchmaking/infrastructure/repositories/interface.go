package matchmakingdb

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Repository defines the contract for queue persistence.
type Repository interface {
	// Insert adds an entry; ErrAlreadyQueued if the user already holds one.
	Insert(ctx context.Context, db bun.IDB, entry *QueueEntry) error

	// ApplyCooldown inserts or updates the user's entry so it cannot pair before until.
	ApplyCooldown(ctx context.Context, db bun.IDB, userID, mode string, joinedAt, until time.Time) error

	// Get returns the user's entry.
	Get(ctx context.Context, db bun.IDB, userID string) (*QueueEntry, error)

	// Delete removes the user's entry.
	Delete(ctx context.Context, db bun.IDB, userID string) error

	// DeleteMany removes the entries of a freshly paired group.
	DeleteMany(ctx context.Context, db bun.IDB, userIDs []string) error

	// ListForPairing returns a mode's entries oldest first, row-locked for the tick.
	ListForPairing(ctx context.Context, db bun.IDB, mode string) ([]QueueEntry, error)
}
