package playerdb

import (
	"context"

	"github.com/uptrace/bun"
)

// Repository defines the contract for player persistence.
type Repository interface {
	// GetPlayers returns the players for the given ids. Unknown ids are skipped.
	GetPlayers(ctx context.Context, db bun.IDB, userIDs []string) ([]Player, error)

	// GetPlayersForUpdate is GetPlayers holding row locks until the transaction ends.
	GetPlayersForUpdate(ctx context.Context, db bun.IDB, userIDs []string) ([]Player, error)

	// ApplySettlement writes a new rating and adds coins for one player.
	ApplySettlement(ctx context.Context, db bun.IDB, userID string, rating, coinsDelta int) error

	// IncrementAbandons bumps abandon_count for each user.
	IncrementAbandons(ctx context.Context, db bun.IDB, userIDs []string) error
}
