package matchmakingmigrations

import (
	"context"
	"fmt"

	matchmakingdb "github.com/Black-And-White-Club/frag-arena/app/modules/matchmaking/infrastructure/repositories"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating queue_entries table...")
		if _, err := db.NewCreateTable().Model((*matchmakingdb.QueueEntry)(nil)).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create queue_entries table: %w", err)
		}
		if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_queue_entries_mode_joined ON queue_entries(mode, joined_at)`); err != nil {
			return fmt.Errorf("failed to create queue_entries index: %w", err)
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping queue_entries table...")
		if _, err := db.NewDropTable().Model((*matchmakingdb.QueueEntry)(nil)).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop queue_entries table: %w", err)
		}
		return nil
	})
}
