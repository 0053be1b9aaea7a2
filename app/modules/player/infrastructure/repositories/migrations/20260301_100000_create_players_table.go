package playermigrations

import (
	"context"
	"fmt"

	playerdb "github.com/Black-And-White-Club/frag-arena/app/modules/player/infrastructure/repositories"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating players table...")
		if _, err := db.NewCreateTable().Model((*playerdb.Player)(nil)).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create players table: %w", err)
		}
		if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_players_is_bot ON players(is_bot) WHERE is_bot`); err != nil {
			return fmt.Errorf("failed to create players bot index: %w", err)
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping players table...")
		if _, err := db.NewDropTable().Model((*playerdb.Player)(nil)).IfExists().Cascade().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop players table: %w", err)
		}
		return nil
	})
}
