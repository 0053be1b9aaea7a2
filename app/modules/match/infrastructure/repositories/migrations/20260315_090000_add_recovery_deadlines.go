package matchmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Adding match recovery deadlines...")

		if _, err := db.ExecContext(ctx, `
			ALTER TABLE matches ADD COLUMN IF NOT EXISTS provisioning_deadline TIMESTAMPTZ;
			ALTER TABLE matches ADD COLUMN IF NOT EXISTS live_at TIMESTAMPTZ;
		`); err != nil {
			return fmt.Errorf("failed to add recovery deadlines: %w", err)
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping match recovery deadlines...")

		if _, err := db.ExecContext(ctx, `
			ALTER TABLE matches DROP COLUMN IF EXISTS live_at;
			ALTER TABLE matches DROP COLUMN IF EXISTS provisioning_deadline;
		`); err != nil {
			return fmt.Errorf("failed to drop recovery deadlines: %w", err)
		}
		return nil
	})
}
