package matchmigrations

import (
	"context"
	"fmt"

	matchdb "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/repositories"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating match tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			models := []interface{}{
				(*matchdb.Match)(nil),
				(*matchdb.PlayerStat)(nil),
				(*matchdb.MatchHistory)(nil),
			}
			for _, model := range models {
				if _, err := tx.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
					return fmt.Errorf("failed to create table for %T: %w", model, err)
				}
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE INDEX IF NOT EXISTS idx_matches_state ON matches(state);
				CREATE UNIQUE INDEX IF NOT EXISTS idx_matches_remote_match_id ON matches(remote_match_id) WHERE remote_match_id IS NOT NULL;
				CREATE INDEX IF NOT EXISTS idx_matches_team_a ON matches USING GIN (team_a);
				CREATE INDEX IF NOT EXISTS idx_matches_team_b ON matches USING GIN (team_b);
				CREATE INDEX IF NOT EXISTS idx_player_stats_user ON player_stats(user_id);
			`); err != nil {
				return fmt.Errorf("failed to create match indexes: %w", err)
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping match tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			for _, table := range []string{"match_history", "player_stats", "matches"} {
				if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE;", table)); err != nil {
					return fmt.Errorf("failed to drop %s: %w", table, err)
				}
			}
			return nil
		})
	})
}
