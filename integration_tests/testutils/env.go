//go:build integration

// Package testutils starts the containers the integration suites share and
// prepares the schema they run against.
package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/testcontainers/testcontainers-go/modules/nats"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	matchmigrations "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/repositories/migrations"
	matchmakingmigrations "github.com/Black-And-White-Club/frag-arena/app/modules/matchmaking/infrastructure/repositories/migrations"
	playermigrations "github.com/Black-And-White-Club/frag-arena/app/modules/player/infrastructure/repositories/migrations"
	"github.com/Black-And-White-Club/frag-arena/integration_tests/containers"
)

// TestEnvironment holds the resources an integration suite needs.
type TestEnvironment struct {
	Ctx           context.Context
	CancelContext context.CancelFunc
	PgContainer   *postgres.PostgresContainer
	NatsContainer *nats.NATSContainer
	DB            *bun.DB
	DSN           string
	NatsURL       string
	Logger        *slog.Logger
}

// Options selects which containers a suite starts.
type Options struct {
	Postgres bool
	NATS     bool
}

// NewTestEnvironment starts the requested containers and migrates the schema.
func NewTestEnvironment(opts Options) (*TestEnvironment, error) {
	ctx, cancel := context.WithCancel(context.Background())
	env := &TestEnvironment{
		Ctx:           ctx,
		CancelContext: cancel,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	if opts.Postgres {
		pgContainer, dsn, err := containers.SetupPostgresContainer(ctx)
		if err != nil {
			env.Cleanup()
			return nil, fmt.Errorf("failed to setup postgres container: %w", err)
		}
		env.PgContainer = pgContainer
		env.DSN = dsn

		pgdb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		env.DB = bun.NewDB(pgdb, pgdialect.New())
		if err := env.DB.PingContext(ctx); err != nil {
			env.Cleanup()
			return nil, fmt.Errorf("failed to ping postgres: %w", err)
		}
		if err := runMigrations(ctx, env.DB, dsn); err != nil {
			env.Cleanup()
			return nil, err
		}
	}

	if opts.NATS {
		natsContainer, natsURL, err := containers.SetupNatsContainer(ctx)
		if err != nil {
			env.Cleanup()
			return nil, fmt.Errorf("failed to setup nats container: %w", err)
		}
		env.NatsContainer = natsContainer
		env.NatsURL = natsURL
	}

	return env, nil
}

// Cleanup closes connections and terminates every container.
func (env *TestEnvironment) Cleanup() {
	ctx := context.Background()
	if env.DB != nil {
		if err := env.DB.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}
	if env.PgContainer != nil {
		if err := env.PgContainer.Terminate(ctx); err != nil {
			log.Printf("Error terminating postgres container: %v", err)
		}
	}
	if env.NatsContainer != nil {
		if err := env.NatsContainer.Terminate(ctx); err != nil {
			log.Printf("Error terminating NATS container: %v", err)
		}
	}
	env.CancelContext()
}

// Reset truncates the application tables and the job queue between tests.
func (env *TestEnvironment) Reset(t *testing.T) {
	t.Helper()
	if env.DB == nil {
		return
	}
	if err := CleanupDatabase(env.Ctx, env.DB); err != nil {
		t.Fatalf("failed to clean database: %v", err)
	}
}

// appTables lists every table the modules own.
var appTables = []string{"match_history", "player_stats", "matches", "queue_entries", "players"}

// CleanupDatabase truncates the application tables and deletes River jobs.
func CleanupDatabase(ctx context.Context, db *bun.DB) error {
	for _, table := range appTables {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM river_job"); err != nil {
		return fmt.Errorf("failed to clean river jobs: %w", err)
	}
	return nil
}

func runMigrations(ctx context.Context, db *bun.DB, dsn string) error {
	if err := migrate.NewMigrator(db, playermigrations.Migrations).Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migration tables: %w", err)
	}

	if err := runRiverMigrations(ctx, dsn); err != nil {
		return err
	}

	// Order matters: matches reference players.
	ordered := []struct {
		name       string
		migrations *migrate.Migrations
	}{
		{"player", playermigrations.Migrations},
		{"matchmaking", matchmakingmigrations.Migrations},
		{"match", matchmigrations.Migrations},
	}
	for _, mod := range ordered {
		if _, err := migrate.NewMigrator(db, mod.migrations).Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run %s migrations: %w", mod.name, err)
		}
	}
	log.Println("All migrations ran successfully")
	return nil
}

func runRiverMigrations(ctx context.Context, dsn string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool for River migrations: %w", err)
	}
	defer pool.Close()

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create River migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{}); err != nil {
		return fmt.Errorf("failed to run River migrations: %w", err)
	}
	return nil
}
