// Package matchqueue schedules the match timers as River jobs on Postgres.
package matchqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/frag-arena/pkg/eventbus"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/attr"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/metrics"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/uptrace/bun"
)

// QueueName is the River queue the match timers run on.
const QueueName = "match"

// QueueService is the contract the match and matchmaking modules schedule through.
type QueueService interface {
	ScheduleConfirmationTimeout(ctx context.Context, matchID uuid.UUID, at time.Time) error
	ScheduleWarmupTimeout(ctx context.Context, matchID uuid.UUID, at time.Time) error
	ScheduleGoLive(ctx context.Context, matchID uuid.UUID, at time.Time) error
	ScheduleTeardown(ctx context.Context, matchID uuid.UUID, at time.Time) error
	// CancelMatchJobs cancels pending jobs of the given kinds, or of every match kind when none are given.
	CancelMatchJobs(ctx context.Context, matchID uuid.UUID, kinds ...string) error
	HealthCheck(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

var _ QueueService = (*Service)(nil)

// Service is the River-backed QueueService.
type Service struct {
	client  *river.Client[pgx.Tx]
	pool    *pgxpool.Pool
	db      *bun.DB
	logger  *slog.Logger
	metrics metrics.Operations
}

// NewService opens a pgx pool for River (River does not run on database/sql),
// registers one worker per timer kind and builds the client.
func NewService(ctx context.Context, db *bun.DB, dsn string, publisher eventbus.EventBus, logger *slog.Logger, m metrics.Operations) (*Service, error) {
	logger = logger.With(attr.String("component", "river_queue"))
	m.RecordOperationAttempt(ctx, "initialize_queue")

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		m.RecordOperationFailure(ctx, "initialize_queue")
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		m.RecordOperationFailure(ctx, "initialize_queue")
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		m.RecordOperationFailure(ctx, "initialize_queue")
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewTimerWorker[ConfirmationTimeoutJob](publisher, logger))
	river.AddWorker(workers, NewTimerWorker[WarmupTimeoutJob](publisher, logger))
	river.AddWorker(workers, NewTimerWorker[GoLiveJob](publisher, logger))
	river.AddWorker(workers, NewTimerWorker[ServerTeardownJob](publisher, logger))

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			QueueName: {MaxWorkers: 50},
		},
		Workers: workers,
		Logger:  logger,
	})
	if err != nil {
		pool.Close()
		m.RecordOperationFailure(ctx, "initialize_queue")
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	m.RecordOperationSuccess(ctx, "initialize_queue")
	logger.InfoContext(ctx, "Match queue service initialized")
	return &Service{client: client, pool: pool, db: db, logger: logger, metrics: m}, nil
}

// Start begins working jobs.
func (s *Service) Start(ctx context.Context) error {
	if err := s.client.Start(ctx); err != nil {
		s.metrics.RecordOperationFailure(ctx, "start_queue")
		return fmt.Errorf("failed to start River client: %w", err)
	}
	s.logger.InfoContext(ctx, "Match queue service started")
	return nil
}

// Stop waits for running jobs and closes the pool.
func (s *Service) Stop(ctx context.Context) error {
	defer s.pool.Close()
	if err := s.client.Stop(ctx); err != nil {
		s.metrics.RecordOperationFailure(ctx, "stop_queue")
		return fmt.Errorf("failed to stop River client: %w", err)
	}
	s.logger.InfoContext(ctx, "Match queue service stopped")
	return nil
}

func (s *Service) ScheduleConfirmationTimeout(ctx context.Context, matchID uuid.UUID, at time.Time) error {
	return s.schedule(ctx, ConfirmationTimeoutJob{MatchID: matchID.String()}, matchID, at)
}

func (s *Service) ScheduleWarmupTimeout(ctx context.Context, matchID uuid.UUID, at time.Time) error {
	return s.schedule(ctx, WarmupTimeoutJob{MatchID: matchID.String()}, matchID, at)
}

func (s *Service) ScheduleGoLive(ctx context.Context, matchID uuid.UUID, at time.Time) error {
	return s.schedule(ctx, GoLiveJob{MatchID: matchID.String()}, matchID, at)
}

func (s *Service) ScheduleTeardown(ctx context.Context, matchID uuid.UUID, at time.Time) error {
	return s.schedule(ctx, ServerTeardownJob{MatchID: matchID.String()}, matchID, at)
}

// schedule inserts a job unique by its args, so a redelivered command that
// schedules the same timer again is a no-op. A time in the past runs at once.
func (s *Service) schedule(ctx context.Context, job timerJob, matchID uuid.UUID, at time.Time) error {
	op := "schedule_" + job.Kind()
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, op)

	res, err := s.client.Insert(ctx, job, &river.InsertOpts{
		Queue:       QueueName,
		ScheduledAt: at,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	})
	if err != nil {
		s.metrics.RecordOperationFailure(ctx, op)
		return fmt.Errorf("failed to schedule %s job: %w", job.Kind(), err)
	}

	s.metrics.RecordOperationSuccess(ctx, op)
	s.metrics.RecordOperationDuration(ctx, op, time.Since(start))
	s.logger.InfoContext(ctx, "Timer scheduled",
		attr.ExtractCorrelationID(ctx),
		attr.String("job_kind", job.Kind()),
		attr.MatchID(matchID),
		attr.Time("at", at),
		attr.Int64("job_id", res.Job.ID),
		attr.Bool("duplicate", res.UniqueSkippedAsDuplicate),
	)
	return nil
}

type riverJobRow struct {
	ID   int64  `bun:"id"`
	Kind string `bun:"kind"`
}

func (s *Service) CancelMatchJobs(ctx context.Context, matchID uuid.UUID, kinds ...string) error {
	if len(kinds) == 0 {
		kinds = matchJobKinds
	}
	s.metrics.RecordOperationAttempt(ctx, "cancel_match_jobs")

	var jobs []riverJobRow
	err := s.db.NewSelect().
		Table("river_job").
		Column("id", "kind").
		Where("kind IN (?)", bun.In(kinds)).
		Where("state IN (?)", bun.In([]string{"available", "scheduled", "retryable"})).
		Where("args->>'match_id' = ?", matchID.String()).
		Scan(ctx, &jobs)
	if err != nil {
		s.metrics.RecordOperationFailure(ctx, "cancel_match_jobs")
		return fmt.Errorf("failed to query jobs for cancellation: %w", err)
	}

	cancelled := 0
	for _, job := range jobs {
		if _, err := s.client.JobCancel(ctx, job.ID); err != nil {
			s.logger.WarnContext(ctx, "Failed to cancel job",
				attr.Int64("job_id", job.ID),
				attr.String("job_kind", job.Kind),
				attr.Error(err),
			)
			continue
		}
		cancelled++
	}

	if cancelled == len(jobs) {
		s.metrics.RecordOperationSuccess(ctx, "cancel_match_jobs")
	} else {
		s.metrics.RecordOperationFailure(ctx, "cancel_match_jobs")
	}
	s.logger.DebugContext(ctx, "Match jobs cancelled",
		attr.MatchID(matchID),
		attr.Int("found", len(jobs)),
		attr.Int("cancelled", cancelled),
	)
	return nil
}

// HealthCheck verifies River's table is reachable.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("river client is nil")
	}
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("queue health check failed: %w", err)
	}
	var count int
	if err := s.db.NewSelect().Table("river_job").ColumnExpr("COUNT(*)").Scan(ctx, &count); err != nil {
		return fmt.Errorf("queue health check failed: %w", err)
	}
	return nil
}
