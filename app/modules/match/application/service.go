package matchservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	matchdomain "github.com/Black-And-White-Club/frag-arena/app/modules/match/domain"
	matchdb "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/repositories"
	playerdb "github.com/Black-And-White-Club/frag-arena/app/modules/player/infrastructure/repositories"
	"github.com/Black-And-White-Club/frag-arena/config"
	"github.com/Black-And-White-Club/frag-arena/pkg/jwt"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/attr"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/metrics"
	"github.com/Black-And-White-Club/frag-arena/pkg/results"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MatchService implements the Service interface.
type MatchService struct {
	repo          matchdb.Repository
	players       playerdb.Repository
	provider      GameServerProvider
	scheduler     Scheduler
	tokens        jwt.Service
	cfg           config.MatchConfig
	publicBaseURL string
	rating        matchdomain.RatingModel
	logger        *slog.Logger
	metrics       metrics.MatchMetrics
	tracer        trace.Tracer
	db            *bun.DB

	now  func() time.Time
	coin func() bool
	intn func(n int) int
}

// NewMatchService creates a new MatchService. It fails when the configured
// rating model is unknown.
func NewMatchService(
	repo matchdb.Repository,
	players playerdb.Repository,
	provider GameServerProvider,
	scheduler Scheduler,
	tokens jwt.Service,
	cfg config.MatchConfig,
	publicBaseURL string,
	logger *slog.Logger,
	m metrics.MatchMetrics,
	tracer trace.Tracer,
	db *bun.DB,
) (*MatchService, error) {
	model, err := matchdomain.NewRatingModel(cfg.RatingModel, cfg.RatingK)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Noop{}
	}
	return &MatchService{
		repo:          repo,
		players:       players,
		provider:      provider,
		scheduler:     scheduler,
		tokens:        tokens,
		cfg:           cfg,
		publicBaseURL: publicBaseURL,
		rating:        model,
		logger:        logger,
		metrics:       m,
		tracer:        tracer,
		db:            db,
		now:           time.Now,
		coin:          func() bool { return rand.IntN(2) == 0 },
		intn:          rand.IntN,
	}, nil
}

// loadMatch returns ErrMatchNotFound, unwrapped, for a missing row so callers
// can turn it into a failure result.
func (s *MatchService) loadMatch(ctx context.Context, db bun.IDB, id uuid.UUID, forUpdate bool) (*matchdb.Match, error) {
	var (
		m   *matchdb.Match
		err error
	)
	if forUpdate {
		m, err = s.repo.GetMatchForUpdate(ctx, db, id)
	} else {
		m, err = s.repo.GetMatch(ctx, db, id)
	}
	if errors.Is(err, matchdb.ErrNotFound) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load match: %w", err)
	}
	return m, nil
}

// operationFunc is the generic signature for service operation functions.
type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *MatchService,
	ctx context.Context,
	operationName string,
	matchID uuid.UUID,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operationName, trace.WithAttributes(
			attribute.String("operation", operationName),
			attribute.String("match_id", matchID.String()),
		))
	} else {
		span = trace.SpanFromContext(ctx)
	}
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName)

	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, time.Since(startTime))
	}()

	s.logger.DebugContext(ctx, operationName+" triggered",
		attr.ExtractCorrelationID(ctx),
		attr.String("operation", operationName),
		attr.MatchID(matchID),
	)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.MatchID(matchID),
				attr.Error(err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName)
			span.RecordError(err)
			result = results.OperationResult[S, F]{}
		}
	}()

	result, err = op(ctx)
	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.MatchID(matchID),
			attr.Error(wrappedErr),
		)
		s.metrics.RecordOperationFailure(ctx, operationName)
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	if result.IsFailure() {
		s.logger.InfoContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.MatchID(matchID),
			attr.Any("failure", *result.Failure),
		)
		s.metrics.RecordOperationFailure(ctx, operationName)
	}

	if result.IsSuccess() {
		s.metrics.RecordOperationSuccess(ctx, operationName)
	}

	return result, nil
}

// runInTx ensures the operation runs within a transaction.
func runInTx[S any, F any](
	s *MatchService,
	ctx context.Context,
	fn func(ctx context.Context, db bun.IDB) (results.OperationResult[S, F], error),
) (results.OperationResult[S, F], error) {
	if s.db == nil {
		return fn(ctx, nil)
	}

	var result results.OperationResult[S, F]
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		result, txErr = fn(ctx, tx)
		return txErr
	})

	return result, err
}
