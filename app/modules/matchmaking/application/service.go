package matchmakingservice

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	matchmakingdb "github.com/Black-And-White-Club/frag-arena/app/modules/matchmaking/infrastructure/repositories"
	"github.com/Black-And-White-Club/frag-arena/config"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/attr"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/metrics"
	"github.com/Black-And-White-Club/frag-arena/pkg/results"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MatchmakingService implements the Service interface.
type MatchmakingService struct {
	repo      matchmakingdb.Repository
	matches   MatchStore
	players   PlayerDirectory
	scheduler ConfirmationScheduler
	cfg       config.MatchmakingConfig
	logger    *slog.Logger
	metrics   metrics.MatchmakingMetrics
	tracer    trace.Tracer
	db        *bun.DB

	// tickMu serialises ticks across every mode.
	tickMu sync.Mutex
	now    func() time.Time
}

// NewMatchmakingService creates a new MatchmakingService.
func NewMatchmakingService(
	repo matchmakingdb.Repository,
	matches MatchStore,
	players PlayerDirectory,
	scheduler ConfirmationScheduler,
	cfg config.MatchmakingConfig,
	logger *slog.Logger,
	m metrics.MatchmakingMetrics,
	tracer trace.Tracer,
	db *bun.DB,
) *MatchmakingService {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Noop{}
	}
	return &MatchmakingService{
		repo:      repo,
		matches:   matches,
		players:   players,
		scheduler: scheduler,
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		tracer:    tracer,
		db:        db,
		now:       time.Now,
	}
}

// Modes lists the configured queue modes in name order.
func (s *MatchmakingService) Modes() []string {
	out := make([]string, 0, len(s.cfg.Modes))
	for _, m := range s.cfg.Modes {
		out = append(out, m.Name)
	}
	sort.Strings(out)
	return out
}

// operationFunc is the generic signature for service operation functions.
type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *MatchmakingService,
	ctx context.Context,
	operationName string,
	identifier string,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operationName, trace.WithAttributes(
			attribute.String("operation", operationName),
			attribute.String("identifier", identifier),
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
		attr.String("identifier", identifier),
	)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.String("identifier", identifier),
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
			attr.String("identifier", identifier),
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
			attr.String("identifier", identifier),
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
	s *MatchmakingService,
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
