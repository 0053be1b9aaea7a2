package matchmaking

import (
	"context"
	"fmt"
	"sync"

	matchdb "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/repositories"
	matchmakingservice "github.com/Black-And-White-Club/frag-arena/app/modules/matchmaking/application"
	"github.com/Black-And-White-Club/frag-arena/app/modules/matchmaking/infrastructure/adapters"
	matchmakinghandlers "github.com/Black-And-White-Club/frag-arena/app/modules/matchmaking/infrastructure/handlers"
	matchmakingdb "github.com/Black-And-White-Club/frag-arena/app/modules/matchmaking/infrastructure/repositories"
	matchmakingrouter "github.com/Black-And-White-Club/frag-arena/app/modules/matchmaking/infrastructure/router"
	matchmakingticker "github.com/Black-And-White-Club/frag-arena/app/modules/matchmaking/infrastructure/ticker"
	playerdb "github.com/Black-And-White-Club/frag-arena/app/modules/player/infrastructure/repositories"
	"github.com/Black-And-White-Club/frag-arena/config"
	"github.com/Black-And-White-Club/frag-arena/pkg/eventbus"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/uptrace/bun"
)

// Module represents the matchmaking module.
type Module struct {
	MatchmakingService matchmakingservice.Service
	MatchmakingRouter  *matchmakingrouter.MatchmakingRouter
	Ticker             *matchmakingticker.Ticker
	cancelFunc         context.CancelFunc
	observability      observability.Observability
}

// NewMatchmakingModule creates and initializes a new matchmaking module.
func NewMatchmakingModule(
	ctx context.Context,
	cfg *config.Config,
	obs observability.Observability,
	eventBus eventbus.EventBus,
	router *message.Router,
	db *bun.DB,
	matchRepo matchdb.Repository,
	playerRepo playerdb.Repository,
	scheduler matchmakingservice.ConfirmationScheduler,
	m metrics.MatchmakingMetrics,
	routerCtx context.Context,
) (*Module, error) {
	logger := obs.Provider.Logger
	tracer := obs.Registry.Tracer

	logger.InfoContext(ctx, "matchmaking.NewMatchmakingModule initializing")

	// 1. Initialize Repository
	repo := matchmakingdb.NewRepository(db)

	// 2. Initialize Service
	service := matchmakingservice.NewMatchmakingService(
		repo,
		adapters.NewMatchStoreAdapter(matchRepo),
		adapters.NewPlayerDirectoryAdapter(playerRepo),
		scheduler,
		cfg.Matchmaking,
		logger,
		m,
		tracer,
		db,
	)

	// 3. Initialize Handlers
	handlers := matchmakinghandlers.NewMatchmakingHandlers(service, logger)

	// 4. Initialize Router
	mmRouter := matchmakingrouter.NewMatchmakingRouter(logger, router, eventBus, eventBus, m, tracer)

	// 5. Configure the router with handlers
	if err := mmRouter.Configure(routerCtx, handlers); err != nil {
		return nil, fmt.Errorf("failed to configure matchmaking router: %w", err)
	}

	return &Module{
		MatchmakingService: service,
		MatchmakingRouter:  mmRouter,
		Ticker:             matchmakingticker.New(service, eventBus, cfg.Matchmaking.TickInterval, logger),
		observability:      obs,
	}, nil
}

// Run starts the pairing ticker and blocks until ctx is done.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	logger := m.observability.Provider.Logger
	logger.InfoContext(ctx, "Starting matchmaking module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	if err := m.Ticker.Start(ctx); err != nil {
		logger.ErrorContext(ctx, "Failed to start matchmaking ticker", "error", err)
		return
	}

	<-ctx.Done()
	logger.InfoContext(ctx, "Matchmaking module goroutine stopped")
}

// Close shuts down the matchmaking module.
func (m *Module) Close() error {
	logger := m.observability.Provider.Logger
	logger.Info("Stopping matchmaking module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	if m.Ticker != nil {
		if err := m.Ticker.Stop(); err != nil {
			logger.Error("Error stopping matchmaking ticker", "error", err)
		}
	}

	if m.MatchmakingRouter != nil {
		if err := m.MatchmakingRouter.Close(); err != nil {
			logger.Error("Error closing MatchmakingRouter from module", "error", err)
			return fmt.Errorf("error closing MatchmakingRouter: %w", err)
		}
	}

	logger.Info("Matchmaking module stopped")
	return nil
}
