package match

import (
	"context"
	"fmt"
	"sync"

	matchservice "github.com/Black-And-White-Club/frag-arena/app/modules/match/application"
	matchhandlers "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/handlers"
	matchingress "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/ingress"
	matchpoller "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/poller"
	"github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/provider"
	matchqueue "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/queue"
	matchdb "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/repositories"
	matchrouter "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/router"
	playerdb "github.com/Black-And-White-Club/frag-arena/app/modules/player/infrastructure/repositories"
	"github.com/Black-And-White-Club/frag-arena/config"
	"github.com/Black-And-White-Club/frag-arena/pkg/eventbus"
	"github.com/Black-And-White-Club/frag-arena/pkg/jwt"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/uptrace/bun"
)

const tokenIssuer = "frag-arena"

// Module represents the match lifecycle module.
type Module struct {
	MatchService  matchservice.Service
	MatchRouter   *matchrouter.MatchRouter
	Poller        *matchpoller.Poller
	Ingress       *matchingress.Handler
	cancelFunc    context.CancelFunc
	observability observability.Observability
}

// NewMatchModule creates and initializes a new match module.
func NewMatchModule(
	ctx context.Context,
	cfg *config.Config,
	obs observability.Observability,
	eventBus eventbus.EventBus,
	router *message.Router,
	db *bun.DB,
	repo matchdb.Repository,
	playerRepo playerdb.Repository,
	queue matchqueue.QueueService,
	m metrics.MatchMetrics,
	routerCtx context.Context,
) (*Module, error) {
	logger := obs.Provider.Logger
	tracer := obs.Registry.Tracer

	logger.InfoContext(ctx, "match.NewMatchModule initializing")

	// 1. Initialize adapters
	providerClient := provider.NewClient(cfg.Provider, cfg.HTTP.WebhookSecret)
	tokens := jwt.NewService(cfg.JWT.Secret, tokenIssuer, cfg.JWT.DefaultTTL)

	// 2. Initialize Service
	service, err := matchservice.NewMatchService(
		repo,
		playerRepo,
		providerClient,
		queue,
		tokens,
		cfg.Match,
		cfg.HTTP.PublicBaseURL,
		logger,
		m,
		tracer,
		db,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create match service: %w", err)
	}

	// 3. Initialize Handlers
	handlers := matchhandlers.NewMatchHandlers(service, queue, logger)

	// 4. Initialize Router
	mRouter := matchrouter.NewMatchRouter(logger, router, eventBus, eventBus, m, tracer)

	// 5. Configure the router with handlers
	if err := mRouter.Configure(routerCtx, handlers); err != nil {
		return nil, fmt.Errorf("failed to configure match router: %w", err)
	}

	return &Module{
		MatchService:  service,
		MatchRouter:   mRouter,
		Poller:        matchpoller.New(service, providerClient, eventBus, cfg.Match.PollInterval, cfg.Match.PollConcurrency, logger),
		Ingress:       matchingress.NewHandler(eventBus, tokens, cfg.HTTP.WebhookSecret, logger),
		observability: obs,
	}, nil
}

// Run starts the status poller and blocks until ctx is done.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	logger := m.observability.Provider.Logger
	logger.InfoContext(ctx, "Starting match module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	if err := m.Poller.Start(ctx); err != nil {
		logger.ErrorContext(ctx, "Failed to start match poller", "error", err)
		return
	}

	<-ctx.Done()
	logger.InfoContext(ctx, "Match module goroutine stopped")
}

// Close shuts down the match module.
func (m *Module) Close() error {
	logger := m.observability.Provider.Logger
	logger.Info("Stopping match module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	if m.Poller != nil {
		if err := m.Poller.Stop(); err != nil {
			logger.Error("Error stopping match poller", "error", err)
		}
	}

	if m.MatchRouter != nil {
		if err := m.MatchRouter.Close(); err != nil {
			logger.Error("Error closing MatchRouter from module", "error", err)
			return fmt.Errorf("error closing MatchRouter: %w", err)
		}
	}

	logger.Info("Match module stopped")
	return nil
}
