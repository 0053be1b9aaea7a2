// Package app assembles the modules, the event router and the HTTP ingress into one process.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Black-And-White-Club/frag-arena/app/modules/match"
	matchingress "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/ingress"
	matchqueue "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/queue"
	matchdb "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/repositories"
	"github.com/Black-And-White-Club/frag-arena/app/modules/matchmaking"
	playerdb "github.com/Black-And-White-Club/frag-arena/app/modules/player/infrastructure/repositories"
	"github.com/Black-And-White-Club/frag-arena/config"
	"github.com/Black-And-White-Club/frag-arena/pkg/eventbus"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/attr"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/metrics"
	"github.com/ThreeDotsLabs/watermill"
	wmprom "github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const appName = "frag-arena"

// App owns every long-lived resource of the process.
type App struct {
	Config        *config.Config
	Observability observability.Observability
	DB            *bun.DB
	EventBus      eventbus.EventBus
	Router        *message.Router
	Queue         *matchqueue.Service
	Matchmaking   *matchmaking.Module
	Match         *match.Module
	HTTPServer    *http.Server

	wg sync.WaitGroup
}

// NewApp connects to Postgres and the bus and wires both modules onto one router.
func NewApp(ctx context.Context, cfg *config.Config, obs observability.Observability) (*App, error) {
	logger := obs.Provider.Logger
	a := &App{Config: cfg, Observability: obs}

	pgdb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.DSN)))
	a.DB = bun.NewDB(pgdb, pgdialect.New())
	if err := a.DB.PingContext(ctx); err != nil {
		_ = a.DB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	var err error
	if cfg.NATS.InMemory {
		logger.WarnContext(ctx, "Using in-memory event bus")
		a.EventBus = eventbus.NewInMemory(logger)
	} else {
		a.EventBus, err = eventbus.NewNATS(ctx, eventbus.Config{
			URL:      cfg.NATS.URL,
			AppName:  appName,
			NKeySeed: cfg.NATS.NKeySeed,
		}, logger)
		if err != nil {
			_ = a.DB.Close()
			return nil, fmt.Errorf("failed to create event bus: %w", err)
		}
	}

	if err := a.buildRouter(); err != nil {
		a.closeInfra()
		return nil, err
	}

	matchMetrics := metrics.NewMatchMetrics(obs.Registry.Prometheus)
	a.Queue, err = matchqueue.NewService(ctx, a.DB, cfg.Postgres.DSN, a.EventBus, logger, matchMetrics)
	if err != nil {
		a.closeInfra()
		return nil, fmt.Errorf("failed to create queue service: %w", err)
	}

	matchRepo := matchdb.NewRepository(a.DB)
	playerRepo := playerdb.NewRepository(a.DB)

	a.Match, err = match.NewMatchModule(ctx, cfg, obs, a.EventBus, a.Router, a.DB, matchRepo, playerRepo, a.Queue, matchMetrics, ctx)
	if err != nil {
		a.closeInfra()
		return nil, fmt.Errorf("failed to create match module: %w", err)
	}

	a.Matchmaking, err = matchmaking.NewMatchmakingModule(ctx, cfg, obs, a.EventBus, a.Router, a.DB, matchRepo, playerRepo, a.Queue,
		metrics.NewMatchmakingMetrics(obs.Registry.Prometheus), ctx)
	if err != nil {
		a.closeInfra()
		return nil, fmt.Errorf("failed to create matchmaking module: %w", err)
	}

	a.HTTPServer = &http.Server{
		Addr: cfg.HTTP.Address,
		Handler: matchingress.NewRouter(matchingress.RouterConfig{
			Handler: a.Match.Ingress,
			Limiter: matchingress.NewIPRateLimiter(rate.Limit(cfg.HTTP.RateLimit), cfg.HTTP.RateBurst),
			Metrics: obs.MetricsHandler(),
			Checks: map[string]matchingress.HealthCheck{
				"postgres": a.DB.PingContext,
				"queue":    a.Queue.HealthCheck,
			},
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.InfoContext(ctx, "Application initialized")
	return a, nil
}

func (a *App) buildRouter() error {
	logger := a.Observability.Provider.Logger
	wmLogger := watermill.NewSlogLogger(logger)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 30 * time.Second}, wmLogger)
	if err != nil {
		return fmt.Errorf("failed to create Watermill router: %w", err)
	}
	router.AddMiddleware(
		middleware.CorrelationID,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: 200 * time.Millisecond,
			Multiplier:      2,
			Logger:          wmLogger,
		}.Middleware,
		middleware.Recoverer,
	)
	wmprom.NewPrometheusMetricsBuilder(a.Observability.Registry.Prometheus, "frag_arena", "router").AddPrometheusRouterMetrics(router)

	a.Router = router
	return nil
}

// Run starts every component and blocks until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	logger := a.Observability.Provider.Logger
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.Router.Run(ctx) })
	select {
	case <-a.Router.Running():
	case <-ctx.Done():
		return g.Wait()
	}

	// River is stopped explicitly in Close so running jobs can finish.
	if err := a.Queue.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	a.wg.Add(2)
	go a.Match.Run(ctx, &a.wg)
	go a.Matchmaking.Run(ctx, &a.wg)

	g.Go(func() error { return a.Observability.ServeMetrics(ctx) })
	g.Go(func() error {
		logger.InfoContext(ctx, "HTTP ingress listening", attr.String("address", a.HTTPServer.Addr))
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.HTTPServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close stops the modules, then the queue, then the infrastructure they used.
func (a *App) Close(ctx context.Context) error {
	logger := a.Observability.Provider.Logger
	var errs []error

	if a.Match != nil {
		errs = append(errs, a.Match.Close())
	}
	if a.Matchmaking != nil {
		errs = append(errs, a.Matchmaking.Close())
	}
	a.wg.Wait()

	if a.Queue != nil {
		errs = append(errs, a.Queue.Stop(ctx))
	}
	errs = append(errs, a.closeInfra())

	err := errors.Join(errs...)
	if err != nil {
		logger.ErrorContext(ctx, "Shutdown finished with errors", attr.Error(err))
		return err
	}
	logger.InfoContext(ctx, "Application shut down gracefully")
	return nil
}

func (a *App) closeInfra() error {
	var errs []error
	if a.Router != nil {
		errs = append(errs, a.Router.Close())
	}
	if a.EventBus != nil {
		errs = append(errs, a.EventBus.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
