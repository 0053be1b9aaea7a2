package matchrouter

import (
	"context"
	"log/slog"

	matchevents "github.com/Black-And-White-Club/frag-arena/app/events/match"
	matchhandlers "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/handlers"
	"github.com/Black-And-White-Club/frag-arena/pkg/eventbus"
	"github.com/Black-And-White-Club/frag-arena/pkg/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"
)

// MatchRouter handles Watermill handler registration for match lifecycle events.
type MatchRouter struct {
	logger     *slog.Logger
	router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	metrics    handlerwrapper.Metrics
	tracer     trace.Tracer
}

// NewMatchRouter creates a new MatchRouter.
func NewMatchRouter(
	logger *slog.Logger,
	router *message.Router,
	subscriber eventbus.EventBus,
	publisher eventbus.EventBus,
	metrics handlerwrapper.Metrics,
	tracer trace.Tracer,
) *MatchRouter {
	return &MatchRouter{
		logger:     logger,
		router:     router,
		subscriber: subscriber,
		publisher:  publisher,
		metrics:    metrics,
		tracer:     tracer,
	}
}

// Configure sets up the router with handlers.
func (r *MatchRouter) Configure(_ context.Context, handlers matchhandlers.Handlers) error {
	r.registerHandlers(handlers)
	return nil
}

type handlerDeps struct {
	router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    handlerwrapper.Metrics
}

func (r *MatchRouter) registerHandlers(handlers matchhandlers.Handlers) {
	deps := handlerDeps{
		router:     r.router,
		subscriber: r.subscriber,
		publisher:  r.publisher,
		logger:     r.logger,
		tracer:     r.tracer,
		metrics:    r.metrics,
	}

	r.logger.Info("Registering match module handlers")

	// Player commands
	registerHandler(deps, matchevents.MatchConfirmRequestedV1, handlers.HandleConfirmRequested)
	registerHandler(deps, matchevents.MatchDeclineRequestedV1, handlers.HandleDeclineRequested)
	registerHandler(deps, matchevents.MatchBanRequestedV1, handlers.HandleBanRequested)

	// Provisioning, evidence and operator commands
	registerHandler(deps, matchevents.MatchVetoCompletedV1, handlers.HandleVetoCompleted)
	registerHandler(deps, matchevents.MatchProvisionRequestedV1, handlers.HandleProvisionRequested)
	registerHandler(deps, matchevents.MatchEvidenceReceivedV1, handlers.HandleEvidenceReceived)
	registerHandler(deps, matchevents.MatchForceEndRequestedV1, handlers.HandleForceEndRequested)

	// Timers
	registerHandler(deps, matchevents.MatchConfirmationExpiredV1, handlers.HandleConfirmationExpired)
	registerHandler(deps, matchevents.MatchProvisioningExpiredV1, handlers.HandleProvisioningExpired)
	registerHandler(deps, matchevents.MatchWarmupExpiredV1, handlers.HandleWarmupExpired)
	registerHandler(deps, matchevents.MatchGoLiveDueV1, handlers.HandleGoLiveDue)
	registerHandler(deps, matchevents.MatchTeardownDueV1, handlers.HandleTeardownDue)

	r.logger.Info("Match module handlers registered successfully")
}

// registerHandler is a generic function for type-safe Watermill handler registration.
func registerHandler[T any](
	deps handlerDeps,
	topic string,
	handler func(context.Context, *T) ([]handlerwrapper.Result, error),
) {
	handlerName := "match." + topic

	deps.router.AddHandler(
		handlerName,
		topic,
		deps.subscriber,
		"",
		deps.publisher,
		handlerwrapper.WrapTransformingTyped(
			handlerName,
			deps.logger,
			deps.tracer,
			deps.metrics,
			handler,
		),
	)
}

// Close shuts down the router.
func (r *MatchRouter) Close() error {
	return r.router.Close()
}
