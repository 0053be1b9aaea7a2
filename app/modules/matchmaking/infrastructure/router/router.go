package matchmakingrouter

import (
	"context"
	"log/slog"

	matchevents "github.com/Black-And-White-Club/frag-arena/app/events/match"
	matchmakingevents "github.com/Black-And-White-Club/frag-arena/app/events/matchmaking"
	matchmakinghandlers "github.com/Black-And-White-Club/frag-arena/app/modules/matchmaking/infrastructure/handlers"
	"github.com/Black-And-White-Club/frag-arena/pkg/eventbus"
	"github.com/Black-And-White-Club/frag-arena/pkg/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"
)

// MatchmakingRouter handles Watermill handler registration for queue events.
type MatchmakingRouter struct {
	logger     *slog.Logger
	router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	metrics    handlerwrapper.Metrics
	tracer     trace.Tracer
}

// NewMatchmakingRouter creates a new MatchmakingRouter.
func NewMatchmakingRouter(
	logger *slog.Logger,
	router *message.Router,
	subscriber eventbus.EventBus,
	publisher eventbus.EventBus,
	metrics handlerwrapper.Metrics,
	tracer trace.Tracer,
) *MatchmakingRouter {
	return &MatchmakingRouter{
		logger:     logger,
		router:     router,
		subscriber: subscriber,
		publisher:  publisher,
		metrics:    metrics,
		tracer:     tracer,
	}
}

// Configure sets up the router with handlers.
func (r *MatchmakingRouter) Configure(_ context.Context, handlers matchmakinghandlers.Handlers) error {
	r.registerHandlers(handlers)
	return nil
}

// handlerDeps bundles dependencies for handler registration.
type handlerDeps struct {
	router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    handlerwrapper.Metrics
}

func (r *MatchmakingRouter) registerHandlers(handlers matchmakinghandlers.Handlers) {
	deps := handlerDeps{
		router:     r.router,
		subscriber: r.subscriber,
		publisher:  r.publisher,
		logger:     r.logger,
		tracer:     r.tracer,
		metrics:    r.metrics,
	}

	r.logger.Info("Registering matchmaking module handlers",
		slog.String("join_subject", matchmakingevents.QueueJoinRequestedV1),
		slog.String("leave_subject", matchmakingevents.QueueLeaveRequestedV1),
		slog.String("cancelled_subject", matchevents.MatchCancelledV1),
	)

	registerHandler(deps, matchmakingevents.QueueJoinRequestedV1, handlers.HandleQueueJoinRequested)
	registerHandler(deps, matchmakingevents.QueueLeaveRequestedV1, handlers.HandleQueueLeaveRequested)
	registerHandler(deps, matchevents.MatchCancelledV1, handlers.HandleMatchCancelled)

	r.logger.Info("Matchmaking module handlers registered successfully")
}

// registerHandler is a generic function for type-safe Watermill handler registration.
func registerHandler[T any](
	deps handlerDeps,
	topic string,
	handler func(context.Context, *T) ([]handlerwrapper.Result, error),
) {
	handlerName := "matchmaking." + topic

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
func (r *MatchmakingRouter) Close() error {
	return r.router.Close()
}
