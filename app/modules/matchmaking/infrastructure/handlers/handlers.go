package matchmakinghandlers

import (
	"context"
	"log/slog"

	matchevents "github.com/Black-And-White-Club/frag-arena/app/events/match"
	matchmakingevents "github.com/Black-And-White-Club/frag-arena/app/events/matchmaking"
	matchmakingservice "github.com/Black-And-White-Club/frag-arena/app/modules/matchmaking/application"
	"github.com/Black-And-White-Club/frag-arena/pkg/handlerwrapper"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/attr"
)

// MatchmakingHandlers implements the Handlers interface.
type MatchmakingHandlers struct {
	service matchmakingservice.Service
	logger  *slog.Logger
}

// NewMatchmakingHandlers creates a new MatchmakingHandlers instance.
func NewMatchmakingHandlers(service matchmakingservice.Service, logger *slog.Logger) Handlers {
	return &MatchmakingHandlers{service: service, logger: logger}
}

func rejected(userID, action string, reason error) []handlerwrapper.Result {
	return []handlerwrapper.Result{{
		Topic: matchmakingevents.QueueRejectedV1,
		Payload: &matchmakingevents.QueueRejectedPayloadV1{
			UserID: userID,
			Action: action,
			Reason: reason.Error(),
		},
	}}
}

// HandleQueueJoinRequested puts the user in the queue or explains why not.
func (h *MatchmakingHandlers) HandleQueueJoinRequested(ctx context.Context, payload *matchmakingevents.QueueJoinRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	result, err := h.service.JoinQueue(ctx, payload.UserID, payload.Mode)
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		return rejected(payload.UserID, "join", *result.Failure), nil
	}

	entry := *result.Success
	return []handlerwrapper.Result{{
		Topic: matchmakingevents.QueueJoinedV1,
		Payload: &matchmakingevents.QueueJoinedPayloadV1{
			UserID:   entry.UserID,
			Mode:     entry.Mode,
			JoinedAt: entry.JoinedAt,
		},
	}}, nil
}

// HandleQueueLeaveRequested withdraws the user's entry.
func (h *MatchmakingHandlers) HandleQueueLeaveRequested(ctx context.Context, payload *matchmakingevents.QueueLeaveRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	result, err := h.service.LeaveQueue(ctx, payload.UserID)
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		return rejected(payload.UserID, "leave", *result.Failure), nil
	}

	return []handlerwrapper.Result{{
		Topic:   matchmakingevents.QueueLeftV1,
		Payload: &matchmakingevents.QueueLeftPayloadV1{UserID: payload.UserID},
	}}, nil
}

// HandleMatchCancelled restores the queue for players of a match that never started.
func (h *MatchmakingHandlers) HandleMatchCancelled(ctx context.Context, payload *matchevents.MatchCancelledPayloadV1) ([]handlerwrapper.Result, error) {
	if len(payload.Requeue) == 0 && len(payload.Cooldown) == 0 {
		return nil, nil
	}

	result, err := h.service.RequeuePlayers(ctx, matchmakingservice.RequeueRequest{
		MatchID:  payload.MatchID,
		Mode:     payload.Mode,
		Requeue:  payload.Requeue,
		Cooldown: payload.Cooldown,
	})
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		h.logger.WarnContext(ctx, "Could not requeue players",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(payload.MatchID),
			attr.Error(*result.Failure),
		)
		return nil, nil
	}

	out := *result.Success
	return []handlerwrapper.Result{{
		Topic: matchmakingevents.PlayersRequeuedV1,
		Payload: &matchmakingevents.PlayersRequeuedPayloadV1{
			MatchID:  out.MatchID,
			Requeued: out.Requeued,
			Cooldown: out.Cooldown,
		},
	}}, nil
}
