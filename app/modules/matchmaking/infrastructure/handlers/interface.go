package matchmakinghandlers

import (
	"context"

	matchevents "github.com/Black-And-White-Club/frag-arena/app/events/match"
	matchmakingevents "github.com/Black-And-White-Club/frag-arena/app/events/matchmaking"
	"github.com/Black-And-White-Club/frag-arena/pkg/handlerwrapper"
)

// Handlers interface defines the methods the matchmaking router wires to topics.
type Handlers interface {
	HandleQueueJoinRequested(ctx context.Context, payload *matchmakingevents.QueueJoinRequestedPayloadV1) ([]handlerwrapper.Result, error)
	HandleQueueLeaveRequested(ctx context.Context, payload *matchmakingevents.QueueLeaveRequestedPayloadV1) ([]handlerwrapper.Result, error)
	HandleMatchCancelled(ctx context.Context, payload *matchevents.MatchCancelledPayloadV1) ([]handlerwrapper.Result, error)
}
