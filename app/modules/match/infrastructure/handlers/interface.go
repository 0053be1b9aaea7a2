package matchhandlers

import (
	"context"

	matchevents "github.com/Black-And-White-Club/frag-arena/app/events/match"
	"github.com/Black-And-White-Club/frag-arena/pkg/handlerwrapper"
	"github.com/google/uuid"
)

// Handlers interface defines the methods the match router wires to topics.
type Handlers interface {
	// Player commands
	HandleConfirmRequested(ctx context.Context, payload *matchevents.MatchPlayerActionPayloadV1) ([]handlerwrapper.Result, error)
	HandleDeclineRequested(ctx context.Context, payload *matchevents.MatchPlayerActionPayloadV1) ([]handlerwrapper.Result, error)
	HandleBanRequested(ctx context.Context, payload *matchevents.MatchBanRequestedPayloadV1) ([]handlerwrapper.Result, error)

	// Provisioning and evidence
	HandleVetoCompleted(ctx context.Context, payload *matchevents.MatchVetoCompletedPayloadV1) ([]handlerwrapper.Result, error)
	HandleProvisionRequested(ctx context.Context, payload *matchevents.MatchRefPayloadV1) ([]handlerwrapper.Result, error)
	HandleEvidenceReceived(ctx context.Context, payload *matchevents.MatchEvidencePayloadV1) ([]handlerwrapper.Result, error)
	HandleForceEndRequested(ctx context.Context, payload *matchevents.MatchForceEndRequestedPayloadV1) ([]handlerwrapper.Result, error)

	// Timer callbacks
	HandleConfirmationExpired(ctx context.Context, payload *matchevents.MatchRefPayloadV1) ([]handlerwrapper.Result, error)
	HandleProvisioningExpired(ctx context.Context, payload *matchevents.MatchRefPayloadV1) ([]handlerwrapper.Result, error)
	HandleWarmupExpired(ctx context.Context, payload *matchevents.MatchRefPayloadV1) ([]handlerwrapper.Result, error)
	HandleGoLiveDue(ctx context.Context, payload *matchevents.MatchRefPayloadV1) ([]handlerwrapper.Result, error)
	HandleTeardownDue(ctx context.Context, payload *matchevents.MatchRefPayloadV1) ([]handlerwrapper.Result, error)
}

// TimerCanceller drops pending timers of a match that no longer needs them.
type TimerCanceller interface {
	CancelMatchJobs(ctx context.Context, matchID uuid.UUID, kinds ...string) error
}
