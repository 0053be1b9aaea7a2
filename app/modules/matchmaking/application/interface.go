package matchmakingservice

import (
	"context"
	"time"

	matchmakingdb "github.com/Black-And-White-Club/frag-arena/app/modules/matchmaking/infrastructure/repositories"
	"github.com/Black-And-White-Club/frag-arena/pkg/results"
	"github.com/google/uuid"
)

// FormedMatch is one match created by a tick.
type FormedMatch struct {
	MatchID              uuid.UUID
	Mode                 string
	TeamA                []string
	TeamB                []string
	ConfirmationDeadline time.Time
}

// RequeueRequest is the queue side of a cancelled match.
type RequeueRequest struct {
	MatchID  uuid.UUID
	Mode     string
	Requeue  []string
	Cooldown []string
}

// RequeueOutcome reports what RequeuePlayers wrote.
type RequeueOutcome struct {
	MatchID       uuid.UUID
	Requeued      []string
	Cooldown      []string
	CooldownUntil time.Time
}

type (
	QueueResult   = results.OperationResult[*matchmakingdb.QueueEntry, error]
	TickResult    = results.OperationResult[[]FormedMatch, error]
	RequeueResult = results.OperationResult[*RequeueOutcome, error]
)

// Service is the pairing engine.
type Service interface {
	// JoinQueue places the user in the mode's queue.
	JoinQueue(ctx context.Context, userID, mode string) (QueueResult, error)

	// LeaveQueue removes the user's entry.
	LeaveQueue(ctx context.Context, userID string) (QueueResult, error)

	// RunTick pairs one mode's queue. Ticks never overlap within the process.
	RunTick(ctx context.Context, mode string) (TickResult, error)

	// RequeuePlayers puts the players of a cancelled match back in the queue.
	RequeuePlayers(ctx context.Context, req RequeueRequest) (RequeueResult, error)

	// Modes lists the configured queue modes.
	Modes() []string
}
