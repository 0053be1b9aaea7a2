package matchservice

import (
	"context"
	"time"

	matchevents "github.com/Black-And-White-Club/frag-arena/app/events/match"
	matchdomain "github.com/Black-And-White-Club/frag-arena/app/modules/match/domain"
	"github.com/Black-And-White-Club/frag-arena/pkg/results"
	"github.com/google/uuid"
)

// ConfirmOutcome reports the confirmation tally. Veto is set by the
// confirmation that completed the tally and opened the veto.
type ConfirmOutcome struct {
	MatchID  uuid.UUID
	Accepted []string
	Required int
	Veto     *VetoProgress
}

// CancelOutcome is a cancelled match and who goes where afterwards.
type CancelOutcome struct {
	MatchID  uuid.UUID
	Mode     string
	Reason   string
	Requeue  []string
	Cooldown []string
	Absent   []string
}

// VetoRound is one veto round as clients see it.
type VetoRound struct {
	Kind     matchdomain.VetoKind
	Pool     []string
	Banned   []string
	Selected string
	NextTurn matchdomain.Team
}

// VetoProgress lists every ban applied by one call, auto-bans included, and
// whether the veto finished.
type VetoProgress struct {
	MatchID   uuid.UUID
	Updates   []VetoRound
	Current   *VetoRound
	Completed bool
	Location  string
	Map       string
}

// Provisioned is a server that is up and waiting for players.
type Provisioned struct {
	MatchID        uuid.UUID
	ServerID       string
	ConnectString  string
	WarmupDeadline time.Time
}

// Countdown is the lobby countdown started by the last player connecting.
type Countdown struct {
	MatchID uuid.UUID
	LiveAt  time.Time
}

// Settlement is the final result of a match.
type Settlement struct {
	MatchID    uuid.UUID
	Mode       string
	WinnerID   string
	WinnerTeam matchdomain.Team
	ScoreA     int
	ScoreB     int
	Ratings    []matchevents.RatingChange
	Forced     bool
	FinishedAt time.Time
}

// ReconcileOutcome is what one piece of evidence changed.
type ReconcileOutcome struct {
	MatchID        uuid.UUID
	NewlyConnected []string
	WentLive       bool
	Countdown      *Countdown
	Settlement     *Settlement
}

// TeardownOutcome reports whether this call released the server.
type TeardownOutcome struct {
	MatchID  uuid.UUID
	ServerID string
	Released bool
}

// Overdue lists matches whose deadline passed without their timer firing.
type Overdue struct {
	Confirmation []uuid.UUID
	Provisioning []uuid.UUID
	Warmup       []uuid.UUID
	GoLive       []uuid.UUID
}

// PollTarget is a running server the status poller should query.
type PollTarget struct {
	MatchID       uuid.UUID
	RemoteMatchID string
	ServerID      string
}

type (
	ConfirmResult   = results.OperationResult[*ConfirmOutcome, error]
	CancelResult    = results.OperationResult[*CancelOutcome, error]
	VetoResult      = results.OperationResult[*VetoProgress, error]
	ProvisionResult = results.OperationResult[*Provisioned, error]
	ReconcileResult = results.OperationResult[*ReconcileOutcome, error]
	CountdownResult = results.OperationResult[*Countdown, error]
	StateResult     = results.OperationResult[matchdomain.State, error]
	SettleResult    = results.OperationResult[*Settlement, error]
	TeardownResult  = results.OperationResult[*TeardownOutcome, error]
)

// Service drives a match from confirmation to settlement.
type Service interface {
	// Confirmation
	Confirm(ctx context.Context, matchID uuid.UUID, userID string) (ConfirmResult, error)
	Decline(ctx context.Context, matchID uuid.UUID, userID string) (CancelResult, error)
	ExpireConfirmation(ctx context.Context, matchID uuid.UUID) (CancelResult, error)

	// Veto
	Ban(ctx context.Context, matchID uuid.UUID, userID string, kind matchdomain.VetoKind, item string) (VetoResult, error)

	// Provisioning and reconciliation
	StartProvisioning(ctx context.Context, matchID uuid.UUID) (ProvisionResult, error)
	Reconcile(ctx context.Context, evidence *matchevents.MatchEvidencePayloadV1) (ReconcileResult, error)
	CheckLobbyReady(ctx context.Context, matchID uuid.UUID) (CountdownResult, error)
	GoLive(ctx context.Context, matchID uuid.UUID) (StateResult, error)

	// Settlement and teardown
	ForceEnd(ctx context.Context, matchID uuid.UUID, winnerTeam string) (SettleResult, error)
	Teardown(ctx context.Context, matchID uuid.UUID) (TeardownResult, error)

	// Supervision
	ExpireProvisioning(ctx context.Context, matchID uuid.UUID) (CancelResult, error)
	ExpireWarmup(ctx context.Context, matchID uuid.UUID) (CancelResult, error)
	SweepDeadlines(ctx context.Context) (Overdue, error)
	ActiveServers(ctx context.Context) ([]PollTarget, error)
}
