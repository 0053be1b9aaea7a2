package matchdb

import (
	"context"
	"time"

	matchdomain "github.com/Black-And-White-Club/frag-arena/app/modules/match/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Repository defines the contract for match persistence. Every conditional
// write reports whether it applied so callers can treat a lost race as a no-op.
type Repository interface {
	// CreateMatch inserts a new match.
	CreateMatch(ctx context.Context, db bun.IDB, match *Match) error

	// GetMatch retrieves a match by id.
	GetMatch(ctx context.Context, db bun.IDB, id uuid.UUID) (*Match, error)

	// GetMatchForUpdate retrieves a match holding its row lock until the transaction ends.
	GetMatchForUpdate(ctx context.Context, db bun.IDB, id uuid.UUID) (*Match, error)

	// GetMatchByRemoteID resolves the provider's match handle.
	GetMatchByRemoteID(ctx context.Context, db bun.IDB, remoteMatchID string) (*Match, error)

	// AddAcceptance records a confirmation while the match is CONFIRMING and
	// returns the accepted set. ok is false when the match is past confirmation.
	AddAcceptance(ctx context.Context, db bun.IDB, id uuid.UUID, userID string) (accepted []string, ok bool, err error)

	// ApplyBan appends a ban to the given veto round only if the round still has
	// expectedBans bans, and stores selected when the ban decides the round.
	ApplyBan(ctx context.Context, db bun.IDB, id uuid.UUID, kind matchdomain.VetoKind, item string, expectedBans int, selected string) (bool, error)

	// FinishMatch moves a WARMUP or LIVE match to FINISHED with its outcome.
	FinishMatch(ctx context.Context, db bun.IDB, id uuid.UUID, outcome Outcome) (bool, error)

	// TransitionState moves the match to `to` only if it is currently in one of `from`.
	TransitionState(ctx context.Context, db bun.IDB, id uuid.UUID, from []matchdomain.State, to matchdomain.State) (bool, error)

	// CancelMatch moves the match to CANCELLED with a reason if it is in one of `from`.
	// An empty `from` means any non-terminal state.
	CancelMatch(ctx context.Context, db bun.IDB, id uuid.UUID, from []matchdomain.State, reason string) (bool, error)

	// ClaimFlag flips a guard flag from false to true; only one caller ever wins.
	ClaimFlag(ctx context.Context, db bun.IDB, id uuid.UUID, flag Flag) (bool, error)

	// ReleaseFlag resets a guard flag after a failed side effect.
	ReleaseFlag(ctx context.Context, db bun.IDB, id uuid.UUID, flag Flag) error

	// EnterConfiguring moves VETO -> CONFIGURING and records when provisioning
	// must have finished.
	EnterConfiguring(ctx context.Context, db bun.IDB, id uuid.UUID, provisionBy time.Time) (bool, error)

	// StartCountdown claims the countdown flag and records when the match goes live.
	StartCountdown(ctx context.Context, db bun.IDB, id uuid.UUID, liveAt time.Time) (bool, error)

	// ActivateServer stores the provisioned server and moves CONFIGURING -> WARMUP.
	ActivateServer(ctx context.Context, db bun.IDB, id uuid.UUID, details ServerDetails) (bool, error)

	// RecordScore raises the stored scores monotonically.
	RecordScore(ctx context.Context, db bun.IDB, id uuid.UUID, scoreA, scoreB int) error

	// ActiveParticipants returns which of userIDs are on a non-terminal match.
	ActiveParticipants(ctx context.Context, db bun.IDB, userIDs []string) ([]string, error)

	// ListByStates returns matches in any of the given states.
	ListByStates(ctx context.Context, db bun.IDB, states ...matchdomain.State) ([]Match, error)

	// CreatePlayerStats pre-creates scoreboard rows, ignoring rows that exist.
	CreatePlayerStats(ctx context.Context, db bun.IDB, stats []PlayerStat) error

	// MarkConnected sets connected=true for a participant; false means it already was.
	MarkConnected(ctx context.Context, db bun.IDB, matchID uuid.UUID, userID string, at time.Time) (bool, error)

	// CountConnected counts participants seen on the server.
	CountConnected(ctx context.Context, db bun.IDB, matchID uuid.UUID) (int, error)

	// ListPlayerStats returns every scoreboard row for a match.
	ListPlayerStats(ctx context.Context, db bun.IDB, matchID uuid.UUID) ([]PlayerStat, error)

	// RecordStatLine raises a participant's cumulative counters monotonically.
	RecordStatLine(ctx context.Context, db bun.IDB, matchID uuid.UUID, userID string, line StatLine) error

	// SetEloChanges stores each participant's rating delta.
	SetEloChanges(ctx context.Context, db bun.IDB, matchID uuid.UUID, changes map[string]int) error

	// InsertHistory appends the settlement record; a second insert for the same match is ignored.
	InsertHistory(ctx context.Context, db bun.IDB, history *MatchHistory) error
}
