package matchmakingservice

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PlayerProfile is the minimal player data pairing needs.
type PlayerProfile struct {
	UserID  string
	SteamID string
	Rating  int
	IsBot   bool
}

// PlayerDirectory resolves queued users to their profiles. Unknown users are omitted.
type PlayerDirectory interface {
	Profiles(ctx context.Context, db bun.IDB, userIDs []string) (map[string]PlayerProfile, error)
}

// NewMatch is everything the match module needs to open a match in CONFIRMING.
type NewMatch struct {
	ID                   uuid.UUID
	Mode                 string
	TeamA                []string
	TeamB                []string
	LocationPool         []string
	MapPool              []string
	SteamIDs             map[string]string
	BotUsers             []string
	ConfirmationDeadline time.Time
}

// MatchStore is the slice of the match module the pairing engine writes through.
// CreateMatch runs on the caller's transaction so the insert and the queue
// deletes commit together.
type MatchStore interface {
	CreateMatch(ctx context.Context, db bun.IDB, m NewMatch) error
	ActiveParticipants(ctx context.Context, db bun.IDB, userIDs []string) ([]string, error)
}

// ConfirmationScheduler arms the confirmation-timeout watchdog for a new match.
type ConfirmationScheduler interface {
	ScheduleConfirmationTimeout(ctx context.Context, matchID uuid.UUID, at time.Time) error
}
