// Package matchevents defines the match lifecycle topics and their payloads.
package matchevents

import (
	"time"

	"github.com/google/uuid"
)

// Commands and timer callbacks.
const (
	MatchConfirmRequestedV1    = "match.confirm.requested.v1"
	MatchDeclineRequestedV1    = "match.decline.requested.v1"
	MatchBanRequestedV1        = "match.veto.ban.requested.v1"
	MatchProvisionRequestedV1  = "match.provision.requested.v1"
	MatchForceEndRequestedV1   = "match.force_end.requested.v1"
	MatchEvidenceReceivedV1    = "match.evidence.received.v1"
	MatchConfirmationExpiredV1 = "match.confirmation.expired.v1"
	MatchProvisioningExpiredV1 = "match.provisioning.expired.v1"
	MatchWarmupExpiredV1       = "match.warmup.expired.v1"
	MatchGoLiveDueV1           = "match.golive.due.v1"
	MatchTeardownDueV1         = "match.teardown.due.v1"
)

// Notifications.
const (
	MatchCreatedV1             = "match.created.v1"
	MatchConfirmationUpdatedV1 = "match.confirmation.updated.v1"
	MatchVetoStartedV1         = "match.veto.started.v1"
	MatchVetoUpdatedV1         = "match.veto.updated.v1"
	MatchVetoCompletedV1       = "match.veto.completed.v1"
	MatchProvisionedV1         = "match.provisioned.v1"
	MatchProvisioningFailedV1  = "match.provisioning.failed.v1"
	MatchCountdownStartedV1    = "match.countdown.started.v1"
	MatchLiveV1                = "match.live.v1"
	MatchFinishedV1            = "match.finished.v1"
	MatchCancelledV1           = "match.cancelled.v1"
	MatchActionRejectedV1      = "match.action.rejected.v1"
	// MatchStateChangedV1 is published scoped by match id: match.state.changed.v1.<id>.
	MatchStateChangedV1 = "match.state.changed.v1"
)

// MatchRefPayloadV1 is the payload of every timer and command that only names a match.
type MatchRefPayloadV1 struct {
	MatchID uuid.UUID `json:"match_id"`
}

type MatchCreatedPayloadV1 struct {
	MatchID              uuid.UUID `json:"match_id"`
	Mode                 string    `json:"mode"`
	TeamA                []string  `json:"team_a"`
	TeamB                []string  `json:"team_b"`
	ConfirmationDeadline time.Time `json:"confirmation_deadline"`
}

type MatchPlayerActionPayloadV1 struct {
	MatchID uuid.UUID `json:"match_id"`
	UserID  string    `json:"user_id"`
}

type MatchConfirmationUpdatedPayloadV1 struct {
	MatchID  uuid.UUID `json:"match_id"`
	Accepted []string  `json:"accepted"`
	Required int       `json:"required"`
}

type MatchBanRequestedPayloadV1 struct {
	MatchID uuid.UUID `json:"match_id"`
	UserID  string    `json:"user_id"`
	Kind    string    `json:"kind"`
	Item    string    `json:"item"`
}

type MatchVetoUpdatedPayloadV1 struct {
	MatchID  uuid.UUID `json:"match_id"`
	Kind     string    `json:"kind"`
	Pool     []string  `json:"pool"`
	Banned   []string  `json:"banned"`
	Selected string    `json:"selected,omitempty"`
	NextTurn string    `json:"next_turn,omitempty"`
}

type MatchVetoCompletedPayloadV1 struct {
	MatchID  uuid.UUID `json:"match_id"`
	Location string    `json:"location"`
	Map      string    `json:"map"`
}

type MatchProvisionedPayloadV1 struct {
	MatchID        uuid.UUID `json:"match_id"`
	ConnectString  string    `json:"connect_string"`
	WarmupDeadline time.Time `json:"warmup_deadline"`
}

type MatchProvisioningFailedPayloadV1 struct {
	MatchID uuid.UUID `json:"match_id"`
	Reason  string    `json:"reason"`
}

type MatchCountdownStartedPayloadV1 struct {
	MatchID uuid.UUID `json:"match_id"`
	LiveAt  time.Time `json:"live_at"`
}

type MatchForceEndRequestedPayloadV1 struct {
	MatchID     uuid.UUID `json:"match_id"`
	WinnerTeam  string    `json:"winner_team,omitempty"`
	RequestedBy string    `json:"requested_by"`
}

type RatingChange struct {
	UserID string `json:"user_id"`
	Before int    `json:"before"`
	After  int    `json:"after"`
}

type MatchFinishedPayloadV1 struct {
	MatchID    uuid.UUID      `json:"match_id"`
	WinnerID   string         `json:"winner_id"`
	WinnerTeam string         `json:"winner_team"`
	ScoreA     int            `json:"score_a"`
	ScoreB     int            `json:"score_b"`
	Ratings    []RatingChange `json:"ratings"`
	FinishedAt time.Time      `json:"finished_at"`
}

// MatchCancelledPayloadV1 tells matchmaking whom to put back in the queue and whom to cool down.
type MatchCancelledPayloadV1 struct {
	MatchID  uuid.UUID `json:"match_id"`
	Mode     string    `json:"mode"`
	Reason   string    `json:"reason"`
	Requeue  []string  `json:"requeue,omitempty"`
	Cooldown []string  `json:"cooldown,omitempty"`
	Absent   []string  `json:"absent,omitempty"`
}

type MatchActionRejectedPayloadV1 struct {
	MatchID uuid.UUID `json:"match_id"`
	UserID  string    `json:"user_id,omitempty"`
	Action  string    `json:"action"`
	Reason  string    `json:"reason"`
}

type MatchStateChangedPayloadV1 struct {
	MatchID uuid.UUID `json:"match_id"`
	State   string    `json:"state"`
}

// EvidenceSource names the channel a reconciliation signal came from.
type EvidenceSource string

const (
	SourceWebhook EvidenceSource = "webhook"
	SourcePoll    EvidenceSource = "poll"
	SourceLog     EvidenceSource = "log"
)

// PlayerLine is a cumulative scoreboard row keyed by SteamID64.
type PlayerLine struct {
	SteamID string `json:"steam_id"`
	Kills   int    `json:"kills"`
	Deaths  int    `json:"deaths"`
	Assists int    `json:"assists"`
	MVPs    int    `json:"mvps"`
}

// SideScoreV1 is a score the game server reports per side rather than per
// team. Sides swap at halftime, so it carries the players seen on each side
// when the score was reported.
type SideScoreV1 struct {
	CT        int      `json:"ct"`
	T         int      `json:"t"`
	CTPlayers []string `json:"ct_players,omitempty"`
	TPlayers  []string `json:"t_players,omitempty"`
}

// MatchEvidencePayloadV1 is one observation from any signal path. Either MatchID
// or RemoteMatchID identifies the match. Identities are already SteamID64.
type MatchEvidencePayloadV1 struct {
	MatchID       uuid.UUID      `json:"match_id,omitempty"`
	RemoteMatchID string         `json:"remote_match_id,omitempty"`
	Source        EvidenceSource `json:"source"`
	Connected     []string       `json:"connected,omitempty"`
	Stats         []PlayerLine   `json:"stats,omitempty"`
	ScoreA        *int           `json:"score_a,omitempty"`
	ScoreB        *int           `json:"score_b,omitempty"`
	SideScore     *SideScoreV1   `json:"side_score,omitempty"`
	GameStarted   bool           `json:"game_started,omitempty"`
	Finished      bool           `json:"finished,omitempty"`
	WinnerTeam    string         `json:"winner_team,omitempty"`
	ObservedAt    time.Time      `json:"observed_at"`
}
