package matchdb

import (
	"time"

	matchdomain "github.com/Black-And-White-Club/frag-arena/app/modules/match/domain"
	"github.com/Black-And-White-Club/frag-arena/pkg/steamid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Match is the aggregate root of one competitive game.
type Match struct {
	bun.BaseModel `bun:"table:matches,alias:m"`

	ID    uuid.UUID         `bun:"id,pk,type:uuid"`
	Mode  string            `bun:"mode,notnull"`
	State matchdomain.State `bun:"state,notnull"`

	TeamA           []string `bun:"team_a,array,notnull"`
	TeamB           []string `bun:"team_b,array,notnull"`
	AcceptedPlayers []string `bun:"accepted_players,array,notnull"`

	LocationPool     []string `bun:"location_pool,array,notnull"`
	LocationBans     []string `bun:"location_bans,array,notnull"`
	SelectedLocation string   `bun:"selected_location,nullzero"`
	MapPool          []string `bun:"map_pool,array,notnull"`
	MapBans          []string `bun:"map_bans,array,notnull"`
	SelectedMap      string   `bun:"selected_map,nullzero"`

	// SteamIDs is the server whitelist, user id -> SteamID64.
	SteamIDs map[string]string `bun:"steam_ids,type:jsonb,notnull"`
	// BotUsers lists participants backed by synthetic accounts.
	BotUsers []string `bun:"bot_users,array,notnull"`

	ServerID       string `bun:"server_id,nullzero"`
	RemoteMatchID  string `bun:"remote_match_id,nullzero"`
	ConnectString  string `bun:"connect_string,nullzero"`
	ServerPassword string `bun:"server_password,nullzero"`

	ProvisioningStarted bool `bun:"provisioning_started,notnull,default:false"`
	CountdownStarted    bool `bun:"countdown_started,notnull,default:false"`
	TeardownStarted     bool `bun:"teardown_started,notnull,default:false"`

	ScoreA       int    `bun:"score_a,notnull,default:0"`
	ScoreB       int    `bun:"score_b,notnull,default:0"`
	CurrentRound int    `bun:"current_round,notnull,default:0"`
	WinnerID     string `bun:"winner_id,nullzero"`
	WinnerTeam   string `bun:"winner_team,nullzero"`
	CancelReason string `bun:"cancel_reason,nullzero"`

	ConfirmationDeadline time.Time  `bun:"confirmation_deadline,notnull"`
	ProvisioningDeadline *time.Time `bun:"provisioning_deadline"`
	WarmupDeadline       *time.Time `bun:"warmup_deadline"`
	LiveAt               *time.Time `bun:"live_at"`
	FinishedAt           *time.Time `bun:"finished_at"`
	CreatedAt            time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt            time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

// Roster returns both sides of the match.
func (m *Match) Roster() matchdomain.Roster {
	return matchdomain.Roster{TeamA: m.TeamA, TeamB: m.TeamB}
}

// LocationVeto rebuilds the location round from stored columns.
func (m *Match) LocationVeto() matchdomain.Veto {
	return matchdomain.Veto{Pool: m.LocationPool, Banned: m.LocationBans, Selected: m.SelectedLocation}
}

// MapVeto rebuilds the map round from stored columns.
func (m *Match) MapVeto() matchdomain.Veto {
	return matchdomain.Veto{Pool: m.MapPool, Banned: m.MapBans, Selected: m.SelectedMap}
}

// ActiveVeto is the round currently being played, location first.
func (m *Match) ActiveVeto() (matchdomain.VetoKind, matchdomain.Veto) {
	if m.SelectedLocation == "" {
		return matchdomain.VetoLocation, m.LocationVeto()
	}
	return matchdomain.VetoMap, m.MapVeto()
}

// HasAccepted reports whether the user has confirmed.
func (m *Match) HasAccepted(userID string) bool {
	for _, id := range m.AcceptedPlayers {
		if id == userID {
			return true
		}
	}
	return false
}

// IsBot reports whether the participant is a synthetic account.
func (m *Match) IsBot(userID string) bool {
	for _, id := range m.BotUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// UserBySteamID resolves a SteamID64 back to its user id. Whitelist entries
// stored in another format are normalized before comparing.
func (m *Match) UserBySteamID(steamID string) (string, bool) {
	for user, sid := range m.SteamIDs {
		if sid == steamID {
			return user, true
		}
		if canon, err := steamid.Normalize(sid); err == nil && canon == steamID {
			return user, true
		}
	}
	return "", false
}

// WhitelistID is the canonical SteamID64 for a participant, or the stored
// value when it cannot be normalized (bots).
func (m *Match) WhitelistID(userID string) (string, bool) {
	sid, ok := m.SteamIDs[userID]
	if !ok {
		return "", false
	}
	if canon, err := steamid.Normalize(sid); err == nil {
		return canon, true
	}
	return sid, true
}

// PlayerStat is one participant's scoreboard row. Rows are created when the
// server is up and are never deleted.
type PlayerStat struct {
	bun.BaseModel `bun:"table:player_stats,alias:ps"`

	MatchID     uuid.UUID  `bun:"match_id,pk,type:uuid"`
	UserID      string     `bun:"user_id,pk"`
	SteamID     string     `bun:"steam_id,notnull"`
	Team        string     `bun:"team,notnull"`
	Kills       int        `bun:"kills,notnull,default:0"`
	Deaths      int        `bun:"deaths,notnull,default:0"`
	Assists     int        `bun:"assists,notnull,default:0"`
	MVPs        int        `bun:"mvps,notnull,default:0"`
	Connected   bool       `bun:"connected,notnull,default:false"`
	ConnectedAt *time.Time `bun:"connected_at"`
	EloChange   *int       `bun:"elo_change"`
}

// MatchHistory is the append-only record written at settlement.
type MatchHistory struct {
	bun.BaseModel `bun:"table:match_history,alias:mh"`

	ID            int64          `bun:"id,pk,autoincrement"`
	MatchID       uuid.UUID      `bun:"match_id,type:uuid,notnull,unique"`
	Mode          string         `bun:"mode,notnull"`
	Location      string         `bun:"location,nullzero"`
	Map           string         `bun:"map,nullzero"`
	TeamA         []string       `bun:"team_a,array,notnull"`
	TeamB         []string       `bun:"team_b,array,notnull"`
	WinnerID      string         `bun:"winner_id,notnull"`
	WinnerTeam    string         `bun:"winner_team,notnull"`
	ScoreA        int            `bun:"score_a,notnull"`
	ScoreB        int            `bun:"score_b,notnull"`
	RatingModel   string         `bun:"rating_model,notnull"`
	RatingChanges map[string]int `bun:"rating_changes,type:jsonb,notnull"`
	Forced        bool           `bun:"forced,notnull,default:false"`
	FinishedAt    time.Time      `bun:"finished_at,notnull"`
}

// Flag is one of the write-once guard columns on matches.
type Flag string

const (
	FlagProvisioningStarted Flag = "provisioning_started"
	FlagCountdownStarted    Flag = "countdown_started"
	FlagTeardownStarted     Flag = "teardown_started"
)

// ServerDetails is what a successful provision stores on the match.
type ServerDetails struct {
	ServerID       string
	RemoteMatchID  string
	ConnectString  string
	ServerPassword string
	WarmupDeadline time.Time
}

// StatLine is a cumulative scoreboard observation for one participant.
type StatLine struct {
	Kills   int
	Deaths  int
	Assists int
	MVPs    int
}

// Outcome is what settlement stores on the match row.
type Outcome struct {
	WinnerID   string
	WinnerTeam string
	ScoreA     int
	ScoreB     int
	FinishedAt time.Time
}
