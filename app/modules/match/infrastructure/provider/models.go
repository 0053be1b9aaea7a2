package provider

import (
	"time"

	matchevents "github.com/Black-And-White-Club/frag-arena/app/events/match"
	"github.com/Black-And-White-Club/frag-arena/pkg/steamid"
	"github.com/google/uuid"
)

// PlayerStatus is one row of the provider's live scoreboard.
type PlayerStatus struct {
	SteamID   string `json:"steam_id_64"`
	Team      string `json:"team"`
	Connected bool   `json:"connected"`
	Kills     int    `json:"kills"`
	Deaths    int    `json:"deaths"`
	Assists   int    `json:"assists"`
	MVPs      int    `json:"mvps"`
}

// MatchStatus is the provider's view of a match, as returned by GET /api/v1/matches/{id}.
type MatchStatus struct {
	ID         string         `json:"id"`
	Started    bool           `json:"started"`
	Finished   bool           `json:"finished"`
	Team1Score int            `json:"team1_score"`
	Team2Score int            `json:"team2_score"`
	WinnerTeam string         `json:"winner_team,omitempty"` // "team1", "team2" or empty
	Players    []PlayerStatus `json:"players"`
	GameServer string         `json:"game_server_id"`
}

// WinnerSide maps the provider's team names onto A and B.
func WinnerSide(team string) string {
	switch team {
	case "team1", "team_a", "A":
		return "A"
	case "team2", "team_b", "B":
		return "B"
	}
	return ""
}

// Evidence converts a status snapshot into poll evidence. Identities the
// provider reports in a format we cannot parse are dropped.
func (s *MatchStatus) Evidence(matchID uuid.UUID, observedAt time.Time) *matchevents.MatchEvidencePayloadV1 {
	scoreA, scoreB := s.Team1Score, s.Team2Score
	ev := &matchevents.MatchEvidencePayloadV1{
		MatchID:       matchID,
		RemoteMatchID: s.ID,
		Source:        matchevents.SourcePoll,
		ScoreA:        &scoreA,
		ScoreB:        &scoreB,
		GameStarted:   s.Started,
		Finished:      s.Finished,
		WinnerTeam:    WinnerSide(s.WinnerTeam),
		ObservedAt:    observedAt,
	}
	for _, p := range s.Players {
		sid, err := steamid.Normalize(p.SteamID)
		if err != nil {
			continue
		}
		if p.Connected {
			ev.Connected = append(ev.Connected, sid)
		}
		ev.Stats = append(ev.Stats, matchevents.PlayerLine{
			SteamID: sid,
			Kills:   p.Kills,
			Deaths:  p.Deaths,
			Assists: p.Assists,
			MVPs:    p.MVPs,
		})
	}
	return ev
}
