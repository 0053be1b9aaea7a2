package adapters

import (
	"context"

	matchdomain "github.com/Black-And-White-Club/frag-arena/app/modules/match/domain"
	matchdb "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/repositories"
	matchmakingservice "github.com/Black-And-White-Club/frag-arena/app/modules/matchmaking/application"
	"github.com/uptrace/bun"
)

// MatchStoreAdapter adapts the match repository to the pairing engine's MatchStore port.
type MatchStoreAdapter struct {
	repo matchdb.Repository
}

// NewMatchStoreAdapter constructs a new adapter.
func NewMatchStoreAdapter(repo matchdb.Repository) *MatchStoreAdapter {
	return &MatchStoreAdapter{repo: repo}
}

var _ matchmakingservice.MatchStore = (*MatchStoreAdapter)(nil)

// CreateMatch opens the match in CONFIRMING. A single-item pool is decided up front.
func (a *MatchStoreAdapter) CreateMatch(ctx context.Context, db bun.IDB, m matchmakingservice.NewMatch) error {
	locations, err := matchdomain.NewVeto(m.LocationPool)
	if err != nil {
		return err
	}
	maps, err := matchdomain.NewVeto(m.MapPool)
	if err != nil {
		return err
	}

	botUsers := m.BotUsers
	if botUsers == nil {
		botUsers = []string{}
	}

	return a.repo.CreateMatch(ctx, db, &matchdb.Match{
		ID:                   m.ID,
		Mode:                 m.Mode,
		State:                matchdomain.StateConfirming,
		TeamA:                m.TeamA,
		TeamB:                m.TeamB,
		AcceptedPlayers:      []string{},
		LocationPool:         locations.Pool,
		LocationBans:         []string{},
		SelectedLocation:     locations.Selected,
		MapPool:              maps.Pool,
		MapBans:              []string{},
		SelectedMap:          maps.Selected,
		SteamIDs:             m.SteamIDs,
		BotUsers:             botUsers,
		ConfirmationDeadline: m.ConfirmationDeadline,
	})
}

func (a *MatchStoreAdapter) ActiveParticipants(ctx context.Context, db bun.IDB, userIDs []string) ([]string, error) {
	return a.repo.ActiveParticipants(ctx, db, userIDs)
}
