package adapters

import (
	"context"

	matchmakingservice "github.com/Black-And-White-Club/frag-arena/app/modules/matchmaking/application"
	playerdb "github.com/Black-And-White-Club/frag-arena/app/modules/player/infrastructure/repositories"
	"github.com/uptrace/bun"
)

// PlayerDirectoryAdapter adapts the player repository to the PlayerDirectory port.
type PlayerDirectoryAdapter struct {
	repo playerdb.Repository
}

// NewPlayerDirectoryAdapter constructs a new adapter.
func NewPlayerDirectoryAdapter(repo playerdb.Repository) *PlayerDirectoryAdapter {
	return &PlayerDirectoryAdapter{repo: repo}
}

var _ matchmakingservice.PlayerDirectory = (*PlayerDirectoryAdapter)(nil)

func (a *PlayerDirectoryAdapter) Profiles(ctx context.Context, db bun.IDB, userIDs []string) (map[string]matchmakingservice.PlayerProfile, error) {
	players, err := a.repo.GetPlayers(ctx, db, userIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]matchmakingservice.PlayerProfile, len(players))
	for _, p := range players {
		out[p.UserID] = matchmakingservice.PlayerProfile{
			UserID:  p.UserID,
			SteamID: p.SteamID,
			Rating:  p.Rating,
			IsBot:   p.IsBot,
		}
	}
	return out, nil
}
