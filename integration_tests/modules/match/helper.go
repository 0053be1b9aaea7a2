//go:build integration

package match_test

import (
	"context"
	"testing"
	"time"

	matchdomain "github.com/Black-And-White-Club/frag-arena/app/modules/match/domain"
	matchdb "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newMatch(state matchdomain.State) *matchdb.Match {
	return &matchdb.Match{
		ID:                   uuid.New(),
		Mode:                 "1v1",
		State:                state,
		TeamA:                []string{"user-a"},
		TeamB:                []string{"user-b"},
		AcceptedPlayers:      []string{},
		LocationPool:         []string{"eu-west", "us-east", "ap-south"},
		LocationBans:         []string{},
		MapPool:              []string{"de_dust2", "de_mirage", "de_inferno"},
		MapBans:              []string{},
		SteamIDs:             map[string]string{"user-a": "76561198000000001", "user-b": "76561198000000002"},
		BotUsers:             []string{},
		ConfirmationDeadline: time.Now().Add(30 * time.Second),
	}
}

func seedMatch(t *testing.T, repo matchdb.Repository, state matchdomain.State) *matchdb.Match {
	t.Helper()
	m := newMatch(state)
	require.NoError(t, repo.CreateMatch(context.Background(), nil, m))
	return m
}
