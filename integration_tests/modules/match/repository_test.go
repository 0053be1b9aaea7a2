//go:build integration

package match_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	matchdomain "github.com/Black-And-White-Club/frag-arena/app/modules/match/domain"
	matchdb "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const racers = 16

func race(n int, fn func(i int) bool) int64 {
	var wins atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			if fn(i) {
				wins.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()
	return wins.Load()
}

func TestClaimFlag_OnlyOneWinner(t *testing.T) {
	testEnv.Reset(t)
	repo := matchdb.NewRepository(testEnv.DB)
	ctx := context.Background()

	for _, flag := range []matchdb.Flag{matchdb.FlagProvisioningStarted, matchdb.FlagCountdownStarted, matchdb.FlagTeardownStarted} {
		t.Run(string(flag), func(t *testing.T) {
			m := seedMatch(t, repo, matchdomain.StateConfiguring)

			wins := race(racers, func(int) bool {
				ok, err := repo.ClaimFlag(ctx, nil, m.ID, flag)
				assert.NoError(t, err)
				return ok
			})
			assert.EqualValues(t, 1, wins)

			require.NoError(t, repo.ReleaseFlag(ctx, nil, m.ID, flag))
			ok, err := repo.ClaimFlag(ctx, nil, m.ID, flag)
			require.NoError(t, err)
			assert.True(t, ok, "a released flag can be claimed again")
		})
	}
}

func TestTransitionState_CompareAndSwap(t *testing.T) {
	testEnv.Reset(t)
	repo := matchdb.NewRepository(testEnv.DB)
	ctx := context.Background()
	m := seedMatch(t, repo, matchdomain.StateVeto)

	wins := race(racers, func(int) bool {
		ok, err := repo.TransitionState(ctx, nil, m.ID, []matchdomain.State{matchdomain.StateVeto}, matchdomain.StateConfiguring)
		assert.NoError(t, err)
		return ok
	})
	assert.EqualValues(t, 1, wins)

	got, err := repo.GetMatch(ctx, nil, m.ID)
	require.NoError(t, err)
	assert.Equal(t, matchdomain.StateConfiguring, got.State)
}

func TestEnterConfiguring_RecordsDeadlineOnce(t *testing.T) {
	testEnv.Reset(t)
	repo := matchdb.NewRepository(testEnv.DB)
	ctx := context.Background()
	m := seedMatch(t, repo, matchdomain.StateVeto)
	deadline := time.Now().Add(5 * time.Minute).UTC().Truncate(time.Millisecond)

	wins := race(racers, func(int) bool {
		ok, err := repo.EnterConfiguring(ctx, nil, m.ID, deadline)
		assert.NoError(t, err)
		return ok
	})
	assert.EqualValues(t, 1, wins)

	got, err := repo.GetMatch(ctx, nil, m.ID)
	require.NoError(t, err)
	assert.Equal(t, matchdomain.StateConfiguring, got.State)
	require.NotNil(t, got.ProvisioningDeadline)
	assert.True(t, deadline.Equal(*got.ProvisioningDeadline))
}

func TestStartCountdown_OnlyOneWinner(t *testing.T) {
	testEnv.Reset(t)
	repo := matchdb.NewRepository(testEnv.DB)
	ctx := context.Background()
	m := seedMatch(t, repo, matchdomain.StateWarmup)
	liveAt := time.Now().Add(10 * time.Second).UTC().Truncate(time.Millisecond)

	wins := race(racers, func(int) bool {
		ok, err := repo.StartCountdown(ctx, nil, m.ID, liveAt)
		assert.NoError(t, err)
		return ok
	})
	assert.EqualValues(t, 1, wins)

	got, err := repo.GetMatch(ctx, nil, m.ID)
	require.NoError(t, err)
	assert.True(t, got.CountdownStarted)
	require.NotNil(t, got.LiveAt)
	assert.True(t, liveAt.Equal(*got.LiveAt))
}

func TestCancelMatch_LosesToFinish(t *testing.T) {
	testEnv.Reset(t)
	repo := matchdb.NewRepository(testEnv.DB)
	ctx := context.Background()
	m := seedMatch(t, repo, matchdomain.StateLive)

	var finished, cancelled atomic.Bool
	race(2, func(i int) bool {
		if i == 0 {
			ok, err := repo.FinishMatch(ctx, nil, m.ID, matchdb.Outcome{
				WinnerID: "user-a", WinnerTeam: "A", ScoreA: 13, ScoreB: 7, FinishedAt: time.Now(),
			})
			assert.NoError(t, err)
			finished.Store(ok)
			return ok
		}
		ok, err := repo.CancelMatch(ctx, nil, m.ID, nil, "warmup_timeout")
		assert.NoError(t, err)
		cancelled.Store(ok)
		return ok
	})
	assert.NotEqual(t, finished.Load(), cancelled.Load(), "exactly one terminal write applies")

	got, err := repo.GetMatch(ctx, nil, m.ID)
	require.NoError(t, err)
	assert.True(t, got.State.IsTerminal())
}

func TestAddAcceptance(t *testing.T) {
	testEnv.Reset(t)
	repo := matchdb.NewRepository(testEnv.DB)
	ctx := context.Background()

	t.Run("concurrent confirmations are all recorded once", func(t *testing.T) {
		m := seedMatch(t, repo, matchdomain.StateConfirming)
		race(racers, func(i int) bool {
			_, ok, err := repo.AddAcceptance(ctx, nil, m.ID, fmt.Sprintf("user-%d", i%8))
			assert.NoError(t, err)
			return ok
		})

		got, err := repo.GetMatch(ctx, nil, m.ID)
		require.NoError(t, err)
		assert.Len(t, got.AcceptedPlayers, 8)
	})

	t.Run("rejected once past confirmation", func(t *testing.T) {
		m := seedMatch(t, repo, matchdomain.StateVeto)
		accepted, ok, err := repo.AddAcceptance(ctx, nil, m.ID, "user-a")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, accepted)
	})
}

func TestApplyBan_StaleRoundIsRejected(t *testing.T) {
	testEnv.Reset(t)
	repo := matchdb.NewRepository(testEnv.DB)
	ctx := context.Background()
	m := seedMatch(t, repo, matchdomain.StateVeto)

	wins := race(racers, func(i int) bool {
		ok, err := repo.ApplyBan(ctx, nil, m.ID, matchdomain.VetoLocation, m.LocationPool[i%2], 0, "")
		assert.NoError(t, err)
		return ok
	})
	assert.EqualValues(t, 1, wins)

	got, err := repo.GetMatch(ctx, nil, m.ID)
	require.NoError(t, err)
	assert.Len(t, got.LocationBans, 1)
	assert.Empty(t, got.SelectedLocation)
}

func TestMarkConnected_Idempotent(t *testing.T) {
	testEnv.Reset(t)
	repo := matchdb.NewRepository(testEnv.DB)
	ctx := context.Background()
	m := seedMatch(t, repo, matchdomain.StateWarmup)

	stats := []matchdb.PlayerStat{
		{MatchID: m.ID, UserID: "user-a", SteamID: m.SteamIDs["user-a"], Team: "A"},
		{MatchID: m.ID, UserID: "user-b", SteamID: m.SteamIDs["user-b"], Team: "B"},
	}
	require.NoError(t, repo.CreatePlayerStats(ctx, nil, stats))
	require.NoError(t, repo.CreatePlayerStats(ctx, nil, stats), "re-creating rows is ignored")

	wins := race(racers, func(int) bool {
		ok, err := repo.MarkConnected(ctx, nil, m.ID, "user-a", time.Now())
		assert.NoError(t, err)
		return ok
	})
	assert.EqualValues(t, 1, wins)

	count, err := repo.CountConnected(ctx, nil, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecordScore_Monotonic(t *testing.T) {
	testEnv.Reset(t)
	repo := matchdb.NewRepository(testEnv.DB)
	ctx := context.Background()
	m := seedMatch(t, repo, matchdomain.StateLive)

	require.NoError(t, repo.RecordScore(ctx, nil, m.ID, 5, 3))
	require.NoError(t, repo.RecordScore(ctx, nil, m.ID, 4, 2))

	got, err := repo.GetMatch(ctx, nil, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.ScoreA)
	assert.Equal(t, 3, got.ScoreB)
	assert.Equal(t, 9, got.CurrentRound)
}

func TestActiveParticipants(t *testing.T) {
	testEnv.Reset(t)
	repo := matchdb.NewRepository(testEnv.DB)
	ctx := context.Background()

	live := newMatch(matchdomain.StateLive)
	live.TeamA, live.TeamB = []string{"busy-a"}, []string{"busy-b"}
	require.NoError(t, repo.CreateMatch(ctx, nil, live))

	done := newMatch(matchdomain.StateFinished)
	done.TeamA, done.TeamB = []string{"free-a"}, []string{"free-b"}
	require.NoError(t, repo.CreateMatch(ctx, nil, done))

	active, err := repo.ActiveParticipants(ctx, nil, []string{"busy-a", "busy-b", "free-a", "nobody"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"busy-a", "busy-b"}, active)
}

func TestInsertHistory_WrittenOnce(t *testing.T) {
	testEnv.Reset(t)
	repo := matchdb.NewRepository(testEnv.DB)
	ctx := context.Background()
	m := seedMatch(t, repo, matchdomain.StateFinished)

	history := func() *matchdb.MatchHistory {
		return &matchdb.MatchHistory{
			MatchID:       m.ID,
			Mode:          m.Mode,
			TeamA:         m.TeamA,
			TeamB:         m.TeamB,
			WinnerID:      "user-a",
			WinnerTeam:    "A",
			ScoreA:        13,
			ScoreB:        9,
			RatingModel:   "elo",
			RatingChanges: map[string]int{"user-a": 16, "user-b": -16},
			FinishedAt:    time.Now(),
		}
	}
	require.NoError(t, repo.InsertHistory(ctx, nil, history()))
	require.NoError(t, repo.InsertHistory(ctx, nil, history()))

	count, err := testEnv.DB.NewSelect().Model((*matchdb.MatchHistory)(nil)).Where("match_id = ?", m.ID).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
