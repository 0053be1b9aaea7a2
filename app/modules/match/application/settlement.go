package matchservice

import (
	"context"
	"errors"
	"fmt"

	matchevents "github.com/Black-And-White-Club/frag-arena/app/events/match"
	matchdomain "github.com/Black-And-White-Club/frag-arena/app/modules/match/domain"
	matchdb "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/repositories"
	playerdb "github.com/Black-And-White-Club/frag-arena/app/modules/player/infrastructure/repositories"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/attr"
	"github.com/Black-And-White-Club/frag-arena/pkg/results"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ForceEnd settles a running match by hand. An empty winnerTeam decides by score.
func (s *MatchService) ForceEnd(ctx context.Context, matchID uuid.UUID, winnerTeam string) (SettleResult, error) {
	return withTelemetry(s, ctx, "ForceEnd", matchID, func(ctx context.Context) (SettleResult, error) {
		team := matchdomain.Team(winnerTeam)
		if team != "" && team != matchdomain.TeamA && team != matchdomain.TeamB {
			return results.FailureResult[*Settlement, error](ErrInvalidTeam), nil
		}
		return s.settle(ctx, matchID, team, true)
	})
}

// settle finishes the match exactly once. Everything it writes commits
// together under the match row lock; the teardown timer is armed after commit.
func (s *MatchService) settle(ctx context.Context, matchID uuid.UUID, hint matchdomain.Team, forced bool) (SettleResult, error) {
	result, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (SettleResult, error) {
		m, err := s.loadMatch(ctx, db, matchID, true)
		if errors.Is(err, ErrMatchNotFound) {
			return results.FailureResult[*Settlement, error](err), nil
		}
		if err != nil {
			return SettleResult{}, err
		}
		if m.State != matchdomain.StateWarmup && m.State != matchdomain.StateLive {
			return results.FailureResult[*Settlement, error](ErrInvalidState), nil
		}

		winner := hint
		if winner != matchdomain.TeamA && winner != matchdomain.TeamB {
			winner = matchdomain.DecideWinner(m.ScoreA, m.ScoreB, s.coin)
		}
		roster := m.Roster()
		winners := roster.Members(winner)
		losers := roster.Members(winner.Other())

		out := &Settlement{
			MatchID:    matchID,
			Mode:       m.Mode,
			WinnerTeam: winner,
			ScoreA:     m.ScoreA,
			ScoreB:     m.ScoreB,
			Forced:     forced,
			FinishedAt: s.now().UTC(),
		}
		if len(winners) > 0 {
			out.WinnerID = winners[0]
		}

		finished, err := s.repo.FinishMatch(ctx, db, matchID, matchdb.Outcome{
			WinnerID:   out.WinnerID,
			WinnerTeam: string(winner),
			ScoreA:     out.ScoreA,
			ScoreB:     out.ScoreB,
			FinishedAt: out.FinishedAt,
		})
		if err != nil {
			return SettleResult{}, err
		}
		if !finished {
			return results.FailureResult[*Settlement, error](ErrInvalidState), nil
		}

		out.Ratings, err = s.applyRatings(ctx, db, matchID, winners, losers)
		if err != nil {
			return SettleResult{}, err
		}

		changes := make(map[string]int, len(out.Ratings))
		for _, rc := range out.Ratings {
			changes[rc.UserID] = rc.After - rc.Before
		}
		if err := s.repo.SetEloChanges(ctx, db, matchID, changes); err != nil {
			return SettleResult{}, err
		}

		if err := s.repo.InsertHistory(ctx, db, &matchdb.MatchHistory{
			MatchID:       matchID,
			Mode:          m.Mode,
			Location:      m.SelectedLocation,
			Map:           m.SelectedMap,
			TeamA:         m.TeamA,
			TeamB:         m.TeamB,
			WinnerID:      out.WinnerID,
			WinnerTeam:    string(winner),
			ScoreA:        out.ScoreA,
			ScoreB:        out.ScoreB,
			RatingModel:   s.rating.Name(),
			RatingChanges: changes,
			Forced:        forced,
			FinishedAt:    out.FinishedAt,
		}); err != nil {
			return SettleResult{}, err
		}

		return results.SuccessResult[*Settlement, error](out), nil
	})
	if err != nil || !result.IsSuccess() {
		return result, err
	}

	settled := *result.Success
	s.metrics.RecordMatchFinished(ctx, settled.Mode, forced)
	if err := s.scheduler.ScheduleTeardown(ctx, matchID, settled.FinishedAt.Add(s.cfg.TeardownDelay)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to schedule teardown",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(matchID),
			attr.Error(err),
		)
	}
	s.logger.InfoContext(ctx, "Match settled",
		attr.ExtractCorrelationID(ctx),
		attr.MatchID(matchID),
		attr.String("winner_team", string(settled.WinnerTeam)),
		attr.Int("score_a", settled.ScoreA),
		attr.Int("score_b", settled.ScoreB),
		attr.Bool("forced", forced),
	)
	return result, nil
}

// applyRatings runs the configured model over both sides and pays the rewards.
func (s *MatchService) applyRatings(ctx context.Context, db bun.IDB, matchID uuid.UUID, winners, losers []string) ([]matchevents.RatingChange, error) {
	ids := make([]string, 0, len(winners)+len(losers))
	ids = append(ids, winners...)
	ids = append(ids, losers...)

	players, err := s.players.GetPlayersForUpdate(ctx, db, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock players: %w", err)
	}
	byID := make(map[string]playerdb.Player, len(players))
	for _, p := range players {
		byID[p.UserID] = p
	}

	ratingsOf := func(users []string) []int {
		out := make([]int, len(users))
		for i, id := range users {
			if p, ok := byID[id]; ok {
				out[i] = p.Rating
			} else {
				out[i] = playerdb.DefaultRating
			}
		}
		return out
	}
	before := append(ratingsOf(winners), ratingsOf(losers)...)
	newWinners, newLosers := s.rating.Apply(ratingsOf(winners), ratingsOf(losers))
	after := append(newWinners, newLosers...)

	changes := make([]matchevents.RatingChange, 0, len(ids))
	for i, id := range ids {
		reward := s.cfg.LossReward
		if i < len(winners) {
			reward = s.cfg.WinReward
		}
		if _, ok := byID[id]; !ok {
			s.logger.WarnContext(ctx, "Participant has no player profile, skipping rating",
				attr.MatchID(matchID),
				attr.UserID(id),
			)
			continue
		}
		if err := s.players.ApplySettlement(ctx, db, id, after[i], reward); err != nil {
			return nil, fmt.Errorf("failed to settle player %s: %w", id, err)
		}
		changes = append(changes, matchevents.RatingChange{UserID: id, Before: before[i], After: after[i]})
	}
	return changes, nil
}
