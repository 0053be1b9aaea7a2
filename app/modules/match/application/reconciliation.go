package matchservice

import (
	"context"
	"errors"

	matchevents "github.com/Black-And-White-Club/frag-arena/app/events/match"
	matchdomain "github.com/Black-And-White-Club/frag-arena/app/modules/match/domain"
	matchdb "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/repositories"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/attr"
	"github.com/Black-And-White-Club/frag-arena/pkg/results"
	"github.com/google/uuid"
)

// Reconcile folds one observation from any signal path into the match.
// Every write is monotone, so the same evidence applied twice, or evidence
// arriving out of order, converges on the same state. A finished signal
// settles the match regardless of what else arrived.
func (s *MatchService) Reconcile(ctx context.Context, ev *matchevents.MatchEvidencePayloadV1) (ReconcileResult, error) {
	return withTelemetry(s, ctx, "Reconcile", ev.MatchID, func(ctx context.Context) (ReconcileResult, error) {
		s.metrics.RecordEvidence(ctx, string(ev.Source))

		m, err := s.resolveEvidence(ctx, ev)
		if errors.Is(err, ErrMatchNotFound) || errors.Is(err, ErrUnresolvedMatch) {
			return results.FailureResult[*ReconcileOutcome, error](err), nil
		}
		if err != nil {
			return ReconcileResult{}, err
		}

		out := &ReconcileOutcome{MatchID: m.ID}
		if m.State != matchdomain.StateWarmup && m.State != matchdomain.StateLive {
			return results.SuccessResult[*ReconcileOutcome, error](out), nil
		}

		now := s.now().UTC()
		if len(ev.Connected) > 0 {
			// Rows normally exist from provisioning; the insert ignores existing ones.
			if err := s.repo.CreatePlayerStats(ctx, nil, scoreboardRows(m)); err != nil {
				return ReconcileResult{}, err
			}
			for _, sid := range ev.Connected {
				userID, ok := m.UserBySteamID(sid)
				if !ok {
					continue
				}
				marked, err := s.repo.MarkConnected(ctx, nil, m.ID, userID, now)
				if err != nil {
					return ReconcileResult{}, err
				}
				if marked {
					out.NewlyConnected = append(out.NewlyConnected, userID)
				}
			}
		}

		for _, line := range ev.Stats {
			userID, ok := m.UserBySteamID(line.SteamID)
			if !ok {
				continue
			}
			if err := s.repo.RecordStatLine(ctx, nil, m.ID, userID, matchdb.StatLine{
				Kills:   line.Kills,
				Deaths:  line.Deaths,
				Assists: line.Assists,
				MVPs:    line.MVPs,
			}); err != nil {
				return ReconcileResult{}, err
			}
		}

		evA, evB := ev.ScoreA, ev.ScoreB
		if evA == nil && evB == nil && ev.SideScore != nil {
			if a, b, ok := teamScores(m, ev.SideScore); ok {
				evA, evB = &a, &b
			} else {
				s.logger.DebugContext(ctx, "Dropped side score with unknown side membership",
					attr.ExtractCorrelationID(ctx),
					attr.MatchID(m.ID),
				)
			}
		}
		scoreA, scoreB := 0, 0
		if evA != nil {
			scoreA = *evA
		}
		if evB != nil {
			scoreB = *evB
		}
		if evA != nil || evB != nil {
			if err := s.repo.RecordScore(ctx, nil, m.ID, scoreA, scoreB); err != nil {
				return ReconcileResult{}, err
			}
		}

		if ev.Finished {
			settled, err := s.settle(ctx, m.ID, matchdomain.Team(ev.WinnerTeam), false)
			if err != nil {
				return ReconcileResult{}, err
			}
			if settled.IsSuccess() {
				out.Settlement = *settled.Success
			}
			return results.SuccessResult[*ReconcileOutcome, error](out), nil
		}

		if m.State == matchdomain.StateWarmup && (ev.GameStarted || scoreA > 0 || scoreB > 0) {
			moved, err := s.repo.TransitionState(ctx, nil, m.ID, []matchdomain.State{matchdomain.StateWarmup}, matchdomain.StateLive)
			if err != nil {
				return ReconcileResult{}, err
			}
			out.WentLive = moved
			return results.SuccessResult[*ReconcileOutcome, error](out), nil
		}

		if m.State == matchdomain.StateWarmup {
			countdown, err := s.checkLobbyReady(ctx, m)
			if err != nil {
				return ReconcileResult{}, err
			}
			out.Countdown = countdown
		}
		return results.SuccessResult[*ReconcileOutcome, error](out), nil
	})
}

func (s *MatchService) resolveEvidence(ctx context.Context, ev *matchevents.MatchEvidencePayloadV1) (*matchdb.Match, error) {
	if ev.MatchID != uuid.Nil {
		return s.loadMatch(ctx, nil, ev.MatchID, false)
	}
	if ev.RemoteMatchID == "" {
		return nil, ErrUnresolvedMatch
	}
	m, err := s.repo.GetMatchByRemoteID(ctx, nil, ev.RemoteMatchID)
	if errors.Is(err, matchdb.ErrNotFound) {
		return nil, ErrMatchNotFound
	}
	return m, err
}

// CheckLobbyReady starts the countdown once every participant is on the server.
func (s *MatchService) CheckLobbyReady(ctx context.Context, matchID uuid.UUID) (CountdownResult, error) {
	return withTelemetry(s, ctx, "CheckLobbyReady", matchID, func(ctx context.Context) (CountdownResult, error) {
		m, err := s.loadMatch(ctx, nil, matchID, false)
		if errors.Is(err, ErrMatchNotFound) {
			return results.FailureResult[*Countdown, error](err), nil
		}
		if err != nil {
			return CountdownResult{}, err
		}
		countdown, err := s.checkLobbyReady(ctx, m)
		if err != nil {
			return CountdownResult{}, err
		}
		if countdown == nil {
			return results.FailureResult[*Countdown, error](ErrInvalidState), nil
		}
		return results.SuccessResult[*Countdown, error](countdown), nil
	})
}

// teamScores orients a per-side score onto teams A and B by where the
// participants seen on each side belong. A score whose sides cannot be told
// apart is not used.
func teamScores(m *matchdb.Match, ss *matchevents.SideScoreV1) (int, int, bool) {
	roster := m.Roster()
	// ctIsA counts evidence that team A is on the CT side.
	ctIsA := 0
	vote := func(sids []string, weight int) {
		for _, sid := range sids {
			userID, ok := m.UserBySteamID(sid)
			if !ok {
				continue
			}
			switch team, _ := roster.TeamOf(userID); team {
			case matchdomain.TeamA:
				ctIsA += weight
			case matchdomain.TeamB:
				ctIsA -= weight
			}
		}
	}
	vote(ss.CTPlayers, 1)
	vote(ss.TPlayers, -1)

	switch {
	case ctIsA > 0:
		return ss.CT, ss.T, true
	case ctIsA < 0:
		return ss.T, ss.CT, true
	}
	return 0, 0, false
}

// checkLobbyReady returns nil unless this call started the countdown.
func (s *MatchService) checkLobbyReady(ctx context.Context, m *matchdb.Match) (*Countdown, error) {
	if m.State != matchdomain.StateWarmup || m.CountdownStarted {
		return nil, nil
	}
	connected, err := s.repo.CountConnected(ctx, nil, m.ID)
	if err != nil {
		return nil, err
	}
	if connected < m.Roster().Size() {
		return nil, nil
	}

	liveAt := s.now().UTC().Add(s.cfg.Countdown)
	claimed, err := s.repo.StartCountdown(ctx, nil, m.ID, liveAt)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, nil
	}

	if err := s.provider.SendConsoleCommand(ctx, m.ServerID, s.cfg.CountdownCommand); err != nil {
		// The go_live timer still moves the match on.
		s.logger.WarnContext(ctx, "Failed to send countdown command",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(m.ID),
			attr.Error(err),
		)
	}

	if err := s.scheduler.ScheduleGoLive(ctx, m.ID, liveAt); err != nil {
		s.logger.ErrorContext(ctx, "Failed to schedule go live",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(m.ID),
			attr.Error(err),
		)
	}

	s.logger.InfoContext(ctx, "Lobby ready, countdown started",
		attr.ExtractCorrelationID(ctx),
		attr.MatchID(m.ID),
		attr.Time("live_at", liveAt),
	)
	return &Countdown{MatchID: m.ID, LiveAt: liveAt}, nil
}

// GoLive moves a WARMUP match to LIVE when the countdown elapses.
func (s *MatchService) GoLive(ctx context.Context, matchID uuid.UUID) (StateResult, error) {
	return withTelemetry(s, ctx, "GoLive", matchID, func(ctx context.Context) (StateResult, error) {
		moved, err := s.repo.TransitionState(ctx, nil, matchID, []matchdomain.State{matchdomain.StateWarmup}, matchdomain.StateLive)
		if err != nil {
			return StateResult{}, err
		}
		if !moved {
			return results.FailureResult[matchdomain.State, error](ErrInvalidState), nil
		}
		return results.SuccessResult[matchdomain.State, error](matchdomain.StateLive), nil
	})
}
