package matchservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	matchdomain "github.com/Black-And-White-Club/frag-arena/app/modules/match/domain"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/attr"
	"github.com/Black-And-White-Club/frag-arena/pkg/results"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// sweepGrace keeps the sweep from racing timers that are about to fire.
const sweepGrace = 5 * time.Second

// ExpireProvisioning cancels a match that never got a server before its
// provisioning deadline. Nobody is at fault, so every player is requeued.
func (s *MatchService) ExpireProvisioning(ctx context.Context, matchID uuid.UUID) (CancelResult, error) {
	return withTelemetry(s, ctx, "ExpireProvisioning", matchID, func(ctx context.Context) (CancelResult, error) {
		m, err := s.loadMatch(ctx, nil, matchID, false)
		if errors.Is(err, ErrMatchNotFound) {
			return results.FailureResult[*CancelOutcome, error](err), nil
		}
		if err != nil {
			return CancelResult{}, err
		}
		if m.State != matchdomain.StateConfiguring {
			return results.FailureResult[*CancelOutcome, error](ErrInvalidState), nil
		}
		if m.ProvisioningDeadline == nil || s.now().Before(*m.ProvisioningDeadline) {
			return results.FailureResult[*CancelOutcome, error](ErrDeadlinePending), nil
		}

		cancelled, err := s.repo.CancelMatch(ctx, nil, matchID, []matchdomain.State{matchdomain.StateConfiguring}, ReasonProvisioningTimeout)
		if err != nil {
			return CancelResult{}, err
		}
		if !cancelled {
			return results.FailureResult[*CancelOutcome, error](ErrInvalidState), nil
		}

		out := &CancelOutcome{
			MatchID:  matchID,
			Mode:     m.Mode,
			Reason:   ReasonProvisioningTimeout,
			Requeue:  humans(m),
			Cooldown: []string{},
		}
		s.metrics.RecordMatchCancelled(ctx, ReasonProvisioningTimeout)
		s.logger.WarnContext(ctx, "Match cancelled after provisioning timeout",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(matchID),
			attr.Bool("provisioning_started", m.ProvisioningStarted),
		)
		return results.SuccessResult[*CancelOutcome, error](out), nil
	})
}

// ExpireWarmup cancels a match whose players did not all connect in time,
// releases the server and records an abandon for each absent player.
func (s *MatchService) ExpireWarmup(ctx context.Context, matchID uuid.UUID) (CancelResult, error) {
	return withTelemetry(s, ctx, "ExpireWarmup", matchID, func(ctx context.Context) (CancelResult, error) {
		m, err := s.loadMatch(ctx, nil, matchID, false)
		if errors.Is(err, ErrMatchNotFound) {
			return results.FailureResult[*CancelOutcome, error](err), nil
		}
		if err != nil {
			return CancelResult{}, err
		}
		if m.State != matchdomain.StateWarmup {
			return results.FailureResult[*CancelOutcome, error](ErrInvalidState), nil
		}
		if m.WarmupDeadline != nil && s.now().Before(*m.WarmupDeadline) {
			return results.FailureResult[*CancelOutcome, error](ErrDeadlinePending), nil
		}

		result, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (CancelResult, error) {
			stats, err := s.repo.ListPlayerStats(ctx, db, matchID)
			if err != nil {
				return CancelResult{}, err
			}
			connected := make(map[string]bool, len(stats))
			for _, row := range stats {
				connected[row.UserID] = row.Connected
			}

			absent := []string{}
			for _, id := range m.Roster().Participants() {
				if !connected[id] && !m.IsBot(id) {
					absent = append(absent, id)
				}
			}
			if len(absent) == 0 {
				return results.FailureResult[*CancelOutcome, error](ErrLobbyReady), nil
			}

			cancelled, err := s.repo.CancelMatch(ctx, db, matchID, []matchdomain.State{matchdomain.StateWarmup}, ReasonWarmupTimeout)
			if err != nil {
				return CancelResult{}, err
			}
			if !cancelled {
				return results.FailureResult[*CancelOutcome, error](ErrInvalidState), nil
			}
			if err := s.players.IncrementAbandons(ctx, db, absent); err != nil {
				return CancelResult{}, fmt.Errorf("failed to record abandons: %w", err)
			}

			return results.SuccessResult[*CancelOutcome, error](&CancelOutcome{
				MatchID: matchID,
				Mode:    m.Mode,
				Reason:  ReasonWarmupTimeout,
				Absent:  absent,
			}), nil
		})
		if err != nil || !result.IsSuccess() {
			return result, err
		}

		s.metrics.RecordMatchCancelled(ctx, ReasonWarmupTimeout)
		if _, err := s.teardown(ctx, m); err != nil {
			s.logger.ErrorContext(ctx, "Failed to tear down after warmup timeout",
				attr.ExtractCorrelationID(ctx),
				attr.MatchID(matchID),
				attr.Error(err),
			)
		}

		s.logger.InfoContext(ctx, "Match cancelled after warmup timeout",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(matchID),
			attr.Any("absent", (*result.Success).Absent),
		)
		return result, nil
	})
}

// SweepDeadlines finds matches whose deadline passed without the timer moving
// them on, so their expiry can be redelivered. A WARMUP match whose countdown
// already started is due to go live rather than to expire.
func (s *MatchService) SweepDeadlines(ctx context.Context) (Overdue, error) {
	matches, err := s.repo.ListByStates(ctx, nil,
		matchdomain.StateConfirming,
		matchdomain.StateConfiguring,
		matchdomain.StateWarmup,
	)
	if err != nil {
		return Overdue{}, fmt.Errorf("failed to list open matches: %w", err)
	}

	cutoff := s.now().Add(-sweepGrace)
	passed := func(t *time.Time) bool { return t != nil && t.Before(cutoff) }

	var out Overdue
	for _, m := range matches {
		switch m.State {
		case matchdomain.StateConfirming:
			if m.ConfirmationDeadline.Before(cutoff) {
				out.Confirmation = append(out.Confirmation, m.ID)
			}
		case matchdomain.StateConfiguring:
			if passed(m.ProvisioningDeadline) {
				out.Provisioning = append(out.Provisioning, m.ID)
			}
		case matchdomain.StateWarmup:
			switch {
			case m.CountdownStarted && m.LiveAt != nil:
				if passed(m.LiveAt) {
					out.GoLive = append(out.GoLive, m.ID)
				}
			case m.CountdownStarted:
				if passed(m.WarmupDeadline) {
					out.GoLive = append(out.GoLive, m.ID)
				}
			case passed(m.WarmupDeadline):
				out.Warmup = append(out.Warmup, m.ID)
			}
		}
	}
	return out, nil
}

// ActiveServers lists the running servers the status poller should query.
func (s *MatchService) ActiveServers(ctx context.Context) ([]PollTarget, error) {
	matches, err := s.repo.ListByStates(ctx, nil, matchdomain.StateWarmup, matchdomain.StateLive)
	if err != nil {
		return nil, fmt.Errorf("failed to list running matches: %w", err)
	}
	out := make([]PollTarget, 0, len(matches))
	for _, m := range matches {
		if m.RemoteMatchID == "" {
			continue
		}
		out = append(out, PollTarget{MatchID: m.ID, RemoteMatchID: m.RemoteMatchID, ServerID: m.ServerID})
	}
	return out, nil
}
