package matchservice

import (
	"context"
	"errors"
	"slices"

	matchdomain "github.com/Black-And-White-Club/frag-arena/app/modules/match/domain"
	matchdb "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/repositories"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/attr"
	"github.com/Black-And-White-Club/frag-arena/pkg/results"
	"github.com/google/uuid"
)

const (
	ReasonDeclined            = "declined"
	ReasonConfirmationTimeout = "confirmation_timeout"
	ReasonProvisioningTimeout = "provisioning_timeout"
	ReasonWarmupTimeout       = "warmup_timeout"
)

// humans returns the participants that have to act themselves. Bot accounts
// confirm implicitly and never hold a veto turn.
func humans(m *matchdb.Match) []string {
	out := make([]string, 0, len(m.TeamA)+len(m.TeamB))
	for _, id := range m.Roster().Participants() {
		if !m.IsBot(id) {
			out = append(out, id)
		}
	}
	return out
}

// Confirm records the user's acceptance. The acceptance that completes the
// tally moves the match to VETO and plays any bot turns that open it.
func (s *MatchService) Confirm(ctx context.Context, matchID uuid.UUID, userID string) (ConfirmResult, error) {
	return withTelemetry(s, ctx, "Confirm", matchID, func(ctx context.Context) (ConfirmResult, error) {
		m, err := s.loadMatch(ctx, nil, matchID, false)
		if errors.Is(err, ErrMatchNotFound) {
			return results.FailureResult[*ConfirmOutcome, error](err), nil
		}
		if err != nil {
			return ConfirmResult{}, err
		}
		if _, ok := m.Roster().TeamOf(userID); !ok {
			return results.FailureResult[*ConfirmOutcome, error](ErrNotParticipant), nil
		}
		if m.State != matchdomain.StateConfirming {
			return results.FailureResult[*ConfirmOutcome, error](ErrInvalidState), nil
		}

		accepted, ok, err := s.repo.AddAcceptance(ctx, nil, matchID, userID)
		if err != nil {
			return ConfirmResult{}, err
		}
		if !ok {
			return results.FailureResult[*ConfirmOutcome, error](ErrInvalidState), nil
		}

		required := humans(m)
		out := &ConfirmOutcome{MatchID: matchID, Accepted: accepted, Required: len(required)}
		for _, id := range required {
			if !slices.Contains(accepted, id) {
				return results.SuccessResult[*ConfirmOutcome, error](out), nil
			}
		}

		moved, err := s.repo.TransitionState(ctx, nil, matchID, []matchdomain.State{matchdomain.StateConfirming}, matchdomain.StateVeto)
		if err != nil {
			return ConfirmResult{}, err
		}
		if !moved {
			return results.SuccessResult[*ConfirmOutcome, error](out), nil
		}

		out.Veto = &VetoProgress{MatchID: matchID}
		if err := s.driveVeto(ctx, matchID, out.Veto); err != nil {
			s.logger.ErrorContext(ctx, "Failed to play bot veto turns",
				attr.ExtractCorrelationID(ctx),
				attr.MatchID(matchID),
				attr.Error(err),
			)
		}
		return results.SuccessResult[*ConfirmOutcome, error](out), nil
	})
}

// Decline cancels a match still awaiting confirmation. The decliner is cooled
// down along with everyone who had not accepted.
func (s *MatchService) Decline(ctx context.Context, matchID uuid.UUID, userID string) (CancelResult, error) {
	return withTelemetry(s, ctx, "Decline", matchID, func(ctx context.Context) (CancelResult, error) {
		m, err := s.loadMatch(ctx, nil, matchID, false)
		if errors.Is(err, ErrMatchNotFound) {
			return results.FailureResult[*CancelOutcome, error](err), nil
		}
		if err != nil {
			return CancelResult{}, err
		}
		if _, ok := m.Roster().TeamOf(userID); !ok {
			return results.FailureResult[*CancelOutcome, error](ErrNotParticipant), nil
		}
		return s.cancelConfirmation(ctx, m, ReasonDeclined, userID)
	})
}

// ExpireConfirmation cancels the match when its confirmation deadline passed
// without every player accepting. Late or early deliveries have no effect.
func (s *MatchService) ExpireConfirmation(ctx context.Context, matchID uuid.UUID) (CancelResult, error) {
	return withTelemetry(s, ctx, "ExpireConfirmation", matchID, func(ctx context.Context) (CancelResult, error) {
		m, err := s.loadMatch(ctx, nil, matchID, false)
		if errors.Is(err, ErrMatchNotFound) {
			return results.FailureResult[*CancelOutcome, error](err), nil
		}
		if err != nil {
			return CancelResult{}, err
		}
		if s.now().Before(m.ConfirmationDeadline) {
			return results.FailureResult[*CancelOutcome, error](ErrDeadlinePending), nil
		}
		return s.cancelConfirmation(ctx, m, ReasonConfirmationTimeout, "")
	})
}

func (s *MatchService) cancelConfirmation(ctx context.Context, m *matchdb.Match, reason, decliner string) (CancelResult, error) {
	if m.State != matchdomain.StateConfirming {
		return results.FailureResult[*CancelOutcome, error](ErrInvalidState), nil
	}

	cancelled, err := s.repo.CancelMatch(ctx, nil, m.ID, []matchdomain.State{matchdomain.StateConfirming}, reason)
	if err != nil {
		return CancelResult{}, err
	}
	if !cancelled {
		return results.FailureResult[*CancelOutcome, error](ErrInvalidState), nil
	}

	// Acceptances are frozen once the match left CONFIRMING.
	final, err := s.loadMatch(ctx, nil, m.ID, false)
	if err != nil {
		return CancelResult{}, err
	}

	out := &CancelOutcome{
		MatchID:  m.ID,
		Mode:     m.Mode,
		Reason:   reason,
		Requeue:  []string{},
		Cooldown: []string{},
	}
	for _, id := range humans(final) {
		if id != decliner && final.HasAccepted(id) {
			out.Requeue = append(out.Requeue, id)
		} else {
			out.Cooldown = append(out.Cooldown, id)
		}
	}

	s.metrics.RecordMatchCancelled(ctx, reason)
	s.logger.InfoContext(ctx, "Match cancelled during confirmation",
		attr.ExtractCorrelationID(ctx),
		attr.MatchID(m.ID),
		attr.String("reason", reason),
		attr.Any("requeue", out.Requeue),
		attr.Any("cooldown", out.Cooldown),
	)
	return results.SuccessResult[*CancelOutcome, error](out), nil
}
