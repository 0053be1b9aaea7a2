package matchservice

import (
	"context"
	"errors"

	matchdb "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/repositories"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/attr"
	"github.com/Black-And-White-Club/frag-arena/pkg/results"
	"github.com/google/uuid"
)

// Teardown releases the server of a finished or cancelled match. The
// teardown flag makes the provider calls happen at most once; a failure is
// counted and logged but the match stays terminal either way.
func (s *MatchService) Teardown(ctx context.Context, matchID uuid.UUID) (TeardownResult, error) {
	return withTelemetry(s, ctx, "Teardown", matchID, func(ctx context.Context) (TeardownResult, error) {
		m, err := s.loadMatch(ctx, nil, matchID, false)
		if errors.Is(err, ErrMatchNotFound) {
			return results.FailureResult[*TeardownOutcome, error](err), nil
		}
		if err != nil {
			return TeardownResult{}, err
		}
		if !m.State.IsTerminal() {
			return results.FailureResult[*TeardownOutcome, error](ErrInvalidState), nil
		}

		released, err := s.teardown(ctx, m)
		if err != nil {
			return TeardownResult{}, err
		}
		return results.SuccessResult[*TeardownOutcome, error](&TeardownOutcome{
			MatchID:  matchID,
			ServerID: m.ServerID,
			Released: released,
		}), nil
	})
}

func (s *MatchService) teardown(ctx context.Context, m *matchdb.Match) (bool, error) {
	if m.ServerID == "" {
		return false, nil
	}
	claimed, err := s.repo.ClaimFlag(ctx, nil, m.ID, matchdb.FlagTeardownStarted)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	if err := s.destroyServer(ctx, m.ServerID); err != nil {
		s.metrics.RecordTeardownFailure(ctx)
		s.logger.ErrorContext(ctx, "Failed to tear down server",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(m.ID),
			attr.String("server_id", m.ServerID),
			attr.Error(err),
		)
		return false, nil
	}

	s.logger.InfoContext(ctx, "Server released",
		attr.ExtractCorrelationID(ctx),
		attr.MatchID(m.ID),
		attr.String("server_id", m.ServerID),
	)
	return true, nil
}

// destroyServer stops then deletes. A server the provider no longer knows is already gone.
func (s *MatchService) destroyServer(ctx context.Context, serverID string) error {
	stopErr := s.provider.StopServer(ctx, serverID)
	if errors.Is(stopErr, ErrServerNotFound) {
		return nil
	}
	delErr := s.provider.DeleteServer(ctx, serverID)
	if delErr == nil || errors.Is(delErr, ErrServerNotFound) {
		return nil
	}
	return errors.Join(stopErr, delErr)
}
