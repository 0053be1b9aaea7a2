package matchmakingservice

import (
	"context"
	"errors"
	"fmt"

	matchmakingdb "github.com/Black-And-White-Club/frag-arena/app/modules/matchmaking/infrastructure/repositories"
	"github.com/Black-And-White-Club/frag-arena/pkg/results"
	"github.com/uptrace/bun"
)

// JoinQueue places the user in the mode's queue.
func (s *MatchmakingService) JoinQueue(ctx context.Context, userID, mode string) (QueueResult, error) {
	return withTelemetry(s, ctx, "JoinQueue", userID, func(ctx context.Context) (QueueResult, error) {
		return runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (QueueResult, error) {
			return s.joinQueueLogic(ctx, db, userID, mode)
		})
	})
}

func (s *MatchmakingService) joinQueueLogic(ctx context.Context, db bun.IDB, userID, mode string) (QueueResult, error) {
	if _, ok := s.cfg.Mode(mode); !ok {
		return results.FailureResult[*matchmakingdb.QueueEntry, error](ErrUnknownMode), nil
	}

	profiles, err := s.players.Profiles(ctx, db, []string{userID})
	if err != nil {
		return QueueResult{}, fmt.Errorf("failed to look up player: %w", err)
	}
	if _, ok := profiles[userID]; !ok {
		return results.FailureResult[*matchmakingdb.QueueEntry, error](ErrUnknownPlayer), nil
	}

	active, err := s.matches.ActiveParticipants(ctx, db, []string{userID})
	if err != nil {
		return QueueResult{}, fmt.Errorf("failed to check active matches: %w", err)
	}
	if len(active) > 0 {
		return results.FailureResult[*matchmakingdb.QueueEntry, error](ErrAlreadyInMatch), nil
	}

	entry := &matchmakingdb.QueueEntry{
		UserID:   userID,
		Mode:     mode,
		JoinedAt: s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, db, entry); err != nil {
		if errors.Is(err, matchmakingdb.ErrAlreadyQueued) {
			return results.FailureResult[*matchmakingdb.QueueEntry, error](ErrAlreadyQueued), nil
		}
		return QueueResult{}, fmt.Errorf("failed to insert queue entry: %w", err)
	}

	return results.SuccessResult[*matchmakingdb.QueueEntry, error](entry), nil
}

// LeaveQueue removes the user's entry. An entry serving a cooldown cannot be withdrawn.
func (s *MatchmakingService) LeaveQueue(ctx context.Context, userID string) (QueueResult, error) {
	return withTelemetry(s, ctx, "LeaveQueue", userID, func(ctx context.Context) (QueueResult, error) {
		return runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (QueueResult, error) {
			return s.leaveQueueLogic(ctx, db, userID)
		})
	})
}

func (s *MatchmakingService) leaveQueueLogic(ctx context.Context, db bun.IDB, userID string) (QueueResult, error) {
	entry, err := s.repo.Get(ctx, db, userID)
	if err != nil {
		if errors.Is(err, matchmakingdb.ErrNotFound) {
			return results.FailureResult[*matchmakingdb.QueueEntry, error](ErrNotQueued), nil
		}
		return QueueResult{}, fmt.Errorf("failed to get queue entry: %w", err)
	}

	if entry.CoolingDown(s.now()) {
		return results.FailureResult[*matchmakingdb.QueueEntry, error](ErrCooldownActive), nil
	}

	if err := s.repo.Delete(ctx, db, userID); err != nil {
		if errors.Is(err, matchmakingdb.ErrNotFound) {
			return results.FailureResult[*matchmakingdb.QueueEntry, error](ErrNotQueued), nil
		}
		return QueueResult{}, fmt.Errorf("failed to delete queue entry: %w", err)
	}

	return results.SuccessResult[*matchmakingdb.QueueEntry, error](entry), nil
}
