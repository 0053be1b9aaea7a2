package matchmakingservice

import (
	"context"
	"errors"
	"fmt"

	matchmakingdb "github.com/Black-And-White-Club/frag-arena/app/modules/matchmaking/infrastructure/repositories"
	"github.com/Black-And-White-Club/frag-arena/pkg/results"
	"github.com/uptrace/bun"
)

// RequeuePlayers re-inserts the accepters of a cancelled match right away
// and gives everyone else an entry that cannot pair until the cooldown ends.
// A user who already rejoined keeps their entry.
func (s *MatchmakingService) RequeuePlayers(ctx context.Context, req RequeueRequest) (RequeueResult, error) {
	return withTelemetry(s, ctx, "RequeuePlayers", req.MatchID.String(), func(ctx context.Context) (RequeueResult, error) {
		return runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (RequeueResult, error) {
			return s.requeueLogic(ctx, db, req)
		})
	})
}

func (s *MatchmakingService) requeueLogic(ctx context.Context, db bun.IDB, req RequeueRequest) (RequeueResult, error) {
	if _, ok := s.cfg.Mode(req.Mode); !ok {
		return results.FailureResult[*RequeueOutcome, error](ErrUnknownMode), nil
	}

	now := s.now().UTC()
	out := &RequeueOutcome{
		MatchID:       req.MatchID,
		CooldownUntil: now.Add(s.cfg.Cooldown),
	}

	for _, userID := range req.Requeue {
		err := s.repo.Insert(ctx, db, &matchmakingdb.QueueEntry{UserID: userID, Mode: req.Mode, JoinedAt: now})
		if errors.Is(err, matchmakingdb.ErrAlreadyQueued) {
			continue
		}
		if err != nil {
			return RequeueResult{}, fmt.Errorf("failed to requeue %s: %w", userID, err)
		}
		out.Requeued = append(out.Requeued, userID)
	}

	for _, userID := range req.Cooldown {
		if err := s.repo.ApplyCooldown(ctx, db, userID, req.Mode, now, out.CooldownUntil); err != nil {
			return RequeueResult{}, fmt.Errorf("failed to apply cooldown to %s: %w", userID, err)
		}
		out.Cooldown = append(out.Cooldown, userID)
	}

	return results.SuccessResult[*RequeueOutcome, error](out), nil
}
