package matchmakingservice

import (
	"context"
	"fmt"

	matchmakingdomain "github.com/Black-And-White-Club/frag-arena/app/modules/matchmaking/domain"
	"github.com/Black-And-White-Club/frag-arena/config"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/attr"
	"github.com/Black-And-White-Club/frag-arena/pkg/results"
	"github.com/Black-And-White-Club/frag-arena/pkg/steamid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RunTick pairs one mode's queue. The whole tick, database transaction and
// follow-up scheduling included, runs under the process-wide tick lock.
func (s *MatchmakingService) RunTick(ctx context.Context, mode string) (TickResult, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	return withTelemetry(s, ctx, "RunTick", mode, func(ctx context.Context) (TickResult, error) {
		modeCfg, ok := s.cfg.Mode(mode)
		if !ok {
			return results.FailureResult[[]FormedMatch, error](ErrUnknownMode), nil
		}

		result, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (TickResult, error) {
			return s.pairLogic(ctx, db, modeCfg)
		})
		if err != nil || !result.IsSuccess() {
			return result, err
		}

		for _, m := range *result.Success {
			if err := s.scheduler.ScheduleConfirmationTimeout(ctx, m.MatchID, m.ConfirmationDeadline); err != nil {
				// The deadline sweep still expires the match.
				s.logger.ErrorContext(ctx, "Failed to schedule confirmation timeout",
					attr.ExtractCorrelationID(ctx),
					attr.MatchID(m.MatchID),
					attr.Error(err),
				)
			}
		}
		return result, nil
	})
}

func (s *MatchmakingService) pairLogic(ctx context.Context, db bun.IDB, mode config.ModeConfig) (TickResult, error) {
	entries, err := s.repo.ListForPairing(ctx, db, mode.Name)
	if err != nil {
		return TickResult{}, fmt.Errorf("failed to list queue: %w", err)
	}

	now := s.now().UTC()
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.CoolingDown(now) {
			ids = append(ids, e.UserID)
		}
	}
	if len(ids) == 0 {
		s.metrics.RecordTick(ctx, mode.Name, 0, 0)
		return results.SuccessResult[[]FormedMatch, error](nil), nil
	}

	active, err := s.matches.ActiveParticipants(ctx, db, ids)
	if err != nil {
		return TickResult{}, fmt.Errorf("failed to check active matches: %w", err)
	}
	busy := make(map[string]bool, len(active))
	for _, id := range active {
		busy[id] = true
	}

	profiles, err := s.players.Profiles(ctx, db, ids)
	if err != nil {
		return TickResult{}, fmt.Errorf("failed to load player profiles: %w", err)
	}

	cands := make([]matchmakingdomain.Candidate, 0, len(ids))
	steamIDs := make(map[string]string, len(ids))
	for _, e := range entries {
		p, known := profiles[e.UserID]
		if e.CoolingDown(now) || busy[e.UserID] || !known {
			continue
		}
		sid, err := steamid.Normalize(p.SteamID)
		switch {
		case err == nil:
		case p.IsBot:
			sid = p.SteamID
		default:
			s.logger.WarnContext(ctx, "Skipping queued player with unusable steam id",
				attr.UserID(e.UserID),
				attr.String("steam_id", p.SteamID),
				attr.Error(err),
			)
			continue
		}
		steamIDs[e.UserID] = sid
		cands = append(cands, matchmakingdomain.Candidate{UserID: e.UserID, Rating: p.Rating, JoinedAt: e.JoinedAt})
	}

	groups := matchmakingdomain.FormGroups(cands, mode.TeamSize)
	formed := make([]FormedMatch, 0, len(groups))
	for _, g := range groups {
		members := g.Members()
		nm := NewMatch{
			ID:                   uuid.New(),
			Mode:                 mode.Name,
			TeamA:                g.TeamA,
			TeamB:                g.TeamB,
			LocationPool:         append([]string(nil), mode.Locations...),
			MapPool:              append([]string(nil), mode.Maps...),
			SteamIDs:             make(map[string]string, len(members)),
			ConfirmationDeadline: now.Add(s.cfg.ConfirmationWindow),
		}
		for _, id := range members {
			nm.SteamIDs[id] = steamIDs[id]
			if profiles[id].IsBot {
				nm.BotUsers = append(nm.BotUsers, id)
			}
		}

		if err := s.matches.CreateMatch(ctx, db, nm); err != nil {
			return TickResult{}, fmt.Errorf("failed to create match: %w", err)
		}
		if err := s.repo.DeleteMany(ctx, db, members); err != nil {
			return TickResult{}, fmt.Errorf("failed to dequeue paired users: %w", err)
		}

		formed = append(formed, FormedMatch{
			MatchID:              nm.ID,
			Mode:                 nm.Mode,
			TeamA:                nm.TeamA,
			TeamB:                nm.TeamB,
			ConfirmationDeadline: nm.ConfirmationDeadline,
		})
	}

	s.metrics.RecordTick(ctx, mode.Name, len(cands), len(formed))
	return results.SuccessResult[[]FormedMatch, error](formed), nil
}
