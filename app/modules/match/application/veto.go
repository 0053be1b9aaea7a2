package matchservice

import (
	"context"
	"errors"
	"slices"

	matchdomain "github.com/Black-And-White-Club/frag-arena/app/modules/match/domain"
	matchdb "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/repositories"
	"github.com/Black-And-White-Club/frag-arena/pkg/results"
	"github.com/google/uuid"
)

var vetoRejections = []error{
	matchdomain.ErrVetoComplete,
	matchdomain.ErrItemNotInPool,
	matchdomain.ErrItemAlreadyBanned,
	matchdomain.ErrWrongTurn,
}

func roundOf(kind matchdomain.VetoKind, v matchdomain.Veto) VetoRound {
	r := VetoRound{
		Kind:     kind,
		Pool:     slices.Clone(v.Pool),
		Banned:   slices.Clone(v.Banned),
		Selected: v.Selected,
	}
	if !v.Complete() {
		r.NextTurn = v.Turn()
	}
	return r
}

// Ban removes item from the active veto round on behalf of the user's team,
// then plays any bot turns that follow.
func (s *MatchService) Ban(ctx context.Context, matchID uuid.UUID, userID string, kind matchdomain.VetoKind, item string) (VetoResult, error) {
	return withTelemetry(s, ctx, "Ban", matchID, func(ctx context.Context) (VetoResult, error) {
		m, err := s.loadMatch(ctx, nil, matchID, false)
		if errors.Is(err, ErrMatchNotFound) {
			return results.FailureResult[*VetoProgress, error](err), nil
		}
		if err != nil {
			return VetoResult{}, err
		}

		team, ok := m.Roster().TeamOf(userID)
		if !ok {
			return results.FailureResult[*VetoProgress, error](ErrNotParticipant), nil
		}
		if m.State != matchdomain.StateVeto {
			return results.FailureResult[*VetoProgress, error](ErrInvalidState), nil
		}

		active, v := m.ActiveVeto()
		if kind != "" && kind != active {
			return results.FailureResult[*VetoProgress, error](ErrWrongVetoRound), nil
		}

		next, err := v.Ban(team, item)
		if err != nil {
			for _, rejection := range vetoRejections {
				if errors.Is(err, rejection) {
					return results.FailureResult[*VetoProgress, error](err), nil
				}
			}
			return VetoResult{}, err
		}

		applied, err := s.repo.ApplyBan(ctx, nil, matchID, active, item, len(v.Banned), next.Selected)
		if err != nil {
			return VetoResult{}, err
		}
		if !applied {
			return results.FailureResult[*VetoProgress, error](ErrVetoChanged), nil
		}

		progress := &VetoProgress{MatchID: matchID, Updates: []VetoRound{roundOf(active, next)}}
		if err := s.driveVeto(ctx, matchID, progress); err != nil {
			return VetoResult{}, err
		}
		return results.SuccessResult[*VetoProgress, error](progress), nil
	})
}

func teamHasHuman(m *matchdb.Match, team matchdomain.Team) bool {
	for _, id := range m.Roster().Members(team) {
		if !m.IsBot(id) {
			return true
		}
	}
	return false
}

// driveVeto plays bot turns through the same guarded path as players and
// closes the veto once the map is selected. It stops at the first turn owned
// by a team with a real player, or when another caller wins a race.
func (s *MatchService) driveVeto(ctx context.Context, matchID uuid.UUID, progress *VetoProgress) error {
	for {
		m, err := s.loadMatch(ctx, nil, matchID, false)
		if err != nil {
			return err
		}
		if m.State != matchdomain.StateVeto {
			return nil
		}

		kind, v := m.ActiveVeto()
		if v.Complete() {
			moved, err := s.repo.EnterConfiguring(ctx, nil, matchID, s.now().UTC().Add(s.cfg.ProvisioningTimeout))
			if err != nil {
				return err
			}
			if moved {
				progress.Completed = true
				progress.Current = nil
				progress.Location = m.SelectedLocation
				progress.Map = m.SelectedMap
			}
			return nil
		}

		current := roundOf(kind, v)
		progress.Current = &current

		team := v.Turn()
		if teamHasHuman(m, team) {
			return nil
		}

		item, ok := v.PickAutoBan(s.intn)
		if !ok {
			return nil
		}
		next, err := v.Ban(team, item)
		if err != nil {
			return nil
		}
		applied, err := s.repo.ApplyBan(ctx, nil, matchID, kind, item, len(v.Banned), next.Selected)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		progress.Updates = append(progress.Updates, roundOf(kind, next))
	}
}
