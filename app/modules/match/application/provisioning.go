package matchservice

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	matchdomain "github.com/Black-And-White-Club/frag-arena/app/modules/match/domain"
	matchdb "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/repositories"
	"github.com/Black-And-White-Club/frag-arena/pkg/jwt"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/attr"
	"github.com/Black-And-White-Club/frag-arena/pkg/results"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	passwordAlphabet = "abcdefghjkmnpqrstuvwxyzACDEFGHJKLMNPQRTUVWXY3479"
	passwordLength   = 12
)

// StartProvisioning boots the match server once the veto has picked a map.
// Only the caller that claims the provisioning flag talks to the provider;
// a provider error releases the flag so the request can be repeated.
func (s *MatchService) StartProvisioning(ctx context.Context, matchID uuid.UUID) (ProvisionResult, error) {
	return withTelemetry(s, ctx, "StartProvisioning", matchID, func(ctx context.Context) (ProvisionResult, error) {
		m, err := s.loadMatch(ctx, nil, matchID, false)
		if errors.Is(err, ErrMatchNotFound) {
			return results.FailureResult[*Provisioned, error](err), nil
		}
		if err != nil {
			return ProvisionResult{}, err
		}
		if m.State != matchdomain.StateConfiguring {
			return results.FailureResult[*Provisioned, error](ErrInvalidState), nil
		}

		claimed, err := s.repo.ClaimFlag(ctx, nil, matchID, matchdb.FlagProvisioningStarted)
		if err != nil {
			return ProvisionResult{}, err
		}
		if !claimed {
			return results.FailureResult[*Provisioned, error](ErrAlreadyStarted), nil
		}

		spec, err := s.serverSpec(m)
		if err != nil {
			s.releaseProvisioning(ctx, matchID)
			return ProvisionResult{}, err
		}

		instance, err := s.provider.CreateInstance(ctx, spec)
		if err != nil {
			s.metrics.RecordProvisioningFailure(ctx)
			s.releaseProvisioning(ctx, matchID)
			return results.FailureResult[*Provisioned, error](fmt.Errorf("%w: %v", ErrProvisioningFailed, err)), nil
		}

		deadline := s.now().UTC().Add(s.cfg.WarmupWindow)
		activated, err := s.repo.ActivateServer(ctx, nil, matchID, matchdb.ServerDetails{
			ServerID:       instance.ServerID,
			RemoteMatchID:  instance.RemoteMatchID,
			ConnectString:  instance.ConnectString,
			ServerPassword: spec.Password,
			WarmupDeadline: deadline,
		})
		if err != nil {
			return ProvisionResult{}, err
		}
		if !activated {
			// Cancelled while the server was booting; nobody else knows this server.
			if err := s.destroyServer(ctx, instance.ServerID); err != nil {
				s.metrics.RecordTeardownFailure(ctx)
				s.logger.ErrorContext(ctx, "Failed to release orphaned server",
					attr.ExtractCorrelationID(ctx),
					attr.MatchID(matchID),
					attr.String("server_id", instance.ServerID),
					attr.Error(err),
				)
			}
			return results.FailureResult[*Provisioned, error](ErrInvalidState), nil
		}

		if err := s.repo.CreatePlayerStats(ctx, nil, scoreboardRows(m)); err != nil {
			s.logger.ErrorContext(ctx, "Failed to pre-create scoreboard",
				attr.ExtractCorrelationID(ctx),
				attr.MatchID(matchID),
				attr.Error(err),
			)
		}

		if err := s.scheduler.ScheduleWarmupTimeout(ctx, matchID, deadline); err != nil {
			s.logger.ErrorContext(ctx, "Failed to schedule warmup timeout",
				attr.ExtractCorrelationID(ctx),
				attr.MatchID(matchID),
				attr.Error(err),
			)
		}

		return results.SuccessResult[*Provisioned, error](&Provisioned{
			MatchID:        matchID,
			ServerID:       instance.ServerID,
			ConnectString:  instance.ConnectString,
			WarmupDeadline: deadline,
		}), nil
	})
}

func (s *MatchService) releaseProvisioning(ctx context.Context, matchID uuid.UUID) {
	if err := s.repo.ReleaseFlag(ctx, nil, matchID, matchdb.FlagProvisioningStarted); err != nil {
		s.logger.ErrorContext(ctx, "Failed to release provisioning flag",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(matchID),
			attr.Error(err),
		)
	}
}

func (s *MatchService) serverSpec(m *matchdb.Match) (ServerSpec, error) {
	password, err := gonanoid.Generate(passwordAlphabet, passwordLength)
	if err != nil {
		return ServerSpec{}, fmt.Errorf("failed to generate server password: %w", err)
	}
	token, err := s.tokens.GenerateToken(m.ID.String(), jwt.ScopeLogs, 0)
	if err != nil {
		return ServerSpec{}, fmt.Errorf("failed to sign log token: %w", err)
	}

	base := strings.TrimRight(s.publicBaseURL, "/")
	return ServerSpec{
		MatchID:    m.ID,
		Name:       slug.Make(fmt.Sprintf("frag arena %s %s %s", m.Mode, m.SelectedMap, m.ID.String()[:8])),
		Map:        m.SelectedMap,
		Location:   m.SelectedLocation,
		Password:   password,
		TeamA:      steamIDs(m, m.TeamA),
		TeamB:      steamIDs(m, m.TeamB),
		WebhookURL: base + "/webhooks/provider",
		LogURL:     fmt.Sprintf("%s/logs/%s?token=%s", base, m.ID, url.QueryEscape(token)),
	}, nil
}

func steamIDs(m *matchdb.Match, users []string) []string {
	out := make([]string, 0, len(users))
	for _, id := range users {
		if sid, ok := m.WhitelistID(id); ok {
			out = append(out, sid)
		}
	}
	return out
}

// scoreboardRows builds one row per participant. Bots are server-side and
// count as connected from the start.
func scoreboardRows(m *matchdb.Match) []matchdb.PlayerStat {
	roster := m.Roster()
	rows := make([]matchdb.PlayerStat, 0, roster.Size())
	for _, id := range roster.Participants() {
		team, _ := roster.TeamOf(id)
		sid, _ := m.WhitelistID(id)
		rows = append(rows, matchdb.PlayerStat{
			MatchID:   m.ID,
			UserID:    id,
			SteamID:   sid,
			Team:      string(team),
			Connected: m.IsBot(id),
		})
	}
	return rows
}
