package matchhandlers

import (
	"context"
	"errors"
	"log/slog"

	matchevents "github.com/Black-And-White-Club/frag-arena/app/events/match"
	matchservice "github.com/Black-And-White-Club/frag-arena/app/modules/match/application"
	matchdomain "github.com/Black-And-White-Club/frag-arena/app/modules/match/domain"
	matchqueue "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/queue"
	"github.com/Black-And-White-Club/frag-arena/pkg/eventbus"
	"github.com/Black-And-White-Club/frag-arena/pkg/handlerwrapper"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/attr"
	"github.com/google/uuid"
)

// MatchHandlers implements the Handlers interface.
type MatchHandlers struct {
	service matchservice.Service
	timers  TimerCanceller
	logger  *slog.Logger
}

// NewMatchHandlers creates a new MatchHandlers instance. timers may be nil.
func NewMatchHandlers(service matchservice.Service, timers TimerCanceller, logger *slog.Logger) Handlers {
	return &MatchHandlers{service: service, timers: timers, logger: logger}
}

func rejected(matchID uuid.UUID, userID, action string, reason error) []handlerwrapper.Result {
	return []handlerwrapper.Result{{
		Topic: matchevents.MatchActionRejectedV1,
		Payload: &matchevents.MatchActionRejectedPayloadV1{
			MatchID: matchID,
			UserID:  userID,
			Action:  action,
			Reason:  reason.Error(),
		},
	}}
}

func stateChanged(matchID uuid.UUID, state matchdomain.State) handlerwrapper.Result {
	return handlerwrapper.Result{
		Topic: eventbus.ScopedTopic(matchevents.MatchStateChangedV1, matchID.String()),
		Payload: &matchevents.MatchStateChangedPayloadV1{
			MatchID: matchID,
			State:   string(state),
		},
	}
}

func vetoPayload(matchID uuid.UUID, r matchservice.VetoRound) *matchevents.MatchVetoUpdatedPayloadV1 {
	return &matchevents.MatchVetoUpdatedPayloadV1{
		MatchID:  matchID,
		Kind:     string(r.Kind),
		Pool:     r.Pool,
		Banned:   r.Banned,
		Selected: r.Selected,
		NextTurn: string(r.NextTurn),
	}
}

func vetoResults(p *matchservice.VetoProgress) []handlerwrapper.Result {
	out := make([]handlerwrapper.Result, 0, len(p.Updates)+2)
	for _, u := range p.Updates {
		out = append(out, handlerwrapper.Result{Topic: matchevents.MatchVetoUpdatedV1, Payload: vetoPayload(p.MatchID, u)})
	}
	if p.Completed {
		out = append(out,
			handlerwrapper.Result{
				Topic: matchevents.MatchVetoCompletedV1,
				Payload: &matchevents.MatchVetoCompletedPayloadV1{
					MatchID:  p.MatchID,
					Location: p.Location,
					Map:      p.Map,
				},
			},
			stateChanged(p.MatchID, matchdomain.StateConfiguring),
		)
	}
	return out
}

func cancelledResults(c *matchservice.CancelOutcome) []handlerwrapper.Result {
	return []handlerwrapper.Result{
		{
			Topic: matchevents.MatchCancelledV1,
			Payload: &matchevents.MatchCancelledPayloadV1{
				MatchID:  c.MatchID,
				Mode:     c.Mode,
				Reason:   c.Reason,
				Requeue:  c.Requeue,
				Cooldown: c.Cooldown,
				Absent:   c.Absent,
			},
		},
		stateChanged(c.MatchID, matchdomain.StateCancelled),
	}
}

func finishedResults(s *matchservice.Settlement) []handlerwrapper.Result {
	return []handlerwrapper.Result{
		{
			Topic: matchevents.MatchFinishedV1,
			Payload: &matchevents.MatchFinishedPayloadV1{
				MatchID:    s.MatchID,
				WinnerID:   s.WinnerID,
				WinnerTeam: string(s.WinnerTeam),
				ScoreA:     s.ScoreA,
				ScoreB:     s.ScoreB,
				Ratings:    s.Ratings,
				FinishedAt: s.FinishedAt,
			},
		},
		stateChanged(s.MatchID, matchdomain.StateFinished),
	}
}

func liveResults(matchID uuid.UUID) []handlerwrapper.Result {
	return []handlerwrapper.Result{
		{Topic: matchevents.MatchLiveV1, Payload: &matchevents.MatchRefPayloadV1{MatchID: matchID}},
		stateChanged(matchID, matchdomain.StateLive),
	}
}

// cancelTimers is best effort: a stale timer that still fires is a no-op.
func (h *MatchHandlers) cancelTimers(ctx context.Context, matchID uuid.UUID, kinds ...string) {
	if h.timers == nil {
		return
	}
	if err := h.timers.CancelMatchJobs(ctx, matchID, kinds...); err != nil {
		h.logger.WarnContext(ctx, "Failed to cancel pending timers",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(matchID),
			attr.Any("kinds", kinds),
			attr.Error(err),
		)
	}
}

func (h *MatchHandlers) ignored(ctx context.Context, what string, matchID uuid.UUID, reason error) {
	h.logger.InfoContext(ctx, "Ignoring "+what,
		attr.ExtractCorrelationID(ctx),
		attr.MatchID(matchID),
		attr.String("reason", reason.Error()),
	)
}

// HandleConfirmRequested records an acceptance. The acceptance that completes
// the tally also opens the veto.
func (h *MatchHandlers) HandleConfirmRequested(ctx context.Context, payload *matchevents.MatchPlayerActionPayloadV1) ([]handlerwrapper.Result, error) {
	result, err := h.service.Confirm(ctx, payload.MatchID, payload.UserID)
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		return rejected(payload.MatchID, payload.UserID, "confirm", *result.Failure), nil
	}

	out := *result.Success
	events := []handlerwrapper.Result{{
		Topic: matchevents.MatchConfirmationUpdatedV1,
		Payload: &matchevents.MatchConfirmationUpdatedPayloadV1{
			MatchID:  out.MatchID,
			Accepted: out.Accepted,
			Required: out.Required,
		},
	}}
	if out.Veto == nil {
		return events, nil
	}

	h.cancelTimers(ctx, out.MatchID, matchqueue.KindConfirmationTimeout)
	events = append(events, stateChanged(out.MatchID, matchdomain.StateVeto))

	opening := out.Veto.Current
	if opening == nil && len(out.Veto.Updates) > 0 {
		opening = &out.Veto.Updates[len(out.Veto.Updates)-1]
	}
	if opening != nil {
		events = append(events, handlerwrapper.Result{
			Topic:   matchevents.MatchVetoStartedV1,
			Payload: vetoPayload(out.MatchID, *opening),
		})
	}
	return append(events, vetoResults(out.Veto)...), nil
}

// HandleDeclineRequested cancels a match still awaiting confirmation.
func (h *MatchHandlers) HandleDeclineRequested(ctx context.Context, payload *matchevents.MatchPlayerActionPayloadV1) ([]handlerwrapper.Result, error) {
	result, err := h.service.Decline(ctx, payload.MatchID, payload.UserID)
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		return rejected(payload.MatchID, payload.UserID, "decline", *result.Failure), nil
	}

	h.cancelTimers(ctx, payload.MatchID, matchqueue.KindConfirmationTimeout)
	return cancelledResults(*result.Success), nil
}

// HandleBanRequested applies a player's ban and any bot bans that follow it.
func (h *MatchHandlers) HandleBanRequested(ctx context.Context, payload *matchevents.MatchBanRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	result, err := h.service.Ban(ctx, payload.MatchID, payload.UserID, matchdomain.VetoKind(payload.Kind), payload.Item)
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		return rejected(payload.MatchID, payload.UserID, "ban", *result.Failure), nil
	}
	return vetoResults(*result.Success), nil
}

// HandleVetoCompleted boots the server for the selected map.
func (h *MatchHandlers) HandleVetoCompleted(ctx context.Context, payload *matchevents.MatchVetoCompletedPayloadV1) ([]handlerwrapper.Result, error) {
	return h.provision(ctx, payload.MatchID, false)
}

// HandleProvisionRequested retries provisioning by hand after a failure.
func (h *MatchHandlers) HandleProvisionRequested(ctx context.Context, payload *matchevents.MatchRefPayloadV1) ([]handlerwrapper.Result, error) {
	return h.provision(ctx, payload.MatchID, true)
}

func (h *MatchHandlers) provision(ctx context.Context, matchID uuid.UUID, manual bool) ([]handlerwrapper.Result, error) {
	result, err := h.service.StartProvisioning(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		reason := *result.Failure
		if errors.Is(reason, matchservice.ErrProvisioningFailed) {
			return []handlerwrapper.Result{{
				Topic: matchevents.MatchProvisioningFailedV1,
				Payload: &matchevents.MatchProvisioningFailedPayloadV1{
					MatchID: matchID,
					Reason:  reason.Error(),
				},
			}}, nil
		}
		if manual {
			return rejected(matchID, "", "provision", reason), nil
		}
		h.ignored(ctx, "provisioning trigger", matchID, reason)
		return nil, nil
	}

	p := *result.Success
	return []handlerwrapper.Result{
		{
			Topic: matchevents.MatchProvisionedV1,
			Payload: &matchevents.MatchProvisionedPayloadV1{
				MatchID:        p.MatchID,
				ConnectString:  p.ConnectString,
				WarmupDeadline: p.WarmupDeadline,
			},
		},
		stateChanged(p.MatchID, matchdomain.StateWarmup),
	}, nil
}

// HandleEvidenceReceived folds a webhook, poll or log observation into the match.
func (h *MatchHandlers) HandleEvidenceReceived(ctx context.Context, payload *matchevents.MatchEvidencePayloadV1) ([]handlerwrapper.Result, error) {
	result, err := h.service.Reconcile(ctx, payload)
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		h.logger.WarnContext(ctx, "Evidence not applied",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(payload.MatchID),
			attr.String("remote_match_id", payload.RemoteMatchID),
			attr.String("source", string(payload.Source)),
			attr.Error(*result.Failure),
		)
		return nil, nil
	}

	out := *result.Success
	if len(out.NewlyConnected) > 0 {
		h.logger.InfoContext(ctx, "Players connected",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(out.MatchID),
			attr.Any("users", out.NewlyConnected),
		)
	}

	var events []handlerwrapper.Result
	if out.Countdown != nil {
		events = append(events, handlerwrapper.Result{
			Topic: matchevents.MatchCountdownStartedV1,
			Payload: &matchevents.MatchCountdownStartedPayloadV1{
				MatchID: out.MatchID,
				LiveAt:  out.Countdown.LiveAt,
			},
		})
	}
	if out.WentLive {
		h.cancelTimers(ctx, out.MatchID, matchqueue.KindWarmupTimeout)
		events = append(events, liveResults(out.MatchID)...)
	}
	if out.Settlement != nil {
		h.cancelTimers(ctx, out.MatchID, matchqueue.KindWarmupTimeout, matchqueue.KindGoLive)
		events = append(events, finishedResults(out.Settlement)...)
	}
	return events, nil
}

// HandleForceEndRequested settles a running match by hand.
func (h *MatchHandlers) HandleForceEndRequested(ctx context.Context, payload *matchevents.MatchForceEndRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	result, err := h.service.ForceEnd(ctx, payload.MatchID, payload.WinnerTeam)
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		return rejected(payload.MatchID, payload.RequestedBy, "force_end", *result.Failure), nil
	}

	h.cancelTimers(ctx, payload.MatchID, matchqueue.KindWarmupTimeout, matchqueue.KindGoLive)
	return finishedResults(*result.Success), nil
}

// HandleConfirmationExpired cancels a match nobody finished confirming.
func (h *MatchHandlers) HandleConfirmationExpired(ctx context.Context, payload *matchevents.MatchRefPayloadV1) ([]handlerwrapper.Result, error) {
	result, err := h.service.ExpireConfirmation(ctx, payload.MatchID)
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		h.ignored(ctx, "confirmation timeout", payload.MatchID, *result.Failure)
		return nil, nil
	}
	return cancelledResults(*result.Success), nil
}

// HandleProvisioningExpired cancels a match that never got a server.
func (h *MatchHandlers) HandleProvisioningExpired(ctx context.Context, payload *matchevents.MatchRefPayloadV1) ([]handlerwrapper.Result, error) {
	result, err := h.service.ExpireProvisioning(ctx, payload.MatchID)
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		h.ignored(ctx, "provisioning timeout", payload.MatchID, *result.Failure)
		return nil, nil
	}
	return cancelledResults(*result.Success), nil
}

// HandleWarmupExpired cancels a match whose lobby never filled.
func (h *MatchHandlers) HandleWarmupExpired(ctx context.Context, payload *matchevents.MatchRefPayloadV1) ([]handlerwrapper.Result, error) {
	result, err := h.service.ExpireWarmup(ctx, payload.MatchID)
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		h.ignored(ctx, "warmup timeout", payload.MatchID, *result.Failure)
		return nil, nil
	}

	h.cancelTimers(ctx, payload.MatchID, matchqueue.KindGoLive)
	return cancelledResults(*result.Success), nil
}

// HandleGoLiveDue ends the lobby countdown.
func (h *MatchHandlers) HandleGoLiveDue(ctx context.Context, payload *matchevents.MatchRefPayloadV1) ([]handlerwrapper.Result, error) {
	result, err := h.service.GoLive(ctx, payload.MatchID)
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		h.ignored(ctx, "go-live timer", payload.MatchID, *result.Failure)
		return nil, nil
	}

	h.cancelTimers(ctx, payload.MatchID, matchqueue.KindWarmupTimeout)
	return liveResults(payload.MatchID), nil
}

// HandleTeardownDue releases the server of a settled match.
func (h *MatchHandlers) HandleTeardownDue(ctx context.Context, payload *matchevents.MatchRefPayloadV1) ([]handlerwrapper.Result, error) {
	result, err := h.service.Teardown(ctx, payload.MatchID)
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		h.ignored(ctx, "teardown timer", payload.MatchID, *result.Failure)
	}
	return nil, nil
}
