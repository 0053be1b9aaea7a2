// Package matchingress is the HTTP surface game servers and the provider push evidence to.
package matchingress

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	matchevents "github.com/Black-And-White-Club/frag-arena/app/events/match"
	"github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/provider"
	"github.com/Black-And-White-Club/frag-arena/pkg/eventbus"
	"github.com/Black-And-White-Club/frag-arena/pkg/handlerwrapper"
	"github.com/Black-And-White-Club/frag-arena/pkg/jwt"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/attr"
	"github.com/Black-And-White-Club/frag-arena/pkg/steamid"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

// Webhook event names sent by the provider. match_started and match_ended
// are older names still sent by some provider versions.
const (
	EventRoundStart      = "round_start"
	EventMatchStarted    = "match_started"
	EventPlayerConnected = "player_connected"
	EventRoundEnd        = "round_end"
	EventMatchFinished   = "match_finished"
	EventMatchEnded      = "match_ended"
)

func gameStartedEvent(event string) bool {
	switch event {
	case EventRoundStart, EventMatchStarted, EventRoundEnd:
		return true
	}
	return false
}

func finishedEvent(event string) bool {
	return event == EventMatchFinished || event == EventMatchEnded
}

// WebhookPayload is the provider's callback body.
type WebhookPayload struct {
	Event   string `json:"event"`
	MatchID string `json:"match_id"`
	Winner  string `json:"winner,omitempty"`
	Scores  *struct {
		Team1 int `json:"team1"`
		Team2 int `json:"team2"`
	} `json:"scores,omitempty"`
	Players []provider.PlayerStatus `json:"players,omitempty"`
}

// Evidence converts a callback into webhook evidence.
func (p *WebhookPayload) Evidence(observedAt time.Time) *matchevents.MatchEvidencePayloadV1 {
	ev := &matchevents.MatchEvidencePayloadV1{
		RemoteMatchID: p.MatchID,
		Source:        matchevents.SourceWebhook,
		GameStarted:   gameStartedEvent(p.Event),
		Finished:      finishedEvent(p.Event),
		WinnerTeam:    provider.WinnerSide(p.Winner),
		ObservedAt:    observedAt,
	}
	if p.Scores != nil {
		a, b := p.Scores.Team1, p.Scores.Team2
		ev.ScoreA, ev.ScoreB = &a, &b
	}
	for _, pl := range p.Players {
		sid, err := steamid.Normalize(pl.SteamID)
		if err != nil {
			continue
		}
		if pl.Connected || p.Event == EventPlayerConnected {
			ev.Connected = append(ev.Connected, sid)
		}
		ev.Stats = append(ev.Stats, matchevents.PlayerLine{
			SteamID: sid,
			Kills:   pl.Kills,
			Deaths:  pl.Deaths,
			Assists: pl.Assists,
			MVPs:    pl.MVPs,
		})
	}
	return ev
}

// Handler turns provider callbacks and forwarded server logs into evidence events.
type Handler struct {
	publisher     eventbus.EventBus
	tokens        jwt.Service
	webhookSecret string
	logger        *slog.Logger
	now           func() time.Time
}

// NewHandler creates the ingress handler. An empty webhookSecret rejects every webhook.
func NewHandler(publisher eventbus.EventBus, tokens jwt.Service, webhookSecret string, logger *slog.Logger) *Handler {
	return &Handler{
		publisher:     publisher,
		tokens:        tokens,
		webhookSecret: webhookSecret,
		logger:        logger,
		now:           time.Now,
	}
}

// Routes mounts the evidence endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/webhooks/provider", h.handleWebhook)
	r.Post("/logs/{matchID}", h.handleLogs)
}

func (h *Handler) authorizedWebhook(r *http.Request) bool {
	if h.webhookSecret == "" {
		return false
	}
	got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) == 1
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.authorizedWebhook(r) {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var payload WebhookPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if payload.MatchID == "" {
		http.Error(w, "match_id is required", http.StatusBadRequest)
		return
	}

	ev := payload.Evidence(h.now().UTC())
	if err := h.publish(ctx, ev); err != nil {
		// The provider retries on 5xx.
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	matchID, err := uuid.Parse(chi.URLParam(r, "matchID"))
	if err != nil {
		http.Error(w, "invalid match id", http.StatusBadRequest)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	claims, err := h.tokens.ValidateToken(token, jwt.ScopeLogs)
	if err != nil {
		h.logger.WarnContext(ctx, "Rejected log upload",
			attr.MatchID(matchID),
			attr.Error(err),
		)
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	if claims.MatchID != matchID.String() {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	facts, err := ParseLog(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "unreadable log body", http.StatusBadRequest)
		return
	}
	if facts.Empty() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ev := &matchevents.MatchEvidencePayloadV1{
		MatchID:     matchID,
		Source:      matchevents.SourceLog,
		Connected:   facts.Connected,
		Stats:       facts.Stats,
		SideScore:   facts.SideScore,
		GameStarted: facts.GameStarted,
		Finished:    facts.Finished,
		ObservedAt:  h.now().UTC(),
	}
	if err := h.publish(ctx, ev); err != nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) publish(ctx context.Context, ev *matchevents.MatchEvidencePayloadV1) error {
	msg, err := handlerwrapper.NewMessage(handlerwrapper.Result{
		Topic:   matchevents.MatchEvidenceReceivedV1,
		Payload: ev,
	}, middleware.GetReqID(ctx))
	if err != nil {
		return err
	}
	if err := h.publisher.Publish(matchevents.MatchEvidenceReceivedV1, msg); err != nil {
		h.logger.ErrorContext(ctx, "Failed to publish evidence",
			attr.String("source", string(ev.Source)),
			attr.String("remote_match_id", ev.RemoteMatchID),
			attr.Error(err),
		)
		return err
	}
	h.logger.DebugContext(ctx, "Evidence accepted",
		attr.String("source", string(ev.Source)),
		attr.String("remote_match_id", ev.RemoteMatchID),
		attr.Int("connected", len(ev.Connected)),
		attr.Bool("finished", ev.Finished),
	)
	return nil
}
