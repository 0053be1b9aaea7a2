package matchingress

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	matchevents "github.com/Black-And-White-Club/frag-arena/app/events/match"
	"github.com/Black-And-White-Club/frag-arena/pkg/eventbus"
	"github.com/Black-And-White-Club/frag-arena/pkg/jwt"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const secret = "hook-secret"

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	server   *httptest.Server
	tokens   jwt.Service
	evidence <-chan *message.Message
}

func newTestEnv(t *testing.T, bus eventbus.EventBus, checks map[string]HealthCheck) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if bus == nil {
		mem := eventbus.NewInMemory(logger)
		t.Cleanup(func() { _ = mem.Close() })
		bus = mem
	}
	var ch <-chan *message.Message
	if sub, err := bus.Subscribe(ctx, matchevents.MatchEvidenceReceivedV1); err == nil {
		ch = sub
	}

	tokens := jwt.NewService("test-secret", "frag-arena", time.Hour)
	h := NewHandler(bus, tokens, secret, logger)
	h.now = func() time.Time { return fixedNow }

	srv := httptest.NewServer(NewRouter(RouterConfig{
		Handler: h,
		Limiter: NewIPRateLimiter(rate.Inf, 1),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "# metrics") }),
		Checks:  checks,
	}))
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, tokens: tokens, evidence: ch}
}

func (e *testEnv) post(t *testing.T, path, auth, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) nextEvidence(t *testing.T) *matchevents.MatchEvidencePayloadV1 {
	t.Helper()
	select {
	case msg := <-e.evidence:
		msg.Ack()
		var ev matchevents.MatchEvidencePayloadV1
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		return &ev
	case <-time.After(2 * time.Second):
		t.Fatal("no evidence published")
		return nil
	}
}

func TestWebhook(t *testing.T) {
	tests := []struct {
		name       string
		auth       string
		body       string
		wantStatus int
	}{
		{name: "missing secret", body: `{"event":"match_started","match_id":"m-1"}`, wantStatus: http.StatusUnauthorized},
		{name: "wrong secret", auth: "Bearer nope", body: `{"event":"match_started","match_id":"m-1"}`, wantStatus: http.StatusUnauthorized},
		{name: "malformed body", auth: "Bearer " + secret, body: `{`, wantStatus: http.StatusBadRequest},
		{name: "no match id", auth: "Bearer " + secret, body: `{"event":"match_started"}`, wantStatus: http.StatusBadRequest},
		{name: "accepted", auth: "Bearer " + secret, body: `{"event":"match_started","match_id":"m-1"}`, wantStatus: http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil, nil)
			resp := env.post(t, "/webhooks/provider", tt.auth, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestWebhook_MatchEndedBecomesEvidence(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	body := `{
		"event": "match_ended",
		"match_id": "m-42",
		"winner": "team2",
		"scores": {"team1": 9, "team2": 13},
		"players": [
			{"steam_id_64": "[U:1:39734273]", "connected": true, "kills": 18},
			{"steam_id_64": "garbage", "connected": true}
		]
	}`
	resp := env.post(t, "/webhooks/provider", "Bearer "+secret, body)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	ev := env.nextEvidence(t)
	assert.Equal(t, "m-42", ev.RemoteMatchID)
	assert.Equal(t, uuid.Nil, ev.MatchID)
	assert.Equal(t, matchevents.SourceWebhook, ev.Source)
	assert.True(t, ev.Finished)
	assert.Equal(t, "B", ev.WinnerTeam)
	require.NotNil(t, ev.ScoreA)
	assert.Equal(t, 9, *ev.ScoreA)
	assert.Equal(t, 13, *ev.ScoreB)
	assert.Equal(t, []string{"76561198000000001"}, ev.Connected)
	require.Len(t, ev.Stats, 1)
	assert.Equal(t, 18, ev.Stats[0].Kills)
	assert.True(t, ev.ObservedAt.Equal(fixedNow))
}

func TestWebhookPayload_EventNames(t *testing.T) {
	tests := []struct {
		event        string
		wantStarted  bool
		wantFinished bool
	}{
		{event: "round_start", wantStarted: true},
		{event: "match_started", wantStarted: true},
		{event: "round_end", wantStarted: true},
		{event: "match_finished", wantFinished: true},
		{event: "match_ended", wantFinished: true},
		{event: "player_connected"},
		{event: "server_heartbeat"},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			p := WebhookPayload{Event: tt.event, MatchID: "m-7"}
			ev := p.Evidence(fixedNow)
			assert.Equal(t, tt.wantStarted, ev.GameStarted)
			assert.Equal(t, tt.wantFinished, ev.Finished)
		})
	}
}

func TestWebhook_MatchFinishedBecomesEvidence(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	body := `{"event":"match_finished","match_id":"m-9","winner":"team1","scores":{"team1":13,"team2":7}}`
	resp := env.post(t, "/webhooks/provider", "Bearer "+secret, body)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	ev := env.nextEvidence(t)
	assert.Equal(t, "m-9", ev.RemoteMatchID)
	assert.True(t, ev.Finished)
	assert.Equal(t, "A", ev.WinnerTeam)
	require.NotNil(t, ev.ScoreA)
	assert.Equal(t, 13, *ev.ScoreA)
	assert.Equal(t, 7, *ev.ScoreB)
}

type brokenBus struct{ eventbus.EventBus }

func (brokenBus) Publish(string, ...*message.Message) error { return errors.New("nats down") }
func (brokenBus) Subscribe(context.Context, string) (<-chan *message.Message, error) {
	return nil, errors.New("nats down")
}

func TestWebhook_PublishFailureAsksForRetry(t *testing.T) {
	env := newTestEnv(t, brokenBus{}, nil)
	resp := env.post(t, "/webhooks/provider", "Bearer "+secret, `{"event":"round_end","match_id":"m-1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

const sampleLog = `L 03/01/2026 - 12:00:01: "alice<2><[U:1:39734273]><>" entered the game
L 03/01/2026 - 12:00:02: "Bot Joe<3><BOT><>" entered the game
L 03/01/2026 - 12:00:03: "bob<4><STEAM_1:0:19867137>" entered the game
L 03/01/2026 - 12:00:04: "bob<4><STEAM_1:0:19867137><>" entered the game
L 03/01/2026 - 12:00:05: server_cvar: "mp_freezetime" "15"
`

func TestLogs(t *testing.T) {
	matchID := uuid.New()

	t.Run("connections become evidence", func(t *testing.T) {
		env := newTestEnv(t, nil, nil)
		token, err := env.tokens.GenerateToken(matchID.String(), jwt.ScopeLogs, 0)
		require.NoError(t, err)

		resp := env.post(t, "/logs/"+matchID.String()+"?token="+token, "", sampleLog)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		ev := env.nextEvidence(t)
		assert.Equal(t, matchID, ev.MatchID)
		assert.Equal(t, matchevents.SourceLog, ev.Source)
		assert.Equal(t, []string{"76561198000000001", "76561198000000002"}, ev.Connected)
		assert.False(t, ev.Finished)
	})

	t.Run("bearer header works too", func(t *testing.T) {
		env := newTestEnv(t, nil, nil)
		token, err := env.tokens.GenerateToken(matchID.String(), jwt.ScopeLogs, 0)
		require.NoError(t, err)

		resp := env.post(t, "/logs/"+matchID.String(), "Bearer "+token, `World triggered "Match_Start" on "de_mirage"`)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.True(t, env.nextEvidence(t).GameStarted)
	})

	t.Run("kill lines become stats evidence", func(t *testing.T) {
		env := newTestEnv(t, nil, nil)
		token, err := env.tokens.GenerateToken(matchID.String(), jwt.ScopeLogs, 0)
		require.NoError(t, err)

		body := `L 03/01/2026 - 12:10:01: "alice<2><[U:1:39734273]><CT>" [10 20 30] killed "bob<3><[U:1:39734274]><TERRORIST>" [1 2 3] with "ak47"` + "\n" +
			`L 03/01/2026 - 12:10:30: Team "CT" scored "1" with "1" players` + "\n"
		resp := env.post(t, "/logs/"+matchID.String()+"?token="+token, "", body)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		ev := env.nextEvidence(t)
		assert.Equal(t, []matchevents.PlayerLine{
			{SteamID: "76561198000000001", Kills: 1},
			{SteamID: "76561198000000002", Deaths: 1},
		}, ev.Stats)
		require.NotNil(t, ev.SideScore)
		assert.Equal(t, 1, ev.SideScore.CT)
		assert.Equal(t, []string{"76561198000000001"}, ev.SideScore.CTPlayers)
		assert.Nil(t, ev.ScoreA)
		assert.True(t, ev.GameStarted)
	})

	t.Run("irrelevant lines publish nothing", func(t *testing.T) {
		env := newTestEnv(t, nil, nil)
		token, err := env.tokens.GenerateToken(matchID.String(), jwt.ScopeLogs, 0)
		require.NoError(t, err)

		resp := env.post(t, "/logs/"+matchID.String()+"?token="+token, "", "L 03/01/2026 - 12:00:05: rcon from 10.0.0.1\n")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	rejections := []struct {
		name       string
		path       func(env *testEnv) string
		wantStatus int
	}{
		{
			name:       "no token",
			path:       func(*testEnv) string { return "/logs/" + matchID.String() },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "token for another match",
			path: func(env *testEnv) string {
				token, _ := env.tokens.GenerateToken(uuid.NewString(), jwt.ScopeLogs, 0)
				return "/logs/" + matchID.String() + "?token=" + token
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "webhook-scoped token",
			path: func(env *testEnv) string {
				token, _ := env.tokens.GenerateToken(matchID.String(), jwt.ScopeWebhook, 0)
				return "/logs/" + matchID.String() + "?token=" + token
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "bad match id",
			path:       func(*testEnv) string { return "/logs/not-a-uuid?token=x" },
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil, nil)
			resp := env.post(t, tt.path(env), "", sampleLog)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"queue":    func(context.Context) error { return errors.New("pool closed") },
	})

	resp, err := http.Get(env.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var report map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, map[string]string{"postgres": "ok", "queue": "pool closed"}, report)

	metrics, err := http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	assert.Equal(t, http.StatusOK, metrics.StatusCode)
}

func TestRateLimit(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Every(time.Hour), 2)
	h := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/provider", nil)
		req.RemoteAddr = "10.0.0.7:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	other := httptest.NewRequest(http.MethodPost, "/webhooks/provider", nil)
	other.RemoteAddr = "10.0.0.8:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code, "buckets are per IP")
}

func TestIPRateLimiter_PrunesIdleEntries(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Inf, 1)
	now := fixedNow
	limiter.now = func() time.Time { return now }
	for i := 0; i <= cleanupThreshold; i++ {
		limiter.Limiter(uuid.NewString())
	}
	now = now.Add(maxIdleAge + time.Minute)
	limiter.Limiter("fresh")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Len(t, limiter.ips, 1)
}
