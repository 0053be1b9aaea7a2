// Package provider is the fasthttp client for the game server hosting API.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	matchservice "github.com/Black-And-White-Club/frag-arena/app/modules/match/application"
	"github.com/Black-And-White-Club/frag-arena/config"
	"github.com/valyala/fasthttp"
)

// ErrRequestFailed wraps any non-2xx answer other than 404.
var ErrRequestFailed = errors.New("provider request failed")

// Client talks to the provider's REST API. It implements
// matchservice.GameServerProvider and serves the status poller.
type Client struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	timeout       time.Duration
	client        *fasthttp.Client
}

var _ matchservice.GameServerProvider = (*Client)(nil)

// NewClient builds a client. webhookSecret is handed to the provider so it
// can authenticate its callbacks to our ingress.
func NewClient(cfg config.ProviderConfig, webhookSecret string) *Client {
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		webhookSecret: webhookSecret,
		timeout:       cfg.Timeout,
		client: &fasthttp.Client{
			Name:                "frag-arena",
			MaxConnsPerHost:     64,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

type teamSpec struct {
	Name       string   `json:"name"`
	SteamIDs64 []string `json:"player_steam_ids"`
}

type createMatchRequest struct {
	ExternalID string `json:"external_id"`
	GameServer struct {
		Name     string `json:"name"`
		Location string `json:"location"`
		Password string `json:"password"`
	} `json:"game_server"`
	Map      string   `json:"map"`
	Team1    teamSpec `json:"team1"`
	Team2    teamSpec `json:"team2"`
	Webhooks struct {
		EventURL            string `json:"event_url"`
		AuthorizationHeader string `json:"authorization_header,omitempty"`
	} `json:"webhooks"`
	LogURL string `json:"log_url"`
}

type createMatchResponse struct {
	ID            string `json:"id"`
	GameServerID  string `json:"game_server_id"`
	ConnectString string `json:"connect_string"`
}

// CreateInstance boots a server configured for the match.
func (c *Client) CreateInstance(ctx context.Context, spec matchservice.ServerSpec) (matchservice.ServerInstance, error) {
	var body createMatchRequest
	body.ExternalID = spec.MatchID.String()
	body.GameServer.Name = spec.Name
	body.GameServer.Location = spec.Location
	body.GameServer.Password = spec.Password
	body.Map = spec.Map
	body.Team1 = teamSpec{Name: "team_a", SteamIDs64: spec.TeamA}
	body.Team2 = teamSpec{Name: "team_b", SteamIDs64: spec.TeamB}
	body.Webhooks.EventURL = spec.WebhookURL
	if c.webhookSecret != "" {
		body.Webhooks.AuthorizationHeader = "Bearer " + c.webhookSecret
	}
	body.LogURL = spec.LogURL

	var out createMatchResponse
	if err := c.do(ctx, fasthttp.MethodPost, "/api/v1/matches", body, &out); err != nil {
		return matchservice.ServerInstance{}, fmt.Errorf("create match: %w", err)
	}
	if out.GameServerID == "" {
		return matchservice.ServerInstance{}, fmt.Errorf("create match: %w: response has no game server id", ErrRequestFailed)
	}
	return matchservice.ServerInstance{
		ServerID:      out.GameServerID,
		RemoteMatchID: out.ID,
		ConnectString: out.ConnectString,
	}, nil
}

// SendConsoleCommand runs one console line on the server.
func (c *Client) SendConsoleCommand(ctx context.Context, serverID, command string) error {
	body := map[string]string{"line": command}
	if err := c.do(ctx, fasthttp.MethodPost, "/api/v1/game-servers/"+serverID+"/console", body, nil); err != nil {
		return fmt.Errorf("console command: %w", err)
	}
	return nil
}

// StopServer stops the server process.
func (c *Client) StopServer(ctx context.Context, serverID string) error {
	if err := c.do(ctx, fasthttp.MethodPost, "/api/v1/game-servers/"+serverID+"/stop", nil, nil); err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	return nil
}

// DeleteServer removes the server and its storage.
func (c *Client) DeleteServer(ctx context.Context, serverID string) error {
	if err := c.do(ctx, fasthttp.MethodDelete, "/api/v1/game-servers/"+serverID, nil, nil); err != nil {
		return fmt.Errorf("delete server: %w", err)
	}
	return nil
}

// GetMatch fetches the provider's view of a running match.
func (c *Client) GetMatch(ctx context.Context, remoteMatchID string) (*MatchStatus, error) {
	var out MatchStatus
	if err := c.do(ctx, fasthttp.MethodGet, "/api/v1/matches/"+remoteMatchID, nil, &out); err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+c.apiKey)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok && c.timeout > 0 {
		deadline, ok = time.Now().Add(c.timeout), true
	}
	var err error
	if ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.Do(req, resp)
	}
	if err != nil {
		return err
	}

	switch status := resp.StatusCode(); {
	case status == fasthttp.StatusNotFound:
		return matchservice.ErrServerNotFound
	case status < 200 || status > 299:
		return fmt.Errorf("%w: %s %s: %d %s", ErrRequestFailed, method, path, status, truncate(resp.Body(), 200))
	}

	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
