package jwt

import "github.com/golang-jwt/jwt/v5"

// IngestClaims authorize a game server to push evidence for exactly one match.
type IngestClaims struct {
	jwt.RegisteredClaims
	MatchID string `json:"mid"`
	Scope   Scope  `json:"scope"`
}

type Scope string

const (
	ScopeLogs    Scope = "logs"
	ScopeWebhook Scope = "webhook"
)
