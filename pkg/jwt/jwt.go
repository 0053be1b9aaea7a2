package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token expired")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrScopeMismatch    = errors.New("token scope does not match")
)

type Service interface {
	GenerateToken(matchID string, scope Scope, ttl time.Duration) (string, error)
	ValidateToken(tokenString string, scope Scope) (*IngestClaims, error)
}

type service struct {
	secret     []byte
	issuer     string
	defaultTTL time.Duration
}

func NewService(secret, issuer string, defaultTTL time.Duration) Service {
	return &service{
		secret:     []byte(secret),
		issuer:     issuer,
		defaultTTL: defaultTTL,
	}
}

func (s *service) GenerateToken(matchID string, scope Scope, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := time.Now()
	claims := &IngestClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   matchID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		MatchID: matchID,
		Scope:   scope,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

func (s *service) ValidateToken(tokenString string, scope Scope) (*IngestClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &IngestClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrInvalidSignature
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*IngestClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Scope != scope {
		return nil, ErrScopeMismatch
	}
	return claims, nil
}
