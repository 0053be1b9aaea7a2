// Package attr holds the slog attribute helpers shared by every module.
package attr

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type ctxKey string

// CorrelationIDKey is the context key the handler wrapper stores the message correlation id under.
const CorrelationIDKey ctxKey = "correlation_id"

// WithCorrelationID returns a copy of ctx carrying the correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// ExtractCorrelationID pulls the correlation id out of ctx, if any.
func ExtractCorrelationID(ctx context.Context) slog.Attr {
	if ctx != nil {
		if id, ok := ctx.Value(CorrelationIDKey).(string); ok && id != "" {
			return slog.String("correlation_id", id)
		}
	}
	return slog.String("correlation_id", "")
}

func String(key, value string) slog.Attr { return slog.String(key, value) }

func Int(key string, value int) slog.Attr { return slog.Int(key, value) }

func Int64(key string, value int64) slog.Attr { return slog.Int64(key, value) }

func Bool(key string, value bool) slog.Attr { return slog.Bool(key, value) }

func Any(key string, value any) slog.Attr { return slog.Any(key, value) }

func Time(key string, value time.Time) slog.Attr { return slog.Time(key, value) }

func Duration(key string, value time.Duration) slog.Attr { return slog.Duration(key, value) }

// Error renders err under the "error" key; a nil error renders as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

func MatchID(id uuid.UUID) slog.Attr { return slog.String("match_id", id.String()) }

func UserID(id string) slog.Attr { return slog.String("user_id", id) }
