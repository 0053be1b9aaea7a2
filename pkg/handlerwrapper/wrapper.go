// Package handlerwrapper adapts typed event handlers to Watermill handler funcs.
package handlerwrapper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Black-And-White-Club/frag-arena/pkg/observability/attr"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TopicMetadataKey names the metadata entry the event bus reads the destination topic from.
const TopicMetadataKey = "topic"

// Result is one outgoing event produced by a handler.
type Result struct {
	Topic    string
	Payload  any
	Metadata map[string]string
}

// Metrics is the optional per-handler counter sink.
type Metrics interface {
	RecordHandlerAttempt(ctx context.Context, handlerName string)
	RecordHandlerFailure(ctx context.Context, handlerName string)
}

// WrapTransformingTyped decodes the incoming payload into T, runs handler, and
// turns its Results into outgoing messages tagged with their topic. Payloads
// that cannot be decoded are logged and acked; redelivering them cannot help.
func WrapTransformingTyped[T any](
	handlerName string,
	logger *slog.Logger,
	tracer trace.Tracer,
	metrics Metrics,
	handler func(context.Context, *T) ([]Result, error),
) message.HandlerFunc {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("handlerwrapper")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return func(msg *message.Message) ([]*message.Message, error) {
		correlationID := middleware.MessageCorrelationID(msg)
		ctx := attr.WithCorrelationID(msg.Context(), correlationID)

		ctx, span := tracer.Start(ctx, handlerName, trace.WithAttributes(
			attribute.String("message.uuid", msg.UUID),
			attribute.String("correlation_id", correlationID),
		))
		defer span.End()

		if metrics != nil {
			metrics.RecordHandlerAttempt(ctx, handlerName)
		}

		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			logger.ErrorContext(ctx, "Failed to unmarshal payload",
				attr.String("handler", handlerName),
				attr.String("message_id", msg.UUID),
				attr.Error(err),
			)
			span.RecordError(err)
			return nil, nil
		}

		out, err := handler(ctx, payload)
		if err != nil {
			if metrics != nil {
				metrics.RecordHandlerFailure(ctx, handlerName)
			}
			span.RecordError(err)
			return nil, fmt.Errorf("%s: %w", handlerName, err)
		}

		msgs := make([]*message.Message, 0, len(out))
		for _, r := range out {
			m, err := NewMessage(r, correlationID)
			if err != nil {
				span.RecordError(err)
				return nil, fmt.Errorf("%s: %w", handlerName, err)
			}
			msgs = append(msgs, m)
		}
		return msgs, nil
	}
}

// NewMessage encodes a Result as a Watermill message carrying its topic and correlation id.
func NewMessage(r Result, correlationID string) (*message.Message, error) {
	if r.Topic == "" {
		return nil, fmt.Errorf("result has no topic")
	}
	body, err := json.Marshal(r.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload for %s: %w", r.Topic, err)
	}

	m := message.NewMessage(watermill.NewUUID(), body)
	if correlationID == "" {
		correlationID = watermill.NewUUID()
	}
	middleware.SetCorrelationID(correlationID, m)
	for k, v := range r.Metadata {
		m.Metadata.Set(k, v)
	}
	m.Metadata.Set(TopicMetadataKey, r.Topic)
	return m, nil
}
