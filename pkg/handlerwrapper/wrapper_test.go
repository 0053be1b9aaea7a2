package handlerwrapper

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingPayload struct {
	N int `json:"n"`
}

func TestWrapTransformingTyped(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("forwards results with topic and correlation id", func(t *testing.T) {
		var got int
		h := WrapTransformingTyped("test.ping", logger, nil, nil, func(ctx context.Context, p *pingPayload) ([]Result, error) {
			got = p.N
			return []Result{{Topic: "pong.v1", Payload: pingPayload{N: p.N + 1}}}, nil
		})

		in := message.NewMessage(watermill.NewUUID(), []byte(`{"n":41}`))
		middleware.SetCorrelationID("corr-1", in)

		out, err := h(in)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, 41, got)
		assert.Equal(t, "pong.v1", out[0].Metadata.Get(TopicMetadataKey))
		assert.Equal(t, "corr-1", middleware.MessageCorrelationID(out[0]))

		var decoded pingPayload
		require.NoError(t, json.Unmarshal(out[0].Payload, &decoded))
		assert.Equal(t, 42, decoded.N)
	})

	t.Run("malformed payload is acked without calling handler", func(t *testing.T) {
		called := false
		h := WrapTransformingTyped("test.ping", logger, nil, nil, func(ctx context.Context, p *pingPayload) ([]Result, error) {
			called = true
			return nil, nil
		})

		out, err := h(message.NewMessage(watermill.NewUUID(), []byte(`not json`)))
		assert.NoError(t, err)
		assert.Nil(t, out)
		assert.False(t, called)
	})

	t.Run("handler error is returned for redelivery", func(t *testing.T) {
		h := WrapTransformingTyped("test.ping", logger, nil, nil, func(ctx context.Context, p *pingPayload) ([]Result, error) {
			return nil, errors.New("db down")
		})

		_, err := h(message.NewMessage(watermill.NewUUID(), []byte(`{"n":1}`)))
		assert.ErrorContains(t, err, "db down")
	})
}

func TestNewMessageRequiresTopic(t *testing.T) {
	_, err := NewMessage(Result{Payload: pingPayload{}}, "")
	assert.Error(t, err)
}
