//go:build integration

package match_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	matchevents "github.com/Black-And-White-Club/frag-arena/app/events/match"
	matchqueue "github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/queue"
	"github.com/Black-And-White-Club/frag-arena/pkg/eventbus"
	"github.com/Black-And-White-Club/frag-arena/pkg/handlerwrapper"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueue(t *testing.T, bus eventbus.EventBus) *matchqueue.Service {
	t.Helper()
	q, err := matchqueue.NewService(testEnv.Ctx, testEnv.DB, testEnv.DSN, bus, testEnv.Logger, metrics.Noop{})
	require.NoError(t, err)
	return q
}

func countJobs(t *testing.T, matchID uuid.UUID, state string) int {
	t.Helper()
	n, err := testEnv.DB.NewSelect().
		Table("river_job").
		Where("args->>'match_id' = ?", matchID.String()).
		Where("state = ?", state).
		Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestQueue_ScheduleIsUniquePerMatch(t *testing.T) {
	testEnv.Reset(t)
	bus := eventbus.NewInMemory(testEnv.Logger)
	defer bus.Close()
	q := newQueue(t, bus)
	defer q.Stop(context.Background())

	ctx := context.Background()
	matchID := uuid.New()
	at := time.Now().Add(time.Hour)

	require.NoError(t, q.ScheduleWarmupTimeout(ctx, matchID, at))
	require.NoError(t, q.ScheduleWarmupTimeout(ctx, matchID, at))
	require.NoError(t, q.ScheduleGoLive(ctx, matchID, at))

	assert.Equal(t, 2, countJobs(t, matchID, "scheduled"))
}

func TestQueue_CancelMatchJobs(t *testing.T) {
	testEnv.Reset(t)
	bus := eventbus.NewInMemory(testEnv.Logger)
	defer bus.Close()
	q := newQueue(t, bus)
	defer q.Stop(context.Background())

	ctx := context.Background()
	matchID := uuid.New()
	other := uuid.New()
	at := time.Now().Add(time.Hour)

	require.NoError(t, q.ScheduleWarmupTimeout(ctx, matchID, at))
	require.NoError(t, q.ScheduleGoLive(ctx, matchID, at))
	require.NoError(t, q.ScheduleTeardown(ctx, matchID, at))
	require.NoError(t, q.ScheduleWarmupTimeout(ctx, other, at))

	require.NoError(t, q.CancelMatchJobs(ctx, matchID, matchqueue.KindWarmupTimeout, matchqueue.KindGoLive))
	assert.Equal(t, 2, countJobs(t, matchID, "cancelled"))
	assert.Equal(t, 1, countJobs(t, matchID, "scheduled"), "teardown is untouched")
	assert.Equal(t, 1, countJobs(t, other, "scheduled"), "other matches are untouched")

	require.NoError(t, q.CancelMatchJobs(ctx, matchID))
	assert.Equal(t, 0, countJobs(t, matchID, "scheduled"))
}

func TestQueue_DueTimerPublishesEvent(t *testing.T) {
	testEnv.Reset(t)
	bus := eventbus.NewInMemory(testEnv.Logger)
	defer bus.Close()

	subCtx, cancel := context.WithCancel(testEnv.Ctx)
	defer cancel()
	messages, err := bus.Subscribe(subCtx, matchevents.MatchConfirmationExpiredV1)
	require.NoError(t, err)

	q := newQueue(t, bus)
	require.NoError(t, q.Start(testEnv.Ctx))
	defer q.Stop(context.Background())

	matchID := uuid.New()
	require.NoError(t, q.ScheduleConfirmationTimeout(context.Background(), matchID, time.Now()))

	var msg *message.Message
	select {
	case msg = <-messages:
		msg.Ack()
	case <-time.After(15 * time.Second):
		t.Fatal("timed out waiting for confirmation expiry")
	}

	var payload matchevents.MatchRefPayloadV1
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, matchID, payload.MatchID)
	assert.Equal(t, matchevents.MatchConfirmationExpiredV1, msg.Metadata.Get(handlerwrapper.TopicMetadataKey))

	assert.Eventually(t, func() bool {
		return countJobs(t, matchID, "completed") == 1
	}, 10*time.Second, 100*time.Millisecond)
}
