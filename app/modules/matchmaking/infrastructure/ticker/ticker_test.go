package matchmakingticker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	matchevents "github.com/Black-And-White-Club/frag-arena/app/events/match"
	matchmakingservice "github.com/Black-And-White-Club/frag-arena/app/modules/matchmaking/application"
	"github.com/Black-And-White-Club/frag-arena/pkg/eventbus"
	"github.com/Black-And-White-Club/frag-arena/pkg/results"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	matchmakingservice.Service
	tick func(ctx context.Context, mode string) (matchmakingservice.TickResult, error)
}

func (f *fakeService) RunTick(ctx context.Context, mode string) (matchmakingservice.TickResult, error) {
	return f.tick(ctx, mode)
}

func (f *fakeService) Modes() []string { return []string{"duel"} }

func TestTick_PublishesCreatedMatches(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := eventbus.NewInMemory(logger)
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msgs, err := bus.Subscribe(ctx, matchevents.MatchCreatedV1)
	require.NoError(t, err)

	id := uuid.New()
	svc := &fakeService{tick: func(ctx context.Context, mode string) (matchmakingservice.TickResult, error) {
		return results.SuccessResult[[]matchmakingservice.FormedMatch, error]([]matchmakingservice.FormedMatch{{
			MatchID: id, Mode: mode, TeamA: []string{"a"}, TeamB: []string{"b"},
		}}), nil
	}}

	tk := New(svc, bus, time.Second, logger)
	require.NoError(t, tk.Tick(ctx, "duel"))

	select {
	case msg := <-msgs:
		msg.Ack()
		var p matchevents.MatchCreatedPayloadV1
		require.NoError(t, json.Unmarshal(msg.Payload, &p))
		assert.Equal(t, id, p.MatchID)
		assert.Equal(t, []string{"a"}, p.TeamA)
	case <-ctx.Done():
		t.Fatal("no match created event")
	}
}

func TestTick_Failures(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := eventbus.NewInMemory(logger)
	t.Cleanup(func() { _ = bus.Close() })

	boom := errors.New("boom")
	svc := &fakeService{tick: func(ctx context.Context, mode string) (matchmakingservice.TickResult, error) {
		return matchmakingservice.TickResult{}, boom
	}}
	assert.ErrorIs(t, New(svc, bus, time.Second, logger).Tick(context.Background(), "duel"), boom)

	svc.tick = func(ctx context.Context, mode string) (matchmakingservice.TickResult, error) {
		return results.FailureResult[[]matchmakingservice.FormedMatch, error](matchmakingservice.ErrUnknownMode), nil
	}
	assert.ErrorIs(t, New(svc, bus, time.Second, logger).Tick(context.Background(), "duel"), matchmakingservice.ErrUnknownMode)
}

func TestStartStop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := eventbus.NewInMemory(logger)
	t.Cleanup(func() { _ = bus.Close() })

	ticks := make(chan string, 8)
	svc := &fakeService{tick: func(ctx context.Context, mode string) (matchmakingservice.TickResult, error) {
		select {
		case ticks <- mode:
		default:
		}
		return results.SuccessResult[[]matchmakingservice.FormedMatch, error](nil), nil
	}}

	tk := New(svc, bus, 20*time.Millisecond, logger)
	require.NoError(t, tk.Start(context.Background()))

	select {
	case mode := <-ticks:
		assert.Equal(t, "duel", mode)
	case <-time.After(3 * time.Second):
		t.Fatal("ticker never fired")
	}
	require.NoError(t, tk.Stop())
}
