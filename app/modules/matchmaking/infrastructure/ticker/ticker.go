// Package matchmakingticker runs the pairing tick for every configured mode on a fixed interval.
package matchmakingticker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	matchevents "github.com/Black-And-White-Club/frag-arena/app/events/match"
	matchmakingservice "github.com/Black-And-White-Club/frag-arena/app/modules/matchmaking/application"
	"github.com/Black-And-White-Club/frag-arena/pkg/eventbus"
	"github.com/Black-And-White-Club/frag-arena/pkg/handlerwrapper"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/attr"
	"github.com/go-co-op/gocron/v2"
)

// Ticker owns the gocron scheduler that drives RunTick.
type Ticker struct {
	service   matchmakingservice.Service
	publisher eventbus.EventBus
	interval  time.Duration
	logger    *slog.Logger
	scheduler gocron.Scheduler
}

// New creates a Ticker. Call Start to begin ticking.
func New(service matchmakingservice.Service, publisher eventbus.EventBus, interval time.Duration, logger *slog.Logger) *Ticker {
	return &Ticker{
		service:   service,
		publisher: publisher,
		interval:  interval,
		logger:    logger,
	}
}

// Start registers one job per mode. Jobs run in singleton mode so a slow tick
// is skipped rather than stacked.
func (t *Ticker) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	for _, mode := range t.service.Modes() {
		_, err := sched.NewJob(
			gocron.DurationJob(t.interval),
			gocron.NewTask(func(mode string) {
				if err := t.Tick(ctx, mode); err != nil {
					t.logger.ErrorContext(ctx, "Matchmaking tick failed",
						attr.String("mode", mode),
						attr.Error(err),
					)
				}
			}, mode),
			gocron.WithName("matchmaking-tick-"+mode),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = sched.Shutdown()
			return fmt.Errorf("failed to schedule tick for %s: %w", mode, err)
		}
	}

	t.scheduler = sched
	sched.Start()
	t.logger.InfoContext(ctx, "Matchmaking ticker started",
		attr.Duration("interval", t.interval),
		attr.Any("modes", t.service.Modes()),
	)
	return nil
}

// Tick runs one pairing round for mode and announces every match it formed.
func (t *Ticker) Tick(ctx context.Context, mode string) error {
	result, err := t.service.RunTick(ctx, mode)
	if err != nil {
		return err
	}
	if result.IsFailure() {
		return *result.Failure
	}
	if result.Success == nil {
		return nil
	}

	for _, m := range *result.Success {
		msg, err := handlerwrapper.NewMessage(handlerwrapper.Result{
			Topic: matchevents.MatchCreatedV1,
			Payload: &matchevents.MatchCreatedPayloadV1{
				MatchID:              m.MatchID,
				Mode:                 m.Mode,
				TeamA:                m.TeamA,
				TeamB:                m.TeamB,
				ConfirmationDeadline: m.ConfirmationDeadline,
			},
		}, "")
		if err != nil {
			return err
		}
		if err := t.publisher.Publish(matchevents.MatchCreatedV1, msg); err != nil {
			// The match row already exists; the confirmation timeout still fires.
			t.logger.ErrorContext(ctx, "Failed to publish match created",
				attr.MatchID(m.MatchID),
				attr.Error(err),
			)
		}
	}
	return nil
}

// Stop shuts the scheduler down and waits for running ticks.
func (t *Ticker) Stop() error {
	if t.scheduler == nil {
		return nil
	}
	return t.scheduler.Shutdown()
}
