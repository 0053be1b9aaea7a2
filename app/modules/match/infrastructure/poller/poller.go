// Package matchpoller is the periodic safety net: it polls the provider for
// every running server and redelivers timers whose deadline passed unnoticed.
package matchpoller

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	matchevents "github.com/Black-And-White-Club/frag-arena/app/events/match"
	matchservice "github.com/Black-And-White-Club/frag-arena/app/modules/match/application"
	"github.com/Black-And-White-Club/frag-arena/app/modules/match/infrastructure/provider"
	"github.com/Black-And-White-Club/frag-arena/pkg/eventbus"
	"github.com/Black-And-White-Club/frag-arena/pkg/handlerwrapper"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/attr"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Targets is the part of the match service the poller reads.
type Targets interface {
	ActiveServers(ctx context.Context) ([]matchservice.PollTarget, error)
	SweepDeadlines(ctx context.Context) (matchservice.Overdue, error)
}

// StatusSource fetches the provider's view of one match.
type StatusSource interface {
	GetMatch(ctx context.Context, remoteMatchID string) (*provider.MatchStatus, error)
}

// Poller runs the poll and sweep jobs on a gocron scheduler.
type Poller struct {
	targets     Targets
	source      StatusSource
	publisher   eventbus.EventBus
	interval    time.Duration
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
	scheduler   gocron.Scheduler
}

// New creates a Poller. concurrency bounds in-flight provider requests.
func New(targets Targets, source StatusSource, publisher eventbus.EventBus, interval time.Duration, concurrency int, logger *slog.Logger) *Poller {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Poller{
		targets:     targets,
		source:      source,
		publisher:   publisher,
		interval:    interval,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// Start schedules both jobs in singleton mode.
func (p *Poller) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	jobs := map[string]func(context.Context) error{
		"match-status-poll":    p.Poll,
		"match-deadline-sweep": p.Sweep,
	}
	for name, run := range jobs {
		_, err := sched.NewJob(
			gocron.DurationJob(p.interval),
			gocron.NewTask(func(name string, run func(context.Context) error) {
				if err := run(ctx); err != nil {
					p.logger.ErrorContext(ctx, "Poller job failed",
						attr.String("job", name),
						attr.Error(err),
					)
				}
			}, name, run),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = sched.Shutdown()
			return fmt.Errorf("failed to schedule %s: %w", name, err)
		}
	}

	p.scheduler = sched
	sched.Start()
	p.logger.InfoContext(ctx, "Match poller started",
		attr.Duration("interval", p.interval),
		attr.Int("concurrency", p.concurrency),
	)
	return nil
}

// Stop shuts the scheduler down and waits for running jobs.
func (p *Poller) Stop() error {
	if p.scheduler == nil {
		return nil
	}
	return p.scheduler.Shutdown()
}

// Poll queries every running server and publishes what it sees as poll
// evidence. One failing server does not stop the others.
func (p *Poller) Poll(ctx context.Context) error {
	targets, err := p.targets.ActiveServers(ctx)
	if err != nil {
		return err
	}

	var failed atomic.Int32
	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)
	for _, target := range targets {
		g.Go(func() error {
			if err := p.pollOne(ctx, target); err != nil {
				failed.Add(1)
				p.logger.WarnContext(ctx, "Status poll failed",
					attr.MatchID(target.MatchID),
					attr.String("remote_match_id", target.RemoteMatchID),
					attr.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	p.logger.DebugContext(ctx, "Status poll complete",
		attr.Int("servers", len(targets)),
		attr.Int("failed", int(failed.Load())),
	)
	return nil
}

func (p *Poller) pollOne(ctx context.Context, target matchservice.PollTarget) error {
	status, err := p.source.GetMatch(ctx, target.RemoteMatchID)
	if err != nil {
		return err
	}
	return p.publish(ctx, matchevents.MatchEvidenceReceivedV1, status.Evidence(target.MatchID, p.now().UTC()))
}

// Sweep republishes the timer event of every match whose deadline passed
// while it stayed in CONFIRMING, CONFIGURING or WARMUP.
func (p *Poller) Sweep(ctx context.Context) error {
	overdue, err := p.targets.SweepDeadlines(ctx)
	if err != nil {
		return err
	}

	redeliver := func(topic string, ids []uuid.UUID) {
		for _, id := range ids {
			if err := p.publish(ctx, topic, &matchevents.MatchRefPayloadV1{MatchID: id}); err != nil {
				p.logger.ErrorContext(ctx, "Failed to redeliver expiry",
					attr.String("topic", topic),
					attr.MatchID(id),
					attr.Error(err),
				)
				continue
			}
			p.logger.WarnContext(ctx, "Redelivered overdue expiry",
				attr.String("topic", topic),
				attr.MatchID(id),
			)
		}
	}
	redeliver(matchevents.MatchConfirmationExpiredV1, overdue.Confirmation)
	redeliver(matchevents.MatchProvisioningExpiredV1, overdue.Provisioning)
	redeliver(matchevents.MatchWarmupExpiredV1, overdue.Warmup)
	redeliver(matchevents.MatchGoLiveDueV1, overdue.GoLive)
	return nil
}

func (p *Poller) publish(ctx context.Context, topic string, payload any) error {
	msg, err := handlerwrapper.NewMessage(handlerwrapper.Result{Topic: topic, Payload: payload}, "")
	if err != nil {
		return err
	}
	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	return nil
}
