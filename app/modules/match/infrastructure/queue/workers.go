package matchqueue

import (
	"context"
	"fmt"
	"log/slog"

	matchevents "github.com/Black-And-White-Club/frag-arena/app/events/match"
	"github.com/Black-And-White-Club/frag-arena/pkg/eventbus"
	"github.com/Black-And-White-Club/frag-arena/pkg/handlerwrapper"
	"github.com/Black-And-White-Club/frag-arena/pkg/observability/attr"
	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// TimerWorker publishes the event a due timer job stands for. The match
// handlers guard every transition, so a job that runs twice is harmless.
type TimerWorker[T timerJob] struct {
	river.WorkerDefaults[T]
	publisher eventbus.EventBus
	logger    *slog.Logger
}

// NewTimerWorker creates the worker for one job kind.
func NewTimerWorker[T timerJob](publisher eventbus.EventBus, logger *slog.Logger) *TimerWorker[T] {
	return &TimerWorker[T]{publisher: publisher, logger: logger}
}

func (w *TimerWorker[T]) Work(ctx context.Context, job *river.Job[T]) error {
	matchID, err := uuid.Parse(job.Args.matchID())
	if err != nil {
		// Retrying cannot fix a malformed id.
		return river.JobCancel(fmt.Errorf("invalid match id %q: %w", job.Args.matchID(), err))
	}

	topic := job.Args.topic()
	msg, err := handlerwrapper.NewMessage(handlerwrapper.Result{
		Topic:   topic,
		Payload: &matchevents.MatchRefPayloadV1{MatchID: matchID},
	}, "")
	if err != nil {
		return river.JobCancel(err)
	}

	if err := w.publisher.Publish(topic, msg); err != nil {
		w.logger.ErrorContext(ctx, "Failed to publish due timer",
			attr.String("job_kind", job.Args.Kind()),
			attr.Int64("job_id", job.ID),
			attr.MatchID(matchID),
			attr.Error(err),
		)
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}

	w.logger.InfoContext(ctx, "Timer fired",
		attr.String("job_kind", job.Args.Kind()),
		attr.Int64("job_id", job.ID),
		attr.MatchID(matchID),
		attr.Int("attempt", job.Attempt),
	)
	return nil
}
