package matchservice

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FakeProvider is a programmable GameServerProvider that counts every call.
type FakeProvider struct {
	mu    sync.Mutex
	trace []string

	CreateInstanceFunc     func(ctx context.Context, spec ServerSpec) (ServerInstance, error)
	SendConsoleCommandFunc func(ctx context.Context, serverID, command string) error
	StopServerFunc         func(ctx context.Context, serverID string) error
	DeleteServerFunc       func(ctx context.Context, serverID string) error

	specs []ServerSpec
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{trace: []string{}}
}

func (f *FakeProvider) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, step)
}

// Trace returns the sequence of provider calls.
func (f *FakeProvider) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

// Count returns how many times step was called.
func (f *FakeProvider) Count(step string) int {
	n := 0
	for _, s := range f.Trace() {
		if s == step {
			n++
		}
	}
	return n
}

// Specs returns every server spec passed to CreateInstance.
func (f *FakeProvider) Specs() []ServerSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ServerSpec(nil), f.specs...)
}

func (f *FakeProvider) CreateInstance(ctx context.Context, spec ServerSpec) (ServerInstance, error) {
	f.record("CreateInstance")
	f.mu.Lock()
	f.specs = append(f.specs, spec)
	f.mu.Unlock()
	if f.CreateInstanceFunc != nil {
		return f.CreateInstanceFunc(ctx, spec)
	}
	return ServerInstance{
		ServerID:      "srv-" + spec.MatchID.String()[:8],
		RemoteMatchID: "remote-" + spec.MatchID.String()[:8],
		ConnectString: "connect 10.0.0.1:27015; password " + spec.Password,
	}, nil
}

func (f *FakeProvider) SendConsoleCommand(ctx context.Context, serverID, command string) error {
	f.record("SendConsoleCommand")
	if f.SendConsoleCommandFunc != nil {
		return f.SendConsoleCommandFunc(ctx, serverID, command)
	}
	return nil
}

func (f *FakeProvider) StopServer(ctx context.Context, serverID string) error {
	f.record("StopServer")
	if f.StopServerFunc != nil {
		return f.StopServerFunc(ctx, serverID)
	}
	return nil
}

func (f *FakeProvider) DeleteServer(ctx context.Context, serverID string) error {
	f.record("DeleteServer")
	if f.DeleteServerFunc != nil {
		return f.DeleteServerFunc(ctx, serverID)
	}
	return nil
}

var _ GameServerProvider = (*FakeProvider)(nil)

// FakeScheduler records every scheduled callback by kind.
type FakeScheduler struct {
	mu  sync.Mutex
	Err error
	at  map[string]map[uuid.UUID]time.Time
}

func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{at: map[string]map[uuid.UUID]time.Time{}}
}

func (f *FakeScheduler) schedule(kind string, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if f.at[kind] == nil {
		f.at[kind] = map[uuid.UUID]time.Time{}
	}
	f.at[kind][id] = at
	return nil
}

// Scheduled returns when kind was scheduled for id.
func (f *FakeScheduler) Scheduled(kind string, id uuid.UUID) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.at[kind][id]
	return at, ok
}

func (f *FakeScheduler) ScheduleConfirmationTimeout(_ context.Context, id uuid.UUID, at time.Time) error {
	return f.schedule("confirmation_timeout", id, at)
}

func (f *FakeScheduler) ScheduleWarmupTimeout(_ context.Context, id uuid.UUID, at time.Time) error {
	return f.schedule("warmup_timeout", id, at)
}

func (f *FakeScheduler) ScheduleGoLive(_ context.Context, id uuid.UUID, at time.Time) error {
	return f.schedule("go_live", id, at)
}

func (f *FakeScheduler) ScheduleTeardown(_ context.Context, id uuid.UUID, at time.Time) error {
	return f.schedule("server_teardown", id, at)
}

var _ Scheduler = (*FakeScheduler)(nil)
