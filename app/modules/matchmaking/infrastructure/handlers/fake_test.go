package matchmakinghandlers

import (
	"context"

	matchmakingservice "github.com/Black-And-White-Club/frag-arena/app/modules/matchmaking/application"
)

// FakeMatchmakingService provides a programmable stub for the matchmakingservice.Service interface.
type FakeMatchmakingService struct {
	trace []string

	JoinQueueFunc      func(ctx context.Context, userID, mode string) (matchmakingservice.QueueResult, error)
	LeaveQueueFunc     func(ctx context.Context, userID string) (matchmakingservice.QueueResult, error)
	RunTickFunc        func(ctx context.Context, mode string) (matchmakingservice.TickResult, error)
	RequeuePlayersFunc func(ctx context.Context, req matchmakingservice.RequeueRequest) (matchmakingservice.RequeueResult, error)
}

func NewFakeMatchmakingService() *FakeMatchmakingService {
	return &FakeMatchmakingService{trace: []string{}}
}

func (f *FakeMatchmakingService) record(step string) {
	f.trace = append(f.trace, step)
}

// Trace returns the sequence of service methods called.
func (f *FakeMatchmakingService) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeMatchmakingService) JoinQueue(ctx context.Context, userID, mode string) (matchmakingservice.QueueResult, error) {
	f.record("JoinQueue")
	if f.JoinQueueFunc != nil {
		return f.JoinQueueFunc(ctx, userID, mode)
	}
	return matchmakingservice.QueueResult{}, nil
}

func (f *FakeMatchmakingService) LeaveQueue(ctx context.Context, userID string) (matchmakingservice.QueueResult, error) {
	f.record("LeaveQueue")
	if f.LeaveQueueFunc != nil {
		return f.LeaveQueueFunc(ctx, userID)
	}
	return matchmakingservice.QueueResult{}, nil
}

func (f *FakeMatchmakingService) RunTick(ctx context.Context, mode string) (matchmakingservice.TickResult, error) {
	f.record("RunTick")
	if f.RunTickFunc != nil {
		return f.RunTickFunc(ctx, mode)
	}
	return matchmakingservice.TickResult{}, nil
}

func (f *FakeMatchmakingService) RequeuePlayers(ctx context.Context, req matchmakingservice.RequeueRequest) (matchmakingservice.RequeueResult, error) {
	f.record("RequeuePlayers")
	if f.RequeuePlayersFunc != nil {
		return f.RequeuePlayersFunc(ctx, req)
	}
	return matchmakingservice.RequeueResult{}, nil
}

func (f *FakeMatchmakingService) Modes() []string {
	f.record("Modes")
	return []string{"duel"}
}

var _ matchmakingservice.Service = (*FakeMatchmakingService)(nil)
