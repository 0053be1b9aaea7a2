package matchhandlers

import (
	"context"
	"sync"

	matchevents "github.com/Black-And-White-Club/frag-arena/app/events/match"
	matchservice "github.com/Black-And-White-Club/frag-arena/app/modules/match/application"
	matchdomain "github.com/Black-And-White-Club/frag-arena/app/modules/match/domain"
	"github.com/google/uuid"
)

// FakeMatchService provides a programmable stub for the matchservice.Service interface.
type FakeMatchService struct {
	trace []string

	ConfirmFunc            func(ctx context.Context, matchID uuid.UUID, userID string) (matchservice.ConfirmResult, error)
	DeclineFunc            func(ctx context.Context, matchID uuid.UUID, userID string) (matchservice.CancelResult, error)
	ExpireConfirmationFunc func(ctx context.Context, matchID uuid.UUID) (matchservice.CancelResult, error)
	BanFunc                func(ctx context.Context, matchID uuid.UUID, userID string, kind matchdomain.VetoKind, item string) (matchservice.VetoResult, error)
	StartProvisioningFunc  func(ctx context.Context, matchID uuid.UUID) (matchservice.ProvisionResult, error)
	ReconcileFunc          func(ctx context.Context, evidence *matchevents.MatchEvidencePayloadV1) (matchservice.ReconcileResult, error)
	CheckLobbyReadyFunc    func(ctx context.Context, matchID uuid.UUID) (matchservice.CountdownResult, error)
	GoLiveFunc             func(ctx context.Context, matchID uuid.UUID) (matchservice.StateResult, error)
	ForceEndFunc           func(ctx context.Context, matchID uuid.UUID, winnerTeam string) (matchservice.SettleResult, error)
	TeardownFunc           func(ctx context.Context, matchID uuid.UUID) (matchservice.TeardownResult, error)
	ExpireProvisioningFunc func(ctx context.Context, matchID uuid.UUID) (matchservice.CancelResult, error)
	ExpireWarmupFunc       func(ctx context.Context, matchID uuid.UUID) (matchservice.CancelResult, error)
	SweepDeadlinesFunc     func(ctx context.Context) (matchservice.Overdue, error)
	ActiveServersFunc      func(ctx context.Context) ([]matchservice.PollTarget, error)
}

func NewFakeMatchService() *FakeMatchService {
	return &FakeMatchService{trace: []string{}}
}

func (f *FakeMatchService) record(step string) {
	f.trace = append(f.trace, step)
}

// Trace returns the sequence of service methods called.
func (f *FakeMatchService) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeMatchService) Confirm(ctx context.Context, matchID uuid.UUID, userID string) (matchservice.ConfirmResult, error) {
	f.record("Confirm")
	if f.ConfirmFunc != nil {
		return f.ConfirmFunc(ctx, matchID, userID)
	}
	return matchservice.ConfirmResult{}, nil
}

func (f *FakeMatchService) Decline(ctx context.Context, matchID uuid.UUID, userID string) (matchservice.CancelResult, error) {
	f.record("Decline")
	if f.DeclineFunc != nil {
		return f.DeclineFunc(ctx, matchID, userID)
	}
	return matchservice.CancelResult{}, nil
}

func (f *FakeMatchService) ExpireConfirmation(ctx context.Context, matchID uuid.UUID) (matchservice.CancelResult, error) {
	f.record("ExpireConfirmation")
	if f.ExpireConfirmationFunc != nil {
		return f.ExpireConfirmationFunc(ctx, matchID)
	}
	return matchservice.CancelResult{}, nil
}

func (f *FakeMatchService) Ban(ctx context.Context, matchID uuid.UUID, userID string, kind matchdomain.VetoKind, item string) (matchservice.VetoResult, error) {
	f.record("Ban")
	if f.BanFunc != nil {
		return f.BanFunc(ctx, matchID, userID, kind, item)
	}
	return matchservice.VetoResult{}, nil
}

func (f *FakeMatchService) StartProvisioning(ctx context.Context, matchID uuid.UUID) (matchservice.ProvisionResult, error) {
	f.record("StartProvisioning")
	if f.StartProvisioningFunc != nil {
		return f.StartProvisioningFunc(ctx, matchID)
	}
	return matchservice.ProvisionResult{}, nil
}

func (f *FakeMatchService) Reconcile(ctx context.Context, evidence *matchevents.MatchEvidencePayloadV1) (matchservice.ReconcileResult, error) {
	f.record("Reconcile")
	if f.ReconcileFunc != nil {
		return f.ReconcileFunc(ctx, evidence)
	}
	return matchservice.ReconcileResult{}, nil
}

func (f *FakeMatchService) CheckLobbyReady(ctx context.Context, matchID uuid.UUID) (matchservice.CountdownResult, error) {
	f.record("CheckLobbyReady")
	if f.CheckLobbyReadyFunc != nil {
		return f.CheckLobbyReadyFunc(ctx, matchID)
	}
	return matchservice.CountdownResult{}, nil
}

func (f *FakeMatchService) GoLive(ctx context.Context, matchID uuid.UUID) (matchservice.StateResult, error) {
	f.record("GoLive")
	if f.GoLiveFunc != nil {
		return f.GoLiveFunc(ctx, matchID)
	}
	return matchservice.StateResult{}, nil
}

func (f *FakeMatchService) ForceEnd(ctx context.Context, matchID uuid.UUID, winnerTeam string) (matchservice.SettleResult, error) {
	f.record("ForceEnd")
	if f.ForceEndFunc != nil {
		return f.ForceEndFunc(ctx, matchID, winnerTeam)
	}
	return matchservice.SettleResult{}, nil
}

func (f *FakeMatchService) Teardown(ctx context.Context, matchID uuid.UUID) (matchservice.TeardownResult, error) {
	f.record("Teardown")
	if f.TeardownFunc != nil {
		return f.TeardownFunc(ctx, matchID)
	}
	return matchservice.TeardownResult{}, nil
}

func (f *FakeMatchService) ExpireProvisioning(ctx context.Context, matchID uuid.UUID) (matchservice.CancelResult, error) {
	f.record("ExpireProvisioning")
	if f.ExpireProvisioningFunc != nil {
		return f.ExpireProvisioningFunc(ctx, matchID)
	}
	return matchservice.CancelResult{}, nil
}

func (f *FakeMatchService) ExpireWarmup(ctx context.Context, matchID uuid.UUID) (matchservice.CancelResult, error) {
	f.record("ExpireWarmup")
	if f.ExpireWarmupFunc != nil {
		return f.ExpireWarmupFunc(ctx, matchID)
	}
	return matchservice.CancelResult{}, nil
}

func (f *FakeMatchService) SweepDeadlines(ctx context.Context) (matchservice.Overdue, error) {
	f.record("SweepDeadlines")
	if f.SweepDeadlinesFunc != nil {
		return f.SweepDeadlinesFunc(ctx)
	}
	return matchservice.Overdue{}, nil
}

func (f *FakeMatchService) ActiveServers(ctx context.Context) ([]matchservice.PollTarget, error) {
	f.record("ActiveServers")
	if f.ActiveServersFunc != nil {
		return f.ActiveServersFunc(ctx)
	}
	return nil, nil
}

var _ matchservice.Service = (*FakeMatchService)(nil)

// FakeTimers records which timer kinds were cancelled per match.
type FakeTimers struct {
	mu        sync.Mutex
	Err       error
	cancelled map[uuid.UUID][]string
}

func NewFakeTimers() *FakeTimers {
	return &FakeTimers{cancelled: map[uuid.UUID][]string{}}
}

func (f *FakeTimers) CancelMatchJobs(_ context.Context, matchID uuid.UUID, kinds ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled[matchID] = append(f.cancelled[matchID], kinds...)
	return f.Err
}

// Cancelled returns every kind cancelled for matchID, in call order.
func (f *FakeTimers) Cancelled(matchID uuid.UUID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancelled[matchID]...)
}

var _ TimerCanceller = (*FakeTimers)(nil)
