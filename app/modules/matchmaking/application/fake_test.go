package matchmakingservice

import (
	"context"
	"sort"
	"sync"
	"time"

	matchmakingdb "github.com/Black-And-White-Club/frag-arena/app/modules/matchmaking/infrastructure/repositories"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ------------------------
// Fake Queue Repo
// ------------------------

// FakeQueueRepository keeps entries in memory; Func fields override individual methods.
type FakeQueueRepository struct {
	mu      sync.Mutex
	trace   []string
	entries map[string]matchmakingdb.QueueEntry

	InsertFunc         func(ctx context.Context, db bun.IDB, entry *matchmakingdb.QueueEntry) error
	ApplyCooldownFunc  func(ctx context.Context, db bun.IDB, userID, mode string, joinedAt, until time.Time) error
	GetFunc            func(ctx context.Context, db bun.IDB, userID string) (*matchmakingdb.QueueEntry, error)
	DeleteFunc         func(ctx context.Context, db bun.IDB, userID string) error
	DeleteManyFunc     func(ctx context.Context, db bun.IDB, userIDs []string) error
	ListForPairingFunc func(ctx context.Context, db bun.IDB, mode string) ([]matchmakingdb.QueueEntry, error)
}

func NewFakeQueueRepository(entries ...matchmakingdb.QueueEntry) *FakeQueueRepository {
	f := &FakeQueueRepository{entries: map[string]matchmakingdb.QueueEntry{}}
	for _, e := range entries {
		f.entries[e.UserID] = e
	}
	return f
}

func (f *FakeQueueRepository) record(step string) {
	f.trace = append(f.trace, step)
}

// Trace returns the sequence of method calls made to the fake.
func (f *FakeQueueRepository) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

// Entry returns the stored entry for a user.
func (f *FakeQueueRepository) Entry(userID string) (matchmakingdb.QueueEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[userID]
	return e, ok
}

func (f *FakeQueueRepository) Insert(ctx context.Context, db bun.IDB, entry *matchmakingdb.QueueEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Insert")
	if f.InsertFunc != nil {
		return f.InsertFunc(ctx, db, entry)
	}
	if _, ok := f.entries[entry.UserID]; ok {
		return matchmakingdb.ErrAlreadyQueued
	}
	f.entries[entry.UserID] = *entry
	return nil
}

func (f *FakeQueueRepository) ApplyCooldown(ctx context.Context, db bun.IDB, userID, mode string, joinedAt, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ApplyCooldown")
	if f.ApplyCooldownFunc != nil {
		return f.ApplyCooldownFunc(ctx, db, userID, mode, joinedAt, until)
	}
	e, ok := f.entries[userID]
	if !ok {
		e = matchmakingdb.QueueEntry{UserID: userID, Mode: mode, JoinedAt: joinedAt}
	}
	if e.CooldownUntil == nil || e.CooldownUntil.Before(until) {
		e.CooldownUntil = &until
	}
	f.entries[userID] = e
	return nil
}

func (f *FakeQueueRepository) Get(ctx context.Context, db bun.IDB, userID string) (*matchmakingdb.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Get")
	if f.GetFunc != nil {
		return f.GetFunc(ctx, db, userID)
	}
	e, ok := f.entries[userID]
	if !ok {
		return nil, matchmakingdb.ErrNotFound
	}
	return &e, nil
}

func (f *FakeQueueRepository) Delete(ctx context.Context, db bun.IDB, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Delete")
	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, db, userID)
	}
	if _, ok := f.entries[userID]; !ok {
		return matchmakingdb.ErrNotFound
	}
	delete(f.entries, userID)
	return nil
}

func (f *FakeQueueRepository) DeleteMany(ctx context.Context, db bun.IDB, userIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteMany")
	if f.DeleteManyFunc != nil {
		return f.DeleteManyFunc(ctx, db, userIDs)
	}
	for _, id := range userIDs {
		delete(f.entries, id)
	}
	return nil
}

func (f *FakeQueueRepository) ListForPairing(ctx context.Context, db bun.IDB, mode string) ([]matchmakingdb.QueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListForPairing")
	if f.ListForPairingFunc != nil {
		return f.ListForPairingFunc(ctx, db, mode)
	}
	var out []matchmakingdb.QueueEntry
	for _, e := range f.entries {
		if e.Mode == mode {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

var _ matchmakingdb.Repository = (*FakeQueueRepository)(nil)

// ------------------------
// Fake Match Store
// ------------------------

// FakeMatchStore treats every created match as active.
type FakeMatchStore struct {
	mu      sync.Mutex
	trace   []string
	created []NewMatch
	active  map[string]bool

	CreateMatchFunc        func(ctx context.Context, db bun.IDB, m NewMatch) error
	ActiveParticipantsFunc func(ctx context.Context, db bun.IDB, userIDs []string) ([]string, error)
}

func NewFakeMatchStore(activeUsers ...string) *FakeMatchStore {
	f := &FakeMatchStore{active: map[string]bool{}}
	for _, id := range activeUsers {
		f.active[id] = true
	}
	return f
}

func (f *FakeMatchStore) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

// Created returns every match handed to CreateMatch.
func (f *FakeMatchStore) Created() []NewMatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]NewMatch(nil), f.created...)
}

func (f *FakeMatchStore) CreateMatch(ctx context.Context, db bun.IDB, m NewMatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, "CreateMatch")
	if f.CreateMatchFunc != nil {
		return f.CreateMatchFunc(ctx, db, m)
	}
	f.created = append(f.created, m)
	for _, id := range append(append([]string{}, m.TeamA...), m.TeamB...) {
		f.active[id] = true
	}
	return nil
}

func (f *FakeMatchStore) ActiveParticipants(ctx context.Context, db bun.IDB, userIDs []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, "ActiveParticipants")
	if f.ActiveParticipantsFunc != nil {
		return f.ActiveParticipantsFunc(ctx, db, userIDs)
	}
	var out []string
	for _, id := range userIDs {
		if f.active[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

var _ MatchStore = (*FakeMatchStore)(nil)

// ------------------------
// Fake Player Directory
// ------------------------

type FakePlayerDirectory struct {
	ProfilesFunc func(ctx context.Context, db bun.IDB, userIDs []string) (map[string]PlayerProfile, error)
	profiles     map[string]PlayerProfile
}

func NewFakePlayerDirectory(profiles ...PlayerProfile) *FakePlayerDirectory {
	f := &FakePlayerDirectory{profiles: map[string]PlayerProfile{}}
	for _, p := range profiles {
		f.profiles[p.UserID] = p
	}
	return f
}

func (f *FakePlayerDirectory) Profiles(ctx context.Context, db bun.IDB, userIDs []string) (map[string]PlayerProfile, error) {
	if f.ProfilesFunc != nil {
		return f.ProfilesFunc(ctx, db, userIDs)
	}
	out := map[string]PlayerProfile{}
	for _, id := range userIDs {
		if p, ok := f.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

var _ PlayerDirectory = (*FakePlayerDirectory)(nil)

// ------------------------
// Fake Scheduler
// ------------------------

type FakeScheduler struct {
	mu        sync.Mutex
	scheduled map[uuid.UUID]time.Time

	ScheduleConfirmationTimeoutFunc func(ctx context.Context, matchID uuid.UUID, at time.Time) error
}

func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{scheduled: map[uuid.UUID]time.Time{}}
}

func (f *FakeScheduler) ScheduleConfirmationTimeout(ctx context.Context, matchID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ScheduleConfirmationTimeoutFunc != nil {
		return f.ScheduleConfirmationTimeoutFunc(ctx, matchID, at)
	}
	f.scheduled[matchID] = at
	return nil
}

func (f *FakeScheduler) Scheduled() map[uuid.UUID]time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]time.Time, len(f.scheduled))
	for k, v := range f.scheduled {
		out[k] = v
	}
	return out
}

var _ ConfirmationScheduler = (*FakeScheduler)(nil)
