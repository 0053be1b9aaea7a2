package matchdb

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	matchdomain "github.com/Black-And-White-Club/frag-arena/app/modules/match/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MemoryRepository is an in-memory Repository for tests. Every conditional
// write is atomic under one mutex, so it reproduces the single-winner
// behaviour of the SQL compare-and-set statements. Errors maps a method name
// to an error that method returns instead of running.
type MemoryRepository struct {
	mu      sync.Mutex
	trace   []string
	matches map[uuid.UUID]*Match
	stats   map[uuid.UUID]map[string]*PlayerStat
	history map[uuid.UUID]*MatchHistory

	Errors map[string]error
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		matches: map[uuid.UUID]*Match{},
		stats:   map[uuid.UUID]map[string]*PlayerStat{},
		history: map[uuid.UUID]*MatchHistory{},
		Errors:  map[string]error{},
	}
}

var _ Repository = (*MemoryRepository)(nil)

// Trace returns the sequence of method calls made to the repository.
func (f *MemoryRepository) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.trace)
}

// Snapshot returns a copy of the stored match.
func (f *MemoryRepository) Snapshot(id uuid.UUID) *Match {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.matches[id]; ok {
		return cloneMatch(m)
	}
	return nil
}

// History returns the stored settlement record, if any.
func (f *MemoryRepository) History(id uuid.UUID) *MatchHistory {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.history[id]; ok {
		c := *h
		return &c
	}
	return nil
}

// Seed stores a match as-is, replacing any existing one.
func (f *MemoryRepository) Seed(m *Match) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches[m.ID] = cloneMatch(m)
}

func (f *MemoryRepository) enter(method string) error {
	f.trace = append(f.trace, method)
	return f.Errors[method]
}

func cloneMatch(m *Match) *Match {
	c := *m
	c.TeamA = slices.Clone(m.TeamA)
	c.TeamB = slices.Clone(m.TeamB)
	c.AcceptedPlayers = slices.Clone(m.AcceptedPlayers)
	c.LocationPool = slices.Clone(m.LocationPool)
	c.LocationBans = slices.Clone(m.LocationBans)
	c.MapPool = slices.Clone(m.MapPool)
	c.MapBans = slices.Clone(m.MapBans)
	c.BotUsers = slices.Clone(m.BotUsers)
	if m.SteamIDs != nil {
		c.SteamIDs = make(map[string]string, len(m.SteamIDs))
		for k, v := range m.SteamIDs {
			c.SteamIDs[k] = v
		}
	}
	return &c
}

func (f *MemoryRepository) CreateMatch(_ context.Context, _ bun.IDB, match *Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateMatch"); err != nil {
		return err
	}
	if _, ok := f.matches[match.ID]; ok {
		return fmt.Errorf("failed to create match: duplicate id %s", match.ID)
	}
	f.matches[match.ID] = cloneMatch(match)
	return nil
}

func (f *MemoryRepository) get(id uuid.UUID) (*Match, error) {
	m, ok := f.matches[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneMatch(m), nil
}

func (f *MemoryRepository) GetMatch(_ context.Context, _ bun.IDB, id uuid.UUID) (*Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetMatch"); err != nil {
		return nil, err
	}
	return f.get(id)
}

func (f *MemoryRepository) GetMatchForUpdate(_ context.Context, _ bun.IDB, id uuid.UUID) (*Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetMatchForUpdate"); err != nil {
		return nil, err
	}
	return f.get(id)
}

func (f *MemoryRepository) GetMatchByRemoteID(_ context.Context, _ bun.IDB, remoteMatchID string) (*Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetMatchByRemoteID"); err != nil {
		return nil, err
	}
	for _, m := range f.matches {
		if m.RemoteMatchID != "" && m.RemoteMatchID == remoteMatchID {
			return cloneMatch(m), nil
		}
	}
	return nil, ErrNotFound
}

func (f *MemoryRepository) AddAcceptance(_ context.Context, _ bun.IDB, id uuid.UUID, userID string) ([]string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("AddAcceptance"); err != nil {
		return nil, false, err
	}
	m, ok := f.matches[id]
	if !ok || m.State != matchdomain.StateConfirming {
		return nil, false, nil
	}
	if !slices.Contains(m.AcceptedPlayers, userID) {
		m.AcceptedPlayers = append(m.AcceptedPlayers, userID)
	}
	return slices.Clone(m.AcceptedPlayers), true, nil
}

func (f *MemoryRepository) ApplyBan(_ context.Context, _ bun.IDB, id uuid.UUID, kind matchdomain.VetoKind, item string, expectedBans int, selected string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ApplyBan"); err != nil {
		return false, err
	}
	m, ok := f.matches[id]
	if !ok || m.State != matchdomain.StateVeto {
		return false, nil
	}
	bans, sel := &m.LocationBans, &m.SelectedLocation
	if kind == matchdomain.VetoMap {
		bans, sel = &m.MapBans, &m.SelectedMap
	}
	if len(*bans) != expectedBans || *sel != "" {
		return false, nil
	}
	*bans = append(*bans, item)
	if selected != "" {
		*sel = selected
	}
	return true, nil
}

func (f *MemoryRepository) FinishMatch(_ context.Context, _ bun.IDB, id uuid.UUID, outcome Outcome) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FinishMatch"); err != nil {
		return false, err
	}
	m, ok := f.matches[id]
	if !ok || (m.State != matchdomain.StateWarmup && m.State != matchdomain.StateLive) {
		return false, nil
	}
	m.State = matchdomain.StateFinished
	m.WinnerID = outcome.WinnerID
	m.WinnerTeam = outcome.WinnerTeam
	m.ScoreA = max(m.ScoreA, outcome.ScoreA)
	m.ScoreB = max(m.ScoreB, outcome.ScoreB)
	at := outcome.FinishedAt
	m.FinishedAt = &at
	return true, nil
}

func (f *MemoryRepository) TransitionState(_ context.Context, _ bun.IDB, id uuid.UUID, from []matchdomain.State, to matchdomain.State) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("TransitionState"); err != nil {
		return false, err
	}
	m, ok := f.matches[id]
	if !ok || !slices.Contains(from, m.State) {
		return false, nil
	}
	m.State = to
	if to == matchdomain.StateFinished && m.FinishedAt == nil {
		now := time.Now()
		m.FinishedAt = &now
	}
	return true, nil
}

func (f *MemoryRepository) CancelMatch(_ context.Context, _ bun.IDB, id uuid.UUID, from []matchdomain.State, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CancelMatch"); err != nil {
		return false, err
	}
	if len(from) == 0 {
		from = matchdomain.NonTerminalStates
	}
	m, ok := f.matches[id]
	if !ok || !slices.Contains(from, m.State) {
		return false, nil
	}
	m.State = matchdomain.StateCancelled
	m.CancelReason = reason
	return true, nil
}

func (f *MemoryRepository) flag(m *Match, flag Flag) (*bool, error) {
	switch flag {
	case FlagProvisioningStarted:
		return &m.ProvisioningStarted, nil
	case FlagCountdownStarted:
		return &m.CountdownStarted, nil
	case FlagTeardownStarted:
		return &m.TeardownStarted, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlag, flag)
	}
}

func (f *MemoryRepository) ClaimFlag(_ context.Context, _ bun.IDB, id uuid.UUID, flag Flag) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ClaimFlag:" + string(flag)); err != nil {
		return false, err
	}
	m, ok := f.matches[id]
	if !ok {
		return false, nil
	}
	p, err := f.flag(m, flag)
	if err != nil {
		return false, err
	}
	if *p {
		return false, nil
	}
	*p = true
	return true, nil
}

func (f *MemoryRepository) ReleaseFlag(_ context.Context, _ bun.IDB, id uuid.UUID, flag Flag) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ReleaseFlag:" + string(flag)); err != nil {
		return err
	}
	m, ok := f.matches[id]
	if !ok {
		return nil
	}
	p, err := f.flag(m, flag)
	if err != nil {
		return err
	}
	*p = false
	return nil
}

func (f *MemoryRepository) EnterConfiguring(_ context.Context, _ bun.IDB, id uuid.UUID, provisionBy time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("EnterConfiguring"); err != nil {
		return false, err
	}
	m, ok := f.matches[id]
	if !ok || m.State != matchdomain.StateVeto {
		return false, nil
	}
	m.State = matchdomain.StateConfiguring
	m.ProvisioningDeadline = &provisionBy
	return true, nil
}

func (f *MemoryRepository) StartCountdown(_ context.Context, _ bun.IDB, id uuid.UUID, liveAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("StartCountdown"); err != nil {
		return false, err
	}
	m, ok := f.matches[id]
	if !ok || m.State != matchdomain.StateWarmup || m.CountdownStarted {
		return false, nil
	}
	m.CountdownStarted = true
	m.LiveAt = &liveAt
	return true, nil
}

func (f *MemoryRepository) ActivateServer(_ context.Context, _ bun.IDB, id uuid.UUID, details ServerDetails) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ActivateServer"); err != nil {
		return false, err
	}
	m, ok := f.matches[id]
	if !ok || m.State != matchdomain.StateConfiguring {
		return false, nil
	}
	m.State = matchdomain.StateWarmup
	m.ServerID = details.ServerID
	m.RemoteMatchID = details.RemoteMatchID
	m.ConnectString = details.ConnectString
	m.ServerPassword = details.ServerPassword
	deadline := details.WarmupDeadline
	m.WarmupDeadline = &deadline
	return true, nil
}

func (f *MemoryRepository) RecordScore(_ context.Context, _ bun.IDB, id uuid.UUID, scoreA, scoreB int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("RecordScore"); err != nil {
		return err
	}
	m, ok := f.matches[id]
	if !ok || (m.State != matchdomain.StateWarmup && m.State != matchdomain.StateLive) {
		return nil
	}
	m.ScoreA = max(m.ScoreA, scoreA)
	m.ScoreB = max(m.ScoreB, scoreB)
	m.CurrentRound = matchdomain.CurrentRound(m.ScoreA, m.ScoreB)
	return nil
}

func (f *MemoryRepository) ActiveParticipants(_ context.Context, _ bun.IDB, userIDs []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ActiveParticipants"); err != nil {
		return nil, err
	}
	var out []string
	for _, id := range userIDs {
		for _, m := range f.matches {
			if !m.State.IsTerminal() && (slices.Contains(m.TeamA, id) || slices.Contains(m.TeamB, id)) {
				out = append(out, id)
				break
			}
		}
	}
	return out, nil
}

func (f *MemoryRepository) ListByStates(_ context.Context, _ bun.IDB, states ...matchdomain.State) ([]Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListByStates"); err != nil {
		return nil, err
	}
	var out []Match
	for _, m := range f.matches {
		if slices.Contains(states, m.State) {
			out = append(out, *cloneMatch(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *MemoryRepository) CreatePlayerStats(_ context.Context, _ bun.IDB, stats []PlayerStat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreatePlayerStats"); err != nil {
		return err
	}
	for _, s := range stats {
		rows, ok := f.stats[s.MatchID]
		if !ok {
			rows = map[string]*PlayerStat{}
			f.stats[s.MatchID] = rows
		}
		if _, exists := rows[s.UserID]; exists {
			continue
		}
		row := s
		rows[s.UserID] = &row
	}
	return nil
}

func (f *MemoryRepository) MarkConnected(_ context.Context, _ bun.IDB, matchID uuid.UUID, userID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("MarkConnected"); err != nil {
		return false, err
	}
	row, ok := f.stats[matchID][userID]
	if !ok || row.Connected {
		return false, nil
	}
	row.Connected = true
	row.ConnectedAt = &at
	return true, nil
}

func (f *MemoryRepository) CountConnected(_ context.Context, _ bun.IDB, matchID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CountConnected"); err != nil {
		return 0, err
	}
	n := 0
	for _, row := range f.stats[matchID] {
		if row.Connected {
			n++
		}
	}
	return n, nil
}

func (f *MemoryRepository) ListPlayerStats(_ context.Context, _ bun.IDB, matchID uuid.UUID) ([]PlayerStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListPlayerStats"); err != nil {
		return nil, err
	}
	out := make([]PlayerStat, 0, len(f.stats[matchID]))
	for _, row := range f.stats[matchID] {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Team != out[j].Team {
			return out[i].Team < out[j].Team
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (f *MemoryRepository) RecordStatLine(_ context.Context, _ bun.IDB, matchID uuid.UUID, userID string, line StatLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("RecordStatLine"); err != nil {
		return err
	}
	row, ok := f.stats[matchID][userID]
	if !ok {
		return nil
	}
	row.Kills = max(row.Kills, line.Kills)
	row.Deaths = max(row.Deaths, line.Deaths)
	row.Assists = max(row.Assists, line.Assists)
	row.MVPs = max(row.MVPs, line.MVPs)
	return nil
}

func (f *MemoryRepository) SetEloChanges(_ context.Context, _ bun.IDB, matchID uuid.UUID, changes map[string]int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SetEloChanges"); err != nil {
		return err
	}
	for userID, delta := range changes {
		if row, ok := f.stats[matchID][userID]; ok {
			d := delta
			row.EloChange = &d
		}
	}
	return nil
}

func (f *MemoryRepository) InsertHistory(_ context.Context, _ bun.IDB, history *MatchHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("InsertHistory"); err != nil {
		return err
	}
	if _, ok := f.history[history.MatchID]; ok {
		return nil
	}
	c := *history
	f.history[history.MatchID] = &c
	return nil
}
