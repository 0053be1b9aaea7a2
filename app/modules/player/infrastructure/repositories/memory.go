package playerdb

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/uptrace/bun"
)

// MemoryRepository is an in-memory Repository for tests.
type MemoryRepository struct {
	mu      sync.Mutex
	players map[string]*Player

	Errors map[string]error
}

// NewMemoryRepository returns a repository holding the given players.
func NewMemoryRepository(players ...Player) *MemoryRepository {
	r := &MemoryRepository{players: map[string]*Player{}, Errors: map[string]error{}}
	for _, p := range players {
		c := p
		r.players[p.UserID] = &c
	}
	return r
}

var _ Repository = (*MemoryRepository)(nil)

// Player returns a copy of the stored player.
func (r *MemoryRepository) Player(userID string) (Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[userID]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

func (r *MemoryRepository) list(userIDs []string) []Player {
	var out []Player
	for _, id := range userIDs {
		if p, ok := r.players[id]; ok {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return slices.CompactFunc(out, func(a, b Player) bool { return a.UserID == b.UserID })
}

func (r *MemoryRepository) GetPlayers(_ context.Context, _ bun.IDB, userIDs []string) ([]Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.Errors["GetPlayers"]; err != nil {
		return nil, err
	}
	return r.list(userIDs), nil
}

func (r *MemoryRepository) GetPlayersForUpdate(_ context.Context, _ bun.IDB, userIDs []string) ([]Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.Errors["GetPlayersForUpdate"]; err != nil {
		return nil, err
	}
	return r.list(userIDs), nil
}

func (r *MemoryRepository) ApplySettlement(_ context.Context, _ bun.IDB, userID string, rating, coinsDelta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.Errors["ApplySettlement"]; err != nil {
		return err
	}
	p, ok := r.players[userID]
	if !ok {
		return ErrNotFound
	}
	p.Rating = rating
	p.Coins += coinsDelta
	return nil
}

func (r *MemoryRepository) IncrementAbandons(_ context.Context, _ bun.IDB, userIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.Errors["IncrementAbandons"]; err != nil {
		return err
	}
	for _, id := range userIDs {
		if p, ok := r.players[id]; ok {
			p.AbandonCount++
		}
	}
	return nil
}
