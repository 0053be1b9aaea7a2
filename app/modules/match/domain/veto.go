package matchdomain

import (
	"errors"
	"slices"
)

// VetoKind names the two veto rounds, played in this order.
type VetoKind string

const (
	VetoLocation VetoKind = "location"
	VetoMap      VetoKind = "map"
)

var (
	ErrVetoComplete      = errors.New("veto round already complete")
	ErrItemNotInPool     = errors.New("item is not in the pool")
	ErrItemAlreadyBanned = errors.New("item already banned")
	ErrWrongTurn         = errors.New("not your team's turn")
	ErrEmptyPool         = errors.New("veto pool is empty")
)

// Veto is one elimination round. Selected is set once a single item remains.
type Veto struct {
	Pool     []string
	Banned   []string
	Selected string
}

// NewVeto starts a round; a single-item pool is decided immediately.
func NewVeto(pool []string) (Veto, error) {
	if len(pool) == 0 {
		return Veto{}, ErrEmptyPool
	}
	v := Veto{Pool: slices.Clone(pool)}
	if len(pool) == 1 {
		v.Selected = pool[0]
	}
	return v, nil
}

// TurnFor derives the acting team from how many bans have happened.
func TurnFor(bannedCount int) Team {
	if bannedCount%2 == 0 {
		return TeamA
	}
	return TeamB
}

// Turn is the team expected to ban next.
func (v Veto) Turn() Team {
	return TurnFor(len(v.Banned))
}

// Complete reports whether the round has produced its selection.
func (v Veto) Complete() bool {
	return v.Selected != ""
}

// Remaining lists pool items that are neither banned nor selected, in pool order.
func (v Veto) Remaining() []string {
	out := make([]string, 0, len(v.Pool))
	for _, item := range v.Pool {
		if !slices.Contains(v.Banned, item) {
			out = append(out, item)
		}
	}
	return out
}

// Ban applies a guarded ban by team and returns the updated round.
func (v Veto) Ban(team Team, item string) (Veto, error) {
	if v.Complete() {
		return v, ErrVetoComplete
	}
	if !slices.Contains(v.Pool, item) {
		return v, ErrItemNotInPool
	}
	if slices.Contains(v.Banned, item) {
		return v, ErrItemAlreadyBanned
	}
	if team != v.Turn() {
		return v, ErrWrongTurn
	}

	next := Veto{
		Pool:   v.Pool,
		Banned: append(slices.Clone(v.Banned), item),
	}
	if remaining := next.Remaining(); len(remaining) == 1 {
		next.Selected = remaining[0]
	}
	return next, nil
}

// PickAutoBan chooses a uniformly random remaining item. intn must return a value in [0, n).
func (v Veto) PickAutoBan(intn func(n int) int) (string, bool) {
	if v.Complete() {
		return "", false
	}
	remaining := v.Remaining()
	if len(remaining) == 0 {
		return "", false
	}
	return remaining[intn(len(remaining))], true
}
