package matchmakingdomain

import (
	"sort"
	"time"
)

// Candidate is an eligible queue entry with the rating it pairs on.
type Candidate struct {
	UserID   string
	Rating   int
	JoinedAt time.Time
}

// Group is one formed match.
type Group struct {
	TeamA []string
	TeamB []string
}

// Members returns every user in the group.
func (g Group) Members() []string {
	out := make([]string, 0, len(g.TeamA)+len(g.TeamB))
	out = append(out, g.TeamA...)
	return append(out, g.TeamB...)
}

// SortByQueueOrder orders candidates oldest first, user id breaking ties.
func SortByQueueOrder(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if !cands[i].JoinedAt.Equal(cands[j].JoinedAt) {
			return cands[i].JoinedAt.Before(cands[j].JoinedAt)
		}
		return cands[i].UserID < cands[j].UserID
	})
}

// FormGroups pairs the queue greedily. The oldest waiting entry takes the
// 2*teamSize-1 entries closest to its rating, earliest join first on equal
// distance; sides are then split by snake draft. Leftovers stay queued.
// No user appears in more than one group.
func FormGroups(cands []Candidate, teamSize int) []Group {
	if teamSize < 1 {
		teamSize = 1
	}
	need := 2 * teamSize

	remaining := make([]Candidate, len(cands))
	copy(remaining, cands)
	SortByQueueOrder(remaining)

	var groups []Group
	for len(remaining) >= need {
		head := remaining[0]
		rest := make([]Candidate, len(remaining)-1)
		copy(rest, remaining[1:])

		// rest keeps queue order, so the stable sort leaves earliest join first on ties.
		sort.SliceStable(rest, func(i, j int) bool {
			return distance(head, rest[i]) < distance(head, rest[j])
		})

		members := append([]Candidate{head}, rest[:need-1]...)
		groups = append(groups, SnakeDraft(members))

		taken := make(map[string]struct{}, need)
		for _, m := range members {
			taken[m.UserID] = struct{}{}
		}
		next := remaining[:0:0]
		for _, c := range remaining {
			if _, ok := taken[c.UserID]; !ok {
				next = append(next, c)
			}
		}
		remaining = next
	}
	return groups
}

// SnakeDraft splits members by rating, highest first, in A B B A A B... order.
func SnakeDraft(members []Candidate) Group {
	ordered := make([]Candidate, len(members))
	copy(ordered, members)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Rating != ordered[j].Rating {
			return ordered[i].Rating > ordered[j].Rating
		}
		return ordered[i].UserID < ordered[j].UserID
	})

	var g Group
	for i, c := range ordered {
		if pick := i % 4; pick == 0 || pick == 3 {
			g.TeamA = append(g.TeamA, c.UserID)
		} else {
			g.TeamB = append(g.TeamB, c.UserID)
		}
	}
	return g
}

func distance(a, b Candidate) int {
	d := a.Rating - b.Rating
	if d < 0 {
		return -d
	}
	return d
}
