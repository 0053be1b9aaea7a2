package matchmakingdomain

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func cand(id string, rating int, joinedSec int) Candidate {
	return Candidate{UserID: id, Rating: rating, JoinedAt: base.Add(time.Duration(joinedSec) * time.Second)}
}

func TestFormGroups_Duel(t *testing.T) {
	tests := []struct {
		name  string
		cands []Candidate
		want  []Group
	}{
		{
			name:  "empty queue",
			cands: nil,
			want:  nil,
		},
		{
			name:  "single entry stays queued",
			cands: []Candidate{cand("u1", 1000, 0)},
			want:  nil,
		},
		{
			name:  "two entries pair",
			cands: []Candidate{cand("u2", 1100, 1), cand("u1", 1000, 0)},
			want:  []Group{{TeamA: []string{"u2"}, TeamB: []string{"u1"}}},
		},
		{
			name: "head takes closest rating",
			cands: []Candidate{
				cand("head", 1000, 0),
				cand("far", 1500, 1),
				cand("near", 1020, 2),
			},
			want: []Group{{TeamA: []string{"near"}, TeamB: []string{"head"}}},
		},
		{
			name: "equal distance goes to earliest join",
			cands: []Candidate{
				cand("head", 1000, 0),
				cand("late", 1050, 5),
				cand("early", 950, 2),
			},
			want: []Group{{TeamA: []string{"head"}, TeamB: []string{"early"}}},
		},
		{
			name: "leftover after greedy passes",
			cands: []Candidate{
				cand("a", 1000, 0),
				cand("b", 2000, 1),
				cand("c", 1010, 2),
				cand("d", 1990, 3),
				cand("e", 1500, 4),
			},
			want: []Group{
				{TeamA: []string{"c"}, TeamB: []string{"a"}},
				{TeamA: []string{"b"}, TeamB: []string{"d"}},
			},
		},
		{
			name: "joined at the same instant orders by user id",
			cands: []Candidate{
				cand("z", 1000, 0),
				cand("m", 1000, 0),
				cand("a", 1000, 0),
			},
			want: []Group{{TeamA: []string{"a"}, TeamB: []string{"m"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormGroups(tt.cands, 1)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FormGroups() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormGroups_TeamModeSnakeDraft(t *testing.T) {
	cands := make([]Candidate, 0, 10)
	for i := 0; i < 10; i++ {
		cands = append(cands, cand(string(rune('a'+i)), 2000-i*100, i))
	}

	groups := FormGroups(cands, 5)
	if len(groups) != 1 {
		t.Fatalf("expected one group, got %d", len(groups))
	}
	want := Group{
		TeamA: []string{"a", "d", "e", "h", "i"},
		TeamB: []string{"b", "c", "f", "g", "j"},
	}
	if diff := cmp.Diff(want, groups[0]); diff != "" {
		t.Errorf("snake draft mismatch (-want +got):\n%s", diff)
	}
}

func TestFormGroups_NeverReusesAUser(t *testing.T) {
	faker := gofakeit.New(42)
	for _, teamSize := range []int{1, 2, 5} {
		n := faker.Number(0, 60)
		cands := make([]Candidate, 0, n)
		for i := 0; i < n; i++ {
			cands = append(cands, Candidate{
				UserID:   faker.UUID(),
				Rating:   faker.Number(0, 3000),
				JoinedAt: base.Add(time.Duration(faker.Number(0, 600)) * time.Second),
			})
		}

		groups := FormGroups(cands, teamSize)
		seen := map[string]bool{}
		for _, g := range groups {
			if len(g.TeamA) != teamSize || len(g.TeamB) != teamSize {
				t.Fatalf("team size %d: got sides %d/%d", teamSize, len(g.TeamA), len(g.TeamB))
			}
			for _, id := range g.Members() {
				if seen[id] {
					t.Fatalf("team size %d: user %s paired twice", teamSize, id)
				}
				seen[id] = true
			}
		}
		if want := (n / (2 * teamSize)); len(groups) != want {
			t.Errorf("team size %d, %d entries: got %d groups, want %d", teamSize, n, len(groups), want)
		}
	}
}

func TestFormGroups_DoesNotMutateInput(t *testing.T) {
	cands := []Candidate{cand("b", 1000, 1), cand("a", 1000, 0)}
	before := append([]Candidate(nil), cands...)
	FormGroups(cands, 1)
	if diff := cmp.Diff(before, cands); diff != "" {
		t.Errorf("input mutated (-want +got):\n%s", diff)
	}
}
