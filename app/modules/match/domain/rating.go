package matchdomain

import (
	"fmt"
	"math"
)

// RatingModel turns the pre-match ratings of both sides into post-match ratings.
// A deployment uses exactly one model for every match.
type RatingModel interface {
	Name() string
	Apply(winners, losers []int) (newWinners, newLosers []int)
}

// NewRatingModel builds the model named in configuration.
func NewRatingModel(name string, k int) (RatingModel, error) {
	if k <= 0 {
		return nil, fmt.Errorf("rating k must be positive, got %d", k)
	}
	switch name {
	case "", "fixed":
		return FixedDelta{K: k}, nil
	case "elo":
		return Elo{K: k}, nil
	default:
		return nil, fmt.Errorf("unknown rating model %q", name)
	}
}

// FixedDelta moves every winner up by K and every loser down by K, floored at zero.
type FixedDelta struct {
	K int
}

func (FixedDelta) Name() string { return "fixed" }

func (m FixedDelta) Apply(winners, losers []int) ([]int, []int) {
	return shift(winners, m.K), shift(losers, -m.K)
}

// Elo scales the delta by how unexpected the result was, using team averages.
type Elo struct {
	K int
}

func (Elo) Name() string { return "elo" }

func (m Elo) Apply(winners, losers []int) ([]int, []int) {
	expected := ExpectedScore(average(winners), average(losers))
	delta := int(math.Round(float64(m.K) * (1 - expected)))
	return shift(winners, delta), shift(losers, -delta)
}

// ExpectedScore is the Elo win expectation of a rating a against b.
func ExpectedScore(a, b float64) float64 {
	return 1 / (1 + math.Pow(10, (b-a)/400))
}

func average(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return float64(sum) / float64(len(ratings))
}

func shift(ratings []int, delta int) []int {
	out := make([]int, len(ratings))
	for i, r := range ratings {
		out[i] = max(0, r+delta)
	}
	return out
}
