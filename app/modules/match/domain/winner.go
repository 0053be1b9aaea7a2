package matchdomain

// DecideWinner picks the side with the higher score. A level score is broken
// by coin, which returns true for team A.
func DecideWinner(scoreA, scoreB int, coin func() bool) Team {
	switch {
	case scoreA > scoreB:
		return TeamA
	case scoreB > scoreA:
		return TeamB
	case coin != nil && coin():
		return TeamA
	default:
		return TeamB
	}
}

// CurrentRound is the round being played given both scores.
func CurrentRound(scoreA, scoreB int) int {
	return scoreA + scoreB + 1
}
