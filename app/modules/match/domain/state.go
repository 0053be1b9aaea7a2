package matchdomain

// State is a match lifecycle state.
type State string

const (
	StateConfirming  State = "CONFIRMING"
	StateVeto        State = "VETO"
	StateConfiguring State = "CONFIGURING"
	StateWarmup      State = "WARMUP"
	StateLive        State = "LIVE"
	StateFinished    State = "FINISHED"
	StateCancelled   State = "CANCELLED"
)

// NonTerminalStates lists every state a match can still leave.
var NonTerminalStates = []State{StateConfirming, StateVeto, StateConfiguring, StateWarmup, StateLive}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateFinished || s == StateCancelled
}

var forward = map[State][]State{
	StateConfirming:  {StateVeto},
	StateVeto:        {StateConfiguring},
	StateConfiguring: {StateWarmup},
	StateWarmup:      {StateLive, StateFinished},
	StateLive:        {StateFinished},
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
// WARMUP -> FINISHED exists because a finished signal may arrive before the live one.
func CanTransition(from, to State) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StateCancelled {
		return true
	}
	for _, s := range forward[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Team identifies one side of a match.
type Team string

const (
	TeamA Team = "A"
	TeamB Team = "B"
)

// Other returns the opposing team.
func (t Team) Other() Team {
	if t == TeamA {
		return TeamB
	}
	return TeamA
}

// Roster is the two sides of a match.
type Roster struct {
	TeamA []string
	TeamB []string
}

// Participants returns every user in the match, team A first.
func (r Roster) Participants() []string {
	out := make([]string, 0, len(r.TeamA)+len(r.TeamB))
	out = append(out, r.TeamA...)
	return append(out, r.TeamB...)
}

// TeamOf reports which side a user plays on.
func (r Roster) TeamOf(userID string) (Team, bool) {
	for _, id := range r.TeamA {
		if id == userID {
			return TeamA, true
		}
	}
	for _, id := range r.TeamB {
		if id == userID {
			return TeamB, true
		}
	}
	return "", false
}

// Members returns the users on one side.
func (r Roster) Members(t Team) []string {
	if t == TeamA {
		return r.TeamA
	}
	return r.TeamB
}

// Size is the number of players that must connect before the lobby is ready.
func (r Roster) Size() int {
	return len(r.TeamA) + len(r.TeamB)
}
