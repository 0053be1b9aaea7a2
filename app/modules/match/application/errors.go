package matchservice

import "errors"

// User and lifecycle errors. Handlers turn these into match.action.rejected
// events, or drop them for timer callbacks that arrive late.
var (
	ErrMatchNotFound   = errors.New("match not found")
	ErrNotParticipant  = errors.New("user is not a participant of this match")
	ErrInvalidState    = errors.New("match is not in a state that allows this action")
	ErrWrongVetoRound  = errors.New("that veto round is not active")
	ErrVetoChanged     = errors.New("veto changed concurrently, retry")
	ErrAlreadyStarted  = errors.New("provisioning already started")
	ErrInvalidTeam     = errors.New("winner team must be A or B")
	ErrUnresolvedMatch = errors.New("evidence does not identify a match")
	ErrDeadlinePending = errors.New("deadline has not passed yet")
	ErrLobbyReady      = errors.New("every player is connected")
)

// ErrProvisioningFailed wraps the provider error reported back to the requester.
var ErrProvisioningFailed = errors.New("provisioning failed")

// ErrServerNotFound is returned by a GameServerProvider for a server that no longer exists.
var ErrServerNotFound = errors.New("game server not found")
