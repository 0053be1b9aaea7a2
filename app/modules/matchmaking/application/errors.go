package matchmakingservice

import "errors"

// User errors. Handlers turn these into queue.rejected events and ack the command.
var (
	ErrAlreadyQueued  = errors.New("user is already queued")
	ErrAlreadyInMatch = errors.New("user is already in an active match")
	ErrNotQueued      = errors.New("user is not queued")
	ErrCooldownActive = errors.New("queue cooldown is active")
	ErrUnknownMode    = errors.New("unknown queue mode")
	ErrUnknownPlayer  = errors.New("user has no player profile")
)
