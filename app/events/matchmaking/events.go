// Package matchmakingevents defines the queue topics and their payloads.
package matchmakingevents

import (
	"time"

	"github.com/google/uuid"
)

const (
	// QueueJoinRequestedV1 is published by clients to enter a queue.
	QueueJoinRequestedV1 = "matchmaking.queue.join.requested.v1"
	// QueueLeaveRequestedV1 is published by clients to withdraw from the queue.
	QueueLeaveRequestedV1 = "matchmaking.queue.leave.requested.v1"
	// QueueJoinedV1 confirms a queue entry was created.
	QueueJoinedV1 = "matchmaking.queue.joined.v1"
	// QueueLeftV1 confirms a queue entry was removed.
	QueueLeftV1 = "matchmaking.queue.left.v1"
	// QueueRejectedV1 reports a join or leave that was refused.
	QueueRejectedV1 = "matchmaking.queue.rejected.v1"
	// PlayersRequeuedV1 reports the entries restored after a cancelled confirmation.
	PlayersRequeuedV1 = "matchmaking.queue.requeued.v1"
)

type QueueJoinRequestedPayloadV1 struct {
	UserID string `json:"user_id"`
	Mode   string `json:"mode"`
}

type QueueLeaveRequestedPayloadV1 struct {
	UserID string `json:"user_id"`
}

type QueueJoinedPayloadV1 struct {
	UserID   string    `json:"user_id"`
	Mode     string    `json:"mode"`
	JoinedAt time.Time `json:"joined_at"`
}

type QueueLeftPayloadV1 struct {
	UserID string `json:"user_id"`
}

type QueueRejectedPayloadV1 struct {
	UserID string `json:"user_id"`
	Action string `json:"action"`
	Reason string `json:"reason"`
}

type PlayersRequeuedPayloadV1 struct {
	MatchID  uuid.UUID `json:"match_id"`
	Requeued []string  `json:"requeued"`
	Cooldown []string  `json:"cooldown"`
}
