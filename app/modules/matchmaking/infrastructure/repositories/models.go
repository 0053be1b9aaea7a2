package matchmakingdb

import (
	"time"

	"github.com/uptrace/bun"
)

// QueueEntry is a user waiting for a match. A user holds at most one entry.
type QueueEntry struct {
	bun.BaseModel `bun:"table:queue_entries,alias:qe"`

	UserID        string     `bun:"user_id,pk"`
	Mode          string     `bun:"mode,notnull"`
	JoinedAt      time.Time  `bun:"joined_at,notnull"`
	CooldownUntil *time.Time `bun:"cooldown_until"`
}

// CoolingDown reports whether the entry is still barred from pairing at now.
func (e *QueueEntry) CoolingDown(now time.Time) bool {
	return e.CooldownUntil != nil && e.CooldownUntil.After(now)
}
