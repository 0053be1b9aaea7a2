package playerdb

import (
	"time"

	"github.com/uptrace/bun"
)

// DefaultRating is assigned to accounts that have never played.
const DefaultRating = 1000

// Player is the competitive profile the orchestrator reads and settles against.
type Player struct {
	bun.BaseModel `bun:"table:players,alias:p"`

	UserID       string    `bun:"user_id,pk"`
	SteamID      string    `bun:"steam_id,notnull,unique"`
	DisplayName  string    `bun:"display_name,notnull,default:''"`
	Rating       int       `bun:"rating,notnull,default:1000"`
	Coins        int       `bun:"coins,notnull,default:0"`
	AbandonCount int       `bun:"abandon_count,notnull,default:0"`
	IsBot        bool      `bun:"is_bot,notnull,default:false"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
