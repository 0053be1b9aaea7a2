package matchservice

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Scheduler arms the delayed callbacks that drive the lifecycle forward.
// Each callback is delivered as a *.due or *.expired event and handled idempotently.
type Scheduler interface {
	ScheduleConfirmationTimeout(ctx context.Context, matchID uuid.UUID, at time.Time) error
	ScheduleWarmupTimeout(ctx context.Context, matchID uuid.UUID, at time.Time) error
	ScheduleGoLive(ctx context.Context, matchID uuid.UUID, at time.Time) error
	ScheduleTeardown(ctx context.Context, matchID uuid.UUID, at time.Time) error
}

// ServerSpec is everything the provider needs to boot a match server.
type ServerSpec struct {
	MatchID    uuid.UUID
	Name       string
	Map        string
	Location   string
	Password   string
	TeamA      []string // SteamID64
	TeamB      []string // SteamID64
	WebhookURL string
	LogURL     string
}

// ServerInstance is the provider's handle on a booted server.
type ServerInstance struct {
	ServerID      string
	RemoteMatchID string
	ConnectString string
}

// GameServerProvider is the slice of the hosting API the lifecycle uses.
// StopServer and DeleteServer return ErrServerNotFound for a server that is already gone.
type GameServerProvider interface {
	CreateInstance(ctx context.Context, spec ServerSpec) (ServerInstance, error)
	SendConsoleCommand(ctx context.Context, serverID, command string) error
	StopServer(ctx context.Context, serverID string) error
	DeleteServer(ctx context.Context, serverID string) error
}
