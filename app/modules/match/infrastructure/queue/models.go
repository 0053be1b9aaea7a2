package matchqueue

import (
	matchevents "github.com/Black-And-White-Club/frag-arena/app/events/match"
)

// Job kinds as stored in river_job.kind.
const (
	KindConfirmationTimeout = "confirmation_timeout"
	KindWarmupTimeout       = "warmup_timeout"
	KindGoLive              = "go_live"
	KindServerTeardown      = "server_teardown"
)

var matchJobKinds = []string{KindConfirmationTimeout, KindWarmupTimeout, KindGoLive, KindServerTeardown}

// timerJob is a delayed callback that, when due, publishes one event about a match.
type timerJob interface {
	Kind() string
	matchID() string
	topic() string
}

// ConfirmationTimeoutJob fires when the confirmation window closes.
type ConfirmationTimeoutJob struct {
	MatchID string `json:"match_id"`
}

func (ConfirmationTimeoutJob) Kind() string      { return KindConfirmationTimeout }
func (j ConfirmationTimeoutJob) matchID() string { return j.MatchID }
func (ConfirmationTimeoutJob) topic() string     { return matchevents.MatchConfirmationExpiredV1 }

// WarmupTimeoutJob fires when the warmup window closes.
type WarmupTimeoutJob struct {
	MatchID string `json:"match_id"`
}

func (WarmupTimeoutJob) Kind() string      { return KindWarmupTimeout }
func (j WarmupTimeoutJob) matchID() string { return j.MatchID }
func (WarmupTimeoutJob) topic() string     { return matchevents.MatchWarmupExpiredV1 }

// GoLiveJob fires when the countdown after a full lobby elapses.
type GoLiveJob struct {
	MatchID string `json:"match_id"`
}

func (GoLiveJob) Kind() string      { return KindGoLive }
func (j GoLiveJob) matchID() string { return j.MatchID }
func (GoLiveJob) topic() string     { return matchevents.MatchGoLiveDueV1 }

// ServerTeardownJob fires once the post-match delay has passed.
type ServerTeardownJob struct {
	MatchID string `json:"match_id"`
}

func (ServerTeardownJob) Kind() string      { return KindServerTeardown }
func (j ServerTeardownJob) matchID() string { return j.MatchID }
func (ServerTeardownJob) topic() string     { return matchevents.MatchTeardownDueV1 }
