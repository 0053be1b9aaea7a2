package matchdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	matchdomain "github.com/Black-And-White-Club/frag-arena/app/modules/match/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

var (
	// ErrNotFound is returned when a match is not found.
	ErrNotFound = errors.New("match not found")
	// ErrUnknownFlag is returned for a guard column that does not exist.
	ErrUnknownFlag = errors.New("unknown guard flag")
)

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new match repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

// resolveDB returns the provided db handle, falling back to the repository's
// default connection if db is nil.
func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *Impl) CreateMatch(ctx context.Context, db bun.IDB, match *Match) error {
	db = r.resolveDB(db)
	now := time.Now()
	match.CreatedAt = now
	match.UpdatedAt = now
	if _, err := db.NewInsert().Model(match).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

func (r *Impl) GetMatch(ctx context.Context, db bun.IDB, id uuid.UUID) (*Match, error) {
	return r.getMatch(ctx, r.resolveDB(db), id, false)
}

func (r *Impl) GetMatchForUpdate(ctx context.Context, db bun.IDB, id uuid.UUID) (*Match, error) {
	return r.getMatch(ctx, r.resolveDB(db), id, true)
}

func (r *Impl) getMatch(ctx context.Context, db bun.IDB, id uuid.UUID, lock bool) (*Match, error) {
	match := new(Match)
	q := db.NewSelect().Model(match).Where("id = ?", id)
	if lock {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return match, nil
}

func (r *Impl) GetMatchByRemoteID(ctx context.Context, db bun.IDB, remoteMatchID string) (*Match, error) {
	db = r.resolveDB(db)
	match := new(Match)
	err := db.NewSelect().
		Model(match).
		Where("remote_match_id = ?", remoteMatchID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get match by remote id: %w", err)
	}
	return match, nil
}

func (r *Impl) AddAcceptance(ctx context.Context, db bun.IDB, id uuid.UUID, userID string) ([]string, bool, error) {
	db = r.resolveDB(db)
	match := new(Match)
	result, err := db.NewUpdate().
		Model(match).
		Set("accepted_players = CASE WHEN ? = ANY(accepted_players) THEN accepted_players ELSE array_append(accepted_players, ?) END", userID, userID).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("state = ?", matchdomain.StateConfirming).
		Returning("accepted_players").
		Exec(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to record acceptance: %w", err)
	}
	ok, err := applied(result)
	if err != nil || !ok {
		return nil, false, err
	}
	return match.AcceptedPlayers, true, nil
}

func vetoColumns(kind matchdomain.VetoKind) (bans, selected bun.Ident, err error) {
	switch kind {
	case matchdomain.VetoLocation:
		return "location_bans", "selected_location", nil
	case matchdomain.VetoMap:
		return "map_bans", "selected_map", nil
	default:
		return "", "", fmt.Errorf("unknown veto kind %q", kind)
	}
}

func (r *Impl) ApplyBan(ctx context.Context, db bun.IDB, id uuid.UUID, kind matchdomain.VetoKind, item string, expectedBans int, selected string) (bool, error) {
	bans, sel, err := vetoColumns(kind)
	if err != nil {
		return false, err
	}
	db = r.resolveDB(db)
	q := db.NewUpdate().
		Model((*Match)(nil)).
		Set("? = array_append(?, ?)", bans, bans, item).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("state = ?", matchdomain.StateVeto).
		Where("cardinality(?) = ?", bans, expectedBans).
		Where("? IS NULL", sel)
	if selected != "" {
		q = q.Set("? = ?", sel, selected)
	}
	result, err := q.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to apply %s ban: %w", kind, err)
	}
	return applied(result)
}

func (r *Impl) FinishMatch(ctx context.Context, db bun.IDB, id uuid.UUID, outcome Outcome) (bool, error) {
	db = r.resolveDB(db)
	result, err := db.NewUpdate().
		Model((*Match)(nil)).
		Set("state = ?", matchdomain.StateFinished).
		Set("winner_id = ?", outcome.WinnerID).
		Set("winner_team = ?", outcome.WinnerTeam).
		Set("score_a = GREATEST(score_a, ?)", outcome.ScoreA).
		Set("score_b = GREATEST(score_b, ?)", outcome.ScoreB).
		Set("finished_at = ?", outcome.FinishedAt).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("state IN (?)", bun.In([]matchdomain.State{matchdomain.StateWarmup, matchdomain.StateLive})).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to finish match: %w", err)
	}
	return applied(result)
}

func (r *Impl) TransitionState(ctx context.Context, db bun.IDB, id uuid.UUID, from []matchdomain.State, to matchdomain.State) (bool, error) {
	db = r.resolveDB(db)
	q := db.NewUpdate().
		Model((*Match)(nil)).
		Set("state = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("state IN (?)", bun.In(from))
	if to == matchdomain.StateFinished {
		q = q.Set("finished_at = COALESCE(finished_at, ?)", time.Now())
	}
	result, err := q.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to transition match state: %w", err)
	}
	return applied(result)
}

func (r *Impl) CancelMatch(ctx context.Context, db bun.IDB, id uuid.UUID, from []matchdomain.State, reason string) (bool, error) {
	if len(from) == 0 {
		from = matchdomain.NonTerminalStates
	}
	db = r.resolveDB(db)
	result, err := db.NewUpdate().
		Model((*Match)(nil)).
		Set("state = ?", matchdomain.StateCancelled).
		Set("cancel_reason = ?", reason).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("state IN (?)", bun.In(from)).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to cancel match: %w", err)
	}
	return applied(result)
}

func flagColumn(flag Flag) (bun.Ident, error) {
	switch flag {
	case FlagProvisioningStarted, FlagCountdownStarted, FlagTeardownStarted:
		return bun.Ident(flag), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFlag, flag)
	}
}

func (r *Impl) ClaimFlag(ctx context.Context, db bun.IDB, id uuid.UUID, flag Flag) (bool, error) {
	col, err := flagColumn(flag)
	if err != nil {
		return false, err
	}
	db = r.resolveDB(db)
	result, err := db.NewUpdate().
		Model((*Match)(nil)).
		Set("? = TRUE", col).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("? = FALSE", col).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to claim %s: %w", flag, err)
	}
	return applied(result)
}

func (r *Impl) ReleaseFlag(ctx context.Context, db bun.IDB, id uuid.UUID, flag Flag) error {
	col, err := flagColumn(flag)
	if err != nil {
		return err
	}
	db = r.resolveDB(db)
	_, err = db.NewUpdate().
		Model((*Match)(nil)).
		Set("? = FALSE", col).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to release %s: %w", flag, err)
	}
	return nil
}

func (r *Impl) EnterConfiguring(ctx context.Context, db bun.IDB, id uuid.UUID, provisionBy time.Time) (bool, error) {
	db = r.resolveDB(db)
	result, err := db.NewUpdate().
		Model((*Match)(nil)).
		Set("state = ?", matchdomain.StateConfiguring).
		Set("provisioning_deadline = ?", provisionBy).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("state = ?", matchdomain.StateVeto).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to enter configuring: %w", err)
	}
	return applied(result)
}

func (r *Impl) StartCountdown(ctx context.Context, db bun.IDB, id uuid.UUID, liveAt time.Time) (bool, error) {
	db = r.resolveDB(db)
	result, err := db.NewUpdate().
		Model((*Match)(nil)).
		Set("countdown_started = TRUE").
		Set("live_at = ?", liveAt).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("state = ?", matchdomain.StateWarmup).
		Where("countdown_started = FALSE").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to start countdown: %w", err)
	}
	return applied(result)
}

func (r *Impl) ActivateServer(ctx context.Context, db bun.IDB, id uuid.UUID, details ServerDetails) (bool, error) {
	db = r.resolveDB(db)
	result, err := db.NewUpdate().
		Model((*Match)(nil)).
		Set("state = ?", matchdomain.StateWarmup).
		Set("server_id = ?", details.ServerID).
		Set("remote_match_id = ?", details.RemoteMatchID).
		Set("connect_string = ?", details.ConnectString).
		Set("server_password = ?", details.ServerPassword).
		Set("warmup_deadline = ?", details.WarmupDeadline).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("state = ?", matchdomain.StateConfiguring).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to activate server: %w", err)
	}
	return applied(result)
}

func (r *Impl) RecordScore(ctx context.Context, db bun.IDB, id uuid.UUID, scoreA, scoreB int) error {
	db = r.resolveDB(db)
	_, err := db.NewUpdate().
		Model((*Match)(nil)).
		Set("score_a = GREATEST(score_a, ?)", scoreA).
		Set("score_b = GREATEST(score_b, ?)", scoreB).
		Set("current_round = GREATEST(score_a, ?) + GREATEST(score_b, ?) + 1", scoreA, scoreB).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("state IN (?)", bun.In([]matchdomain.State{matchdomain.StateWarmup, matchdomain.StateLive})).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record score: %w", err)
	}
	return nil
}

func (r *Impl) ActiveParticipants(ctx context.Context, db bun.IDB, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	db = r.resolveDB(db)
	var matches []Match
	err := db.NewSelect().
		Model(&matches).
		Column("team_a", "team_b").
		Where("state IN (?)", bun.In(matchdomain.NonTerminalStates)).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("team_a && ?", pgdialect.Array(userIDs)).
				WhereOr("team_b && ?", pgdialect.Array(userIDs))
		}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active participants: %w", err)
	}

	wanted := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = struct{}{}
	}
	seen := make(map[string]struct{})
	var out []string
	for _, m := range matches {
		for _, id := range append(append([]string{}, m.TeamA...), m.TeamB...) {
			if _, ok := wanted[id]; !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *Impl) ListByStates(ctx context.Context, db bun.IDB, states ...matchdomain.State) ([]Match, error) {
	db = r.resolveDB(db)
	var matches []Match
	err := db.NewSelect().
		Model(&matches).
		Where("state IN (?)", bun.In(states)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches by state: %w", err)
	}
	return matches, nil
}

func (r *Impl) InsertHistory(ctx context.Context, db bun.IDB, history *MatchHistory) error {
	db = r.resolveDB(db)
	_, err := db.NewInsert().
		Model(history).
		On("CONFLICT (match_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert match history: %w", err)
	}
	return nil
}

func applied(result sql.Result) (bool, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}
