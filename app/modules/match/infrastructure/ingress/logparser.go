package matchingress

import (
	"bufio"
	"io"
	"regexp"
	"slices"
	"strconv"

	matchevents "github.com/Black-And-White-Club/frag-arena/app/events/match"
	"github.com/Black-And-White-Club/frag-arena/pkg/steamid"
)

const (
	sideCT = "CT"
	sideT  = "TERRORIST"
)

var (
	// "alice<2><[U:1:39734273]><>" entered the game
	enteredRe = regexp.MustCompile(`"[^"]*<\d+><([^>]+)><[^>]*>" entered the game`)
	// any player token that names the side the player is on
	sideTokenRe = regexp.MustCompile(`"[^"]*<\d+><([^>]+)><(CT|TERRORIST)>"`)
	// "alice<2><[U:1:1]>" switched from team <Unassigned> to <CT>
	switchedRe = regexp.MustCompile(`"[^"]*<\d+><([^>]+)>(?:<[^>]*>)?" switched from team <[^>]*> to <([^>]*)>`)
	// "alice<2><[U:1:1]><CT>" [-1 2 3] killed "bob<3><[U:1:2]><TERRORIST>" [4 5 6] with "ak47"
	killedRe = regexp.MustCompile(`"[^"]*<\d+><([^>]+)><[^>]*>" \[[^\]]*\] killed "[^"]*<\d+><([^>]+)><[^>]*>"`)
	// "carol<4><[U:1:3]><CT>" assisted killing "bob<3><[U:1:2]><TERRORIST>"
	assistedRe = regexp.MustCompile(`"[^"]*<\d+><([^>]+)><[^>]*>" (?:flash-)?assisted killing "`)
	// World triggered "Match_Start" on "de_mirage"
	matchStartRe = regexp.MustCompile(`World triggered "Match_Start"`)
	// World triggered "Round_End"
	roundEndRe = regexp.MustCompile(`World triggered "Round_End"`)
	// Team "CT" scored "7" with "5" players
	teamScoredRe = regexp.MustCompile(`Team "(CT|TERRORIST)" scored "(\d+)"`)
	// Game Over: competitive mg_active de_mirage score 13:4 after 35 min
	gameOverRe = regexp.MustCompile(`Game Over: \S+ \S+ \S+ score (\d+):(\d+)`)
)

// LogFacts is what a batch of server log lines tells us about a match.
type LogFacts struct {
	Connected   []string
	Stats       []matchevents.PlayerLine
	SideScore   *matchevents.SideScoreV1
	GameStarted bool
	Finished    bool
}

// Empty reports whether the batch carried nothing the lifecycle cares about.
func (f LogFacts) Empty() bool {
	return len(f.Connected) == 0 && len(f.Stats) == 0 && f.SideScore == nil && !f.GameStarted && !f.Finished
}

type logState struct {
	facts LogFacts
	sides map[string]string
	lines map[string]*matchevents.PlayerLine
	order []string
	ct, t *int
}

// player normalizes a log identity. Bots and unreadable ids report false.
func player(raw string) (string, bool) {
	if steamid.IsBot(raw) {
		return "", false
	}
	sid, err := steamid.Normalize(raw)
	return sid, err == nil
}

func (st *logState) line(sid string) *matchevents.PlayerLine {
	if l, ok := st.lines[sid]; ok {
		return l
	}
	l := &matchevents.PlayerLine{SteamID: sid}
	st.lines[sid] = l
	st.order = append(st.order, sid)
	return l
}

func (st *logState) setSide(raw, side string) {
	if sid, ok := player(raw); ok {
		st.sides[sid] = side
	}
}

// snapshotScore records the latest side score together with who is on each
// side right now.
func (st *logState) snapshotScore() {
	ss := &matchevents.SideScoreV1{}
	if st.ct != nil {
		ss.CT = *st.ct
	}
	if st.t != nil {
		ss.T = *st.t
	}
	for sid, side := range st.sides {
		switch side {
		case sideCT:
			ss.CTPlayers = append(ss.CTPlayers, sid)
		case sideT:
			ss.TPlayers = append(ss.TPlayers, sid)
		}
	}
	slices.Sort(ss.CTPlayers)
	slices.Sort(ss.TPlayers)
	st.facts.SideScore = ss
}

// ParseLog scans server log lines. Identities are normalized to SteamID64
// and bots are skipped.
//
// Scores are reported per side. The server swaps sides at halftime, so the
// result carries the side membership seen in this batch and leaves mapping
// sides to teams to the caller. Kill and assist tallies cover this batch
// only.
func ParseLog(r io.Reader) (LogFacts, error) {
	st := &logState{
		sides: map[string]string{},
		lines: map[string]*matchevents.PlayerLine{},
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		text := sc.Text()

		for _, m := range sideTokenRe.FindAllStringSubmatch(text, -1) {
			st.setSide(m[1], m[2])
		}

		if m := enteredRe.FindStringSubmatch(text); m != nil {
			if sid, ok := player(m[1]); ok && !slices.Contains(st.facts.Connected, sid) {
				st.facts.Connected = append(st.facts.Connected, sid)
			}
			continue
		}

		if m := switchedRe.FindStringSubmatch(text); m != nil {
			st.setSide(m[1], m[2])
			continue
		}

		if m := killedRe.FindStringSubmatch(text); m != nil {
			attacker, aok := player(m[1])
			victim, vok := player(m[2])
			if aok && attacker != victim {
				st.line(attacker).Kills++
			}
			if vok {
				st.line(victim).Deaths++
			}
			continue
		}

		if m := assistedRe.FindStringSubmatch(text); m != nil {
			if sid, ok := player(m[1]); ok {
				st.line(sid).Assists++
			}
			continue
		}

		if matchStartRe.MatchString(text) || roundEndRe.MatchString(text) {
			st.facts.GameStarted = true
			continue
		}

		if m := teamScoredRe.FindStringSubmatch(text); m != nil {
			n, err := strconv.Atoi(m[2])
			if err != nil {
				continue
			}
			if m[1] == sideCT {
				st.ct = &n
			} else {
				st.t = &n
			}
			st.facts.GameStarted = true
			st.snapshotScore()
			continue
		}

		if m := gameOverRe.FindStringSubmatch(text); m != nil {
			ct, errCT := strconv.Atoi(m[1])
			t, errT := strconv.Atoi(m[2])
			if errCT == nil && errT == nil {
				st.ct, st.t = &ct, &t
				st.snapshotScore()
			}
			st.facts.Finished = true
		}
	}

	for _, sid := range st.order {
		st.facts.Stats = append(st.facts.Stats, *st.lines[sid])
	}
	return st.facts, sc.Err()
}
