package tournament

import (
	"time"
)

// MatchResult is the terminal outcome of one matchup. Once written it is
// immutable; duplicate submissions are rejected, not overwritten. An empty
// WinnerAlias means a double forfeit: both participants are eliminated.
type MatchResult struct {
	ScoreP1     int           `json:"score_p1"`
	ScoreP2     int           `json:"score_p2"`
	WinnerAlias string        `json:"winner_alias,omitempty"`
	Forfeit     bool          `json:"forfeit,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// MatchSession owns the authoritative score and duration for one matchup
// while it is live. It produces exactly one terminal MatchResult; every
// resolution path goes through finish, which enforces write-once. Access is
// serialized by the owning tournament session.
type MatchSession struct {
	matchup  *Matchup
	started  time.Time
	scoreP1  int
	scoreP2  int
	resolved bool

	// clock is swappable for deterministic duration in tests.
	clock func() time.Time
}

func NewMatchSession(m *Matchup) *MatchSession {
	return &MatchSession{
		matchup: m,
		started: time.Now(),
		clock:   time.Now,
	}
}

func (ms *MatchSession) Matchup() *Matchup { return ms.matchup }

// RecordPoint bumps the live score for one side. Input events for an already
// resolved match are dropped.
func (ms *MatchSession) RecordPoint(alias string) {
	if ms.resolved {
		return
	}
	switch alias {
	case ms.matchup.P1.Alias:
		ms.scoreP1++
	case ms.matchup.P2.Alias:
		ms.scoreP2++
	}
}

// Report resolves the match with the final score as submitted by the game
// session process. Ties are rejected: single elimination needs a winner.
func (ms *MatchSession) Report(scoreP1, scoreP2 int) (*MatchResult, error) {
	if scoreP1 < 0 || scoreP2 < 0 || scoreP1 == scoreP2 {
		return nil, ErrInvalidScore
	}
	winner := ms.matchup.P1.Alias
	if scoreP2 > scoreP1 {
		winner = ms.matchup.P2.Alias
	}
	return ms.finish(&MatchResult{
		ScoreP1:     scoreP1,
		ScoreP2:     scoreP2,
		WinnerAlias: winner,
	})
}

// Forfeit resolves the match in favor of the opponent of the named
// participant, e.g. after a permanent disconnect or a ban. Forfeits never
// block bracket advancement.
func (ms *MatchSession) Forfeit(alias string) (*MatchResult, error) {
	var winner string
	switch alias {
	case ms.matchup.P1.Alias:
		winner = ms.matchup.P2.Alias
	case ms.matchup.P2.Alias:
		winner = ms.matchup.P1.Alias
	default:
		return nil, ErrParticipantNotFound
	}
	return ms.finish(&MatchResult{
		ScoreP1:     ms.scoreP1,
		ScoreP2:     ms.scoreP2,
		WinnerAlias: winner,
		Forfeit:     true,
	})
}

// Abandon resolves the match as a double forfeit: both players dropped before
// completion, no winner, both eliminated.
func (ms *MatchSession) Abandon() (*MatchResult, error) {
	return ms.finish(&MatchResult{
		ScoreP1: ms.scoreP1,
		ScoreP2: ms.scoreP2,
		Forfeit: true,
	})
}

func (ms *MatchSession) finish(result *MatchResult) (*MatchResult, error) {
	if ms.resolved || ms.matchup.Resolved() {
		return nil, ErrResultAlreadyReported
	}
	result.Duration = ms.clock().Sub(ms.started)
	ms.resolved = true
	ms.matchup.Result = result
	return result, nil
}
