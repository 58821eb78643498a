package tournament

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store. The session writes to it from background
// goroutines, so every method takes the mutex.
type memStore struct {
	mu          sync.Mutex
	created     []string
	matches     []MatchRecord
	rankings    map[string]int
	cancelled   bool
	failRanking bool
	attempts    int
}

func (s *memStore) CreateTournament(_ context.Context, id, title string, _ Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, id)
	return nil
}

func (s *memStore) RecordMatchResult(_ context.Context, _ string, record MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches = append(s.matches, record)
	return nil
}

func (s *memStore) FinalizeRanking(_ context.Context, _ string, rankings map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failRanking {
		return errors.New("storage unavailable")
	}
	s.rankings = rankings
	return nil
}

func (s *memStore) CancelTournament(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
	return nil
}

func (s *memStore) savedRankings() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rankings
}

func (s *memStore) setFailRanking(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRanking = fail
}

var testCreator = UserIdentity(1)

// newTestSession opens a session with the creator as "a" plus one guest per
// extra alias, in order, so admission order (and seeding) is deterministic.
func newTestSession(t *testing.T, store Store, extras ...string) *Session {
	t.Helper()
	s, err := NewSession(Config{
		Title:        "test cup",
		Creator:      testCreator,
		CreatorAlias: "a",
		Store:        store,
		Sink:         SinkFunc(func(Event) {}),
	})
	require.NoError(t, err)
	t.Cleanup(s.Stop)

	for _, alias := range extras {
		require.NoError(t, s.Join(context.Background(), alias, GuestIdentity(alias)))
	}
	return s
}

func startSession(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.Start(context.Background(), testCreator))
}

// pendingMatchupID finds the unresolved matchup both aliases are playing in.
func pendingMatchupID(t *testing.T, s *Session, a, b string) string {
	t.Helper()
	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	for _, round := range snap.Bracket {
		for _, m := range round.Matchups {
			if m.Resolved() {
				continue
			}
			if (m.P1.Alias == a && m.P2.Alias == b) || (m.P1.Alias == b && m.P2.Alias == a) {
				return m.ID
			}
		}
	}
	t.Fatalf("no pending matchup between %s and %s", a, b)
	return ""
}

// reportWin resolves the pending matchup between winner and loser.
func reportWin(t *testing.T, s *Session, winner, loser string) {
	t.Helper()
	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	for _, round := range snap.Bracket {
		for _, m := range round.Matchups {
			if m.Resolved() {
				continue
			}
			switch {
			case m.P1.Alias == winner && m.P2.Alias == loser:
				require.NoError(t, s.ReportResult(context.Background(), m.ID, 1, 0))
				return
			case m.P1.Alias == loser && m.P2.Alias == winner:
				require.NoError(t, s.ReportResult(context.Background(), m.ID, 0, 1))
				return
			}
		}
	}
	t.Fatalf("no pending matchup between %s and %s", winner, loser)
}

func TestSessionFourPlayerRun(t *testing.T) {
	store := &memStore{}
	s := newTestSession(t, store, "b", "c", "d")
	startSession(t, s)

	state, err := s.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateOngoing, state)

	// Round 0 pairs by admission order: a vs b, c vs d.
	reportWin(t, s, "a", "b")
	reportWin(t, s, "d", "c")
	// Final: a vs d.
	reportWin(t, s, "d", "a")

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFinished, snap.State)
	assert.Equal(t, "d", snap.Champion)
	assert.Equal(t, map[string]int{"d": 1, "a": 2, "b": 3, "c": 3}, snap.Rankings)

	// The final standings land durably without any further command.
	require.Eventually(t, func() bool {
		return store.savedRankings() != nil
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, snap.Rankings, store.savedRankings())
}

func TestSessionThreePlayerBye(t *testing.T) {
	s := newTestSession(t, &memStore{}, "b", "c")
	startSession(t, s)

	// Round 0: a vs b, c advances on the bye.
	reportWin(t, s, "a", "b")
	// Final: a vs c.
	reportWin(t, s, "c", "a")

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFinished, snap.State)
	assert.Equal(t, "c", snap.Champion)
	assert.Equal(t, map[string]int{"c": 1, "a": 2, "b": 3}, snap.Rankings)
}

func TestSessionStartRequirements(t *testing.T) {
	t.Run("creator only", func(t *testing.T) {
		s := newTestSession(t, &memStore{}, "b")
		err := s.Start(context.Background(), GuestIdentity("b"))
		assert.ErrorIs(t, err, ErrNotCreator)
	})

	t.Run("needs at least two participants", func(t *testing.T) {
		s := newTestSession(t, &memStore{})
		err := s.Start(context.Background(), testCreator)
		assert.ErrorIs(t, err, ErrInsufficientParticipants)
	})

	t.Run("cannot start twice", func(t *testing.T) {
		s := newTestSession(t, &memStore{}, "b")
		startSession(t, s)
		err := s.Start(context.Background(), testCreator)
		assert.ErrorIs(t, err, ErrStateConflict)
	})
}

func TestSessionStartAfterBanNeedsActivePlayers(t *testing.T) {
	s := newTestSession(t, &memStore{}, "b")
	require.NoError(t, s.Remove(context.Background(), "b", testCreator))

	// Two on the roster, but only one can play: starting must be rejected,
	// not crown the creator by walkover.
	err := s.Start(context.Background(), testCreator)
	assert.ErrorIs(t, err, ErrInsufficientParticipants)

	state, err := s.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCreation, state)

	// The session stays usable: another player joins and the run completes.
	require.NoError(t, s.Join(context.Background(), "c", GuestIdentity("c")))
	startSession(t, s)
	reportWin(t, s, "a", "c")

	state, err = s.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFinished, state)
}

func TestSessionSnapshotDetachedFromLiveState(t *testing.T) {
	s := newTestSession(t, &memStore{}, "b", "c", "d")
	startSession(t, s)

	before, err := s.Snapshot(context.Background())
	require.NoError(t, err)

	reportWin(t, s, "a", "b")
	require.NoError(t, s.Remove(context.Background(), "c", testCreator))

	// Mutations after the snapshot was taken must not bleed into it.
	for _, m := range before.Bracket[0].Matchups {
		assert.Nil(t, m.Result)
	}
	for _, p := range before.Participants {
		assert.False(t, p.Banned)
	}

	after, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	var resolved int
	for _, m := range after.Bracket[0].Matchups {
		if m.Resolved() {
			resolved++
		}
	}
	assert.Equal(t, 2, resolved)
}

func TestSessionJoinAfterStartRejected(t *testing.T) {
	s := newTestSession(t, &memStore{}, "b")
	startSession(t, s)

	err := s.Join(context.Background(), "late", GuestIdentity("late"))
	assert.ErrorIs(t, err, ErrRegistrationClosed)
}

func TestSessionDuplicateAliasRejected(t *testing.T) {
	s := newTestSession(t, &memStore{}, "b")
	err := s.Join(context.Background(), "b", GuestIdentity("impostor"))
	assert.ErrorIs(t, err, ErrDuplicateAlias)
}

func TestSessionDuplicateReportLeavesResultUntouched(t *testing.T) {
	s := newTestSession(t, &memStore{}, "b", "c", "d")
	startSession(t, s)

	id := pendingMatchupID(t, s, "a", "b")
	require.NoError(t, s.ReportResult(context.Background(), id, 2, 1))

	err := s.ReportResult(context.Background(), id, 0, 5)
	assert.ErrorIs(t, err, ErrResultAlreadyReported)
	assert.ErrorIs(t, err, ErrStateConflict)

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	for _, m := range snap.Bracket[0].Matchups {
		if m.ID == id {
			assert.Equal(t, "a", m.Result.WinnerAlias)
			assert.Equal(t, 2, m.Result.ScoreP1)
			assert.Equal(t, 1, m.Result.ScoreP2)
		}
	}
}

func TestSessionReportUnknownMatchup(t *testing.T) {
	s := newTestSession(t, &memStore{}, "b")
	startSession(t, s)

	err := s.ReportResult(context.Background(), "no-such-matchup", 1, 0)
	assert.ErrorIs(t, err, ErrMatchupNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionCancelRejectsLaterCommands(t *testing.T) {
	store := &memStore{}
	s := newTestSession(t, store, "b", "c", "d")
	startSession(t, s)
	id := pendingMatchupID(t, s, "a", "b")

	require.NoError(t, s.Cancel(context.Background(), testCreator))

	err := s.ReportResult(context.Background(), id, 1, 0)
	assert.ErrorIs(t, err, ErrStateConflict)

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, snap.State)
	// A cancelled tournament never gets partial standings.
	assert.Nil(t, snap.Rankings)
}

func TestSessionCancelCreatorOnly(t *testing.T) {
	s := newTestSession(t, &memStore{}, "b")
	err := s.Cancel(context.Background(), GuestIdentity("b"))
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestSessionNonCreatorCannotRemove(t *testing.T) {
	s := newTestSession(t, &memStore{}, "b", "c")

	err := s.Remove(context.Background(), "c", GuestIdentity("b"))
	assert.ErrorIs(t, err, ErrNotAuthorized)

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Participants, 3)
	for _, p := range snap.Participants {
		assert.False(t, p.Banned)
	}
}

func TestSessionBannedInCreationExcluded(t *testing.T) {
	s := newTestSession(t, &memStore{}, "b", "c", "d")
	require.NoError(t, s.Remove(context.Background(), "d", testCreator))
	startSession(t, s)

	// Three active players: a vs b with c on the bye; d never plays.
	reportWin(t, s, "a", "b")
	reportWin(t, s, "c", "a")

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFinished, snap.State)
	assert.Equal(t, map[string]int{"c": 1, "a": 2, "b": 3}, snap.Rankings)
	assert.NotContains(t, snap.Rankings, "d")
}

func TestSessionRemoveOngoingForfeitsPendingMatchup(t *testing.T) {
	s := newTestSession(t, &memStore{}, "b", "c", "d")
	startSession(t, s)

	require.NoError(t, s.Remove(context.Background(), "b", testCreator))

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	var found bool
	for _, m := range snap.Bracket[0].Matchups {
		if m.P1.Alias == "a" && m.P2.Alias == "b" {
			found = true
			require.NotNil(t, m.Result)
			assert.True(t, m.Result.Forfeit)
			assert.Equal(t, "a", m.Result.WinnerAlias)
		}
	}
	require.True(t, found)

	// The banned player fell in round 0 and still places with its losers.
	reportWin(t, s, "d", "c")
	reportWin(t, s, "a", "d")

	snap, err = s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "d": 2, "b": 3, "c": 3}, snap.Rankings)
}

func TestSessionDisconnectDuringCreation(t *testing.T) {
	t.Run("participant leaves", func(t *testing.T) {
		s := newTestSession(t, &memStore{}, "b", "c")
		require.NoError(t, s.HandleDisconnect(context.Background(), GuestIdentity("b")))

		snap, err := s.Snapshot(context.Background())
		require.NoError(t, err)
		assert.Len(t, snap.Participants, 2)
		assert.Equal(t, StateCreation, snap.State)
	})

	t.Run("creator disconnect cancels", func(t *testing.T) {
		s := newTestSession(t, &memStore{}, "b")
		require.NoError(t, s.HandleDisconnect(context.Background(), testCreator))

		state, err := s.State(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StateCancelled, state)
	})
}

func TestSessionDisconnectForfeitsPendingMatchup(t *testing.T) {
	s := newTestSession(t, &memStore{}, "b", "c", "d")
	startSession(t, s)

	require.NoError(t, s.HandleDisconnect(context.Background(), GuestIdentity("b")))

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	for _, m := range snap.Bracket[0].Matchups {
		if m.P2.Alias == "b" {
			require.NotNil(t, m.Result)
			assert.True(t, m.Result.Forfeit)
			assert.Equal(t, "a", m.Result.WinnerAlias)
		}
	}
}

func TestSessionDoubleForfeitEliminatesBoth(t *testing.T) {
	s := newTestSession(t, &memStore{}, "b", "c", "d", "e", "f")
	startSession(t, s)

	// Round 0: a vs b, c vs d, e vs f.
	reportWin(t, s, "a", "b")
	reportWin(t, s, "c", "d")

	// Both upcoming semifinalists drop while they have no pending matchup.
	require.NoError(t, s.HandleDisconnect(context.Background(), testCreator))
	require.NoError(t, s.HandleDisconnect(context.Background(), GuestIdentity("c")))

	// Closing round 0 opens the semifinal a vs c, which immediately resolves
	// as a double forfeit, leaving e alone in the bracket.
	reportWin(t, s, "e", "f")

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFinished, snap.State)
	assert.Equal(t, "e", snap.Champion)
	assert.Equal(t, map[string]int{"e": 1, "a": 2, "c": 2, "b": 4, "d": 4, "f": 4}, snap.Rankings)
}

func TestSessionReconnectClearsFlag(t *testing.T) {
	s := newTestSession(t, &memStore{}, "b", "c", "d")
	startSession(t, s)

	reportWin(t, s, "a", "b")
	require.NoError(t, s.HandleDisconnect(context.Background(), testCreator))
	require.NoError(t, s.HandleReconnect(context.Background(), testCreator))

	// With the flag cleared the semifinal opens pending, not forfeited.
	reportWin(t, s, "c", "d")

	id := pendingMatchupID(t, s, "a", "c")
	require.NoError(t, s.ReportResult(context.Background(), id, 1, 0))

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", snap.Champion)
}

func TestSessionRankingPersistenceRetries(t *testing.T) {
	store := &memStore{}
	store.setFailRanking(true)

	s := newTestSession(t, store, "b")
	startSession(t, s)
	reportWin(t, s, "a", "b")

	// The session is finished immediately; the durable write is still owed.
	state, err := s.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFinished, state)

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.attempts >= 1
	}, 3*time.Second, 10*time.Millisecond)

	persisted, err := s.RankingPersisted(context.Background())
	require.NoError(t, err)
	assert.False(t, persisted)

	// Once storage recovers, the flush sweep lands the standings.
	store.setFailRanking(false)
	require.NoError(t, s.FlushRanking(context.Background()))

	persisted, err = s.RankingPersisted(context.Background())
	require.NoError(t, err)
	assert.True(t, persisted)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, store.savedRankings())
}

func TestSessionRecordPointFeedsForfeitScore(t *testing.T) {
	s := newTestSession(t, &memStore{}, "b")
	startSession(t, s)

	id := pendingMatchupID(t, s, "a", "b")
	require.NoError(t, s.RecordPoint(context.Background(), id, "a"))
	require.NoError(t, s.RecordPoint(context.Background(), id, "b"))
	require.NoError(t, s.RecordPoint(context.Background(), id, "b"))

	require.NoError(t, s.HandleDisconnect(context.Background(), GuestIdentity("b")))

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	m := snap.Bracket[0].Matchups[0]
	require.NotNil(t, m.Result)
	assert.Equal(t, 1, m.Result.ScoreP1)
	assert.Equal(t, 2, m.Result.ScoreP2)
	assert.Equal(t, "a", m.Result.WinnerAlias)
}

func TestSessionStopRejectsCommands(t *testing.T) {
	s := newTestSession(t, &memStore{}, "b")
	s.Stop()

	err := s.Join(context.Background(), "c", GuestIdentity("c"))
	assert.ErrorIs(t, err, ErrSessionStopped)
}
