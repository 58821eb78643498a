package tournament

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMatch(a, b string) (*MatchSession, *Matchup) {
	m := &Matchup{
		ID: "m1",
		P1: &Participant{Alias: a, Identity: GuestIdentity(a)},
		P2: &Participant{Alias: b, Identity: GuestIdentity(b)},
	}
	ms := NewMatchSession(m)
	ms.clock = func() time.Time { return ms.started.Add(90 * time.Second) }
	return ms, m
}

func TestMatchReport(t *testing.T) {
	ms, m := newTestMatch("alice", "bob")

	result, err := ms.Report(11, 7)
	require.NoError(t, err)
	assert.Equal(t, "alice", result.WinnerAlias)
	assert.False(t, result.Forfeit)
	assert.Equal(t, 90*time.Second, result.Duration)

	winner, ok := m.Winner()
	require.True(t, ok)
	assert.Equal(t, "alice", winner.Alias)
}

func TestMatchReportRejectsInvalidScores(t *testing.T) {
	ms, _ := newTestMatch("alice", "bob")

	_, err := ms.Report(5, 5)
	assert.ErrorIs(t, err, ErrInvalidScore)
	_, err = ms.Report(-1, 3)
	assert.ErrorIs(t, err, ErrInvalidScore)

	// Rejected reports must not resolve the match.
	assert.False(t, ms.Matchup().Resolved())
}

func TestMatchResultWriteOnce(t *testing.T) {
	ms, m := newTestMatch("alice", "bob")

	first, err := ms.Report(3, 1)
	require.NoError(t, err)

	_, err = ms.Report(0, 9)
	assert.ErrorIs(t, err, ErrResultAlreadyReported)
	assert.ErrorIs(t, err, ErrStateConflict)

	// The stored result is the first one, untouched.
	assert.Same(t, first, m.Result)
	assert.Equal(t, "alice", m.Result.WinnerAlias)
}

func TestMatchForfeit(t *testing.T) {
	ms, m := newTestMatch("alice", "bob")
	ms.RecordPoint("alice")
	ms.RecordPoint("bob")
	ms.RecordPoint("bob")

	result, err := ms.Forfeit("bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", result.WinnerAlias)
	assert.True(t, result.Forfeit)
	// The live score at the moment of the forfeit is preserved.
	assert.Equal(t, 1, result.ScoreP1)
	assert.Equal(t, 2, result.ScoreP2)

	_, ok := m.Winner()
	assert.True(t, ok)
}

func TestMatchForfeitUnknownParticipant(t *testing.T) {
	ms, _ := newTestMatch("alice", "bob")
	_, err := ms.Forfeit("mallory")
	assert.ErrorIs(t, err, ErrParticipantNotFound)
	assert.False(t, ms.Matchup().Resolved())
}

func TestMatchAbandonEliminatesBoth(t *testing.T) {
	ms, m := newTestMatch("alice", "bob")

	result, err := ms.Abandon()
	require.NoError(t, err)
	assert.Empty(t, result.WinnerAlias)
	assert.True(t, result.Forfeit)

	// A double forfeit has no advancing side.
	_, ok := m.Winner()
	assert.False(t, ok)
}

func TestMatchPointsIgnoredAfterResolution(t *testing.T) {
	ms, m := newTestMatch("alice", "bob")
	_, err := ms.Report(1, 0)
	require.NoError(t, err)

	ms.RecordPoint("bob")
	assert.Equal(t, 0, m.Result.ScoreP2)
}
