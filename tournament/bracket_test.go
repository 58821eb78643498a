package tournament

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func participants(aliases ...string) []*Participant {
	out := make([]*Participant, len(aliases))
	for i, alias := range aliases {
		out[i] = &Participant{Alias: alias, Identity: GuestIdentity(alias)}
	}
	return out
}

func TestGenerateRoundPairsBySeed(t *testing.T) {
	s := NewScheduler()
	round, err := s.GenerateRound(0, participants("a", "b", "c", "d"))
	require.NoError(t, err)
	require.Len(t, round.Matchups, 2)
	assert.Empty(t, round.Byes)

	// Sequential pairing: first vs second seed, third vs fourth.
	assert.Equal(t, "a", round.Matchups[0].P1.Alias)
	assert.Equal(t, "b", round.Matchups[0].P2.Alias)
	assert.Equal(t, "c", round.Matchups[1].P1.Alias)
	assert.Equal(t, "d", round.Matchups[1].P2.Alias)
}

func TestGenerateRoundOddCountByesLowestSeed(t *testing.T) {
	s := NewScheduler()
	round, err := s.GenerateRound(0, participants("a", "b", "c", "d", "e"))
	require.NoError(t, err)
	require.Len(t, round.Matchups, 2)
	require.Len(t, round.Byes, 1)
	assert.Equal(t, "e", round.Byes[0].Alias)

	// Regenerating from the same seeds yields the same bye, never a random one.
	again, err := s.GenerateRound(0, participants("a", "b", "c", "d", "e"))
	require.NoError(t, err)
	assert.Equal(t, "e", again.Byes[0].Alias)
}

func TestGenerateRoundEmpty(t *testing.T) {
	s := NewScheduler()
	_, err := s.GenerateRound(0, nil)
	assert.ErrorIs(t, err, ErrEmptyBracket)
}

func TestGenerateRoundSingleSurvivorMeansChampion(t *testing.T) {
	s := NewScheduler()
	round, err := s.GenerateRound(3, participants("champ"))
	require.NoError(t, err)
	assert.Nil(t, round)
}

func TestRoundSurvivorsOrder(t *testing.T) {
	ps := participants("a", "b", "c", "d", "e")
	s := NewScheduler()
	round, err := s.GenerateRound(0, ps)
	require.NoError(t, err)

	for _, m := range round.Matchups {
		ms := NewMatchSession(m)
		_, err := ms.Report(1, 0)
		require.NoError(t, err)
	}
	require.True(t, round.Resolved())

	// Winners in matchup order, then the bye holder: the next round's seeds.
	survivors := round.Survivors()
	require.Len(t, survivors, 3)
	assert.Equal(t, "a", survivors[0].Alias)
	assert.Equal(t, "c", survivors[1].Alias)
	assert.Equal(t, "e", survivors[2].Alias)
}

func TestRoundSurvivorsExcludesWithdrawals(t *testing.T) {
	ps := participants("a", "b", "c")
	s := NewScheduler()
	round, err := s.GenerateRound(0, ps)
	require.NoError(t, err)
	require.Len(t, round.Byes, 1)

	_, err = NewMatchSession(round.Matchups[0]).Report(2, 1)
	require.NoError(t, err)

	// The bye holder withdrew mid-round; they no longer advance.
	round.Withdrawals = append(round.Withdrawals, "c")

	survivors := round.Survivors()
	require.Len(t, survivors, 1)
	assert.Equal(t, "a", survivors[0].Alias)
}
