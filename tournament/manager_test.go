package tournament

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *memStore) {
	t.Helper()
	store := &memStore{}
	m := NewManager(store, SinkFunc(func(Event) {}), nil)
	t.Cleanup(m.Shutdown)
	return m, store
}

func TestManagerCreateAndResolve(t *testing.T) {
	m, _ := newTestManager(t)

	s, err := m.Create("socket-1", "friday cup", "a", testCreator)
	require.NoError(t, err)

	got, ok := m.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)

	// The creating socket is attached right away.
	got, ok = m.Resolve("socket-1")
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = m.Resolve("socket-unknown")
	assert.False(t, ok)
}

func TestManagerAttachDetach(t *testing.T) {
	m, _ := newTestManager(t)
	s, err := m.Create("socket-1", "friday cup", "a", testCreator)
	require.NoError(t, err)

	attached, ok := m.Attach("socket-2", s.ID())
	require.True(t, ok)
	assert.Same(t, s, attached)

	_, ok = m.Attach("socket-3", "no-such-tournament")
	assert.False(t, ok)

	detached, ok := m.Detach("socket-2")
	require.True(t, ok)
	assert.Same(t, s, detached)

	_, ok = m.Resolve("socket-2")
	assert.False(t, ok)
}

func TestManagerArchive(t *testing.T) {
	m, _ := newTestManager(t)
	s, err := m.Create("socket-1", "friday cup", "a", testCreator)
	require.NoError(t, err)

	t.Run("unknown tournament", func(t *testing.T) {
		err := m.Archive(context.Background(), "no-such-tournament")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("terminal session is retired", func(t *testing.T) {
		require.NoError(t, s.Cancel(context.Background(), testCreator))
		require.NoError(t, m.Archive(context.Background(), s.ID()))

		_, ok := m.Get(s.ID())
		assert.False(t, ok)
		_, ok = m.Resolve("socket-1")
		assert.False(t, ok)
	})
}

func TestManagerList(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Create("socket-1", "friday cup", "a", testCreator)
	require.NoError(t, err)
	_, err = m.Create("socket-2", "saturday cup", "x", UserIdentity(2))
	require.NoError(t, err)

	snapshots := m.List(context.Background())
	require.Len(t, snapshots, 2)

	titles := map[string]bool{}
	for _, snap := range snapshots {
		titles[snap.Title] = true
		assert.Equal(t, StateCreation, snap.State)
	}
	assert.True(t, titles["friday cup"])
	assert.True(t, titles["saturday cup"])
}
