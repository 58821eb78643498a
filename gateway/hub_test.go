package gateway

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arena-platform/tournament"
)

func registerTestClient(t *testing.T, h *Hub, id string) *Client {
	t.Helper()
	c := NewClient(id, tournament.GuestIdentity(id), id, h, nil, nil, nil)
	h.Register <- c
	return c
}

func receive(t *testing.T, c *Client) envelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return envelope{}
	}
}

func TestHubPublishReachesRoomOnly(t *testing.T) {
	h := NewHub(nil)
	go h.Run()

	inRoom := registerTestClient(t, h, "socket-1")
	outside := registerTestClient(t, h, "socket-2")
	h.MoveToRoom(inRoom, "t-1")

	h.Publish(tournament.Event{
		Type:         tournament.EventStarted,
		TournamentID: "t-1",
	})

	env := receive(t, inRoom)
	assert.Equal(t, string(tournament.EventStarted), env.Type)

	select {
	case <-outside.send:
		t.Fatal("client outside the room received the event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubSlowClientDoesNotBlock(t *testing.T) {
	h := NewHub(nil)
	go h.Run()

	c := registerTestClient(t, h, "socket-1")
	h.MoveToRoom(c, "t-1")

	// Nobody drains the send channel; once the buffer is full further
	// broadcasts are dropped instead of blocking the publisher.
	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBuffer+10; i++ {
			h.BroadcastToRoom("t-1", envelope{Type: "noise"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
}

func TestHubConcurrentRoomChanges(t *testing.T) {
	h := NewHub(nil)
	go h.Run()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		c := registerTestClient(t, h, fmt.Sprintf("socket-%d", i))
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			h.MoveToRoom(c, "t-1")
			h.BroadcastToRoom("t-1", envelope{Type: "noise"})
			h.Unregister <- c
		}(c)
	}
	wg.Wait()
}

func TestHubUnregisterClosesSend(t *testing.T) {
	h := NewHub(nil)
	go h.Run()

	c := registerTestClient(t, h, "socket-1")
	h.Unregister <- c

	require.Eventually(t, func() bool {
		c.closeMu.Lock()
		defer c.closeMu.Unlock()
		return c.isClosed
	}, time.Second, 10*time.Millisecond)

	// Sending after unregister must be a silent no-op, not a panic.
	c.trySend([]byte("{}"))
}
