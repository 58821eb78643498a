package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"arena-platform/tournament"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	commandTimeout = 5 * time.Second
	sendBuffer     = 256
)

// Client is one connected socket. It never holds a session reference; every
// inbound command is routed through the manager by socket id, which keeps
// ownership acyclic between transport and session.
type Client struct {
	ID       string
	identity tournament.Identity
	alias    string

	hub     *Hub
	manager *tournament.Manager
	conn    *websocket.Conn
	logger  *slog.Logger

	send     chan []byte
	closeMu  sync.Mutex
	isClosed bool
	room     string
}

func NewClient(id string, identity tournament.Identity, alias string, hub *Hub, manager *tournament.Manager, conn *websocket.Conn, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		ID:       id,
		identity: identity,
		alias:    alias,
		hub:      hub,
		manager:  manager,
		conn:     conn,
		logger:   logger.With(slog.String("socket_id", id)),
		send:     make(chan []byte, sendBuffer),
		room:     "lobby",
	}
}

func (c *Client) closeSend() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if !c.isClosed {
		close(c.send)
		c.isClosed = true
	}
}

// trySend queues a message without ever blocking. A full buffer means the
// client is too slow and the message is dropped.
func (c *Client) trySend(data []byte) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.isClosed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("send buffer full, dropping message")
	}
}

func (c *Client) sendEnvelope(typ string, payload interface{}) {
	data, err := json.Marshal(envelope{Type: typ, Payload: payload})
	if err != nil {
		c.logger.Error("failed to marshal envelope", slog.Any("error", err))
		return
	}
	c.trySend(data)
}

// inbound is the wire form of every command a socket can send.
type inbound struct {
	Action       string `json:"action"`
	TournamentID string `json:"tournament_id,omitempty"`
	Title        string `json:"title,omitempty"`
	Alias        string `json:"alias,omitempty"`
	MatchupID    string `json:"matchup_id,omitempty"`
	ScoreP1      int    `json:"score_p1,omitempty"`
	ScoreP2      int    `json:"score_p2,omitempty"`
}

type errorPayload struct {
	Action  string `json:"action"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ReadPump consumes inbound frames until the connection drops, then delivers
// the disconnect notification to whatever session the socket was attached to.
func (c *Client) ReadPump() {
	defer func() {
		if session, ok := c.manager.Detach(c.ID); ok {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			if err := session.HandleDisconnect(ctx, c.identity); err != nil {
				c.logger.Error("disconnect handling failed", slog.Any("error", err))
			}
			cancel()
		}
		c.hub.Unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("unexpected socket close", slog.Any("error", err))
			}
			return
		}
		c.handleMessage(message)
	}
}

func (c *Client) handleMessage(raw []byte) {
	var cmd inbound
	if err := json.Unmarshal(raw, &cmd); err != nil {
		c.sendEnvelope("error", errorPayload{Code: "validation_error", Message: "malformed command"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := c.dispatch(ctx, cmd); err != nil {
		c.sendEnvelope("error", errorPayload{
			Action:  cmd.Action,
			Code:    errorCode(err),
			Message: err.Error(),
		})
	}
}

func (c *Client) dispatch(ctx context.Context, cmd inbound) error {
	switch cmd.Action {
	case "create-tournament":
		session, err := c.manager.Create(c.ID, cmd.Title, c.alias, c.identity)
		if err != nil {
			return err
		}
		c.hub.MoveToRoom(c, session.ID())
		c.sendEnvelope("tournament-created", map[string]string{"tournament_id": session.ID()})
		return nil

	case "join-tournament":
		session, ok := c.manager.Attach(c.ID, cmd.TournamentID)
		if !ok {
			return tournament.ErrNotFound
		}
		alias := cmd.Alias
		if alias == "" {
			alias = c.alias
		}
		if err := session.Join(ctx, alias, c.identity); err != nil {
			c.manager.Detach(c.ID)
			return err
		}
		c.alias = alias
		c.hub.MoveToRoom(c, session.ID())
		return nil

	case "leave-tournament":
		session, ok := c.manager.Detach(c.ID)
		if !ok {
			return tournament.ErrNotFound
		}
		c.hub.MoveToRoom(c, "lobby")
		if err := session.Leave(ctx, c.alias, c.identity); err != nil {
			// Walking out mid-tournament is a forfeit, not an error.
			if errors.Is(err, tournament.ErrStateConflict) {
				return session.HandleDisconnect(ctx, c.identity)
			}
			return err
		}
		return nil

	case "start-tournament":
		session, ok := c.manager.Resolve(c.ID)
		if !ok {
			return tournament.ErrNotFound
		}
		return session.Start(ctx, c.identity)

	case "cancel-tournament":
		session, ok := c.manager.Resolve(c.ID)
		if !ok {
			return tournament.ErrNotFound
		}
		return session.Cancel(ctx, c.identity)

	case "ban-participant", "kick-participant":
		session, ok := c.manager.Resolve(c.ID)
		if !ok {
			return tournament.ErrNotFound
		}
		return session.Remove(ctx, cmd.Alias, c.identity)

	case "record-point":
		session, ok := c.manager.Resolve(c.ID)
		if !ok {
			return tournament.ErrNotFound
		}
		return session.RecordPoint(ctx, cmd.MatchupID, c.alias)

	case "report-match-result":
		session, ok := c.manager.Resolve(c.ID)
		if !ok {
			return tournament.ErrNotFound
		}
		return session.ReportResult(ctx, cmd.MatchupID, cmd.ScoreP1, cmd.ScoreP2)

	default:
		return tournament.ErrValidation
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, tournament.ErrNotAuthorized):
		return "authorization_error"
	case errors.Is(err, tournament.ErrStateConflict):
		return "state_conflict"
	case errors.Is(err, tournament.ErrNotFound):
		return "not_found"
	case errors.Is(err, tournament.ErrValidation):
		return "validation_error"
	default:
		return "internal_error"
	}
}

// WritePump drains the send channel onto the socket, coalescing queued
// frames, and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
