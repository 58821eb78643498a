package tournament

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Manager is the only state shared across tournament sessions: which session
// a socket belongs to, and which session object owns a tournament id. Both
// maps are guarded by one RWMutex; everything inside a session stays behind
// that session's own command queue.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session // tournament id -> session
	bySocket map[string]string   // socket id -> tournament id

	store  Store
	sink   Sink
	logger *slog.Logger

	scheduler gocron.Scheduler
}

func NewManager(store Store, sink Sink, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		bySocket: make(map[string]string),
		store:    store,
		sink:     sink,
		logger:   logger,
	}
}

// Create opens a new tournament session owned by the given creator and
// subscribes the creating socket to it.
func (m *Manager) Create(socketID, title, creatorAlias string, creator Identity) (*Session, error) {
	session, err := NewSession(Config{
		Title:        title,
		Creator:      creator,
		CreatorAlias: creatorAlias,
		Store:        m.store,
		Sink:         m.sink,
		Logger:       m.logger,
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[session.ID()] = session
	if socketID != "" {
		m.bySocket[socketID] = session.ID()
	}
	m.mu.Unlock()

	m.logger.Info("tournament session created",
		slog.String("tournament_id", session.ID()), slog.String("title", title))
	return session, nil
}

// Get resolves a tournament id to its live session.
func (m *Manager) Get(tournamentID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[tournamentID]
	return s, ok
}

// Attach subscribes a socket to a session so later socket events can be
// routed without the transport holding a session reference.
func (m *Manager) Attach(socketID, tournamentID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[tournamentID]
	if !ok {
		return nil, false
	}
	m.bySocket[socketID] = tournamentID
	return s, true
}

// Resolve returns the session a socket is attached to, if any.
func (m *Manager) Resolve(socketID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.bySocket[socketID]
	if !ok {
		return nil, false
	}
	s, ok := m.sessions[id]
	return s, ok
}

// Detach drops the socket->session mapping and returns the session it was
// attached to, so the caller can deliver the disconnect notification.
func (m *Manager) Detach(socketID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.bySocket[socketID]
	if !ok {
		return nil, false
	}
	delete(m.bySocket, socketID)
	s, ok := m.sessions[id]
	return s, ok
}

// Archive retires a terminal session from the registry and stops its command
// loop. Durable reads keep working through the storage layer.
func (m *Manager) Archive(ctx context.Context, tournamentID string) error {
	m.mu.Lock()
	s, ok := m.sessions[tournamentID]
	if ok {
		delete(m.sessions, tournamentID)
		for socketID, id := range m.bySocket {
			if id == tournamentID {
				delete(m.bySocket, socketID)
			}
		}
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	state, err := s.State(ctx)
	if err == nil && !state.Terminal() {
		return ErrStateConflict
	}
	s.Stop()
	return nil
}

// List snapshots every live session.
func (m *Manager) List(ctx context.Context) []Snapshot {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		snap, err := s.Snapshot(ctx)
		if err != nil {
			continue
		}
		out = append(out, snap)
	}
	return out
}

// StartFlushJob runs a periodic sweep re-attempting standings writes that
// failed all their inline retries. Keeps a finished tournament durable
// eventually even across long storage outages.
func (m *Manager) StartFlushJob(interval time.Duration) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			m.flushPending(ctx)
		}),
	)
	if err != nil {
		return err
	}
	sched.Start()
	m.scheduler = sched
	return nil
}

func (m *Manager) flushPending(ctx context.Context) {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		persisted, err := s.RankingPersisted(ctx)
		if err != nil || persisted {
			continue
		}
		if err := s.FlushRanking(ctx); err != nil {
			m.logger.Error("rankings flush failed",
				slog.String("tournament_id", s.ID()), slog.Any("error", err))
		} else {
			m.logger.Info("rankings flushed", slog.String("tournament_id", s.ID()))
		}
	}
}

// Shutdown stops the flush job and every live session loop.
func (m *Manager) Shutdown() {
	if m.scheduler != nil {
		_ = m.scheduler.Shutdown()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.Stop()
	}
}
