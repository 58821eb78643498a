package tournament

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle phase of a tournament session.
type State string

const (
	StateCreation  State = "creation"
	StateOngoing   State = "ongoing"
	StateFinished  State = "finished"
	StateCancelled State = "cancelled"
)

func (s State) Terminal() bool { return s == StateFinished || s == StateCancelled }

const (
	defaultMinParticipants = 2
	persistMaxAttempts     = 5
	persistBaseBackoff     = time.Second
	persistMaxBackoff      = 30 * time.Second
	persistTimeout         = 10 * time.Second
)

// Config carries everything needed to open a tournament session.
type Config struct {
	ID              string // assigned if empty
	Title           string
	Creator         Identity
	CreatorAlias    string
	MinParticipants int
	Store           Store
	Sink            Sink
	Logger          *slog.Logger
}

type command struct {
	fn    func() error
	reply chan error
}

// Session is the state machine owning one tournament's lifecycle. All
// commands go through a single inbound queue consumed by exactly one worker
// goroutine, so bracket advancement, participant removal and result reporting
// never interleave. Outbound events and durable writes are fire-and-forget so
// a slow collaborator never stalls the queue.
type Session struct {
	id    string
	title string

	registry  *Registry
	scheduler *Scheduler

	state        State
	bracket      []*Round
	live         map[string]*MatchSession // matchup id -> live match
	disconnected map[string]bool          // alias -> transport dropped
	champion     string
	rankings     map[string]int

	rankingPersisted bool

	cmds chan command
	done chan struct{}
	once sync.Once

	minParticipants int
	store           Store
	sink            Sink
	logger          *slog.Logger
}

func NewSession(cfg Config) (*Session, error) {
	if cfg.Title == "" || cfg.CreatorAlias == "" {
		return nil, ErrValidation
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.MinParticipants <= 0 {
		cfg.MinParticipants = defaultMinParticipants
	}
	if cfg.Store == nil {
		cfg.Store = NopStore{}
	}
	if cfg.Sink == nil {
		cfg.Sink = SinkFunc(func(Event) {})
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Session{
		id:              cfg.ID,
		title:           cfg.Title,
		registry:        NewRegistry(cfg.Creator),
		scheduler:       NewScheduler(),
		state:           StateCreation,
		live:            make(map[string]*MatchSession),
		disconnected:    make(map[string]bool),
		cmds:            make(chan command),
		done:            make(chan struct{}),
		minParticipants: cfg.MinParticipants,
		store:           cfg.Store,
		sink:            cfg.Sink,
		logger:          cfg.Logger.With(slog.String("tournament_id", cfg.ID)),
	}

	if _, err := s.registry.Admit(cfg.CreatorAlias, cfg.Creator); err != nil {
		return nil, err
	}

	go s.run()
	return s, nil
}

func (s *Session) ID() string    { return s.id }
func (s *Session) Title() string { return s.title }

// Stop shuts the command loop down. Pending commands already queued are
// answered with ErrSessionStopped by their select on done.
func (s *Session) Stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *Session) run() {
	for {
		select {
		case cmd := <-s.cmds:
			cmd.reply <- cmd.fn()
		case <-s.done:
			return
		}
	}
}

// do enqueues fn on the session's command queue and waits for the result.
func (s *Session) do(ctx context.Context, fn func() error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return ErrSessionStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-s.done:
		return ErrSessionStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join admits a participant while the session is in the creation phase.
func (s *Session) Join(ctx context.Context, alias string, identity Identity) error {
	return s.do(ctx, func() error {
		if s.state.Terminal() {
			return ErrTournamentClosed
		}
		if _, err := s.registry.Admit(alias, identity); err != nil {
			return err
		}
		s.disconnected[alias] = false
		s.publish(EventParticipantJoined, participantPayload{Alias: alias})
		return nil
	})
}

// Leave withdraws a participant during the creation phase, freeing the alias.
func (s *Session) Leave(ctx context.Context, alias string, acting Identity) error {
	return s.do(ctx, func() error {
		if s.state.Terminal() {
			return ErrTournamentClosed
		}
		if err := s.registry.Leave(alias, acting); err != nil {
			return err
		}
		s.publish(EventParticipantLeft, participantPayload{Alias: alias})
		return nil
	})
}

// Remove bans a participant. Creator only. If the tournament is ongoing and
// the participant has a pending matchup, the matchup resolves as a forfeit in
// favor of the opponent; a removed bye holder is recorded as a withdrawal.
// Historical match records are retained either way.
func (s *Session) Remove(ctx context.Context, alias string, acting Identity) error {
	return s.do(ctx, func() error {
		if s.state.Terminal() {
			return ErrTournamentClosed
		}
		p, err := s.registry.Remove(alias, acting)
		if err != nil {
			return err
		}
		s.publish(EventParticipantRemoved, participantPayload{Alias: alias})
		if s.state == StateOngoing {
			s.evict(p.Alias)
			s.maybeAdvance()
		}
		return nil
	})
}

// Start moves the session from creation to ongoing: registration closes,
// round 0 is generated, and the tournament record is persisted.
func (s *Session) Start(ctx context.Context, acting Identity) error {
	return s.do(ctx, func() error {
		if s.state.Terminal() {
			return ErrTournamentClosed
		}
		if s.state != StateCreation {
			return ErrStateConflict
		}
		if !acting.Equal(s.registry.Creator()) {
			return ErrNotCreator
		}
		// Banned players are still on the roster but never play, so the
		// minimum is checked against the active count.
		active := s.registry.Active()
		if len(active) < s.minParticipants {
			return ErrInsufficientParticipants
		}

		s.registry.Close()
		s.state = StateOngoing

		round, err := s.scheduler.GenerateRound(0, active)
		if err != nil {
			return err
		}
		s.openRound(round)

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			if err := s.store.CreateTournament(ctx, s.id, s.title, s.registry.Creator()); err != nil {
				s.logger.Error("failed to persist tournament record", slog.Any("error", err))
			}
		}()

		s.publish(EventStarted, roundPayload{Round: round})
		// Players who dropped during creation forfeit immediately.
		s.resolveAbsentees(round)
		s.maybeAdvance()
		return nil
	})
}

// Cancel halts the tournament. Creator only, valid in creation and ongoing.
// No partial ranking is ever computed for a cancelled tournament.
func (s *Session) Cancel(ctx context.Context, acting Identity) error {
	return s.do(ctx, func() error {
		if s.state.Terminal() {
			return ErrTournamentClosed
		}
		if !acting.Equal(s.registry.Creator()) {
			return ErrNotCreator
		}
		s.cancel()
		return nil
	})
}

// ReportResult records the terminal score for a matchup. Exactly one report
// is accepted per matchup; duplicates fail with a state conflict and leave
// the stored result untouched.
func (s *Session) ReportResult(ctx context.Context, matchupID string, scoreP1, scoreP2 int) error {
	return s.do(ctx, func() error {
		if s.state.Terminal() {
			return ErrTournamentClosed
		}
		if s.state != StateOngoing {
			return ErrTournamentNotOngoing
		}
		ms, ok := s.live[matchupID]
		if !ok {
			if s.findMatchup(matchupID) != nil {
				return ErrResultAlreadyReported
			}
			return ErrMatchupNotFound
		}
		result, err := ms.Report(scoreP1, scoreP2)
		if err != nil {
			return err
		}
		s.closeMatch(ms, result)
		s.maybeAdvance()
		return nil
	})
}

// RecordPoint bumps the live score of a pending matchup. Point events are
// best-effort: they arrive for already-resolved matchups during races and are
// silently dropped, only the reported final score is authoritative.
func (s *Session) RecordPoint(ctx context.Context, matchupID, alias string) error {
	return s.do(ctx, func() error {
		if s.state != StateOngoing {
			return ErrTournamentNotOngoing
		}
		if ms, ok := s.live[matchupID]; ok {
			ms.RecordPoint(alias)
		}
		return nil
	})
}

// HandleDisconnect reacts to the transport dropping a player's channel. In
// the creation phase the creator's disconnect cancels the tournament and
// anyone else simply leaves. Once ongoing, a pending matchup resolves as a
// forfeit in favor of the opponent, or as a double forfeit when the opponent
// is already gone.
func (s *Session) HandleDisconnect(ctx context.Context, identity Identity) error {
	return s.do(ctx, func() error {
		if s.state.Terminal() {
			return nil
		}
		p, ok := s.registry.FindByIdentity(identity)
		if !ok {
			return nil
		}
		if s.state == StateCreation {
			if identity.Equal(s.registry.Creator()) {
				s.cancel()
				return nil
			}
			if err := s.registry.Leave(p.Alias, identity); err != nil {
				return err
			}
			s.publish(EventParticipantLeft, participantPayload{Alias: p.Alias})
			return nil
		}

		s.disconnected[p.Alias] = true
		if ms := s.pendingMatch(p.Alias); ms != nil {
			s.resolveDropped(ms)
			s.maybeAdvance()
		}
		return nil
	})
}

// HandleReconnect clears a player's disconnected flag.
func (s *Session) HandleReconnect(ctx context.Context, identity Identity) error {
	return s.do(ctx, func() error {
		if p, ok := s.registry.FindByIdentity(identity); ok {
			s.disconnected[p.Alias] = false
		}
		return nil
	})
}

// Snapshot is a read-only view of the session, safe to marshal and share.
type Snapshot struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	State        State          `json:"state"`
	Participants []*Participant `json:"participants"`
	Bracket      []*Round       `json:"bracket,omitempty"`
	Champion     string         `json:"champion,omitempty"`
	Rankings     map[string]int `json:"rankings,omitempty"`
}

// Snapshot captures the current session state. Read-only queries remain valid
// in terminal states.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func() error {
		// Everything below the top level is deep-copied: the caller marshals
		// the snapshot outside the command loop, which keeps mutating the
		// live bracket and roster.
		seen := make(map[string]*Participant)
		participants := make([]*Participant, 0, s.registry.Size())
		for _, p := range s.registry.List() {
			participants = append(participants, p.cloneView(seen))
		}
		bracket := make([]*Round, 0, len(s.bracket))
		for _, round := range s.bracket {
			bracket = append(bracket, round.cloneView(seen))
		}
		snap = Snapshot{
			ID:           s.id,
			Title:        s.title,
			State:        s.state,
			Participants: participants,
			Bracket:      bracket,
			Champion:     s.champion,
		}
		if len(s.rankings) > 0 {
			snap.Rankings = make(map[string]int, len(s.rankings))
			for alias, rank := range s.rankings {
				snap.Rankings[alias] = rank
			}
		}
		return nil
	})
	return snap, err
}

// State returns the current lifecycle phase.
func (s *Session) State(ctx context.Context) (State, error) {
	var st State
	err := s.do(ctx, func() error {
		st = s.state
		return nil
	})
	return st, err
}

// --- internal, always called from the command loop ---

func (s *Session) currentRound() *Round {
	if len(s.bracket) == 0 {
		return nil
	}
	return s.bracket[len(s.bracket)-1]
}

func (s *Session) findMatchup(id string) *Matchup {
	for _, round := range s.bracket {
		for _, m := range round.Matchups {
			if m.ID == id {
				return m
			}
		}
	}
	return nil
}

// pendingMatch returns the live match the alias is playing in, if any.
func (s *Session) pendingMatch(alias string) *MatchSession {
	for _, ms := range s.live {
		m := ms.Matchup()
		if m.P1.Alias == alias || m.P2.Alias == alias {
			return ms
		}
	}
	return nil
}

// openRound appends the round to the bracket and spins up live match
// sessions for its matchups.
func (s *Session) openRound(round *Round) {
	s.bracket = append(s.bracket, round)
	for _, m := range round.Matchups {
		s.live[m.ID] = NewMatchSession(m)
	}
}

// resolveAbsentees forfeits matchups whose players already dropped. Called
// right after a round opens so disconnected winners of earlier rounds never
// stall the bracket.
func (s *Session) resolveAbsentees(round *Round) {
	for _, m := range round.Matchups {
		if m.Resolved() {
			continue
		}
		if s.disconnected[m.P1.Alias] || s.disconnected[m.P2.Alias] {
			if ms, ok := s.live[m.ID]; ok {
				s.resolveDropped(ms)
			}
		}
	}
}

// resolveDropped resolves a live match after a disconnect: forfeit in favor
// of the remaining player, or a double forfeit when both are gone.
func (s *Session) resolveDropped(ms *MatchSession) {
	m := ms.Matchup()
	p1Gone := s.disconnected[m.P1.Alias]
	p2Gone := s.disconnected[m.P2.Alias]

	var result *MatchResult
	var err error
	switch {
	case p1Gone && p2Gone:
		result, err = ms.Abandon()
	case p1Gone:
		result, err = ms.Forfeit(m.P1.Alias)
	case p2Gone:
		result, err = ms.Forfeit(m.P2.Alias)
	default:
		return
	}
	if err != nil {
		return // already resolved
	}
	s.closeMatch(ms, result)
}

// evict resolves a banned participant's pending matchup as a forfeit, or
// records a withdrawal when they hold a bye or an already-won slot.
func (s *Session) evict(alias string) {
	if ms := s.pendingMatch(alias); ms != nil {
		if result, err := ms.Forfeit(alias); err == nil {
			s.closeMatch(ms, result)
		}
		return
	}
	if round := s.currentRound(); round != nil && !round.withdrew(alias) {
		round.Withdrawals = append(round.Withdrawals, alias)
	}
}

// closeMatch retires a resolved live match, records it durably and announces
// the result.
func (s *Session) closeMatch(ms *MatchSession, result *MatchResult) {
	m := ms.Matchup()
	delete(s.live, m.ID)

	record := MatchRecord{
		MatchupID:   m.ID,
		Round:       m.Round,
		P1Alias:     m.P1.Alias,
		P2Alias:     m.P2.Alias,
		ScoreP1:     result.ScoreP1,
		ScoreP2:     result.ScoreP2,
		WinnerAlias: result.WinnerAlias,
		Forfeit:     result.Forfeit,
		Duration:    result.Duration,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.store.RecordMatchResult(ctx, s.id, record); err != nil {
			s.logger.Error("failed to persist match result",
				slog.String("matchup_id", m.ID), slog.Any("error", err))
		}
	}()

	s.publish(EventMatchResolved, matchResolvedPayload{
		MatchupID: m.ID,
		Round:     m.Round,
		Result:    result,
	})
}

// maybeAdvance moves to the next round once every matchup in the current one
// has a result, regardless of the order results arrived in.
func (s *Session) maybeAdvance() {
	if s.state != StateOngoing {
		return
	}
	round := s.currentRound()
	if round == nil || !round.Resolved() {
		return
	}

	survivors := make([]*Participant, 0, len(round.Matchups)+len(round.Byes))
	for _, p := range round.Survivors() {
		if !p.Banned {
			survivors = append(survivors, p)
		}
	}

	next, err := s.scheduler.GenerateRound(round.Number+1, survivors)
	if err != nil {
		// Nobody survived (double forfeit in the last matchup): there is no
		// champion to crown, so the tournament cannot finish.
		s.logger.Warn("no surviving participants, cancelling tournament", slog.Any("error", err))
		s.cancel()
		return
	}
	if next == nil {
		s.finish(survivors[0])
		return
	}

	s.openRound(next)
	s.publish(EventRoundAdvanced, roundPayload{Round: next})
	s.resolveAbsentees(next)
	s.maybeAdvance()
}

// finish computes the final standings and kicks off the asynchronous durable
// write. The in-memory finished state is authoritative even while the write
// is still retrying.
func (s *Session) finish(champion *Participant) {
	rankings, err := FinalizeRankings(s.bracket, champion.Alias)
	if err != nil {
		s.logger.Error("failed to finalize rankings", slog.Any("error", err))
		s.cancel()
		return
	}
	s.state = StateFinished
	s.champion = champion.Alias
	s.rankings = rankings

	s.publish(EventFinished, finishedPayload{Champion: s.champion, Rankings: rankings})
	go s.persistRankings(rankings)
}

// persistRankings retries the durable standings write with exponential
// backoff. The finished event is re-emitted once a delayed write lands, and
// repeated failure is surfaced on the error log for operational alerting; the
// session is never rolled back to ongoing.
func (s *Session) persistRankings(rankings map[string]int) {
	backoff := persistBaseBackoff
	for attempt := 1; attempt <= persistMaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		err := s.store.FinalizeRanking(ctx, s.id, rankings)
		cancel()
		if err == nil {
			_ = s.do(context.Background(), func() error {
				s.rankingPersisted = true
				return nil
			})
			if attempt > 1 {
				s.publish(EventFinished, finishedPayload{Champion: s.champion, Rankings: rankings})
			}
			return
		}
		s.logger.Error("failed to persist final rankings",
			slog.Int("attempt", attempt), slog.Any("error", err))
		select {
		case <-s.done:
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > persistMaxBackoff {
			backoff = persistMaxBackoff
		}
	}
	s.logger.Error("giving up on rankings persistence, manual intervention required")
}

// RankingPersisted reports whether the final standings have landed durably.
// The periodic flush job uses it to find sessions still owing a write.
func (s *Session) RankingPersisted(ctx context.Context) (bool, error) {
	var persisted bool
	err := s.do(ctx, func() error {
		persisted = s.state != StateFinished || s.rankingPersisted
		return nil
	})
	return persisted, err
}

// FlushRanking re-attempts the durable standings write once. Safe to call
// repeatedly; a session whose write already landed is a no-op.
func (s *Session) FlushRanking(ctx context.Context) error {
	var rankings map[string]int
	err := s.do(ctx, func() error {
		if s.state != StateFinished || s.rankingPersisted {
			return nil
		}
		rankings = make(map[string]int, len(s.rankings))
		for alias, rank := range s.rankings {
			rankings[alias] = rank
		}
		return nil
	})
	if err != nil || len(rankings) == 0 {
		return err
	}
	if err := s.store.FinalizeRanking(ctx, s.id, rankings); err != nil {
		return err
	}
	return s.do(ctx, func() error {
		s.rankingPersisted = true
		return nil
	})
}

func (s *Session) cancel() {
	s.state = StateCancelled
	s.live = make(map[string]*MatchSession)
	s.publish(EventCancelled, nil)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.store.CancelTournament(ctx, s.id); err != nil {
			s.logger.Error("failed to persist tournament cancellation", slog.Any("error", err))
		}
	}()
}

func (s *Session) publish(t EventType, payload interface{}) {
	s.sink.Publish(Event{Type: t, TournamentID: s.id, Payload: payload})
}
