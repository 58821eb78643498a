package tournament

import (
	"fmt"

	"github.com/google/uuid"
)

// Matchup is one pairing inside a round. The participant pointers are borrowed
// from the registry; the matchup never mutates them. Result is written at most
// once.
type Matchup struct {
	ID     string       `json:"id"`
	Round  int          `json:"round"`
	P1     *Participant `json:"player1"`
	P2     *Participant `json:"player2"`
	Result *MatchResult `json:"result,omitempty"`
}

func (m *Matchup) Resolved() bool { return m.Result != nil }

// Winner returns the advancing side of a resolved matchup. On a double
// forfeit there is no winner and ok is false.
func (m *Matchup) Winner() (*Participant, bool) {
	if m.Result == nil || m.Result.WinnerAlias == "" {
		return nil, false
	}
	if m.P1.Alias == m.Result.WinnerAlias {
		return m.P1, true
	}
	return m.P2, true
}

// Round is an ordered set of matchups plus the participants advancing without
// playing. Withdrawals records participants removed mid-round without a
// pending matchup (bye holders, or winners banned before the round closed);
// they rank with this round's losers.
type Round struct {
	Number      int            `json:"number"`
	Matchups    []*Matchup     `json:"matchups"`
	Byes        []*Participant `json:"byes,omitempty"`
	Withdrawals []string       `json:"withdrawals,omitempty"`
}

// Resolved reports whether every matchup in the round has a result.
func (r *Round) Resolved() bool {
	for _, m := range r.Matchups {
		if !m.Resolved() {
			return false
		}
	}
	return true
}

// Survivors returns the participants advancing out of this round: winners in
// matchup order followed by remaining bye holders, which is exactly the seed
// order of the next round.
func (r *Round) Survivors() []*Participant {
	out := make([]*Participant, 0, len(r.Matchups)+len(r.Byes))
	for _, m := range r.Matchups {
		if w, ok := m.Winner(); ok && !r.withdrew(w.Alias) {
			out = append(out, w)
		}
	}
	for _, b := range r.Byes {
		if !r.withdrew(b.Alias) {
			out = append(out, b)
		}
	}
	return out
}

// cloneView deep-copies the round for a snapshot. seen keeps one copy per
// participant so the copied bracket aliases participants the way the live one
// does.
func (r *Round) cloneView(seen map[string]*Participant) *Round {
	cp := &Round{Number: r.Number}
	for _, m := range r.Matchups {
		cp.Matchups = append(cp.Matchups, m.cloneView(seen))
	}
	for _, b := range r.Byes {
		cp.Byes = append(cp.Byes, b.cloneView(seen))
	}
	cp.Withdrawals = append([]string(nil), r.Withdrawals...)
	return cp
}

func (m *Matchup) cloneView(seen map[string]*Participant) *Matchup {
	cp := &Matchup{
		ID:    m.ID,
		Round: m.Round,
		P1:    m.P1.cloneView(seen),
		P2:    m.P2.cloneView(seen),
	}
	if m.Result != nil {
		result := *m.Result
		cp.Result = &result
	}
	return cp
}

func (r *Round) withdrew(alias string) bool {
	for _, w := range r.Withdrawals {
		if w == alias {
			return true
		}
	}
	return false
}

// Scheduler produces single elimination rounds. Pairing is sequential by seed
// order (1v2, 3v4, ...). An odd participant count always byes the lowest
// seeded remaining participant, never a random one, so bracket generation is
// deterministic and reproducible.
type Scheduler struct{}

func NewScheduler() *Scheduler { return &Scheduler{} }

// GenerateRound builds round number n from the active participants in seed
// order. It returns nil with no error when exactly one participant remains:
// the bracket is complete and that participant is the champion.
func (s *Scheduler) GenerateRound(n int, active []*Participant) (*Round, error) {
	if len(active) == 0 {
		return nil, ErrEmptyBracket
	}
	if len(active) == 1 {
		return nil, nil
	}

	round := &Round{Number: n}

	pairable := active
	if len(active)%2 != 0 {
		last := active[len(active)-1]
		round.Byes = append(round.Byes, last)
		pairable = active[:len(active)-1]
	}

	for i := 0; i < len(pairable); i += 2 {
		round.Matchups = append(round.Matchups, &Matchup{
			ID:    uuid.NewString(),
			Round: n,
			P1:    pairable[i],
			P2:    pairable[i+1],
		})
	}

	if len(round.Matchups) == 0 {
		return nil, fmt.Errorf("round %d produced no matchups for %d participants", n, len(active))
	}
	return round, nil
}
