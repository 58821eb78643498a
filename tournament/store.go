package tournament

import (
	"context"
	"time"
)

// MatchRecord is the durable form of a resolved matchup.
type MatchRecord struct {
	MatchupID   string
	Round       int
	P1Alias     string
	P2Alias     string
	ScoreP1     int
	ScoreP2     int
	WinnerAlias string
	Forfeit     bool
	Duration    time.Duration
}

// Store is the storage collaborator boundary. It is the only path through
// which the tournament core touches durable state: a record at creation,
// resolved matchups as they happen, and the final standings. Implementations
// live outside this package.
type Store interface {
	CreateTournament(ctx context.Context, id, title string, creator Identity) error
	RecordMatchResult(ctx context.Context, tournamentID string, record MatchRecord) error
	FinalizeRanking(ctx context.Context, tournamentID string, rankings map[string]int) error
	CancelTournament(ctx context.Context, tournamentID string) error
}

// NopStore discards all writes. Used in tests and for purely ephemeral
// (guest-only) tournaments.
type NopStore struct{}

func (NopStore) CreateTournament(context.Context, string, string, Identity) error { return nil }
func (NopStore) RecordMatchResult(context.Context, string, MatchRecord) error     { return nil }
func (NopStore) FinalizeRanking(context.Context, string, map[string]int) error    { return nil }
func (NopStore) CancelTournament(context.Context, string) error                   { return nil }
