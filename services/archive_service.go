package services

import (
	"context"
	"errors"

	"arena-platform/models"
	"arena-platform/repositories"
	"arena-platform/tournament"
)

// ArchiveService is the storage collaborator for the tournament core. It is
// the only writer of durable tournament state: the record at start, match
// results as they resolve, and the final (or cancelled) outcome. It also
// serves the read-only archive API.
type ArchiveService interface {
	tournament.Store

	ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error)
	GetTournament(ctx context.Context, id string) (*models.Tournament, error)
}

type archiveService struct {
	tournamentRepo repositories.TournamentRepository
}

func NewArchiveService(tournamentRepo repositories.TournamentRepository) ArchiveService {
	return &archiveService{tournamentRepo: tournamentRepo}
}

func (s *archiveService) CreateTournament(ctx context.Context, id, title string, creator tournament.Identity) error {
	record := &models.Tournament{
		ID:            id,
		Title:         title,
		CreatorUserID: creator.UserID,
		CreatorGuest:  creator.Guest,
		Status:        models.TournamentActive,
	}
	err := s.tournamentRepo.Create(ctx, record)
	if errors.Is(err, repositories.ErrTournamentConflict) {
		// Redelivery of the create; the record is already there.
		return nil
	}
	return err
}

func (s *archiveService) RecordMatchResult(ctx context.Context, tournamentID string, record tournament.MatchRecord) error {
	m := &models.Match{
		TournamentID: tournamentID,
		MatchupID:    record.MatchupID,
		Round:        record.Round,
		P1Alias:      record.P1Alias,
		P2Alias:      record.P2Alias,
		ScoreP1:      record.ScoreP1,
		ScoreP2:      record.ScoreP2,
		Forfeit:      record.Forfeit,
		DurationMS:   record.Duration.Milliseconds(),
	}
	if record.WinnerAlias != "" {
		m.WinnerAlias = &record.WinnerAlias
	}
	return s.tournamentRepo.InsertMatch(ctx, m)
}

func (s *archiveService) FinalizeRanking(ctx context.Context, tournamentID string, rankings map[string]int) error {
	standings := make([]models.Standing, 0, len(rankings))
	for alias, rank := range rankings {
		standings = append(standings, models.Standing{
			TournamentID: tournamentID,
			Alias:        alias,
			Rank:         rank,
		})
	}
	return s.tournamentRepo.SaveStandings(ctx, tournamentID, standings)
}

func (s *archiveService) CancelTournament(ctx context.Context, tournamentID string) error {
	err := s.tournamentRepo.UpdateStatus(ctx, nil, tournamentID, models.TournamentCancelled)
	if errors.Is(err, repositories.ErrTournamentNotFound) {
		// Cancelled before start: no durable record was ever written.
		return nil
	}
	return err
}

func (s *archiveService) ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	return s.tournamentRepo.List(ctx, filter)
}

func (s *archiveService) GetTournament(ctx context.Context, id string) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrTournamentNotFound) {
		return nil, ErrTournamentNotFound
	}
	return t, err
}
