package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"arena-platform/models"
)

var (
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrTournamentConflict = errors.New("tournament id conflict")
)

type ListTournamentsFilter struct {
	Status *models.TournamentStatus
	Limit  int
	Offset int
}

type TournamentRepository interface {
	Create(ctx context.Context, t *models.Tournament) error
	GetByID(ctx context.Context, id string) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id string, status models.TournamentStatus) error
	InsertMatch(ctx context.Context, m *models.Match) error
	SaveStandings(ctx context.Context, tournamentID string, standings []models.Standing) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (id, title, creator_user_id, creator_guest, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		t.ID, t.Title, t.CreatorUserID, t.CreatorGuest, t.Status,
	).Scan(&t.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrTournamentConflict
		}
		return err
	}
	return nil
}

// GetByID loads the tournament row plus its match history and standings. The
// related tables are fetched in parallel.
func (r *postgresTournamentRepository) GetByID(ctx context.Context, id string) (*models.Tournament, error) {
	t := &models.Tournament{}
	query := `
		SELECT id, title, creator_user_id, creator_guest, status, created_at, finished_at
		FROM tournaments
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Title, &t.CreatorUserID, &t.CreatorGuest, &t.Status, &t.CreatedAt, &t.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		matches, err := r.listMatches(gCtx, id)
		if err != nil {
			return fmt.Errorf("failed to load matches for tournament %s: %w", id, err)
		}
		t.Matches = matches
		return nil
	})

	g.Go(func() error {
		standings, err := r.listStandings(gCtx, id)
		if err != nil {
			return fmt.Errorf("failed to load standings for tournament %s: %w", id, err)
		}
		t.Standings = standings
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	query := `
		SELECT id, title, creator_user_id, creator_guest, status, created_at, finished_at
		FROM tournaments
		WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		if scanErr := rows.Scan(
			&t.ID, &t.Title, &t.CreatorUserID, &t.CreatorGuest, &t.Status, &t.CreatedAt, &t.FinishedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, t)
	}
	return tournaments, rows.Err()
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id string, status models.TournamentStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET status = $1, finished_at = $2 WHERE id = $3`

	var finishedAt *time.Time
	if status != models.TournamentActive {
		now := time.Now()
		finishedAt = &now
	}
	result, err := executor.ExecContext(ctx, query, status, finishedAt, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) InsertMatch(ctx context.Context, m *models.Match) error {
	query := `
		INSERT INTO matches (tournament_id, matchup_id, round, p1_alias, p2_alias,
			score_p1, score_p2, winner_alias, forfeit, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (matchup_id) DO NOTHING
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		m.TournamentID, m.MatchupID, m.Round, m.P1Alias, m.P2Alias,
		m.ScoreP1, m.ScoreP2, m.WinnerAlias, m.Forfeit, m.DurationMS,
	).Scan(&m.ID, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Duplicate delivery of the same result; the first write stands.
		return nil
	}
	return err
}

// SaveStandings writes the final ranking and closes the tournament record in
// one transaction, so a retry after a partial failure starts clean.
func (r *postgresTournamentRepository) SaveStandings(ctx context.Context, tournamentID string, standings []models.Standing) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM standings WHERE tournament_id = $1`, tournamentID); err != nil {
		return fmt.Errorf("failed to clear stale standings: %w", err)
	}

	for _, s := range standings {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO standings (tournament_id, alias, rank) VALUES ($1, $2, $3)`,
			tournamentID, s.Alias, s.Rank,
		)
		if err != nil {
			return fmt.Errorf("failed to insert standing for %s: %w", s.Alias, err)
		}
	}

	if err := r.UpdateStatus(ctx, tx, tournamentID, models.TournamentCompleted); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *postgresTournamentRepository) listMatches(ctx context.Context, tournamentID string) ([]models.Match, error) {
	query := `
		SELECT id, tournament_id, matchup_id, round, p1_alias, p2_alias,
			score_p1, score_p2, winner_alias, forfeit, duration_ms, created_at
		FROM matches
		WHERE tournament_id = $1
		ORDER BY round, id`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]models.Match, 0)
	for rows.Next() {
		var m models.Match
		if err := rows.Scan(
			&m.ID, &m.TournamentID, &m.MatchupID, &m.Round, &m.P1Alias, &m.P2Alias,
			&m.ScoreP1, &m.ScoreP2, &m.WinnerAlias, &m.Forfeit, &m.DurationMS, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *postgresTournamentRepository) listStandings(ctx context.Context, tournamentID string) ([]models.Standing, error) {
	query := `
		SELECT tournament_id, alias, rank
		FROM standings
		WHERE tournament_id = $1
		ORDER BY rank, alias`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	standings := make([]models.Standing, 0)
	for rows.Next() {
		var s models.Standing
		if err := rows.Scan(&s.TournamentID, &s.Alias, &s.Rank); err != nil {
			return nil, err
		}
		standings = append(standings, s)
	}
	return standings, rows.Err()
}
