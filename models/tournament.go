package models

import "time"

// TournamentStatus представляет статусы архивной записи турнира в БД.
// Живое состояние сессии живёт в памяти (пакет tournament); сюда попадают
// только durable-переходы.
type TournamentStatus string

const (
	TournamentActive    TournamentStatus = "active"
	TournamentCompleted TournamentStatus = "completed"
	TournamentCancelled TournamentStatus = "cancelled"
)

// Tournament is the durable record of a tournament: created when the session
// starts, finalized (or cancelled) when it ends.
type Tournament struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	CreatorUserID *int             `json:"creator_user_id,omitempty"`
	CreatorGuest  *string          `json:"creator_guest,omitempty"`
	Status        TournamentStatus `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	FinishedAt    *time.Time       `json:"finished_at,omitempty"`

	// Связанные сущности, загружаются отдельно.
	Matches   []Match    `json:"matches,omitempty"`
	Standings []Standing `json:"standings,omitempty"`
}

// Match is one resolved matchup as persisted. An empty WinnerAlias means a
// double forfeit.
type Match struct {
	ID           int       `json:"id"`
	TournamentID string    `json:"tournament_id"`
	MatchupID    string    `json:"matchup_id"`
	Round        int       `json:"round"`
	P1Alias      string    `json:"p1_alias"`
	P2Alias      string    `json:"p2_alias"`
	ScoreP1      int       `json:"score_p1"`
	ScoreP2      int       `json:"score_p2"`
	WinnerAlias  *string   `json:"winner_alias,omitempty"`
	Forfeit      bool      `json:"forfeit"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Standing is one row of a finalized ranking. Participants eliminated in the
// same round share a rank.
type Standing struct {
	TournamentID string `json:"tournament_id"`
	Alias        string `json:"alias"`
	Rank         int    `json:"rank"`
}
