package tournament

import (
	"errors"
	"fmt"
)

// Таксономия ошибок ядра турнира. Конкретные ошибки оборачивают одну из
// базовых категорий, чтобы обработчики могли проверять errors.Is по категории.
var (
	ErrValidation    = errors.New("invalid command")
	ErrStateConflict = errors.New("command not allowed in the current tournament state")
	ErrNotAuthorized = errors.New("operation not allowed for this participant")
	ErrNotFound      = errors.New("requested resource not found")
)

// Ошибки регистрации участников.
var (
	ErrDuplicateAlias      = fmt.Errorf("alias already taken in this tournament: %w", ErrValidation)
	ErrRegistrationClosed  = fmt.Errorf("registration is closed: %w", ErrStateConflict)
	ErrNotCreator          = fmt.Errorf("only the tournament creator can perform this action: %w", ErrNotAuthorized)
	ErrCannotRemoveCreator = fmt.Errorf("the creator cannot be removed from their own tournament: %w", ErrValidation)
	ErrParticipantNotFound = fmt.Errorf("participant not found: %w", ErrNotFound)
)

// Ошибки жизненного цикла сессии.
var (
	ErrInsufficientParticipants = fmt.Errorf("not enough participants to start the tournament: %w", ErrValidation)
	ErrTournamentClosed         = fmt.Errorf("tournament is already closed: %w", ErrStateConflict)
	ErrTournamentNotOngoing     = fmt.Errorf("tournament is not ongoing: %w", ErrStateConflict)
	ErrSessionStopped           = fmt.Errorf("tournament session is no longer accepting commands: %w", ErrStateConflict)
)

// Ошибки сетки и матчей.
var (
	ErrEmptyBracket          = errors.New("cannot generate a round with zero active participants")
	ErrMatchupNotFound       = fmt.Errorf("matchup not found: %w", ErrNotFound)
	ErrResultAlreadyReported = fmt.Errorf("matchup result already reported: %w", ErrStateConflict)
	ErrInvalidScore          = fmt.Errorf("invalid match score: %w", ErrValidation)
)
