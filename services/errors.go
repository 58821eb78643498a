package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed  = errors.New("validation failed")
	ErrPasswordTooShort  = errors.New("password is too short")
	ErrNicknameRequired  = errors.New("nickname is required")
	ErrSelfFriendRequest = errors.New("cannot send a friend request to yourself")
	ErrUnsupportedAvatar = errors.New("unsupported avatar content type")

	// Ошибки конфликтов
	ErrUserEmailConflict    = errors.New("email address is already in use")
	ErrUserNicknameConflict = errors.New("nickname is already in use")
	ErrFriendRequestExists  = errors.New("friend request already exists")

	// Ошибки аутентификации и авторизации
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")

	// Ошибки, специфичные для сущностей
	ErrUserNotFound       = errors.New("user not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrFriendNotFound     = errors.New("friend request not found")
)
