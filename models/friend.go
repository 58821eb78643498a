package models

import "time"

// FriendRequestStatus соответствует ENUM friend_request_status в БД.
type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
)

type FriendRequest struct {
	ID          int                 `json:"id"`
	RequesterID int                 `json:"requester_id"`
	AddresseeID int                 `json:"addressee_id"`
	Status      FriendRequestStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
}

// Friend is one entry of a user's friend list, already joined with the
// friend's public profile fields.
type Friend struct {
	UserID    int     `json:"user_id"`
	Nickname  string  `json:"nickname"`
	AvatarKey *string `json:"-"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}
