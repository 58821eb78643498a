package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"arena-platform/models"
)

var (
	ErrFriendRequestNotFound = errors.New("friend request not found")
	ErrFriendRequestConflict = errors.New("friend request already exists")
	ErrFriendInvalidUser     = errors.New("invalid user reference in friend request")
)

type FriendRepository interface {
	CreateRequest(ctx context.Context, req *models.FriendRequest) error
	Accept(ctx context.Context, requestID, addresseeID int) error
	Delete(ctx context.Context, requestID, actingUserID int) error
	ListFriends(ctx context.Context, userID int) ([]models.Friend, error)
	ListPending(ctx context.Context, userID int) ([]models.FriendRequest, error)
}

type postgresFriendRepository struct {
	db *sql.DB
}

func NewPostgresFriendRepository(db *sql.DB) FriendRepository {
	return &postgresFriendRepository{db: db}
}

func (r *postgresFriendRepository) CreateRequest(ctx context.Context, req *models.FriendRequest) error {
	query := `
		INSERT INTO friend_requests (requester_id, addressee_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, req.RequesterID, req.AddresseeID, models.FriendRequestPending).
		Scan(&req.ID, &req.CreatedAt)
	if err == nil {
		req.Status = models.FriendRequestPending
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			return ErrFriendRequestConflict
		case "23503":
			return ErrFriendInvalidUser
		}
	}
	return err
}

func (r *postgresFriendRepository) Accept(ctx context.Context, requestID, addresseeID int) error {
	query := `
		UPDATE friend_requests SET status = $1
		WHERE id = $2 AND addressee_id = $3 AND status = $4`

	result, err := r.db.ExecContext(ctx, query,
		models.FriendRequestAccepted, requestID, addresseeID, models.FriendRequestPending)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrFriendRequestNotFound)
}

func (r *postgresFriendRepository) Delete(ctx context.Context, requestID, actingUserID int) error {
	// Either side may withdraw or unfriend.
	query := `DELETE FROM friend_requests WHERE id = $1 AND (requester_id = $2 OR addressee_id = $2)`
	result, err := r.db.ExecContext(ctx, query, requestID, actingUserID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrFriendRequestNotFound)
}

func (r *postgresFriendRepository) ListFriends(ctx context.Context, userID int) ([]models.Friend, error) {
	query := `
		SELECT u.id, u.nickname, u.avatar_key
		FROM friend_requests fr
		JOIN users u ON u.id = CASE WHEN fr.requester_id = $1 THEN fr.addressee_id ELSE fr.requester_id END
		WHERE (fr.requester_id = $1 OR fr.addressee_id = $1) AND fr.status = $2
		ORDER BY u.nickname`

	rows, err := r.db.QueryContext(ctx, query, userID, models.FriendRequestAccepted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	friends := make([]models.Friend, 0)
	for rows.Next() {
		var f models.Friend
		if err := rows.Scan(&f.UserID, &f.Nickname, &f.AvatarKey); err != nil {
			return nil, err
		}
		friends = append(friends, f)
	}
	return friends, rows.Err()
}

func (r *postgresFriendRepository) ListPending(ctx context.Context, userID int) ([]models.FriendRequest, error) {
	query := `
		SELECT id, requester_id, addressee_id, status, created_at
		FROM friend_requests
		WHERE addressee_id = $1 AND status = $2
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID, models.FriendRequestPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]models.FriendRequest, 0)
	for rows.Next() {
		var req models.FriendRequest
		if err := rows.Scan(&req.ID, &req.RequesterID, &req.AddresseeID, &req.Status, &req.CreatedAt); err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}
