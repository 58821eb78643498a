package services

import (
	"context"
	"errors"

	"arena-platform/models"
	"arena-platform/repositories"
	"arena-platform/storage"
)

type FriendService interface {
	SendRequest(ctx context.Context, requesterID, addresseeID int) (*models.FriendRequest, error)
	AcceptRequest(ctx context.Context, requestID, userID int) error
	RemoveFriend(ctx context.Context, requestID, userID int) error
	ListFriends(ctx context.Context, userID int) ([]models.Friend, error)
	ListPending(ctx context.Context, userID int) ([]models.FriendRequest, error)
}

type friendService struct {
	friendRepo repositories.FriendRepository
	uploader   storage.FileUploader
}

func NewFriendService(friendRepo repositories.FriendRepository, uploader storage.FileUploader) FriendService {
	return &friendService{friendRepo: friendRepo, uploader: uploader}
}

func (s *friendService) SendRequest(ctx context.Context, requesterID, addresseeID int) (*models.FriendRequest, error) {
	if requesterID == addresseeID {
		return nil, ErrSelfFriendRequest
	}
	req := &models.FriendRequest{RequesterID: requesterID, AddresseeID: addresseeID}
	if err := s.friendRepo.CreateRequest(ctx, req); err != nil {
		switch {
		case errors.Is(err, repositories.ErrFriendRequestConflict):
			return nil, ErrFriendRequestExists
		case errors.Is(err, repositories.ErrFriendInvalidUser):
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return req, nil
}

func (s *friendService) AcceptRequest(ctx context.Context, requestID, userID int) error {
	err := s.friendRepo.Accept(ctx, requestID, userID)
	if errors.Is(err, repositories.ErrFriendRequestNotFound) {
		return ErrFriendNotFound
	}
	return err
}

func (s *friendService) RemoveFriend(ctx context.Context, requestID, userID int) error {
	err := s.friendRepo.Delete(ctx, requestID, userID)
	if errors.Is(err, repositories.ErrFriendRequestNotFound) {
		return ErrFriendNotFound
	}
	return err
}

func (s *friendService) ListFriends(ctx context.Context, userID int) ([]models.Friend, error) {
	friends, err := s.friendRepo.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.uploader != nil {
		for i := range friends {
			if friends[i].AvatarKey != nil {
				if url := s.uploader.GetPublicURL(*friends[i].AvatarKey); url != "" {
					friends[i].AvatarURL = &url
				}
			}
		}
	}
	return friends, nil
}

func (s *friendService) ListPending(ctx context.Context, userID int) ([]models.FriendRequest, error) {
	return s.friendRepo.ListPending(ctx, userID)
}
