package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Gopher0727/MovieNight/internal/apperr"
	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
	"github.com/Gopher0727/MovieNight/internal/utils"
)

var (
	ErrSelfFriend      = apperr.Validation("you cannot send a friend request to yourself")
	ErrAlreadyFriends  = apperr.Conflict("you are already friends")
	ErrRequestPending  = apperr.Conflict("a friend request is already pending")
	ErrRequestNotFound = apperr.NotFound("friend request not found")
	ErrRequestAnswered = apperr.Conflict("friend request has already been answered")
	ErrFriendNotFound  = apperr.NotFound("friend not found")
)

type IFriendService interface {
	SendRequest(ctx context.Context, userID, email string) (*model.FriendRequest, error)
	Accept(ctx context.Context, userID, requestID string) error
	Decline(ctx context.Context, userID, requestID string) error
	ListFriends(ctx context.Context, userID string) ([]model.UserProfile, error)
	ListPending(ctx context.Context, userID string) ([]model.PendingRequestView, error)
	Remove(ctx context.Context, userID, friendID string) error
}

type FriendService struct {
	*Deps
}

func NewFriendService(d *Deps) *FriendService {
	return &FriendService{Deps: d}
}

func (s *FriendService) SendRequest(ctx context.Context, userID, email string) (*model.FriendRequest, error) {
	email = utils.NormalizeEmail(email)
	if !utils.ValidateEmail(email) {
		return nil, apperr.Validation("a valid email address is required")
	}
	sender, err := s.Repos.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	receiver, err := s.Repos.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if receiver.ID == userID {
		return nil, ErrSelfFriend
	}

	request := &model.FriendRequest{
		ID:         uuid.NewString(),
		SenderID:   userID,
		ReceiverID: receiver.ID,
		Status:     model.FriendRequestPending,
		CreatedAt:  s.now(),
	}
	err = s.inTx(ctx, func(ctx context.Context) error {
		friends, err := s.Repos.Friends.AreFriends(ctx, userID, receiver.ID)
		if err != nil {
			return fmt.Errorf("failed to check friendship: %w", err)
		}
		if friends {
			return ErrAlreadyFriends
		}
		if _, err := s.Repos.Friends.FindPendingBetween(ctx, userID, receiver.ID); err == nil {
			return ErrRequestPending
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to check pending requests: %w", err)
		}
		if err := s.Repos.Friends.CreateRequest(ctx, request); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrRequestPending
			}
			return fmt.Errorf("failed to create friend request: %w", err)
		}
		s.Notifier.Notify(ctx, NotificationInput{
			UserID:      receiver.ID,
			Type:        model.NotificationFriendRequest,
			Title:       "New friend request",
			Message:     fmt.Sprintf("%s wants to be your friend.", sender.Name),
			ReferenceID: request.ID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// Accept answers a pending request addressed to userID. The pending check and
// the status change are one conditional update, so concurrent accepts create
// the friendship once.
func (s *FriendService) Accept(ctx context.Context, userID, requestID string) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		request, err := s.answer(ctx, userID, requestID, model.FriendRequestAccepted)
		if err != nil {
			return err
		}
		if _, err := s.Repos.Friends.InsertFriendshipIgnore(ctx, request.SenderID, request.ReceiverID); err != nil {
			return fmt.Errorf("failed to create friendship: %w", err)
		}
		if _, err := s.Repos.Friends.InsertFriendshipIgnore(ctx, request.ReceiverID, request.SenderID); err != nil {
			return fmt.Errorf("failed to create friendship: %w", err)
		}

		name := "Someone"
		if receiver, err := s.Repos.Users.FindByID(ctx, userID); err == nil {
			name = receiver.Name
		}
		s.Notifier.Notify(ctx, NotificationInput{
			UserID:      request.SenderID,
			Type:        model.NotificationFriendAccepted,
			Title:       "Friend request accepted",
			Message:     fmt.Sprintf("%s accepted your friend request.", name),
			ReferenceID: request.ID,
		})
		return nil
	})
}

func (s *FriendService) Decline(ctx context.Context, userID, requestID string) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		_, err := s.answer(ctx, userID, requestID, model.FriendRequestDeclined)
		return err
	})
}

func (s *FriendService) answer(ctx context.Context, userID, requestID string, status model.FriendRequestStatus) (*model.FriendRequest, error) {
	request, err := s.Repos.Friends.FindRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to find friend request: %w", err)
	}
	if request.ReceiverID != userID {
		return nil, ErrRequestNotFound
	}
	ok, err := s.Repos.Friends.TransitionRequest(ctx, requestID, userID, status, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to update friend request: %w", err)
	}
	if !ok {
		return nil, ErrRequestAnswered
	}
	request.Status = status
	return request, nil
}

func (s *FriendService) ListFriends(ctx context.Context, userID string) ([]model.UserProfile, error) {
	users, err := s.Repos.Friends.ListFriends(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	out := make([]model.UserProfile, 0, len(users))
	for _, u := range users {
		out = append(out, u.Profile())
	}
	return out, nil
}

func (s *FriendService) ListPending(ctx context.Context, userID string) ([]model.PendingRequestView, error) {
	requests, err := s.Repos.Friends.ListPending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friend requests: %w", err)
	}
	ids := make([]string, 0, len(requests))
	for _, r := range requests {
		ids = append(ids, r.SenderID)
	}
	senders, err := s.Repos.Users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load senders: %w", err)
	}
	byID := make(map[string]*model.User, len(senders))
	for _, u := range senders {
		byID[u.ID] = u
	}

	out := make([]model.PendingRequestView, 0, len(requests))
	for _, r := range requests {
		sender, ok := byID[r.SenderID]
		if !ok {
			continue
		}
		out = append(out, model.PendingRequestView{ID: r.ID, Sender: sender.Profile(), CreatedAt: r.CreatedAt})
	}
	return out, nil
}

func (s *FriendService) Remove(ctx context.Context, userID, friendID string) error {
	n, err := s.Repos.Friends.DeleteFriendship(ctx, userID, friendID)
	if err != nil {
		return fmt.Errorf("failed to remove friend: %w", err)
	}
	if n == 0 {
		return ErrFriendNotFound
	}
	return nil
}
