package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/MovieNight/internal/model"
)

type FriendRepo struct {
	db *gorm.DB
}

func NewFriendRepository(db *gorm.DB) *FriendRepo {
	return &FriendRepo{db: db}
}

func (r *FriendRepo) CreateRequest(ctx context.Context, request *model.FriendRequest) error {
	return translate(conn(ctx, r.db).Create(request).Error)
}

func (r *FriendRepo) FindRequest(ctx context.Context, id string) (*model.FriendRequest, error) {
	var req model.FriendRequest
	if err := conn(ctx, r.db).Where("id = ?", id).Take(&req).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (r *FriendRepo) FindPendingBetween(ctx context.Context, a, b string) (*model.FriendRequest, error) {
	var req model.FriendRequest
	err := conn(ctx, r.db).
		Where("status = ?", model.FriendRequestPending).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Take(&req).Error
	if err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

// TransitionRequest is a conditional update: of two concurrent accepts only
// one sees a pending row.
func (r *FriendRepo) TransitionRequest(ctx context.Context, id, receiverID string, status model.FriendRequestStatus, at time.Time) (bool, error) {
	res := conn(ctx, r.db).Model(&model.FriendRequest{}).
		Where("id = ? AND receiver_id = ? AND status = ?", id, receiverID, model.FriendRequestPending).
		Updates(map[string]any{"status": status, "responded_at": at})
	return res.RowsAffected == 1, translate(res.Error)
}

func (r *FriendRepo) ListPending(ctx context.Context, receiverID string) ([]*model.FriendRequest, error) {
	var reqs []*model.FriendRequest
	err := conn(ctx, r.db).
		Where("receiver_id = ? AND status = ?", receiverID, model.FriendRequestPending).
		Order("created_at DESC").
		Find(&reqs).Error
	return reqs, translate(err)
}

func (r *FriendRepo) InsertFriendshipIgnore(ctx context.Context, userID, friendID string) (bool, error) {
	res := conn(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(&model.Friendship{
		UserID:    userID,
		FriendID:  friendID,
		CreatedAt: time.Now(),
	})
	return res.RowsAffected == 1, translate(res.Error)
}

func (r *FriendRepo) AreFriends(ctx context.Context, a, b string) (bool, error) {
	var n int64
	err := conn(ctx, r.db).Model(&model.Friendship{}).
		Where("user_id = ? AND friend_id = ?", a, b).
		Count(&n).Error
	return n > 0, translate(err)
}

func (r *FriendRepo) ListFriends(ctx context.Context, userID string) ([]*model.User, error) {
	var users []*model.User
	err := conn(ctx, r.db).
		Joins("JOIN friendships f ON f.friend_id = users.id").
		Where("f.user_id = ?", userID).
		Order("users.name ASC").
		Find(&users).Error
	return users, translate(err)
}

func (r *FriendRepo) DeleteFriendship(ctx context.Context, a, b string) (int64, error) {
	res := conn(ctx, r.db).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)", a, b, b, a).
		Delete(&model.Friendship{})
	return res.RowsAffected, translate(res.Error)
}
