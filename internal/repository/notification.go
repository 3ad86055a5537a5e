package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/MovieNight/internal/model"
)

type NotificationRepo struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

func (r *NotificationRepo) InsertBatch(ctx context.Context, items []*model.Notification) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	res := conn(ctx, r.db).Create(&items)
	return res.RowsAffected, translate(res.Error)
}

func (r *NotificationRepo) ListByUser(ctx context.Context, userID string, page model.PageRequest) ([]*model.Notification, int64, error) {
	q := conn(ctx, r.db).Model(&model.Notification{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var items []*model.Notification
	err := q.Order("created_at DESC").Offset(page.Offset()).Limit(page.Limit).Find(&items).Error
	return items, total, translate(err)
}

func (r *NotificationRepo) CountUnread(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := conn(ctx, r.db).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, translate(err)
}

func (r *NotificationRepo) MarkRead(ctx context.Context, userID, id string) (bool, error) {
	res := conn(ctx, r.db).Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	return res.RowsAffected == 1, translate(res.Error)
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := conn(ctx, r.db).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, translate(res.Error)
}

func (r *NotificationRepo) RecentRecipients(ctx context.Context, userIDs []string, typ model.NotificationType, referenceID string, since time.Time) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := conn(ctx, r.db).Model(&model.Notification{}).
		Distinct("user_id").
		Where("user_id IN ? AND type = ? AND reference_id = ? AND created_at >= ?", userIDs, typ, referenceID, since).
		Pluck("user_id", &ids).Error
	return ids, translate(err)
}
