package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/MovieNight/internal/model"
)

type ActivityRepo struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

// Append runs in a nested transaction, which gorm turns into a savepoint when
// an outer transaction is active, so a failed insert does not abort it.
func (r *ActivityRepo) Append(ctx context.Context, event *model.ActivityEvent) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		return tx.Create(event).Error
	})
}

func (r *ActivityRepo) List(ctx context.Context, filter model.ActivityFilter) ([]*model.ActivityEvent, int64, error) {
	q := conn(ctx, r.db).Model(&model.ActivityEvent{}).Where("group_id = ?", filter.GroupID)
	if filter.EventType != "" {
		q = q.Where("event_type = ?", filter.EventType)
	}
	if filter.ActorID != "" {
		q = q.Where("actor_user_id = ?", filter.ActorID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var events []*model.ActivityEvent
	err := q.Order("created_at DESC").Order("id DESC").
		Offset(filter.Page.Offset()).
		Limit(filter.Page.Limit).
		Find(&events).Error
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}
