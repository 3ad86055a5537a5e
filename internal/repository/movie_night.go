package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/MovieNight/internal/model"
)

type MovieNightRepo struct {
	db   *gorm.DB
	caps Capabilities
}

func NewMovieNightRepository(db *gorm.DB, caps Capabilities) *MovieNightRepo {
	return &MovieNightRepo{db: db, caps: caps}
}

func (r *MovieNightRepo) Create(ctx context.Context, night *model.MovieNight) error {
	q := conn(ctx, r.db)
	if !r.caps.NightScheduling {
		q = q.Omit(model.SchedulingColumns...)
	}
	return translate(q.Create(night).Error)
}

func (r *MovieNightRepo) FindByID(ctx context.Context, groupID, nightID string) (*model.MovieNight, error) {
	var night model.MovieNight
	err := conn(ctx, r.db).Where("id = ? AND group_id = ?", nightID, groupID).Take(&night).Error
	if err != nil {
		return nil, translate(err)
	}
	return &night, nil
}

func (r *MovieNightRepo) LockByID(ctx context.Context, groupID, nightID string) (*model.MovieNight, error) {
	var night model.MovieNight
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND group_id = ?", nightID, groupID).
		Take(&night).Error
	if err != nil {
		return nil, translate(err)
	}
	return &night, nil
}

// Update writes every mutable column, including NULLs.
func (r *MovieNightRepo) Update(ctx context.Context, night *model.MovieNight) error {
	updates := map[string]any{
		"scheduled_date":  night.ScheduledDate,
		"chosen_movie_id": night.ChosenMovieID,
		"status":          night.Status,
		"updated_at":      night.UpdatedAt,
	}
	if r.caps.NightScheduling {
		updates["is_locked"] = night.IsLocked
		updates["rsvp_deadline"] = night.RSVPDeadline
		updates["reminder_minutes_before"] = night.ReminderMinutesBefore
		updates["reminder_sent_at"] = night.ReminderSentAt
	}
	res := conn(ctx, r.db).Model(&model.MovieNight{}).Where("id = ? AND group_id = ?", night.ID, night.GroupID).Updates(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MovieNightRepo) ListByGroup(ctx context.Context, groupID string) ([]*model.MovieNight, error) {
	var nights []*model.MovieNight
	err := conn(ctx, r.db).Where("group_id = ?", groupID).Order("scheduled_date ASC").Find(&nights).Error
	return nights, translate(err)
}

func (r *MovieNightRepo) ListReminderCandidates(ctx context.Context, limit int) ([]*model.MovieNight, error) {
	if !r.caps.NightScheduling {
		return nil, nil
	}
	var nights []*model.MovieNight
	err := conn(ctx, r.db).
		Joins("JOIN movie_groups g ON g.id = movie_nights.group_id AND g.deleted_at IS NULL").
		Where("movie_nights.status = ?", model.NightPlanned).
		Where("movie_nights.rsvp_deadline IS NOT NULL AND movie_nights.reminder_minutes_before IS NOT NULL").
		Where("movie_nights.reminder_sent_at IS NULL").
		Order("movie_nights.rsvp_deadline ASC").
		Limit(limit).
		Find(&nights).Error
	return nights, translate(err)
}

func (r *MovieNightRepo) MarkReminderSent(ctx context.Context, nightID string, at time.Time) error {
	return translate(conn(ctx, r.db).Model(&model.MovieNight{}).
		Where("id = ?", nightID).
		Update("reminder_sent_at", at).Error)
}

type AvailabilityRepo struct {
	db *gorm.DB
}

func NewAvailabilityRepository(db *gorm.DB) *AvailabilityRepo {
	return &AvailabilityRepo{db: db}
}

func (r *AvailabilityRepo) Upsert(ctx context.Context, availability *model.Availability) error {
	return translate(conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "night_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_available", "responded_at"}),
	}).Create(availability).Error)
}

func (r *AvailabilityRepo) ListByNight(ctx context.Context, nightID string) ([]*model.Availability, error) {
	var rows []*model.Availability
	err := conn(ctx, r.db).Where("night_id = ?", nightID).Order("responded_at ASC").Find(&rows).Error
	return rows, translate(err)
}

func (r *AvailabilityRepo) PendingMemberIDs(ctx context.Context, groupID, nightID string) ([]string, error) {
	var ids []string
	err := conn(ctx, r.db).
		Table("group_members AS gm").
		Joins("JOIN users u ON u.id = gm.user_id AND u.deleted_at IS NULL").
		Joins("LEFT JOIN movie_night_availability a ON a.night_id = ? AND a.user_id = gm.user_id", nightID).
		Where("gm.group_id = ? AND a.user_id IS NULL", groupID).
		Order("gm.joined_at ASC").
		Pluck("gm.user_id", &ids).Error
	return ids, translate(err)
}
