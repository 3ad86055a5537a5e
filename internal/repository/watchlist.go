package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/MovieNight/internal/model"
)

type WatchlistRepo struct {
	db *gorm.DB
}

func NewWatchlistRepository(db *gorm.DB) *WatchlistRepo {
	return &WatchlistRepo{db: db}
}

func (r *WatchlistRepo) InsertIgnore(ctx context.Context, entry *model.WatchlistEntry) (bool, error) {
	res := conn(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(entry)
	return res.RowsAffected == 1, translate(res.Error)
}

func (r *WatchlistRepo) Find(ctx context.Context, groupID string, movieID int64) (*model.WatchlistEntry, error) {
	var entry model.WatchlistEntry
	err := conn(ctx, r.db).Where("group_id = ? AND movie_id = ?", groupID, movieID).Take(&entry).Error
	if err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

func (r *WatchlistRepo) Delete(ctx context.Context, groupID string, movieID int64) (bool, error) {
	res := conn(ctx, r.db).Where("group_id = ? AND movie_id = ?", groupID, movieID).Delete(&model.WatchlistEntry{})
	return res.RowsAffected == 1, translate(res.Error)
}

func (r *WatchlistRepo) ListByGroup(ctx context.Context, groupID string) ([]*model.WatchlistEntry, error) {
	var entries []*model.WatchlistEntry
	err := conn(ctx, r.db).Where("group_id = ?", groupID).Order("added_at DESC").Find(&entries).Error
	return entries, translate(err)
}

type VoteRepo struct {
	db *gorm.DB
}

func NewVoteRepository(db *gorm.DB) *VoteRepo {
	return &VoteRepo{db: db}
}

func (r *VoteRepo) Upsert(ctx context.Context, vote *model.Vote) error {
	return translate(conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "group_id"}, {Name: "movie_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"vote_value", "voted_at"}),
	}).Create(vote).Error)
}

func (r *VoteRepo) ListByMovie(ctx context.Context, groupID string, movieID int64) ([]*model.Vote, error) {
	var votes []*model.Vote
	err := conn(ctx, r.db).Where("group_id = ? AND movie_id = ?", groupID, movieID).Order("voted_at ASC").Find(&votes).Error
	return votes, translate(err)
}

func (r *VoteRepo) VoterIDs(ctx context.Context, groupID string, movieID int64) ([]string, error) {
	var ids []string
	err := conn(ctx, r.db).Model(&model.Vote{}).
		Where("group_id = ? AND movie_id = ?", groupID, movieID).
		Pluck("user_id", &ids).Error
	return ids, translate(err)
}
