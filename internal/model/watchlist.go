package model

import "time"

// WatchlistEntry is a movie (by TMDB id) shortlisted by a group.
type WatchlistEntry struct {
	GroupID string    `gorm:"primaryKey;type:varchar(64)" json:"group_id"`
	MovieID int64     `gorm:"primaryKey;autoIncrement:false" json:"movie_id"`
	Title   string    `gorm:"not null;type:varchar(255)" json:"title"`
	AddedBy string    `gorm:"not null;type:varchar(64)" json:"added_by"`
	AddedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"added_at"`
}

func (WatchlistEntry) TableName() string {
	return "group_watchlist"
}

const (
	VoteMin = 1
	VoteMax = 5
)

// Vote is one member's score for a watchlist movie; re-voting overwrites it.
type Vote struct {
	UserID  string    `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	GroupID string    `gorm:"primaryKey;type:varchar(64)" json:"group_id"`
	MovieID int64     `gorm:"primaryKey;autoIncrement:false" json:"movie_id"`
	Value   int       `gorm:"column:vote_value;not null" json:"vote_value"`
	VotedAt time.Time `gorm:"not null" json:"voted_at"`
}

func (Vote) TableName() string {
	return "movie_votes"
}

type VoteSummary struct {
	MovieID int64   `json:"movie_id"`
	Votes   []*Vote `json:"votes"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}
