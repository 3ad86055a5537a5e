package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Gopher0727/MovieNight/internal/model"
)

type SchemaVersion int

const (
	// SchemaLegacy is any schema missing at least one optional feature.
	SchemaLegacy SchemaVersion = iota
	SchemaCurrent
)

func (v SchemaVersion) String() string {
	if v == SchemaCurrent {
		return "current"
	}
	return "legacy"
}

// Capabilities records which optional schema features exist. It is probed
// once at startup.
type Capabilities struct {
	MemberRoles       bool
	Activity          bool
	NotificationPrefs bool
	NightScheduling   bool
}

func FullCapabilities() Capabilities {
	return Capabilities{MemberRoles: true, Activity: true, NotificationPrefs: true, NightScheduling: true}
}

func (c Capabilities) Version() SchemaVersion {
	if c == FullCapabilities() {
		return SchemaCurrent
	}
	return SchemaLegacy
}

// ProbeSchema inspects the connected database for the optional columns and
// tables added by later migrations.
func ProbeSchema(ctx context.Context, db *gorm.DB) (Capabilities, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return Capabilities{}, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return Capabilities{}, fmt.Errorf("failed to reach database: %w", err)
	}

	m := db.WithContext(ctx).Migrator()
	caps := Capabilities{
		MemberRoles:       m.HasColumn(&model.GroupMember{}, "role"),
		Activity:          m.HasTable(&model.ActivityEvent{}),
		NotificationPrefs: m.HasColumn(&model.User{}, "vote_notifications"),
		NightScheduling:   true,
	}
	for _, col := range model.SchedulingColumns {
		if !m.HasColumn(&model.MovieNight{}, col) {
			caps.NightScheduling = false
			break
		}
	}
	return caps, nil
}

// NewGormRepositories wires every gorm repository to db.
func NewGormRepositories(db *gorm.DB, caps Capabilities) *Repositories {
	return &Repositories{
		Tx:            NewTxManager(db),
		Schema:        caps,
		Users:         NewUserRepository(db, caps),
		Groups:        NewGroupRepository(db),
		Members:       NewMemberRepository(db, caps),
		Nights:        NewMovieNightRepository(db, caps),
		Availability:  NewAvailabilityRepository(db),
		Watchlist:     NewWatchlistRepository(db),
		Votes:         NewVoteRepository(db),
		Activity:      NewActivityRepository(db),
		Notifications: NewNotificationRepository(db),
		Friends:       NewFriendRepository(db),
	}
}
