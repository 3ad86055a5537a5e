package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
)

// A schema that lost its role column after startup: the locked read inside a
// transaction falls back to creator-based roles instead of failing on an
// aborted transaction.
func TestLockFallsBackInsideTransaction(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	joined := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec(`SAVEPOINT sp`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`gm\.role AS raw_role .+FOR UPDATE`).WillReturnError(repository.UndefinedColumnError("role"))
	mock.ExpectExec(`ROLLBACK TO SAVEPOINT sp`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`SAVEPOINT sp`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .+ FROM group_members AS gm .+FOR UPDATE`).WillReturnRows(
		sqlmock.NewRows([]string{"group_id", "user_id", "joined_at", "group_name", "created_by", "group_created_at"}).
			AddRow("g1", "alice", joined, "Friday Crew", "alice", joined))
	mock.ExpectCommit()

	resolver := NewMembershipResolver(repository.NewMemberRepository(db, repository.FullCapabilities()), repository.FullCapabilities(), nil)
	var m *model.Membership
	err = repository.NewTxManager(db).RunInTx(context.Background(), func(ctx context.Context) error {
		var err error
		m, err = resolver.Lock(ctx, "g1", "alice")
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, model.RoleOwner, m.Role, "the creator is owner on the legacy projection")
	assert.False(t, resolver.RoleColumn())
	assert.NoError(t, mock.ExpectationsWereMet())
}
