package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/MovieNight/internal/apperr"
	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
)

type nightFixture struct {
	*testEnv
	groupID           string
	owner, bob, carol *model.User
}

func newNightFixture(t *testing.T) *nightFixture {
	e := newTestEnv(t, repository.FullCapabilities())
	f := &nightFixture{testEnv: e}
	f.owner, f.bob, f.carol = e.addUser(t, "Alice"), e.addUser(t, "Bob"), e.addUser(t, "Carol")
	f.groupID = e.newGroup(t, f.owner, f.bob, f.carol)
	return f
}

func (f *nightFixture) as(t *testing.T, u *model.User) *model.Membership {
	return f.membership(t, f.groupID, u.ID)
}

func TestCreateMovieNightValidation(t *testing.T) {
	f := newNightFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   NightInput
		msg  string
	}{
		{"missing date", NightInput{}, "scheduled date is required"},
		{"unparseable date", NightInput{ScheduledDate: ptr("next friday")}, "scheduled date must be a valid date"},
		{"past date", NightInput{ScheduledDate: ptr("2026-02-01T20:00:00Z")}, "scheduled date must not be in the past"},
		{
			"deadline after date",
			NightInput{ScheduledDate: ptr("2026-03-02T20:00:00Z"), RSVPDeadline: ptr("2026-03-02T20:00:00Z")},
			"rsvp deadline must be before the scheduled date",
		},
		{
			"deadline in the past",
			NightInput{ScheduledDate: ptr("2026-03-02T20:00:00Z"), RSVPDeadline: ptr("2026-03-01T11:00:00Z")},
			"rsvp deadline must not be in the past",
		},
		{
			"reminder without deadline",
			NightInput{ScheduledDate: ptr("2026-03-02T20:00:00Z"), ReminderMinutesBefore: ptr(30)},
			"reminder requires an rsvp deadline",
		},
		{
			"reminder too short",
			NightInput{ScheduledDate: ptr("2026-03-02T20:00:00Z"), RSVPDeadline: ptr("2026-03-02T18:00:00Z"), ReminderMinutesBefore: ptr(14)},
			"reminder must be between 15 and 10080 minutes before the deadline",
		},
		{
			"reminder too long",
			NightInput{ScheduledDate: ptr("2026-03-02T20:00:00Z"), RSVPDeadline: ptr("2026-03-02T18:00:00Z"), ReminderMinutesBefore: ptr(10081)},
			"reminder must be between 15 and 10080 minutes before the deadline",
		},
		{
			"movie not in watchlist",
			NightInput{ScheduledDate: ptr("2026-03-02T20:00:00Z"), ChosenMovieID: ptr(int64(603))},
			"chosen movie must already exist in watchlist",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Nights.Create(ctx, f.as(t, f.bob), tt.in)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.EqualError(t, err, tt.msg)
		})
	}

	t.Run("within clock skew grace", func(t *testing.T) {
		_, err := f.svc.Nights.Create(ctx, f.as(t, f.bob), NightInput{ScheduledDate: ptr("2026-03-01T11:59:30Z")})
		assert.NoError(t, err)
	})
}

func TestCreateMovieNight(t *testing.T) {
	f := newNightFixture(t)
	ctx := context.Background()
	_, err := f.svc.Watchlist.Add(ctx, f.as(t, f.owner), &AddMovieRequest{MovieID: 603, Title: "The Matrix"})
	require.NoError(t, err)

	night, err := f.svc.Nights.Create(ctx, f.as(t, f.bob), NightInput{
		ScheduledDate:         ptr("2026-03-02 20:00"),
		ChosenMovieID:         ptr(int64(603)),
		RSVPDeadline:          ptr("2026-03-02T18:00:00+02:00"),
		ReminderMinutesBefore: ptr(60),
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02 20:00:00", night.ScheduledDate)
	require.NotNil(t, night.RSVPDeadline)
	assert.Equal(t, "2026-03-02 16:00:00", *night.RSVPDeadline)
	assert.Equal(t, model.NightPlanned, night.Status)
	assert.Equal(t, f.bob.ID, night.CreatedBy)

	assert.Len(t, f.activity(t, f.groupID, model.ActivityNightCreated), 1)
	// everyone but the creator hears about it
	for _, u := range []*model.User{f.owner, f.carol} {
		var types []model.NotificationType
		for _, n := range f.notifications(t, u.ID) {
			types = append(types, n.Type)
		}
		assert.Contains(t, types, model.NotificationMovieNight)
	}
	for _, n := range f.notifications(t, f.bob.ID) {
		assert.NotEqual(t, model.NotificationMovieNight, n.Type)
	}
}

func TestUpdateMovieNight(t *testing.T) {
	f := newNightFixture(t)
	ctx := context.Background()
	night, err := f.svc.Nights.Create(ctx, f.as(t, f.bob), NightInput{
		ScheduledDate:         ptr("2026-03-01T22:00:00Z"),
		RSVPDeadline:          ptr("2026-03-01T20:00:00Z"),
		ReminderMinutesBefore: ptr(60),
	})
	require.NoError(t, err)

	f.clock.Set(testEpoch.Add(8*time.Hour + 30*time.Minute))
	out, err := f.svc.Reminders.Trigger(ctx, f.as(t, f.owner), night.ID, false)
	require.NoError(t, err)
	require.True(t, out.Sent)

	t.Run("changing the deadline re-arms the reminder", func(t *testing.T) {
		updated, err := f.svc.Nights.Update(ctx, f.as(t, f.bob), night.ID, NightInput{RSVPDeadline: ptr("2026-03-01T21:00:00Z")})
		require.NoError(t, err)
		assert.Nil(t, updated.ReminderSentAt)
		assert.Equal(t, "2026-03-01 21:00:00", *updated.RSVPDeadline)
	})

	t.Run("clearing the deadline requires clearing the reminder", func(t *testing.T) {
		_, err := f.svc.Nights.Update(ctx, f.as(t, f.bob), night.ID, NightInput{RSVPDeadline: ptr("")})
		assert.EqualError(t, err, "reminder requires an rsvp deadline")

		updated, err := f.svc.Nights.Update(ctx, f.as(t, f.bob), night.ID, NightInput{RSVPDeadline: ptr(""), ReminderMinutesBefore: ptr(0)})
		require.NoError(t, err)
		assert.Nil(t, updated.RSVPDeadline)
		assert.Nil(t, updated.ReminderMinutesBefore)
	})

	t.Run("missing night", func(t *testing.T) {
		_, err := f.svc.Nights.Update(ctx, f.as(t, f.bob), "nope", NightInput{})
		assert.ErrorIs(t, err, ErrNightNotFound)
	})

	assert.Len(t, f.activity(t, f.groupID, model.ActivityNightUpdated), 2)
}

func TestLockedMovieNight(t *testing.T) {
	f := newNightFixture(t)
	ctx := context.Background()
	night, err := f.svc.Nights.Create(ctx, f.as(t, f.bob), NightInput{ScheduledDate: ptr("2026-03-05T20:00:00Z")})
	require.NoError(t, err)

	_, err = f.svc.Nights.SetLocked(ctx, f.as(t, f.bob), night.ID, true)
	assert.ErrorIs(t, err, ErrRequiresRole(model.RoleModerator))

	locked, err := f.svc.Nights.SetLocked(ctx, f.as(t, f.owner), night.ID, true)
	require.NoError(t, err)
	assert.True(t, locked.IsLocked)
	assert.Len(t, f.activity(t, f.groupID, model.ActivityNightLocked), 1)

	_, err = f.svc.Nights.Update(ctx, f.as(t, f.bob), night.ID, NightInput{ScheduledDate: ptr("2026-03-06T20:00:00Z")})
	assert.Equal(t, apperr.KindLocked, apperr.KindOf(err))
	_, err = f.svc.Nights.SetStatus(ctx, f.as(t, f.bob), night.ID, model.NightCancelled)
	assert.ErrorIs(t, err, ErrNightLocked)

	updated, err := f.svc.Nights.Update(ctx, f.as(t, f.owner), night.ID, NightInput{ScheduledDate: ptr("2026-03-06T20:00:00Z")})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-06 20:00:00", updated.ScheduledDate)

	// locking twice is a no-op
	_, err = f.svc.Nights.SetLocked(ctx, f.as(t, f.owner), night.ID, true)
	require.NoError(t, err)
	assert.Len(t, f.activity(t, f.groupID, model.ActivityNightLocked), 1)

	_, err = f.svc.Nights.SetLocked(ctx, f.as(t, f.owner), night.ID, false)
	require.NoError(t, err)
	assert.Len(t, f.activity(t, f.groupID, model.ActivityNightUnlocked), 1)
}

func TestMovieNightStatus(t *testing.T) {
	f := newNightFixture(t)
	ctx := context.Background()
	night, err := f.svc.Nights.Create(ctx, f.as(t, f.bob), NightInput{ScheduledDate: ptr("2026-03-05T20:00:00Z")})
	require.NoError(t, err)

	done, err := f.svc.Nights.SetStatus(ctx, f.as(t, f.carol), night.ID, model.NightCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.NightCompleted, done.Status)

	_, err = f.svc.Nights.SetStatus(ctx, f.as(t, f.carol), night.ID, model.NightCancelled)
	assert.ErrorContains(t, err, "cannot change status from completed to cancelled")

	_, err = f.svc.Nights.Update(ctx, f.as(t, f.carol), night.ID, NightInput{ScheduledDate: ptr("2026-03-06T20:00:00Z")})
	assert.ErrorIs(t, err, ErrNightNotPlanned)

	_, err = f.svc.Nights.SetAvailability(ctx, f.as(t, f.carol), night.ID, true)
	assert.ErrorIs(t, err, ErrNightNotPlanned)

	_, err = f.svc.Nights.SetStatus(ctx, f.as(t, f.carol), night.ID, model.NightStatus("postponed"))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestAvailability(t *testing.T) {
	f := newNightFixture(t)
	ctx := context.Background()
	night, err := f.svc.Nights.Create(ctx, f.as(t, f.bob), NightInput{ScheduledDate: ptr("2026-03-05T20:00:00Z")})
	require.NoError(t, err)

	_, err = f.svc.Nights.SetAvailability(ctx, f.as(t, f.bob), night.ID, false)
	require.NoError(t, err)
	// latest answer wins
	_, err = f.svc.Nights.SetAvailability(ctx, f.as(t, f.bob), night.ID, true)
	require.NoError(t, err)
	_, err = f.svc.Nights.SetAvailability(ctx, f.as(t, f.carol), night.ID, false)
	require.NoError(t, err)

	summary, err := f.svc.Nights.Availability(ctx, f.as(t, f.owner), night.ID)
	require.NoError(t, err)
	assert.Len(t, summary.Responses, 2)
	assert.Equal(t, 1, summary.Available)
	assert.Equal(t, 1, summary.Declined)
	assert.Equal(t, []string{f.owner.ID}, summary.Pending)
	assert.Len(t, f.activity(t, f.groupID, model.ActivityAvailabilitySet), 3)

	_, err = f.svc.Nights.Availability(ctx, f.as(t, f.owner), "nope")
	assert.ErrorIs(t, err, ErrNightNotFound)
}

func TestCalendarExport(t *testing.T) {
	f := newNightFixture(t)
	ctx := context.Background()
	_, err := f.svc.Watchlist.Add(ctx, f.as(t, f.owner), &AddMovieRequest{MovieID: 603, Title: "The Matrix"})
	require.NoError(t, err)
	night, err := f.svc.Nights.Create(ctx, f.as(t, f.bob), NightInput{
		ScheduledDate: ptr("2026-03-05T20:00:00Z"),
		ChosenMovieID: ptr(int64(603)),
	})
	require.NoError(t, err)

	file, err := f.svc.Nights.Calendar(ctx, f.as(t, f.carol), night.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(file.Name, "friday-crew-20260305-"))
	assert.True(t, strings.HasSuffix(file.Name, ".ics"))
	assert.Contains(t, file.Content, "SUMMARY:Movie Night: The Matrix\r\n")
	assert.Contains(t, file.Content, "DTSTART:20260305T200000Z\r\n")
	assert.Contains(t, file.Content, "DTEND:20260305T220000Z\r\n")
	assert.Contains(t, file.Content, "X-WR-CALNAME:Friday Crew\r\n")
}

func TestMovieNightsNeedSchedulingSchema(t *testing.T) {
	caps := repository.FullCapabilities()
	caps.NightScheduling = false
	e := newTestEnv(t, caps)
	ctx := context.Background()
	owner := e.addUser(t, "Alice")
	groupID := e.newGroup(t, owner)
	actor := e.membership(t, groupID, owner.ID)

	_, err := e.svc.Nights.Create(ctx, actor, NightInput{
		ScheduledDate: ptr("2026-03-05T20:00:00Z"),
		RSVPDeadline:  ptr("2026-03-05T18:00:00Z"),
	})
	assert.ErrorIs(t, err, ErrNeedsScheduling)

	night, err := e.svc.Nights.Create(ctx, actor, NightInput{ScheduledDate: ptr("2026-03-05T20:00:00Z")})
	require.NoError(t, err)

	_, err = e.svc.Nights.SetLocked(ctx, actor, night.ID, true)
	assert.Equal(t, apperr.KindSchemaUnavailable, apperr.KindOf(err))
	_, err = e.svc.Reminders.Trigger(ctx, actor, night.ID, false)
	assert.Equal(t, apperr.KindSchemaUnavailable, apperr.KindOf(err))

	nights, err := e.svc.Nights.List(ctx, actor)
	require.NoError(t, err)
	assert.Len(t, nights, 1)
}
