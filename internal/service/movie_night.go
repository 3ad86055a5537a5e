package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Gopher0727/MovieNight/internal/apperr"
	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
)

var (
	ErrNightNotFound   = apperr.NotFound("movie night not found")
	ErrNightLocked     = apperr.Locked("movie night is locked; only moderators can edit it")
	ErrNightNotPlanned = apperr.Validation("only planned movie nights can be changed")
	ErrMovieNotListed  = apperr.Validation("chosen movie must already exist in watchlist")
	ErrNeedsScheduling = apperr.SchemaUnavailable("RSVP scheduling")
)

// NightInput carries the editable fields of a movie night. On update a nil
// field is left unchanged; an empty deadline, a zero lead time or a zero
// movie id clears the field.
type NightInput struct {
	ScheduledDate         *string `json:"scheduled_date"`
	ChosenMovieID         *int64  `json:"chosen_movie_id"`
	RSVPDeadline          *string `json:"rsvp_deadline"`
	ReminderMinutesBefore *int    `json:"reminder_minutes_before"`
}

func (in NightInput) touchesScheduling() bool {
	return in.RSVPDeadline != nil || in.ReminderMinutesBefore != nil
}

type IMovieNightService interface {
	Create(ctx context.Context, actor *model.Membership, in NightInput) (*model.NightView, error)
	Update(ctx context.Context, actor *model.Membership, nightID string, in NightInput) (*model.NightView, error)
	Get(ctx context.Context, actor *model.Membership, nightID string) (*model.NightView, error)
	List(ctx context.Context, actor *model.Membership) ([]model.NightView, error)
	SetLocked(ctx context.Context, actor *model.Membership, nightID string, locked bool) (*model.NightView, error)
	SetStatus(ctx context.Context, actor *model.Membership, nightID string, status model.NightStatus) (*model.NightView, error)
	SetAvailability(ctx context.Context, actor *model.Membership, nightID string, available bool) (*model.Availability, error)
	Availability(ctx context.Context, actor *model.Membership, nightID string) (*model.AvailabilitySummary, error)
	Calendar(ctx context.Context, actor *model.Membership, nightID string) (*CalendarFile, error)
}

type MovieNightService struct {
	*Deps
	reminders *ReminderService
}

func NewMovieNightService(d *Deps, reminders *ReminderService) *MovieNightService {
	return &MovieNightService{Deps: d, reminders: reminders}
}

func (s *MovieNightService) checkMovie(ctx context.Context, groupID string, movieID *int64) error {
	if movieID == nil || *movieID == 0 {
		return nil
	}
	if _, err := s.Repos.Watchlist.Find(ctx, groupID, *movieID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMovieNotListed
		}
		return fmt.Errorf("failed to check watchlist: %w", err)
	}
	return nil
}

func (s *MovieNightService) Create(ctx context.Context, actor *model.Membership, in NightInput) (*model.NightView, error) {
	if err := requireRole(actor, model.RoleMember); err != nil {
		return nil, err
	}
	if in.touchesScheduling() && !s.Repos.Schema.NightScheduling {
		return nil, ErrNeedsScheduling
	}
	if in.ScheduledDate == nil {
		return nil, apperr.Validation("scheduled date is required")
	}

	now := s.now()
	scheduled, err := parseField("scheduled date", *in.ScheduledDate)
	if err != nil {
		return nil, err
	}
	sc := schedule{scheduled: scheduled, scheduledChanged: true, lead: in.ReminderMinutesBefore}
	if in.RSVPDeadline != nil && *in.RSVPDeadline != "" {
		deadline, err := parseField("rsvp deadline", *in.RSVPDeadline)
		if err != nil {
			return nil, err
		}
		sc.deadline, sc.deadlineChanged = &deadline, true
	}
	if sc.lead != nil && *sc.lead == 0 {
		sc.lead = nil
	}
	if err := sc.validate(now); err != nil {
		return nil, err
	}
	if err := s.checkMovie(ctx, actor.GroupID, in.ChosenMovieID); err != nil {
		return nil, err
	}

	night := &model.MovieNight{
		ID:                    uuid.NewString(),
		GroupID:               actor.GroupID,
		ScheduledDate:         sc.scheduled,
		Status:                model.NightPlanned,
		CreatedBy:             actor.UserID,
		RSVPDeadline:          sc.deadline,
		ReminderMinutesBefore: sc.lead,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if in.ChosenMovieID != nil && *in.ChosenMovieID != 0 {
		night.ChosenMovieID = in.ChosenMovieID
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.Repos.Nights.Create(ctx, night); err != nil {
			return fmt.Errorf("failed to create movie night: %w", err)
		}
		s.Activity.Record(ctx, Activity{
			GroupID:     actor.GroupID,
			ActorID:     actor.UserID,
			Type:        model.ActivityNightCreated,
			ReferenceID: night.ID,
			Metadata:    map[string]any{"scheduled_date": model.FormatTimestamp(night.ScheduledDate)},
		})
		s.notifyGroup(ctx, actor, night, "Movie night scheduled",
			fmt.Sprintf("A movie night in %q is planned for %s UTC.", actor.GroupName, model.FormatTimestamp(night.ScheduledDate)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	view := night.View()
	return &view, nil
}

// notifyGroup tells the other members about a night after commit.
func (s *MovieNightService) notifyGroup(ctx context.Context, actor *model.Membership, night *model.MovieNight, title, message string) {
	groupID, nightID := night.GroupID, night.ID
	s.Effects.Defer(ctx, "notify movie night", func(ctx context.Context) error {
		ids, err := s.Notifier.GroupRecipients(ctx, groupID, model.PreferenceGroup, actor.UserID)
		if err != nil {
			return err
		}
		batch := make([]NotificationInput, 0, len(ids))
		for _, id := range ids {
			batch = append(batch, NotificationInput{
				UserID: id, Type: model.NotificationMovieNight, Title: title, Message: message, ReferenceID: nightID,
			})
		}
		_, err = s.Notifier.Insert(ctx, batch)
		return err
	})
}

// lockForEdit loads a night under a row lock and applies the lock-flag rule.
func (s *MovieNightService) lockForEdit(ctx context.Context, actor *model.Membership, nightID string) (*model.MovieNight, error) {
	night, err := s.Repos.Nights.LockByID(ctx, actor.GroupID, nightID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNightNotFound
		}
		return nil, fmt.Errorf("failed to load movie night: %w", err)
	}
	if night.IsLocked && !actor.AtLeast(model.RoleModerator) {
		return nil, ErrNightLocked
	}
	return night, nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *MovieNightService) Update(ctx context.Context, actor *model.Membership, nightID string, in NightInput) (*model.NightView, error) {
	if err := requireRole(actor, model.RoleMember); err != nil {
		return nil, err
	}
	if in.touchesScheduling() && !s.Repos.Schema.NightScheduling {
		return nil, ErrNeedsScheduling
	}

	var night *model.MovieNight
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		night, err = s.lockForEdit(ctx, actor, nightID)
		if err != nil {
			return err
		}
		if night.Status != model.NightPlanned {
			return ErrNightNotPlanned
		}

		now := s.now()
		sc := schedule{scheduled: night.ScheduledDate, deadline: night.RSVPDeadline, lead: night.ReminderMinutesBefore}
		changed := map[string]any{}
		if in.ScheduledDate != nil {
			t, err := parseField("scheduled date", *in.ScheduledDate)
			if err != nil {
				return err
			}
			if !t.Equal(sc.scheduled) {
				sc.scheduled, sc.scheduledChanged = t, true
				changed["scheduled_date"] = model.FormatTimestamp(t)
			}
		}
		if in.RSVPDeadline != nil {
			var deadline *time.Time
			if *in.RSVPDeadline != "" {
				t, err := parseField("rsvp deadline", *in.RSVPDeadline)
				if err != nil {
					return err
				}
				deadline = &t
			}
			if !sameTime(deadline, sc.deadline) {
				sc.deadline, sc.deadlineChanged = deadline, true
				changed["rsvp_deadline"] = deadline != nil
			}
		}
		if in.ReminderMinutesBefore != nil {
			var lead *int
			if *in.ReminderMinutesBefore != 0 {
				v := *in.ReminderMinutesBefore
				lead = &v
			}
			if !sameInt(lead, sc.lead) {
				sc.lead = lead
				changed["reminder_minutes_before"] = lead
			}
		}
		if err := sc.validate(now); err != nil {
			return err
		}
		if in.ChosenMovieID != nil {
			if err := s.checkMovie(ctx, actor.GroupID, in.ChosenMovieID); err != nil {
				return err
			}
			var movie *int64
			if *in.ChosenMovieID != 0 {
				v := *in.ChosenMovieID
				movie = &v
			}
			night.ChosenMovieID = movie
			changed["chosen_movie_id"] = movie
		}

		_, deadlineTouched := changed["rsvp_deadline"]
		_, leadTouched := changed["reminder_minutes_before"]
		if deadlineTouched || leadTouched {
			night.ReminderSentAt = nil
		}
		night.ScheduledDate = sc.scheduled
		night.RSVPDeadline = sc.deadline
		night.ReminderMinutesBefore = sc.lead
		night.UpdatedAt = now

		if err := s.Repos.Nights.Update(ctx, night); err != nil {
			return fmt.Errorf("failed to update movie night: %w", err)
		}
		s.Activity.Record(ctx, Activity{
			GroupID:     actor.GroupID,
			ActorID:     actor.UserID,
			Type:        model.ActivityNightUpdated,
			ReferenceID: night.ID,
			Metadata:    changed,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	view := night.View()
	return &view, nil
}

func (s *MovieNightService) Get(ctx context.Context, actor *model.Membership, nightID string) (*model.NightView, error) {
	if err := requireRole(actor, model.RoleMember); err != nil {
		return nil, err
	}
	night, err := s.find(ctx, actor.GroupID, nightID)
	if err != nil {
		return nil, err
	}
	view := night.View()
	return &view, nil
}

func (s *MovieNightService) find(ctx context.Context, groupID, nightID string) (*model.MovieNight, error) {
	night, err := s.Repos.Nights.FindByID(ctx, groupID, nightID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNightNotFound
		}
		return nil, fmt.Errorf("failed to load movie night: %w", err)
	}
	return night, nil
}

// List returns the group's nights. Listing also fires any RSVP reminder that
// has come due; a failed reminder is logged and does not fail the listing.
func (s *MovieNightService) List(ctx context.Context, actor *model.Membership) ([]model.NightView, error) {
	if err := requireRole(actor, model.RoleMember); err != nil {
		return nil, err
	}
	nights, err := s.Repos.Nights.ListByGroup(ctx, actor.GroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list movie nights: %w", err)
	}

	now := s.now()
	for _, n := range nights {
		if !s.reminders.Due(n, now) {
			continue
		}
		outcome, err := s.reminders.SendReminderForNight(ctx, n.GroupID, n.ID, actor.UserID, false)
		if err != nil {
			s.Logger.WarnContext(ctx, "opportunistic reminder failed", zap.String("night_id", n.ID), zap.Error(err))
			continue
		}
		if outcome.Sent {
			sentAt := now
			n.ReminderSentAt = &sentAt
		}
	}

	views := make([]model.NightView, 0, len(nights))
	for _, n := range nights {
		views = append(views, n.View())
	}
	return views, nil
}

func (s *MovieNightService) SetLocked(ctx context.Context, actor *model.Membership, nightID string, locked bool) (*model.NightView, error) {
	if !s.Repos.Schema.NightScheduling {
		return nil, ErrNeedsScheduling
	}
	if err := requireRole(actor, model.RoleModerator); err != nil {
		return nil, err
	}

	var night *model.MovieNight
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if night, err = s.lockForEdit(ctx, actor, nightID); err != nil {
			return err
		}
		if night.IsLocked == locked {
			return nil
		}
		night.IsLocked = locked
		night.UpdatedAt = s.now()
		if err := s.Repos.Nights.Update(ctx, night); err != nil {
			return fmt.Errorf("failed to update movie night: %w", err)
		}
		typ := model.ActivityNightUnlocked
		if locked {
			typ = model.ActivityNightLocked
		}
		s.Activity.Record(ctx, Activity{GroupID: actor.GroupID, ActorID: actor.UserID, Type: typ, ReferenceID: night.ID})
		return nil
	})
	if err != nil {
		return nil, err
	}
	view := night.View()
	return &view, nil
}

func (s *MovieNightService) SetStatus(ctx context.Context, actor *model.Membership, nightID string, status model.NightStatus) (*model.NightView, error) {
	if err := requireRole(actor, model.RoleMember); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperr.Validation("invalid status %q", status)
	}

	var night *model.MovieNight
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if night, err = s.lockForEdit(ctx, actor, nightID); err != nil {
			return err
		}
		if !night.Status.CanTransition(status) {
			return apperr.Validation("cannot change status from %s to %s", night.Status, status)
		}
		previous := night.Status
		night.Status = status
		night.UpdatedAt = s.now()
		if err := s.Repos.Nights.Update(ctx, night); err != nil {
			return fmt.Errorf("failed to update movie night: %w", err)
		}
		s.Activity.Record(ctx, Activity{
			GroupID:     actor.GroupID,
			ActorID:     actor.UserID,
			Type:        model.ActivityNightUpdated,
			ReferenceID: night.ID,
			Metadata:    map[string]any{"previous_status": previous, "status": status},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	view := night.View()
	return &view, nil
}

// SetAvailability records the caller's RSVP; the latest answer wins.
func (s *MovieNightService) SetAvailability(ctx context.Context, actor *model.Membership, nightID string, available bool) (*model.Availability, error) {
	if err := requireRole(actor, model.RoleMember); err != nil {
		return nil, err
	}
	row := &model.Availability{NightID: nightID, UserID: actor.UserID, IsAvailable: available, RespondedAt: s.now()}
	err := s.inTx(ctx, func(ctx context.Context) error {
		night, err := s.find(ctx, actor.GroupID, nightID)
		if err != nil {
			return err
		}
		if night.Status != model.NightPlanned {
			return ErrNightNotPlanned
		}
		if err := s.Repos.Availability.Upsert(ctx, row); err != nil {
			return fmt.Errorf("failed to save availability: %w", err)
		}
		s.Activity.Record(ctx, Activity{
			GroupID:     actor.GroupID,
			ActorID:     actor.UserID,
			Type:        model.ActivityAvailabilitySet,
			ReferenceID: nightID,
			Metadata:    map[string]any{"is_available": available},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (s *MovieNightService) Availability(ctx context.Context, actor *model.Membership, nightID string) (*model.AvailabilitySummary, error) {
	if err := requireRole(actor, model.RoleMember); err != nil {
		return nil, err
	}
	if _, err := s.find(ctx, actor.GroupID, nightID); err != nil {
		return nil, err
	}
	rows, err := s.Repos.Availability.ListByNight(ctx, nightID)
	if err != nil {
		return nil, fmt.Errorf("failed to list availability: %w", err)
	}
	pending, err := s.Repos.Availability.PendingMemberIDs(ctx, actor.GroupID, nightID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending members: %w", err)
	}

	summary := &model.AvailabilitySummary{NightID: nightID, Responses: rows, Pending: pending}
	if summary.Responses == nil {
		summary.Responses = []*model.Availability{}
	}
	if summary.Pending == nil {
		summary.Pending = []string{}
	}
	for _, r := range rows {
		if r.IsAvailable {
			summary.Available++
		} else {
			summary.Declined++
		}
	}
	return summary, nil
}

// Calendar renders the night as a single-event iCalendar file.
func (s *MovieNightService) Calendar(ctx context.Context, actor *model.Membership, nightID string) (*CalendarFile, error) {
	if err := requireRole(actor, model.RoleMember); err != nil {
		return nil, err
	}
	night, err := s.find(ctx, actor.GroupID, nightID)
	if err != nil {
		return nil, err
	}

	summary := "Movie Night"
	if night.ChosenMovieID != nil {
		if entry, err := s.Repos.Watchlist.Find(ctx, actor.GroupID, *night.ChosenMovieID); err == nil {
			summary = "Movie Night: " + entry.Title
		}
	}
	event := CalendarEvent{
		UID:          night.ID + "@movienight",
		CalendarName: actor.GroupName,
		Summary:      summary,
		Description:  fmt.Sprintf("Movie night with %s.", actor.GroupName),
		Start:        night.ScheduledDate,
		Stamp:        night.CreatedAt,
	}
	return &CalendarFile{
		Name:    CalendarFilename(actor.GroupName, night.ScheduledDate, night.ID),
		Content: BuildCalendar(event),
	}, nil
}
