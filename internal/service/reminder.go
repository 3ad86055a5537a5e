package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
	logger "github.com/Gopher0727/MovieNight/middleware/log"
)

// ReminderSkip explains why a reminder dispatch did nothing.
type ReminderSkip string

const (
	SkipNotFound        ReminderSkip = "not_found"
	SkipNotPlanned      ReminderSkip = "not_planned"
	SkipNotConfigured   ReminderSkip = "not_configured"
	SkipInvalidDeadline ReminderSkip = "invalid_deadline"
	SkipAlreadySent     ReminderSkip = "already_sent"
	SkipNotDue          ReminderSkip = "not_due"
)

type ReminderOutcome struct {
	NightID  string       `json:"night_id"`
	Sent     bool         `json:"sent"`
	Skipped  ReminderSkip `json:"skipped,omitempty"`
	Notified int64        `json:"notified"`
}

type IReminderService interface {
	Trigger(ctx context.Context, actor *model.Membership, nightID string, force bool) (*ReminderOutcome, error)
}

type ReminderService struct {
	*Deps
}

func NewReminderService(d *Deps) *ReminderService {
	return &ReminderService{Deps: d}
}

// Due reports whether n's reminder should fire at now without forcing. A
// reminder becomes due strictly after its trigger instant.
func (s *ReminderService) Due(n *model.MovieNight, now time.Time) bool {
	if n.Status != model.NightPlanned || n.ReminderSentAt != nil {
		return false
	}
	at, err := n.ReminderTriggerAt()
	return err == nil && now.After(at)
}

// SendReminderForNight notifies the members who have not answered yet. The
// night row stays locked from the sent check until the sent mark, so
// concurrent callers fire at most once.
func (s *ReminderService) SendReminderForNight(ctx context.Context, groupID, nightID, actorID string, force bool) (*ReminderOutcome, error) {
	out := &ReminderOutcome{NightID: nightID}
	err := s.inTx(ctx, func(ctx context.Context) error {
		night, err := s.Repos.Nights.LockByID(ctx, groupID, nightID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				out.Skipped = SkipNotFound
				return nil
			}
			return fmt.Errorf("failed to lock movie night: %w", err)
		}

		now := s.now()
		switch {
		case night.Status != model.NightPlanned:
			out.Skipped = SkipNotPlanned
			return nil
		case !night.ReminderConfigured():
			out.Skipped = SkipNotConfigured
			return nil
		}
		triggerAt, err := night.ReminderTriggerAt()
		if err != nil {
			out.Skipped = SkipInvalidDeadline
			return nil
		}
		if !force {
			if night.ReminderSentAt != nil {
				out.Skipped = SkipAlreadySent
				return nil
			}
			if !now.After(triggerAt) {
				out.Skipped = SkipNotDue
				return nil
			}
		}

		pending, err := s.Repos.Availability.PendingMemberIDs(ctx, groupID, nightID)
		if err != nil {
			return fmt.Errorf("failed to list pending members: %w", err)
		}
		if len(pending) > 0 {
			deadline := model.FormatTimestamp(*night.RSVPDeadline)
			batch := make([]NotificationInput, 0, len(pending))
			for _, id := range pending {
				batch = append(batch, NotificationInput{
					UserID:      id,
					Type:        model.NotificationMovieNight,
					Title:       "RSVP reminder",
					Message:     fmt.Sprintf("Let your group know if you can make movie night. RSVPs close at %s UTC.", deadline),
					ReferenceID: nightID,
				})
			}
			if out.Notified, err = s.Notifier.Insert(ctx, batch); err != nil {
				return err
			}
		}

		if err := s.Repos.Nights.MarkReminderSent(ctx, nightID, now); err != nil {
			return fmt.Errorf("failed to mark reminder sent: %w", err)
		}
		out.Sent = true
		s.Activity.Record(ctx, Activity{
			GroupID:     groupID,
			ActorID:     actorID,
			Type:        model.ActivityReminderSent,
			ReferenceID: nightID,
			Metadata:    map[string]any{"notified": out.Notified, "forced": force},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Trigger is the moderator action behind the manual reminder endpoint.
func (s *ReminderService) Trigger(ctx context.Context, actor *model.Membership, nightID string, force bool) (*ReminderOutcome, error) {
	if !s.Repos.Schema.NightScheduling {
		return nil, ErrNeedsScheduling
	}
	if err := requireRole(actor, model.RoleModerator); err != nil {
		return nil, err
	}
	out, err := s.SendReminderForNight(ctx, actor.GroupID, nightID, actor.UserID, force)
	if err != nil {
		return nil, err
	}
	if out.Skipped == SkipNotFound {
		return nil, ErrNightNotFound
	}
	return out, nil
}

// SendDueReminders dispatches up to limit reminders whose trigger time has
// passed. A failure on one night does not stop the others.
func (s *ReminderService) SendDueReminders(ctx context.Context, limit int) (int, error) {
	candidates, err := s.Repos.Nights.ListReminderCandidates(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list reminder candidates: %w", err)
	}
	now := s.now()
	sent := 0
	for _, n := range candidates {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if !s.Due(n, now) {
			continue
		}
		out, err := s.SendReminderForNight(ctx, n.GroupID, n.ID, n.CreatedBy, false)
		if err != nil {
			s.Logger.WarnContext(ctx, "reminder dispatch failed", zap.String("night_id", n.ID), zap.Error(err))
			continue
		}
		if out.Sent {
			sent++
		}
	}
	return sent, nil
}

// ReminderSweeper periodically sends due reminders so they do not depend on
// somebody listing the group's nights.
type ReminderSweeper struct {
	reminders *ReminderService
	interval  time.Duration
	batch     int
	logger    *logger.Logger
}

const reminderSweepBatch = 100

func NewReminderSweeper(reminders *ReminderService, interval time.Duration, log *logger.Logger) *ReminderSweeper {
	return &ReminderSweeper{
		reminders: reminders,
		interval:  interval,
		batch:     reminderSweepBatch,
		logger:    log.Named("reminder-sweeper"),
	}
}

// Run blocks until ctx is done.
func (w *ReminderSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("reminder sweeper started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reminder sweeper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ReminderSweeper) sweep(ctx context.Context) {
	sent, err := w.reminders.SendDueReminders(ctx, w.batch)
	if err != nil && ctx.Err() == nil {
		w.logger.Error("reminder sweep failed", zap.Error(err))
		return
	}
	if sent > 0 {
		w.logger.Info("reminders sent", zap.Int("count", sent))
	}
}
