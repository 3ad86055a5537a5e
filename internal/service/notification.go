package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Gopher0727/MovieNight/internal/apperr"
	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
	logger "github.com/Gopher0727/MovieNight/middleware/log"
)

// VoteReminderWindow suppresses a repeat vote reminder for the same movie.
const VoteReminderWindow = 6 * time.Hour

// NotificationInput is a candidate notification row.
type NotificationInput struct {
	UserID      string
	Type        model.NotificationType
	Title       string
	Message     string
	ReferenceID string
}

func (in NotificationInput) normalize() (NotificationInput, bool) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.Title = strings.TrimSpace(in.Title)
	in.Message = strings.TrimSpace(in.Message)
	ok := in.UserID != "" && strings.TrimSpace(string(in.Type)) != "" && in.Title != "" && in.Message != ""
	return in, ok
}

// NotificationDispatcher writes notification rows for other users. Callers
// treat it as a side channel: its failures are logged by the hook runner.
type NotificationDispatcher struct {
	users         repository.UserRepository
	members       repository.MemberRepository
	votes         repository.VoteRepository
	notifications repository.NotificationRepository
	prefs         bool
	effects       *SideEffects
	logger        *logger.Logger
	now           func() time.Time
}

func NewNotificationDispatcher(repos *repository.Repositories, effects *SideEffects, log *logger.Logger, now func() time.Time) *NotificationDispatcher {
	return &NotificationDispatcher{
		users:         repos.Users,
		members:       repos.Members,
		votes:         repos.Votes,
		notifications: repos.Notifications,
		prefs:         repos.Schema.NotificationPrefs,
		effects:       effects,
		logger:        log.Named("notifications"),
		now:           now,
	}
}

// Insert validates batch, silently dropping incomplete entries, and writes
// the remainder with one multi-row insert.
func (d *NotificationDispatcher) Insert(ctx context.Context, batch []NotificationInput) (int64, error) {
	now := d.now().UTC()
	rows := make([]*model.Notification, 0, len(batch))
	for _, candidate := range batch {
		in, ok := candidate.normalize()
		if !ok {
			continue
		}
		rows = append(rows, &model.Notification{
			ID:          uuid.NewString(),
			UserID:      in.UserID,
			Type:        in.Type,
			Title:       in.Title,
			Message:     in.Message,
			ReferenceID: optional(in.ReferenceID),
			CreatedAt:   now,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := d.notifications.InsertBatch(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("failed to insert notifications: %w", err)
	}
	return n, nil
}

// filterPreferred keeps the active users among ids who opted in to p. Without
// the preference columns every active user counts as opted in.
func (d *NotificationDispatcher) filterPreferred(ctx context.Context, ids []string, p model.Preference) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	users, err := d.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipients: %w", err)
	}
	allowed := make(map[string]bool, len(users))
	for _, u := range users {
		allowed[u.ID] = !d.prefs || u.Allows(p)
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if allowed[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

// Allows reports whether userID exists and opted in to p.
func (d *NotificationDispatcher) Allows(ctx context.Context, userID string, p model.Preference) (bool, error) {
	ids, err := d.filterPreferred(ctx, []string{userID}, p)
	return len(ids) == 1, err
}

// GroupRecipients lists the group's members who opted in to p, minus exclude.
func (d *NotificationDispatcher) GroupRecipients(ctx context.Context, groupID string, p model.Preference, exclude ...string) ([]string, error) {
	ids, err := d.members.ListMemberIDs(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	return d.filterPreferred(ctx, without(ids, exclude...), p)
}

// NotifyIfPreferred defers a single notification for after commit, sent only
// when the recipient opted in to p.
func (d *NotificationDispatcher) NotifyIfPreferred(ctx context.Context, p model.Preference, in NotificationInput) {
	d.effects.Defer(ctx, "notify "+string(in.Type), func(ctx context.Context) error {
		ok, err := d.Allows(ctx, in.UserID, p)
		if err != nil || !ok {
			return err
		}
		_, err = d.Insert(ctx, []NotificationInput{in})
		return err
	})
}

// Notify defers a single notification for after commit regardless of the
// recipient's preferences.
func (d *NotificationDispatcher) Notify(ctx context.Context, in NotificationInput) {
	d.effects.Defer(ctx, "notify "+string(in.Type), func(ctx context.Context) error {
		_, err := d.Insert(ctx, []NotificationInput{in})
		return err
	})
}

// VoteReferenceID identifies a movie within a group for vote reminders.
func VoteReferenceID(groupID string, movieID int64) string {
	return fmt.Sprintf("%s:%d", groupID, movieID)
}

// SendVoteReminders nudges members who have not voted on movieID yet. Members
// with vote notifications disabled, and members reminded about the same movie
// within VoteReminderWindow, are skipped.
func (d *NotificationDispatcher) SendVoteReminders(ctx context.Context, groupID string, movieID int64, title, actorID string) (int64, error) {
	memberIDs, err := d.members.ListMemberIDs(ctx, groupID)
	if err != nil {
		return 0, fmt.Errorf("failed to list group members: %w", err)
	}
	voterIDs, err := d.votes.VoterIDs(ctx, groupID, movieID)
	if err != nil {
		return 0, fmt.Errorf("failed to list voters: %w", err)
	}

	pending := without(memberIDs, append(voterIDs, actorID)...)
	pending, err = d.filterPreferred(ctx, pending, model.PreferenceVote)
	if err != nil || len(pending) == 0 {
		return 0, err
	}

	ref := VoteReferenceID(groupID, movieID)
	recent, err := d.notifications.RecentRecipients(ctx, pending, model.NotificationVoteReminder, ref, d.now().Add(-VoteReminderWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to check recent reminders: %w", err)
	}
	pending = without(pending, recent...)
	if len(pending) == 0 {
		return 0, nil
	}

	if title == "" {
		title = fmt.Sprintf("movie #%d", movieID)
	}
	batch := make([]NotificationInput, 0, len(pending))
	for _, id := range pending {
		batch = append(batch, NotificationInput{
			UserID:      id,
			Type:        model.NotificationVoteReminder,
			Title:       "Time to vote",
			Message:     fmt.Sprintf("Your group is voting on %s. Add your vote!", title),
			ReferenceID: ref,
		})
	}
	n, err := d.Insert(ctx, batch)
	if err == nil {
		d.logger.DebugContext(ctx, "vote reminders sent", zap.String("group_id", groupID), zap.Int64("count", n))
	}
	return n, err
}

// without returns ids minus every id in exclude, preserving order.
func without(ids []string, exclude ...string) []string {
	if len(exclude) == 0 {
		return ids
	}
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !skip[id] {
			out = append(out, id)
		}
	}
	return out
}

// INotificationService serves a user's own notifications.
type INotificationService interface {
	List(ctx context.Context, userID string, page model.PageRequest) (model.Page[*model.Notification], error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type NotificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(d *Deps) *NotificationService {
	return &NotificationService{repo: d.Repos.Notifications}
}

func (s *NotificationService) List(ctx context.Context, userID string, page model.PageRequest) (model.Page[*model.Notification], error) {
	items, total, err := s.repo.ListByUser(ctx, userID, page)
	if err != nil {
		return model.Page[*model.Notification]{}, fmt.Errorf("failed to list notifications: %w", err)
	}
	return model.NewPage(items, total, page), nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	ok, err := s.repo.MarkRead(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if !ok {
		return apperr.NotFound("notification not found")
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}
