package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/Gopher0727/MovieNight/internal/apperr"
	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
	logger "github.com/Gopher0727/MovieNight/middleware/log"
	"github.com/Gopher0727/MovieNight/pkg/mq"
)

// Activity describes one audit event to record.
type Activity struct {
	GroupID      string
	ActorID      string
	Type         model.ActivityType
	TargetUserID string
	ReferenceID  string
	Metadata     map[string]any
}

// ActivityRecorder appends audit events. Recording is best-effort: a failed
// append is logged and never fails the surrounding operation. The append
// runs in the caller's transaction; the outbound event is published after
// commit.
type ActivityRecorder struct {
	repo      repository.ActivityRepository
	enabled   bool
	effects   *SideEffects
	publisher mq.Publisher
	logger    *logger.Logger
	now       func() time.Time
}

func NewActivityRecorder(
	repo repository.ActivityRepository,
	caps repository.Capabilities,
	effects *SideEffects,
	publisher mq.Publisher,
	log *logger.Logger,
	now func() time.Time,
) *ActivityRecorder {
	if publisher == nil {
		publisher = mq.NopPublisher{}
	}
	return &ActivityRecorder{
		repo:      repo,
		enabled:   caps.Activity,
		effects:   effects,
		publisher: publisher,
		logger:    log.Named("activity"),
		now:       now,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Record appends a and schedules its publication.
func (r *ActivityRecorder) Record(ctx context.Context, a Activity) {
	event := &model.ActivityEvent{
		ID:           uuid.NewString(),
		GroupID:      a.GroupID,
		ActorUserID:  a.ActorID,
		TargetUserID: optional(a.TargetUserID),
		EventType:    a.Type,
		ReferenceID:  optional(a.ReferenceID),
		CreatedAt:    r.now().UTC(),
	}
	if len(a.Metadata) > 0 {
		raw, err := json.Marshal(a.Metadata)
		if err != nil {
			r.logger.WarnContext(ctx, "dropping unencodable activity metadata",
				zap.String("event_type", string(a.Type)), zap.Error(err))
		} else {
			event.Metadata = datatypes.JSON(raw)
		}
	}

	if r.enabled {
		if err := r.repo.Append(ctx, event); err != nil {
			if repository.IsMissingSchema(err) {
				r.logger.WarnContext(ctx, "activity table unavailable, event not recorded",
					zap.String("group_id", a.GroupID),
					zap.String("event_type", string(a.Type)),
				)
			} else {
				r.logger.WarnContext(ctx, "failed to record activity",
					zap.String("group_id", a.GroupID),
					zap.String("event_type", string(a.Type)),
					zap.Error(err),
				)
			}
		}
	}

	view := event.View()
	r.effects.Defer(ctx, "publish "+string(a.Type), func(ctx context.Context) error {
		return r.publisher.Publish(ctx, view.GroupID, view)
	})
}

// IActivityService reads a group's timeline.
type IActivityService interface {
	Timeline(ctx context.Context, filter model.ActivityFilter) (model.Page[model.ActivityView], error)
}

type ActivityService struct {
	repo    repository.ActivityRepository
	enabled bool
}

func NewActivityService(d *Deps) *ActivityService {
	return &ActivityService{repo: d.Repos.Activity, enabled: d.Repos.Schema.Activity}
}

func (s *ActivityService) Timeline(ctx context.Context, filter model.ActivityFilter) (model.Page[model.ActivityView], error) {
	var empty model.Page[model.ActivityView]
	if !s.enabled {
		return empty, apperr.SchemaUnavailable("activity timeline")
	}
	if filter.EventType != "" && !filter.EventType.Valid() {
		return empty, apperr.Validation("unknown event type %q", filter.EventType)
	}

	events, total, err := s.repo.List(ctx, filter)
	if err != nil {
		if repository.IsMissingSchema(err) {
			return empty, apperr.SchemaUnavailable("activity timeline")
		}
		return empty, err
	}
	views := make([]model.ActivityView, 0, len(events))
	for _, e := range events {
		views = append(views, e.View())
	}
	return model.NewPage(views, total, filter.Page), nil
}
