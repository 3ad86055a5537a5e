package service

import (
	"context"
	"time"

	"github.com/Gopher0727/MovieNight/internal/repository"
	"github.com/Gopher0727/MovieNight/internal/utils"
	logger "github.com/Gopher0727/MovieNight/middleware/log"
	"github.com/Gopher0727/MovieNight/pkg/mq"
)

// Deps carries the collaborators shared by every service.
type Deps struct {
	Repos    *repository.Repositories
	Members  *MembershipResolver
	Activity *ActivityRecorder
	Notifier *NotificationDispatcher
	Effects  *SideEffects
	Logger   *logger.Logger
	Clock    func() time.Time

	publisher mq.Publisher
	pool      *utils.WorkerPool
}

func NewDeps(repos *repository.Repositories, opts ...Option) *Deps {
	d := &Deps{Repos: repos, Clock: time.Now, Logger: logger.NewNopLogger(), publisher: mq.NopPublisher{}}
	for _, opt := range opts {
		opt(d)
	}
	d.Effects = NewSideEffects(d.pool, d.Logger)
	d.Members = NewMembershipResolver(repos.Members, repos.Schema, d.Logger)
	d.Activity = NewActivityRecorder(repos.Activity, repos.Schema, d.Effects, d.publisher, d.Logger, d.Clock)
	d.Notifier = NewNotificationDispatcher(repos, d.Effects, d.Logger, d.Clock)
	return d
}

func (d *Deps) now() time.Time {
	return d.Clock().UTC()
}

// inTx runs fn in a transaction whose post-commit hooks fire after commit.
func (d *Deps) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return d.Effects.RunInTx(ctx, d.Repos.Tx, fn)
}

type Option func(*Deps)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Deps) { d.Clock = now }
}

func WithLogger(log *logger.Logger) Option {
	return func(d *Deps) { d.Logger = log }
}

// WithPublisher sends activity events to p after commit.
func WithPublisher(p mq.Publisher) Option {
	return func(d *Deps) { d.publisher = p }
}

// WithWorkerPool runs post-commit hooks on pool instead of inline.
func WithWorkerPool(pool *utils.WorkerPool) Option {
	return func(d *Deps) { d.pool = pool }
}
