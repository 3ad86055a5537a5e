package service

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Gopher0727/MovieNight/internal/repository"
	"github.com/Gopher0727/MovieNight/internal/utils"
	logger "github.com/Gopher0727/MovieNight/middleware/log"
)

// Hook is a side effect that runs after the transaction that scheduled it
// has committed. It receives a context detached from request cancellation.
type Hook func(ctx context.Context) error

type namedHook struct {
	name string
	fn   Hook
}

type hookQueue struct {
	mu    sync.Mutex
	hooks []namedHook
}

type hookQueueKey struct{}

// maxParallelHooks bounds the fan-out of one commit's hooks.
const maxParallelHooks = 4

// SideEffects collects best-effort work (notifications, event publishing)
// during a transaction and runs it once the transaction commits. A rolled
// back transaction discards its hooks. Hook failures are logged, never
// returned.
type SideEffects struct {
	pool   *utils.WorkerPool
	logger *logger.Logger
}

// NewSideEffects runs hooks on pool, or inline when pool is nil.
func NewSideEffects(pool *utils.WorkerPool, log *logger.Logger) *SideEffects {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &SideEffects{pool: pool, logger: log.Named("hooks")}
}

// RunInTx runs fn in a transaction with a fresh hook queue. Nested calls
// share the outermost queue.
func (e *SideEffects) RunInTx(ctx context.Context, tx repository.TxManager, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(hookQueueKey{}).(*hookQueue); ok {
		return tx.RunInTx(ctx, fn)
	}

	queue := &hookQueue{}
	if err := tx.RunInTx(context.WithValue(ctx, hookQueueKey{}, queue), fn); err != nil {
		return err
	}
	e.dispatch(ctx, queue.hooks)
	return nil
}

// Defer schedules fn to run after commit. Without an enclosing RunInTx the
// hook is dispatched right away.
func (e *SideEffects) Defer(ctx context.Context, name string, fn Hook) {
	queue, ok := ctx.Value(hookQueueKey{}).(*hookQueue)
	if !ok {
		e.dispatch(ctx, []namedHook{{name: name, fn: fn}})
		return
	}
	queue.mu.Lock()
	queue.hooks = append(queue.hooks, namedHook{name: name, fn: fn})
	queue.mu.Unlock()
}

func (e *SideEffects) dispatch(ctx context.Context, hooks []namedHook) {
	if len(hooks) == 0 {
		return
	}
	// the request may finish before the hooks do
	base := context.WithoutCancel(ctx)

	run := func() {
		var g errgroup.Group
		g.SetLimit(maxParallelHooks)
		for _, h := range hooks {
			g.Go(func() error {
				if err := h.fn(base); err != nil {
					e.logger.WarnContext(base, "post-commit hook failed",
						zap.String("hook", h.name),
						zap.Error(err),
					)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	if e.pool == nil {
		run()
		return
	}
	if err := e.pool.Submit(base, run); err != nil {
		e.logger.WarnContext(base, "worker pool unavailable, running hooks inline", zap.Error(err))
		run()
	}
}
