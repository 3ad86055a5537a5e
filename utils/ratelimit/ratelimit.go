package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Gopher0727/MovieNight/config"
	logger "github.com/Gopher0727/MovieNight/middleware/log"
)

// Endpoint names a rate limit rule.
type Endpoint string

const (
	EndpointRegister Endpoint = "register"
	EndpointLogin    Endpoint = "login"
	EndpointReminder Endpoint = "reminder"
	EndpointAPI      Endpoint = "api"
)

type Rule struct {
	Limit  int
	Window time.Duration
}

// DefaultRule applies to endpoints without a configured limit.
var DefaultRule = Rule{Limit: 100, Window: time.Minute}

// Rules maps endpoints onto their limits.
type Rules map[Endpoint]Rule

func RulesFromConfig(cfg *config.RateLimitConfig) Rules {
	return Rules{
		EndpointRegister: {Limit: cfg.RegisterPerMinute, Window: time.Minute},
		EndpointLogin:    {Limit: cfg.LoginPerMinute, Window: time.Minute},
		EndpointReminder: {Limit: cfg.ReminderPerMinute, Window: time.Minute},
		EndpointAPI:      {Limit: cfg.APIPerMinute, Window: time.Minute},
	}
}

func (r Rules) For(e Endpoint) Rule {
	if rule, ok := r[e]; ok && rule.Limit > 0 && rule.Window > 0 {
		return rule
	}
	return DefaultRule
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string, rule Rule) (Decision, error)
	Reset(ctx context.Context, key string, rule Rule) error
}

// RedisLimiter counts requests per fixed window in Redis, so every API
// instance shares the same counters.
type RedisLimiter struct {
	client   *redis.Client
	log      *logger.Logger
	failOpen bool
	now      func() time.Time
}

// NewRedisLimiter builds a limiter. With failOpen set, a Redis outage lets
// requests through instead of rejecting them.
func NewRedisLimiter(client *redis.Client, log *logger.Logger, failOpen bool) *RedisLimiter {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &RedisLimiter{
		client:   client,
		log:      log.Named("ratelimit"),
		failOpen: failOpen,
		now:      time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, rule Rule) (Decision, error) {
	now := l.now()
	bucket := bucketKey(key, now, rule.Window)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, bucket)
	pipe.Expire(ctx, bucket, rule.Window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		if l.failOpen {
			l.log.WarnContext(ctx, "rate limit check failed, allowing request",
				zap.String("key", key),
				zap.Error(err),
			)
			return Decision{Allowed: true, Remaining: rule.Limit}, nil
		}
		return Decision{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := int(incr.Val())
	d := Decision{Allowed: count <= rule.Limit, Remaining: max(rule.Limit-count, 0)}
	if !d.Allowed {
		windowStart := now.Truncate(rule.Window)
		d.RetryAfter = windowStart.Add(rule.Window).Sub(now)
		l.log.DebugContext(ctx, "rate limit exceeded",
			zap.String("key", key),
			zap.Int("count", count),
			zap.Int("limit", rule.Limit),
		)
	}
	return d, nil
}

// Reset clears the current window's counter for key.
func (l *RedisLimiter) Reset(ctx context.Context, key string, rule Rule) error {
	if err := l.client.Del(ctx, bucketKey(key, l.now(), rule.Window)).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit for %s: %w", key, err)
	}
	return nil
}

func bucketKey(key string, now time.Time, window time.Duration) string {
	return fmt.Sprintf("ratelimit:%s:%d", key, now.Truncate(window).Unix())
}
