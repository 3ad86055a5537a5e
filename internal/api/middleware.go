package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/MovieNight/internal/apperr"
	"github.com/Gopher0727/MovieNight/internal/handler"
	"github.com/Gopher0727/MovieNight/internal/service"
	"github.com/Gopher0727/MovieNight/middleware/jwt"
	logger "github.com/Gopher0727/MovieNight/middleware/log"
	"github.com/Gopher0727/MovieNight/utils/ratelimit"
)

// HeaderRequestID carries the trace id in and out of the API.
const HeaderRequestID = "X-Request-ID"

type MiddlewareManager struct {
	tokenManager *jwt.TokenManager
	rateLimiter  ratelimit.Limiter
	rules        ratelimit.Rules
	logger       *logger.Logger
}

// NewMiddlewareManager builds the middleware set. A nil limiter disables rate
// limiting, which is how the server runs without Redis.
func NewMiddlewareManager(
	tokenManager *jwt.TokenManager,
	rateLimiter ratelimit.Limiter,
	rules ratelimit.Rules,
	log *logger.Logger,
) *MiddlewareManager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &MiddlewareManager{
		tokenManager: tokenManager,
		rateLimiter:  rateLimiter,
		rules:        rules,
		logger:       log.Named("http"),
	}
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, handler.Response{Error: message})
}

// TraceID adopts the caller's X-Request-ID or mints one, and stores it in
// the request context for logging and error ids.
func (m *MiddlewareManager) TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(HeaderRequestID)
		ctx := logger.WithTraceID(c.Request.Context(), traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderRequestID, logger.GetTraceID(ctx))
		c.Next()
	}
}

// MembershipCache gives each request its own membership lookup cache.
func (m *MiddlewareManager) MembershipCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(service.WithMembershipCache(c.Request.Context()))
		c.Next()
	}
}

func (m *MiddlewareManager) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "authorization header required")
			return
		}
		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			abort(c, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		claims, err := m.tokenManager.ParseToken(token)
		if err != nil {
			m.logger.WarnContext(c.Request.Context(), "token validation failed",
				zap.Error(err),
				zap.String("ip", c.ClientIP()),
			)
			switch {
			case errors.Is(err, jwt.ErrExpiredToken):
				abort(c, http.StatusUnauthorized, "token has expired")
			case errors.Is(err, jwt.ErrTokenNotYetValid):
				abort(c, http.StatusUnauthorized, "token not yet valid")
			default:
				abort(c, http.StatusUnauthorized, "invalid token")
			}
			return
		}

		c.Set(handler.ContextUserID, claims.UserID)
		c.Next()
	}
}

// RateLimit applies the endpoint's rule, keyed by user when authenticated
// and by client IP otherwise.
func (m *MiddlewareManager) RateLimit(endpoint ratelimit.Endpoint) gin.HandlerFunc {
	if m.rateLimiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	rule := m.rules.For(endpoint)

	return func(c *gin.Context) {
		var key string
		if userID := c.GetString(handler.ContextUserID); userID != "" {
			key = fmt.Sprintf("user:%s:%s", userID, endpoint)
		} else {
			key = fmt.Sprintf("ip:%s:%s", c.ClientIP(), endpoint)
		}

		d, err := m.rateLimiter.Allow(c.Request.Context(), key, rule)
		if err != nil {
			m.logger.ErrorContext(c.Request.Context(), "rate limit check failed",
				zap.Error(err),
				zap.String("key", key),
			)
			abort(c, http.StatusServiceUnavailable, "rate limit check failed")
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			retry := int(d.RetryAfter.Round(time.Second).Seconds())
			c.Header("Retry-After", strconv.Itoa(max(retry, 1)))
			abort(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		c.Next()
	}
}

// Logger writes one access log line per request, with the trace id and any
// error a handler attached.
func (m *MiddlewareManager) Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if userID := c.GetString(handler.ContextUserID); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		if err := c.Errors.Last(); err != nil {
			fields = append(fields, zap.Error(err.Err))
		}

		ctx := c.Request.Context()
		switch {
		case status >= http.StatusInternalServerError:
			m.logger.ErrorContext(ctx, "server error", fields...)
		case status >= http.StatusBadRequest:
			m.logger.WarnContext(ctx, "client error", fields...)
		default:
			m.logger.InfoContext(ctx, "request completed", fields...)
		}
	}
}

func (m *MiddlewareManager) CORS() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", HeaderRequestID)
	cfg.ExposeHeaders = []string{HeaderRequestID, "Content-Disposition", "Retry-After"}
	cfg.MaxAge = 12 * time.Hour
	return cors.New(cfg)
}

func (m *MiddlewareManager) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				ctx := c.Request.Context()
				m.logger.ErrorContext(ctx, "panic recovered",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, handler.Response{
					Error:   apperr.New(apperr.KindInternal, "internal server error").Error(),
					ErrorID: logger.GetTraceID(ctx),
				})
			}
		}()
		c.Next()
	}
}
