package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/repository"
	"github.com/Gopher0727/MovieNight/internal/repository/memory"
	"github.com/Gopher0727/MovieNight/internal/service"
	"github.com/Gopher0727/MovieNight/middleware/jwt"
	"github.com/Gopher0727/MovieNight/utils/ratelimit"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	ErrorID string          `json:"error_id"`
}

type testServer struct {
	router *gin.Engine
	tokens *jwt.TokenManager
}

func newTestServer(t *testing.T, limiter ratelimit.Limiter, rules ratelimit.Rules) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.New(repository.FullCapabilities())
	tokens := jwt.NewTokenManager("api-test-secret", 1, 24)
	svc := service.NewServices(service.NewDeps(store.Repositories()), tokens)
	mw := NewMiddlewareManager(tokens, limiter, rules, nil)
	return &testServer{router: NewRouter(mw, NewHandlers(svc)), tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (s *testServer) register(t *testing.T, name string) (token, id string) {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name":     name,
		"email":    strings.ToLower(name) + "@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	var resp service.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	return resp.Token, resp.User.ID
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, nil)
	w, _ := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t, nil, nil)

	w, env := s.do(t, http.MethodGet, "/api/v1/groups", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "authorization header required", env.Error)

	w, env = s.do(t, http.MethodGet, "/api/v1/groups", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid token", env.Error)

	token, id := s.register(t, "Alice")
	w, env = s.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decode[model.UserProfile](t, env).ID)

	w, env = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "alice@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, env.Error)

	w, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "alice@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGroupRoleGuards(t *testing.T) {
	s := newTestServer(t, nil, nil)
	alice, _ := s.register(t, "Alice")
	bob, bobID := s.register(t, "Bob")
	carol, _ := s.register(t, "Carol")

	w, env := s.do(t, http.MethodPost, "/api/v1/groups", alice, gin.H{"name": "Friday Crew"})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	group := decode[model.GroupView](t, env)
	assert.Equal(t, model.RoleOwner, group.Role)
	base := "/api/v1/groups/" + group.ID

	w, env = s.do(t, http.MethodGet, base, bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not a member of this group", env.Error)

	w, _ = s.do(t, http.MethodPost, base+"/members", alice, gin.H{"email": "bob@example.com"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, env = s.do(t, http.MethodPost, base+"/members", bob, gin.H{"email": "carol@example.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "requires moderator or higher", env.Error)

	w, _ = s.do(t, http.MethodPut, base+"/members/"+bobID+"/role", alice, gin.H{"role": "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(t, http.MethodPut, base+"/members/"+bobID+"/role", alice, gin.H{"role": "moderator"})
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	assert.Equal(t, model.RoleModerator, decode[model.RoleChange](t, env).Role)

	w, _ = s.do(t, http.MethodPost, base+"/members", bob, gin.H{"email": "carol@example.com"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w, env = s.do(t, http.MethodPost, base+"/members", bob, gin.H{"email": "carol@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "user is already a member", env.Error)

	w, env = s.do(t, http.MethodDelete, base, bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "requires owner or higher", env.Error)

	w, env = s.do(t, http.MethodGet, base+"/members", carol, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.MemberView](t, env), 3)

	w, env = s.do(t, http.MethodGet, base+"/activity?event_type=member_added&limit=1", carol, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[model.Page[model.ActivityView]](t, env)
	assert.Len(t, page.Data, 1)
	assert.EqualValues(t, 2, page.Pagination.Total)

	w, _ = s.do(t, http.MethodGet, base+"/activity?event_type=bogus", carol, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(t, http.MethodPut, base+"/members/"+bobID+"/role", alice, gin.H{"role": "moderator"})
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	assert.Equal(t, model.MessageRoleUnchanged, env.Message)
	assert.False(t, decode[model.RoleChange](t, env).Changed)

	t.Run("deleted account keeps no rights", func(t *testing.T) {
		w, _ := s.do(t, http.MethodDelete, "/api/v1/users/me", alice, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w, env := s.do(t, http.MethodDelete, base, alice, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "not a member of this group", env.Error)

		w, _ = s.do(t, http.MethodGet, base, bob, nil)
		assert.Equal(t, http.StatusOK, w.Code, "group still exists")
	})
}

func TestMovieNightRoutes(t *testing.T) {
	s := newTestServer(t, nil, nil)
	alice, _ := s.register(t, "Alice")
	bob, _ := s.register(t, "Bob")

	_, env := s.do(t, http.MethodPost, "/api/v1/groups", alice, gin.H{"name": "Friday Crew"})
	base := "/api/v1/groups/" + decode[model.GroupView](t, env).ID
	w, _ := s.do(t, http.MethodPost, base+"/members", alice, gin.H{"email": "bob@example.com"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, env = s.do(t, http.MethodPost, base+"/movie-nights", bob, gin.H{
		"scheduled_date":          "2030-01-10T20:00:00Z",
		"rsvp_deadline":           "2030-01-10T18:00:00Z",
		"reminder_minutes_before": 60,
	})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	night := decode[model.NightView](t, env)
	nightURL := base + "/movie-nights/" + night.ID

	w, _ = s.do(t, http.MethodPost, nightURL+"/lock", bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = s.do(t, http.MethodPost, nightURL+"/lock", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, http.MethodPut, nightURL, bob, gin.H{"scheduled_date": "2030-01-11T20:00:00Z"})
	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Contains(t, env.Error, "locked")

	w, env = s.do(t, http.MethodPut, nightURL+"/availability", bob, gin.H{"is_available": false})
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	w, env = s.do(t, http.MethodGet, nightURL+"/availability", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[model.AvailabilitySummary](t, env).Declined)

	w, _ = s.do(t, http.MethodPost, nightURL+"/reminders", bob, gin.H{"force": true})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, env = s.do(t, http.MethodPost, nightURL+"/reminders", alice, gin.H{"force": true})
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	assert.True(t, decode[service.ReminderOutcome](t, env).Sent)

	w, env = s.do(t, http.MethodPost, nightURL+"/reminders", alice, nil)
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	assert.Equal(t, service.SkipAlreadySent, decode[service.ReminderOutcome](t, env).Skipped)

	w, _ = s.do(t, http.MethodGet, nightURL+"/calendar.ics", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".ics")
	assert.True(t, strings.HasPrefix(w.Body.String(), "BEGIN:VCALENDAR\r\n"))

	w, _ = s.do(t, http.MethodGet, base+"/movie-nights/missing", bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWatchlistAndVoteRoutes(t *testing.T) {
	s := newTestServer(t, nil, nil)
	alice, _ := s.register(t, "Alice")
	_, env := s.do(t, http.MethodPost, "/api/v1/groups", alice, gin.H{"name": "Friday Crew"})
	base := "/api/v1/groups/" + decode[model.GroupView](t, env).ID

	w, env := s.do(t, http.MethodPost, base+"/watchlist", alice, gin.H{"movie_id": 603, "title": "The Matrix"})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)

	w, env = s.do(t, http.MethodPost, base+"/votes", alice, gin.H{"movie_id": 603, "vote_value": 4})
	require.Equal(t, http.StatusOK, w.Code, env.Error)

	w, env = s.do(t, http.MethodGet, base+"/movies/603/votes", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[model.VoteSummary](t, env)
	assert.Equal(t, 1, summary.Count)

	w, _ = s.do(t, http.MethodDelete, base+"/watchlist/abc", alice, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = s.do(t, http.MethodDelete, base+"/watchlist/603", alice, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFriendAndNotificationRoutes(t *testing.T) {
	s := newTestServer(t, nil, nil)
	alice, _ := s.register(t, "Alice")
	bob, _ := s.register(t, "Bob")

	w, env := s.do(t, http.MethodPost, "/api/v1/friends/requests", alice, gin.H{"email": "bob@example.com"})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	request := decode[model.FriendRequest](t, env)

	w, env = s.do(t, http.MethodGet, "/api/v1/notifications/unread-count", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"unread":1}`, string(env.Data))

	w, _ = s.do(t, http.MethodPost, "/api/v1/friends/requests/"+request.ID+"/accept", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, http.MethodGet, "/api/v1/friends", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.UserProfile](t, env), 1)

	w, env = s.do(t, http.MethodPost, "/api/v1/notifications/read-all", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"marked":1}`, string(env.Data))

	w, _ = s.do(t, http.MethodPost, "/api/v1/notifications/unknown/read", bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimitedLogin(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rules := ratelimit.Rules{ratelimit.EndpointLogin: {Limit: 2, Window: time.Minute}}
	s := newTestServer(t, ratelimit.NewRedisLimiter(client, nil, false), rules)

	body := gin.H{"email": "ghost@example.com", "password": "whatever1"}
	for range 2 {
		w, _ := s.do(t, http.MethodPost, "/api/v1/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w, env := s.do(t, http.MethodPost, "/api/v1/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate limit exceeded", env.Error)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRecoveryReportsTraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mw := NewMiddlewareManager(nil, nil, nil, nil)
	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery())
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(HeaderRequestID, "trace-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "trace-123", env.ErrorID)
	assert.Equal(t, "trace-123", w.Header().Get(HeaderRequestID))
}
