package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/MovieNight/internal/handler"
	"github.com/Gopher0727/MovieNight/internal/model"
	"github.com/Gopher0727/MovieNight/internal/service"
	"github.com/Gopher0727/MovieNight/utils/ratelimit"
)

type Handlers struct {
	Auth          *handler.AuthHandler
	Groups        *handler.GroupHandler
	Nights        *handler.MovieNightHandler
	Watchlist     *handler.WatchlistHandler
	Friends       *handler.FriendHandler
	Notifications *handler.NotificationHandler
	Guards        *handler.Guards
}

func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Auth:          handler.NewAuthHandler(svc.Auth),
		Groups:        handler.NewGroupHandler(svc.Groups, svc.Activity),
		Nights:        handler.NewMovieNightHandler(svc.Nights, svc.Reminders),
		Watchlist:     handler.NewWatchlistHandler(svc.Watchlist, svc.Votes),
		Friends:       handler.NewFriendHandler(svc.Friends),
		Notifications: handler.NewNotificationHandler(svc.Notifications),
		Guards:        handler.NewGuards(svc.Members),
	}
}

// NewRouter builds the engine with the global middleware chain and every
// route registered.
func NewRouter(m *MiddlewareManager, h *Handlers) *gin.Engine {
	r := gin.New()
	r.Use(m.TraceID(), m.Logger(), m.Recovery(), m.CORS())
	RegisterRoutes(r, m, h)
	return r
}

// RegisterRoutes registers all API routes
func RegisterRoutes(r *gin.Engine, m *MiddlewareManager, h *Handlers) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", m.RateLimit(ratelimit.EndpointRegister), h.Auth.Register)
			auth.POST("/login", m.RateLimit(ratelimit.EndpointLogin), h.Auth.Login)
			auth.POST("/refresh", m.RateLimit(ratelimit.EndpointLogin), h.Auth.Refresh)
		}
	}

	protected := api.Group("")
	protected.Use(m.JWTAuth(), m.RateLimit(ratelimit.EndpointAPI), m.MembershipCache())
	{
		users := protected.Group("/users/me")
		{
			users.GET("", h.Auth.Profile)
			users.PUT("/preferences", h.Auth.UpdatePreferences)
			users.DELETE("", h.Auth.DeleteAccount)
		}

		protected.POST("/groups", h.Groups.Create)
		protected.GET("/groups", h.Groups.List)

		member := h.Guards.RequireMembership("group_id")
		moderator := h.Guards.RequireRole(model.RoleModerator, "group_id")
		owner := h.Guards.RequireRole(model.RoleOwner, "group_id")

		group := protected.Group("/groups/:group_id")
		{
			group.GET("", member, h.Groups.Get)
			group.DELETE("", owner, h.Groups.Delete)

			group.GET("/members", member, h.Groups.ListMembers)
			group.POST("/members", moderator, h.Groups.AddMember)
			group.DELETE("/members/:user_id", moderator, h.Groups.RemoveMember)
			group.PUT("/members/:user_id/role", owner, h.Groups.ChangeRole)

			group.GET("/activity", member, h.Groups.Activity)

			group.GET("/watchlist", member, h.Watchlist.List)
			group.POST("/watchlist", member, h.Watchlist.Add)
			group.DELETE("/watchlist/:movie_id", member, h.Watchlist.Remove)
			group.POST("/votes", member, h.Watchlist.Vote)
			group.GET("/movies/:movie_id/votes", member, h.Watchlist.Votes)

			nights := group.Group("/movie-nights")
			{
				nights.GET("", member, h.Nights.List)
				nights.POST("", member, h.Nights.Create)
				nights.GET("/:night_id", member, h.Nights.Get)
				nights.PUT("/:night_id", member, h.Nights.Update)
				nights.POST("/:night_id/lock", moderator, h.Nights.Lock)
				nights.POST("/:night_id/unlock", moderator, h.Nights.Unlock)
				nights.POST("/:night_id/status", member, h.Nights.SetStatus)
				nights.POST("/:night_id/reminders", moderator, m.RateLimit(ratelimit.EndpointReminder), h.Nights.TriggerReminder)
				nights.PUT("/:night_id/availability", member, h.Nights.SetAvailability)
				nights.GET("/:night_id/availability", member, h.Nights.Availability)
				nights.GET("/:night_id/calendar.ics", member, h.Nights.Calendar)
			}
		}

		friends := protected.Group("/friends")
		{
			friends.GET("", h.Friends.List)
			friends.DELETE("/:friend_id", h.Friends.Remove)
			friends.GET("/requests", h.Friends.Pending)
			friends.POST("/requests", h.Friends.Send)
			friends.POST("/requests/:request_id/accept", h.Friends.Accept)
			friends.POST("/requests/:request_id/decline", h.Friends.Decline)
		}

		notifications := protected.Group("/notifications")
		{
			notifications.GET("", h.Notifications.List)
			notifications.GET("/unread-count", h.Notifications.UnreadCount)
			notifications.POST("/read-all", h.Notifications.MarkAllRead)
			notifications.POST("/:id/read", h.Notifications.MarkRead)
		}
	}
}
